package schema

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/roach88/serverdb/internal/value"
)

//go:embed directory.cue
var directoryDef string

// fileAttribute is the on-disk shape of one attribute.
type fileAttribute struct {
	Name   string     `yaml:"name"`
	Type   string     `yaml:"type"`
	Multi  bool       `yaml:"multi"`
	Column string     `yaml:"column"`
	Key    int64      `yaml:"key"`
	Enum   []fileEnum `yaml:"enum"`
}

type fileEnum struct {
	ID   int64  `yaml:"id"`
	Name string `yaml:"name"`
}

type fileDirectory struct {
	Attributes []fileAttribute `yaml:"attributes"`
}

// LoadFile loads a directory from a .yaml, .yml or .cue file.
func LoadFile(path string) (*Directory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return LoadYAML(data)
	case ".cue":
		return LoadCUE(path, data)
	default:
		return nil, fmt.Errorf("schema %s: unsupported extension (want .yaml, .yml or .cue)", path)
	}
}

// LoadYAML parses a directory of the form
//
//	attributes:
//	  - name: hostname
//	    type: string
//	    column: hostname
//	  - name: tags
//	    type: string
//	    multi: true
//	    key: 12
func LoadYAML(data []byte) (*Directory, error) {
	var fd fileDirectory
	if err := yaml.Unmarshal(data, &fd); err != nil {
		return nil, fmt.Errorf("parse schema yaml: %w", err)
	}
	return fd.build()
}

// LoadCUE loads a directory written in CUE. The document is unified with
// the #Directory definition before any field is read, so type names, column
// identifiers and key ranges are validated by CUE itself:
//
//	attributes: {
//		hostname: {type: "string", column: "hostname"}
//		tags:     {type: "string", multi: true, key: 12}
//	}
func LoadCUE(filename string, data []byte) (*Directory, error) {
	ctx := cuecontext.New()

	def := ctx.CompileString(directoryDef, cue.Filename("directory.cue"))
	if err := def.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	user := ctx.CompileBytes(data, cue.Filename(filename))
	if err := user.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	v := def.LookupPath(cue.ParsePath("#Directory")).Unify(user)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	attrsVal := v.LookupPath(cue.ParsePath("attributes"))
	iter, err := attrsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var fd fileDirectory
	for iter.Next() {
		fa, err := parseCUEAttribute(iter.Selector().Unquoted(), iter.Value())
		if err != nil {
			return nil, err
		}
		fd.Attributes = append(fd.Attributes, fa)
	}
	return fd.build()
}

func parseCUEAttribute(name string, v cue.Value) (fileAttribute, error) {
	fa := fileAttribute{Name: name}

	typ, err := v.LookupPath(cue.ParsePath("type")).String()
	if err != nil {
		return fa, formatCUEError(err)
	}
	fa.Type = typ

	if m := v.LookupPath(cue.ParsePath("multi")); m.Exists() {
		if fa.Multi, err = m.Bool(); err != nil {
			return fa, formatCUEError(err)
		}
	}
	if c := v.LookupPath(cue.ParsePath("column")); c.Exists() {
		if fa.Column, err = c.String(); err != nil {
			return fa, formatCUEError(err)
		}
	}
	if k := v.LookupPath(cue.ParsePath("key")); k.Exists() {
		if fa.Key, err = k.Int64(); err != nil {
			return fa, formatCUEError(err)
		}
	}

	enumVal := v.LookupPath(cue.ParsePath("enum"))
	if !enumVal.Exists() {
		return fa, nil
	}
	list, err := enumVal.List()
	if err != nil {
		return fa, formatCUEError(err)
	}
	for list.Next() {
		var e fileEnum
		if e.ID, err = list.Value().LookupPath(cue.ParsePath("id")).Int64(); err != nil {
			return fa, formatCUEError(err)
		}
		if e.Name, err = list.Value().LookupPath(cue.ParsePath("name")).String(); err != nil {
			return fa, formatCUEError(err)
		}
		fa.Enum = append(fa.Enum, e)
	}
	return fa, nil
}

func (fd fileDirectory) build() (*Directory, error) {
	attrs := make([]Attribute, 0, len(fd.Attributes))
	for _, fa := range fd.Attributes {
		typ, err := value.ParseType(fa.Type)
		if err != nil {
			return nil, &LoadError{Field: fa.Name, Message: err.Error()}
		}
		attr := Attribute{
			Name:   fa.Name,
			Type:   typ,
			Multi:  fa.Multi,
			Column: fa.Column,
			Key:    fa.Key,
		}
		if len(fa.Enum) > 0 {
			entries := make(map[int64]string, len(fa.Enum))
			for _, e := range fa.Enum {
				if _, dup := entries[e.ID]; dup {
					return nil, &LoadError{Field: fa.Name, Message: fmt.Sprintf("duplicate enum id %d", e.ID)}
				}
				entries[e.ID] = e.Name
			}
			if attr.Enum, err = NewEnum(entries); err != nil {
				return nil, &LoadError{Field: fa.Name, Message: err.Error()}
			}
		}
		attrs = append(attrs, attr)
	}
	return NewDirectory(attrs)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		return &LoadError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return &LoadError{Field: "cue", Message: first.Error()}
}
