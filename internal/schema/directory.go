// Package schema is the read-only attribute registry consulted by the
// query compiler, the matcher and the record builder.
//
// An attribute is stored either as a column of the server table (scalar)
// or as rows of the generic value table keyed by its attribute key (EAV).
// Scalar columns may be enum-backed: the column holds an id and the
// directory maps ids to names.
package schema

import (
	"fmt"
	"regexp"
	"slices"

	"github.com/roach88/serverdb/internal/value"
)

var identifierRE = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Attribute describes one attribute. Immutable once the directory is built.
type Attribute struct {
	Name  string
	Type  value.Type
	Multi bool

	// Column is set for attributes stored on the server table.
	Column string

	// Key is the attrib_id of EAV attributes.
	Key int64

	// Enum maps stored ids to names for enum-backed columns.
	Enum *Enum
}

// Scalar reports whether the attribute lives on the server table.
func (a *Attribute) Scalar() bool {
	return a.Column != ""
}

// Enum is an id<->name table for an enum-backed column.
type Enum struct {
	names map[int64]string
	ids   map[string]int64
}

// NewEnum builds an enum table. Ids and names must both be unique.
func NewEnum(entries map[int64]string) (*Enum, error) {
	e := &Enum{
		names: make(map[int64]string, len(entries)),
		ids:   make(map[string]int64, len(entries)),
	}
	for id, name := range entries {
		if name == "" {
			return nil, fmt.Errorf("enum id %d has an empty name", id)
		}
		if other, dup := e.ids[name]; dup {
			return nil, fmt.Errorf("enum name %q used by ids %d and %d", name, min(id, other), max(id, other))
		}
		e.names[id] = name
		e.ids[name] = id
	}
	return e, nil
}

// Name returns the name stored under id.
func (e *Enum) Name(id int64) (string, bool) {
	name, ok := e.names[id]
	return name, ok
}

// ID returns the id of name.
func (e *Enum) ID(name string) (int64, bool) {
	id, ok := e.ids[name]
	return id, ok
}

// IDs returns all ids in ascending order.
func (e *Enum) IDs() []int64 {
	ids := make([]int64, 0, len(e.names))
	for id := range e.names {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Directory resolves attribute names and keys to descriptors.
type Directory struct {
	byName map[string]*Attribute
	byKey  map[int64]*Attribute
	sorted []*Attribute
}

// NewDirectory validates attrs and builds a directory.
//
// Rules:
//   - names are non-empty and unique
//   - exactly one of Column or Key is set; keys are unique and positive
//   - columns are plain lowercase identifiers and unique
//   - scalar attributes are single-valued
//   - enum tables only back scalar string attributes
func NewDirectory(attrs []Attribute) (*Directory, error) {
	d := &Directory{
		byName: make(map[string]*Attribute, len(attrs)),
		byKey:  make(map[int64]*Attribute),
	}
	columns := make(map[string]string)

	for i := range attrs {
		a := attrs[i]
		if a.Name == "" {
			return nil, fmt.Errorf("attribute %d: empty name", i)
		}
		if _, dup := d.byName[a.Name]; dup {
			return nil, fmt.Errorf("attribute %q: duplicate name", a.Name)
		}
		if _, err := value.ParseType(string(a.Type)); err != nil {
			return nil, fmt.Errorf("attribute %q: %w", a.Name, err)
		}

		switch {
		case a.Column != "" && a.Key != 0:
			return nil, fmt.Errorf("attribute %q: both column and key set", a.Name)
		case a.Column != "":
			if !identifierRE.MatchString(a.Column) {
				return nil, fmt.Errorf("attribute %q: invalid column name %q", a.Name, a.Column)
			}
			if other, dup := columns[a.Column]; dup {
				return nil, fmt.Errorf("attribute %q: column %q already used by %q", a.Name, a.Column, other)
			}
			if a.Multi {
				return nil, fmt.Errorf("attribute %q: scalar column cannot be multi-valued", a.Name)
			}
			columns[a.Column] = a.Name
		case a.Key > 0:
			if other, dup := d.byKey[a.Key]; dup {
				return nil, fmt.Errorf("attribute %q: key %d already used by %q", a.Name, a.Key, other.Name)
			}
		default:
			return nil, fmt.Errorf("attribute %q: needs a column or a positive key", a.Name)
		}

		if a.Enum != nil && (a.Column == "" || a.Type != value.TypeString) {
			return nil, fmt.Errorf("attribute %q: enum tables need a scalar string column", a.Name)
		}

		attr := &a
		d.byName[a.Name] = attr
		if a.Key > 0 {
			d.byKey[a.Key] = attr
		}
		d.sorted = append(d.sorted, attr)
	}

	slices.SortFunc(d.sorted, func(x, y *Attribute) int {
		switch {
		case x.Name < y.Name:
			return -1
		case x.Name > y.Name:
			return 1
		}
		return 0
	})
	return d, nil
}

// Lookup returns the descriptor for name or an *UnknownAttributeError.
func (d *Directory) Lookup(name string) (*Attribute, error) {
	if a, ok := d.byName[name]; ok {
		return a, nil
	}
	return nil, &UnknownAttributeError{Name: name}
}

// ByKey returns the EAV attribute stored under key.
func (d *Directory) ByKey(key int64) (*Attribute, bool) {
	a, ok := d.byKey[key]
	return a, ok
}

// Attributes returns every attribute sorted by name.
func (d *Directory) Attributes() []*Attribute {
	return slices.Clone(d.sorted)
}

// Names returns every attribute name, sorted.
func (d *Directory) Names() []string {
	names := make([]string, len(d.sorted))
	for i, a := range d.sorted {
		names[i] = a.Name
	}
	return names
}

// Scalars returns the scalar attributes sorted by name.
func (d *Directory) Scalars() []*Attribute {
	var out []*Attribute
	for _, a := range d.sorted {
		if a.Scalar() {
			out = append(out, a)
		}
	}
	return out
}
