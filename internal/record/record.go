// Package record holds materialized servers: an id plus typed attribute
// values. Records are immutable; a Builder assembles them.
package record

import (
	"fmt"
	"slices"

	jsoniter "github.com/json-iterator/go"

	"github.com/roach88/serverdb/internal/schema"
	"github.com/roach88/serverdb/internal/value"
)

// Record is one server. Single-valued attributes hold one value,
// multi-valued attributes a set. Absent attributes are simply missing.
type Record struct {
	id     int64
	single map[string]value.Value
	multi  map[string]*value.Set
}

// ID returns the server id.
func (r *Record) ID() int64 {
	return r.id
}

// Get returns a single-valued attribute.
func (r *Record) Get(name string) (value.Value, bool) {
	v, ok := r.single[name]
	return v, ok
}

// Values returns the values of an attribute in value.Order. A
// single-valued attribute yields one element, an absent one none.
func (r *Record) Values(name string) []value.Value {
	if v, ok := r.single[name]; ok {
		return []value.Value{v}
	}
	return r.multi[name].Values()
}

// Has reports whether the attribute has at least one value.
func (r *Record) Has(name string) bool {
	return len(r.Values(name)) > 0
}

// Names returns the names of present attributes, sorted.
func (r *Record) Names() []string {
	names := make([]string, 0, len(r.single)+len(r.multi))
	for n := range r.single {
		names = append(names, n)
	}
	for n, s := range r.multi {
		if s.Len() > 0 {
			names = append(names, n)
		}
	}
	slices.Sort(names)
	return names
}

// Object returns the record as a wire object: "object_id" plus one key per
// present attribute; multi-valued attributes become sorted lists.
func (r *Record) Object() map[string]any {
	obj := map[string]any{"object_id": r.id}
	for n, v := range r.single {
		obj[n] = value.Literal(v)
	}
	for n, s := range r.multi {
		vals := s.Values()
		if len(vals) == 0 {
			continue
		}
		lits := make([]any, len(vals))
		for i, v := range vals {
			lits[i] = value.Literal(v)
		}
		obj[n] = lits
	}
	return obj
}

// MarshalJSON encodes Object with sorted keys.
func (r *Record) MarshalJSON() ([]byte, error) {
	return jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(r.Object())
}

// Builder accumulates attribute values for one record.
type Builder struct {
	id     int64
	single map[string]value.Value
	multi  map[string]*value.Set
}

// NewBuilder starts a record for id.
func NewBuilder(id int64) *Builder {
	return &Builder{
		id:     id,
		single: make(map[string]value.Value),
		multi:  make(map[string]*value.Set),
	}
}

// Set stores a single value, replacing any previous one.
func (b *Builder) Set(name string, v value.Value) *Builder {
	b.single[name] = v
	return b
}

// Add inserts into a multi-valued attribute.
func (b *Builder) Add(name string, v value.Value) *Builder {
	s, ok := b.multi[name]
	if !ok {
		s = value.NewSet()
		b.multi[name] = s
	}
	s.Add(v)
	return b
}

// Build returns the record. The builder must not be used afterwards.
func (b *Builder) Build() *Record {
	r := &Record{id: b.id, single: b.single, multi: b.multi}
	b.single, b.multi = nil, nil
	return r
}

// FromMap builds a record from decoded literals, typecasting each value
// to its attribute's type. Multi-valued attributes take a list. Nil values
// leave the attribute absent.
func FromMap(dir *schema.Directory, id int64, attrs map[string]any) (*Record, error) {
	b := NewBuilder(id)

	names := make([]string, 0, len(attrs))
	for n := range attrs {
		names = append(names, n)
	}
	slices.Sort(names)

	for _, name := range names {
		raw := attrs[name]
		if raw == nil {
			continue
		}
		attr, err := dir.Lookup(name)
		if err != nil {
			return nil, err
		}

		if !attr.Multi {
			v, err := castLiteral(attr, raw)
			if err != nil {
				return nil, err
			}
			b.Set(name, v)
			continue
		}

		items, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("attribute %q is multi-valued: want a list, got %T", name, raw)
		}
		for _, item := range items {
			v, err := castLiteral(attr, item)
			if err != nil {
				return nil, err
			}
			b.Add(name, v)
		}
		if len(items) == 0 {
			b.multi[name] = value.NewSet()
		}
	}
	return b.Build(), nil
}

func castLiteral(attr *schema.Attribute, raw any) (value.Value, error) {
	lit, err := value.FromLiteral(raw)
	if err != nil {
		return nil, fmt.Errorf("attribute %q: %w", attr.Name, err)
	}
	v, err := value.Cast(attr.Type, lit)
	if err != nil {
		return nil, fmt.Errorf("attribute %q: %w", attr.Name, err)
	}
	return v, nil
}
