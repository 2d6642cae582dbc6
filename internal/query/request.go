// Package query compiles a request (attribute name to filter) into one SQL
// statement over the server and value tables, runs it, and materializes
// the matching servers with a second statement that fetches their value
// rows.
package query

import (
	"io"
	"maps"
	"slices"
	"strconv"

	jsoniter "github.com/json-iterator/go"

	"github.com/roach88/serverdb/internal/filter"
)

// Request maps attribute names to filters. Restrict limits which
// attributes are materialized; nil means all of them.
type Request struct {
	filters  map[string]filter.Filter
	restrict []string
}

// NewRequest returns an empty request. An empty request selects every
// server.
func NewRequest() *Request {
	return &Request{filters: make(map[string]filter.Filter)}
}

// Set adds the filter for name. Each attribute takes one filter; combine
// several with And.
func (r *Request) Set(name string, f filter.Filter) error {
	if f == nil {
		return &RequestError{Attribute: name, Reason: "nil filter"}
	}
	if _, dup := r.filters[name]; dup {
		return &RequestError{Attribute: name, Reason: "duplicate attribute"}
	}
	r.filters[name] = f
	return nil
}

// MustSet is Set for statically known requests; it panics on error.
func (r *Request) MustSet(name string, f filter.Filter) *Request {
	if err := r.Set(name, f); err != nil {
		panic(err)
	}
	return r
}

// Restrict sets the projection. Duplicates are dropped; an empty
// projection clears the restriction, so every attribute is returned.
func (r *Request) Restrict(names ...string) *Request {
	if len(names) == 0 {
		r.restrict = nil
		return r
	}
	r.restrict = slices.Compact(slices.Sorted(slices.Values(names)))
	return r
}

// Restriction returns the projection, or nil when unrestricted.
func (r *Request) Restriction() []string {
	return slices.Clone(r.restrict)
}

// Filters returns a copy of the attribute filters.
func (r *Request) Filters() map[string]filter.Filter {
	return maps.Clone(r.filters)
}

// Names returns the filtered attribute names, sorted.
func (r *Request) Names() []string {
	return slices.Sorted(maps.Keys(r.filters))
}

// Filter returns the filter for name.
func (r *Request) Filter(name string) (filter.Filter, bool) {
	f, ok := r.filters[name]
	return f, ok
}

// requestJSON decodes numbers as json.Number, like filter wire objects.
var requestJSON = jsoniter.Config{
	EscapeHTML: false,
	UseNumber:  true,
}.Froze()

// DecodeRequest parses a JSON request:
//
//	{"filters": {"<attribute>": <filter object or literal>, ...},
//	 "restrict": ["<attribute>", ...]}
//
// A bare literal is ExactMatch(literal). Repeating an attribute key is an
// error rather than last-one-wins.
func DecodeRequest(data []byte) (*Request, error) {
	req := NewRequest()
	iter := requestJSON.BorrowIterator(data)
	defer requestJSON.ReturnIterator(iter)

	if iter.WhatIsNext() != jsoniter.ObjectValue {
		return nil, &RequestError{Reason: "request must be a JSON object"}
	}

	var decodeErr error
	iter.ReadObjectCB(func(it *jsoniter.Iterator, field string) bool {
		switch field {
		case "filters":
			decodeErr = decodeFilters(it, req)
		case "restrict":
			decodeErr = decodeRestrict(it, req)
		default:
			decodeErr = &RequestError{Reason: "unknown key " + strconv.Quote(field)}
		}
		return decodeErr == nil
	})
	if decodeErr != nil {
		return nil, decodeErr
	}
	if iter.Error != nil && iter.Error != io.EOF {
		return nil, &RequestError{Reason: "malformed JSON: " + iter.Error.Error()}
	}
	return req, nil
}

func decodeFilters(it *jsoniter.Iterator, req *Request) error {
	if it.WhatIsNext() != jsoniter.ObjectValue {
		return &RequestError{Reason: `"filters" must be an object`}
	}
	var err error
	it.ReadObjectCB(func(it *jsoniter.Iterator, name string) bool {
		raw := it.Read()
		if it.Error != nil && it.Error != io.EOF {
			return false
		}
		var f filter.Filter
		if f, err = filter.Prepare(raw); err != nil {
			err = &RequestError{Attribute: name, Reason: "bad filter", Err: err}
			return false
		}
		err = req.Set(name, f)
		return err == nil
	})
	return err
}

func decodeRestrict(it *jsoniter.Iterator, req *Request) error {
	if it.WhatIsNext() != jsoniter.ArrayValue {
		return &RequestError{Reason: `"restrict" must be a list of attribute names`}
	}
	names := []string{}
	var err error
	it.ReadArrayCB(func(it *jsoniter.Iterator) bool {
		if it.WhatIsNext() != jsoniter.StringValue {
			err = &RequestError{Reason: `"restrict" must be a list of attribute names`}
			return false
		}
		names = append(names, it.ReadString())
		return true
	})
	if err != nil {
		return err
	}
	req.Restrict(names...)
	return nil
}
