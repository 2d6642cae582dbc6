package filter

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/roach88/serverdb/internal/value"
)

// wireJSON decodes numbers as json.Number so integers survive intact and
// floats can be rejected.
var wireJSON = jsoniter.Config{
	EscapeHTML:             false,
	SortMapKeys:            true,
	UseNumber:              true,
	ValidateJsonRawMessage: true,
}.Froze()

// ToObject converts f to its wire object: a map with a "name" key and the
// variant's keys. Values are string, int64 or bool literals; addresses
// travel as their text, so a decoded tree holds raw operands until it is
// typecast again.
func ToObject(f Filter) map[string]any {
	switch n := f.(type) {
	case *ExactMatch:
		return map[string]any{"name": "exactmatch", "value": value.Literal(n.Value)}
	case *Regexp:
		return map[string]any{"name": "regexp", "regexp": n.Pattern}
	case *Comparison:
		return map[string]any{"name": "comparison", "comparator": n.Op, "value": value.Literal(n.Value)}
	case *Any:
		vals := value.NewSet(n.Values...).Values()
		lits := make([]any, len(vals))
		for i, v := range vals {
			lits[i] = value.Literal(v)
		}
		return map[string]any{"name": "any", "values": lits}
	case *And:
		return map[string]any{"name": "and", "filters": objects(n.Filters)}
	case *Or:
		return map[string]any{"name": "or", "filters": objects(n.Filters)}
	case *Between:
		return map[string]any{"name": "between", "a": value.Literal(n.A), "b": value.Literal(n.B)}
	case *Not:
		return map[string]any{"name": "not", "filter": ToObject(n.Filter)}
	case *Startswith:
		return map[string]any{"name": "startswith", "value": value.Literal(n.Value)}
	case *InsideNetwork:
		nets := make([]any, len(n.Networks))
		for i, p := range n.Networks {
			nets[i] = p.String()
		}
		return map[string]any{"name": "insidenetwork", "networks": nets}
	case *PrivateIP:
		return map[string]any{"name": "privateip"}
	case *PublicIP:
		return map[string]any{"name": "publicip"}
	case *Optional:
		return map[string]any{"name": "optional", "filter": ToObject(n.Filter)}
	case *Empty:
		return map[string]any{"name": "empty"}
	default:
		panic(fmt.Sprintf("filter: unknown variant %T", f))
	}
}

func objects(fs []Filter) []any {
	out := make([]any, len(fs))
	for i, f := range fs {
		out[i] = ToObject(f)
	}
	return out
}

// FromObject decodes a wire object. Unknown names and missing or
// mistyped keys fail with INVALID_FILTER_OBJECT naming the variant.
func FromObject(obj map[string]any) (Filter, error) {
	rawName, ok := obj["name"]
	if !ok {
		return nil, invalidObject("", "missing name")
	}
	name, ok := rawName.(string)
	if !ok {
		return nil, invalidObject("", "name must be a string, got %T", rawName)
	}

	switch name {
	case "exactmatch":
		v, err := literalKey(obj, name, "value")
		if err != nil {
			return nil, err
		}
		return NewExactMatch(v), nil

	case "regexp":
		pattern, err := stringKey(obj, name, "regexp")
		if err != nil {
			return nil, err
		}
		r, err := NewRegexp(pattern)
		if err != nil {
			return nil, err
		}
		return r, nil

	case "comparison":
		op, err := stringKey(obj, name, "comparator")
		if err != nil {
			return nil, err
		}
		v, err := literalKey(obj, name, "value")
		if err != nil {
			return nil, err
		}
		c, err := NewComparison(op, v)
		if err != nil {
			return nil, err
		}
		return c, nil

	case "any":
		items, err := listKey(obj, name, "values")
		if err != nil {
			return nil, err
		}
		vals := make([]value.Value, 0, len(items))
		for i, item := range items {
			v, err := value.FromLiteral(item)
			if err != nil {
				return nil, invalidObject(name, "values[%d]: %v", i, err)
			}
			vals = append(vals, v)
		}
		return NewAny(vals...), nil

	case "and", "or":
		items, err := listKey(obj, name, "filters")
		if err != nil {
			return nil, err
		}
		children := make([]Filter, 0, len(items))
		for i, item := range items {
			child, err := childObject(item, name, fmt.Sprintf("filters[%d]", i))
			if err != nil {
				return nil, err
			}
			children = append(children, child)
		}
		if len(children) == 0 {
			return nil, &Error{Code: ErrCodeEmptyCombinator, Filter: name, Reason: "needs at least one filter"}
		}
		if name == "and" {
			return &And{Filters: children}, nil
		}
		return &Or{Filters: children}, nil

	case "between":
		a, err := literalKey(obj, name, "a")
		if err != nil {
			return nil, err
		}
		b, err := literalKey(obj, name, "b")
		if err != nil {
			return nil, err
		}
		return NewBetween(a, b), nil

	case "not", "optional":
		raw, ok := obj["filter"]
		if !ok {
			return nil, invalidObject(name, "missing key filter")
		}
		child, err := childObject(raw, name, "filter")
		if err != nil {
			return nil, err
		}
		if name == "not" {
			return NewNot(child), nil
		}
		return NewOptional(child), nil

	case "startswith":
		v, err := literalKey(obj, name, "value")
		if err != nil {
			return nil, err
		}
		if _, isBool := v.(value.Bool); isBool {
			return nil, invalidObject(name, "value must be a string or a number")
		}
		return NewStartswith(v), nil

	case "insidenetwork":
		items, err := listKey(obj, name, "networks")
		if err != nil {
			return nil, err
		}
		nets := make([]string, 0, len(items))
		for i, item := range items {
			s, ok := item.(string)
			if !ok {
				return nil, invalidObject(name, "networks[%d] must be a string, got %T", i, item)
			}
			nets = append(nets, s)
		}
		in, err := NewInsideNetwork(nets...)
		if err != nil {
			return nil, err
		}
		return in, nil

	case "privateip":
		return &PrivateIP{}, nil
	case "publicip":
		return &PublicIP{}, nil
	case "empty":
		return &Empty{}, nil

	default:
		return nil, invalidObject(name, "no such filter")
	}
}

func literalKey(obj map[string]any, name, key string) (value.Value, error) {
	raw, ok := obj[key]
	if !ok {
		return nil, invalidObject(name, "missing key %s", key)
	}
	v, err := value.FromLiteral(raw)
	if err != nil {
		return nil, invalidObject(name, "%s: %v", key, err)
	}
	return v, nil
}

func stringKey(obj map[string]any, name, key string) (string, error) {
	raw, ok := obj[key]
	if !ok {
		return "", invalidObject(name, "missing key %s", key)
	}
	s, ok := raw.(string)
	if !ok {
		return "", invalidObject(name, "%s must be a string, got %T", key, raw)
	}
	return s, nil
}

func listKey(obj map[string]any, name, key string) ([]any, error) {
	raw, ok := obj[key]
	if !ok {
		return nil, invalidObject(name, "missing key %s", key)
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, invalidObject(name, "%s must be a list, got %T", key, raw)
	}
	return items, nil
}

func childObject(raw any, parent, key string) (Filter, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, invalidObject(parent, "%s must be a filter object, got %T", key, raw)
	}
	return FromObject(obj)
}

// Marshal encodes f as a JSON wire object.
func Marshal(f Filter) ([]byte, error) {
	return wireJSON.Marshal(ToObject(f))
}

// Unmarshal decodes a JSON wire object.
func Unmarshal(data []byte) (Filter, error) {
	var raw any
	if err := wireJSON.Unmarshal(data, &raw); err != nil {
		return nil, invalidObject("", "malformed JSON: %v", err)
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, invalidObject("", "filter must be a JSON object, got %T", raw)
	}
	return FromObject(obj)
}

// EncodeMsgpack encodes f as a msgpack map with the same shape as the
// JSON wire object.
func EncodeMsgpack(f Filter) ([]byte, error) {
	return msgpack.Marshal(ToObject(f))
}

// DecodeMsgpack decodes a msgpack wire object.
func DecodeMsgpack(data []byte) (Filter, error) {
	var raw any
	if err := msgpack.Unmarshal(data, &raw); err != nil {
		return nil, invalidObject("", "malformed msgpack: %v", err)
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, invalidObject("", "filter must be a msgpack map, got %T", raw)
	}
	return FromObject(obj)
}
