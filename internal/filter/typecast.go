package filter

import (
	"errors"
	"fmt"

	"github.com/roach88/serverdb/internal/schema"
	"github.com/roach88/serverdb/internal/value"
)

// Typecast returns a copy of f with every operand converted to the native
// type of attr. Startswith prefixes become their textual form. Empty,
// InsideNetwork, PrivateIP and PublicIP carry no typed operand and are
// returned unchanged; a Regexp not built by NewRegexp is compiled here and
// fails with INVALID_PATTERN. A failed conversion is a TYPE_MISMATCH naming
// the attribute and the offending value.
func Typecast(f Filter, attr *schema.Attribute) (Filter, error) {
	switch n := f.(type) {
	case *ExactMatch:
		v, err := cast(attr, n.Value)
		if err != nil {
			return nil, err
		}
		return &ExactMatch{Value: v}, nil

	case *Comparison:
		v, err := cast(attr, n.Value)
		if err != nil {
			return nil, err
		}
		return &Comparison{Op: n.Op, Value: v}, nil

	case *Any:
		vals := make([]value.Value, 0, len(n.Values))
		for _, raw := range n.Values {
			v, err := cast(attr, raw)
			if err != nil {
				return nil, err
			}
			vals = append(vals, v)
		}
		return NewAny(vals...), nil

	case *Between:
		a, err := cast(attr, n.A)
		if err != nil {
			return nil, err
		}
		b, err := cast(attr, n.B)
		if err != nil {
			return nil, err
		}
		return &Between{A: a, B: b}, nil

	case *And:
		children, err := typecastAll(n.Filters, attr)
		if err != nil {
			return nil, err
		}
		return &And{Filters: children}, nil

	case *Or:
		children, err := typecastAll(n.Filters, attr)
		if err != nil {
			return nil, err
		}
		return &Or{Filters: children}, nil

	case *Not:
		child, err := Typecast(n.Filter, attr)
		if err != nil {
			return nil, err
		}
		return &Not{Filter: child}, nil

	case *Optional:
		child, err := Typecast(n.Filter, attr)
		if err != nil {
			return nil, err
		}
		return &Optional{Filter: child}, nil

	case *Startswith:
		if n.Value == nil {
			return nil, &Error{Code: ErrCodeTypeMismatch, Attribute: attr.Name, Reason: "missing prefix"}
		}
		return &Startswith{Value: value.String(value.Text(n.Value))}, nil

	case *Regexp:
		if n.re != nil {
			return n, nil
		}
		re, err := NewRegexp(n.Pattern)
		if err != nil {
			var fe *Error
			if errors.As(err, &fe) {
				fe.Attribute = attr.Name
			}
			return nil, err
		}
		return re, nil

	case *Empty, *InsideNetwork, *PrivateIP, *PublicIP:
		return f, nil

	default:
		return nil, fmt.Errorf("typecast: unknown filter variant %T", f)
	}
}

func typecastAll(fs []Filter, attr *schema.Attribute) ([]Filter, error) {
	out := make([]Filter, len(fs))
	for i, f := range fs {
		c, err := Typecast(f, attr)
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}

func cast(attr *schema.Attribute, raw value.Value) (value.Value, error) {
	v, err := value.Cast(attr.Type, raw)
	if err == nil {
		return v, nil
	}
	fe := &Error{
		Code:      ErrCodeTypeMismatch,
		Attribute: attr.Name,
		Value:     value.Text(raw),
		Reason:    err.Error(),
		Err:       err,
	}
	var ce *value.CastError
	if errors.As(err, &ce) {
		fe.Reason = fmt.Sprintf("not a valid %s: %s", ce.Type, ce.Reason)
	}
	return nil, fe
}
