package value

import (
	"fmt"
	"math"
)

// Literal returns the wire representation of v: string, int64 or bool.
// Addresses travel as their text form.
func Literal(v Value) any {
	switch val := v.(type) {
	case String:
		return string(val)
	case Int:
		return int64(val)
	case Bool:
		return bool(val)
	case IP, IP6:
		return val.String()
	default:
		return nil
	}
}

// numberLiteral is satisfied by encoding/json and jsoniter Number types.
type numberLiteral interface {
	Int64() (int64, error)
	String() string
}

// FromLiteral converts a decoded wire literal into an untyped raw value.
// Floats are rejected unless integral; null is rejected.
func FromLiteral(x any) (Value, error) {
	switch v := x.(type) {
	case nil:
		return nil, fmt.Errorf("null is not a value")
	case Value:
		return v, nil
	case string:
		return String(v), nil
	case bool:
		return Bool(v), nil
	case int:
		return Int(v), nil
	case int8:
		return Int(v), nil
	case int16:
		return Int(v), nil
	case int32:
		return Int(v), nil
	case int64:
		return Int(v), nil
	case uint8:
		return Int(v), nil
	case uint16:
		return Int(v), nil
	case uint32:
		return Int(v), nil
	case uint:
		return fromUint(uint64(v))
	case uint64:
		return fromUint(v)
	case float32:
		return fromFloat(float64(v))
	case float64:
		return fromFloat(v)
	case numberLiteral:
		n, err := v.Int64()
		if err != nil {
			return nil, fmt.Errorf("number %s is not an integer", v.String())
		}
		return Int(n), nil
	default:
		return nil, fmt.Errorf("unsupported literal type %T", x)
	}
}

func fromUint(n uint64) (Value, error) {
	if n > math.MaxInt64 {
		return nil, fmt.Errorf("integer %d overflows int64", n)
	}
	return Int(int64(n)), nil
}

func fromFloat(f float64) (Value, error) {
	if f != math.Trunc(f) || f > math.MaxInt64 || f < math.MinInt64 {
		return nil, fmt.Errorf("floats are not values: %v", f)
	}
	return Int(int64(f)), nil
}
