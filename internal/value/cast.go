package value

import (
	"encoding/hex"
	"fmt"
	"math"
	"net/netip"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// CastError reports a raw value that cannot be converted to a type.
type CastError struct {
	Type   Type
	Raw    Value
	Reason string
}

func (e *CastError) Error() string {
	return fmt.Sprintf("cannot cast %q to %s: %s", Text(e.Raw), e.Type, e.Reason)
}

// Cast converts a raw operand into the native representation of t.
//
// Accepted inputs per type:
//   - string: strings (NFC normalized), integers and addresses by their text
//   - integer: integers and decimal strings
//   - boolean: booleans, 1/0 and "1"/"0"/"true"/"false"
//   - ip: IPv4 values, dotted quads and their unsigned 32-bit integer form
//   - ip6: IPv6 values, RFC 4291 text and the 32 digit hex storage form
func Cast(t Type, raw Value) (Value, error) {
	if raw == nil {
		return nil, &CastError{Type: t, Reason: "missing value"}
	}

	switch t {
	case TypeString:
		return castString(raw)
	case TypeInteger:
		return castInteger(raw)
	case TypeBoolean:
		return castBoolean(raw)
	case TypeIP:
		return castIP(raw)
	case TypeIP6:
		return castIP6(raw)
	default:
		return nil, &CastError{Type: t, Raw: raw, Reason: "unknown type"}
	}
}

// ParseStored converts the raw text of an attrib_values row (or a scalar
// column rendered as text) into a value of type t.
func ParseStored(t Type, raw string) (Value, error) {
	return Cast(t, String(raw))
}

func castString(raw Value) (Value, error) {
	switch v := raw.(type) {
	case String:
		return String(norm.NFC.String(string(v))), nil
	case Bool:
		return nil, &CastError{Type: TypeString, Raw: raw, Reason: "boolean is not a string"}
	default:
		return String(v.String()), nil
	}
}

func castInteger(raw Value) (Value, error) {
	switch v := raw.(type) {
	case Int:
		return v, nil
	case String:
		n, err := strconv.ParseInt(strings.TrimSpace(string(v)), 10, 64)
		if err != nil {
			return nil, &CastError{Type: TypeInteger, Raw: raw, Reason: "not a decimal integer"}
		}
		return Int(n), nil
	default:
		return nil, &CastError{Type: TypeInteger, Raw: raw, Reason: "unsupported kind"}
	}
}

func castBoolean(raw Value) (Value, error) {
	switch v := raw.(type) {
	case Bool:
		return v, nil
	case Int:
		switch v {
		case 0:
			return Bool(false), nil
		case 1:
			return Bool(true), nil
		}
	case String:
		switch strings.ToLower(strings.TrimSpace(string(v))) {
		case "1", "true":
			return Bool(true), nil
		case "0", "false":
			return Bool(false), nil
		}
	}
	return nil, &CastError{Type: TypeBoolean, Raw: raw, Reason: "expected 1/0 or true/false"}
}

func castIP(raw Value) (Value, error) {
	switch v := raw.(type) {
	case IP:
		return v, nil
	case IP6:
		if a := netip.Addr(v); a.Is4In6() {
			return IP(a.Unmap()), nil
		}
	case Int:
		if v >= 0 && v <= math.MaxUint32 {
			return IPFromUint32(uint32(v)), nil
		}
	case String:
		s := strings.TrimSpace(string(v))
		if n, err := strconv.ParseUint(s, 10, 32); err == nil {
			return IPFromUint32(uint32(n)), nil
		}
		if a, err := netip.ParseAddr(s); err == nil {
			if a.Is4In6() {
				a = a.Unmap()
			}
			if a.Is4() {
				return IP(a), nil
			}
		}
	}
	return nil, &CastError{Type: TypeIP, Raw: raw, Reason: "not an IPv4 address"}
}

func castIP6(raw Value) (Value, error) {
	switch v := raw.(type) {
	case IP6:
		return v, nil
	case String:
		s := strings.TrimSpace(string(v))
		if len(s) == 32 {
			if b, err := hex.DecodeString(s); err == nil {
				return IP6(netip.AddrFrom16([16]byte(b))), nil
			}
		}
		if a, err := netip.ParseAddr(s); err == nil && a.Is6() {
			return IP6(a.WithZone("")), nil
		}
	}
	return nil, &CastError{Type: TypeIP6, Raw: raw, Reason: "not an IPv6 address"}
}
