package value

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"net/netip"
	"strconv"
)

// Type is the native type of an attribute.
type Type string

const (
	TypeString  Type = "string"
	TypeInteger Type = "integer"
	TypeBoolean Type = "boolean"
	TypeIP      Type = "ip"
	TypeIP6     Type = "ip6"
)

// ParseType validates a type name.
func ParseType(s string) (Type, error) {
	switch t := Type(s); t {
	case TypeString, TypeInteger, TypeBoolean, TypeIP, TypeIP6:
		return t, nil
	default:
		return "", fmt.Errorf("unknown value type %q", s)
	}
}

// IsAddress reports whether values of this type are network addresses.
func (t Type) IsAddress() bool {
	return t == TypeIP || t == TypeIP6
}

// Value is a sealed interface over the attribute value kinds.
// Only String, Int, Bool, IP and IP6 implement it.
type Value interface {
	isValue()
	fmt.Stringer
}

// String is a string value.
type String string

func (String) isValue() {}

func (v String) String() string { return string(v) }

// Int is an integer value. Always int64.
type Int int64

func (Int) isValue() {}

func (v Int) String() string { return strconv.FormatInt(int64(v), 10) }

// Bool is a boolean value.
type Bool bool

func (Bool) isValue() {}

func (v Bool) String() string { return strconv.FormatBool(bool(v)) }

// IP is an IPv4 address.
type IP netip.Addr

func (IP) isValue() {}

func (v IP) String() string { return netip.Addr(v).String() }

// Addr returns the underlying address.
func (v IP) Addr() netip.Addr { return netip.Addr(v) }

// Uint32 returns the address as the integer stored in the database.
func (v IP) Uint32() uint32 {
	b := netip.Addr(v).As4()
	return binary.BigEndian.Uint32(b[:])
}

// IP6 is an IPv6 address.
type IP6 netip.Addr

func (IP6) isValue() {}

func (v IP6) String() string { return netip.Addr(v).String() }

// Addr returns the underlying address.
func (v IP6) Addr() netip.Addr { return netip.Addr(v) }

// Hex returns the 32 digit lowercase hex form stored in the database.
// Lexicographic order of the hex form equals numeric address order.
func (v IP6) Hex() string {
	b := netip.Addr(v).As16()
	return hex.EncodeToString(b[:])
}

// IPFromUint32 builds an IPv4 value from its integer form.
func IPFromUint32(n uint32) IP {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], n)
	return IP(netip.AddrFrom4(b))
}

// MustIP parses an IPv4 address and panics on error.
// Use only in tests or with literal input.
func MustIP(s string) IP {
	v, err := Cast(TypeIP, String(s))
	if err != nil {
		panic(err)
	}
	return v.(IP)
}

// MustIP6 parses an IPv6 address and panics on error.
// Use only in tests or with literal input.
func MustIP6(s string) IP6 {
	v, err := Cast(TypeIP6, String(s))
	if err != nil {
		panic(err)
	}
	return v.(IP6)
}

// Text returns the textual form the database exposes for v: dotted quad
// for IPv4 (INET_NTOA), RFC 5952 for IPv6, decimal for integers and
// "1"/"0" for booleans. Regexp and Startswith match against this form.
func Text(v Value) string {
	switch val := v.(type) {
	case Bool:
		if val {
			return "1"
		}
		return "0"
	case nil:
		return ""
	default:
		return v.String()
	}
}

// TypeOf returns the attribute type a value kind belongs to.
func TypeOf(v Value) Type {
	switch v.(type) {
	case Int:
		return TypeInteger
	case Bool:
		return TypeBoolean
	case IP:
		return TypeIP
	case IP6:
		return TypeIP6
	default:
		return TypeString
	}
}
