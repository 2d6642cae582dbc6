package value

import (
	"cmp"
	"net/netip"
	"slices"
	"strings"
)

// Compare orders two values of the same kind.
// The boolean result is false when the kinds differ and no order exists.
func Compare(a, b Value) (int, bool) {
	switch x := a.(type) {
	case String:
		if y, ok := b.(String); ok {
			return strings.Compare(string(x), string(y)), true
		}
	case Int:
		if y, ok := b.(Int); ok {
			return cmp.Compare(x, y), true
		}
	case Bool:
		if y, ok := b.(Bool); ok {
			return cmp.Compare(boolRank(x), boolRank(y)), true
		}
	case IP:
		if y, ok := b.(IP); ok {
			return netip.Addr(x).Compare(netip.Addr(y)), true
		}
	case IP6:
		if y, ok := b.(IP6); ok {
			return netip.Addr(x).Compare(netip.Addr(y)), true
		}
	}
	return 0, false
}

// Equal reports whether a and b are the same kind and value.
func Equal(a, b Value) bool {
	c, ok := Compare(a, b)
	return ok && c == 0
}

// Order is a total order over all values: by kind first, then by value.
// Used wherever a deterministic order of mixed values is needed.
func Order(a, b Value) int {
	if ka, kb := kindRank(a), kindRank(b); ka != kb {
		return cmp.Compare(ka, kb)
	}
	c, _ := Compare(a, b)
	return c
}

// Sort sorts values in place by Order.
func Sort(vals []Value) {
	slices.SortFunc(vals, Order)
}

func boolRank(b Bool) int {
	if b {
		return 1
	}
	return 0
}

func kindRank(v Value) int {
	switch v.(type) {
	case Bool:
		return 0
	case Int:
		return 1
	case String:
		return 2
	case IP:
		return 3
	case IP6:
		return 4
	default:
		return 5
	}
}
