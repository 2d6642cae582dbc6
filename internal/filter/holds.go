package filter

import (
	"net/netip"
	"strconv"
	"strings"

	"github.com/roach88/serverdb/internal/value"
)

// Holds evaluates a leaf filter against one present, typed value.
//
// The rules mirror the compiled SQL: Regexp and Startswith look at
// value.Text, Startswith on integers compares the canonical decimal form
// of the prefix and never holds when the prefix is not an integer,
// Startswith on booleans never holds, InsideNetwork only holds for
// addresses of the network's family. Composite filters are evaluated
// two-valued (Optional and Empty treat v as present).
func Holds(f Filter, v value.Value) bool {
	switch n := f.(type) {
	case *ExactMatch:
		return value.Equal(v, n.Value)

	case *Regexp:
		return n.MatchString(value.Text(v))

	case *Comparison:
		c, ok := value.Compare(v, n.Value)
		if !ok {
			return false
		}
		switch n.Op {
		case "<":
			return c < 0
		case ">":
			return c > 0
		case "<=":
			return c <= 0
		case ">=":
			return c >= 0
		}
		return false

	case *Any:
		for _, x := range n.Values {
			if value.Equal(v, x) {
				return true
			}
		}
		return false

	case *Between:
		lo, ok1 := value.Compare(v, n.A)
		hi, ok2 := value.Compare(v, n.B)
		return ok1 && ok2 && lo >= 0 && hi <= 0

	case *Startswith:
		prefix, ok := StartswithPrefix(n, value.TypeOf(v))
		return ok && strings.HasPrefix(value.Text(v), prefix)

	case *InsideNetwork:
		for _, p := range n.Networks {
			if Contains(p, v) {
				return true
			}
		}
		return false

	case *PrivateIP, *PublicIP:
		return Holds(Expand(f), v)

	case *And:
		for _, c := range n.Filters {
			if !Holds(c, v) {
				return false
			}
		}
		return true

	case *Or:
		for _, c := range n.Filters {
			if Holds(c, v) {
				return true
			}
		}
		return false

	case *Not:
		return !Holds(n.Filter, v)

	case *Optional:
		return Holds(n.Filter, v)

	case *Empty:
		return false

	default:
		return false
	}
}

// StartswithPrefix returns the text a value of type t must start with for
// s to hold. ok is false when s can never hold for that type.
func StartswithPrefix(s *Startswith, t value.Type) (prefix string, ok bool) {
	text := value.Text(s.Value)
	switch t {
	case value.TypeInteger:
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return "", false
		}
		return strconv.FormatInt(n, 10), true
	case value.TypeBoolean:
		return "", false
	default:
		return text, true
	}
}

// Contains reports whether v is an address of p's family inside p.
func Contains(p netip.Prefix, v value.Value) bool {
	switch a := v.(type) {
	case value.IP:
		return p.Addr().Is4() && p.Contains(a.Addr())
	case value.IP6:
		return p.Addr().Is6() && p.Contains(a.Addr())
	default:
		return false
	}
}

// Range returns the first and last address of p.
func Range(p netip.Prefix) (first, last netip.Addr) {
	first = p.Masked().Addr()
	b := first.AsSlice()
	for i := p.Bits(); i < len(b)*8; i++ {
		b[i/8] |= 0x80 >> (i % 8)
	}
	last, _ = netip.AddrFromSlice(b)
	return first, last
}
