package filter

import (
	"github.com/roach88/serverdb/internal/value"
)

// hashDomain separates filter hashes from any other hash over the same
// canonical JSON.
const hashDomain = "serverdb/filter/v1"

// Equal reports structural equality. Any compares as a set; And and Or
// compare children in order.
func Equal(a, b Filter) bool {
	switch x := a.(type) {
	case *ExactMatch:
		y, ok := b.(*ExactMatch)
		return ok && value.Equal(x.Value, y.Value)
	case *Regexp:
		y, ok := b.(*Regexp)
		return ok && x.Pattern == y.Pattern
	case *Comparison:
		y, ok := b.(*Comparison)
		return ok && x.Op == y.Op && value.Equal(x.Value, y.Value)
	case *Any:
		y, ok := b.(*Any)
		return ok && value.NewSet(x.Values...).Equal(value.NewSet(y.Values...))
	case *And:
		y, ok := b.(*And)
		return ok && equalAll(x.Filters, y.Filters)
	case *Or:
		y, ok := b.(*Or)
		return ok && equalAll(x.Filters, y.Filters)
	case *Between:
		y, ok := b.(*Between)
		return ok && value.Equal(x.A, y.A) && value.Equal(x.B, y.B)
	case *Not:
		y, ok := b.(*Not)
		return ok && Equal(x.Filter, y.Filter)
	case *Startswith:
		y, ok := b.(*Startswith)
		return ok && value.Equal(x.Value, y.Value)
	case *InsideNetwork:
		y, ok := b.(*InsideNetwork)
		if !ok || len(x.Networks) != len(y.Networks) {
			return false
		}
		for i := range x.Networks {
			if x.Networks[i] != y.Networks[i] {
				return false
			}
		}
		return true
	case *PrivateIP:
		_, ok := b.(*PrivateIP)
		return ok
	case *PublicIP:
		_, ok := b.(*PublicIP)
		return ok
	case *Optional:
		y, ok := b.(*Optional)
		return ok && Equal(x.Filter, y.Filter)
	case *Empty:
		_, ok := b.(*Empty)
		return ok
	default:
		return false
	}
}

func equalAll(a, b []Filter) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// Hash returns a stable SHA-256 digest of f computed over the canonical
// JSON of its wire object. Equal filters hash equally.
func Hash(f Filter) (string, error) {
	data, err := value.MarshalCanonical(ToObject(f))
	if err != nil {
		return "", err
	}
	return value.HashWithDomain(hashDomain, data), nil
}
