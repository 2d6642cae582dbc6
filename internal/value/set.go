package value

// Set is an unordered collection of distinct values.
// The zero value is an empty set ready to use.
type Set struct {
	m map[Value]struct{}
}

// NewSet creates a set holding vals.
func NewSet(vals ...Value) *Set {
	s := &Set{}
	for _, v := range vals {
		s.Add(v)
	}
	return s
}

// Add inserts v. Adding an existing value is a no-op.
func (s *Set) Add(v Value) {
	if s.m == nil {
		s.m = make(map[Value]struct{})
	}
	s.m[v] = struct{}{}
}

// Contains reports membership.
func (s *Set) Contains(v Value) bool {
	if s == nil {
		return false
	}
	_, ok := s.m[v]
	return ok
}

// Len returns the number of elements.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.m)
}

// Values returns the elements sorted by Order.
func (s *Set) Values() []Value {
	if s == nil {
		return nil
	}
	out := make([]Value, 0, len(s.m))
	for v := range s.m {
		out = append(out, v)
	}
	Sort(out)
	return out
}

// Equal reports whether both sets hold the same elements.
func (s *Set) Equal(o *Set) bool {
	if s.Len() != o.Len() {
		return false
	}
	for v := range s.m {
		if !o.Contains(v) {
			return false
		}
	}
	return true
}
