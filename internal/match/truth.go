package match

// Truth is an SQL truth value.
type Truth int8

const (
	False Truth = iota - 1
	Unknown
	True
)

// Of converts a boolean.
func Of(b bool) Truth {
	if b {
		return True
	}
	return False
}

// And is the minimum of t and o.
func (t Truth) And(o Truth) Truth {
	return min(t, o)
}

// Or is the maximum of t and o.
func (t Truth) Or(o Truth) Truth {
	return max(t, o)
}

// Not leaves Unknown unchanged.
func (t Truth) Not() Truth {
	return -t
}

func (t Truth) String() string {
	switch t {
	case True:
		return "TRUE"
	case False:
		return "FALSE"
	default:
		return "UNKNOWN"
	}
}
