package filter

import (
	"strconv"
	"strings"

	"github.com/roach88/serverdb/internal/value"
)

// Code renders f as constructor calls with literal arguments, e.g.
//
//	And(ExactMatch("web01"), Not(Empty()))
//	InsideNetwork("10.0.0.0/8", "192.168.0.0/16")
//	Comparison(">=", 4)
//
// Strings are Go-quoted; typed addresses render as IP("...") and IP6("...").
// The output is deterministic and ParseCode reads it back.
func Code(f Filter) string {
	var b strings.Builder
	writeCode(&b, f)
	return b.String()
}

func writeCode(b *strings.Builder, f Filter) {
	switch n := f.(type) {
	case *ExactMatch:
		call(b, "ExactMatch", func() { writeLiteral(b, n.Value) })
	case *Regexp:
		call(b, "Regexp", func() { b.WriteString(strconv.Quote(n.Pattern)) })
	case *Comparison:
		call(b, "Comparison", func() {
			b.WriteString(strconv.Quote(n.Op))
			b.WriteString(", ")
			writeLiteral(b, n.Value)
		})
	case *Any:
		call(b, "Any", func() {
			for i, v := range n.Values {
				if i > 0 {
					b.WriteString(", ")
				}
				writeLiteral(b, v)
			}
		})
	case *And:
		call(b, "And", func() { writeChildren(b, n.Filters) })
	case *Or:
		call(b, "Or", func() { writeChildren(b, n.Filters) })
	case *Between:
		call(b, "Between", func() {
			writeLiteral(b, n.A)
			b.WriteString(", ")
			writeLiteral(b, n.B)
		})
	case *Not:
		call(b, "Not", func() { writeCode(b, n.Filter) })
	case *Startswith:
		call(b, "Startswith", func() { writeLiteral(b, n.Value) })
	case *InsideNetwork:
		call(b, "InsideNetwork", func() {
			for i, p := range n.Networks {
				if i > 0 {
					b.WriteString(", ")
				}
				b.WriteString(strconv.Quote(p.String()))
			}
		})
	case *PrivateIP:
		b.WriteString("PrivateIP()")
	case *PublicIP:
		b.WriteString("PublicIP()")
	case *Optional:
		call(b, "Optional", func() { writeCode(b, n.Filter) })
	case *Empty:
		b.WriteString("Empty()")
	default:
		b.WriteString("<invalid>")
	}
}

func call(b *strings.Builder, name string, args func()) {
	b.WriteString(name)
	b.WriteByte('(')
	args()
	b.WriteByte(')')
}

func writeChildren(b *strings.Builder, fs []Filter) {
	for i, f := range fs {
		if i > 0 {
			b.WriteString(", ")
		}
		writeCode(b, f)
	}
}

func writeLiteral(b *strings.Builder, v value.Value) {
	switch x := v.(type) {
	case value.String:
		b.WriteString(strconv.Quote(string(x)))
	case value.Int:
		b.WriteString(x.String())
	case value.Bool:
		b.WriteString(x.String())
	case value.IP:
		call(b, "IP", func() { b.WriteString(strconv.Quote(x.String())) })
	case value.IP6:
		call(b, "IP6", func() { b.WriteString(strconv.Quote(x.String())) })
	default:
		b.WriteString("null")
	}
}
