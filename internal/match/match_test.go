package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/serverdb/internal/filter"
	"github.com/roach88/serverdb/internal/record"
	"github.com/roach88/serverdb/internal/schema"
	"github.com/roach88/serverdb/internal/testutil"
	"github.com/roach88/serverdb/internal/value"
)

func parse(t *testing.T, code string) filter.Filter {
	t.Helper()
	f, err := filter.ParseCode(code)
	require.NoError(t, err)
	return f
}

func fromMap(t *testing.T, id int64, attrs map[string]any) *record.Record {
	t.Helper()
	r, err := record.FromMap(testutil.Directory(t), id, attrs)
	require.NoError(t, err)
	return r
}

func TestMatch(t *testing.T) {
	m := New(testutil.Directory(t))

	full := fromMap(t, 1, map[string]any{
		"hostname":       "web01.example.com",
		"intern_ip":      "10.1.2.3",
		"servertype":     "web",
		"active":         true,
		"os":             "bookworm",
		"cores":          8,
		"monitored":      false,
		"primary_ip6":    "2001:db8::1",
		"tags":           []any{"prod", "frontend"},
		"ports":          []any{80, 443},
		"additional_ips": []any{"192.168.1.5", "8.8.8.8"},
	})
	bare := fromMap(t, 2, map[string]any{"hostname": "db01"})

	tests := []struct {
		attr string
		code string
		full bool
		bare bool
	}{
		{"intern_ip", `InsideNetwork("10.0.0.0/8")`, true, false},
		{"intern_ip", `InsideNetwork("192.168.0.0/16")`, false, false},
		{"intern_ip", `InsideNetwork("2001:db8::/32")`, false, false},
		{"intern_ip", `PrivateIP()`, true, false},
		{"intern_ip", `PublicIP()`, false, false},
		{"intern_ip", `Regexp("^10\\.1\\.")`, true, false},
		{"intern_ip", `Startswith("10.1")`, true, false},

		{"hostname", `ExactMatch("db01")`, false, true},
		{"hostname", `Not(ExactMatch("db01"))`, true, false},
		{"hostname", `Startswith("web")`, true, false},
		{"hostname", `Regexp("example")`, true, false},
		{"hostname", `Comparison("<", "m")`, false, true},
		{"hostname", `Any()`, false, false},
		{"hostname", `Any("db01", "db02")`, false, true},

		// boolean absence means false
		{"active", `ExactMatch(false)`, false, true},
		{"active", `ExactMatch(true)`, true, false},
		{"active", `Not(ExactMatch(false))`, true, false},
		{"monitored", `ExactMatch(false)`, true, true},
		{"monitored", `ExactMatch(true)`, false, false},
		{"monitored", `Startswith("0")`, false, false},

		{"servertype", `ExactMatch("web")`, true, false},
		{"servertype", `Regexp("^db")`, false, false},
		{"servertype", `Not(Regexp("^db"))`, true, false},
		{"servertype", `Regexp("^mail")`, false, false},
		{"servertype", `Not(Regexp("^mail"))`, true, true},
		{"servertype", `Empty()`, false, true},

		{"os", `Optional(ExactMatch("bookworm"))`, true, true},
		{"os", `Optional(ExactMatch("bullseye"))`, false, true},
		{"os", `Empty()`, false, true},
		{"os", `Not(Empty())`, true, false},
		{"os", `Not(ExactMatch("bullseye"))`, true, false},

		{"cores", `Between(8, 16)`, true, false},
		{"cores", `Between(1, 8)`, true, false},
		{"cores", `Between(9, 16)`, false, false},
		{"cores", `Comparison(">=", "8")`, true, false},
		{"cores", `Startswith("8")`, true, false},
		{"cores", `Startswith("x")`, false, false},

		{"primary_ip6", `InsideNetwork("2001:db8::/32")`, true, false},
		{"primary_ip6", `InsideNetwork("10.0.0.0/8")`, false, false},
		{"primary_ip6", `Startswith("2001:db8")`, true, false},

		{"tags", `ExactMatch("prod")`, true, false},
		{"tags", `And(ExactMatch("prod"), ExactMatch("frontend"))`, false, false},
		{"tags", `Or(ExactMatch("prod"), ExactMatch("x"))`, true, false},
		{"tags", `Not(ExactMatch("prod"))`, false, false},
		{"tags", `Not(ExactMatch("staging"))`, true, false},
		{"tags", `Empty()`, false, true},
		{"tags", `Not(Empty())`, true, false},
		{"tags", `Not(Not(Empty()))`, false, true},
		{"tags", `Optional(ExactMatch("prod"))`, true, true},
		{"tags", `Optional(ExactMatch("staging"))`, false, true},
		{"tags", `Or(Empty(), ExactMatch("prod"))`, true, true},
		{"tags", `Or(Empty(), ExactMatch("staging"))`, false, true},
		{"tags", `And(Optional(ExactMatch("prod")))`, true, true},
		{"os", `Or(Empty(), ExactMatch("bookworm"))`, true, true},
		{"os", `Or(Empty(), ExactMatch("bullseye"))`, false, true},
		{"os", `And(Optional(ExactMatch("bullseye")))`, false, true},
		{"os", `And(Optional(ExactMatch("bookworm")), Not(Empty()))`, true, false},

		{"ports", `Any(22, 443)`, true, false},
		{"ports", `Comparison(">", 1000)`, false, false},

		{"additional_ips", `PublicIP()`, false, false},
		{"additional_ips", `PrivateIP()`, true, false},
		{"additional_ips", `Not(PrivateIP())`, false, false},
		{"additional_ips", `InsideNetwork("8.8.0.0/16")`, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.attr+"/"+tt.code, func(t *testing.T) {
			f := parse(t, tt.code)

			got, err := m.Match(full, tt.attr, f)
			require.NoError(t, err)
			assert.Equal(t, tt.full, got, "full record")

			got, err = m.Match(bare, tt.attr, f)
			require.NoError(t, err)
			assert.Equal(t, tt.bare, got, "bare record")
		})
	}
}

func TestMatch_PublicIPMulti(t *testing.T) {
	m := New(testutil.Directory(t))

	public := fromMap(t, 1, map[string]any{"additional_ips": []any{"8.8.8.8"}})
	private := fromMap(t, 2, map[string]any{"additional_ips": []any{"10.0.0.1"}})
	mixed := fromMap(t, 3, map[string]any{"additional_ips": []any{"10.0.0.1", "8.8.8.8"}})

	f := &filter.PublicIP{}
	for rec, want := range map[*record.Record]bool{public: true, private: false, mixed: false} {
		got, err := m.Match(rec, "additional_ips", f)
		require.NoError(t, err)
		assert.Equal(t, want, got, "record %d", rec.ID())
	}
}

func TestMatch_Errors(t *testing.T) {
	m := New(testutil.Directory(t))
	rec := fromMap(t, 1, nil)

	_, err := m.Match(rec, "color", &filter.Empty{})
	assert.True(t, schema.IsUnknownAttribute(err))

	_, err = m.Match(rec, "cores", filter.NewExactMatch(value.String("eight")))
	assert.True(t, filter.IsTypeMismatch(err))
}

func TestSelectAndCheck(t *testing.T) {
	m := New(testutil.Directory(t))
	recs := []*record.Record{
		fromMap(t, 1, map[string]any{"hostname": "web01", "servertype": "web", "tags": []any{"prod"}}),
		fromMap(t, 2, map[string]any{"hostname": "web02", "servertype": "web"}),
		fromMap(t, 3, map[string]any{"hostname": "db01", "servertype": "db_master", "tags": []any{"prod"}}),
	}

	req := map[string]filter.Filter{
		"servertype": parse(t, `ExactMatch("web")`),
		"tags":       parse(t, `ExactMatch("prod")`),
	}
	ids, err := m.Select(recs, req)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids)

	violations, err := m.Check(recs[2], req)
	require.NoError(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, "servertype", violations[0].Attribute)
	assert.Equal(t, `ExactMatch("web")`, violations[0].Filter)
	assert.Equal(t, `servertype: ExactMatch("web") does not hold for [db_master]`, violations[0].String())

	violations, err = m.Check(recs[0], req)
	require.NoError(t, err)
	assert.Empty(t, violations)

	_, err = m.Check(recs[0], map[string]filter.Filter{"color": &filter.Empty{}})
	assert.Error(t, err)
}

func TestTruth(t *testing.T) {
	assert.Equal(t, Unknown, True.And(Unknown))
	assert.Equal(t, False, False.And(Unknown))
	assert.Equal(t, True, True.Or(Unknown))
	assert.Equal(t, Unknown, False.Or(Unknown))
	assert.Equal(t, Unknown, Unknown.Not())
	assert.Equal(t, False, True.Not())
	assert.Equal(t, "UNKNOWN", Unknown.String())
}

func TestEval_NullSemantics(t *testing.T) {
	d := testutil.Directory(t)
	hostname := testutil.Attr(t, d, "hostname")

	// NOT (NULL REGEXP 'x') is UNKNOWN, so an absent scalar never matches a
	// negated leaf.
	assert.False(t, Eval(hostname, nil, parse(t, `Not(Regexp("x"))`)))
	assert.True(t, Eval(hostname, nil, parse(t, `Or(Empty(), Regexp("x"))`)))
	assert.False(t, Eval(hostname, nil, parse(t, `Not(And(Empty(), Regexp("x")))`)))
}
