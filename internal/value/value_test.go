package value

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCast(t *testing.T) {
	tests := []struct {
		name string
		typ  Type
		raw  Value
		want Value
	}{
		{"string passthrough", TypeString, String("web01"), String("web01")},
		{"string from int", TypeString, Int(42), String("42")},
		{"string NFC normalized", TypeString, String("é"), String("é")},
		{"integer from string", TypeInteger, String(" 17 "), Int(17)},
		{"integer passthrough", TypeInteger, Int(-3), Int(-3)},
		{"boolean from 1", TypeBoolean, String("1"), Bool(true)},
		{"boolean from 0", TypeBoolean, String("0"), Bool(false)},
		{"boolean from word", TypeBoolean, String("True"), Bool(true)},
		{"boolean from int", TypeBoolean, Int(0), Bool(false)},
		{"ip from dotted", TypeIP, String("10.1.2.3"), MustIP("10.1.2.3")},
		{"ip from stored integer", TypeIP, String("167838211"), MustIP("10.1.2.3")},
		{"ip from int", TypeIP, Int(167838211), MustIP("10.1.2.3")},
		{"ip6 from text", TypeIP6, String("2001:db8::1"), MustIP6("2001:db8::1")},
		{"ip6 from hex", TypeIP6, String("20010db8000000000000000000000001"), MustIP6("2001:db8::1")},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Cast(tc.typ, tc.raw)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCast_Errors(t *testing.T) {
	tests := []struct {
		name string
		typ  Type
		raw  Value
	}{
		{"integer from word", TypeInteger, String("abc")},
		{"integer from bool", TypeInteger, Bool(true)},
		{"boolean from 2", TypeBoolean, Int(2)},
		{"boolean from word", TypeBoolean, String("yes")},
		{"ip from v6", TypeIP, String("2001:db8::1")},
		{"ip out of range", TypeIP, Int(1 << 33)},
		{"ip6 from v4", TypeIP6, String("10.0.0.1")},
		{"string from bool", TypeString, Bool(true)},
		{"missing", TypeString, nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Cast(tc.typ, tc.raw)
			require.Error(t, err)
			var castErr *CastError
			assert.ErrorAs(t, err, &castErr)
			assert.Equal(t, tc.typ, castErr.Type)
		})
	}
}

func TestText(t *testing.T) {
	assert.Equal(t, "1", Text(Bool(true)))
	assert.Equal(t, "0", Text(Bool(false)))
	assert.Equal(t, "10.0.0.1", Text(MustIP("10.0.0.1")))
	assert.Equal(t, "2001:db8::1", Text(MustIP6("2001:db8::1")))
	assert.Equal(t, "-5", Text(Int(-5)))
	assert.Equal(t, "true", Bool(true).String())
}

func TestIPForms(t *testing.T) {
	ip := MustIP("10.0.0.1")
	assert.Equal(t, uint32(167772161), ip.Uint32())
	assert.Equal(t, ip, IPFromUint32(167772161))

	ip6 := MustIP6("::1")
	assert.Equal(t, "00000000000000000000000000000001", ip6.Hex())
}

func TestCompare(t *testing.T) {
	c, ok := Compare(Int(1), Int(2))
	require.True(t, ok)
	assert.Equal(t, -1, c)

	c, ok = Compare(MustIP("10.0.0.2"), MustIP("10.0.0.1"))
	require.True(t, ok)
	assert.Equal(t, 1, c)

	c, ok = Compare(Bool(false), Bool(true))
	require.True(t, ok)
	assert.Equal(t, -1, c)

	_, ok = Compare(Int(1), String("1"))
	assert.False(t, ok, "different kinds have no order")

	assert.True(t, Equal(String("a"), String("a")))
	assert.False(t, Equal(Int(1), String("1")))
}

func TestSet(t *testing.T) {
	s := NewSet(String("b"), String("a"), String("b"))
	assert.Equal(t, 2, s.Len())
	assert.True(t, s.Contains(String("a")))
	assert.False(t, s.Contains(Int(1)))
	assert.Equal(t, []Value{String("a"), String("b")}, s.Values())

	var empty *Set
	assert.Equal(t, 0, empty.Len())
	assert.False(t, empty.Contains(String("a")))
	assert.True(t, NewSet(String("a"), String("b")).Equal(NewSet(String("b"), String("a"))))
}

func TestSort_MixedKinds(t *testing.T) {
	vals := []Value{String("x"), Int(2), Bool(true), Int(1)}
	Sort(vals)
	assert.Equal(t, []Value{Bool(true), Int(1), Int(2), String("x")}, vals)
}

func TestFromLiteral(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want Value
	}{
		{"string", "x", String("x")},
		{"bool", true, Bool(true)},
		{"int", 5, Int(5)},
		{"int8", int8(-2), Int(-2)},
		{"uint16", uint16(7), Int(7)},
		{"integral float", float64(3), Int(3)},
		{"json number", json.Number("12"), Int(12)},
		{"value", MustIP("10.0.0.1"), MustIP("10.0.0.1")},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := FromLiteral(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	for _, bad := range []any{nil, 1.5, json.Number("1.5"), []any{}, uint64(1 << 63)} {
		_, err := FromLiteral(bad)
		assert.Error(t, err, "literal %v", bad)
	}
}

func TestLiteral(t *testing.T) {
	assert.Equal(t, "x", Literal(String("x")))
	assert.Equal(t, int64(3), Literal(Int(3)))
	assert.Equal(t, false, Literal(Bool(false)))
	assert.Equal(t, "10.0.0.1", Literal(MustIP("10.0.0.1")))
}

func TestMarshalCanonical(t *testing.T) {
	got, err := MarshalCanonical(map[string]any{
		"name":   "any",
		"values": []any{int64(2), "a<b", true},
		"a":      String("tab\there"),
	})
	require.NoError(t, err)
	assert.Equal(t, `{"a":"tab\there","name":"any","values":[2,"a<b",true]}`, string(got))

	_, err = MarshalCanonical(map[string]any{"x": 1.5})
	assert.Error(t, err)

	_, err = MarshalCanonical([]any{nil})
	assert.Error(t, err)
}

func TestMarshalCanonical_KeyOrderUTF16(t *testing.T) {
	// U+FF61 sorts after U+1F600 in UTF-8 but before it in UTF-16.
	got, err := MarshalCanonical(map[string]any{"\U0001F600": int64(1), "｡": int64(2)})
	require.NoError(t, err)
	assert.Equal(t, "{\"\U0001F600\":1,\"｡\":2}", string(got))
}

func TestHashWithDomain(t *testing.T) {
	a := HashWithDomain("d/v1", []byte("x"))
	b := HashWithDomain("d/v1", []byte("x"))
	c := HashWithDomain("d/v2", []byte("x"))
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestParseType(t *testing.T) {
	typ, err := ParseType("ip6")
	require.NoError(t, err)
	assert.Equal(t, TypeIP6, typ)
	assert.True(t, typ.IsAddress())

	_, err = ParseType("float")
	assert.Error(t, err)
}
