package canonical

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalKeyOrderIndependence(t *testing.T) {
	a := map[string]any{
		"name":  "user",
		"count": int64(3),
		"tags":  []any{"a", "b"},
	}
	b := map[string]any{
		"tags":  []any{"a", "b"},
		"count": int64(3),
		"name":  "user",
	}

	ca, err := Marshal(a)
	require.NoError(t, err)
	cb, err := Marshal(b)
	require.NoError(t, err)

	assert.Equal(t, string(ca), string(cb), "key insertion order must not affect canonical form")
	assert.Equal(t, `{"count":3,"name":"user","tags":["a","b"]}`, string(ca))
}

func TestMarshalArrayOrderPreserved(t *testing.T) {
	ab, err := Marshal([]any{"a", "b"})
	require.NoError(t, err)
	ba, err := Marshal([]any{"b", "a"})
	require.NoError(t, err)

	assert.NotEqual(t, string(ab), string(ba), "array order is semantic")
}

func TestMarshalNullPreserved(t *testing.T) {
	data, err := Marshal(map[string]any{"deleted": nil})
	require.NoError(t, err)
	assert.Equal(t, `{"deleted":null}`, string(data))
}

func TestMarshalTimeNormalization(t *testing.T) {
	// Same instant in two zones must canonicalize identically.
	loc := time.FixedZone("X", 2*60*60)
	utc := time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)
	zoned := utc.In(loc)

	a, err := Marshal(utc)
	require.NoError(t, err)
	b, err := Marshal(zoned)
	require.NoError(t, err)

	assert.Equal(t, `"2024-05-01T10:30:00.000Z"`, string(a))
	assert.Equal(t, string(a), string(b))
}

func TestMarshalBigIntDecimalForm(t *testing.T) {
	n := new(big.Int)
	n.SetString("340282366920938463463374607431768211455", 10)

	data, err := Marshal(n)
	require.NoError(t, err)
	assert.Equal(t, `"340282366920938463463374607431768211455"`, string(data))
}

func TestMarshalNoHTMLEscaping(t *testing.T) {
	data, err := Marshal("a<b&c>d")
	require.NoError(t, err)
	assert.Equal(t, `"a<b&c>d"`, string(data))
}

func TestMarshalNestedObjects(t *testing.T) {
	v := map[string]any{
		"entity": map[string]any{
			"fields": map[string]any{
				"id":   "uuid",
				"name": "string",
			},
		},
	}
	data, err := Marshal(v)
	require.NoError(t, err)
	assert.Equal(t, `{"entity":{"fields":{"id":"uuid","name":"string"}}}`, string(data))
}

func TestMarshalRejectsUnsupportedType(t *testing.T) {
	_, err := Marshal(struct{ X int }{1})
	assert.Error(t, err)
}

func TestMarshalBytesTaggedBase64(t *testing.T) {
	data, err := Marshal([]byte("export const a = 1;"))
	require.NoError(t, err)
	assert.Equal(t, `{"$bytes":"ZXhwb3J0IGNvbnN0IGEgPSAxOw=="}`, string(data))
}

func TestMarshalBytesInjective(t *testing.T) {
	a, err := Marshal([]byte{0xff})
	require.NoError(t, err)
	b, err := Marshal([]byte{0xfe})
	require.NoError(t, err)
	assert.NotEqual(t, string(a), string(b), "byte payloads are opaque")

	// NFC-equivalent but byte-distinct payloads stay distinct too.
	nfc, err := Marshal([]byte("caf\u00e9"))
	require.NoError(t, err)
	nfd, err := Marshal([]byte("cafe\u0301"))
	require.NoError(t, err)
	assert.NotEqual(t, string(nfc), string(nfd))

	// A string spelling out the tagged form does not alias a payload.
	tagged, err := Marshal([]byte("x"))
	require.NoError(t, err)
	aliased, err := Marshal(string(tagged))
	require.NoError(t, err)
	assert.NotEqual(t, string(tagged), string(aliased))
}
