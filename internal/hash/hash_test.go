package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueDeterminism(t *testing.T) {
	a := map[string]any{"name": "user", "fields": []any{"id", "email"}}
	b := map[string]any{"fields": []any{"id", "email"}, "name": "user"}

	ha, err := Value(a, Options{Version: "1.0"})
	require.NoError(t, err)
	hb, err := Value(b, Options{Version: "1.0"})
	require.NoError(t, err)

	assert.Equal(t, ha, hb, "structurally equal values must hash identically")
	assert.Len(t, ha, 64, "SHA-256 hex is 64 characters")
}

func TestValueVersionChangesHash(t *testing.T) {
	v := map[string]any{"name": "user"}

	h1 := MustValue(v, Options{Version: "1.0"})
	h2 := MustValue(v, Options{Version: "2.0"})

	assert.NotEqual(t, h1, h2, "version participates in the digest")
}

func TestValueSaltSeparatesDomains(t *testing.T) {
	v := map[string]any{"path": "user.sql", "content": "create table ..."}

	migration := MustValue(v, Options{Version: "1.0", Salt: "migration"})
	schema := MustValue(v, Options{Version: "1.0", Salt: "schema"})
	unsalted := MustValue(v, Options{Version: "1.0"})

	assert.NotEqual(t, migration, schema)
	assert.NotEqual(t, migration, unsalted)
}

func TestValueChangesWithContent(t *testing.T) {
	h1 := MustValue(map[string]any{"content": "a"}, Options{Version: "1.0"})
	h2 := MustValue(map[string]any{"content": "b"}, Options{Version: "1.0"})

	assert.NotEqual(t, h1, h2)
}

func TestBytesAndText(t *testing.T) {
	assert.Equal(t, Bytes([]byte("hello")), Text("hello"))
	assert.Len(t, Text(""), 64)
	assert.NotEqual(t, Text("a"), Text("b"))
}

func TestValueRejectsUncanonicalizable(t *testing.T) {
	_, err := Value(make(chan int), Options{Version: "1.0"})
	assert.Error(t, err)
}
