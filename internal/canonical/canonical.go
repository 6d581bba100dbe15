// Package canonical produces a deterministic JSON serialization of
// heterogeneous values for content-addressed hashing.
//
// The canonical form is the single definition of structural equality in
// tsera: two values that marshal to the same bytes are the same value as
// far as drift detection is concerned. GraphBuilder and the state layer
// both hash over this form, so they can never disagree about equality.
package canonical

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"slices"
	"strconv"
	"time"
	"unicode/utf16"

	"golang.org/x/text/unicode/norm"
)

// Marshal serializes v to canonical JSON bytes.
//
// Rules:
//   - Object keys are sorted recursively (UTF-16 code unit order), so two
//     structurally equal maps with different insertion order marshal
//     identically.
//   - Array element order is preserved.
//   - time.Time normalizes to a fixed UTC ISO-8601 string with millisecond
//     precision.
//   - *big.Int normalizes to its decimal string form.
//   - nil is serialized as JSON null.
//   - Strings are NFC normalized and never HTML-escaped.
//   - []byte serializes as a tagged base64 object. Byte payloads are
//     opaque: two distinct slices never share a canonical form, and a
//     string never aliases one. NFC applies to genuine strings only.
//
// Supported value types: nil, bool, string, []byte, all Go integer types,
// float32/float64, json.Number, time.Time, *big.Int, []any (and typed
// string/any slices), and map[string]any (and map[string]string). Anything
// else is an error rather than a silently unstable serialization.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := appendValue(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func appendValue(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
		return nil
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
		return nil
	case string:
		return appendString(buf, val)
	case []byte:
		appendBytes(buf, val)
		return nil
	case int:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
		return nil
	case int8:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
		return nil
	case int16:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
		return nil
	case int32:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
		return nil
	case int64:
		buf.WriteString(strconv.FormatInt(val, 10))
		return nil
	case uint:
		buf.WriteString(strconv.FormatUint(uint64(val), 10))
		return nil
	case uint8:
		buf.WriteString(strconv.FormatUint(uint64(val), 10))
		return nil
	case uint16:
		buf.WriteString(strconv.FormatUint(uint64(val), 10))
		return nil
	case uint32:
		buf.WriteString(strconv.FormatUint(uint64(val), 10))
		return nil
	case uint64:
		buf.WriteString(strconv.FormatUint(val, 10))
		return nil
	case float32:
		return appendFloat(buf, float64(val))
	case float64:
		return appendFloat(buf, val)
	case json.Number:
		buf.WriteString(val.String())
		return nil
	case time.Time:
		// Fixed textual normalization: UTC, millisecond precision.
		return appendString(buf, val.UTC().Format("2006-01-02T15:04:05.000Z"))
	case *big.Int:
		if val == nil {
			buf.WriteString("null")
			return nil
		}
		return appendString(buf, val.String())
	case []string:
		arr := make([]any, len(val))
		for i, s := range val {
			arr[i] = s
		}
		return appendArray(buf, arr)
	case []any:
		return appendArray(buf, val)
	case map[string]string:
		m := make(map[string]any, len(val))
		for k, s := range val {
			m[k] = s
		}
		return appendObject(buf, m)
	case map[string]any:
		return appendObject(buf, val)
	default:
		return fmt.Errorf("canonical: unsupported type %T", v)
	}
}

func appendFloat(buf *bytes.Buffer, f float64) error {
	// encoding/json rejects NaN/Inf, and so do we: they have no JSON form
	// and would make the hash input ill-defined.
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("canonical: %w", err)
	}
	buf.Write(data)
	return nil
}

// appendBytes writes byte payloads as {"$bytes": "<base64>"}. The
// encoding is injective, unlike casting to string, which would collapse
// byte-distinct content under NFC and UTF-8 sanitization.
func appendBytes(buf *bytes.Buffer, data []byte) {
	buf.WriteString(`{"$bytes":"`)
	buf.WriteString(base64.StdEncoding.EncodeToString(data))
	buf.WriteString(`"}`)
}

// appendString writes a canonical JSON string: NFC normalized, with HTML
// escaping disabled so <, > and & serialize literally.
func appendString(buf *bytes.Buffer, s string) error {
	normalized := norm.NFC.String(s)

	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return err
	}

	result := tmp.Bytes()
	// json.Encoder adds a trailing newline.
	if len(result) > 0 && result[len(result)-1] == '\n' {
		result = result[:len(result)-1]
	}
	buf.Write(result)
	return nil
}

func appendArray(buf *bytes.Buffer, arr []any) error {
	buf.WriteByte('[')
	for i, elem := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := appendValue(buf, elem); err != nil {
			return fmt.Errorf("array[%d]: %w", i, err)
		}
	}
	buf.WriteByte(']')
	return nil
}

func appendObject(buf *bytes.Buffer, obj map[string]any) error {
	buf.WriteByte('{')
	for i, k := range SortedKeys(obj) {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := appendString(buf, k); err != nil {
			return fmt.Errorf("key %q: %w", k, err)
		}
		buf.WriteByte(':')
		if err := appendValue(buf, obj[k]); err != nil {
			return fmt.Errorf("value for key %q: %w", k, err)
		}
	}
	buf.WriteByte('}')
	return nil
}

// SortedKeys returns map keys in UTF-16 code unit order.
// Go's sort.Strings compares UTF-8 bytes, which diverges from the JSON
// canonical ordering for keys outside the BMP; this comparator does not.
func SortedKeys(obj map[string]any) []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareUTF16)
	return keys
}

func compareUTF16(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	n := min(len(a16), len(b16))
	for i := 0; i < n; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	default:
		return 0
	}
}
