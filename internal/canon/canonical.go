package canon

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"golang.org/x/text/unicode/norm"
)

// Canonical produces the canonical byte serialization of v.
//
// Rules:
//  1. Object keys are emitted in code-point-sorted order at every depth.
//  2. Array elements are serialized individually and the resulting element
//     strings are sorted before joining. Array order is insignificant:
//     [1,2] and [2,1] serialize identically.
//  3. Strings are NFC normalized; only control characters, backslash, and
//     quote are escaped (no HTML escaping).
//  4. Numbers, booleans, and null use the compact JSON encoding.
//
// Values that cannot be canonically serialized (functions, channels,
// cyclic graphs) return an error wrapping ErrUnserializable.
func Canonical(v any) ([]byte, error) {
	plain, err := normalize(v)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := appendCanonical(&buf, plain); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ErrUnserializable reports an input that has no canonical serialization.
var ErrUnserializable = fmt.Errorf("unserializable input")

// normalize reduces an arbitrary Go value to the JSON data model
// (nil, bool, json.Number, string, []any, map[string]any) by round-tripping
// through encoding/json. The marshal step rejects functions, channels, and
// cyclic values; the decode step preserves numeric literals via json.Number
// so canonicalization never re-formats a number.
func normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnserializable, err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var plain any
	if err := dec.Decode(&plain); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnserializable, err)
	}
	return plain, nil
}

func appendCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case json.Number:
		buf.WriteString(val.String())
	case string:
		appendCanonicalString(buf, val)
	case []any:
		return appendCanonicalArray(buf, val)
	case map[string]any:
		return appendCanonicalObject(buf, val)
	default:
		return fmt.Errorf("%w: unexpected type %T after normalization", ErrUnserializable, v)
	}
	return nil
}

// appendCanonicalString emits a canonical JSON string.
// The value is NFC normalized first so producers that differ only in
// Unicode normalization form hash identically. Only control characters,
// backslash, and quote are escaped; < > & and friends stay literal.
func appendCanonicalString(buf *bytes.Buffer, s string) {
	s = norm.NFC.String(s)
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(buf, `\u%04x`, r)
			} else {
				buf.WriteRune(r)
			}
		}
	}
	buf.WriteByte('"')
}

// appendCanonicalArray serializes each element, sorts the element strings,
// and joins them. Sorting makes array order insignificant to the identity;
// the behavior is intentional and matched by tests.
func appendCanonicalArray(buf *bytes.Buffer, arr []any) error {
	elems := make([]string, len(arr))
	for i, elem := range arr {
		var eb bytes.Buffer
		if err := appendCanonical(&eb, elem); err != nil {
			return fmt.Errorf("array[%d]: %w", i, err)
		}
		elems[i] = eb.String()
	}
	sort.Strings(elems)

	buf.WriteByte('[')
	for i, e := range elems {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(e)
	}
	buf.WriteByte(']')
	return nil
}

func appendCanonicalObject(buf *bytes.Buffer, obj map[string]any) error {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		appendCanonicalString(buf, k)
		buf.WriteByte(':')
		if err := appendCanonical(buf, obj[k]); err != nil {
			return fmt.Errorf("value for key %q: %w", k, err)
		}
	}
	buf.WriteByte('}')
	return nil
}
