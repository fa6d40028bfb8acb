// Package jsonconv converts between JSON object text and string-keyed maps.
//
// Nested objects become map[string]any and arrays become []any, so a decoded
// document keeps its full structure. Numbers are kept as json.Number to
// preserve their exact text through a round trip.
package jsonconv

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

var (
	// ErrInvalidJSON is returned when the input is not well-formed JSON.
	ErrInvalidJSON = errors.New("invalid JSON")
	// ErrNotObject is returned when the input is valid JSON but not an object.
	ErrNotObject = errors.New("JSON value is not an object")
)

// ToMap decodes a JSON object into a map.
func ToMap(s string) (map[string]any, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("%w: empty input", ErrInvalidJSON)
	}
	if !gjson.Valid(s) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidJSON, snippet(s))
	}
	root := gjson.Parse(s)
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: got %s", ErrNotObject, root.Type)
	}
	return objectToMap(root), nil
}

// FromMap encodes a map as a JSON object. Keys are emitted in sorted order.
// A nil map encodes as "{}".
func FromMap(m map[string]any) (string, error) {
	if m == nil {
		return "{}", nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(m); err != nil {
		return "", fmt.Errorf("encode map: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

func objectToMap(obj gjson.Result) map[string]any {
	out := make(map[string]any)
	obj.ForEach(func(key, value gjson.Result) bool {
		out[key.String()] = convert(value)
		return true
	})
	return out
}

func arrayToList(arr gjson.Result) []any {
	items := arr.Array()
	out := make([]any, 0, len(items))
	for _, item := range items {
		out = append(out, convert(item))
	}
	return out
}

func convert(v gjson.Result) any {
	switch v.Type {
	case gjson.Null:
		return nil
	case gjson.False:
		return false
	case gjson.True:
		return true
	case gjson.Number:
		return json.Number(v.Raw)
	case gjson.String:
		return v.Str
	}
	if v.IsObject() {
		return objectToMap(v)
	}
	if v.IsArray() {
		return arrayToList(v)
	}
	return v.Raw
}

func snippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 64 {
		return s[:64] + "..."
	}
	return s
}
