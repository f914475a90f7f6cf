// Package selector extracts correlation values from decoded messages.
//
// A Key is a path of field names into the generic structure produced by the
// codec (maps, slices and scalars). A Shape is the ordered list of keys one
// forwarder correlates on.
package selector

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Key is an immutable field path. The zero Key has an empty path and never
// extracts anything.
type Key struct {
	path []string
	id   string
}

// NewKey builds a Key from path segments. Segments that address a sequence
// are parsed as zero-based indexes.
func NewKey(path ...string) Key {
	cp := make([]string, len(path))
	copy(cp, path)
	return Key{path: cp, id: canonical(cp)}
}

// Path returns a copy of the key's segments.
func (k Key) Path() []string {
	cp := make([]string, len(k.path))
	copy(cp, k.path)
	return cp
}

// Len returns the number of path segments.
func (k Key) Len() int { return len(k.path) }

// Equal reports whether both keys have the same segments in the same order.
func (k Key) Equal(other Key) bool {
	if len(k.path) != len(other.path) {
		return false
	}
	for i := range k.path {
		if k.path[i] != other.path[i] {
			return false
		}
	}
	return true
}

// String returns the canonical form of the path. Distinct paths always have
// distinct canonical forms.
func (k Key) String() string {
	if k.id == "" {
		return canonical(k.path)
	}
	return k.id
}

// Extract walks the path through parsed. It reports false when a segment is
// missing, an intermediate value is not a container, or the leaf is null or
// itself a container.
func (k Key) Extract(parsed any) (string, bool) {
	if len(k.path) == 0 {
		return "", false
	}

	current := parsed
	for _, segment := range k.path {
		switch node := current.(type) {
		case map[string]any:
			next, ok := node[segment]
			if !ok {
				return "", false
			}
			current = next
		case []any:
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || idx >= len(node) {
				return "", false
			}
			current = node[idx]
		default:
			return "", false
		}
	}
	return scalar(current)
}

// ExtractRaw performs the same lookup directly on undecoded JSON text.
func (k Key) ExtractRaw(raw string) (string, bool) {
	if len(k.path) == 0 {
		return "", false
	}
	res := gjson.Get(raw, k.gjsonPath())
	switch res.Type {
	case gjson.String:
		return res.Str, true
	case gjson.Number:
		return res.Raw, true
	case gjson.True, gjson.False:
		return strconv.FormatBool(res.Bool()), true
	default:
		return "", false
	}
}

func (k Key) gjsonPath() string {
	escaped := make([]string, len(k.path))
	for i, segment := range k.path {
		escaped[i] = gjson.Escape(segment)
	}
	return strings.Join(escaped, ".")
}

func scalar(v any) (string, bool) {
	switch leaf := v.(type) {
	case string:
		return leaf, true
	case json.Number:
		return leaf.String(), true
	case bool:
		return strconv.FormatBool(leaf), true
	case float64:
		return strconv.FormatFloat(leaf, 'f', -1, 64), true
	case int:
		return strconv.Itoa(leaf), true
	case int64:
		return strconv.FormatInt(leaf, 10), true
	default:
		return "", false
	}
}

func canonical(path []string) string {
	var b strings.Builder
	b.WriteByte('(')
	for i, segment := range path {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Quote(segment))
	}
	b.WriteByte(')')
	return b.String()
}
