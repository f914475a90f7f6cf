package selector

import "strings"

// Shape is the ordered list of keys that defines one forwarder's correlation
// granularity. Two shapes with equal keys in the same order are the same
// shape.
type Shape []Key

// NewShape copies keys into a Shape.
func NewShape(keys ...Key) Shape {
	s := make(Shape, len(keys))
	copy(s, keys)
	return s
}

// Paths builds a Shape from one path per key, e.g.
// Paths([]string{"body", "requestId"}, []string{"body", "subRequestId"}).
func Paths(paths ...[]string) Shape {
	s := make(Shape, len(paths))
	for i, p := range paths {
		s[i] = NewKey(p...)
	}
	return s
}

// Len returns the number of keys, i.e. the tuple arity.
func (s Shape) Len() int { return len(s) }

// ID returns the canonical identity used to deduplicate forwarders.
func (s Shape) ID() string {
	var b strings.Builder
	b.WriteByte('[')
	for i, k := range s {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k.String())
	}
	b.WriteByte(']')
	return b.String()
}

// Equal reports whether both shapes hold equal keys in the same order.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if !s[i].Equal(other[i]) {
			return false
		}
	}
	return true
}

// Extract returns one value per key. It reports false as soon as any key is
// not found.
func (s Shape) Extract(parsed any) ([]string, bool) {
	values := make([]string, len(s))
	for i, k := range s {
		v, ok := k.Extract(parsed)
		if !ok {
			return nil, false
		}
		values[i] = v
	}
	return values, true
}
