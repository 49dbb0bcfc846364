package keywords

import (
	"encoding/json"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Set is a de-duplicated collection of normalized keywords. It remembers the
// order of first insertion so callers that cap or print it stay
// deterministic; membership is what matters.
type Set struct {
	items []string
	index map[string]struct{}
}

// Normalize trims and lower-cases every value, drops empty results and
// de-duplicates.
func Normalize(values []string) Set {
	var s Set
	s.Add(values...)
	return s
}

// NormalizeOne applies the same rules to a single value. Values are put in
// NFC first so "Café" typed either way is one keyword.
func NormalizeOne(v string) string {
	return strings.ToLower(norm.NFC.String(strings.TrimSpace(v)))
}

// Add inserts normalized values.
func (s *Set) Add(values ...string) {
	for _, v := range values {
		v = NormalizeOne(v)
		if v == "" {
			continue
		}
		if s.index == nil {
			s.index = make(map[string]struct{})
		}
		if _, ok := s.index[v]; ok {
			continue
		}
		s.index[v] = struct{}{}
		s.items = append(s.items, v)
	}
}

// Clone returns an independent copy.
func (s Set) Clone() Set {
	return Normalize(s.items)
}

// Merge adds every element of other.
func (s *Set) Merge(other Set) {
	s.Add(other.items...)
}

// Has reports membership of the normalized value.
func (s Set) Has(v string) bool {
	_, ok := s.index[NormalizeOne(v)]
	return ok
}

func (s Set) Len() int { return len(s.items) }

// Items returns a copy of the elements in insertion order.
func (s Set) Items() []string {
	out := make([]string, len(s.items))
	copy(out, s.items)
	return out
}

// Intersect returns elements of s also present in other, in s order.
func (s Set) Intersect(other Set) Set {
	var out Set
	for _, v := range s.items {
		if other.Has(v) {
			out.Add(v)
		}
	}
	return out
}

// Minus returns elements of s absent from other, in s order.
func (s Set) Minus(other Set) Set {
	var out Set
	for _, v := range s.items {
		if !other.Has(v) {
			out.Add(v)
		}
	}
	return out
}

func (s Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Items())
}

func (s *Set) UnmarshalJSON(data []byte) error {
	var values []string
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	*s = Normalize(values)
	return nil
}
