package keywords

import (
	"fmt"
	"strings"
)

// Category is one of the five fixed keyword buckets.
type Category string

const (
	Technical      Category = "technical"
	Soft           Category = "soft"
	Tools          Category = "tools"
	Certifications Category = "certifications"
	Industry       Category = "industry"
)

// AllCategories lists the buckets in flattening order.
var AllCategories = []Category{Technical, Soft, Tools, Certifications, Industry}

// ParseCategories maps names to categories. Empty input selects all of them.
func ParseCategories(names []string) ([]Category, error) {
	if len(names) == 0 {
		return AllCategories, nil
	}
	out := make([]Category, 0, len(names))
	seen := make(map[Category]bool)
	for _, name := range names {
		c := Category(NormalizeOne(name))
		if !c.valid() {
			return nil, fmt.Errorf("unknown keyword category %q", name)
		}
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out, nil
}

func (c Category) valid() bool {
	for _, known := range AllCategories {
		if c == known {
			return true
		}
	}
	return false
}

// Keywords is a categorized bag of normalized keywords.
type Keywords struct {
	Technical      Set `json:"technical"`
	Soft           Set `json:"soft"`
	Tools          Set `json:"tools"`
	Certifications Set `json:"certifications"`
	Industry       Set `json:"industry"`
}

// Get returns the set for c, or nil for an unknown category.
func (k *Keywords) Get(c Category) *Set {
	switch c {
	case Technical:
		return &k.Technical
	case Soft:
		return &k.Soft
	case Tools:
		return &k.Tools
	case Certifications:
		return &k.Certifications
	case Industry:
		return &k.Industry
	default:
		return nil
	}
}

// Flatten unions all categories in AllCategories order.
func (k Keywords) Flatten() Set {
	var out Set
	for _, c := range AllCategories {
		out.Merge(*k.Get(c))
	}
	return out
}

// Empty reports whether every category is empty.
func (k Keywords) Empty() bool {
	return k.Flatten().Len() == 0
}

// Only keeps the requested categories and clears the rest.
func (k Keywords) Only(categories []Category) Keywords {
	var out Keywords
	for _, c := range categories {
		if dst := out.Get(c); dst != nil {
			*dst = k.Get(c).Clone()
		}
	}
	return out
}

func (k Keywords) String() string {
	parts := make([]string, 0, len(AllCategories))
	for _, c := range AllCategories {
		parts = append(parts, fmt.Sprintf("%s=%v", c, k.Get(c).Items()))
	}
	return strings.Join(parts, " ")
}
