package profile

import (
	"fmt"
	"strings"
)

// Proficiency is an ordered skill level.
type Proficiency string

const (
	Beginner     Proficiency = "beginner"
	Intermediate Proficiency = "intermediate"
	Advanced     Proficiency = "advanced"
	Expert       Proficiency = "expert"
)

var proficiencyRank = map[Proficiency]int{
	Beginner:     1,
	Intermediate: 2,
	Advanced:     3,
	Expert:       4,
}

// ParseProficiency accepts a level in any letter case. An empty string means
// the level is unspecified.
func ParseProficiency(s string) (Proficiency, error) {
	p := Proficiency(strings.ToLower(strings.TrimSpace(s)))
	if p == "" {
		return "", nil
	}
	if _, ok := proficiencyRank[p]; !ok {
		return "", fmt.Errorf("unknown proficiency %q (want beginner, intermediate, advanced or expert)", s)
	}
	return p, nil
}

// Rank orders levels from 1 (beginner) to 4 (expert); 0 means unspecified.
func (p Proficiency) Rank() int {
	return proficiencyRank[p]
}

// Less reports whether p is a lower level than other.
func (p Proficiency) Less(other Proficiency) bool {
	return p.Rank() < other.Rank()
}

func (p *Proficiency) UnmarshalText(text []byte) error {
	parsed, err := ParseProficiency(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

func (p Proficiency) MarshalText() ([]byte, error) {
	return []byte(p), nil
}
