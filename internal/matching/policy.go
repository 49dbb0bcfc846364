package matching

import (
	"errors"
	"fmt"
	"sort"
)

// ExperienceStep awards Score to candidates with at least MinEntries
// experience entries.
type ExperienceStep struct {
	MinEntries int     `mapstructure:"min-entries" json:"min_entries"`
	Score      float64 `mapstructure:"score" json:"score"`
}

// Policy holds every tunable scoring constant.
type Policy struct {
	KeywordWeight    float64 `mapstructure:"keyword-weight" json:"keyword_weight"`
	ExperienceWeight float64 `mapstructure:"experience-weight" json:"experience_weight"`
	SkillWeight      float64 `mapstructure:"skill-weight" json:"skill_weight"`
	LocationWeight   float64 `mapstructure:"location-weight" json:"location_weight"`
	SemanticWeight   float64 `mapstructure:"semantic-weight" json:"semantic_weight"`

	ExperienceSteps []ExperienceStep `mapstructure:"experience-steps" json:"experience_steps"`

	// A job mentioning any SeniorityTerms caps candidates with fewer than
	// SeniorityMinEntries entries at SeniorityScore.
	SeniorityTerms      []string `mapstructure:"seniority-terms" json:"seniority_terms"`
	SeniorityMinEntries int      `mapstructure:"seniority-min-entries" json:"seniority_min_entries"`
	SeniorityScore      float64  `mapstructure:"seniority-score" json:"seniority_score"`

	MissingCap         int `mapstructure:"missing-cap" json:"missing_cap"`
	SuggestionKeywords int `mapstructure:"suggestion-keywords" json:"suggestion_keywords"`
	MinSuggestions     int `mapstructure:"min-suggestions" json:"min_suggestions"`
	MaxSuggestions     int `mapstructure:"max-suggestions" json:"max_suggestions"`
}

// DefaultPolicy reproduces round(keyword*0.4 + experience*0.3 + skill*0.3).
func DefaultPolicy() Policy {
	return Policy{
		KeywordWeight:    0.4,
		ExperienceWeight: 0.3,
		SkillWeight:      0.3,
		ExperienceSteps: []ExperienceStep{
			{MinEntries: 0, Score: 40},
			{MinEntries: 1, Score: 60},
			{MinEntries: 3, Score: 75},
			{MinEntries: 5, Score: 90},
		},
		SeniorityTerms:      []string{"senior", "lead", "manager", "expert"},
		SeniorityMinEntries: 3,
		SeniorityScore:      50,
		MissingCap:          20,
		SuggestionKeywords:  10,
		MinSuggestions:      5,
		MaxSuggestions:      8,
	}
}

// Validate rejects policies that cannot produce a score.
func (p Policy) Validate() error {
	weights := map[string]float64{
		"keyword-weight":    p.KeywordWeight,
		"experience-weight": p.ExperienceWeight,
		"skill-weight":      p.SkillWeight,
		"location-weight":   p.LocationWeight,
		"semantic-weight":   p.SemanticWeight,
	}
	for name, w := range weights {
		if w < 0 {
			return fmt.Errorf("scoring policy: %s must not be negative", name)
		}
	}
	if p.KeywordWeight+p.ExperienceWeight+p.SkillWeight <= 0 {
		return errors.New("scoring policy: keyword, experience and skill weights must not all be zero")
	}
	if len(p.ExperienceSteps) == 0 {
		return errors.New("scoring policy: experience-steps must not be empty")
	}
	if p.MissingCap <= 0 {
		return errors.New("scoring policy: missing-cap must be positive")
	}
	if p.MinSuggestions > p.MaxSuggestions {
		return errors.New("scoring policy: min-suggestions must not exceed max-suggestions")
	}
	return nil
}

// steps returns ExperienceSteps sorted by MinEntries.
func (p Policy) steps() []ExperienceStep {
	out := make([]ExperienceStep, len(p.ExperienceSteps))
	copy(out, p.ExperienceSteps)
	sort.SliceStable(out, func(i, j int) bool { return out[i].MinEntries < out[j].MinEntries })
	return out
}
