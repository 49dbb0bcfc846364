package matching

import (
	"math"
	"regexp"
	"strings"

	"github.com/spigell/resume-matcher/internal/keywords"
	"github.com/spigell/resume-matcher/internal/profile"
)

// Breakdown lists the per-factor scores, each in [0, 100]. Location and
// Semantic are nil when the factor did not take part.
type Breakdown struct {
	Keyword    float64  `json:"keyword"`
	Experience float64  `json:"experience"`
	Skill      float64  `json:"skill"`
	Location   *float64 `json:"location,omitempty"`
	Semantic   *float64 `json:"semantic,omitempty"`
}

type scorer struct {
	policy    Policy
	steps     []ExperienceStep
	seniority *regexp.Regexp
}

func newScorer(p Policy) *scorer {
	s := &scorer{policy: p, steps: p.steps()}

	terms := make([]string, 0, len(p.SeniorityTerms))
	for _, t := range p.SeniorityTerms {
		if t = strings.TrimSpace(t); t != "" {
			terms = append(terms, regexp.QuoteMeta(strings.ToLower(t)))
		}
	}
	if len(terms) > 0 {
		s.seniority = regexp.MustCompile(`(?i)\b(?:` + strings.Join(terms, "|") + `)\b`)
	}
	return s
}

// keywordScore is the match rate of the comparison.
func keywordScore(c keywords.Comparison) float64 {
	return c.MatchRate
}

// experienceScore is a step function of the entry count, overridden by the
// seniority penalty when the job asks for seniority the candidate lacks.
func (s *scorer) experienceScore(entries int, jobText string) float64 {
	if s.seniority != nil && entries < s.policy.SeniorityMinEntries && s.seniority.MatchString(jobText) {
		return s.policy.SeniorityScore
	}

	score := 0.0
	for _, step := range s.steps {
		if entries >= step.MinEntries {
			score = step.Score
		}
	}
	return score
}

// seniorityTerm returns the first seniority term found in text, if any.
func (s *scorer) seniorityTerm(text string) string {
	if s.seniority == nil {
		return ""
	}
	return strings.ToLower(s.seniority.FindString(text))
}

// skillScore is the share of candidate skills that overlap a matched keyword
// by substring in either direction.
func skillScore(skills []string, matched keywords.Set) float64 {
	if len(skills) == 0 {
		return 0
	}

	hits := 0
	for _, skill := range skills {
		name := keywords.NormalizeOne(skill)
		if name == "" {
			continue
		}
		for _, m := range matched.Items() {
			if strings.Contains(m, name) || strings.Contains(name, m) {
				hits++
				break
			}
		}
	}
	return 100 * float64(hits) / float64(len(skills))
}

// locationScore compares candidate and job locations: containment 100,
// remote job 80, a shared word longer than three letters 60, otherwise 30.
// Unknown locations score a neutral 50.
func locationScore(c profile.CandidateProfile, j profile.JobDescription) float64 {
	job := strings.ToLower(strings.TrimSpace(j.Location))
	cand := strings.ToLower(strings.TrimSpace(c.Location))
	if job == "" || cand == "" {
		return 50
	}
	if strings.Contains(job, cand) || strings.Contains(cand, job) {
		return 100
	}
	if strings.Contains(job, "remote") {
		return 80
	}
	for _, jp := range strings.FieldsFunc(job, splitLocation) {
		for _, cp := range strings.FieldsFunc(cand, splitLocation) {
			if len(jp) > 3 && jp == cp {
				return 60
			}
		}
	}
	return 30
}

func splitLocation(r rune) bool {
	return r == ',' || r == ' ' || r == '/' || r == '-' || r == '(' || r == ')'
}

// semanticScore maps cosine similarity onto [0, 100]; negative similarity is 0.
func semanticScore(sim float64) float64 {
	if sim < 0 {
		return 0
	}
	return 100 * sim
}

// combine returns the weighted mean of the available factors, rounded and
// clamped to [0, 100].
func (s *scorer) combine(b Breakdown) int {
	type factor struct {
		weight float64
		value  *float64
	}
	factors := []factor{
		{s.policy.KeywordWeight, &b.Keyword},
		{s.policy.ExperienceWeight, &b.Experience},
		{s.policy.SkillWeight, &b.Skill},
		{s.policy.LocationWeight, b.Location},
		{s.policy.SemanticWeight, b.Semantic},
	}

	var sum, weights float64
	for _, f := range factors {
		if f.weight <= 0 || f.value == nil || math.IsNaN(*f.value) {
			continue
		}
		sum += f.weight * *f.value
		weights += f.weight
	}
	if weights == 0 {
		return 0
	}
	if math.Abs(weights-1) > 1e-9 {
		sum /= weights
	}

	return clampScore(math.Round(sum))
}

func clampScore(v float64) int {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return int(v)
	}
}
