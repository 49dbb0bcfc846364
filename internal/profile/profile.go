// Package profile holds the candidate and job value objects consumed by the
// matching engine, together with their validation and text rendering.
package profile

// CandidateProfile is the résumé-derived view of a candidate.
type CandidateProfile struct {
	Name       string            `json:"name,omitempty" yaml:"name,omitempty"`
	Title      string            `json:"title,omitempty" yaml:"title,omitempty"`
	Summary    string            `json:"summary,omitempty" yaml:"summary,omitempty"`
	Location   string            `json:"location,omitempty" yaml:"location,omitempty"`
	Experience []ExperienceEntry `json:"experience,omitempty" yaml:"experience,omitempty" validate:"dive"`
	Education  []EducationEntry  `json:"education,omitempty" yaml:"education,omitempty" validate:"dive"`
	Skills     []SkillEntry      `json:"skills,omitempty" yaml:"skills,omitempty" validate:"dive"`
	Projects   []ProjectEntry    `json:"projects,omitempty" yaml:"projects,omitempty" validate:"dive"`
}

// ExperienceEntry keeps Duration as opaque text. StartDate and EndDate are
// retained verbatim when supplied.
type ExperienceEntry struct {
	Company     string `json:"company" yaml:"company"`
	Position    string `json:"position" yaml:"position" validate:"required"`
	Duration    string `json:"duration,omitempty" yaml:"duration,omitempty"`
	Description string `json:"description" yaml:"description" validate:"required"`
	StartDate   string `json:"start_date,omitempty" yaml:"start_date,omitempty" validate:"required_with=EndDate"`
	EndDate     string `json:"end_date,omitempty" yaml:"end_date,omitempty"`
}

type EducationEntry struct {
	Institution string `json:"institution" yaml:"institution" validate:"required"`
	Degree      string `json:"degree,omitempty" yaml:"degree,omitempty"`
	Field       string `json:"field,omitempty" yaml:"field,omitempty"`
	Year        string `json:"year,omitempty" yaml:"year,omitempty"`
}

type SkillEntry struct {
	Name        string      `json:"name" yaml:"name" validate:"required"`
	Level       Proficiency `json:"level,omitempty" yaml:"level,omitempty"`
	Category    string      `json:"category,omitempty" yaml:"category,omitempty"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
}

type ProjectEntry struct {
	Name         string   `json:"name" yaml:"name" validate:"required"`
	Description  string   `json:"description" yaml:"description" validate:"required"`
	Technologies []string `json:"technologies,omitempty" yaml:"technologies,omitempty"`
}

// SalaryRange is unknown when both bounds are zero.
type SalaryRange struct {
	Min      int    `json:"min,omitempty" yaml:"min,omitempty" validate:"gte=0"`
	Max      int    `json:"max,omitempty" yaml:"max,omitempty" validate:"gte=0"`
	Currency string `json:"currency,omitempty" yaml:"currency,omitempty"`
}

// Known reports whether at least one bound is set.
func (s SalaryRange) Known() bool {
	return s.Min > 0 || s.Max > 0
}

// Overlaps reports whether s intersects [lo, hi]. A zero bound on either side
// is open-ended.
func (s SalaryRange) Overlaps(lo, hi int) bool {
	if !s.Known() {
		return true
	}
	if hi > 0 && s.Min > hi {
		return false
	}
	if lo > 0 && s.Max > 0 && s.Max < lo {
		return false
	}
	return true
}

type JobDescription struct {
	ID             string      `json:"id" yaml:"id" validate:"required"`
	Title          string      `json:"title" yaml:"title" validate:"required"`
	Company        string      `json:"company,omitempty" yaml:"company,omitempty"`
	Description    string      `json:"description" yaml:"description" validate:"required"`
	RequiredSkills []string    `json:"required_skills,omitempty" yaml:"required_skills,omitempty"`
	Location       string      `json:"location,omitempty" yaml:"location,omitempty"`
	Salary         SalaryRange `json:"salary,omitempty" yaml:"salary,omitempty"`
	URL            string      `json:"url,omitempty" yaml:"url,omitempty" validate:"omitempty,url"`
	// Embedding is an optional precomputed vector for the job text.
	Embedding []float32 `json:"embedding,omitempty" yaml:"embedding,omitempty"`
}
