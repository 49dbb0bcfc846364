package profile

import (
	"fmt"
	"sort"
	"strings"
)

// ResumeText renders the candidate as plain text for keyword extraction and
// embedding. Each experience, education, skill and project entry occupies its
// own line.
func ResumeText(c CandidateProfile) string {
	lines := make([]string, 0, 3+len(c.Experience)+len(c.Education)+len(c.Skills)+len(c.Projects))
	lines = appendNonEmpty(lines, c.Name, c.Title, c.Summary)

	for _, e := range c.Experience {
		lines = append(lines, fmt.Sprintf("%s at %s (%s): %s", e.Position, e.Company, e.Duration, e.Description))
	}
	for _, e := range c.Education {
		lines = append(lines, educationLine(e))
	}
	for _, s := range c.Skills {
		lines = append(lines, skillLine(s))
	}
	for _, p := range c.Projects {
		lines = append(lines, fmt.Sprintf("%s: %s - Technologies: %s", p.Name, p.Description, strings.Join(p.Technologies, ", ")))
	}

	return strings.Join(lines, "\n")
}

// JobText renders the job description for keyword extraction and embedding.
func JobText(j JobDescription) string {
	lines := appendNonEmpty(nil, j.Title, j.Description)
	if len(j.RequiredSkills) > 0 {
		lines = append(lines, "Required skills: "+strings.Join(j.RequiredSkills, ", "))
	}
	if loc := strings.TrimSpace(j.Location); loc != "" {
		lines = append(lines, "Location: "+loc)
	}
	return strings.Join(lines, "\n")
}

// SkillNames lists skill names in profile order.
func (c CandidateProfile) SkillNames() []string {
	names := make([]string, 0, len(c.Skills))
	for _, s := range c.Skills {
		names = append(names, s.Name)
	}
	return names
}

// SkillNamesByLevel lists skill names from the highest proficiency down.
// Equal levels keep profile order and unspecified levels come last.
func (c CandidateProfile) SkillNamesByLevel() []string {
	skills := append([]SkillEntry(nil), c.Skills...)
	sort.SliceStable(skills, func(i, j int) bool {
		return skills[j].Level.Less(skills[i].Level)
	})

	names := make([]string, 0, len(skills))
	for _, s := range skills {
		names = append(names, s.Name)
	}
	return names
}

func skillLine(s SkillEntry) string {
	level := string(s.Level)
	if level == "" {
		level = "unspecified"
	}
	line := fmt.Sprintf("%s (%s)", s.Name, level)
	if d := strings.TrimSpace(s.Description); d != "" {
		line += ": " + d
	}
	return line
}

func educationLine(e EducationEntry) string {
	var sb strings.Builder
	sb.WriteString(e.Degree)
	if e.Field != "" {
		if sb.Len() > 0 {
			sb.WriteString(" in ")
		}
		sb.WriteString(e.Field)
	}
	if sb.Len() > 0 {
		sb.WriteString(", ")
	}
	sb.WriteString(e.Institution)
	if e.Year != "" {
		sb.WriteString(" (" + e.Year + ")")
	}
	return sb.String()
}

func appendNonEmpty(lines []string, values ...string) []string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			lines = append(lines, v)
		}
	}
	return lines
}
