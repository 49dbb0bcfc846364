// Package jobsource loads candidate profiles and job descriptions from files
// and from paginated HTTP job feeds.
package jobsource

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spigell/resume-matcher/internal/profile"
	"gopkg.in/yaml.v3"
)

// jobNamespace seeds the ids derived for jobs that come without one.
var jobNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/spigell/resume-matcher/jobs"))

type format int

const (
	formatJSON format = iota
	formatYAML
	formatText
)

func formatOf(path string) format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return formatYAML
	case ".txt", ".md":
		return formatText
	default:
		return formatJSON
	}
}

func decode(path string, data []byte, target any) error {
	if formatOf(path) == formatYAML {
		if err := yaml.Unmarshal(data, target); err != nil {
			return fmt.Errorf("decode yaml %s: %w", path, err)
		}
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return fmt.Errorf("decode json %s: %w", path, err)
	}
	return nil
}

// LoadCandidate reads a candidate profile from a JSON or YAML file and
// validates it.
func LoadCandidate(path string) (profile.CandidateProfile, error) {
	var c profile.CandidateProfile

	data, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := decode(path, data, &c); err != nil {
		return c, err
	}
	if err := c.Validate(); err != nil {
		return c, fmt.Errorf("candidate %s: %w", path, err)
	}
	return c, nil
}

// LoadJob reads one job description. Plain text files (.txt, .md) become a
// job whose title is the first non-empty line and whose description is the
// whole text.
func LoadJob(path string) (profile.JobDescription, error) {
	var j profile.JobDescription

	data, err := os.ReadFile(path)
	if err != nil {
		return j, err
	}

	if formatOf(path) == formatText {
		j = jobFromText(string(data))
	} else if err := decode(path, data, &j); err != nil {
		return j, err
	}

	AssignID(&j)
	if err := j.Validate(); err != nil {
		return j, fmt.Errorf("job %s: %w", path, err)
	}
	return j, nil
}

// LoadJobs reads a corpus: either a list of jobs or an object with a "jobs"
// list. Missing ids are derived from the job content.
func LoadJobs(path string) ([]profile.JobDescription, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var jobs []profile.JobDescription
	if listErr := decode(path, data, &jobs); listErr != nil {
		var wrapped struct {
			Jobs []profile.JobDescription `json:"jobs" yaml:"jobs"`
		}
		if err := decode(path, data, &wrapped); err != nil {
			return nil, listErr
		}
		jobs = wrapped.Jobs
	}

	for i := range jobs {
		AssignID(&jobs[i])
	}
	if err := profile.ValidateCorpus(jobs); err != nil {
		return nil, fmt.Errorf("jobs %s: %w", path, err)
	}
	return jobs, nil
}

// AssignID sets a content-derived id on jobs that have none, so the same
// posting keeps its id across runs.
func AssignID(j *profile.JobDescription) {
	if strings.TrimSpace(j.ID) != "" {
		return
	}
	key := strings.Join([]string{j.Title, j.Company, j.URL, j.Description}, "\x00")
	j.ID = uuid.NewSHA1(jobNamespace, []byte(key)).String()
}

func jobFromText(text string) profile.JobDescription {
	text = strings.TrimSpace(text)
	title := text
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(strings.TrimLeft(line, "# ")); line != "" {
			title = line
			break
		}
	}
	return profile.JobDescription{Title: title, Description: text}
}
