package filtering

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spigell/resume-matcher/internal/profile"
)

// ExcludedJobs is the on-disk list of jobs the user dismissed.
type ExcludedJobs struct {
	Items []*ExcludedJob `json:"items"`
}

type ExcludedJob struct {
	ID         string    `json:"id"`
	Title      string    `json:"title,omitempty"`
	Company    string    `json:"company,omitempty"`
	URL        string    `json:"url,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	ExcludedAt time.Time `json:"excluded_at"`
}

// Exclude converts jobs into exclusion records stamped with the current time.
func Exclude(reason string, jobs ...profile.JobDescription) *ExcludedJobs {
	excluded := &ExcludedJobs{}
	now := time.Now().UTC()
	for _, j := range jobs {
		excluded.Items = append(excluded.Items, &ExcludedJob{
			ID:         j.ID,
			Title:      j.Title,
			Company:    j.Company,
			URL:        j.URL,
			Reason:     reason,
			ExcludedAt: now,
		})
	}
	return excluded
}

// LoadExcluded reads an exclusion file. A missing or empty file is an empty
// list.
func LoadExcluded(path string) (*ExcludedJobs, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &ExcludedJobs{}, nil
	}
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return &ExcludedJobs{}, nil
	}

	var excluded ExcludedJobs
	if err := json.Unmarshal(data, &excluded); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &excluded, nil
}

// Append adds records whose id is not listed yet.
func (e *ExcludedJobs) Append(other *ExcludedJobs) {
	seen := make(map[string]struct{}, len(e.Items))
	for _, item := range e.Items {
		seen[item.ID] = struct{}{}
	}
	for _, item := range other.Items {
		if _, dup := seen[item.ID]; dup {
			continue
		}
		seen[item.ID] = struct{}{}
		e.Items = append(e.Items, item)
	}
}

func (e *ExcludedJobs) IDs() []string {
	ids := make([]string, 0, len(e.Items))
	for _, item := range e.Items {
		ids = append(ids, item.ID)
	}
	return ids
}

// ToFile rewrites path with the list.
func (e *ExcludedJobs) ToFile(path string) error {
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// AppendToFile loads path, adds the records and writes it back.
func AppendToFile(path string, records *ExcludedJobs) error {
	existing, err := LoadExcluded(path)
	if err != nil {
		return fmt.Errorf("load excluded jobs: %w", err)
	}
	existing.Append(records)
	if err := existing.ToFile(path); err != nil {
		return fmt.Errorf("write excluded jobs: %w", err)
	}
	return nil
}

type excludedIDsFilter struct {
	toggle
	ids  []string
	path string
}

// NewExcludedIDs creates a filter that removes jobs by id. Ids listed in the
// exclusion file at path, when set, are removed as well.
func NewExcludedIDs(ids []string, path string) Filter {
	return &excludedIDsFilter{ids: ids, path: strings.TrimSpace(path)}
}

func (f *excludedIDsFilter) Name() string { return ExcludedIDsName }

func (f *excludedIDsFilter) Validate() error { return nil }

func (f *excludedIDsFilter) Apply(_ context.Context, jobs []profile.JobDescription) ([]profile.JobDescription, Step, error) {
	ids := f.ids
	if f.path != "" {
		excluded, err := LoadExcluded(f.path)
		if err != nil {
			return nil, Step{}, fmt.Errorf("getting excluded jobs from file: %w", err)
		}
		ids = append(append([]string(nil), ids...), excluded.IDs()...)
	}
	if len(ids) == 0 {
		return jobs, newStep(len(jobs), len(jobs)), nil
	}

	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[strings.TrimSpace(id)] = struct{}{}
	}
	left := keep(jobs, func(j profile.JobDescription) bool {
		_, excluded := drop[j.ID]
		return !excluded
	})

	return left, newStep(len(jobs), len(left)), nil
}

func (f *excludedIDsFilter) Status() Status {
	details := map[string]string{"ids": strconv.Itoa(len(f.ids))}
	if f.path != "" {
		details["file"] = f.path
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}
