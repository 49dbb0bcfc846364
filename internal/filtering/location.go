package filtering

import (
	"context"
	"strconv"
	"strings"

	"github.com/spigell/resume-matcher/internal/profile"
)

const remoteMarker = "remote"

type locationFilter struct {
	toggle
	locations   []string
	allowRemote bool
}

// NewLocation keeps jobs whose location contains any of the requested
// locations, case-insensitively. Remote jobs pass when allowRemote is set.
// With no locations the filter passes everything through.
func NewLocation(locations []string, allowRemote bool) Filter {
	normalized := make([]string, 0, len(locations))
	for _, l := range locations {
		if l = strings.ToLower(strings.TrimSpace(l)); l != "" {
			normalized = append(normalized, l)
		}
	}
	return &locationFilter{locations: normalized, allowRemote: allowRemote}
}

func (f *locationFilter) Name() string { return LocationName }

func (f *locationFilter) Validate() error { return nil }

func (f *locationFilter) Apply(_ context.Context, jobs []profile.JobDescription) ([]profile.JobDescription, Step, error) {
	if len(f.locations) == 0 {
		return jobs, newStep(len(jobs), len(jobs)), nil
	}

	left := keep(jobs, func(j profile.JobDescription) bool {
		loc := strings.ToLower(j.Location)
		if f.allowRemote && strings.Contains(loc, remoteMarker) {
			return true
		}
		for _, want := range f.locations {
			if strings.Contains(loc, want) {
				return true
			}
		}
		return false
	})

	return left, newStep(len(jobs), len(left)), nil
}

func (f *locationFilter) Status() Status {
	return Status{
		Name:    f.Name(),
		Enabled: f.IsEnabled(),
		Reason:  f.reason,
		Details: map[string]string{
			"locations":    strings.Join(f.locations, ","),
			"allow_remote": strconv.FormatBool(f.allowRemote),
		},
	}
}
