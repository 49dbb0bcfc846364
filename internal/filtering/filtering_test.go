package filtering

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spigell/resume-matcher/internal/profile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func corpus() []profile.JobDescription {
	return []profile.JobDescription{
		{ID: "1", Title: "Go Developer", Description: "d", Location: "Berlin, Germany", Salary: profile.SalaryRange{Min: 60000, Max: 80000}},
		{ID: "2", Title: "Frontend", Description: "d", Location: "Remote (EU)"},
		{ID: "3", Title: "SRE", Description: "d", Location: "Austin, TX", Salary: profile.SalaryRange{Min: 120000, Max: 150000}},
		{ID: "4", Title: "Data", Description: "d", Location: "berlin", Salary: profile.SalaryRange{Max: 50000}},
	}
}

func ids(jobs []profile.JobDescription) []string {
	out := make([]string, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.ID)
	}
	return out
}

func TestRunAppliesStepsInOrder(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	input := corpus()

	steps := []Filter{
		NewExcludedIDs([]string{"3"}, ""),
		NewLocation([]string{"Berlin"}, true),
		NewSalary(55000, 0),
	}

	left, report, err := Run(context.Background(), zap.New(core), steps, input)
	require.NoError(t, err)

	assert.Equal(t, []string{"1", "2"}, ids(left))
	assert.Equal(t, []Step{
		{Name: "excluded_ids", Initial: 4, Dropped: 1, Left: 3},
		{Name: "location", Initial: 3, Dropped: 0, Left: 3},
		{Name: "salary", Initial: 3, Dropped: 1, Left: 2},
	}, report)
	assert.Len(t, input, 4, "input is not modified")

	entries := logs.FilterMessage("filter step").All()
	require.Len(t, entries, 3)
	assert.Equal(t, "salary", entries[2].ContextMap()["name"])
	assert.Equal(t, int64(1), entries[2].ContextMap()["dropped"])
}

func TestLocationFilter(t *testing.T) {
	left, step, err := NewLocation([]string{" BERLIN "}, false).Apply(context.Background(), corpus())
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "4"}, ids(left))
	assert.Equal(t, 2, step.Dropped)

	left, _, err = NewLocation([]string{"austin", "munich"}, true).Apply(context.Background(), corpus())
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "3"}, ids(left))

	left, _, err = NewLocation(nil, true).Apply(context.Background(), corpus())
	require.NoError(t, err)
	assert.Len(t, left, 4)
}

func TestSalaryFilterKeepsUnknown(t *testing.T) {
	left, _, err := NewSalary(100000, 130000).Apply(context.Background(), corpus())
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "3"}, ids(left))

	left, _, err = NewSalary(0, 55000).Apply(context.Background(), corpus())
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "4"}, ids(left))
}

func TestSalaryFilterValidate(t *testing.T) {
	assert.Error(t, NewSalary(10, 5).Validate())
	assert.Error(t, NewSalary(-1, 0).Validate())
	assert.NoError(t, NewSalary(10, 0).Validate())

	_, _, err := Run(context.Background(), nil, []Filter{NewSalary(10, 5)}, corpus())
	assert.ErrorContains(t, err, "salary:")
}

func TestExcludedIDsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "excluded.json")
	jobs := corpus()

	require.NoError(t, AppendToFile(path, Exclude("not interested", jobs[0])))
	require.NoError(t, AppendToFile(path, Exclude("again", jobs[0], jobs[1])))

	excluded, err := LoadExcluded(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, excluded.IDs())
	assert.Equal(t, "not interested", excluded.Items[0].Reason)
	assert.Equal(t, "Go Developer", excluded.Items[0].Title)

	left, step, err := NewExcludedIDs([]string{"4"}, path).Apply(context.Background(), jobs)
	require.NoError(t, err)
	assert.Equal(t, []string{"3"}, ids(left))
	assert.Equal(t, 3, step.Dropped)
}

func TestLoadExcludedMissingOrEmpty(t *testing.T) {
	dir := t.TempDir()

	excluded, err := LoadExcluded(filepath.Join(dir, "absent.json"))
	require.NoError(t, err)
	assert.Empty(t, excluded.Items)

	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte("  \n"), 0o644))
	excluded, err = LoadExcluded(empty)
	require.NoError(t, err)
	assert.Empty(t, excluded.Items)

	broken := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(broken, []byte("{"), 0o644))
	_, _, err = NewExcludedIDs(nil, broken).Apply(context.Background(), corpus())
	assert.ErrorContains(t, err, "getting excluded jobs from file")
}

type failingFilter struct{ toggle }

func (failingFilter) Name() string    { return "failing" }
func (failingFilter) Validate() error { return nil }
func (failingFilter) Apply(context.Context, []profile.JobDescription) ([]profile.JobDescription, Step, error) {
	return nil, Step{}, errors.New("boom")
}

func TestDisabledFiltersAreSkipped(t *testing.T) {
	steps := []Filter{&failingFilter{}, NewSalary(10, 5)}
	DisableByName(steps, "failing", "not needed")
	DisableByName(steps, "salary", "open range")

	left, report, err := Run(context.Background(), zap.NewNop(), steps, corpus())
	require.NoError(t, err)
	assert.Len(t, left, 4)
	assert.Empty(t, report)

	statuses := Describe(steps)
	require.Len(t, statuses, 2)
	assert.Equal(t, Status{Name: "failing", Enabled: false}, statuses[0])
	assert.False(t, statuses[1].Enabled)
	assert.Equal(t, "open range", statuses[1].Reason)
	assert.Equal(t, "10", statuses[1].Details["min"])

	steps[0] = &failingFilter{}
	_, _, err = Run(context.Background(), zap.NewNop(), steps[:1], corpus())
	assert.EqualError(t, err, "failing: boom")
}

func TestRunHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := Run(ctx, nil, []Filter{NewSalary(0, 0)}, corpus())
	assert.ErrorIs(t, err, context.Canceled)
}
