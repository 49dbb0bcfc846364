package filtering

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spigell/resume-matcher/internal/profile"
)

type salaryFilter struct {
	toggle
	min, max int
}

// NewSalary keeps jobs whose salary range overlaps [min, max]. A zero bound
// is open. Jobs with an unknown salary are kept.
func NewSalary(min, max int) Filter {
	return &salaryFilter{min: min, max: max}
}

func (f *salaryFilter) Name() string { return SalaryName }

func (f *salaryFilter) Validate() error {
	if f.min < 0 || f.max < 0 {
		return fmt.Errorf("salary bounds must not be negative (min %d, max %d)", f.min, f.max)
	}
	if f.max > 0 && f.min > f.max {
		return fmt.Errorf("min salary %d exceeds max salary %d", f.min, f.max)
	}
	return nil
}

func (f *salaryFilter) Apply(_ context.Context, jobs []profile.JobDescription) ([]profile.JobDescription, Step, error) {
	if f.min == 0 && f.max == 0 {
		return jobs, newStep(len(jobs), len(jobs)), nil
	}

	left := keep(jobs, func(j profile.JobDescription) bool {
		return !j.Salary.Known() || j.Salary.Overlaps(f.min, f.max)
	})

	return left, newStep(len(jobs), len(left)), nil
}

func (f *salaryFilter) Status() Status {
	return Status{
		Name:    f.Name(),
		Enabled: f.IsEnabled(),
		Reason:  f.reason,
		Details: map[string]string{"min": strconv.Itoa(f.min), "max": strconv.Itoa(f.max)},
	}
}
