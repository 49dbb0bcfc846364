package recommend

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/spigell/resume-matcher/internal/filtering"
	"github.com/spigell/resume-matcher/internal/logger"
	"github.com/spigell/resume-matcher/internal/matching"
	"github.com/spigell/resume-matcher/internal/profile"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Item is one ranked recommendation.
type Item struct {
	Job   profile.JobDescription `json:"job"`
	Match *matching.MatchResult  `json:"match"`
}

// JobError records a job whose analysis failed.
type JobError struct {
	JobID string `json:"job_id"`
	Error string `json:"error"`
}

// Report is the ranked outcome of Recommend together with the counts that
// explain how the corpus was narrowed.
type Report struct {
	Items []Item `json:"items"`

	Considered  int                `json:"considered"`
	Filters     []filtering.Status `json:"filters,omitempty"`
	Steps       []filtering.Step   `json:"steps,omitempty"`
	Filtered    int                `json:"filtered"`
	Shortlisted bool               `json:"shortlisted"`
	// Unembedded jobs bypassed shortlisting because they have no real
	// embedding.
	Unembedded    int        `json:"unembedded,omitempty"`
	Scored        int        `json:"scored"`
	BelowMinScore int        `json:"below_min_score,omitempty"`
	Failed        int        `json:"failed,omitempty"`
	Errors        []JobError `json:"errors,omitempty"`
	TimedOut      int        `json:"timed_out,omitempty"`
	// Truncated is set when more items passed than Limit allows.
	Truncated bool     `json:"truncated,omitempty"`
	Warnings  []string `json:"warnings,omitempty"`
}

// filterSteps builds the corpus filters in order. Steps without options are
// kept in the list but disabled, so the report shows why they did not run.
func filterSteps(opts Options) []filtering.Filter {
	steps := []filtering.Filter{
		filtering.NewExcludedIDs(opts.ExcludeIDs, opts.ExcludeFile),
		filtering.NewLocation(opts.Locations, opts.AllowRemote),
		filtering.NewSalary(opts.MinSalary, opts.MaxSalary),
	}
	if len(opts.ExcludeIDs) == 0 && opts.ExcludeFile == "" {
		filtering.DisableByName(steps, filtering.ExcludedIDsName, "no excluded ids or exclude file")
	}
	if len(opts.Locations) == 0 {
		filtering.DisableByName(steps, filtering.LocationName, "no locations requested")
	}
	if opts.MinSalary == 0 && opts.MaxSalary == 0 {
		filtering.DisableByName(steps, filtering.SalaryName, "no salary bounds set")
	}
	return steps
}

// Recommend filters the corpus, shortlists it by similarity when it is
// large, scores the remaining jobs concurrently and returns them ranked by
// score. Ties keep corpus order.
func (p *Pipeline) Recommend(ctx context.Context, resume profile.CandidateProfile, corpus []profile.JobDescription, opts Options) (*Report, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()

	if err := resume.Validate(); err != nil {
		return nil, fmt.Errorf("resume: %w", err)
	}
	if err := profile.ValidateCorpus(corpus); err != nil {
		return nil, fmt.Errorf("corpus: %w", err)
	}

	report := &Report{Considered: len(corpus), Items: []Item{}}

	steps := filterSteps(opts)
	report.Filters = filtering.Describe(steps)
	p.logger.Debug("filters configured", zap.Any("filters", report.Filters))

	jobs, stepReport, err := filtering.Run(ctx, p.logger, steps, corpus)
	if err != nil {
		return nil, fmt.Errorf("filter corpus: %w", err)
	}
	report.Steps = stepReport
	report.Filtered = len(jobs)

	var resumeVec []float32
	if len(jobs) > opts.ShortlistAbove && p.canShortlist() {
		resumeVec, err = p.engine.EmbedResume(ctx, resume)
		if err != nil {
			p.logger.Warn("résumé embedding failed; scoring without shortlist", zap.Error(err))
			report.Warnings = append(report.Warnings, fmt.Sprintf("shortlisting unavailable: %v", err))
		} else {
			kept, unembedded, err := p.shortlist(ctx, jobs, resumeVec, opts)
			if err != nil {
				return nil, fmt.Errorf("shortlist: %w", err)
			}
			p.logger.Info("corpus shortlisted",
				zap.Int("before", len(jobs)),
				zap.Int("after", len(kept)),
				zap.Int("unembedded", unembedded),
			)
			jobs = kept
			report.Shortlisted = true
			report.Unembedded = unembedded
		}
	}

	// embed once for the semantic factor instead of once per job
	if resumeVec == nil && p.embedder != nil && p.engine.Policy().SemanticWeight > 0 {
		if vec, err := p.engine.EmbedResume(ctx, resume); err == nil {
			resumeVec = vec
		}
	}

	if len(jobs) > opts.MaxCorpus {
		return nil, fmt.Errorf("%w: %d jobs to score, limit %d", ErrCorpusTooLarge, len(jobs), opts.MaxCorpus)
	}

	matches, errs, timedOut := p.scoreAll(ctx, resume, jobs, resumeVec, opts)
	report.TimedOut = timedOut

	for i, job := range jobs {
		switch {
		case errs[i] != nil:
			report.Failed++
			report.Errors = append(report.Errors, JobError{JobID: job.ID, Error: errs[i].Error()})
		case matches[i] == nil:
			// not started before the deadline
		case matches[i].Score < opts.MinScore:
			report.Scored++
			report.BelowMinScore++
		default:
			report.Scored++
			job.Embedding = nil
			report.Items = append(report.Items, Item{Job: job, Match: matches[i]})
		}
	}

	sort.SliceStable(report.Items, func(i, j int) bool {
		return report.Items[i].Match.Score > report.Items[j].Match.Score
	})
	if len(report.Items) > opts.Limit {
		report.Items = report.Items[:opts.Limit]
		report.Truncated = true
	}

	p.logger.Info("recommendation finished",
		zap.Int("considered", report.Considered),
		zap.Int("scored", report.Scored),
		zap.Int("failed", report.Failed),
		zap.Int("timed_out", report.TimedOut),
		zap.Int("returned", len(report.Items)),
	)
	return report, nil
}

// results collects per-job outcomes from concurrent workers.
type results struct {
	mu      sync.Mutex
	matches []*matching.MatchResult
	errs    []error
}

// scoreAll runs the engine for every job on a bounded pool. The returned
// slices are indexed like jobs; a nil match with a nil error means the job
// never started before the deadline.
func (p *Pipeline) scoreAll(ctx context.Context, resume profile.CandidateProfile, jobs []profile.JobDescription, resumeVec []float32, opts Options) ([]*matching.MatchResult, []error, int) {
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	res := &results{
		matches: make([]*matching.MatchResult, len(jobs)),
		errs:    make([]error, len(jobs)),
	}

	var g errgroup.Group
	g.SetLimit(opts.Workers)

	started := 0
	for i := range jobs {
		if ctx.Err() != nil {
			break
		}
		started++
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			m, err := p.engine.Analyze(ctx, matching.Request{Resume: resume, Job: jobs[i], ResumeEmbedding: resumeVec})

			res.mu.Lock()
			defer res.mu.Unlock()
			if err != nil {
				var verr *matching.ValidationError
				if !errors.As(err, &verr) && ctx.Err() != nil {
					return nil
				}
				p.logger.Warn("job analysis failed", zap.String(logger.FieldJobID, jobs[i].ID), zap.Error(err))
				res.errs[i] = err
				return nil
			}
			res.matches[i] = m
			return nil
		})
	}
	_ = g.Wait()

	timedOut := len(jobs) - started
	for i := 0; i < started; i++ {
		if res.matches[i] == nil && res.errs[i] == nil {
			timedOut++
		}
	}
	if timedOut > 0 {
		p.logger.Warn("recommendation deadline reached", zap.Int("timed_out", timedOut), zap.Duration("timeout", opts.Timeout))
	}
	return res.matches, res.errs, timedOut
}
