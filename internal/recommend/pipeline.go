// Package recommend ranks a job corpus for one candidate.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/spigell/resume-matcher/internal/ai"
	"github.com/spigell/resume-matcher/internal/logger"
	"github.com/spigell/resume-matcher/internal/matching"
	"github.com/spigell/resume-matcher/internal/profile"
	"github.com/spigell/resume-matcher/internal/utils"
	"github.com/spigell/resume-matcher/internal/vectorindex"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	metaTitle    = "title"
	metaCompany  = "company"
	metaLocation = "location"

	defaultEmbeddingTimeout = 20 * time.Second
)

// ErrCorpusTooLarge is returned when the corpus cannot be shortlisted and
// exceeds the synchronous scoring bound.
var ErrCorpusTooLarge = errors.New("corpus too large for a synchronous scan; try shortlisting or pagination")

// Pipeline fans the matching engine out over a corpus. The index and the
// engine's embedder are optional; without them no shortlisting happens.
type Pipeline struct {
	engine   *matching.Engine
	index    vectorindex.Index
	embedder ai.Embedder

	placeholderOnFailure bool
	embeddingTimeout     time.Duration
	indexWorkers         int

	logger *zap.Logger
}

type Option func(*Pipeline)

// WithPlaceholderOnFailure stores a seeded random placeholder vector for
// jobs whose embedding fails instead of an unavailable entry.
func WithPlaceholderOnFailure(enabled bool) Option {
	return func(p *Pipeline) { p.placeholderOnFailure = enabled }
}

func WithEmbeddingTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.embeddingTimeout = d
		}
	}
}

// WithIndexWorkers bounds concurrent embedding calls during Index.
func WithIndexWorkers(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.indexWorkers = n
		}
	}
}

// New builds a Pipeline. index may be nil.
func New(engine *matching.Engine, index vectorindex.Index, log *zap.Logger, opts ...Option) (*Pipeline, error) {
	if engine == nil {
		return nil, errors.New("matching engine is required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	p := &Pipeline{
		engine:           engine,
		index:            index,
		embedder:         engine.Embedder(),
		embeddingTimeout: defaultEmbeddingTimeout,
		indexWorkers:     DefaultWorkers,
		logger:           logger.Named(log, "recommend"),
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.index != nil && p.embedder != nil && p.index.Dimension() != p.embedder.Dimension() {
		return nil, fmt.Errorf("index dimension %d does not match embedder dimension %d", p.index.Dimension(), p.embedder.Dimension())
	}
	return p, nil
}

// canShortlist reports whether similarity shortlisting is configured.
func (p *Pipeline) canShortlist() bool {
	return p.index != nil && p.embedder != nil
}

// IndexStats counts stored entries by embedding state.
type IndexStats struct {
	Present     int `json:"present"`
	Placeholder int `json:"placeholder"`
	Unavailable int `json:"unavailable"`
}

// Index upserts an embedding for every job. Usable precomputed vectors of the
// right dimension are used as they are; the rest are embedded. Embedding
// failures never abort indexing, but index errors such as ErrCapacity do.
// Entries stored before such an error stay in the index and are counted in
// the returned stats.
func (p *Pipeline) Index(ctx context.Context, jobs []profile.JobDescription) (IndexStats, error) {
	if p.index == nil {
		return IndexStats{}, errors.New("no vector index configured")
	}
	dim := p.index.Dimension()

	embeddings := make([]vectorindex.Embedding, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.indexWorkers)
	for i := range jobs {
		g.Go(func() error {
			embeddings[i] = p.embedJob(gctx, jobs[i], dim)
			return nil
		})
	}
	_ = g.Wait()

	var stats IndexStats
	for i, job := range jobs {
		meta := map[string]any{
			metaTitle:    job.Title,
			metaCompany:  job.Company,
			metaLocation: job.Location,
		}
		if err := p.index.Upsert(ctx, job.ID, embeddings[i], meta); err != nil {
			return stats, fmt.Errorf("index job %q (stored %d of %d): %w", job.ID, i, len(jobs), err)
		}

		switch embeddings[i].State() {
		case vectorindex.StatePresent:
			stats.Present++
		case vectorindex.StatePlaceholder:
			stats.Placeholder++
		default:
			stats.Unavailable++
		}
	}

	p.logger.Info("jobs indexed",
		zap.Int("present", stats.Present),
		zap.Int("placeholder", stats.Placeholder),
		zap.Int("unavailable", stats.Unavailable),
		zap.Int("index_size", p.index.Len()),
	)
	return stats, nil
}

func (p *Pipeline) embedJob(ctx context.Context, job profile.JobDescription, dim int) vectorindex.Embedding {
	if len(job.Embedding) == dim {
		err := vectorindex.CheckVector(job.Embedding)
		if err == nil {
			return vectorindex.Present(job.Embedding)
		}
		p.logger.Warn("ignoring precomputed job embedding", zap.String(logger.FieldJobID, job.ID), zap.Error(err))
	}
	if p.embedder == nil {
		return p.degraded(job.ID, dim)
	}

	ctx, cancel := utils.WithTimeout(ctx, p.embeddingTimeout)
	defer cancel()

	vec, err := p.embedder.Embed(ctx, profile.JobText(job))
	if err == nil && len(vec) != dim {
		err = &vectorindex.DimensionError{Want: dim, Got: len(vec)}
	}
	if err == nil {
		err = vectorindex.CheckVector(vec)
	}
	if err != nil {
		p.logger.Warn("job embedding failed",
			zap.String(logger.FieldJobID, job.ID),
			zap.Bool("placeholder", p.placeholderOnFailure),
			zap.Error(err),
		)
		return p.degraded(job.ID, dim)
	}
	return vectorindex.Present(vec)
}

func (p *Pipeline) degraded(id string, dim int) vectorindex.Embedding {
	if !p.placeholderOnFailure {
		return vectorindex.Unavailable()
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(id))
	return vectorindex.RandomPlaceholder(dim, h.Sum64())
}

// shortlist keeps the jobs most similar to the résumé, in input order. Jobs
// without a real embedding cannot be ranked and are always kept; their count
// is returned as unembedded.
func (p *Pipeline) shortlist(ctx context.Context, jobs []profile.JobDescription, resumeVec []float32, opts Options) (kept []profile.JobDescription, unembedded int, err error) {
	var missing []profile.JobDescription
	for _, j := range jobs {
		if !p.index.Has(j.ID) {
			missing = append(missing, j)
		}
	}
	if len(missing) > 0 {
		if _, err := p.Index(ctx, missing); err != nil {
			return nil, 0, err
		}
	}

	// Scan everything: the index may hold jobs outside this corpus, and
	// placeholders must be told apart from real hits.
	hits, err := p.index.Query(ctx, resumeVec, vectorindex.QueryOptions{
		TopK:         p.index.Len(),
		Threshold:    -1,
		ThresholdSet: true,
	})
	if err != nil {
		return nil, 0, err
	}

	inCorpus := make(map[string]struct{}, len(jobs))
	for _, j := range jobs {
		inCorpus[j.ID] = struct{}{}
	}

	threshold := opts.SimilarityThreshold
	if threshold == 0 {
		threshold = vectorindex.DefaultThreshold
	}

	ranked := make(map[string]struct{}, len(jobs))
	selected := make(map[string]struct{}, opts.ShortlistSize)
	for _, h := range hits {
		if _, ok := inCorpus[h.ID]; !ok || h.Placeholder {
			continue
		}
		ranked[h.ID] = struct{}{}
		if h.Score >= threshold && len(selected) < opts.ShortlistSize {
			selected[h.ID] = struct{}{}
		}
	}

	for _, j := range jobs {
		if _, ok := ranked[j.ID]; !ok {
			unembedded++
			kept = append(kept, j)
			continue
		}
		if _, ok := selected[j.ID]; ok {
			kept = append(kept, j)
		}
	}
	return kept, unembedded, nil
}
