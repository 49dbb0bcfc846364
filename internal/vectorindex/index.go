// Package vectorindex stores entity embeddings and answers similarity
// queries over them.
package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

const (
	DefaultTopK      = 10
	DefaultThreshold = 0.7

	// MetaPlaceholder is set to true in the metadata of placeholder hits.
	MetaPlaceholder = "placeholder"
	// MetaEmbeddingState echoes the State of the stored embedding.
	MetaEmbeddingState = "embedding_state"
)

// ErrCapacity is returned when an upsert would exceed the configured maximum
// number of entries. Callers should shortlist or paginate instead.
var ErrCapacity = errors.New("vector index capacity exceeded")

// Index is the similarity store used by the recommendation pipeline.
type Index interface {
	Upsert(ctx context.Context, id string, embedding Embedding, metadata map[string]any) error
	Delete(ctx context.Context, ids ...string) error
	Query(ctx context.Context, vector []float32, opts QueryOptions) ([]Hit, error)
	Has(id string) bool
	Len() int
	Dimension() int
}

// QueryOptions tunes a query. Zero values select the defaults.
type QueryOptions struct {
	TopK      int
	Threshold float64
	// ThresholdSet distinguishes an explicit 0 threshold from the default.
	ThresholdSet bool
	// SkipPlaceholders excludes placeholder entries from the scan.
	SkipPlaceholders bool
}

func (o QueryOptions) topK() int {
	if o.TopK <= 0 {
		return DefaultTopK
	}
	return o.TopK
}

func (o QueryOptions) threshold() float64 {
	if !o.ThresholdSet && o.Threshold == 0 {
		return DefaultThreshold
	}
	return o.Threshold
}

// Hit is one query result. Metadata is a copy owned by the caller.
type Hit struct {
	ID          string         `json:"id"`
	Score       float64        `json:"score"`
	Placeholder bool           `json:"placeholder,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type entry struct {
	id        string
	embedding Embedding
	metadata  map[string]any
}

// Memory is an in-process Index. Queries are a linear scan over all
// entries; at hundreds to low thousands of entries this is exact and fast
// enough, and it stays the reference path for any approximate index put
// behind Index later.
//
// Entries are immutable once stored. Upsert swaps the whole entry under the
// write lock, so a reader sees either the old or the new embedding together
// with its own metadata.
type Memory struct {
	dim        int
	maxEntries int
	logger     *zap.Logger

	mu      sync.RWMutex
	entries map[string]*entry
}

type MemoryOption func(*Memory)

// WithMaxEntries caps the number of stored entries. Zero means unlimited.
func WithMaxEntries(n int) MemoryOption {
	return func(m *Memory) { m.maxEntries = n }
}

func WithLogger(logger *zap.Logger) MemoryOption {
	return func(m *Memory) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewMemory creates an index whose vectors must all have dim values.
func NewMemory(dim int, opts ...MemoryOption) (*Memory, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("vector index dimension must be positive, got %d", dim)
	}
	m := &Memory{
		dim:     dim,
		logger:  zap.NewNop(),
		entries: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func (m *Memory) Dimension() int { return m.dim }

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *Memory) Has(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.entries[id]
	return ok
}

// Upsert inserts or replaces the entry for id. Vector and metadata are copied.
func (m *Memory) Upsert(ctx context.Context, id string, embedding Embedding, metadata map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return errors.New("vector index entry id is required")
	}

	stored := Embedding{state: embedding.State()}
	if embedding.Scorable() {
		if len(embedding.vector) != m.dim {
			return fmt.Errorf("upsert %q: %w", id, &DimensionError{Want: m.dim, Got: len(embedding.vector)})
		}
		if err := CheckVector(embedding.vector); err != nil {
			return fmt.Errorf("upsert %q: refusing %w; store it as unavailable instead", id, err)
		}
		stored.vector = cloneVector(embedding.vector)
	}

	e := &entry{id: id, embedding: stored, metadata: cloneMetadata(metadata)}
	e.metadata[MetaEmbeddingState] = string(stored.State())
	if stored.State() == StatePlaceholder {
		e.metadata[MetaPlaceholder] = true
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[id]; !exists && m.maxEntries > 0 && len(m.entries) >= m.maxEntries {
		return fmt.Errorf("upsert %q: %w (max %d entries)", id, ErrCapacity, m.maxEntries)
	}
	m.entries[id] = e

	return nil
}

// Delete removes the given ids. Unknown ids are ignored.
func (m *Memory) Delete(ctx context.Context, ids ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.entries, strings.TrimSpace(id))
	}
	return nil
}

// Query scans every scorable entry, keeps those with similarity >= threshold,
// sorts them by descending score (ties by id) and truncates to topK.
func (m *Memory) Query(ctx context.Context, vector []float32, opts QueryOptions) ([]Hit, error) {
	if len(vector) != m.dim {
		return nil, &DimensionError{Want: m.dim, Got: len(vector)}
	}
	if !finite(vector) {
		return nil, ErrNonFinite
	}

	topK := opts.topK()
	threshold := opts.threshold()

	m.mu.RLock()
	snapshot := make([]*entry, 0, len(m.entries))
	for _, e := range m.entries {
		snapshot = append(snapshot, e)
	}
	m.mu.RUnlock()

	hits := make([]Hit, 0, topK)
	skipped := 0
	for i, e := range snapshot {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		if !e.embedding.Scorable() {
			skipped++
			continue
		}
		placeholder := e.embedding.State() == StatePlaceholder
		if placeholder && opts.SkipPlaceholders {
			skipped++
			continue
		}

		score, err := Cosine(vector, e.embedding.vector)
		if err != nil {
			return nil, err
		}
		if !(score >= threshold) {
			continue
		}

		hits = append(hits, Hit{
			ID:          e.id,
			Score:       score,
			Placeholder: placeholder,
			Metadata:    cloneMetadata(e.metadata),
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}

	m.logger.Debug("vector index query",
		zap.Int("entries", len(snapshot)),
		zap.Int("skipped", skipped),
		zap.Int("hits", len(hits)),
		zap.Int("top_k", topK),
		zap.Float64("threshold", threshold),
	)

	return hits, nil
}

// cloneMetadata copies the top level of m. Nested values are shared, so
// callers should treat metadata values as immutable.
func cloneMetadata(m map[string]any) map[string]any {
	out := make(map[string]any, len(m)+2)
	for k, v := range m {
		out[k] = v
	}
	return out
}

var _ Index = (*Memory)(nil)
