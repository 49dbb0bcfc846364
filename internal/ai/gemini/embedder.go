package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spigell/resume-matcher/internal/ai"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

const defaultEmbeddingDimension = 768

// Embedder implements ai.Embedder with a fixed output dimensionality.
type Embedder struct {
	models        models
	model         string
	dimension     int
	maxRetries    int
	maxQuotaDelay time.Duration
	logger        *zap.Logger
}

func NewEmbedder(client *genai.Client, cfg Config, log *zap.Logger) (*Embedder, error) {
	if client == nil || client.Models == nil {
		return nil, errors.New("gemini client is required")
	}
	return newEmbedder(client.Models, cfg, log), nil
}

func newEmbedder(m models, cfg Config, log *zap.Logger) *Embedder {
	cfg = cfg.withDefaults()
	dim := cfg.EmbeddingDimension
	if dim <= 0 {
		dim = defaultEmbeddingDimension
	}
	return &Embedder{
		models:        m,
		model:         cfg.EmbeddingModel,
		dimension:     dim,
		maxRetries:    cfg.MaxRetries,
		maxQuotaDelay: cfg.MaxQuotaDelay,
		logger:        newLogger(log, cfg.EmbeddingModel),
	}
}

func (e *Embedder) Dimension() int { return e.dimension }

func (e *Embedder) Provider() string { return Provider }

func (e *Embedder) Model() string { return e.model }

// Embed returns the embedding of text. A response whose length differs from
// Dimension is an error.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e == nil || e.models == nil {
		return nil, ai.ErrUnavailable
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("embedding text must not be empty")
	}

	config := &genai.EmbedContentConfig{
		TaskType:             "SEMANTIC_SIMILARITY",
		OutputDimensionality: genai.Ptr(int32(e.dimension)),
	}

	resp, err := withRetries(ctx, e.logger, "embed content", e.maxRetries, e.maxQuotaDelay, func() (*genai.EmbedContentResponse, error) {
		return e.models.EmbedContent(ctx, e.model, genai.Text(text), config)
	})
	if err != nil {
		return nil, err
	}

	if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, errors.New("gemini api returned no embeddings")
	}

	values := resp.Embeddings[0].Values
	if len(values) != e.dimension {
		return nil, fmt.Errorf("gemini api returned embedding of dimension %d, want %d", len(values), e.dimension)
	}

	e.logger.Debug("gemini embed content", zap.Int("text_length", len(text)), zap.Int("dimension", len(values)))

	out := make([]float32, len(values))
	copy(out, values)
	return out, nil
}
