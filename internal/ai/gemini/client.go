package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/spigell/resume-matcher/internal/ai"
	"github.com/spigell/resume-matcher/internal/logger"
	"github.com/spigell/resume-matcher/internal/utils"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

const (
	Provider = "gemini"

	defaultModel          = "gemini-2.5-flash"
	defaultEmbeddingModel = "gemini-embedding-001"
	defaultMaxRetries     = 3
	defaultMaxQuotaDelay  = 30 * time.Second
	defaultMaxLogLength   = 200
	baseBackoff           = 2 * time.Second
	maxBackoff            = 20 * time.Second
)

var wait = utils.WaitFor

var retryAfterPattern = regexp.MustCompile(`(?i)retry (?:after|in) ([0-9]+(?:\.[0-9]+)?)\s*(s|sec|secs|seconds?)\b`)

// models is the subset of *genai.Models used here.
type models interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// Config carries client settings.
type Config struct {
	APIKey             string
	Model              string
	EmbeddingModel     string
	EmbeddingDimension int
	MaxRetries         int
	MaxQuotaDelay      time.Duration
	MaxLogLength       int
	Temperature        float32
}

// NewClient creates the underlying genai client for the Gemini API backend.
func NewClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return client, nil
}

func (c Config) withDefaults() Config {
	if c.Model = strings.TrimSpace(c.Model); c.Model == "" {
		c.Model = defaultModel
	}
	if c.EmbeddingModel = strings.TrimSpace(c.EmbeddingModel); c.EmbeddingModel == "" {
		c.EmbeddingModel = defaultEmbeddingModel
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.MaxQuotaDelay <= 0 {
		c.MaxQuotaDelay = defaultMaxQuotaDelay
	}
	if c.MaxLogLength <= 0 {
		c.MaxLogLength = defaultMaxLogLength
	}
	return c
}

// retryable reports whether err is worth another attempt and how long to wait.
func retryable(err error, attempt int, maxQuotaDelay time.Duration) (time.Duration, bool) {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		var apiErrPtr *genai.APIError
		if !errors.As(err, &apiErrPtr) || apiErrPtr == nil {
			return 0, false
		}
		apiErr = *apiErrPtr
	}

	if apiErr.Code != http.StatusTooManyRequests && apiErr.Code < http.StatusInternalServerError {
		return 0, false
	}

	if delay, ok := parseRetryAfter(apiErr.Message); ok {
		if delay > maxQuotaDelay {
			return delay, false
		}
		return delay, true
	}

	backoff := baseBackoff << attempt
	if backoff > maxBackoff {
		backoff = maxBackoff
	}
	return backoff, true
}

func parseRetryAfter(message string) (time.Duration, bool) {
	m := retryAfterPattern.FindStringSubmatch(message)
	if m == nil {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return time.Duration(seconds * float64(time.Second)), true
}

// withRetries runs call up to attempts times, sleeping between retryable failures.
func withRetries[T any](ctx context.Context, log *zap.Logger, op string, attempts int, maxQuotaDelay time.Duration, call func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		out, err := call()
		if err == nil {
			return out, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, fmt.Errorf("%s: %w", op, ctx.Err())
		}

		delay, retry := retryable(err, attempt, maxQuotaDelay)
		if !retry {
			if delay > 0 {
				log.Warn("not retrying, quota delay is too long",
					zap.String("op", op),
					zap.Duration("retry_after", delay),
					zap.Duration("max_quota_delay", maxQuotaDelay),
				)
			}
			break
		}
		if attempt == attempts-1 {
			break
		}

		log.Warn("temporary ai error, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", attempts),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if err := wait(ctx, delay); err != nil {
			return zero, fmt.Errorf("%s: %w", op, err)
		}
	}

	return zero, fmt.Errorf("%s: %w", op, lastErr)
}

func newLogger(base *zap.Logger, model string) *zap.Logger {
	return logger.WithCommonFields(base, Provider, model)
}

var _ ai.Named = (*Generator)(nil)
