package gemini

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spigell/resume-matcher/internal/ai"
	"github.com/spigell/resume-matcher/internal/utils"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

// Generator implements ai.Generator on top of Gemini text generation.
type Generator struct {
	models        models
	model         string
	maxRetries    int
	maxQuotaDelay time.Duration
	temperature   *float32
	maxLogLen     int
	logger        *zap.Logger
}

// NewGenerator wires a Generator to an existing genai client.
func NewGenerator(client *genai.Client, cfg Config, log *zap.Logger) (*Generator, error) {
	if client == nil || client.Models == nil {
		return nil, errors.New("gemini client is required")
	}
	return newGenerator(client.Models, cfg, log), nil
}

func newGenerator(m models, cfg Config, log *zap.Logger) *Generator {
	cfg = cfg.withDefaults()
	g := &Generator{
		models:        m,
		model:         cfg.Model,
		maxRetries:    cfg.MaxRetries,
		maxQuotaDelay: cfg.MaxQuotaDelay,
		maxLogLen:     cfg.MaxLogLength,
		logger:        newLogger(log, cfg.Model),
	}
	if cfg.Temperature > 0 {
		g.temperature = genai.Ptr(cfg.Temperature)
	}
	return g
}

func (g *Generator) Provider() string { return Provider }

func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.model
}

// Generate sends the prompts to Gemini and returns the concatenated text parts
// of the response.
func (g *Generator) Generate(ctx context.Context, system, user string, format ai.ResponseFormat) (string, error) {
	if g == nil || g.models == nil {
		return "", ai.ErrUnavailable
	}

	user = strings.TrimSpace(user)
	if user == "" {
		return "", errors.New("prompt must not be empty")
	}

	config := &genai.GenerateContentConfig{Temperature: g.temperature}
	if system = strings.TrimSpace(system); system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if format == ai.FormatJSON {
		config.ResponseMIMEType = string(ai.FormatJSON)
	}

	g.logger.Debug("gemini generate content request",
		zap.Int("prompt_length", utf8.RuneCountInString(user)),
		zap.String("prompt_preview", utils.TruncateForLog(user, g.maxLogLen)),
	)

	resp, err := withRetries(ctx, g.logger, "generate content", g.maxRetries, g.maxQuotaDelay, func() (*genai.GenerateContentResponse, error) {
		return g.models.GenerateContent(ctx, g.model, genai.Text(user), config)
	})
	if err != nil {
		return "", err
	}

	output := responseText(resp)
	if output == "" {
		return "", errors.New("gemini api returned empty response")
	}

	g.logger.Debug("gemini generate content response",
		zap.Int("response_length", utf8.RuneCountInString(output)),
		zap.String("response_preview", utils.TruncateForLog(output, g.maxLogLen)),
	)

	return output, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	return strings.TrimSpace(builder.String())
}
