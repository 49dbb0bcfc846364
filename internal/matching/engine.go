// Package matching scores a candidate profile against a job description and
// derives capability gaps and improvement suggestions.
package matching

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spigell/resume-matcher/internal/ai"
	"github.com/spigell/resume-matcher/internal/keywords"
	"github.com/spigell/resume-matcher/internal/logger"
	"github.com/spigell/resume-matcher/internal/profile"
	"github.com/spigell/resume-matcher/internal/utils"
	"github.com/spigell/resume-matcher/internal/vectorindex"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Status tells whether a generative stage produced its output.
type Status string

const (
	// StatusComplete means the stage ran; an empty list then means there was
	// nothing to report.
	StatusComplete Status = "complete"
	// StatusUnavailable means the stage failed or timed out.
	StatusUnavailable Status = "unavailable"
	// StatusSkipped means no generator is configured.
	StatusSkipped Status = "skipped"
)

const (
	defaultGenerationTimeout = 60 * time.Second
	defaultEmbeddingTimeout  = 20 * time.Second
)

var (
	//go:embed prompts/gaps_system.md
	gapsSystemPrompt string
	//go:embed prompts/gaps.md
	gapsTemplate string
	//go:embed prompts/suggestions.md
	suggestionsTemplate string
)

// ExtractionInfo records how one side's keywords were obtained.
type ExtractionInfo struct {
	Method  keywords.Method `json:"method"`
	Count   int             `json:"count"`
	Warning string          `json:"warning,omitempty"`
}

type Extraction struct {
	Job    ExtractionInfo `json:"job"`
	Resume ExtractionInfo `json:"resume"`
}

// MatchResult is the outcome of AnalyzeMatch.
type MatchResult struct {
	ID    string `json:"id"`
	JobID string `json:"job_id"`

	Score     int       `json:"score"`
	MatchRate float64   `json:"match_rate"`
	Breakdown Breakdown `json:"breakdown"`

	Matched []string `json:"matched"`
	// Missing holds at most Policy.MissingCap keywords in extractor order.
	Missing          []string `json:"missing"`
	MissingTotal     int      `json:"missing_total"`
	MissingTruncated bool     `json:"missing_truncated,omitempty"`
	// Extra lists résumé-only keywords. It does not affect Score.
	Extra []string `json:"extra"`

	Gaps              []Gap    `json:"gaps"`
	GapsStatus        Status   `json:"gaps_status"`
	Suggestions       []string `json:"suggestions"`
	SuggestionsStatus Status   `json:"suggestions_status"`

	Extraction Extraction `json:"extraction"`
	Warnings   []string   `json:"warnings,omitempty"`

	// Comparison keeps the uncapped keyword sets.
	Comparison keywords.Comparison `json:"-"`
}

func (r *MatchResult) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Deps are the external collaborators of the engine. Only Extractor or
// Generator is needed for keywords; a nil Generator disables gap analysis and
// suggestions, a nil Embedder disables the semantic factor.
type Deps struct {
	Extractor *keywords.Extractor
	Generator ai.Generator
	Embedder  ai.Embedder
	Logger    *zap.Logger
}

// Config carries the engine settings. A nil Policy selects DefaultPolicy.
type Config struct {
	Policy            *Policy
	Categories        []keywords.Category
	GenerationTimeout time.Duration
	EmbeddingTimeout  time.Duration
	MaxLogLength      int
}

// Engine runs the match pipeline. It is safe for concurrent use.
type Engine struct {
	extractor  *keywords.Extractor
	generator  ai.Generator
	embedder   ai.Embedder
	policy     Policy
	scorer     *scorer
	categories []keywords.Category
	genTimeout time.Duration
	embTimeout time.Duration
	maxLogLen  int
	logger     *zap.Logger
}

// NewEngine validates the policy and builds an Engine.
func NewEngine(deps Deps, cfg Config) (*Engine, error) {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	policy := DefaultPolicy()
	if cfg.Policy != nil {
		policy = *cfg.Policy
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	extractor := deps.Extractor
	if extractor == nil {
		extractor = keywords.NewExtractor(deps.Generator, log)
	}

	categories := cfg.Categories
	if len(categories) == 0 {
		categories = keywords.AllCategories
	}

	e := &Engine{
		extractor:  extractor,
		generator:  deps.Generator,
		embedder:   deps.Embedder,
		policy:     policy,
		scorer:     newScorer(policy),
		categories: categories,
		genTimeout: cfg.GenerationTimeout,
		embTimeout: cfg.EmbeddingTimeout,
		maxLogLen:  cfg.MaxLogLength,
		logger:     logger.Named(log, "matching"),
	}
	if e.genTimeout <= 0 {
		e.genTimeout = defaultGenerationTimeout
	}
	if e.embTimeout <= 0 {
		e.embTimeout = defaultEmbeddingTimeout
	}
	if e.maxLogLen <= 0 {
		e.maxLogLen = 200
	}
	return e, nil
}

// Policy returns the active scoring policy.
func (e *Engine) Policy() Policy { return e.policy }

// Embedder returns the configured embedder, nil when none.
func (e *Engine) Embedder() ai.Embedder { return e.embedder }

// Request is one match. ResumeEmbedding may carry a precomputed vector of
// the résumé text so that callers scoring many jobs embed it only once.
type Request struct {
	Resume          profile.CandidateProfile
	Job             profile.JobDescription
	ResumeEmbedding []float32
}

// AnalyzeMatch scores resume against job.
func (e *Engine) AnalyzeMatch(ctx context.Context, resume profile.CandidateProfile, job profile.JobDescription) (*MatchResult, error) {
	return e.Analyze(ctx, Request{Resume: resume, Job: job})
}

// Analyze runs extraction, scoring, gap analysis and suggestions in order.
// Input validation failures and invalid gap priorities are returned as
// errors; failures of the generator or embedder degrade the result and are
// listed in Warnings.
func (e *Engine) Analyze(ctx context.Context, req Request) (*MatchResult, error) {
	if err := req.Resume.Validate(); err != nil {
		return nil, fmt.Errorf("resume: %w", err)
	}
	if err := req.Job.Validate(); err != nil {
		return nil, fmt.Errorf("job %q: %w", req.Job.ID, err)
	}

	result := &MatchResult{ID: uuid.NewString(), JobID: req.Job.ID}
	log := logger.WithFields(e.logger, logger.MatchFields(result.ID, req.Job.ID)...)

	jobText := profile.JobText(req.Job)
	resumeText := profile.ResumeText(req.Resume)

	// Stage 1: extraction, both sides concurrently.
	var jobKW, resumeKW keywords.Result
	var g errgroup.Group
	g.Go(func() error {
		jobKW = e.extractor.Extract(ctx, jobText, keywords.SourceJobDescription, e.categories)
		return nil
	})
	g.Go(func() error {
		resumeKW = e.extractor.Extract(ctx, resumeText, keywords.SourceResume, e.categories)
		return nil
	})
	_ = g.Wait()

	result.Extraction = Extraction{
		Job:    extractionInfo(jobKW),
		Resume: extractionInfo(resumeKW),
	}
	for _, w := range []string{jobKW.Warning, resumeKW.Warning} {
		if w != "" {
			result.Warnings = append(result.Warnings, w)
		}
	}

	// Stage 2: overlap and weighted score.
	e.score(ctx, log, req, jobText, resumeText, jobKW.Keywords, resumeKW.Keywords, result)

	log.Debug("match scored",
		zap.Int("score", result.Score),
		zap.Int("matched", len(result.Matched)),
		zap.Int("missing", result.MissingTotal),
	)

	// Stages 3 and 4 need the generator.
	if e.generator == nil {
		result.Gaps, result.GapsStatus = []Gap{}, StatusSkipped
		result.Suggestions, result.SuggestionsStatus = []string{}, StatusSkipped
		return result, nil
	}

	if err := e.analyzeGaps(ctx, log, jobText, resumeText, result); err != nil {
		return nil, err
	}
	e.suggest(ctx, log, result)

	return result, nil
}

func extractionInfo(r keywords.Result) ExtractionInfo {
	return ExtractionInfo{Method: r.Method, Count: r.Keywords.Flatten().Len(), Warning: r.Warning}
}

func (e *Engine) score(ctx context.Context, log *zap.Logger, req Request, jobText, resumeText string, jobKW, resumeKW keywords.Keywords, result *MatchResult) {
	cmp := keywords.Compare(jobKW, resumeKW)
	result.Comparison = cmp
	result.MatchRate = cmp.MatchRate
	result.Matched = cmp.Matched.Items()
	result.Extra = cmp.Extra.Items()

	missing := cmp.Missing.Items()
	result.MissingTotal = len(missing)
	if len(missing) > e.policy.MissingCap {
		missing = missing[:e.policy.MissingCap]
		result.MissingTruncated = true
	}
	result.Missing = missing

	b := Breakdown{
		Keyword:    keywordScore(cmp),
		Experience: e.scorer.experienceScore(len(req.Resume.Experience), jobText),
		Skill:      skillScore(req.Resume.SkillNames(), cmp.Matched),
	}
	if term := e.scorer.seniorityTerm(jobText); term != "" && len(req.Resume.Experience) < e.policy.SeniorityMinEntries {
		log.Debug("seniority penalty applied", zap.String("term", term), zap.Int("entries", len(req.Resume.Experience)))
	}

	if e.policy.LocationWeight > 0 {
		loc := locationScore(req.Resume, req.Job)
		b.Location = &loc
	}

	if e.policy.SemanticWeight > 0 {
		if sim, err := e.similarity(ctx, req, jobText, resumeText); err != nil {
			log.Warn("semantic factor unavailable", zap.Error(err))
			result.warn("semantic similarity unavailable: %v", err)
		} else {
			sem := semanticScore(sim)
			b.Semantic = &sem
		}
	}

	result.Breakdown = b
	result.Score = e.scorer.combine(b)
}

func (e *Engine) similarity(ctx context.Context, req Request, jobText, resumeText string) (float64, error) {
	if e.embedder == nil {
		return 0, ai.ErrUnavailable
	}
	dim := e.embedder.Dimension()

	resumeVec := req.ResumeEmbedding
	if len(resumeVec) != dim {
		var err error
		if resumeVec, err = e.embed(ctx, resumeText); err != nil {
			return 0, fmt.Errorf("embed resume: %w", err)
		}
	}

	jobVec := req.Job.Embedding
	if len(jobVec) != dim {
		var err error
		if jobVec, err = e.embed(ctx, jobText); err != nil {
			return 0, fmt.Errorf("embed job: %w", err)
		}
	}

	return vectorindex.Cosine(resumeVec, jobVec)
}

// EmbedResume embeds the résumé text with the configured embedder.
func (e *Engine) EmbedResume(ctx context.Context, resume profile.CandidateProfile) ([]float32, error) {
	if e.embedder == nil {
		return nil, ai.ErrUnavailable
	}
	return e.embed(ctx, profile.ResumeText(resume))
}

func (e *Engine) embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := utils.WithTimeout(ctx, e.embTimeout)
	defer cancel()

	vec, err := e.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := vectorindex.CheckVector(vec); err != nil {
		return nil, fmt.Errorf("embedder returned an unusable vector: %w", err)
	}
	return vec, nil
}

func (e *Engine) generate(ctx context.Context, system, prompt string) (string, error) {
	ctx, cancel := utils.WithTimeout(ctx, e.genTimeout)
	defer cancel()

	raw, err := e.generator.Generate(ctx, system, prompt, ai.FormatJSON)
	if err != nil {
		return "", err
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	return raw, nil
}

// analyzeGaps fills Gaps and GapsStatus. Only an invalid priority is returned
// as an error.
func (e *Engine) analyzeGaps(ctx context.Context, log *zap.Logger, jobText, resumeText string, result *MatchResult) error {
	prompt := strings.ReplaceAll(gapsTemplate, "{{MISSING}}", bulletList(result.Missing))
	prompt = strings.ReplaceAll(prompt, "{{JOB}}", jobText)
	prompt = strings.ReplaceAll(prompt, "{{RESUME}}", resumeText)

	raw, err := e.generate(ctx, gapsSystemPrompt, prompt)
	if err != nil {
		log.Warn("gap analysis failed", zap.Error(err))
		result.Gaps, result.GapsStatus = []Gap{}, StatusUnavailable
		result.warn("gap analysis unavailable: %v", err)
		return nil
	}

	gaps, err := parseGaps(raw)
	if err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			return fmt.Errorf("gap analysis: %w", err)
		}
		log.Warn("gap analysis response rejected",
			zap.Error(err),
			zap.String("response_preview", utils.TruncateForLog(raw, e.maxLogLen)),
		)
		result.Gaps, result.GapsStatus = []Gap{}, StatusUnavailable
		result.warn("gap analysis unavailable: %v", err)
		return nil
	}

	result.Gaps, result.GapsStatus = gaps, StatusComplete
	return nil
}

func (e *Engine) suggest(ctx context.Context, log *zap.Logger, result *MatchResult) {
	missing := result.Missing
	if len(missing) > e.policy.SuggestionKeywords && e.policy.SuggestionKeywords > 0 {
		missing = missing[:e.policy.SuggestionKeywords]
	}

	gapsJSON, err := json.Marshal(result.Gaps)
	if err != nil {
		gapsJSON = []byte("[]")
	}

	prompt := strings.ReplaceAll(suggestionsTemplate, "{{SCORE}}", strconv.Itoa(result.Score))
	prompt = strings.ReplaceAll(prompt, "{{GAPS}}", string(gapsJSON))
	prompt = strings.ReplaceAll(prompt, "{{MISSING}}", strings.Join(missing, ", "))
	prompt = strings.ReplaceAll(prompt, "{{MIN}}", strconv.Itoa(e.policy.MinSuggestions))
	prompt = strings.ReplaceAll(prompt, "{{MAX}}", strconv.Itoa(e.policy.MaxSuggestions))

	raw, err := e.generate(ctx, "", prompt)
	if err == nil {
		var suggestions []string
		suggestions, err = parseSuggestions(raw, e.policy.MaxSuggestions)
		if err == nil {
			result.Suggestions, result.SuggestionsStatus = suggestions, StatusComplete
			return
		}
		log.Warn("suggestion response rejected", zap.String("response_preview", utils.TruncateForLog(raw, e.maxLogLen)))
	}

	log.Warn("suggestion generation failed", zap.Error(err))
	result.Suggestions, result.SuggestionsStatus = []string{}, StatusUnavailable
	result.warn("suggestions unavailable: %v", err)
}

func bulletList(items []string) string {
	if len(items) == 0 {
		return "(none)"
	}
	return "- " + strings.Join(items, "\n- ")
}
