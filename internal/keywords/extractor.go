package keywords

import (
	"context"
	_ "embed"
	"encoding/json"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spigell/resume-matcher/internal/ai"
	"github.com/spigell/resume-matcher/internal/utils"
	"go.uber.org/zap"
)

// SourceKind tells the extractor what kind of text it reads.
type SourceKind string

const (
	SourceJobDescription SourceKind = "job_description"
	SourceResume         SourceKind = "resume"
)

// Method records which path produced an extraction result.
type Method string

const (
	// MethodModel means the generator answered with parseable keywords.
	MethodModel Method = "model"
	// MethodFallback means the vocabulary matcher was used.
	MethodFallback Method = "fallback"
	// MethodUnparsed means the generator answered but nothing could be parsed.
	// The keywords are empty and carry no signal.
	MethodUnparsed Method = "unparsed"
	// MethodSkipped means the input text was blank.
	MethodSkipped Method = "skipped"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultMaxLogLen = 200
	maxSuggestions   = 10
)

var (
	//go:embed prompts/extract_system.md
	extractSystemTemplate string
	//go:embed prompts/extract.md
	extractTemplate string
	//go:embed prompts/suggest.md
	suggestTemplate string
)

// categoryAliases maps key spellings seen in model output to categories.
var categoryAliases = map[string]Category{
	"technical":          Technical,
	"technical_skills":   Technical,
	"soft":               Soft,
	"soft_skills":        Soft,
	"tools":              Tools,
	"tools_technologies": Tools,
	"certifications":     Certifications,
	"industry":           Industry,
	"industry_terms":     Industry,
}

// Result is the outcome of one extraction.
type Result struct {
	Keywords Keywords `json:"keywords"`
	Method   Method   `json:"method"`
	Warning  string   `json:"warning,omitempty"`
}

// Extractor turns free text into categorized keywords. A nil generator
// selects the vocabulary fallback for every call.
type Extractor struct {
	generator ai.Generator
	timeout   time.Duration
	maxLogLen int
	logger    *zap.Logger
}

type Option func(*Extractor)

// WithTimeout bounds every generator call.
func WithTimeout(d time.Duration) Option {
	return func(e *Extractor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithMaxLogLength sets the preview length of logged prompts and responses.
func WithMaxLogLength(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.maxLogLen = n
		}
	}
}

func NewExtractor(generator ai.Generator, logger *zap.Logger, opts ...Option) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Extractor{
		generator: generator,
		timeout:   defaultTimeout,
		maxLogLen: defaultMaxLogLen,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Available reports whether a generator is configured.
func (e *Extractor) Available() bool {
	return e != nil && e.generator != nil
}

// Extract returns keywords for the requested categories. It never fails:
// generator errors and timeouts switch to the vocabulary fallback, and an
// unparseable answer yields empty keywords with MethodUnparsed.
func (e *Extractor) Extract(ctx context.Context, text string, source SourceKind, categories []Category) Result {
	if len(categories) == 0 {
		categories = AllCategories
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return Result{Method: MethodSkipped}
	}

	if !e.Available() {
		return Result{Keywords: fallbackKeywords(text), Method: MethodFallback}
	}

	log := e.logger.With(zap.String("source", string(source)))

	raw, err := e.generate(ctx, buildExtractSystem(categories), buildExtractPrompt(text, source, categories))
	if err != nil {
		log.Warn("keyword extraction via model failed, using vocabulary fallback", zap.Error(err))
		return Result{
			Keywords: fallbackKeywords(text),
			Method:   MethodFallback,
			Warning:  "model keyword extraction failed (" + err.Error() + "); used vocabulary fallback",
		}
	}

	kw, ok := parseKeywords(raw)
	if !ok {
		log.Warn("keyword extraction response is not parseable",
			zap.String("response_preview", utils.TruncateForLog(raw, e.maxLogLen)),
		)
		return Result{
			Method:  MethodUnparsed,
			Warning: "model keyword extraction returned an unparseable response; no keyword signal for " + string(source),
		}
	}

	kw = kw.Only(categories)
	log.Debug("keywords extracted", zap.Int("count", kw.Flatten().Len()))

	return Result{Keywords: kw, Method: MethodModel}
}

// Suggest asks the generator for keywords worth adding for targetRole. Any
// failure yields an empty list.
func (e *Extractor) Suggest(ctx context.Context, current []string, targetRole string) []string {
	if !e.Available() {
		return []string{}
	}

	have := Normalize(current)
	prompt := strings.ReplaceAll(suggestTemplate, "{{ROLE}}", strings.TrimSpace(targetRole))
	prompt = strings.ReplaceAll(prompt, "{{KEYWORDS}}", strings.Join(have.Items(), ", "))

	raw, err := e.generate(ctx, "", prompt)
	if err != nil {
		e.logger.Warn("keyword suggestion failed", zap.Error(err))
		return []string{}
	}

	suggested, ok := parseSuggestions(raw)
	if !ok {
		e.logger.Warn("keyword suggestion response is not parseable",
			zap.String("response_preview", utils.TruncateForLog(raw, e.maxLogLen)),
		)
		return []string{}
	}

	out := suggested.Minus(have).Items()
	if len(out) > maxSuggestions {
		out = out[:maxSuggestions]
	}
	return out
}

func (e *Extractor) generate(ctx context.Context, system, prompt string) (string, error) {
	ctx, cancel := utils.WithTimeout(ctx, e.timeout)
	defer cancel()

	e.logger.Debug("keyword prompt",
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, e.maxLogLen)),
	)

	raw, err := e.generator.Generate(ctx, system, prompt, ai.FormatJSON)
	if err != nil {
		return "", err
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	return raw, nil
}

func buildExtractSystem(categories []Category) string {
	return strings.ReplaceAll(extractSystemTemplate, "{{CATEGORIES}}", categoryList(categories))
}

func buildExtractPrompt(text string, source SourceKind, categories []Category) string {
	label := "job description"
	if source == SourceResume {
		label = "résumé"
	}
	prompt := strings.ReplaceAll(extractTemplate, "{{SOURCE}}", label)
	prompt = strings.ReplaceAll(prompt, "{{CATEGORIES}}", categoryList(categories))
	return strings.ReplaceAll(prompt, "{{TEXT}}", text)
}

func categoryList(categories []Category) string {
	names := make([]string, 0, len(categories))
	for _, c := range categories {
		names = append(names, string(c))
	}
	return strings.Join(names, ", ")
}

// parseKeywords reads a categorized JSON object. Unknown keys are ignored and
// missing categories stay empty.
func parseKeywords(raw string) (Keywords, bool) {
	doc, ok := ai.ExtractJSON(raw)
	if !ok {
		return Keywords{}, false
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(doc), &data); err != nil {
		return Keywords{}, false
	}

	keys := make([]string, 0, len(data))
	for key := range data {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var kw Keywords
	for _, key := range keys {
		c, known := categoryAliases[NormalizeOne(key)]
		if !known {
			continue
		}
		kw.Get(c).Add(ai.CoerceStrings(data[key])...)
	}
	return kw, true
}

func parseSuggestions(raw string) (Set, bool) {
	doc, ok := ai.ExtractJSON(raw)
	if !ok {
		return Set{}, false
	}

	var data any
	if err := json.Unmarshal([]byte(doc), &data); err != nil {
		return Set{}, false
	}

	switch v := data.(type) {
	case []any:
		return Normalize(ai.CoerceStrings(v)), true
	case map[string]any:
		for _, key := range []string{"keywords", "suggestions", "suggested_keywords"} {
			if list, ok := v[key]; ok {
				return Normalize(ai.CoerceStrings(list)), true
			}
		}
	}
	return Set{}, false
}
