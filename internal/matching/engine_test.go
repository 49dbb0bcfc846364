package matching

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spigell/resume-matcher/internal/ai"
	"github.com/spigell/resume-matcher/internal/keywords"
	"github.com/spigell/resume-matcher/internal/profile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// routeGenerator answers by prompt kind.
type routeGenerator struct {
	mu          sync.Mutex
	job         string
	resume      string
	gaps        string
	gapsErr     error
	suggestions string
	suggestErr  error
	block       bool
	prompts     []string
}

func (r *routeGenerator) Generate(ctx context.Context, _, user string, _ ai.ResponseFormat) (string, error) {
	r.mu.Lock()
	r.prompts = append(r.prompts, user)
	r.mu.Unlock()

	switch {
	case strings.Contains(user, "Extract keywords from the following job description"):
		return r.job, nil
	case strings.Contains(user, "Extract keywords from the following résumé"):
		return r.resume, nil
	case strings.Contains(user, "Identify the most critical gaps"):
		if r.block {
			<-ctx.Done()
			return "", ctx.Err()
		}
		return r.gaps, r.gapsErr
	case strings.Contains(user, "out of 100"):
		if r.block {
			<-ctx.Done()
			return "", ctx.Err()
		}
		return r.suggestions, r.suggestErr
	}
	return "", errors.New("unexpected prompt")
}

func (r *routeGenerator) promptContaining(s string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.prompts {
		if strings.Contains(p, s) {
			return p
		}
	}
	return ""
}

type fakeEmbedder struct {
	dim   int
	byKey map[string][]float32
	err   error
	calls int
	mu    sync.Mutex
}

func (f *fakeEmbedder) Dimension() int { return f.dim }

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for key, vec := range f.byKey {
		if strings.Contains(text, key) {
			return vec, nil
		}
	}
	return []float32{1, 0}, nil
}

func candidate(entries int, skills ...string) profile.CandidateProfile {
	c := profile.CandidateProfile{Name: "Sam Doe", Title: "Frontend Developer", Location: "Berlin, Germany"}
	for i := 0; i < entries; i++ {
		c.Experience = append(c.Experience, profile.ExperienceEntry{
			Company:     fmt.Sprintf("Company %d", i),
			Position:    "Developer",
			Duration:    "1 year",
			Description: "Built web applications",
		})
	}
	for _, s := range skills {
		c.Skills = append(c.Skills, profile.SkillEntry{Name: s, Level: profile.Advanced})
	}
	return c
}

func job(description string) profile.JobDescription {
	return profile.JobDescription{ID: "job-1", Title: "Frontend Engineer", Description: description, Location: "Berlin"}
}

func newTestEngine(t *testing.T, gen ai.Generator, cfg Config) *Engine {
	t.Helper()
	e, err := NewEngine(Deps{Generator: gen, Logger: zap.NewNop()}, cfg)
	require.NoError(t, err)
	return e
}

func TestAnalyzeMatchScenario(t *testing.T) {
	gen := &routeGenerator{
		job:         `{"technical":["React","TypeScript"],"tools":["Docker"]}`,
		resume:      `{"technical":["react","node.js"]}`,
		gaps:        `{"gaps":[{"category":"Technical","description":"No TypeScript experience","priority":" High "}]}`,
		suggestions: `{"suggestions":[{"suggestion":"Add a TypeScript project","reason":"x"},{"suggestion":"Mention Docker usage"}]}`,
	}
	e := newTestEngine(t, gen, Config{})

	res, err := e.AnalyzeMatch(context.Background(), candidate(2, "React", "CSS"), job("Build UIs with React"))
	require.NoError(t, err)

	assert.Equal(t, []string{"react"}, res.Matched)
	assert.Equal(t, []string{"typescript", "docker"}, res.Missing)
	assert.Equal(t, []string{"node.js"}, res.Extra)
	assert.Equal(t, 33, int(math.Round(res.MatchRate)))

	// keyword 33.33, experience 60 (2 entries), skill 50 (react of react/css)
	assert.InDelta(t, 100.0/3, res.Breakdown.Keyword, 1e-9)
	assert.Equal(t, 60.0, res.Breakdown.Experience)
	assert.Equal(t, 50.0, res.Breakdown.Skill)
	assert.Equal(t, int(math.Round(100.0/3*0.4+60*0.3+50*0.3)), res.Score)
	assert.Nil(t, res.Breakdown.Location)
	assert.Nil(t, res.Breakdown.Semantic)

	require.Equal(t, StatusComplete, res.GapsStatus)
	assert.Equal(t, []Gap{{Category: "technical", Description: "No TypeScript experience", Priority: PriorityHigh}}, res.Gaps)

	require.Equal(t, StatusComplete, res.SuggestionsStatus)
	assert.Equal(t, []string{"Add a TypeScript project", "Mention Docker usage"}, res.Suggestions)

	assert.Equal(t, keywords.MethodModel, res.Extraction.Job.Method)
	assert.Equal(t, 3, res.Extraction.Job.Count)
	assert.NotEmpty(t, res.ID)
	assert.Equal(t, "job-1", res.JobID)
	assert.Empty(t, res.Warnings)

	gapsPrompt := gen.promptContaining("Identify the most critical gaps")
	assert.Contains(t, gapsPrompt, "- typescript\n- docker")
	assert.Contains(t, gapsPrompt, "Developer at Company 0 (1 year): Built web applications")
	assert.Equal(t, 46, res.Score)
	assert.Contains(t, gen.promptContaining("out of 100"), "scored 46 out of 100")
}

func TestExperienceScoreScenarios(t *testing.T) {
	s := newScorer(DefaultPolicy())

	assert.Equal(t, 90.0, s.experienceScore(6, "Frontend engineer building dashboards"))
	assert.Equal(t, 50.0, s.experienceScore(1, "We are hiring a Senior frontend engineer"))
	assert.Equal(t, 40.0, s.experienceScore(0, "junior role"))
	assert.Equal(t, 50.0, s.experienceScore(0, "Team LEAD wanted"))
	assert.Equal(t, 60.0, s.experienceScore(2, "mid level"))
	assert.Equal(t, 75.0, s.experienceScore(3, "senior role"), "penalty only applies below three entries")
	assert.Equal(t, 75.0, s.experienceScore(4, "role"))
	assert.Equal(t, 60.0, s.experienceScore(1, "leadership skills welcome"), "seniority terms match whole words")
	assert.Equal(t, 60.0, s.experienceScore(1, "Work with clinical staff and the head nurse"))
	assert.Equal(t, 50.0, s.experienceScore(2, "Engineering manager"))
	assert.Equal(t, 50.0, s.experienceScore(1, "Kubernetes expert"))

	p := DefaultPolicy()
	p.SeniorityTerms = append(p.SeniorityTerms, "staff")
	assert.Equal(t, 50.0, newScorer(p).experienceScore(1, "Staff engineer"), "extra terms come from config")
}

func TestExperienceScenariosThroughEngine(t *testing.T) {
	e := newTestEngine(t, nil, Config{})

	res, err := e.AnalyzeMatch(context.Background(), candidate(6), job("Frontend engineer building dashboards"))
	require.NoError(t, err)
	assert.Equal(t, 90.0, res.Breakdown.Experience)

	res, err = e.AnalyzeMatch(context.Background(), candidate(1), job("Senior frontend engineer"))
	require.NoError(t, err)
	assert.Equal(t, 50.0, res.Breakdown.Experience)
}

func TestSkillScore(t *testing.T) {
	matched := keywords.Normalize([]string{"react", "postgresql", "go"})

	assert.Equal(t, 0.0, skillScore(nil, matched))
	assert.Equal(t, 100.0, skillScore([]string{"React.js", "Postgres"}, matched), "substring in either direction")
	assert.InDelta(t, 100.0/3, skillScore([]string{"Rust", "Vue", "GO"}, matched), 1e-9)
	assert.Equal(t, 0.0, skillScore([]string{"Rust"}, keywords.Set{}))
}

func TestLocationScore(t *testing.T) {
	cand := profile.CandidateProfile{Location: "Berlin, Germany"}

	tests := []struct {
		location string
		want     float64
	}{
		{"", 50},
		{"Berlin", 100},
		{"Remote (EU)", 80},
		{"Munich, Germany", 60},
		{"Austin, TX", 30},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, locationScore(cand, profile.JobDescription{Location: tt.location}), tt.location)
	}
	assert.Equal(t, 50.0, locationScore(profile.CandidateProfile{}, profile.JobDescription{Location: "Berlin"}))
}

func TestCombineMatchesDefaultFormula(t *testing.T) {
	s := newScorer(DefaultPolicy())
	r := rand.New(rand.NewPCG(5, 6))

	for i := 0; i < 1000; i++ {
		b := Breakdown{Keyword: r.Float64() * 100, Experience: r.Float64() * 100, Skill: r.Float64() * 100}
		want := int(math.Round(b.Keyword*0.4 + b.Experience*0.3 + b.Skill*0.3))
		require.Equal(t, want, s.combine(b))
	}
}

func TestCombineOptionalFactors(t *testing.T) {
	p := DefaultPolicy()
	p.LocationWeight = 0.2
	p.SemanticWeight = 0.2
	s := newScorer(p)

	loc, sem := 100.0, 50.0
	got := s.combine(Breakdown{Keyword: 50, Experience: 50, Skill: 50, Location: &loc, Semantic: &sem})
	assert.Equal(t, int(math.Round((0.4*50+0.3*50+0.3*50+0.2*100+0.2*50)/1.4)), got)

	// unavailable semantic factor drops out of the denominator
	got = s.combine(Breakdown{Keyword: 50, Experience: 50, Skill: 50, Location: &loc})
	assert.Equal(t, int(math.Round((0.4*50+0.3*50+0.3*50+0.2*100)/1.2)), got)
}

func TestScoreBoundsProperty(t *testing.T) {
	e := newTestEngine(t, nil, Config{})
	r := rand.New(rand.NewPCG(9, 10))
	vocab := keywords.Vocabulary()

	words := func(n int) string {
		out := make([]string, 0, n)
		for i := 0; i < n; i++ {
			out = append(out, vocab[r.IntN(len(vocab))])
		}
		return strings.Join(out, " and ")
	}

	for i := 0; i < 200; i++ {
		skills := make([]string, r.IntN(6))
		for j := range skills {
			skills[j] = vocab[r.IntN(len(vocab))]
		}
		c := candidate(r.IntN(8), skills...)
		if r.IntN(2) == 0 {
			c.Summary = words(r.IntN(10))
		}
		j := job("Role " + words(r.IntN(12)) + " " + []string{"", "senior", "lead"}[r.IntN(3)])

		res, err := e.AnalyzeMatch(context.Background(), c, j)
		require.NoError(t, err)
		require.GreaterOrEqual(t, res.Score, 0)
		require.LessOrEqual(t, res.Score, 100)
		require.GreaterOrEqual(t, res.MatchRate, 0.0)
		require.LessOrEqual(t, res.MatchRate, 100.0)

		var union keywords.Set
		union.Merge(res.Comparison.Matched)
		union.Merge(res.Comparison.Missing)
		require.Equal(t, res.Comparison.Matched.Len()+res.Comparison.Missing.Len(), union.Len())
	}
}

func TestScoreIsDeterministic(t *testing.T) {
	gen := &routeGenerator{
		job:         `{"technical":["go","kafka","grpc"],"soft":["mentoring"]}`,
		resume:      `{"technical":["go","grpc"]}`,
		gaps:        `{"gaps":[]}`,
		suggestions: `[]`,
	}
	e := newTestEngine(t, gen, Config{})
	c, j := candidate(3, "Go"), job("Go services")

	first, err := e.AnalyzeMatch(context.Background(), c, j)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := e.AnalyzeMatch(context.Background(), c, j)
		require.NoError(t, err)
		require.Equal(t, first.Score, again.Score)
		require.Equal(t, first.Matched, again.Matched)
		require.Equal(t, first.Missing, again.Missing)
		require.Equal(t, first.Breakdown, again.Breakdown)
	}
	assert.Equal(t, StatusComplete, first.GapsStatus)
	assert.Empty(t, first.Gaps, "complete with nothing to report")
}

func TestMissingIsCapped(t *testing.T) {
	items := make([]string, 25)
	for i := range items {
		items[i] = fmt.Sprintf("%q", fmt.Sprintf("skill-%02d", i))
	}
	gen := &routeGenerator{
		job:         `{"technical":[` + strings.Join(items, ",") + `]}`,
		resume:      `{"technical":["skill-00"]}`,
		gaps:        `{"gaps":[]}`,
		suggestions: `{"suggestions":[]}`,
	}
	e := newTestEngine(t, gen, Config{})

	res, err := e.AnalyzeMatch(context.Background(), candidate(1), job("many skills"))
	require.NoError(t, err)

	require.Len(t, res.Missing, 20)
	assert.Equal(t, "skill-01", res.Missing[0], "extractor order is kept")
	assert.Equal(t, "skill-20", res.Missing[19])
	assert.Equal(t, 24, res.MissingTotal)
	assert.True(t, res.MissingTruncated)
	assert.Equal(t, 24, res.Comparison.Missing.Len())

	suggestPrompt := gen.promptContaining("out of 100")
	assert.Contains(t, suggestPrompt, "skill-10")
	assert.NotContains(t, suggestPrompt, "skill-11", "only the first ten missing keywords are sent")
}

func TestInvalidPriorityIsFatal(t *testing.T) {
	gen := &routeGenerator{
		job:    `{"technical":["go"]}`,
		resume: `{"technical":[]}`,
		gaps:   `{"gaps":[{"category":"tech","description":"a","priority":"low"},{"category":"tech","description":"b","priority":"urgent"}]}`,
	}
	e := newTestEngine(t, gen, Config{})

	res, err := e.AnalyzeMatch(context.Background(), candidate(1), job("Go"))
	require.Error(t, err)
	assert.Nil(t, res)

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "gaps[1].priority", ve.Field)
	assert.Equal(t, "urgent", ve.Value)
}

func TestGenerativeStageFailuresArePartial(t *testing.T) {
	gen := &routeGenerator{
		job:        `{"technical":["go","docker"]}`,
		resume:     `{"technical":["go"]}`,
		gapsErr:    errors.New("503 service unavailable"),
		suggestErr: errors.New("quota exceeded"),
	}
	e := newTestEngine(t, gen, Config{})

	res, err := e.AnalyzeMatch(context.Background(), candidate(2, "Go"), job("Go and Docker"))
	require.NoError(t, err)

	assert.Equal(t, []string{"go"}, res.Matched)
	assert.Equal(t, []string{"docker"}, res.Missing)
	assert.Positive(t, res.Score)

	assert.Equal(t, StatusUnavailable, res.GapsStatus)
	assert.NotNil(t, res.Gaps)
	assert.Empty(t, res.Gaps)
	assert.Equal(t, StatusUnavailable, res.SuggestionsStatus)
	assert.Empty(t, res.Suggestions)
	require.Len(t, res.Warnings, 2)
	assert.Contains(t, res.Warnings[0], "503")
	assert.Contains(t, res.Warnings[1], "quota exceeded")
}

func TestMalformedGapResponseIsUnavailable(t *testing.T) {
	for _, raw := range []string{
		"not json at all",
		`{"gaps":[{"category":"tech","priority":"high"}]}`,
		`{"gaps":"none"}`,
	} {
		gen := &routeGenerator{job: `{"technical":["go"]}`, resume: `{}`, gaps: raw, suggestions: `["Learn Go"]`}
		e := newTestEngine(t, gen, Config{})

		res, err := e.AnalyzeMatch(context.Background(), candidate(1), job("Go"))
		require.NoError(t, err, raw)
		assert.Equal(t, StatusUnavailable, res.GapsStatus, raw)
		assert.Equal(t, StatusComplete, res.SuggestionsStatus, raw)
		assert.Equal(t, []string{"Learn Go"}, res.Suggestions)
	}
}

func TestGenerationTimeoutKeepsScore(t *testing.T) {
	gen := &routeGenerator{job: `{"technical":["go"]}`, resume: `{"technical":["go"]}`, block: true}
	e := newTestEngine(t, gen, Config{GenerationTimeout: 20 * time.Millisecond})

	res, err := e.AnalyzeMatch(context.Background(), candidate(3, "Go"), job("Go"))
	require.NoError(t, err)
	assert.Equal(t, 100.0, res.Breakdown.Keyword)
	assert.Equal(t, StatusUnavailable, res.GapsStatus)
	assert.Equal(t, StatusUnavailable, res.SuggestionsStatus)
	assert.Len(t, res.Warnings, 2)
}

func TestNoGeneratorSkipsGenerativeStages(t *testing.T) {
	e := newTestEngine(t, nil, Config{})

	res, err := e.AnalyzeMatch(context.Background(), candidate(2, "Docker"), job("We run Docker and Kubernetes"))
	require.NoError(t, err)

	assert.Equal(t, keywords.MethodFallback, res.Extraction.Job.Method)
	assert.Equal(t, []string{"docker"}, res.Matched)
	assert.Equal(t, []string{"kubernetes"}, res.Missing)
	assert.Equal(t, StatusSkipped, res.GapsStatus)
	assert.Equal(t, StatusSkipped, res.SuggestionsStatus)
	assert.Equal(t, []Gap{}, res.Gaps)
	assert.Equal(t, []string{}, res.Suggestions)
}

func TestSuggestionsAreCapped(t *testing.T) {
	items := make([]string, 12)
	for i := range items {
		items[i] = fmt.Sprintf(`{"suggestion":"tip %d"}`, i)
	}
	gen := &routeGenerator{
		job:         `{"technical":["go"]}`,
		resume:      `{}`,
		gaps:        `[]`,
		suggestions: "```json\n[" + strings.Join(items, ",") + "]\n```",
	}
	e := newTestEngine(t, gen, Config{})

	res, err := e.AnalyzeMatch(context.Background(), candidate(1), job("Go"))
	require.NoError(t, err)
	assert.Len(t, res.Suggestions, 8)
	assert.Equal(t, "tip 0", res.Suggestions[0])
}

func TestSemanticFactor(t *testing.T) {
	p := DefaultPolicy()
	p.SemanticWeight = 0.5
	emb := &fakeEmbedder{dim: 2, byKey: map[string][]float32{
		"Sam Doe":        {1, 0},
		"Data Scientist": {0, 1},
	}}

	e, err := NewEngine(Deps{Embedder: emb}, Config{Policy: &p})
	require.NoError(t, err)

	res, err := e.AnalyzeMatch(context.Background(), candidate(1), job("Frontend"))
	require.NoError(t, err)
	require.NotNil(t, res.Breakdown.Semantic)
	assert.InDelta(t, 100.0, *res.Breakdown.Semantic, 1e-9)

	far := job("Modelling")
	far.Title = "Data Scientist"
	res, err = e.Analyze(context.Background(), Request{Resume: candidate(1), Job: far, ResumeEmbedding: []float32{1, 0}})
	require.NoError(t, err)
	require.NotNil(t, res.Breakdown.Semantic)
	assert.InDelta(t, 0.0, *res.Breakdown.Semantic, 1e-9)

	precomputed := job("Frontend")
	precomputed.Embedding = []float32{1, 0}
	emb.calls = 0
	_, err = e.Analyze(context.Background(), Request{Resume: candidate(1), Job: precomputed, ResumeEmbedding: []float32{1, 0}})
	require.NoError(t, err)
	assert.Zero(t, emb.calls, "precomputed vectors skip the embedder")
}

func TestSemanticFactorFailureIsAWarning(t *testing.T) {
	p := DefaultPolicy()
	p.SemanticWeight = 0.5
	e, err := NewEngine(Deps{Embedder: &fakeEmbedder{dim: 2, err: errors.New("embedding backend down")}}, Config{Policy: &p})
	require.NoError(t, err)

	res, err := e.AnalyzeMatch(context.Background(), candidate(1), job("Frontend"))
	require.NoError(t, err)
	assert.Nil(t, res.Breakdown.Semantic)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "embedding backend down")
}

func TestSemanticFactorRejectsUnusableVectors(t *testing.T) {
	p := DefaultPolicy()
	p.SemanticWeight = 0.5
	emb := &fakeEmbedder{dim: 2, byKey: map[string][]float32{"Data Scientist": {0, 0}}}
	e, err := NewEngine(Deps{Embedder: emb}, Config{Policy: &p})
	require.NoError(t, err)

	zero := job("Modelling")
	zero.Title = "Data Scientist"
	res, err := e.Analyze(context.Background(), Request{Resume: candidate(1), Job: zero, ResumeEmbedding: []float32{1, 0}})
	require.NoError(t, err)
	assert.Nil(t, res.Breakdown.Semantic)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "zero vector")

	nan := job("Frontend")
	nan.Embedding = []float32{float32(math.NaN()), 1}
	res, err = e.Analyze(context.Background(), Request{Resume: candidate(1), Job: nan, ResumeEmbedding: []float32{1, 0}})
	require.NoError(t, err)
	assert.Nil(t, res.Breakdown.Semantic)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "non-finite")
}

func TestAnalyzeMatchValidatesInput(t *testing.T) {
	e := newTestEngine(t, nil, Config{})

	bad := candidate(1)
	bad.Experience[0].Description = ""
	_, err := e.AnalyzeMatch(context.Background(), bad, job("Go"))

	var ve profile.ValidationErrors
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "experience[0].description", ve[0].Field)

	_, err = e.AnalyzeMatch(context.Background(), candidate(1), profile.JobDescription{Title: "x", Description: "y"})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "id", ve[0].Field)
}

func TestPolicyValidate(t *testing.T) {
	require.NoError(t, DefaultPolicy().Validate())

	p := DefaultPolicy()
	p.SkillWeight = -1
	assert.Error(t, p.Validate())

	p = DefaultPolicy()
	p.KeywordWeight, p.ExperienceWeight, p.SkillWeight = 0, 0, 0
	assert.Error(t, p.Validate())

	p = DefaultPolicy()
	p.ExperienceSteps = nil
	assert.Error(t, p.Validate())

	_, err := NewEngine(Deps{}, Config{Policy: &p})
	assert.Error(t, err)
}

func TestParsePriority(t *testing.T) {
	for in, want := range map[string]Priority{"high": PriorityHigh, " Medium ": PriorityMedium, "LOW": PriorityLow} {
		got, err := ParsePriority(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParsePriority("critical")
	assert.Error(t, err)
}
