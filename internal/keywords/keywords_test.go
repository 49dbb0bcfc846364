package keywords

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spigell/resume-matcher/internal/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type stubGenerator struct {
	mu       sync.Mutex
	response string
	err      error
	block    bool
	prompts  []string
	systems  []string
}

func (s *stubGenerator) Generate(ctx context.Context, system, user string, _ ai.ResponseFormat) (string, error) {
	s.mu.Lock()
	s.prompts = append(s.prompts, user)
	s.systems = append(s.systems, system)
	s.mu.Unlock()

	if s.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return s.response, s.err
}

func TestNormalize(t *testing.T) {
	s := Normalize([]string{"  React ", "react", "", "   ", "TypeScript", "Node.JS"})
	assert.Equal(t, []string{"react", "typescript", "node.js"}, s.Items())
	assert.True(t, s.Has("REACT"))
	assert.False(t, s.Has("docker"))
	assert.Equal(t, 0, Normalize(nil).Len())

	composed := Normalize([]string{"Caf\u00e9", "Cafe\u0301"})
	assert.Equal(t, []string{"caf\u00e9"}, composed.Items())
}

func TestSetCloneIsIndependent(t *testing.T) {
	a := Normalize([]string{"go"})
	b := a.Clone()
	b.Add("rust")

	assert.Equal(t, 1, a.Len())
	assert.Equal(t, 2, b.Len())
}

func TestCompareScenario(t *testing.T) {
	job := Keywords{Technical: Normalize([]string{"react", "typescript", "docker"})}
	resume := Keywords{Technical: Normalize([]string{"react", "node.js"})}

	c := Compare(job, resume)
	assert.Equal(t, []string{"react"}, c.Matched.Items())
	assert.Equal(t, []string{"typescript", "docker"}, c.Missing.Items())
	assert.Equal(t, []string{"node.js"}, c.Extra.Items())
	assert.Equal(t, 33, int(c.MatchRate+0.5))
}

func TestCompareEmptyJobSide(t *testing.T) {
	c := Compare(Keywords{}, Keywords{Soft: Normalize([]string{"communication"})})
	assert.Zero(t, c.MatchRate)
	assert.Zero(t, c.Matched.Len())
	assert.Equal(t, 1, c.Extra.Len())
}

func TestCompareFlattensAcrossCategories(t *testing.T) {
	job := Keywords{
		Technical: Normalize([]string{"go"}),
		Tools:     Normalize([]string{"docker"}),
	}
	resume := Keywords{Tools: Normalize([]string{"go"}), Soft: Normalize([]string{"docker"})}

	c := Compare(job, resume)
	assert.Equal(t, 100.0, c.MatchRate)
}

func TestComparePartitionProperty(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 11))
	pool := []string{"go", "rust", "react", "docker", "kafka", "aws", "sql", "scrum", "java", "k8s", "Go", " AWS "}

	pick := func() []string {
		n := r.IntN(len(pool) + 1)
		out := make([]string, 0, n)
		for i := 0; i < n; i++ {
			out = append(out, pool[r.IntN(len(pool))])
		}
		return out
	}

	for i := 0; i < 500; i++ {
		job := Keywords{Technical: Normalize(pick()), Tools: Normalize(pick())}
		resume := Keywords{Technical: Normalize(pick())}

		c := Compare(job, resume)
		flatJob := job.Flatten()

		var union Set
		union.Merge(c.Matched)
		union.Merge(c.Missing)
		require.ElementsMatch(t, flatJob.Items(), union.Items(), "matched ∪ missing must equal job keywords")
		require.Zero(t, c.Matched.Intersect(c.Missing).Len(), "matched ∩ missing must be empty")

		require.GreaterOrEqual(t, c.MatchRate, 0.0)
		require.LessOrEqual(t, c.MatchRate, 100.0)
		if flatJob.Len() == 0 {
			require.Zero(t, c.MatchRate)
		}
	}
}

func TestFallbackExtract(t *testing.T) {
	text := "Senior engineer with Node.js, React and PostgreSQL. Familiar with CI/CD, C++ and Kubernetes; golang preferred."
	got := FallbackExtract(text)

	assert.Equal(t, []string{"node.js", "react", "postgresql", "ci/cd", "c++", "kubernetes", "golang"}, got.Items())
	assert.False(t, got.Has("go"), "go must not match inside golang")
}

func TestFallbackExtractIsCaseInsensitiveAndExact(t *testing.T) {
	got := FallbackExtract("DOCKER, Terraform and reactive programming")
	assert.True(t, got.Has("docker"))
	assert.True(t, got.Has("terraform"))
	assert.False(t, got.Has("react"))
}

func TestExtractWithoutGeneratorUsesFallback(t *testing.T) {
	e := NewExtractor(nil, nil)
	res := e.Extract(context.Background(), "We use Python and AWS", SourceJobDescription, nil)

	assert.Equal(t, MethodFallback, res.Method)
	assert.Empty(t, res.Warning)
	assert.Equal(t, []string{"python", "aws"}, res.Keywords.Technical.Items())
	assert.Zero(t, res.Keywords.Tools.Len())
}

func TestExtractParsesModelResponse(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{name: "raw json", response: `{"technical":["Go","gRPC"],"soft":["Mentoring"],"tools":["Docker"]}`},
		{name: "fenced", response: "```json\n{\"technical\":[\"go\",\"grpc\"],\"soft\":[\"mentoring\"],\"tools\":[\"docker\"]}\n```"},
		{name: "prose", response: `Here are the keywords: {"technical_skills":["go","GRPC"],"soft_skills":["mentoring"],"tools":["docker"]} hope it helps`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &stubGenerator{response: tt.response}
			e := NewExtractor(gen, zap.NewNop())

			res := e.Extract(context.Background(), "job text", SourceJobDescription, nil)
			require.Equal(t, MethodModel, res.Method)
			assert.Equal(t, []string{"go", "grpc"}, res.Keywords.Technical.Items())
			assert.Equal(t, []string{"mentoring"}, res.Keywords.Soft.Items())
			assert.Equal(t, []string{"docker"}, res.Keywords.Tools.Items())
			assert.Zero(t, res.Keywords.Certifications.Len(), "absent category defaults to empty")
			assert.Zero(t, res.Keywords.Industry.Len())
		})
	}
}

func TestExtractRestrictsCategories(t *testing.T) {
	gen := &stubGenerator{response: `{"technical":["go"],"soft":["teamwork"],"industry":["fintech"]}`}
	e := NewExtractor(gen, zap.NewNop())

	res := e.Extract(context.Background(), "text", SourceResume, []Category{Technical, Industry})
	assert.Equal(t, []string{"go"}, res.Keywords.Technical.Items())
	assert.Equal(t, []string{"fintech"}, res.Keywords.Industry.Items())
	assert.Zero(t, res.Keywords.Soft.Len())

	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "Only return these categories: technical, industry.")
	assert.Contains(t, gen.prompts[0], "résumé")
	assert.Contains(t, gen.systems[0], "technical, industry")
}

func TestExtractUnparseableYieldsEmpty(t *testing.T) {
	core, observed := observer.New(zapcore.WarnLevel)
	gen := &stubGenerator{response: "Sorry, I can't do that."}
	e := NewExtractor(gen, zap.New(core))

	res := e.Extract(context.Background(), "We need Go and Docker", SourceJobDescription, nil)
	assert.Equal(t, MethodUnparsed, res.Method)
	assert.True(t, res.Keywords.Empty())
	assert.NotEmpty(t, res.Warning)
	assert.Equal(t, 1, observed.FilterMessage("keyword extraction response is not parseable").Len())
}

func TestExtractGeneratorErrorFallsBack(t *testing.T) {
	gen := &stubGenerator{err: errors.New("status 503")}
	e := NewExtractor(gen, zap.NewNop())

	res := e.Extract(context.Background(), "We need Go and Docker", SourceJobDescription, nil)
	assert.Equal(t, MethodFallback, res.Method)
	assert.Contains(t, res.Warning, "status 503")
	assert.Equal(t, []string{"go", "docker"}, res.Keywords.Technical.Items())
}

func TestExtractTimeoutFallsBack(t *testing.T) {
	gen := &stubGenerator{block: true}
	e := NewExtractor(gen, zap.NewNop(), WithTimeout(20*time.Millisecond))

	start := time.Now()
	res := e.Extract(context.Background(), "Kafka and Redis", SourceJobDescription, nil)

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, MethodFallback, res.Method)
	assert.Equal(t, []string{"kafka", "redis"}, res.Keywords.Technical.Items())
}

func TestExtractBlankText(t *testing.T) {
	gen := &stubGenerator{response: `{}`}
	res := NewExtractor(gen, nil).Extract(context.Background(), "  ", SourceResume, nil)
	assert.Equal(t, MethodSkipped, res.Method)
	assert.Empty(t, gen.prompts)
}

func TestSuggest(t *testing.T) {
	gen := &stubGenerator{response: `{"keywords":["Kubernetes","go","Helm"]}`}
	e := NewExtractor(gen, zap.NewNop())

	got := e.Suggest(context.Background(), []string{"Go", "Docker"}, "Platform Engineer")
	assert.Equal(t, []string{"kubernetes", "helm"}, got)
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], `"Platform Engineer"`)
	assert.Contains(t, gen.prompts[0], "go, docker")
}

func TestSuggestCapsAndAcceptsArrays(t *testing.T) {
	items := make([]string, 0, 15)
	for i := 0; i < 15; i++ {
		items = append(items, fmt.Sprintf("%q", fmt.Sprintf("kw%d", i)))
	}
	gen := &stubGenerator{response: "[" + strings.Join(items, ",") + "]"}

	got := NewExtractor(gen, nil).Suggest(context.Background(), nil, "role")
	assert.Len(t, got, maxSuggestions)
}

func TestSuggestFailuresReturnEmpty(t *testing.T) {
	ctx := context.Background()

	assert.Equal(t, []string{}, NewExtractor(nil, nil).Suggest(ctx, []string{"go"}, "role"))
	assert.Equal(t, []string{}, NewExtractor(&stubGenerator{response: "no json"}, nil).Suggest(ctx, nil, "role"))
	assert.Equal(t, []string{}, NewExtractor(&stubGenerator{err: errors.New("boom")}, nil).Suggest(ctx, nil, "role"))
	assert.Equal(t, []string{}, NewExtractor(&stubGenerator{response: `{"other":1}`}, nil).Suggest(ctx, nil, "role"))
}

func TestParseCategories(t *testing.T) {
	all, err := ParseCategories(nil)
	require.NoError(t, err)
	assert.Equal(t, AllCategories, all)

	got, err := ParseCategories([]string{"Technical", "tools", "technical"})
	require.NoError(t, err)
	assert.Equal(t, []Category{Technical, Tools}, got)

	_, err = ParseCategories([]string{"hobbies"})
	require.Error(t, err)
}
