package keywords

import (
	"regexp"
	"sort"
	"strings"
)

// vocabulary is the fixed term list of the pattern extractor.
var vocabulary = []string{
	// languages
	"go", "golang", "python", "java", "javascript", "typescript", "c++", "c#", "rust", "ruby",
	"php", "kotlin", "swift", "scala", "sql", "bash",
	// frameworks and runtimes
	"react", "angular", "vue", "next.js", "node.js", "express", "django", "flask", "fastapi",
	"spring", "spring boot", ".net", "rails", "graphql", "grpc", "rest api",
	// cloud and infra
	"aws", "gcp", "azure", "docker", "kubernetes", "terraform", "ansible", "helm", "linux",
	"nginx", "jenkins", "github actions", "gitlab ci", "ci/cd", "prometheus", "grafana",
	// data stores and messaging
	"postgresql", "postgres", "mysql", "mongodb", "redis", "elasticsearch", "cassandra",
	"dynamodb", "kafka", "rabbitmq", "bigquery", "snowflake",
	// ml and data
	"machine learning", "deep learning", "tensorflow", "pytorch", "scikit-learn", "pandas",
	"numpy", "nlp", "llm", "computer vision", "spark", "airflow",
	// process
	"agile", "scrum", "kanban", "tdd", "microservices", "devops", "git",
}

type term struct {
	name string
	re   *regexp.Regexp
}

var terms = compileVocabulary(vocabulary)

// compileVocabulary builds case-insensitive whole-term matchers. Terms may
// contain punctuation, so boundaries are explicit character classes instead
// of \b.
func compileVocabulary(words []string) []term {
	out := make([]term, 0, len(words))
	for _, w := range words {
		pattern := `(?i)(?:^|[^a-z0-9+#.\-])` + regexp.QuoteMeta(w) + `(?:$|[^a-z0-9+#\-])`
		out = append(out, term{name: w, re: regexp.MustCompile(pattern)})
	}
	return out
}

// FallbackExtract matches text against the fixed vocabulary. The result is
// flat and ordered by first occurrence in text.
func FallbackExtract(text string) Set {
	type hit struct {
		name string
		pos  int
		rank int
	}

	var hits []hit
	for i, t := range terms {
		loc := t.re.FindStringIndex(text)
		if loc == nil {
			continue
		}
		hits = append(hits, hit{name: t.name, pos: loc[0], rank: i})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].pos != hits[j].pos {
			return hits[i].pos < hits[j].pos
		}
		return hits[i].rank < hits[j].rank
	})

	var out Set
	for _, h := range hits {
		out.Add(h.name)
	}
	return out
}

// Vocabulary returns a copy of the fallback term list.
func Vocabulary() []string {
	out := make([]string, len(vocabulary))
	copy(out, vocabulary)
	return out
}

// fallbackKeywords places the flat fallback set into the technical bucket.
func fallbackKeywords(text string) Keywords {
	return Keywords{Technical: FallbackExtract(strings.TrimSpace(text))}
}
