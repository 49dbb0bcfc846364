package matching

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spigell/resume-matcher/internal/ai"
	"github.com/xeipuuv/gojsonschema"
)

// Priority ranks a gap.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// ParsePriority trims and lower-cases s. Anything but high, medium or low is
// rejected.
func ParsePriority(s string) (Priority, error) {
	switch p := Priority(strings.ToLower(strings.TrimSpace(s))); p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return p, nil
	default:
		return "", fmt.Errorf("unrecognized priority %q (want high, medium or low)", s)
	}
}

// Gap is one capability gap between candidate and job.
type Gap struct {
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Priority    Priority `json:"priority"`
}

// ValidationError reports a generated value that breaks the result contract.
// It is fatal to the request that produced it.
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Message)
}

// errMalformed marks a generator response that does not follow the expected
// shape. It is recoverable: the stage is reported unavailable.
var errMalformed = errors.New("malformed response")

var (
	//go:embed prompts/gaps_schema.json
	gapsSchemaJSON string

	gapsSchema = mustSchema(gapsSchemaJSON)
)

func mustSchema(doc string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(doc))
	if err != nil {
		panic(fmt.Sprintf("compile gaps schema: %v", err))
	}
	return s
}

type rawGap struct {
	Category    string `mapstructure:"category"`
	Description string `mapstructure:"description"`
	Priority    string `mapstructure:"priority"`
}

// parseGaps validates the response shape with the JSON schema, decodes the
// items and checks priorities. Shape problems wrap errMalformed; a bad
// priority is a *ValidationError.
func parseGaps(raw string) ([]Gap, error) {
	doc, ok := ai.ExtractJSON(raw)
	if !ok {
		return nil, fmt.Errorf("%w: no json found", errMalformed)
	}

	var data any
	if err := json.Unmarshal([]byte(doc), &data); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformed, err)
	}
	// a bare array is accepted as the gaps list
	if list, isList := data.([]any); isList {
		data = map[string]any{"gaps": list}
	}

	result, err := gapsSchema.Validate(gojsonschema.NewGoLoader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformed, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.Field()+": "+e.Description())
		}
		return nil, fmt.Errorf("%w: %s", errMalformed, strings.Join(msgs, "; "))
	}

	var decoded struct {
		Gaps []rawGap `mapstructure:"gaps"`
	}
	if err := mapstructure.Decode(data, &decoded); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformed, err)
	}

	gaps := make([]Gap, 0, len(decoded.Gaps))
	for i, g := range decoded.Gaps {
		p, err := ParsePriority(g.Priority)
		if err != nil {
			return nil, &ValidationError{
				Field:   fmt.Sprintf("gaps[%d].priority", i),
				Value:   g.Priority,
				Message: "priority must be one of high, medium, low",
			}
		}
		gaps = append(gaps, Gap{
			Category:    strings.ToLower(strings.TrimSpace(g.Category)),
			Description: strings.TrimSpace(g.Description),
			Priority:    p,
		})
	}
	return gaps, nil
}

// parseSuggestions takes each item's suggestion field verbatim. Plain string
// items are accepted as they are.
func parseSuggestions(raw string, limit int) ([]string, error) {
	doc, ok := ai.ExtractJSON(raw)
	if !ok {
		return nil, fmt.Errorf("%w: no json found", errMalformed)
	}

	var data any
	if err := json.Unmarshal([]byte(doc), &data); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformed, err)
	}

	var items []any
	switch v := data.(type) {
	case []any:
		items = v
	case map[string]any:
		list, ok := v["suggestions"].([]any)
		if !ok {
			return nil, fmt.Errorf("%w: suggestions list is missing", errMalformed)
		}
		items = list
	default:
		return nil, fmt.Errorf("%w: unexpected %T", errMalformed, data)
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		var text string
		switch v := item.(type) {
		case string:
			text = v
		case map[string]any:
			s, ok := v["suggestion"].(string)
			if !ok {
				continue
			}
			text = s
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		out = append(out, text)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
