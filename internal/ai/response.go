package ai

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSON pulls a JSON document out of a model response. It accepts a
// bare document, a fenced code block, or prose with an embedded object or
// array. The second return value is false when no candidate is found.
func ExtractJSON(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}

	if fenced, ok := stripFence(raw); ok {
		raw = fenced
	}

	if json.Valid([]byte(raw)) {
		return raw, true
	}

	for i, r := range raw {
		if r != '{' && r != '[' {
			continue
		}
		if end := balancedEnd(raw[i:]); end > 0 {
			candidate := raw[i : i+end]
			if json.Valid([]byte(candidate)) {
				return candidate, true
			}
		}
	}

	return "", false
}

func stripFence(raw string) (string, bool) {
	start := strings.Index(raw, "```")
	if start == -1 {
		return "", false
	}
	body := raw[start+3:]
	// drop the info string, e.g. "json"
	if nl := strings.IndexByte(body, '\n'); nl != -1 {
		body = body[nl+1:]
	}
	if end := strings.Index(body, "```"); end != -1 {
		body = body[:end]
	}
	return strings.TrimSpace(body), true
}

// balancedEnd returns the length of the bracketed prefix of s, or 0 when the
// brackets never balance.
func balancedEnd(s string) int {
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return 0
}

// CoerceString renders loosely typed JSON values as trimmed text.
func CoerceString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}

// CoerceStrings flattens a JSON array (or a single scalar) into strings.
func CoerceStrings(v any) []string {
	switch val := v.(type) {
	case nil:
		return nil
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s := CoerceString(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return val
	default:
		if s := CoerceString(val); s != "" {
			return []string{s}
		}
		return nil
	}
}
