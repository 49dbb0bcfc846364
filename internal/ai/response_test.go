package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		expect string
		ok     bool
	}{
		{name: "bare object", input: ` {"technical":["go"]} `, expect: `{"technical":["go"]}`, ok: true},
		{name: "fenced json", input: "```json\n{\"a\":1}\n```", expect: `{"a":1}`, ok: true},
		{name: "fence without info", input: "```\n[1,2]\n```", expect: `[1,2]`, ok: true},
		{name: "embedded in prose", input: `Sure! Here you go: {"soft":["teamwork"],"note":"a } b"} Thanks.`, expect: `{"soft":["teamwork"],"note":"a } b"}`, ok: true},
		{name: "array in prose", input: `result: [{"gap":"x"}] done`, expect: `[{"gap":"x"}]`, ok: true},
		{name: "garbage", input: "I cannot help with that {", ok: false},
		{name: "empty", input: "  ", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := ExtractJSON(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.JSONEq(t, tt.expect, got)
			}
		})
	}
}

func TestCoerceStrings(t *testing.T) {
	assert.Equal(t, []string{"go", "1", "true"}, CoerceStrings([]any{" go ", 1, true, "", nil}))
	assert.Equal(t, []string{"single"}, CoerceStrings("single"))
	assert.Nil(t, CoerceStrings(nil))
	assert.Equal(t, "", CoerceString(nil))
	assert.Equal(t, `{"k":"v"}`, CoerceString(map[string]any{"k": "v"}))
}
