package llm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type shape struct {
	Messages []struct {
		Type string `json:"type"`
	} `json:"messages"`
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"plain", `{"messages":[{"type":"offer"}]}`},
		{"fenced", "```json\n{\"messages\":[{\"type\":\"offer\"}]}\n```"},
		{"bare fence", "```\n{\"messages\":[{\"type\":\"offer\"}]}\n```"},
		{"leading prose", "Here you go:\n{\"messages\":[{\"type\":\"offer\"}]}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s shape
			require.NoError(t, DecodeJSON(tt.input, &s))
			require.Len(t, s.Messages, 1)
			assert.Equal(t, "offer", s.Messages[0].Type)
		})
	}
}

func TestDecodeJSONMalformed(t *testing.T) {
	for _, input := range []string{"", "no json here", "{broken", `{"messages": [}`} {
		var s shape
		err := DecodeJSON(input, &s)
		require.Error(t, err, input)
		assert.True(t, errors.Is(err, ErrMalformedOutput), input)
	}
}
