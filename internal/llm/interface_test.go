package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain object", `{"score": 0.8}`, `{"score": 0.8}`},
		{"fenced", "```json\n{\"score\": 0.8}\n```", `{"score": 0.8}`},
		{"prose around", `Here is my answer: {"decision": "HOLD"} hope it helps`, `{"decision": "HOLD"}`},
		{"no object", "I cannot answer that", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractJSON(tt.in))
		})
	}
}

type stubProvider struct {
	name    string
	content string
	err     error
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &ChatResponse{Content: s.content, Model: s.name + "-model"}, nil
}

func TestComparator_PrimaryDrives(t *testing.T) {
	c := &Comparator{
		Primary: &stubProvider{name: "openai", content: `{"strategy":"Momentum"}`},
		Others: []Provider{
			&stubProvider{name: "anthropic", content: `{"strategy":"Hold"}`},
			&stubProvider{name: "google", err: errors.New("unavailable")},
		},
	}

	primary, results, err := c.Chat(context.Background(), ChatRequest{})
	require.NoError(t, err)
	assert.Equal(t, `{"strategy":"Momentum"}`, primary.Content)

	require.Len(t, results, 2)
	assert.Equal(t, "anthropic", results[0].Provider)
	assert.NoError(t, results[0].Err)
	assert.Error(t, results[1].Err, "a comparison provider failure is recorded, not fatal")
}

func TestComparator_PrimaryErrorSurfaces(t *testing.T) {
	c := &Comparator{Primary: &stubProvider{name: "openai", err: errors.New("boom")}}

	_, _, err := c.Chat(context.Background(), ChatRequest{})
	assert.Error(t, err)
}
