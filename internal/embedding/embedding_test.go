package embedding

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func l2norm(vec []float32) float64 {
	var sq float64
	for _, v := range vec {
		sq += float64(v) * float64(v)
	}
	return math.Sqrt(sq)
}

func TestNormalize(t *testing.T) {
	vec := Normalize([]float32{3, 4})
	assert.InDelta(t, 1.0, l2norm(vec), 1e-6)
	assert.InDelta(t, 0.6, float64(vec[0]), 1e-6)
	assert.InDelta(t, 0.8, float64(vec[1]), 1e-6)
}

func TestNormalize_ZeroVector(t *testing.T) {
	vec := Normalize([]float32{0, 0, 0})
	assert.Equal(t, []float32{0, 0, 0}, vec)
}

type stubEmbedder struct {
	name string
	vec  []float32
	err  error
}

func (s *stubEmbedder) Name() string { return s.name }

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return s.vec, s.err
}

func TestChain_Fallback(t *testing.T) {
	chain := NewChain(zap.NewNop(),
		&stubEmbedder{name: "local", err: errors.New("bus error")},
		&stubEmbedder{name: "openai", vec: []float32{1, 0}},
	)

	vec, err := chain.Embed(context.Background(), "some news")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, vec)
}

func TestChain_AllFail(t *testing.T) {
	chain := NewChain(zap.NewNop(),
		&stubEmbedder{name: "a", err: errors.New("down")},
		&stubEmbedder{name: "b", err: errors.New("also down")},
	)

	_, err := chain.Embed(context.Background(), "text")
	assert.Error(t, err)
}

func TestChain_Empty(t *testing.T) {
	chain := NewChain(nil)
	assert.False(t, chain.Available())

	_, err := chain.Embed(context.Background(), "text")
	assert.Error(t, err)
}

func TestNewOpenAI_RequiresKey(t *testing.T) {
	_, err := NewOpenAI("", "")
	assert.Error(t, err)
}

func TestNewGemini_RequiresKey(t *testing.T) {
	_, err := NewGemini("")
	assert.Error(t, err)
}
