package enrich

import (
	"context"
	"errors"
	"testing"

	"github.com/kobyzev-yuri/lse/internal/core"
	"github.com/kobyzev-yuri/lse/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeEmbeddingKB struct {
	pending      []core.KBEntry
	updates      map[int64][]float32
	indexEnsured bool
}

func (f *fakeEmbeddingKB) PendingEmbeddings(ctx context.Context, limit int) ([]core.KBEntry, error) {
	var out []core.KBEntry
	for _, e := range f.pending {
		if _, done := f.updates[e.ID]; done {
			continue
		}
		out = append(out, e)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeEmbeddingKB) UpdateEnrichment(ctx context.Context, id int64, u store.EnrichmentUpdate) error {
	if f.updates == nil {
		f.updates = make(map[int64][]float32)
	}
	f.updates[id] = u.Embedding
	return nil
}

func (f *fakeEmbeddingKB) EnsureVectorIndex(ctx context.Context) error {
	f.indexEnsured = true
	return nil
}

type fixedEmbedder struct {
	vec  []float32
	errs map[string]error
}

func (f *fixedEmbedder) Name() string { return "fixed" }

func (f *fixedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err, ok := f.errs[text]; ok {
		return nil, err
	}
	return f.vec, nil
}

func TestBackfillEmbeddings(t *testing.T) {
	kb := &fakeEmbeddingKB{pending: []core.KBEntry{
		{ID: 1, Content: "fed statement"},
		{ID: 2, Content: "earnings beat"},
		{ID: 3, Content: "rate cut"},
	}}
	provider := &fixedEmbedder{vec: []float32{1, 0, 0}}

	b := NewEmbeddingBackfiller(kb, provider, zap.NewNop())
	updated, err := b.BackfillEmbeddings(context.Background(), 10, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, updated)
	assert.Len(t, kb.updates, 3)
	assert.True(t, kb.indexEnsured)
}

func TestBackfillEmbeddings_RespectsLimit(t *testing.T) {
	kb := &fakeEmbeddingKB{pending: []core.KBEntry{
		{ID: 1, Content: "a"}, {ID: 2, Content: "b"}, {ID: 3, Content: "c"},
	}}
	b := NewEmbeddingBackfiller(kb, &fixedEmbedder{vec: []float32{1}}, zap.NewNop())

	updated, err := b.BackfillEmbeddings(context.Background(), 2, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, updated)
}

func TestBackfillEmbeddings_ProviderFailureSkipsRow(t *testing.T) {
	kb := &fakeEmbeddingKB{pending: []core.KBEntry{
		{ID: 1, Content: "bad row"},
		{ID: 2, Content: "good row"},
	}}
	provider := &fixedEmbedder{
		vec:  []float32{1},
		errs: map[string]error{"bad row": errors.New("provider down")},
	}

	b := NewEmbeddingBackfiller(kb, provider, zap.NewNop())
	updated, err := b.BackfillEmbeddings(context.Background(), 10, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, updated)

	_, badDone := kb.updates[1]
	assert.False(t, badDone)
	assert.NotNil(t, kb.updates[2])
}

func TestBackfillEmbeddings_NoProvider(t *testing.T) {
	b := NewEmbeddingBackfiller(&fakeEmbeddingKB{}, nil, zap.NewNop())
	updated, err := b.BackfillEmbeddings(context.Background(), 10, 5)
	require.NoError(t, err)
	assert.Zero(t, updated)
}
