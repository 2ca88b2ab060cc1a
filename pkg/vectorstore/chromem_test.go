package vectorstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *ChromemStore {
	t.Helper()
	s, err := NewChromemStore(ChromemConfig{})
	require.NoError(t, err)
	return s
}

func TestChromemUpsertAndSearch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateCollection(ctx, "docs", 3))
	require.NoError(t, s.Upsert(ctx, "docs", []Document{
		{ID: "a", Content: "alpha", Embedding: []float32{1, 0, 0}, Metadata: map[string]any{"lang": "go"}},
		{ID: "b", Content: "beta", Embedding: []float32{0, 1, 0}, Metadata: map[string]any{"lang": "py"}},
	}))

	results, err := s.Search(ctx, "docs", []float32{1, 0, 0}, SearchConfig{TopK: 1, IncludeMetadata: true})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].Document.ID)
}

func TestChromemGetAndCount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Upsert(ctx, "docs", []Document{
		{ID: "a", Content: "alpha", Embedding: []float32{1, 0}},
	}))

	count, err := s.Count(ctx, "docs")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	doc, ok, err := s.Get(ctx, "docs", "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "alpha", doc.Content)
}

func TestChromemDeleteCollection(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateCollection(ctx, "docs", 2))

	exists, err := s.CollectionExists(ctx, "docs")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, s.DeleteCollection(ctx, "docs"))
	exists, err = s.CollectionExists(ctx, "docs")
	require.NoError(t, err)
	assert.False(t, exists)
}
