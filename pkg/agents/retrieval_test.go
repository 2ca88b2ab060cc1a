package agents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnicore/agentrt/pkg/vectorstore"
)

type fakeStore struct {
	byCollection map[string][]vectorstore.SearchResult
}

func (f *fakeStore) CreateCollection(ctx context.Context, name string, dimension int) error { return nil }
func (f *fakeStore) DeleteCollection(ctx context.Context, name string) error                { return nil }
func (f *fakeStore) CollectionExists(ctx context.Context, name string) (bool, error)        { return true, nil }
func (f *fakeStore) ListCollections(ctx context.Context) ([]string, error)                  { return nil, nil }
func (f *fakeStore) Upsert(ctx context.Context, collection string, docs []vectorstore.Document) error {
	return nil
}
func (f *fakeStore) Delete(ctx context.Context, collection string, ids []string) error { return nil }
func (f *fakeStore) Search(ctx context.Context, collection string, vector []float32, cfg vectorstore.SearchConfig) ([]vectorstore.SearchResult, error) {
	return f.byCollection[collection], nil
}
func (f *fakeStore) Get(ctx context.Context, collection string, id string) (vectorstore.Document, bool, error) {
	return vectorstore.Document{}, false, nil
}
func (f *fakeStore) Count(ctx context.Context, collection string) (int, error) { return 0, nil }

func TestOptimizeQueryStripsNoiseWords(t *testing.T) {
	assert.Equal(t, "fix login bug", optimizeQuery("can you please fix the login bug"))
}

func TestSelectDomainsByKeyword(t *testing.T) {
	domains := selectDomains("how do I fix this function", "")
	assert.Contains(t, domains, "code")
}

func TestSelectDomainsFallsBackToAllWhenNoHint(t *testing.T) {
	domains := selectDomains("xyzzy plugh", "")
	assert.Equal(t, standardDomains, domains)
}

func TestSearchDedupesByContentPrefixAndFiltersThreshold(t *testing.T) {
	store := &fakeStore{byCollection: map[string][]vectorstore.SearchResult{
		"code": {
			{Document: vectorstore.Document{ID: "a.go", Content: "func add(a, b int) int { return a + b }"}, Score: 0.9},
			{Document: vectorstore.Document{ID: "b.go", Content: "func add(a, b int) int { return a + b }"}, Score: 0.8},
			{Document: vectorstore.Document{ID: "c.go", Content: "irrelevant content entirely"}, Score: 0.1},
		},
	}}
	a := NewRetrievalAgent(RetrievalAgentConfig{ScoreThreshold: 0.5, RawSnippets: true}, store)
	results, err := a.Search(context.Background(), "show me the add function")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a.go", results[0].Path)
}

func TestSearchServesFromCacheOnSecondCall(t *testing.T) {
	store := &fakeStore{byCollection: map[string][]vectorstore.SearchResult{
		"code": {{Document: vectorstore.Document{ID: "a.go", Content: "package main"}, Score: 0.9}},
	}}
	a := NewRetrievalAgent(RetrievalAgentConfig{ScoreThreshold: 0.1, RawSnippets: true}, store)

	first, err := a.Search(context.Background(), "find the function")
	require.NoError(t, err)

	store.byCollection["code"] = nil
	second, err := a.Search(context.Background(), "find the function")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
