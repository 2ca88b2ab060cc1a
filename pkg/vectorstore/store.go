// Package vectorstore defines the vector-store collaborator contract
// (spec §6) used by the Retrieval agent, with chromem-go (embedded,
// zero-config) and Qdrant (external, clustered) implementations.
package vectorstore

import "context"

// Document is a single stored item: its content, the embedding it was
// indexed under, and arbitrary metadata.
type Document struct {
	ID        string
	Content   string
	Embedding []float32
	Metadata  map[string]any
}

// SearchConfig tunes a Search call.
type SearchConfig struct {
	TopK             int
	ScoreThreshold   *float64
	Filter           map[string]any
	IncludeMetadata  bool
	IncludeEmbeddings bool
}

// SearchResult pairs a Document with its similarity score.
type SearchResult struct {
	Document Document
	Score    float64
}

// Store is the external vector-store collaborator contract (spec §6).
type Store interface {
	CreateCollection(ctx context.Context, name string, dimension int) error
	DeleteCollection(ctx context.Context, name string) error
	CollectionExists(ctx context.Context, name string) (bool, error)
	ListCollections(ctx context.Context) ([]string, error)

	Upsert(ctx context.Context, collection string, docs []Document) error
	Delete(ctx context.Context, collection string, ids []string) error
	Search(ctx context.Context, collection string, vector []float32, cfg SearchConfig) ([]SearchResult, error)
	Get(ctx context.Context, collection string, id string) (Document, bool, error)
	Count(ctx context.Context, collection string) (int, error)
}
