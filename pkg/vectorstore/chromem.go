package vectorstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/philippgille/chromem-go"
)

// ChromemConfig configures the embedded, zero-config store. PersistPath
// enables file persistence, gzip-compressed when Compress is set; an
// empty path keeps everything in memory.
type ChromemConfig struct {
	PersistPath string
	Compress    bool
}

// ChromemStore is a pure-Go, single-process Store backed by
// philippgille/chromem-go. It is the default store for development and
// single-node deployments; embeddings are supplied by the caller
// (pkg/llmprovider), so the collection's embedding function only
// returns an error: every document and query must carry its own vector.
type ChromemStore struct {
	db *chromem.DB

	mu          sync.RWMutex
	collections map[string]*chromem.Collection
}

func NewChromemStore(cfg ChromemConfig) (*ChromemStore, error) {
	var db *chromem.DB
	var err error
	if cfg.PersistPath != "" {
		db, err = chromem.NewPersistentDB(cfg.PersistPath, cfg.Compress)
	} else {
		db = chromem.NewDB()
	}
	if err != nil {
		return nil, fmt.Errorf("chromem: open db: %w", err)
	}
	return &ChromemStore{db: db, collections: make(map[string]*chromem.Collection)}, nil
}

func identityEmbeddingFunc(_ context.Context, _ string) ([]float32, error) {
	return nil, fmt.Errorf("chromem: embeddings must be supplied explicitly, not computed by the store")
}

func (s *ChromemStore) CreateCollection(ctx context.Context, name string, dimension int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[name]; ok {
		return nil
	}
	col, err := s.db.CreateCollection(name, nil, chromem.EmbeddingFunc(identityEmbeddingFunc))
	if err != nil {
		return fmt.Errorf("chromem: create collection %q: %w", name, err)
	}
	s.collections[name] = col
	return nil
}

func (s *ChromemStore) collection(name string) (*chromem.Collection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	col, ok := s.collections[name]
	if ok {
		return col, true
	}
	if col := s.db.GetCollection(name, chromem.EmbeddingFunc(identityEmbeddingFunc)); col != nil {
		return col, true
	}
	return nil, false
}

func (s *ChromemStore) DeleteCollection(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections, name)
	return s.db.DeleteCollection(name)
}

func (s *ChromemStore) CollectionExists(ctx context.Context, name string) (bool, error) {
	_, ok := s.collection(name)
	return ok, nil
}

func (s *ChromemStore) ListCollections(ctx context.Context) ([]string, error) {
	names := make([]string, 0)
	for name := range s.db.ListCollections() {
		names = append(names, name)
	}
	return names, nil
}

func (s *ChromemStore) Upsert(ctx context.Context, collection string, docs []Document) error {
	col, ok := s.collection(collection)
	if !ok {
		if err := s.CreateCollection(ctx, collection, 0); err != nil {
			return err
		}
		col, _ = s.collection(collection)
	}

	chromemDocs := make([]chromem.Document, len(docs))
	for i, d := range docs {
		meta := make(map[string]string, len(d.Metadata))
		for k, v := range d.Metadata {
			meta[k] = fmt.Sprintf("%v", v)
		}
		chromemDocs[i] = chromem.Document{
			ID:        d.ID,
			Content:   d.Content,
			Embedding: d.Embedding,
			Metadata:  meta,
		}
	}
	return col.AddDocuments(ctx, chromemDocs, 1)
}

func (s *ChromemStore) Delete(ctx context.Context, collection string, ids []string) error {
	col, ok := s.collection(collection)
	if !ok {
		return fmt.Errorf("chromem: collection %q not found", collection)
	}
	return col.Delete(ctx, nil, nil, ids...)
}

func (s *ChromemStore) Search(ctx context.Context, collection string, vector []float32, cfg SearchConfig) ([]SearchResult, error) {
	col, ok := s.collection(collection)
	if !ok {
		return nil, fmt.Errorf("chromem: collection %q not found", collection)
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = 10
	}
	if n := col.Count(); n < topK {
		topK = n
	}
	if topK == 0 {
		return nil, nil
	}

	where := stringifyFilter(cfg.Filter)
	results, err := col.QueryEmbedding(ctx, vector, topK, where, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem: query: %w", err)
	}

	out := make([]SearchResult, 0, len(results))
	for _, r := range results {
		if cfg.ScoreThreshold != nil && float64(r.Similarity) < *cfg.ScoreThreshold {
			continue
		}
		doc := Document{ID: r.ID, Content: r.Content}
		if cfg.IncludeMetadata {
			doc.Metadata = stringMapToAny(r.Metadata)
		}
		if cfg.IncludeEmbeddings {
			doc.Embedding = r.Embedding
		}
		out = append(out, SearchResult{Document: doc, Score: float64(r.Similarity)})
	}
	return out, nil
}

func (s *ChromemStore) Get(ctx context.Context, collection string, id string) (Document, bool, error) {
	col, ok := s.collection(collection)
	if !ok {
		return Document{}, false, fmt.Errorf("chromem: collection %q not found", collection)
	}
	doc, err := col.GetByID(ctx, id)
	if err != nil {
		return Document{}, false, nil
	}
	return Document{
		ID:        doc.ID,
		Content:   doc.Content,
		Embedding: doc.Embedding,
		Metadata:  stringMapToAny(doc.Metadata),
	}, true, nil
}

func (s *ChromemStore) Count(ctx context.Context, collection string) (int, error) {
	col, ok := s.collection(collection)
	if !ok {
		return 0, fmt.Errorf("chromem: collection %q not found", collection)
	}
	return col.Count(), nil
}

func stringifyFilter(filter map[string]any) map[string]string {
	if len(filter) == 0 {
		return nil
	}
	out := make(map[string]string, len(filter))
	for k, v := range filter {
		out[k] = fmt.Sprintf("%v", v)
	}
	return out
}

func stringMapToAny(m map[string]string) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
