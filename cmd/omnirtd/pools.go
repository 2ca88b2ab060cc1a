package main

import (
	"context"

	"github.com/omnicore/agentrt/pkg/llmprovider"
	"github.com/omnicore/agentrt/pkg/pool"
	"github.com/omnicore/agentrt/pkg/vectorstore"
)

// llmFactory and vectorFactory adapt a single already-built provider
// instance to pkg/pool.Factory, so the same min/max-sized,
// health-checked, circuit-broken pool (spec §4.C) that any other
// opaque connection handle gets also fronts the LLM and vector-store
// collaborators (spec §6): the factory's "connection" is simply a
// handle to the shared, stateless client, since neither the OpenAI
// REST client nor the Anthropic/Qdrant SDK clients hold a single
// exclusive socket the way a database driver connection does.
type llmFactory struct {
	provider llmprovider.Provider
}

func (f llmFactory) Create(ctx context.Context) (llmprovider.Provider, error) { return f.provider, nil }
func (f llmFactory) Close(llmprovider.Provider) error                         { return nil }
func (f llmFactory) IsHealthy(ctx context.Context, conn llmprovider.Provider) bool {
	return conn.HealthCheck(ctx) == nil
}

type vectorFactory struct {
	store vectorstore.Store
}

func (f vectorFactory) Create(ctx context.Context) (vectorstore.Store, error) { return f.store, nil }
func (f vectorFactory) Close(vectorstore.Store) error                         { return nil }
func (f vectorFactory) IsHealthy(ctx context.Context, conn vectorstore.Store) bool {
	_, err := conn.ListCollections(ctx)
	return err == nil
}

// pooledLLM and pooledVectorStore acquire a connection from the pool
// for the duration of each call and release it afterward, so every
// collaborator call goes through the pool's acquire-timeout and
// circuit-breaker path instead of holding the underlying client
// directly.
type pooledLLM struct {
	pool *pool.Pool[llmprovider.Provider]
}

func (p *pooledLLM) Complete(ctx context.Context, messages []llmprovider.Message, cfg llmprovider.CompletionConfig) (llmprovider.CompletionResult, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return llmprovider.CompletionResult{}, err
	}
	defer p.pool.Release(ctx, conn)
	return conn.Complete(ctx, messages, cfg)
}

func (p *pooledLLM) Stream(ctx context.Context, messages []llmprovider.Message, cfg llmprovider.CompletionConfig) (<-chan llmprovider.StreamChunk, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer p.pool.Release(ctx, conn)
	return conn.Stream(ctx, messages, cfg)
}

func (p *pooledLLM) Embed(ctx context.Context, texts []string, model string) ([][]float32, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer p.pool.Release(ctx, conn)
	return conn.Embed(ctx, texts, model)
}

func (p *pooledLLM) HealthCheck(ctx context.Context) error {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer p.pool.Release(ctx, conn)
	return conn.HealthCheck(ctx)
}

type pooledVectorStore struct {
	pool *pool.Pool[vectorstore.Store]
}

func (p *pooledVectorStore) CreateCollection(ctx context.Context, name string, dimension int) error {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer p.pool.Release(ctx, conn)
	return conn.CreateCollection(ctx, name, dimension)
}

func (p *pooledVectorStore) DeleteCollection(ctx context.Context, name string) error {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer p.pool.Release(ctx, conn)
	return conn.DeleteCollection(ctx, name)
}

func (p *pooledVectorStore) CollectionExists(ctx context.Context, name string) (bool, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return false, err
	}
	defer p.pool.Release(ctx, conn)
	return conn.CollectionExists(ctx, name)
}

func (p *pooledVectorStore) ListCollections(ctx context.Context) ([]string, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer p.pool.Release(ctx, conn)
	return conn.ListCollections(ctx)
}

func (p *pooledVectorStore) Upsert(ctx context.Context, collection string, docs []vectorstore.Document) error {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer p.pool.Release(ctx, conn)
	return conn.Upsert(ctx, collection, docs)
}

func (p *pooledVectorStore) Delete(ctx context.Context, collection string, ids []string) error {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer p.pool.Release(ctx, conn)
	return conn.Delete(ctx, collection, ids)
}

func (p *pooledVectorStore) Search(ctx context.Context, collection string, vector []float32, cfg vectorstore.SearchConfig) ([]vectorstore.SearchResult, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer p.pool.Release(ctx, conn)
	return conn.Search(ctx, collection, vector, cfg)
}

func (p *pooledVectorStore) Get(ctx context.Context, collection string, id string) (vectorstore.Document, bool, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return vectorstore.Document{}, false, err
	}
	defer p.pool.Release(ctx, conn)
	return conn.Get(ctx, collection, id)
}

func (p *pooledVectorStore) Count(ctx context.Context, collection string) (int, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer p.pool.Release(ctx, conn)
	return conn.Count(ctx, collection)
}

var (
	_ llmprovider.Provider = (*pooledLLM)(nil)
	_ vectorstore.Store    = (*pooledVectorStore)(nil)
)
