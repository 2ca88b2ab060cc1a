package agents

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/omnicore/agentrt/pkg/agent"
	"github.com/omnicore/agentrt/pkg/llmprovider"
	"github.com/omnicore/agentrt/pkg/vectorstore"
)

// standardDomains are the collections the Retrieval agent indexes and
// searches over (spec §4.H "index the workspace over the standard
// domains").
var standardDomains = []string{"code", "docs", "tests", "config"}

// domainKeywords maps a domain to the keyword patterns that route a
// query to it (spec §4.F "keyword patterns first").
var domainKeywords = map[string][]string{
	"code":   {"function", "class", "implement", "bug", "refactor", "method"},
	"docs":   {"document", "readme", "explain", "guide", "how to"},
	"tests":  {"test", "spec", "assert", "coverage", "mock"},
	"config": {"config", "setting", "environment", "yaml", "env"},
}

// noiseWords is the fixed set stripped from a query before it reaches
// the vector store (spec §4.F "removing a fixed noise-word set").
var noiseWords = map[string]bool{
	"the": true, "a": true, "an": true, "please": true, "can": true,
	"you": true, "could": true, "me": true, "show": true, "find": true,
	"for": true, "of": true, "to": true, "in": true, "is": true, "are": true,
}

func optimizeQuery(query string) string {
	words := strings.Fields(query)
	kept := make([]string, 0, len(words))
	for _, w := range words {
		if noiseWords[strings.ToLower(strings.Trim(w, ".,!?"))] {
			continue
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " ")
}

func selectDomains(query, taskHint string) []string {
	lower := strings.ToLower(query)
	var selected []string
	seen := map[string]bool{}
	for _, domain := range standardDomains {
		for _, kw := range domainKeywords[domain] {
			if strings.Contains(lower, kw) {
				selected = append(selected, domain)
				seen[domain] = true
				break
			}
		}
	}
	if len(selected) == 0 && taskHint != "" {
		if domain, ok := taskHintDomain(taskHint); ok && !seen[domain] {
			selected = append(selected, domain)
		}
	}
	if len(selected) == 0 {
		return standardDomains
	}
	sort.Strings(selected)
	return selected
}

func taskHintDomain(taskHint string) (string, bool) {
	switch taskHint {
	case "fix-bug", "add-feature", "refactor":
		return "code", true
	case "review":
		return "tests", true
	case "explain":
		return "docs", true
	default:
		return "", false
	}
}

type cacheEntry struct {
	results []RetrievalResult
	expires time.Time
}

// RetrievalAgentConfig tunes the TTL cache and result shape.
type RetrievalAgentConfig struct {
	CacheTTL       time.Duration
	CacheMaxSize   int
	ScoreThreshold float64
	RawSnippets    bool
	UseLLMFallback bool
}

// RetrievalResult is one deduplicated hit returned to the caller,
// either a compact summary or a raw snippet depending on config.
type RetrievalResult struct {
	Path    string
	Content string
	Score   float64
	Domain  string
}

// RetrievalAgent selects domains, optimizes the query, and searches the
// vector store (spec §4.F Retrieval agent).
type RetrievalAgent struct {
	cfg   RetrievalAgentConfig
	store vectorstore.Store
	llm   llmprovider.Provider
	status agent.Status

	contextAgent agent.Agent

	cacheMu    sync.Mutex
	cache      map[string]cacheEntry
	cacheOrder []string
}

func NewRetrievalAgent(cfg RetrievalAgentConfig, store vectorstore.Store) *RetrievalAgent {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.CacheMaxSize <= 0 {
		cfg.CacheMaxSize = 100
	}
	if cfg.ScoreThreshold <= 0 {
		cfg.ScoreThreshold = 0.5
	}
	return &RetrievalAgent{
		cfg:    cfg,
		store:  store,
		status: agent.StatusIdle,
		cache:  make(map[string]cacheEntry),
	}
}

func (a *RetrievalAgent) Metadata() agent.Metadata {
	return agent.Metadata{
		ID:           "rag",
		Name:         "Retrieval",
		Description:  "Selects domains, queries the vector store, caches results",
		Capabilities: []string{"search", "index"},
		Provides:     []string{"relevant-summaries"},
		Tags:         []string{"retrieval"},
	}
}

func (a *RetrievalAgent) Status() agent.Status { return a.status }

func (a *RetrievalAgent) SetLLM(p llmprovider.Provider)    { a.llm = p }
func (a *RetrievalAgent) SetRAG(s vectorstore.Store)       { a.store = s }
func (a *RetrievalAgent) SetContextAgent(ag agent.Agent)   { a.contextAgent = ag }

func (a *RetrievalAgent) Process(ctx context.Context, msg agent.Message, shared agent.SharedState) (agent.Message, error) {
	a.status = agent.StatusExecuting
	defer func() { a.status = agent.StatusIdle }()

	results, err := a.Search(ctx, msg.Content)
	if err != nil {
		a.status = agent.StatusError
		return agent.Message{Kind: agent.MessageError, Sender: "rag", Content: err.Error()}, err
	}
	return agent.Message{
		Kind:     agent.MessageToolResult,
		Sender:   "rag",
		Content:  "retrieval complete",
		Metadata: map[string]any{"results": results},
	}, nil
}

// Search runs the full domain-selection, query-optimization, search,
// dedup, and threshold-filter pipeline, serving from cache when fresh
// (spec §4.F Retrieval agent).
func (a *RetrievalAgent) Search(ctx context.Context, query string) ([]RetrievalResult, error) {
	if cached, ok := a.cacheLookup(query); ok {
		return cached, nil
	}

	taskHint := ""
	if ca, ok := a.contextAgent.(interface{ CurrentTask() string }); ok {
		taskHint = ca.CurrentTask()
	}

	domains := selectDomains(query, taskHint)
	optimized := optimizeQuery(query)
	if optimized == "" && a.cfg.UseLLMFallback && a.llm != nil {
		if rewritten, err := a.rewriteWithLLM(ctx, query); err == nil {
			optimized = rewritten
		}
	}

	var vector []float32
	if a.llm != nil {
		vecs, err := a.llm.Embed(ctx, []string{optimized}, "")
		if err == nil && len(vecs) > 0 {
			vector = vecs[0]
		}
	}

	seenPrefix := map[string]bool{}
	var results []RetrievalResult
	for _, domain := range domains {
		hits, err := a.store.Search(ctx, domain, vector, vectorstore.SearchConfig{
			TopK:            10,
			IncludeMetadata: true,
		})
		if err != nil {
			continue
		}
		for _, hit := range hits {
			if hit.Score < a.cfg.ScoreThreshold {
				continue
			}
			prefix := contentPrefix(hit.Document.Content)
			if seenPrefix[prefix] {
				continue
			}
			seenPrefix[prefix] = true

			content := hit.Document.Content
			if !a.cfg.RawSnippets {
				content = summarizeOneLine(content)
			}
			results = append(results, RetrievalResult{
				Path:    hit.Document.ID,
				Content: content,
				Score:   hit.Score,
				Domain:  domain,
			})
		}
	}

	a.cacheStore(query, results)
	return results, nil
}

func (a *RetrievalAgent) rewriteWithLLM(ctx context.Context, query string) (string, error) {
	res, err := a.llm.Complete(ctx, []llmprovider.Message{
		{Role: llmprovider.RoleSystem, Content: "Rewrite this search query to remove filler words, keep it short."},
		{Role: llmprovider.RoleUser, Content: query},
	}, llmprovider.CompletionConfig{})
	if err != nil {
		return "", err
	}
	return res.Content, nil
}

func contentPrefix(content string) string {
	const prefixLen = 60
	if len(content) <= prefixLen {
		return content
	}
	return content[:prefixLen]
}

func summarizeOneLine(content string) string {
	line := strings.SplitN(content, "\n", 2)[0]
	const maxLen = 160
	if len(line) > maxLen {
		return line[:maxLen] + "…"
	}
	return line
}

func (a *RetrievalAgent) cacheLookup(query string) ([]RetrievalResult, bool) {
	a.cacheMu.Lock()
	defer a.cacheMu.Unlock()
	entry, ok := a.cache[query]
	if !ok || time.Now().After(entry.expires) {
		return nil, false
	}
	return entry.results, true
}

func (a *RetrievalAgent) cacheStore(query string, results []RetrievalResult) {
	a.cacheMu.Lock()
	defer a.cacheMu.Unlock()

	if _, exists := a.cache[query]; !exists {
		a.cacheOrder = append(a.cacheOrder, query)
	}
	a.cache[query] = cacheEntry{results: results, expires: time.Now().Add(a.cfg.CacheTTL)}

	for len(a.cacheOrder) > a.cfg.CacheMaxSize {
		oldest := a.cacheOrder[0]
		a.cacheOrder = a.cacheOrder[1:]
		delete(a.cache, oldest)
	}
}

var (
	_ agent.Agent               = (*RetrievalAgent)(nil)
	_ agent.AcceptsLLM          = (*RetrievalAgent)(nil)
	_ agent.AcceptsRAG          = (*RetrievalAgent)(nil)
	_ agent.AcceptsContextAgent = (*RetrievalAgent)(nil)
)
