// Command omnirtd boots the agent orchestration runtime: it loads
// configuration, wires the built-in agents to their collaborators,
// and serves the wire protocol over a WebSocket endpoint alongside a
// second health/config HTTP endpoint, grounded on the teacher's
// cmd/hector/main.go CLI/ServeCmd shape.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/go-chi/chi/v5"

	"github.com/omnicore/agentrt/pkg/agent"
	"github.com/omnicore/agentrt/pkg/agents"
	"github.com/omnicore/agentrt/pkg/config"
	"github.com/omnicore/agentrt/pkg/depgraph"
	"github.com/omnicore/agentrt/pkg/fileanalyzer"
	"github.com/omnicore/agentrt/pkg/llmprovider"
	"github.com/omnicore/agentrt/pkg/logger"
	"github.com/omnicore/agentrt/pkg/observability"
	"github.com/omnicore/agentrt/pkg/orchestrator"
	"github.com/omnicore/agentrt/pkg/pool"
	"github.com/omnicore/agentrt/pkg/report"
	"github.com/omnicore/agentrt/pkg/rules"
	"github.com/omnicore/agentrt/pkg/scanner"
	"github.com/omnicore/agentrt/pkg/sharedcontext"
	"github.com/omnicore/agentrt/pkg/vectorstore"
	"github.com/omnicore/agentrt/pkg/wire"
	"github.com/omnicore/agentrt/pkg/workflow"
)

// CLI defines the command-line interface.
type CLI struct {
	Version VersionCmd `cmd:"" help:"Show version information."`
	Serve   ServeCmd   `cmd:"" help:"Start the runtime server."`

	Config string `short:"c" help:"Path to config file." type:"path" default:"config.yaml"`
}

type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		version = info.Main.Version
	}
	fmt.Printf("omnirtd version %s\n", version)
	return nil
}

// ServeCmd starts the WebSocket wire server and the health/config
// HTTP endpoint.
type ServeCmd struct {
	Watch bool `help:"Watch the config file for changes and hot-reload."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	cfg, err := config.Load(cli.Config)
	if err != nil {
		return fmt.Errorf("omnirtd: load config: %w", err)
	}

	level, _ := logger.ParseLevel(cfg.Logging.Level)
	var logOutput *os.File = os.Stderr
	if cfg.Logging.File != "" {
		f, closeFn, err := logger.OpenLogFile(cfg.Logging.File)
		if err != nil {
			return fmt.Errorf("omnirtd: open log file: %w", err)
		}
		defer closeFn()
		logOutput = f
	}
	logger.Init(level, logOutput, cfg.Logging.Format)
	log := logger.GetLogger()

	if c.Watch {
		watcher, err := config.Watch(ctx, cli.Config, func(updated config.Config, err error) {
			if err != nil {
				log.Error("config: reload failed", "error", err)
				return
			}
			cfg = updated
			log.Info("config: reloaded", "path", cli.Config)
		})
		if err != nil {
			return fmt.Errorf("omnirtd: watch config: %w", err)
		}
		defer watcher.Close()
	}

	obs := observability.NewManager("omnirtd", log)

	llmPool, llmClose, err := buildLLMPool(cfg)
	if err != nil {
		return fmt.Errorf("omnirtd: build LLM pool: %w", err)
	}
	defer llmClose()

	var vectorPool *pool.Pool[vectorstore.Store]
	var vectorStore vectorstore.Store
	if cfg.RAG.Enabled {
		vp, vClose, err := buildVectorPool(cfg)
		if err != nil {
			return fmt.Errorf("omnirtd: build vector store pool: %w", err)
		}
		defer vClose()
		vectorPool = vp
		vectorStore = &pooledVectorStore{pool: vectorPool}
	}

	llm := &pooledLLM{pool: llmPool}

	registry := agent.NewRegistry()
	loader := agent.NewLoader(registry, cfg.Agents.PluginDirs...)
	if err := registerBuiltinAgents(loader, cfg, llm, vectorStore); err != nil {
		return fmt.Errorf("omnirtd: register agents: %w", err)
	}
	if err := loader.DiscoverPlugins(); err != nil {
		return fmt.Errorf("omnirtd: discover plugins: %w", err)
	}

	if err := validateDependencyGraph(registry); err != nil {
		log.Error("omnirtd: dependency graph invalid", "error", err)
		return err
	}

	shared := sharedcontext.New(sharedcontext.WithLogger(log))

	orch := orchestrator.New(orchestrator.Config{
		LLM:          llm,
		RAG:          vectorStore,
		AgentTimeout: cfg.Workflows.StepTimeout,
	}, registry, shared)

	defaultAgents := cfg.Agents.DefaultAgents
	if len(defaultAgents) == 0 {
		defaultAgents = []string{"context", "security", "compliance", "coding"}
		if cfg.RAG.Enabled {
			defaultAgents = append(defaultAgents, "rag")
		}
	}
	for _, id := range defaultAgents {
		if id == "rag" && !cfg.RAG.Enabled {
			log.Warn("omnirtd: skipping rag agent, RAG disabled in config")
			continue
		}
		if _, err := orch.AddAgent(id); err != nil {
			log.Warn("omnirtd: add agent failed", "agent", id, "error", err)
		}
	}

	renderer := report.New(shared)
	engine := workflow.New(workflow.Config{
		DefaultTimeout: cfg.Workflows.DefaultTimeout,
		StepTimeout:    cfg.Workflows.StepTimeout,
	}, orch, shared, renderer)

	wireServer := wire.NewServer(orch, registry, engine)

	mainMux := http.NewServeMux()
	mainMux.HandleFunc("/ws", wireServer.HandleWS)
	mainMux.Handle("/metrics", obs.MetricsHandler())

	mainSrv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: mainMux,
	}

	sideSrv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port+1),
		Handler: newSideRouter(cfg),
	}

	errCh := make(chan error, 2)
	go func() {
		log.Info("omnirtd: wire server listening", "addr", mainSrv.Addr)
		if err := mainSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	go func() {
		log.Info("omnirtd: health/config server listening", "addr", sideSrv.Addr)
		if err := sideSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("omnirtd: shutting down")
	case err := <-errCh:
		log.Error("omnirtd: server error", "error", err)
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = mainSrv.Shutdown(shutdownCtx)
	_ = sideSrv.Shutdown(shutdownCtx)
	_ = llmPool.Close()
	if vectorPool != nil {
		_ = vectorPool.Close()
	}
	return nil
}

// buildLLMPool constructs the factory for the configured LLM provider
// and fronts it with a pool (spec §4.C), even though the OpenAI and
// Anthropic clients are themselves stateless and safe to share — the
// pool still gives callers the same acquire-timeout/circuit-breaker
// path every other collaborator gets.
func buildLLMPool(cfg config.Config) (*pool.Pool[llmprovider.Provider], func() error, error) {
	var provider llmprovider.Provider
	switch cfg.LLM.Provider {
	case "openai":
		provider = llmprovider.NewOpenAIProvider(llmprovider.OpenAIConfig{
			APIKey:         cfg.LLM.OpenAI.APIKey,
			Host:           cfg.LLM.OpenAI.Host,
			DefaultModel:   cfg.LLM.OpenAI.DefaultModel,
			EmbeddingModel: cfg.LLM.OpenAI.EmbeddingModel,
			Timeout:        cfg.LLM.OpenAI.Timeout,
		})
	case "anthropic":
		provider = llmprovider.NewAnthropicProvider(llmprovider.AnthropicConfig{
			APIKey:       cfg.LLM.Anthropic.APIKey,
			DefaultModel: cfg.LLM.Anthropic.DefaultModel,
		})
	case "local":
		provider = llmprovider.NewOpenAIProvider(llmprovider.OpenAIConfig{
			Host:         cfg.LLM.Local.Host,
			DefaultModel: cfg.LLM.Local.DefaultModel,
		})
	default:
		return nil, nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}

	p := pool.New[llmprovider.Provider](pool.Config{MaxConnections: 8}, llmFactory{provider: provider})
	return p, p.Close, nil
}

func buildVectorPool(cfg config.Config) (*pool.Pool[vectorstore.Store], func() error, error) {
	var store vectorstore.Store
	switch cfg.VectorDB.Provider {
	case "chroma":
		s, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{
			PersistPath: cfg.VectorDB.Chroma.PersistPath,
			Compress:    cfg.VectorDB.Chroma.Compress,
		})
		if err != nil {
			return nil, nil, err
		}
		store = s
	case "qdrant":
		s, err := vectorstore.NewQdrantStore(vectorstore.QdrantConfig{
			Host:   cfg.VectorDB.Qdrant.Host,
			Port:   cfg.VectorDB.Qdrant.Port,
			APIKey: cfg.VectorDB.Qdrant.APIKey,
			UseTLS: cfg.VectorDB.Qdrant.UseTLS,
		})
		if err != nil {
			return nil, nil, err
		}
		store = s
	default:
		return nil, nil, fmt.Errorf("unknown vectordb provider %q", cfg.VectorDB.Provider)
	}

	p := pool.New[vectorstore.Store](pool.Config{MaxConnections: 8}, vectorFactory{store: store})
	return p, p.Close, nil
}

// registerBuiltinAgents registers the five built-in agents with the
// collaborators newly built for this runtime: the rule-file loader,
// file analyzer, external scanner, and LLM-backed code generator
// (spec §4.E built-in registration, §6 external collaborators).
func registerBuiltinAgents(loader *agent.Loader, cfg config.Config, llm llmprovider.Provider, store vectorstore.Store) error {
	contextAgent := agents.NewContextAgent(agents.ContextAgentConfig{}, fileanalyzer.New(llm))
	if err := loader.RegisterBuiltin(contextAgent.Metadata(), func() agent.Agent {
		return agents.NewContextAgent(agents.ContextAgentConfig{}, fileanalyzer.New(llm))
	}); err != nil {
		return err
	}

	if err := loader.RegisterBuiltin(agents.NewRetrievalAgent(agents.RetrievalAgentConfig{}, store).Metadata(), func() agent.Agent {
		return agents.NewRetrievalAgent(agents.RetrievalAgentConfig{
			ScoreThreshold: cfg.RAG.ScoreThreshold,
		}, store)
	}); err != nil {
		return err
	}

	scan := scanner.New(scanner.Config{
		Binary:  cfg.Agents.ScannerBinary,
		Args:    cfg.Agents.ScannerArgs,
		Timeout: cfg.Agents.ScannerTimeout,
	})
	securityCfg := agents.SecurityAgentConfig{ScannerEnabled: cfg.Agents.ScannerBinary != ""}
	if err := loader.RegisterBuiltin(agents.NewSecurityAgent(securityCfg, scan).Metadata(), func() agent.Agent {
		return agents.NewSecurityAgent(securityCfg, scan)
	}); err != nil {
		return err
	}

	ruleLoader := rules.New()
	complianceCfg := agents.ComplianceAgentConfig{RuleDirs: cfg.Agents.ComplianceRuleDirs}
	if err := loader.RegisterBuiltin(agents.NewComplianceAgent(complianceCfg, ruleLoader).Metadata(), func() agent.Agent {
		return agents.NewComplianceAgent(complianceCfg, ruleLoader)
	}); err != nil {
		return err
	}

	generator := newLLMGenerator(llm)
	if err := loader.RegisterBuiltin(agents.NewCodingAgent(agents.CodingAgentConfig{}, generator).Metadata(), func() agent.Agent {
		return agents.NewCodingAgent(agents.CodingAgentConfig{}, generator)
	}); err != nil {
		return err
	}

	return nil
}

// validateDependencyGraph builds a depgraph from the registered
// agents' declared dependencies and fails fast on missing ids or
// cycles (spec §7 "Dependency-graph validation failures at startup
// are fatal and list all missing/cyclic ids").
func validateDependencyGraph(registry *agent.Registry) error {
	g := depgraph.New()
	for _, m := range registry.List(true) {
		g.Add(depgraph.Node{ID: m.ID, Dependencies: m.Dependencies})
	}
	if errs := g.Validate(); len(errs) > 0 {
		return fmt.Errorf("dependency graph: %d missing dependency error(s): %v", len(errs), errs)
	}
	if cycle := g.DetectCycles(); len(cycle) > 0 {
		return fmt.Errorf("dependency graph: cycle detected: %v", cycle)
	}
	return nil
}

// newSideRouter builds the health/config chi.Router served on
// port+1 (spec §6 "additions"), grounded on the teacher's
// pkg/transport/http_metrics_middleware.go chi usage.
func newSideRouter(cfg config.Config) chi.Router {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status":  "healthy",
			"version": runtimeVersion(),
		})
	})
	r.Get("/config", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(redactedConfig(cfg))
	})
	return r
}

func runtimeVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

// redactedConfig returns a copy of cfg with security.apiKey and every
// LLM provider API key replaced with "***" (spec §6 "/config
// redacting security.apiKey and LLM provider API keys").
func redactedConfig(cfg config.Config) config.Config {
	redacted := cfg
	if redacted.Security.APIKey != "" {
		redacted.Security.APIKey = "***"
	}
	if redacted.LLM.OpenAI.APIKey != "" {
		redacted.LLM.OpenAI.APIKey = "***"
	}
	if redacted.LLM.Anthropic.APIKey != "" {
		redacted.LLM.Anthropic.APIKey = "***"
	}
	if redacted.VectorDB.Qdrant.APIKey != "" {
		redacted.VectorDB.Qdrant.APIKey = "***"
	}
	return redacted
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("omnirtd"),
		kong.Description("Agent orchestration runtime server."),
	)
	if err := ctx.Run(&cli); err != nil {
		fmt.Fprintln(os.Stderr, "omnirtd:", err)
		os.Exit(1)
	}
}
