// Package config loads the runtime's YAML configuration, applying
// environment overrides and ${VAR}/${VAR:default} substitution before
// the result is handed to the bootstrap sequence (spec §6
// "Configuration keys").
package config

import "time"

// Config is the root configuration structure, unmarshalled from YAML
// with koanf's "yaml" struct tag.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	LLM       LLMConfig       `yaml:"llm"`
	VectorDB  VectorDBConfig  `yaml:"vectordb"`
	RAG       RAGConfig       `yaml:"rag"`
	Agents    AgentsConfig    `yaml:"agents"`
	Workflows WorkflowsConfig `yaml:"workflows"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
	Features  FeaturesConfig  `yaml:"features"`
}

// ServerConfig is spec §6's "server.{host,port,corsOrigins[],debug,logLevel}".
type ServerConfig struct {
	Host        string   `yaml:"host"`
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"corsOrigins"`
	Debug       bool     `yaml:"debug"`
	LogLevel    string   `yaml:"logLevel"`
}

// LLMConfig is spec §6's "llm.{provider, openai|anthropic|local {...}}".
type LLMConfig struct {
	Provider  string          `yaml:"provider"`
	OpenAI    OpenAILLMConfig `yaml:"openai"`
	Anthropic AnthropicConfig `yaml:"anthropic"`
	Local     LocalLLMConfig  `yaml:"local"`
}

type OpenAILLMConfig struct {
	APIKey         string        `yaml:"apiKey"`
	Host           string        `yaml:"host"`
	DefaultModel   string        `yaml:"defaultModel"`
	EmbeddingModel string        `yaml:"embeddingModel"`
	Timeout        time.Duration `yaml:"timeout"`
}

type AnthropicConfig struct {
	APIKey       string `yaml:"apiKey"`
	DefaultModel string `yaml:"defaultModel"`
}

// LocalLLMConfig targets an OpenAI-compatible local inference server
// (e.g. Ollama, vLLM); spec §6 lists "local" as a provider option
// without prescribing its shape, so it is expressed the same way
// OpenAILLMConfig is.
type LocalLLMConfig struct {
	Host         string `yaml:"host"`
	DefaultModel string `yaml:"defaultModel"`
}

// VectorDBConfig is spec §6's "vectordb.{provider, qdrant|chroma|faiss
// {...}, defaultCollection, defaultDimension}".
type VectorDBConfig struct {
	Provider          string       `yaml:"provider"`
	Qdrant            QdrantConfig `yaml:"qdrant"`
	Chroma            ChromaConfig `yaml:"chroma"`
	Faiss             FaissConfig  `yaml:"faiss"`
	DefaultCollection string       `yaml:"defaultCollection"`
	DefaultDimension  int          `yaml:"defaultDimension"`
}

type QdrantConfig struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	APIKey string `yaml:"apiKey"`
	UseTLS bool   `yaml:"useTLS"`
}

// ChromaConfig backs pkg/vectorstore.ChromemStore, an embedded
// pure-Go store rather than a networked Chroma server.
type ChromaConfig struct {
	PersistPath string `yaml:"persistPath"`
	Compress    bool   `yaml:"compress"`
}

// FaissConfig has no backing pkg/vectorstore implementation (no example
// repo in the retrieval pack imports a Faiss binding); it is carried in
// the schema for completeness and documented as unimplemented in
// pkg/config's loader validation.
type FaissConfig struct {
	IndexPath string `yaml:"indexPath"`
}

// RAGConfig is spec §6's "rag.{enabled, chunkSize, chunkOverlap, topK,
// scoreThreshold}".
type RAGConfig struct {
	Enabled        bool    `yaml:"enabled"`
	ChunkSize      int     `yaml:"chunkSize"`
	ChunkOverlap   int     `yaml:"chunkOverlap"`
	TopK           int     `yaml:"topK"`
	ScoreThreshold float64 `yaml:"scoreThreshold"`
}

// AgentsConfig is spec §6's "agents.{pluginDirs[], defaultAgents[]}",
// extended with complianceRuleDirs and the scanner.* keys so the
// Compliance agent's rule-file parser and the Security agent's
// external scanner process (both spec §6 external collaborators) have
// a configured source; the base spec leaves rule and scanner
// provisioning unspecified.
type AgentsConfig struct {
	PluginDirs         []string      `yaml:"pluginDirs"`
	DefaultAgents      []string      `yaml:"defaultAgents"`
	ComplianceRuleDirs []string      `yaml:"complianceRuleDirs"`
	ScannerBinary      string        `yaml:"scannerBinary"`
	ScannerArgs        []string      `yaml:"scannerArgs"`
	ScannerTimeout     time.Duration `yaml:"scannerTimeout"`
}

// WorkflowsConfig is spec §6's "workflows.{defaultTimeout, stepTimeout}".
type WorkflowsConfig struct {
	DefaultTimeout time.Duration `yaml:"defaultTimeout"`
	StepTimeout    time.Duration `yaml:"stepTimeout"`
}

// LoggingConfig is spec §6's "logging.{level, format, file?, maxSize,
// backupCount}".
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Format      string `yaml:"format"`
	File        string `yaml:"file,omitempty"`
	MaxSize     int    `yaml:"maxSize"`
	BackupCount int    `yaml:"backupCount"`
}

// SecurityConfig is spec §6's "security.{apiKey?, requireAuth,
// allowedHosts[]}".
type SecurityConfig struct {
	APIKey       string   `yaml:"apiKey,omitempty"`
	RequireAuth  bool     `yaml:"requireAuth"`
	AllowedHosts []string `yaml:"allowedHosts"`
}

// FeaturesConfig is spec §6's "features.{enableStreaming,
// enableToolUse, enableMultiAgent, enableRag, enableCodeExecution}".
type FeaturesConfig struct {
	EnableStreaming     bool `yaml:"enableStreaming"`
	EnableToolUse       bool `yaml:"enableToolUse"`
	EnableMultiAgent    bool `yaml:"enableMultiAgent"`
	EnableRAG           bool `yaml:"enableRag"`
	EnableCodeExecution bool `yaml:"enableCodeExecution"`
}

// Defaults returns the baseline configuration layered under the file
// and environment providers (spec §6 implies sensible defaults since
// every key is independently overridable).
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Host:     "0.0.0.0",
			Port:     8080,
			LogLevel: "info",
		},
		LLM: LLMConfig{
			Provider: "openai",
		},
		VectorDB: VectorDBConfig{
			Provider:          "chroma",
			DefaultCollection: "default",
			DefaultDimension:  1536,
		},
		RAG: RAGConfig{
			Enabled:        true,
			ChunkSize:      800,
			ChunkOverlap:   100,
			TopK:           10,
			ScoreThreshold: 0.5,
		},
		Workflows: WorkflowsConfig{
			DefaultTimeout: 60 * time.Second,
			StepTimeout:    10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:       "info",
			Format:      "json",
			MaxSize:     100,
			BackupCount: 3,
		},
		Security: SecurityConfig{
			RequireAuth: false,
		},
		Features: FeaturesConfig{
			EnableStreaming:  true,
			EnableToolUse:    true,
			EnableMultiAgent: true,
			EnableRAG:        true,
		},
	}
}
