package config

import (
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix = "OMNI_"
	envDelim  = "__"
)

// Load reads a YAML config file layered over Defaults(), applies
// OMNI_-prefixed environment overrides, expands ${VAR}/${VAR:default}
// references, and unmarshals into a Config (spec §6 "Configuration
// keys"), grounded on the teacher's koanf_loader.go layering of
// confmap defaults -> file -> env providers.
func Load(path string) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaultsMap(), "."), nil); err != nil {
		return Config{}, fmt.Errorf("config: load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("config: load %s: %w", path, err)
		}
	}

	envProvider := env.Provider(envPrefix, envDelim, func(s string) string {
		trimmed := strings.TrimPrefix(s, envPrefix)
		return strings.ReplaceAll(strings.ToLower(trimmed), envDelim, ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return Config{}, fmt.Errorf("config: load env overrides: %w", err)
	}

	expanded, ok := expandEnvVarsInData(k.Raw()).(map[string]any)
	if !ok {
		return Config{}, fmt.Errorf("config: unexpected shape after env expansion")
	}
	expandedK := koanf.New(".")
	if err := expandedK.Load(confmap.Provider(expanded, "."), nil); err != nil {
		return Config{}, fmt.Errorf("config: reload expanded values: %w", err)
	}

	var cfg Config
	unmarshalConf := koanf.UnmarshalConf{
		Tag: "yaml",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &cfg,
			WeaklyTypedInput: true,
			TagName:          "yaml",
			DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		},
	}
	if err := expandedK.UnmarshalWithConf("", &cfg, unmarshalConf); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// validate rejects configurations the loader can detect are
// structurally unusable before bootstrap spends effort on them (spec
// §6 "Fatal bootstrap errors terminate the process with a diagnostic
// log line and exit code 1").
func validate(cfg Config) error {
	if cfg.Server.Port <= 0 {
		return fmt.Errorf("config: server.port must be positive, got %d", cfg.Server.Port)
	}
	switch cfg.LLM.Provider {
	case "openai", "anthropic", "local":
	default:
		return fmt.Errorf("config: llm.provider %q is not one of openai|anthropic|local", cfg.LLM.Provider)
	}
	switch cfg.VectorDB.Provider {
	case "qdrant", "chroma":
	case "faiss":
		return fmt.Errorf("config: vectordb.provider \"faiss\" has no backing store in this build")
	default:
		return fmt.Errorf("config: vectordb.provider %q is not one of qdrant|chroma|faiss", cfg.VectorDB.Provider)
	}
	return nil
}

// defaultsMap mirrors Defaults() as nested maps so it can be fed
// through the same confmap provider the file and env layers use.
func defaultsMap() map[string]any {
	d := Defaults()
	return map[string]any{
		"server": map[string]any{
			"host":        d.Server.Host,
			"port":        d.Server.Port,
			"corsOrigins": d.Server.CORSOrigins,
			"debug":       d.Server.Debug,
			"logLevel":    d.Server.LogLevel,
		},
		"llm": map[string]any{
			"provider": d.LLM.Provider,
		},
		"vectordb": map[string]any{
			"provider":          d.VectorDB.Provider,
			"defaultCollection": d.VectorDB.DefaultCollection,
			"defaultDimension":  d.VectorDB.DefaultDimension,
		},
		"rag": map[string]any{
			"enabled":        d.RAG.Enabled,
			"chunkSize":      d.RAG.ChunkSize,
			"chunkOverlap":   d.RAG.ChunkOverlap,
			"topK":           d.RAG.TopK,
			"scoreThreshold": d.RAG.ScoreThreshold,
		},
		"workflows": map[string]any{
			"defaultTimeout": d.Workflows.DefaultTimeout,
			"stepTimeout":    d.Workflows.StepTimeout,
		},
		"logging": map[string]any{
			"level":       d.Logging.Level,
			"format":      d.Logging.Format,
			"maxSize":     d.Logging.MaxSize,
			"backupCount": d.Logging.BackupCount,
		},
		"security": map[string]any{
			"requireAuth": d.Security.RequireAuth,
		},
		"features": map[string]any{
			"enableStreaming":     d.Features.EnableStreaming,
			"enableToolUse":       d.Features.EnableToolUse,
			"enableMultiAgent":    d.Features.EnableMultiAgent,
			"enableRag":           d.Features.EnableRAG,
			"enableCodeExecution": d.Features.EnableCodeExecution,
		},
	}
}
