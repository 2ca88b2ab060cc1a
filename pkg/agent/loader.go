package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"plugin"
	"strings"
	"sync"

	"github.com/omnicore/agentrt/pkg/logger"
)

// pluginSymbolName is the exported symbol every dynamically loaded
// agent plugin must provide: func() (Metadata, Factory).
const pluginSymbolName = "NewAgent"

// Loader discovers agent factories from three sources (spec §4.E): a
// built-in set registered in-process, files in configured plugin
// directories, and named modules resolved by an explicit path map.
//
// Dynamic loading uses the standard library's `plugin` package rather
// than a gRPC-based plugin protocol: agent plugins run in-process and
// share this binary's Go runtime, so the network/serialization layer a
// gRPC bridge would add has no job to do here.
type Loader struct {
	registry *Registry
	dirs     []string

	mu            sync.Mutex
	loadedModules map[string]string // agent id -> source file path
}

func NewLoader(reg *Registry, pluginDirs ...string) *Loader {
	return &Loader{
		registry:      reg,
		dirs:          pluginDirs,
		loadedModules: make(map[string]string),
	}
}

// RegisterBuiltin registers a built-in agent factory directly, bypassing
// file discovery.
func (l *Loader) RegisterBuiltin(metadata Metadata, factory Factory) error {
	return l.registry.Register(metadata, factory)
}

// DiscoverPlugins scans every configured plugin directory for `.so`
// files and registers each one's exported agent. Filenames beginning
// with `_` are skipped. A plugin whose id is already registered is
// silently dropped rather than treated as an error, so a shared plugin
// directory can be rescanned safely.
func (l *Loader) DiscoverPlugins() error {
	for _, dir := range l.dirs {
		entries, err := os.ReadDir(dir)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return fmt.Errorf("agent loader: read plugin dir %q: %w", dir, err)
		}

		for _, entry := range entries {
			if entry.IsDir() || strings.HasPrefix(entry.Name(), "_") {
				continue
			}
			if !strings.HasSuffix(entry.Name(), ".so") {
				continue
			}
			path := filepath.Join(dir, entry.Name())
			if err := l.loadFile(path); err != nil {
				logger.GetLogger().Warn("agent loader: skipping plugin", "path", path, "error", err)
			}
		}
	}
	return nil
}

// LoadModule loads a single named plugin file directly, outside of
// directory discovery.
func (l *Loader) LoadModule(path string) error {
	return l.loadFile(path)
}

func (l *Loader) loadFile(path string) error {
	p, err := plugin.Open(path)
	if err != nil {
		return fmt.Errorf("open plugin: %w", err)
	}
	sym, err := p.Lookup(pluginSymbolName)
	if err != nil {
		return fmt.Errorf("lookup %s: %w", pluginSymbolName, err)
	}
	constructor, ok := sym.(func() (Metadata, Factory))
	if !ok {
		return fmt.Errorf("symbol %s has unexpected type", pluginSymbolName)
	}

	metadata, factory := constructor()
	if err := l.registry.Register(metadata, factory); err != nil {
		// Duplicate registrations are dropped silently (spec §4.E); any
		// other registration failure is still surfaced to the caller.
		if strings.Contains(err.Error(), "already registered") {
			return nil
		}
		return err
	}

	l.mu.Lock()
	l.loadedModules[metadata.ID] = path
	l.mu.Unlock()
	return nil
}

// Reload unregisters id, forgets its tracked source file, and
// re-registers it from that same file (spec §4.E).
func (l *Loader) Reload(id string) error {
	l.mu.Lock()
	path, ok := l.loadedModules[id]
	l.mu.Unlock()
	if !ok {
		return fmt.Errorf("agent loader: %q was not loaded from a plugin file", id)
	}

	if err := l.registry.Unregister(id); err != nil {
		return err
	}
	l.mu.Lock()
	delete(l.loadedModules, id)
	l.mu.Unlock()

	return l.loadFile(path)
}
