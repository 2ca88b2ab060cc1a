package agent

import (
	"fmt"
	"sort"
	"sync"

	"github.com/omnicore/agentrt/pkg/registry"
)

// Factory builds a fresh agent instance. The registry stores factories,
// not instances, so Get always hands the orchestrator an unshared
// agent (spec §4.E "returns a fresh instance iff enabled").
type Factory func() Agent

type registration struct {
	factory  Factory
	metadata Metadata
	enabled  bool
}

// Registry holds registered agent factories and their enabled state.
type Registry struct {
	mu    sync.RWMutex
	base  *registry.BaseRegistry[*registration]
	order []string
}

func NewRegistry() *Registry {
	return &Registry{base: registry.NewBaseRegistry[*registration]()}
}

// Register adds a new agent factory under metadata.ID, enabled by
// default. Duplicate ids are rejected (spec §4.E).
func (r *Registry) Register(metadata Metadata, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.base.Register(metadata.ID, &registration{
		factory:  factory,
		metadata: metadata,
		enabled:  true,
	}); err != nil {
		return fmt.Errorf("agent registry: %w", err)
	}
	r.order = append(r.order, metadata.ID)
	return nil
}

// Unregister removes an agent id entirely.
func (r *Registry) Unregister(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.base.Remove(id); err != nil {
		return fmt.Errorf("agent registry: %w", err)
	}
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// Enable/Disable toggle whether Get will hand out an instance.
func (r *Registry) Enable(id string) error  { return r.setEnabled(id, true) }
func (r *Registry) Disable(id string) error { return r.setEnabled(id, false) }

func (r *Registry) setEnabled(id string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, ok := r.base.Get(id)
	if !ok {
		return fmt.Errorf("agent registry: %q not registered", id)
	}
	reg.enabled = enabled
	return nil
}

// Get returns a fresh agent instance if id is registered and enabled.
func (r *Registry) Get(id string) (Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, ok := r.base.Get(id)
	if !ok || !reg.enabled {
		return nil, false
	}
	return reg.factory(), true
}

// FindByCapability returns the metadata of every registered, enabled
// agent advertising capability.
func (r *Registry) FindByCapability(capability string) []Metadata {
	return r.findBy(func(m Metadata) bool { return containsString(m.Capabilities, capability) })
}

// FindByTag returns the metadata of every registered, enabled agent
// carrying tag.
func (r *Registry) FindByTag(tag string) []Metadata {
	return r.findBy(func(m Metadata) bool { return containsString(m.Tags, tag) })
}

func (r *Registry) findBy(match func(Metadata) bool) []Metadata {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Metadata
	for _, id := range r.order {
		reg, ok := r.base.Get(id)
		if !ok || !reg.enabled {
			continue
		}
		if match(reg.metadata) {
			out = append(out, reg.metadata)
		}
	}
	return out
}

// List returns registered agent metadata in registration order,
// optionally filtered to only enabled entries.
func (r *Registry) List(enabledOnly bool) []Metadata {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Metadata, 0, len(r.order))
	for _, id := range r.order {
		reg, ok := r.base.Get(id)
		if !ok {
			continue
		}
		if enabledOnly && !reg.enabled {
			continue
		}
		out = append(out, reg.metadata)
	}
	return out
}

// Names returns every registered id, sorted.
func (r *Registry) Names() []string {
	names := r.base.Names()
	sort.Strings(names)
	return names
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
