package backend

import (
	"fmt"
	"sort"
	"sync"
)

// EngineInfo pairs an engine name with its capabilities.
type EngineInfo struct {
	Name         string       `json:"name"`
	Default      bool         `json:"default"`
	Capabilities Capabilities `json:"capabilities"`
}

// Registry holds registered engines and resolves which one serves a job.
type Registry struct {
	mu       sync.RWMutex
	engines  map[string]Engine
	fallback string
}

// NewRegistry creates an empty engine registry.
func NewRegistry() *Registry {
	return &Registry{
		engines: make(map[string]Engine),
	}
}

// Register adds an engine under the given name. The first engine registered
// becomes the default until SetDefault says otherwise.
func (r *Registry) Register(name string, e Engine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.engines[name] = e
	if r.fallback == "" {
		r.fallback = name
	}
}

// SetDefault selects the engine used when a request names none.
func (r *Registry) SetDefault(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.engines[name]; !ok {
		return fmt.Errorf("engine %q is not registered", name)
	}
	r.fallback = name
	return nil
}

// Resolve returns the engine registered under name along with the name it
// resolved to. An empty name selects the default engine.
func (r *Registry) Resolve(name string) (Engine, string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	target := name
	if target == "" {
		target = r.fallback
	}
	if target == "" {
		return nil, "", fmt.Errorf("no engines registered")
	}

	e, ok := r.engines[target]
	if !ok {
		return nil, "", fmt.Errorf("engine %q is not registered", target)
	}
	return e, target, nil
}

// List returns information about all registered engines, sorted by name
// for a stable API response.
func (r *Registry) List() []EngineInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]EngineInfo, 0, len(r.engines))
	for name, e := range r.engines {
		infos = append(infos, EngineInfo{
			Name:         name,
			Default:      name == r.fallback,
			Capabilities: e.Capabilities(),
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Name < infos[j].Name
	})
	return infos
}
