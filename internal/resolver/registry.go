package resolver

import (
	"fmt"
	"sync"
)

// Factory constructs a resolver on demand.
type Factory func() (Resolver, error)

// Registry maps resolver names to factories. The host application
// populates it before building a chain; the core never looks resolvers up
// by path or package specifier itself.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

func (r *Registry) Register(name string, f Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if name == "" {
		return fmt.Errorf("resolver name is required")
	}
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("resolver %q already registered", name)
	}
	r.factories[name] = f
	return nil
}

// RegisterResolver registers an already-constructed resolver under its own
// name.
func (r *Registry) RegisterResolver(res Resolver) error {
	return r.Register(res.Name(), func() (Resolver, error) { return res, nil })
}

func (r *Registry) Deregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.factories, name)
}

// Names lists the registered resolver names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for name := range r.factories {
		out = append(out, name)
	}
	return out
}

// Build constructs resolvers for the given names, in order. Names with no
// registered factory are skipped: a workflow may declare capabilities the
// host does not provide, and partial capability availability is expected.
func (r *Registry) Build(names []string) ([]Resolver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Resolver
	for _, name := range names {
		f, ok := r.factories[name]
		if !ok {
			continue
		}
		res, err := f()
		if err != nil {
			return nil, fmt.Errorf("building resolver %q: %w", name, err)
		}
		out = append(out, res)
	}
	return out, nil
}
