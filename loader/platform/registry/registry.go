package registry

import (
	"errors"
	"net/url"
	"sync"

	"github.com/prawnloader/prawnloader/loader/platform"
)

// Registry keeps provider URL grammars in priority order.
type Registry struct {
	mu       sync.RWMutex
	grammars map[platform.Provider]platform.Grammar
	// Match consults grammars in registration order.
	ordered []platform.Grammar
}

// New creates a new Registry instance.
func New() *Registry {
	return &Registry{
		grammars: make(map[platform.Provider]platform.Grammar),
	}
}

// Register appends a grammar at the lowest priority.
// It fails if the grammar is nil, unnamed, or already registered.
func (r *Registry) Register(g platform.Grammar) error {
	if g == nil {
		return errors.New("grammar cannot be nil")
	}

	name := g.Name()
	if name == "" {
		return errors.New("grammar name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.grammars[name]; exists {
		return errors.New("grammar already registered: " + string(name))
	}

	r.grammars[name] = g
	r.ordered = append(r.ordered, g)
	return nil
}

// Get retrieves a grammar by provider.
func (r *Registry) Get(name platform.Provider) (platform.Grammar, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, ok := r.grammars[name]
	return g, ok
}

// GetAll returns a copy of the grammars in priority order.
func (r *Registry) GetAll() []platform.Grammar {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]platform.Grammar, len(r.ordered))
	copy(result, r.ordered)
	return result
}

// Match returns the result of the first grammar that claims u.
// A claiming grammar's error is returned as is; later grammars are not consulted.
func (r *Registry) Match(u *url.URL) (platform.CollectionRef, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, g := range r.ordered {
		ref, ok, err := g.Match(u)
		if err != nil {
			return platform.CollectionRef{}, true, err
		}
		if ok {
			return ref, true, nil
		}
	}
	return platform.CollectionRef{}, false, nil
}

// Reset clears all registered grammars.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.grammars = make(map[platform.Provider]platform.Grammar)
	r.ordered = nil
}
