package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/centinelalabs/centinela/pkg/recognizer"
)

// ErrRecognizerNotRegistered is returned by [Registry.Create] when no factory
// has been registered under the requested recognizer name.
var ErrRecognizerNotRegistered = errors.New("config: recognizer not registered")

// Registry maps recognizer names to their constructor functions. It is safe
// for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]func(RecognizerConfig) (recognizer.Provider, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]func(RecognizerConfig) (recognizer.Provider, error)),
	}
}

// Register registers a recognizer factory under name. Subsequent calls with
// the same name overwrite the previous registration.
func (r *Registry) Register(name string, factory func(RecognizerConfig) (recognizer.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Create builds the recognizer provider selected by cfg.Name.
func (r *Registry) Create(cfg RecognizerConfig) (recognizer.Provider, error) {
	r.mu.RLock()
	factory, ok := r.factories[cfg.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrRecognizerNotRegistered, cfg.Name)
	}
	return factory(cfg)
}

// Names returns the registered recognizer names in no particular order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	return names
}
