package registry

import (
	"fmt"
	"sync"
)

// Registry is a named collection of Contexts. Callers own one (or use the
// package-level default for convenience); the scheduler never reaches for
// a process-wide global on its own.
type Registry struct {
	mu       sync.RWMutex
	contexts map[string]*Context
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{contexts: make(map[string]*Context)}
}

// Register creates (or replaces) the named context with settings.
func (r *Registry) Register(name string, settings Settings) (*Context, error) {
	if name == "" {
		return nil, fmt.Errorf("registry: context name must not be empty")
	}
	ctx := &Context{name: name, settings: settings.withDefaults()}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.contexts[name] = ctx
	return ctx, nil
}

// Context looks up a previously registered context by name.
func (r *Registry) Context(name string) (*Context, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ctx, ok := r.contexts[name]
	return ctx, ok
}

// MustContext looks up a context, panicking if it was never registered.
// Intended for program wiring code, not request-handling paths.
func (r *Registry) MustContext(name string) *Context {
	ctx, ok := r.Context(name)
	if !ok {
		panic(fmt.Sprintf("registry: no context registered under %q", name))
	}
	return ctx
}

// Remove drops a context from the registry. It does not close the
// context's underlying connection.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.contexts, name)
}

// defaultRegistry backs the package-level convenience functions below.
var defaultRegistry = New()

// Default returns the package-level default Registry.
func Default() *Registry { return defaultRegistry }

// Register registers name on the default Registry.
func Register(name string, settings Settings) (*Context, error) {
	return defaultRegistry.Register(name, settings)
}

// Get looks up name on the default Registry.
func Get(name string) (*Context, bool) {
	return defaultRegistry.Context(name)
}
