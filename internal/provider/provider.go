// Package provider defines the model adapter boundary: a capability
// interface, a registry table keyed by provider name, and the error classes
// the pipeline maps into its failure taxonomy. The core depends only on the
// Adapter interface, never on a concrete provider.
package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrAuth signals rejected credentials (401/403-equivalent).
	ErrAuth = errors.New("provider: authentication failed")

	// ErrRateLimited signals a 429-equivalent from the provider.
	ErrRateLimited = errors.New("provider: rate limit exceeded")

	// ErrNetwork signals a connectivity failure or 5xx from the provider.
	ErrNetwork = errors.New("provider: network failure")

	// ErrUnknownProvider is returned by Registry.Resolve for unregistered names.
	ErrUnknownProvider = errors.New("provider: unknown provider")
)

// Request carries one rendered prompt to a model.
type Request struct {
	Prompt    string
	Settings  map[string]any
	RequestID string
}

// Response is a model invocation result.
type Response struct {
	Content      string `json:"content"`
	TokenUsage   int    `json:"tokenUsage,omitempty"`
	FinishReason string `json:"finishReason,omitempty"`
}

// Info describes an adapter for discovery and logging.
type Info struct {
	Name  string `json:"name"`
	Model string `json:"model,omitempty"`
}

// Adapter is the capability interface every model provider implements.
// Execute errors should wrap one of the package error classes when the
// failure is classifiable; anything else is treated as a generic failure.
type Adapter interface {
	Execute(ctx context.Context, req Request) (*Response, error)
	Validate() error
	Describe() Info
}

// Registry is a provider table keyed by name. The first registered adapter
// becomes the default unless SetDefault overrides it.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
	fallback string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register adds an adapter under name.
func (r *Registry) Register(name string, a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[name] = a
	if r.fallback == "" {
		r.fallback = name
	}
}

// SetDefault marks an already-registered adapter as the fallback for
// requests that name no provider.
func (r *Registry) SetDefault(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.adapters[name]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	r.fallback = name
	return nil
}

// Resolve returns the adapter for name; an empty name resolves the default.
func (r *Registry) Resolve(name string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if name == "" {
		name = r.fallback
	}
	a, ok := r.adapters[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	return a, nil
}

// Names lists registered provider names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
