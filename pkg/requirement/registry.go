// Package requirement builds challenge requirements from their
// declarative specs. Each kind is a Factory registered under a
// name; the engine only sees the challenge.Requirement
// interface the factories return.
package requirement

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"digital.vasic.challengeboard/pkg/challenge"
)

// ErrUnknownKind is returned by Build for an unregistered kind.
var ErrUnknownKind = errors.New("unknown requirement kind")

// Factory builds a Requirement from its spec.
type Factory func(
	spec challenge.RequirementSpec,
) (challenge.Requirement, error)

// Registry maps requirement kinds to factories. It is safe for
// concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates a Registry with the built-in kinds
// (count, expression, duration) pre-registered.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.registerDefaults()
	return r
}

func (r *Registry) registerDefaults() {
	r.factories[KindCount] = newCount
	r.factories[KindExpression] = newExpression
	r.factories[KindDuration] = newDuration
}

// Register adds a factory for kind. Returns an error if the
// kind is already registered.
func (r *Registry) Register(kind string, f Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[kind]; exists {
		return fmt.Errorf(
			"requirement kind already registered: %s", kind,
		)
	}
	r.factories[kind] = f
	return nil
}

// Build constructs the requirement described by spec.
func (r *Registry) Build(
	spec challenge.RequirementSpec,
) (challenge.Requirement, error) {
	r.mu.RLock()
	f, exists := r.factories[spec.Kind]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf(
			"%w: %q (requirement %s)",
			ErrUnknownKind, spec.Kind, spec.Name,
		)
	}
	req, err := f(spec)
	if err != nil {
		return nil, fmt.Errorf(
			"requirement %s: %w", spec.Name, err,
		)
	}
	return req, nil
}

// Has returns true if kind has a registered factory.
func (r *Registry) Has(kind string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.factories[kind]
	return exists
}

// Kinds returns the registered kinds sorted by name.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.factories))
	for k := range r.factories {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
