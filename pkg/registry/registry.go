// Package registry holds the challenge catalog: list
// definitions, their challenge pools, and the YAML loader that
// materializes them.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"digital.vasic.challengeboard/pkg/challenge"
)

var (
	// ErrDuplicateChallenge is returned when a challenge id is
	// registered twice within one list.
	ErrDuplicateChallenge = errors.New("duplicate challenge id")

	// ErrDuplicateList is returned when a list id is
	// registered twice within one catalog.
	ErrDuplicateList = errors.New("duplicate list id")

	// ErrMissingField is returned for a required field that
	// is absent from the catalog.
	ErrMissingField = errors.New("missing required field")

	// ErrListNotFound is returned by Get for an unknown list.
	ErrListNotFound = errors.New("list not found")
)

// ConfigurationError describes a catalog entry that was
// rejected. Loading continues with the remaining entries.
type ConfigurationError struct {
	List      string
	Challenge string
	Err       error
}

func (e *ConfigurationError) Error() string {
	if e.Challenge == "" {
		return fmt.Sprintf("list %s: %v", e.List, e.Err)
	}
	return fmt.Sprintf(
		"list %s, challenge %s: %v", e.List, e.Challenge, e.Err,
	)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// ListDefinition is the loaded form of one challenge list.
type ListDefinition struct {
	ID string

	// MaxActivePerParticipant bounds each participant's slot
	// queue for the list.
	MaxActivePerParticipant int

	// VisibleCount is how many pool entries are visible at a
	// time. Values at or above the pool size show the whole
	// pool.
	VisibleCount int

	// RotationInterval is the raw interval expression, kept
	// unparsed so testing mode can reinterpret it.
	RotationInterval string

	// Problems holds the configuration errors logged while
	// loading this list.
	Problems []error

	challenges []*challenge.Definition
	index      map[challenge.ID]int
}

// NewListDefinition creates an empty list definition with the
// default slot capacity of one and rotation disabled.
func NewListDefinition(id string) *ListDefinition {
	return &ListDefinition{
		ID:                      id,
		MaxActivePerParticipant: 1,
		RotationInterval:        "disabled",
		index:                   make(map[challenge.ID]int),
	}
}

// AddChallenge appends def to the pool. Returns a
// ConfigurationError wrapping ErrDuplicateChallenge if the id
// is already present.
func (l *ListDefinition) AddChallenge(
	def *challenge.Definition,
) error {
	if err := def.Validate(); err != nil {
		return &ConfigurationError{
			List: l.ID, Challenge: string(def.ID), Err: err,
		}
	}
	if _, exists := l.index[def.ID]; exists {
		return &ConfigurationError{
			List:      l.ID,
			Challenge: string(def.ID),
			Err:       ErrDuplicateChallenge,
		}
	}
	l.index[def.ID] = len(l.challenges)
	l.challenges = append(l.challenges, def)
	return nil
}

// Challenges returns the pool in catalog order.
func (l *ListDefinition) Challenges() []*challenge.Definition {
	out := make([]*challenge.Definition, len(l.challenges))
	copy(out, l.challenges)
	return out
}

// Challenge looks up a pool entry by id.
func (l *ListDefinition) Challenge(
	id challenge.ID,
) (*challenge.Definition, bool) {
	i, ok := l.index[id]
	if !ok {
		return nil, false
	}
	return l.challenges[i], true
}

// Len returns the pool size.
func (l *ListDefinition) Len() int { return len(l.challenges) }

// EffectiveVisible returns min(VisibleCount, pool size). A
// non-positive VisibleCount means the whole pool.
func (l *ListDefinition) EffectiveVisible() int {
	if l.VisibleCount <= 0 || l.VisibleCount > len(l.challenges) {
		return len(l.challenges)
	}
	return l.VisibleCount
}

// Catalog is a set of list definitions keyed by id. It is safe
// for concurrent use.
type Catalog struct {
	mu    sync.RWMutex
	lists map[string]*ListDefinition

	// Problems collects file-level and list-level
	// configuration errors reported while loading.
	Problems []error
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{lists: make(map[string]*ListDefinition)}
}

// Register adds a list. Returns an error wrapping
// ErrDuplicateList if the id is taken.
func (c *Catalog) Register(l *ListDefinition) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.lists[l.ID]; exists {
		return &ConfigurationError{List: l.ID, Err: ErrDuplicateList}
	}
	c.lists[l.ID] = l
	return nil
}

// Get retrieves a list by id.
func (c *Catalog) Get(id string) (*ListDefinition, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	l, exists := c.lists[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrListNotFound, id)
	}
	return l, nil
}

// List returns all lists sorted by id.
func (c *Catalog) List() []*ListDefinition {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*ListDefinition, 0, len(c.lists))
	for _, l := range c.lists {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID < out[j].ID
	})
	return out
}

// Count returns the number of registered lists.
func (c *Catalog) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.lists)
}

// AllProblems returns the catalog problems followed by every
// list's problems.
func (c *Catalog) AllProblems() []error {
	out := append([]error(nil), c.Problems...)
	for _, l := range c.List() {
		out = append(out, l.Problems...)
	}
	return out
}
