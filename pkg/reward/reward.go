// Package reward routes challenge rewards to the handler
// registered for their type.
package reward

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"digital.vasic.challengeboard/pkg/challenge"
	"digital.vasic.challengeboard/pkg/logging"
)

// ErrNoHandler is returned for a reward type without a handler
// when no fallback is set.
var ErrNoHandler = errors.New("no handler for reward type")

// Handler applies rewards of one type to a participant.
type Handler interface {
	Apply(participant string, r challenge.Reward) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(participant string, r challenge.Reward) error

// Apply calls f.
func (f HandlerFunc) Apply(participant string, r challenge.Reward) error {
	return f(participant, r)
}

// Registry maps reward types to handlers. It satisfies the
// engine's reward dispatcher.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	fallback Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds h for rewardType.
func (r *Registry) Register(rewardType string, h Handler) error {
	if h == nil {
		return fmt.Errorf("handler for %q cannot be nil", rewardType)
	}
	if rewardType == "" {
		return errors.New("reward type cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[rewardType]; exists {
		return fmt.Errorf("reward type %q already registered", rewardType)
	}
	r.handlers[rewardType] = h
	return nil
}

// SetFallback sets the handler used for unregistered types.
func (r *Registry) SetFallback(h Handler) {
	r.mu.Lock()
	r.fallback = h
	r.mu.Unlock()
}

// Get returns the handler registered for rewardType.
func (r *Registry) Get(rewardType string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[rewardType]
	return h, ok
}

// Types returns the registered reward types, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Count returns the number of registered types.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}

// Dispatch applies rw with its type's handler, or with the
// fallback.
func (r *Registry) Dispatch(participant string, rw challenge.Reward) error {
	r.mu.RLock()
	h, ok := r.handlers[rw.Type]
	if !ok {
		h = r.fallback
	}
	r.mu.RUnlock()

	if h == nil {
		return fmt.Errorf("%w: %s", ErrNoHandler, rw.Type)
	}
	if err := h.Apply(participant, rw); err != nil {
		return fmt.Errorf("apply %s reward: %w", rw.Type, err)
	}
	return nil
}

// Log returns a handler that only logs rewards.
func Log(logger logging.Logger) Handler {
	return HandlerFunc(func(participant string, rw challenge.Reward) error {
		logger.Info("reward granted",
			logging.ParticipantField(participant),
			logging.StringField("type", rw.Type),
			logging.LogField("data", rw.Data),
		)
		return nil
	})
}
