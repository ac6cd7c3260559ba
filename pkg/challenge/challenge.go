// Package challenge defines the catalog types shared by the
// rotation engine: challenge definitions, rewards, gameplay
// events, and the pluggable requirement capability.
package challenge

import (
	"encoding/json"
	"strconv"
	"time"
)

// ID uniquely identifies a challenge within its list.
type ID string

// Event is a gameplay notification routed to active progress.
// A nil *Event is the recheck event: progressions re-evaluate
// their current state without counting anything new.
type Event struct {
	// Type names the kind of gameplay action, e.g. "catch".
	Type string `json:"type"`

	// Participant is the id of the participant who acted.
	Participant string `json:"participant"`

	// Attributes carries the payload. The engine never
	// inspects it; requirement kinds read what they need.
	Attributes map[string]any `json:"attributes,omitempty"`

	// Time is when the action happened.
	Time time.Time `json:"time"`
}

// Attr returns the attribute stored under key.
func (e *Event) Attr(key string) (any, bool) {
	if e == nil || e.Attributes == nil {
		return nil, false
	}
	v, ok := e.Attributes[key]
	return v, ok
}

// Number returns the attribute stored under key as a float64.
// Integer, float, json.Number and numeric string values are
// accepted.
func (e *Event) Number(key string) (float64, bool) {
	v, ok := e.Attr(key)
	if !ok {
		return 0, false
	}
	return ToFloat(v)
}

// ToFloat converts a loosely typed numeric value.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Requirement is one condition of a challenge. Implementations
// are supplied by requirement kinds; the engine only calls
// through this interface.
type Requirement interface {
	// Name is the requirement's key inside its challenge.
	Name() string

	// Kind is the registered kind that built the requirement.
	Kind() string

	// Interested reports whether the event can advance a
	// progression of this requirement.
	Interested(ev *Event) bool

	// NewProgression returns fresh, unsatisfied state.
	NewProgression() Progression
}

// Progression is the mutable per-attempt state of a
// Requirement. Callers serialize access.
type Progression interface {
	// Update applies ev and reports whether the requirement
	// is now satisfied. A nil ev only re-evaluates.
	Update(ev *Event) bool

	// Satisfied reports the current state without mutation.
	Satisfied() bool

	// Describe renders the progress, e.g. "3/10".
	Describe() string

	// State serializes the progression for persistence.
	State() ([]byte, error)

	// Restore loads state produced by State.
	Restore(data []byte) error
}

// RequirementSpec is the declarative form of a Requirement as
// read from a catalog file.
type RequirementSpec struct {
	Name   string         `json:"name" validate:"required"`
	Kind   string         `json:"kind" validate:"required"`
	Params map[string]any `json:"params,omitempty"`
}

// Reward is an opaque reward handle. The engine queues and
// dispatches rewards without interpreting them.
type Reward struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}
