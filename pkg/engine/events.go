package engine

import (
	"time"

	"digital.vasic.challengeboard/pkg/challenge"
)

// EventKind identifies an engine event.
type EventKind string

const (
	EventRotated             EventKind = "rotated"
	EventStarted             EventKind = "started"
	EventCompleted           EventKind = "completed"
	EventCancelled           EventKind = "cancelled"
	EventExpired             EventKind = "expired"
	EventCooldownReset       EventKind = "cooldown_reset"
	EventReplacementPending  EventKind = "replacement_pending"
	EventReplacementResolved EventKind = "replacement_resolved"
	EventRewardFailed        EventKind = "reward_failed"
	EventReset               EventKind = "reset"
	EventReloaded            EventKind = "reloaded"
)

// Event describes something the engine did. Detail carries a
// short reason or outcome, e.g. "evicted" or "confirmed".
type Event struct {
	Kind        EventKind    `json:"kind"`
	Time        time.Time    `json:"time"`
	List        string       `json:"list,omitempty"`
	Challenge   challenge.ID `json:"challenge,omitempty"`
	Participant string       `json:"participant,omitempty"`
	Detail      string       `json:"detail,omitempty"`
}

// Observer receives engine events. Observe is called
// synchronously, possibly while engine locks are held, so it
// must not call back into the engine.
type Observer interface {
	Observe(ev Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ev Event)

// Observe calls f(ev).
func (f ObserverFunc) Observe(ev Event) { f(ev) }

// Cancellation reasons reported in Event.Detail and metrics.
const (
	ReasonEvicted   = "evicted"
	ReasonRotated   = "rotated"
	ReasonExpired   = "expired"
	ReasonAbandoned = "abandoned"
	ReasonReplaced  = "replaced"
	ReasonReset     = "reset"
	ReasonRemoved   = "removed"
)
