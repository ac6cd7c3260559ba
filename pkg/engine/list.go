package engine

import (
	"sync"
	"time"

	"digital.vasic.challengeboard/pkg/challenge"
	"digital.vasic.challengeboard/pkg/interval"
	"digital.vasic.challengeboard/pkg/logging"
	"digital.vasic.challengeboard/pkg/registry"
)

// List is the runtime form of a challenge list: its pool, the
// visible subset, and the rotation clock.
type List struct {
	e *Engine

	// slotMu serializes rotation against slot allocation in
	// this list.
	slotMu sync.Mutex

	mu           sync.RWMutex
	def          *registry.ListDefinition
	visible      []challenge.ID
	lastRotation time.Time
}

func newList(e *Engine, def *registry.ListDefinition) *List {
	return &List{e: e, def: def}
}

// ID returns the list id.
func (l *List) ID() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.def.ID
}

// Definition returns the list's current definition.
func (l *List) Definition() *registry.ListDefinition {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.def
}

// Pool returns every challenge in catalog order.
func (l *List) Pool() []*challenge.Definition {
	return l.Definition().Challenges()
}

// Challenge looks up a pool entry.
func (l *List) Challenge(id challenge.ID) (*challenge.Definition, bool) {
	return l.Definition().Challenge(id)
}

// Contains reports whether id is in the pool.
func (l *List) Contains(id challenge.ID) bool {
	_, ok := l.Challenge(id)
	return ok
}

// MaxActive returns the per-participant slot capacity.
func (l *List) MaxActive() int {
	n := l.Definition().MaxActivePerParticipant
	if n < 1 {
		return 1
	}
	return n
}

// IsVisible reports whether id is in the visible subset
// without checking for a due rotation.
func (l *List) IsVisible(id challenge.ID) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, v := range l.visible {
		if v == id {
			return true
		}
	}
	return false
}

// VisibleIDs returns the visible subset without checking for a
// due rotation.
func (l *List) VisibleIDs() []challenge.ID {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]challenge.ID(nil), l.visible...)
}

// Visible rotates the list if a rotation is due and returns
// the visible challenges.
func (l *List) Visible() []*challenge.Definition {
	l.CheckAndRotate(l.e.Mode())

	def := l.Definition()
	ids := l.VisibleIDs()
	out := make([]*challenge.Definition, 0, len(ids))
	for _, id := range ids {
		if c, ok := def.Challenge(id); ok {
			out = append(out, c)
		}
	}
	return out
}

// LastRotation returns when the visible subset last changed by
// rotation.
func (l *List) LastRotation() time.Time {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lastRotation
}

// RotationInterval parses the list's interval under mode. The
// second result is false when rotation is disabled or the
// expression is invalid.
func (l *List) RotationInterval(testing bool) (time.Duration, bool) {
	expr := l.Definition().RotationInterval
	if interval.IsDisabled(expr) {
		return 0, false
	}
	parse := interval.Parse
	if testing {
		parse = interval.ParseTesting
	}
	d, err := parse(expr)
	if err != nil {
		l.e.logger.Debug("rotation skipped",
			logging.ListField(l.ID()), logging.ErrorField(err),
		)
		return 0, false
	}
	return d, true
}

// TimeUntilRotation returns how long until the next automatic
// rotation, zero when one is due, or interval.Never when
// rotation is disabled or the interval is invalid.
func (l *List) TimeUntilRotation() time.Duration {
	d, ok := l.RotationInterval(l.e.testing.Load())
	if !ok {
		return interval.Never
	}
	remaining := l.LastRotation().Add(d).Sub(l.e.now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// TimeUntilRotationFormatted renders TimeUntilRotation for
// display.
func (l *List) TimeUntilRotationFormatted() string {
	return interval.Format(l.TimeUntilRotation())
}

// due reports whether the interval has elapsed.
func (l *List) due(mode Mode) bool {
	d, ok := l.RotationInterval(mode.Testing)
	if !ok {
		return false
	}
	return l.e.now().Sub(l.LastRotation()) >= d
}

// CheckAndRotate rotates the list when its interval has
// elapsed. It does nothing while mode.Reloading is set.
func (l *List) CheckAndRotate(mode Mode) bool {
	if mode.Reloading || !l.due(mode) {
		return false
	}

	l.slotMu.Lock()
	defer l.slotMu.Unlock()
	if !l.due(mode) {
		return false
	}
	l.rotateLocked("scheduled")
	return true
}

// ForceRotation rotates regardless of the interval and resets
// the rotation clock.
func (l *List) ForceRotation() {
	l.slotMu.Lock()
	defer l.slotMu.Unlock()
	l.rotateLocked("forced")
}

// rotate takes the slot lock and rotates.
func (l *List) rotate(trigger string) {
	l.slotMu.Lock()
	defer l.slotMu.Unlock()
	l.rotateLocked(trigger)
}

// restoreRotation draws a fresh subset around the attempts
// already restored. It never cancels them, whatever the policy.
func (l *List) restoreRotation() {
	l.slotMu.Lock()
	defer l.slotMu.Unlock()
	l.rotateWithLocked("restore", PreserveActive)
}

// resetToHead shows the first entries of the pool.
func (l *List) resetToHead() {
	def := l.Definition()
	pool := def.Challenges()
	n := def.EffectiveVisible()

	ids := make([]challenge.ID, 0, n)
	for _, c := range pool[:n] {
		ids = append(ids, c.ID)
	}

	l.mu.Lock()
	l.visible = ids
	l.lastRotation = l.e.now()
	l.mu.Unlock()
}

// setVisible installs a restored visible subset.
func (l *List) setVisible(ids []challenge.ID, last time.Time) {
	l.mu.Lock()
	l.visible = ids
	l.lastRotation = last
	l.mu.Unlock()
}
