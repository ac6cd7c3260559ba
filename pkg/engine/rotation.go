package engine

import (
	"digital.vasic.challengeboard/pkg/challenge"
	"digital.vasic.challengeboard/pkg/logging"
)

// rotateLocked draws a new visible subset under the engine's
// policy. The caller holds slotMu.
func (l *List) rotateLocked(trigger string) {
	l.rotateWithLocked(trigger, l.e.policy)
}

func (l *List) rotateWithLocked(trigger string, policy Policy) {
	e := l.e
	def := l.Definition()
	pool := def.Challenges()
	n := def.EffectiveVisible()

	if policy == CancelAndReshuffle {
		l.cancelAllLocked(ReasonRotated)
	}

	var next []challenge.ID
	switch {
	case n >= len(pool):
		next = make([]challenge.ID, 0, len(pool))
		for _, c := range pool {
			next = append(next, c.ID)
		}
	case policy == PreserveActive:
		next = l.preserving(pool, n)
	default:
		next = l.draw(pool, n, nil)
	}

	l.mu.Lock()
	l.visible = next
	l.lastRotation = e.now()
	l.mu.Unlock()

	e.metrics.RecordRotation(def.ID, policy.String())
	e.emit(Event{Kind: EventRotated, List: def.ID, Detail: trigger})
	e.logger.Info("list rotated",
		logging.ListField(def.ID),
		logging.StringField("trigger", trigger),
		logging.StringField("policy", policy.String()),
		logging.IntField("visible", len(next)),
	)
}

// preserving keeps every challenge someone is working on, in
// pool order and capped at n, and fills the rest randomly.
func (l *List) preserving(
	pool []*challenge.Definition, n int,
) []challenge.ID {
	active := l.activeIDs()

	next := make([]challenge.ID, 0, n)
	kept := make(map[challenge.ID]bool, len(active))
	for _, c := range pool {
		if len(next) == n {
			break
		}
		if active[c.ID] {
			next = append(next, c.ID)
			kept[c.ID] = true
		}
	}
	if len(kept) < len(active) {
		l.e.logger.Warn("more active challenges than visible slots",
			logging.ListField(l.ID()),
			logging.IntField("active", len(active)),
			logging.IntField("visible", n),
		)
	}
	return append(next, l.draw(pool, n-len(next), kept)...)
}

// draw shuffles the pool entries not in skip and returns the
// first n ids.
func (l *List) draw(
	pool []*challenge.Definition, n int, skip map[challenge.ID]bool,
) []challenge.ID {
	rest := make([]challenge.ID, 0, len(pool))
	for _, c := range pool {
		if !skip[c.ID] {
			rest = append(rest, c.ID)
		}
	}
	l.e.shuffle(len(rest), func(i, j int) {
		rest[i], rest[j] = rest[j], rest[i]
	})
	if n > len(rest) {
		n = len(rest)
	}
	if n < 0 {
		n = 0
	}
	return rest[:n]
}

// activeIDs collects the challenges with an active attempt in
// this list across every profile.
func (l *List) activeIDs() map[challenge.ID]bool {
	id := l.ID()
	out := make(map[challenge.ID]bool)
	for _, p := range l.e.Profiles() {
		p.mu.RLock()
		for _, g := range p.active[id] {
			out[g.ID()] = true
		}
		p.mu.RUnlock()
	}
	return out
}

// cancelAllLocked removes every participant's attempts in this
// list. The caller holds slotMu.
func (l *List) cancelAllLocked(reason string) int {
	id := l.ID()
	cancelled := 0
	for _, p := range l.e.Profiles() {
		p.mu.Lock()
		for _, g := range append([]*Progress(nil), p.active[id]...) {
			if p.removeLocked(g, reason) {
				cancelled++
			}
		}
		p.mu.Unlock()
	}
	return cancelled
}
