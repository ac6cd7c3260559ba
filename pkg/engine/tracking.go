package engine

import (
	"digital.vasic.challengeboard/pkg/challenge"
	"digital.vasic.challengeboard/pkg/logging"
)

// Progress routes ev to every active attempt of the
// participant that is interested in it and returns how many
// attempts it completed. Attempts past their maximum duration
// are removed instead of advanced. Unknown participants are
// ignored. ev is not modified; an unset time is stamped on a
// copy.
func (e *Engine) Progress(participant string, ev *challenge.Event) int {
	p, ok := e.Profile(participant)
	if !ok {
		return 0
	}
	if ev != nil && ev.Time.IsZero() {
		stamped := *ev
		stamped.Time = e.now()
		ev = &stamped
	}

	now := e.now()
	completed := 0

	p.mu.Lock()
	for _, g := range p.allActiveLocked() {
		if g.expired(now) {
			p.removeLocked(g, ReasonExpired)
			continue
		}
		if !g.Interested(ev) {
			continue
		}
		if g.apply(ev) && p.completeLocked(g) {
			completed++
		}
	}
	p.mu.Unlock()

	if completed > 0 {
		e.logger.Debug("event completed challenges",
			logging.ParticipantField(participant),
			logging.IntField("completed", completed),
		)
		p.dispense()
	}
	return completed
}

func (p *Profile) allActiveLocked() []*Progress {
	var out []*Progress
	for _, slots := range p.active {
		out = append(out, slots...)
	}
	return out
}
