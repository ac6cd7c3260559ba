package engine

import (
	"fmt"
	"strconv"

	"digital.vasic.challengeboard/pkg/challenge"
	"digital.vasic.challengeboard/pkg/interval"
	"digital.vasic.challengeboard/pkg/logging"
)

// ForceRotate rotates list now, whatever its interval.
func (e *Engine) ForceRotate(list string) error {
	l, err := e.List(list)
	if err != nil {
		return err
	}
	l.ForceRotation()
	return nil
}

// RotateAll force-rotates every list whose rotation is not
// disabled and returns how many rotated.
func (e *Engine) RotateAll() int {
	n := 0
	for _, l := range e.Lists() {
		if interval.IsDisabled(l.Definition().RotationInterval) {
			continue
		}
		l.ForceRotation()
		n++
	}
	return n
}

// CheckRotations runs the rotation check on every list and
// returns how many rotated.
func (e *Engine) CheckRotations() int {
	mode := e.Mode()
	n := 0
	for _, l := range e.Lists() {
		if l.CheckAndRotate(mode) {
			n++
		}
	}
	return n
}

// RefreshProfiles is the periodic profile pass: expired
// cooldowns and attempts are cleared, stale replacement
// prompts are swept, and online participants receive newly
// eligible always-active challenges.
func (e *Engine) RefreshProfiles() {
	reset, expired := 0, 0
	for _, p := range e.Profiles() {
		reset += p.RefreshRepeatable()
		expired += p.expire()
		if e.presence.Online(p.id) {
			p.AddUnrestrictedChallenges()
		}
	}
	swept := e.negotiator.Sweep()
	if reset+expired+swept > 0 {
		e.logger.Debug("profiles refreshed",
			logging.IntField("cooldowns_reset", reset),
			logging.IntField("expired", expired),
			logging.IntField("prompts_swept", swept),
		)
	}
}

// ForceComplete completes one of the participant's attempts,
// chosen by challenge id or by its 1-based position in
// Profile.AllActive.
func (e *Engine) ForceComplete(participant, ref string) (*Progress, error) {
	p, ok := e.Profile(participant)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotActive, ref)
	}

	active := p.AllActive()
	var target *Progress
	if n, err := strconv.Atoi(ref); err == nil {
		if n >= 1 && n <= len(active) {
			target = active[n-1]
		}
	} else {
		for _, g := range active {
			if g.ID() == challenge.ID(ref) {
				target = g
				break
			}
		}
	}
	if target == nil || !target.Complete() {
		return nil, fmt.Errorf("%w: %s", ErrNotActive, ref)
	}
	return target, nil
}

// Reset clears the participant's attempts, history, pending
// rewards and replacement prompt, then grants always-active
// challenges afresh.
func (e *Engine) Reset(participant string) {
	p := e.GetOrCreateProfile(participant)

	p.mu.Lock()
	for _, g := range p.allActiveLocked() {
		p.removeLocked(g, ReasonReset)
	}
	p.completed = nil
	p.pending = nil
	p.mu.Unlock()

	e.negotiator.Discard(participant)
	e.emit(Event{Kind: EventReset, Participant: participant})
	e.logger.Info("profile reset", logging.ParticipantField(participant))

	p.AddUnrestrictedChallenges()
}

// Join prepares the participant's session: rewards queued while
// they were away are delivered and always-active challenges are
// granted.
func (e *Engine) Join(participant string) *Profile {
	p := e.GetOrCreateProfile(participant)
	p.dispense()
	p.AddUnrestrictedChallenges()
	return p
}
