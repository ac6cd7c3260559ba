package engine

import (
	"fmt"
	"time"

	"digital.vasic.challengeboard/pkg/challenge"
	"digital.vasic.challengeboard/pkg/logging"
	"digital.vasic.challengeboard/pkg/negotiation"
)

// SelectStatus says what a selection did.
type SelectStatus int

const (
	// SelectStarted means the challenge now occupies a slot.
	SelectStarted SelectStatus = iota

	// SelectPending means the slots are held by selected
	// challenges and the participant must confirm the
	// replacement with Token.
	SelectPending
)

// String returns the lowercase status name.
func (s SelectStatus) String() string {
	if s == SelectPending {
		return "pending"
	}
	return "started"
}

// SelectResult is the outcome of Select.
type SelectResult struct {
	Status    SelectStatus
	Progress  *Progress
	Token     string
	Replacing challenge.ID
	ExpiresAt time.Time
}

// Select starts a manual challenge for the participant. The
// challenge must be visible, permitted, and not already
// completed or in progress. When every slot in the list holds
// another selected challenge, a replacement negotiation is
// opened for the oldest one instead.
func (e *Engine) Select(
	participant, list string, id challenge.ID,
) (SelectResult, error) {
	l, err := e.List(list)
	if err != nil {
		return SelectResult{}, err
	}
	def, ok := l.Challenge(id)
	if !ok {
		return SelectResult{}, fmt.Errorf(
			"%w: %s/%s", ErrUnknownChallenge, list, id,
		)
	}
	if def.AlwaysActive() {
		return SelectResult{}, fmt.Errorf(
			"%w: %s/%s", ErrAutomaticChallenge, list, id,
		)
	}
	if def.Permission != "" && !e.perms.Allowed(participant, def.Permission) {
		return SelectResult{}, fmt.Errorf(
			"%w: %s", ErrPermissionDenied, def.Permission,
		)
	}
	l.CheckAndRotate(e.Mode())
	if !l.IsVisible(id) {
		return SelectResult{}, fmt.Errorf("%w: %s/%s", ErrNotVisible, list, id)
	}

	p := e.GetOrCreateProfile(participant)

	l.slotMu.Lock()
	p.mu.Lock()
	res, err := e.selectLocked(p, l, def)
	p.mu.Unlock()
	l.slotMu.Unlock()
	return res, err
}

func (e *Engine) selectLocked(
	p *Profile, l *List, def *challenge.Definition,
) (SelectResult, error) {
	listID := l.ID()
	if c, done := p.completionLocked(listID, def.ID); done {
		if !def.CooldownElapsed(c.CompletedAt, e.now()) {
			return SelectResult{}, fmt.Errorf(
				"%w: %s/%s", ErrAlreadyCompleted, listID, def.ID,
			)
		}
		p.forgetLocked(listID, def.ID)
	}

	slots := p.active[listID]
	if slotIndex(slots, def.ID) >= 0 {
		return SelectResult{}, fmt.Errorf(
			"%w: %s/%s", ErrAlreadyInProgress, listID, def.ID,
		)
	}
	if len(slots) >= l.MaxActive() && lastAutomatic(slots) < 0 {
		return e.openReplacement(p, listID, slots[0].ID(), def.ID), nil
	}

	g, err := p.addLocked(l, def.ID)
	if err != nil {
		return SelectResult{}, err
	}
	return SelectResult{Status: SelectStarted, Progress: g}, nil
}

func (e *Engine) openReplacement(
	p *Profile, list string, old, candidate challenge.ID,
) SelectResult {
	participant := p.id
	rec := e.negotiator.Open(negotiation.Request{
		Participant: participant,
		List:        list,
		Candidate:   string(candidate),
		Replacing:   string(old),
		OnConfirm: func() error {
			return e.replace(participant, list, old, candidate)
		},
	})

	e.notify(participant, Notice{
		Kind:      NoticeReplacePrompt,
		List:      list,
		Challenge: candidate,
		Replacing: old,
		Token:     rec.Token,
	})
	e.emit(Event{
		Kind:        EventReplacementPending,
		List:        list,
		Challenge:   candidate,
		Participant: participant,
		Detail:      string(old),
	})
	return SelectResult{
		Status:    SelectPending,
		Token:     rec.Token,
		Replacing: old,
		ExpiresAt: rec.CreatedAt.Add(e.negotiator.Timeout()),
	}
}

// replace swaps old for candidate. The candidate is checked
// against the pool before anything is removed.
func (e *Engine) replace(
	participant, list string, old, candidate challenge.ID,
) error {
	l, err := e.List(list)
	if err != nil {
		return err
	}
	p := e.GetOrCreateProfile(participant)

	l.slotMu.Lock()
	defer l.slotMu.Unlock()
	p.mu.Lock()
	defer p.mu.Unlock()

	if !l.Contains(candidate) {
		e.notify(participant, Notice{
			Kind: NoticeNoLongerAvailable, List: list, Challenge: candidate,
		})
		return fmt.Errorf("%w: %s/%s", ErrNoLongerAvailable, list, candidate)
	}
	if slotIndex(p.active[list], candidate) >= 0 {
		return fmt.Errorf("%w: %s/%s", ErrAlreadyInProgress, list, candidate)
	}
	if i := slotIndex(p.active[list], old); i >= 0 {
		p.removeLocked(p.active[list][i], ReasonReplaced)
	}
	_, err = p.addLocked(l, candidate)
	return err
}

// ConfirmReplacement applies the participant's pending
// replacement if token matches and it has not expired. Stale or
// unknown tokens are ignored and reported through the outcome
// only.
func (e *Engine) ConfirmReplacement(
	participant, token string,
) (negotiation.Outcome, error) {
	outcome, err := e.negotiator.Confirm(participant, token)
	e.resolved(participant, outcome, err)
	return outcome, err
}

// CancelReplacement drops the participant's pending
// replacement without changing any slot.
func (e *Engine) CancelReplacement(
	participant, token string,
) negotiation.Outcome {
	outcome := e.negotiator.Cancel(participant, token)
	e.resolved(participant, outcome, nil)
	return outcome
}

func (e *Engine) resolved(
	participant string, outcome negotiation.Outcome, err error,
) {
	if outcome == negotiation.None {
		return
	}
	e.metrics.RecordReplacement(outcome.String())
	e.emit(Event{
		Kind:        EventReplacementResolved,
		Participant: participant,
		Detail:      outcome.String(),
	})
	if err != nil {
		e.logger.Warn("replacement failed",
			logging.ParticipantField(participant),
			logging.ErrorField(err),
		)
	}
}

// Abandon removes the participant's attempt at id in list.
func (e *Engine) Abandon(participant, list string, id challenge.ID) error {
	p, ok := e.Profile(participant)
	if !ok {
		return fmt.Errorf("%w: %s/%s", ErrNotActive, list, id)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	i := slotIndex(p.active[list], id)
	if i < 0 {
		return fmt.Errorf("%w: %s/%s", ErrNotActive, list, id)
	}
	p.removeLocked(p.active[list][i], ReasonAbandoned)
	return nil
}
