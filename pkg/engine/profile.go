package engine

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"digital.vasic.challengeboard/pkg/challenge"
	"digital.vasic.challengeboard/pkg/logging"
)

// CompletedChallenge is one entry of a participant's
// completion history.
type CompletedChallenge struct {
	List        string       `json:"list"`
	Challenge   challenge.ID `json:"challenge"`
	CompletedAt time.Time    `json:"completed_at"`
}

// Profile is one participant's state: a bounded slot queue per
// list, the completion history and undelivered rewards.
type Profile struct {
	id string
	e  *Engine

	mu        sync.RWMutex
	active    map[string][]*Progress
	completed []CompletedChallenge
	pending   []challenge.Reward

	checking atomic.Bool
}

func newProfile(e *Engine, id string) *Profile {
	return &Profile{
		id:     id,
		e:      e,
		active: make(map[string][]*Progress),
	}
}

// ID returns the participant id.
func (p *Profile) ID() string { return p.id }

// Active returns the participant's attempts in list, oldest
// first.
func (p *Profile) Active(list string) []*Progress {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]*Progress(nil), p.active[list]...)
}

// AllActive returns every attempt ordered by list id, then
// slot order.
func (p *Profile) AllActive() []*Progress {
	p.mu.RLock()
	defer p.mu.RUnlock()

	lists := make([]string, 0, len(p.active))
	for id := range p.active {
		lists = append(lists, id)
	}
	sort.Strings(lists)

	var out []*Progress
	for _, id := range lists {
		out = append(out, p.active[id]...)
	}
	return out
}

// Completed returns the completion history, oldest first.
func (p *Profile) Completed() []CompletedChallenge {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]CompletedChallenge(nil), p.completed...)
}

// HasCompleted reports whether id in list is in the history.
func (p *Profile) HasCompleted(list string, id challenge.ID) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.completionLocked(list, id)
	return ok
}

// InProgress reports whether id occupies a slot in list.
func (p *Profile) InProgress(list string, id challenge.ID) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slotIndex(p.active[list], id) >= 0
}

// PendingRewards returns the rewards not yet dispatched.
func (p *Profile) PendingRewards() []challenge.Reward {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]challenge.Reward(nil), p.pending...)
}

func slotIndex(slots []*Progress, id challenge.ID) int {
	for i, g := range slots {
		if g.ID() == id {
			return i
		}
	}
	return -1
}

func (p *Profile) completionLocked(
	list string, id challenge.ID,
) (CompletedChallenge, bool) {
	for _, c := range p.completed {
		if c.List == list && c.Challenge == id {
			return c, true
		}
	}
	return CompletedChallenge{}, false
}

func (p *Profile) forgetLocked(list string, id challenge.ID) {
	kept := p.completed[:0]
	for _, c := range p.completed {
		if c.List != list || c.Challenge != id {
			kept = append(kept, c)
		}
	}
	p.completed = kept
}

// AddActiveChallenge puts id from list into one of the
// participant's slots, evicting an older attempt when the
// list's capacity is reached.
func (p *Profile) AddActiveChallenge(
	list string, id challenge.ID,
) (*Progress, error) {
	l, err := p.e.List(list)
	if err != nil {
		return nil, err
	}

	l.slotMu.Lock()
	defer l.slotMu.Unlock()
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.addLocked(l, id)
}

// addLocked installs a new attempt. The caller holds l.slotMu
// and p.mu.
func (p *Profile) addLocked(l *List, id challenge.ID) (*Progress, error) {
	e := p.e
	listID := l.ID()

	def, ok := l.Challenge(id)
	if !ok {
		e.notify(p.id, Notice{
			Kind: NoticeNoLongerAvailable, List: listID, Challenge: id,
		})
		return nil, fmt.Errorf("%w: %s/%s", ErrNoLongerAvailable, listID, id)
	}

	slots := p.active[listID]
	if slotIndex(slots, id) >= 0 {
		return nil, fmt.Errorf("%w: %s/%s", ErrAlreadyInProgress, listID, id)
	}

	capacity := l.MaxActive()
	if def.AlwaysActive() && len(slots) >= capacity && hasManual(slots) {
		return nil, fmt.Errorf(
			"%w: %s/%s", ErrSlotsHeldBySelection, listID, id,
		)
	}

	for len(p.active[listID]) >= capacity {
		slots = p.active[listID]
		victim := 0
		if !def.AlwaysActive() {
			if i := lastAutomatic(slots); i >= 0 {
				victim = i
			}
		}
		p.removeLocked(slots[victim], ReasonEvicted)
	}

	g := newProgress(p, l, def, e.now())
	p.active[listID] = append(p.active[listID], g)

	e.emit(Event{
		Kind: EventStarted, List: listID, Challenge: id, Participant: p.id,
	})
	e.logger.Debug("challenge started",
		logging.ParticipantField(p.id),
		logging.ListField(listID),
		logging.ChallengeField(string(id)),
	)
	return g, nil
}

func hasManual(slots []*Progress) bool {
	for _, g := range slots {
		if !g.def.AlwaysActive() {
			return true
		}
	}
	return false
}

// lastAutomatic returns the most recently enqueued always-active
// slot, or -1.
func lastAutomatic(slots []*Progress) int {
	for i := len(slots) - 1; i >= 0; i-- {
		if slots[i].def.AlwaysActive() {
			return i
		}
	}
	return -1
}

// removeLocked drops g from its slot queue and marks it
// cancelled. It reports false if g was no longer active.
func (p *Profile) removeLocked(g *Progress, reason string) bool {
	if !g.state.CompareAndSwap(stateActive, stateCancelled) {
		return false
	}
	p.detachLocked(g)

	e := p.e
	listID := g.List()
	e.metrics.RecordCancellation(listID, reason)
	e.emit(Event{
		Kind:        EventCancelled,
		List:        listID,
		Challenge:   g.ID(),
		Participant: p.id,
		Detail:      reason,
	})
	switch reason {
	case ReasonExpired:
		e.notify(p.id, Notice{
			Kind: NoticeExpired, List: listID, Challenge: g.ID(),
		})
	case ReasonEvicted, ReasonRotated, ReasonReset:
		e.notify(p.id, Notice{
			Kind: NoticeCancelled, List: listID, Challenge: g.ID(),
		})
	}
	return true
}

func (p *Profile) detachLocked(g *Progress) {
	listID := g.List()
	slots := p.active[listID]
	for i, s := range slots {
		if s == g {
			slots = append(slots[:i:i], slots[i+1:]...)
			break
		}
	}
	if len(slots) == 0 {
		delete(p.active, listID)
		return
	}
	p.active[listID] = slots
}

// completeLocked finishes g: it leaves its slot, its rewards
// are queued, and the history gains one entry per list and
// challenge. It reports false if g was not active.
func (p *Profile) completeLocked(g *Progress) bool {
	if !g.state.CompareAndSwap(stateActive, stateCompleted) {
		return false
	}
	p.detachLocked(g)

	e := p.e
	now := e.now()
	listID := g.List()
	p.pending = append(p.pending, g.def.Rewards...)
	if _, done := p.completionLocked(listID, g.ID()); !done {
		p.completed = append(p.completed, CompletedChallenge{
			List: listID, Challenge: g.ID(), CompletedAt: now,
		})
	}

	e.metrics.RecordCompletion(listID, string(g.ID()), now.Sub(g.started))
	e.emit(Event{
		Kind:        EventCompleted,
		List:        listID,
		Challenge:   g.ID(),
		Participant: p.id,
	})
	e.notify(p.id, Notice{
		Kind: NoticeCompleted, List: listID, Challenge: g.ID(),
	})
	e.logger.Info("challenge completed",
		logging.ParticipantField(p.id),
		logging.ListField(listID),
		logging.ChallengeField(string(g.ID())),
		logging.IntField("rewards", len(g.def.Rewards)),
	)
	return true
}

// dispense delivers queued rewards if the participant is
// online. Each reward is dispatched on its own; a failure is
// logged and the reward dropped.
func (p *Profile) dispense() int {
	e := p.e
	if !e.presence.Online(p.id) {
		return 0
	}

	p.mu.Lock()
	queue := p.pending
	p.pending = nil
	p.mu.Unlock()

	delivered := 0
	for _, r := range queue {
		if err := p.dispatch(r); err != nil {
			e.metrics.RecordRewardFailure(r.Type)
			e.emit(Event{
				Kind: EventRewardFailed, Participant: p.id, Detail: r.Type,
			})
			e.logger.Warn("reward dispatch failed",
				logging.ParticipantField(p.id),
				logging.StringField("reward", r.Type),
				logging.ErrorField(err),
			)
			continue
		}
		delivered++
	}
	return delivered
}

func (p *Profile) dispatch(r challenge.Reward) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("reward %s panicked: %v", r.Type, rec)
		}
	}()
	return p.e.rewards.Dispatch(p.id, r)
}

// CheckCompletion completes every always-active attempt in list
// whose requirements are met, rechecking those not yet flagged.
// A call made while another is running for the same profile
// returns immediately.
func (p *Profile) CheckCompletion(list string) int {
	if !p.checking.CompareAndSwap(false, true) {
		return 0
	}
	defer p.checking.Store(false)

	p.mu.Lock()
	completed := 0
	for _, g := range append([]*Progress(nil), p.active[list]...) {
		if !g.def.AlwaysActive() {
			continue
		}
		if g.Completed() || g.apply(nil) {
			if p.completeLocked(g) {
				completed++
			}
		}
	}
	p.mu.Unlock()

	if completed > 0 {
		p.dispense()
	}
	return completed
}

// AddUnrestrictedChallenges grants every always-active
// challenge the participant may hold: those neither completed
// nor in progress, and repeatable ones whose cooldown has
// elapsed. Unlike AddActiveChallenge it never evicts: a list
// whose slots are full is left as is, so an existing attempt
// is not displaced by another always-active one.
func (p *Profile) AddUnrestrictedChallenges() int {
	e := p.e
	added := 0
	for _, l := range e.Lists() {
		listID := l.ID()

		l.slotMu.Lock()
		p.mu.Lock()
		for _, def := range l.Pool() {
			if len(p.active[listID]) >= l.MaxActive() {
				break
			}
			if !def.AlwaysActive() {
				continue
			}
			if def.Permission != "" &&
				!e.perms.Allowed(p.id, def.Permission) {
				continue
			}
			if slotIndex(p.active[listID], def.ID) >= 0 {
				continue
			}
			if c, done := p.completionLocked(listID, def.ID); done {
				if !def.CooldownElapsed(c.CompletedAt, e.now()) {
					continue
				}
				p.forgetLocked(listID, def.ID)
			}
			if _, err := p.addLocked(l, def.ID); err != nil {
				e.logger.Debug("always-active challenge not added",
					logging.ParticipantField(p.id),
					logging.ListField(listID),
					logging.ErrorField(err),
				)
				continue
			}
			added++
		}
		p.mu.Unlock()
		l.slotMu.Unlock()

		p.CheckCompletion(listID)
	}
	return added
}

// RefreshRepeatable drops history entries of repeatable
// challenges whose cooldown has elapsed, and returns how many
// were dropped.
func (p *Profile) RefreshRepeatable() int {
	e := p.e
	now := e.now()
	lists := make(map[string]*List)
	for _, l := range e.Lists() {
		lists[l.ID()] = l
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	kept := p.completed[:0]
	dropped := 0
	for _, c := range p.completed {
		if l, ok := lists[c.List]; ok {
			def, found := l.Challenge(c.Challenge)
			if found && def.CooldownElapsed(c.CompletedAt, now) {
				dropped++
				e.emit(Event{
					Kind:        EventCooldownReset,
					List:        c.List,
					Challenge:   c.Challenge,
					Participant: p.id,
				})
				continue
			}
		}
		kept = append(kept, c)
	}
	p.completed = kept
	return dropped
}

// expire removes attempts that outlived their maximum
// duration.
func (p *Profile) expire() int {
	now := p.e.now()

	p.mu.Lock()
	defer p.mu.Unlock()

	expired := 0
	for _, slots := range p.active {
		for _, g := range append([]*Progress(nil), slots...) {
			if g.expired(now) && p.removeLocked(g, ReasonExpired) {
				expired++
			}
		}
	}
	return expired
}
