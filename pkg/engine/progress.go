package engine

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"digital.vasic.challengeboard/pkg/challenge"
	"digital.vasic.challengeboard/pkg/interval"
	"digital.vasic.challengeboard/pkg/store"
)

const (
	stateActive int32 = iota
	stateCompleted
	stateCancelled
)

// RequirementStatus is a read-only view of one requirement of
// an attempt.
type RequirementStatus struct {
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	Progress  string `json:"progress"`
	Satisfied bool   `json:"satisfied"`
}

type progressEntry struct {
	req  challenge.Requirement
	prog challenge.Progression
}

// Progress is one participant's live attempt at one challenge.
// It belongs to its Profile and refers back to its List and
// Definition without owning them.
type Progress struct {
	profile *Profile
	list    *List
	def     *challenge.Definition
	started time.Time

	mu      sync.Mutex
	entries []progressEntry

	state atomic.Int32
}

// BuildProgress creates a fresh attempt at def for p in l. The
// attempt is not installed in the profile.
func (l *List) BuildProgress(
	p *Profile, def *challenge.Definition,
) *Progress {
	return newProgress(p, l, def, l.e.now())
}

func newProgress(
	p *Profile, l *List, def *challenge.Definition, started time.Time,
) *Progress {
	g := &Progress{profile: p, list: l, def: def, started: started}
	g.entries = make([]progressEntry, 0, len(def.Requirements))
	for _, r := range def.Requirements {
		g.entries = append(g.entries, progressEntry{
			req: r, prog: r.NewProgression(),
		})
	}
	return g
}

// ID returns the challenge id.
func (g *Progress) ID() challenge.ID { return g.def.ID }

// Challenge returns the challenge definition.
func (g *Progress) Challenge() *challenge.Definition { return g.def }

// List returns the id of the owning list.
func (g *Progress) List() string { return g.list.ID() }

// Participant returns the owning participant's id.
func (g *Progress) Participant() string { return g.profile.id }

// StartedAt returns when the attempt began.
func (g *Progress) StartedAt() time.Time { return g.started }

// Active reports whether the attempt is still live.
func (g *Progress) Active() bool {
	return g.state.Load() == stateActive
}

// Interested reports whether ev can advance any requirement. A
// nil event is a recheck and interests every attempt.
func (g *Progress) Interested(ev *challenge.Event) bool {
	if ev == nil {
		return true
	}
	for _, e := range g.entries {
		if e.req.Interested(ev) {
			return true
		}
	}
	return false
}

// apply feeds ev to every interested requirement, or rechecks
// all of them when ev is nil, and reports completion.
func (g *Progress) apply(ev *challenge.Event) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	done := true
	for _, e := range g.entries {
		if ev == nil || e.req.Interested(ev) {
			e.prog.Update(ev)
		}
		if !e.prog.Satisfied() {
			done = false
		}
	}
	return done
}

// Completed reports whether every requirement is satisfied.
func (g *Progress) Completed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, e := range g.entries {
		if !e.prog.Satisfied() {
			return false
		}
	}
	return true
}

// Complete finishes the attempt regardless of its requirements.
// It reports false if the attempt was already completed or
// removed; rewards are never granted twice.
func (g *Progress) Complete() bool {
	p := g.profile
	p.mu.Lock()
	done := p.completeLocked(g)
	p.mu.Unlock()
	if done {
		p.dispense()
	}
	return done
}

// TimeRemaining returns how long the attempt may still run, or
// interval.Never if it is unlimited.
func (g *Progress) TimeRemaining() time.Duration {
	if g.def.MaxDuration <= 0 {
		return interval.Never
	}
	left := g.started.Add(g.def.MaxDuration).Sub(g.list.e.now())
	if left < 0 {
		return 0
	}
	return left
}

func (g *Progress) expired(now time.Time) bool {
	return g.def.MaxDuration > 0 &&
		now.Sub(g.started) >= g.def.MaxDuration
}

// Describe returns the state of every requirement in
// definition order.
func (g *Progress) Describe() []RequirementStatus {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]RequirementStatus, 0, len(g.entries))
	for _, e := range g.entries {
		out = append(out, RequirementStatus{
			Name:      e.req.Name(),
			Kind:      e.req.Kind(),
			Progress:  e.prog.Describe(),
			Satisfied: e.prog.Satisfied(),
		})
	}
	return out
}

func (g *Progress) states() (map[string]json.RawMessage, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make(map[string]json.RawMessage, len(g.entries))
	for _, e := range g.entries {
		data, err := e.prog.State()
		if err != nil {
			return nil, fmt.Errorf(
				"requirement %s: %w", e.req.Name(), err,
			)
		}
		out[e.req.Name()] = data
	}
	return out, nil
}

func (g *Progress) record() (store.ProgressRecord, error) {
	states, err := g.states()
	if err != nil {
		return store.ProgressRecord{}, fmt.Errorf(
			"challenge %s: %w", g.def.ID, err,
		)
	}
	return store.ProgressRecord{
		List:         g.List(),
		Challenge:    string(g.def.ID),
		StartedAt:    g.started,
		Requirements: states,
	}, nil
}

// restoreStates loads saved requirement states by name. Names
// the definition no longer has are ignored.
func (g *Progress) restoreStates(states map[string]json.RawMessage) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, e := range g.entries {
		data, ok := states[e.req.Name()]
		if !ok {
			continue
		}
		if err := e.prog.Restore(data); err != nil {
			return fmt.Errorf("requirement %s: %w", e.req.Name(), err)
		}
	}
	return nil
}
