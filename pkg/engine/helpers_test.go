package engine

import (
	"errors"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"digital.vasic.challengeboard/pkg/challenge"
	"digital.vasic.challengeboard/pkg/registry"
	"digital.vasic.challengeboard/pkg/requirement"
)

// --- clock ---

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// --- recorder ---

type recorder struct {
	mu      sync.Mutex
	events  []Event
	notices map[string][]Notice
}

func newRecorder() *recorder {
	return &recorder{notices: make(map[string][]Notice)}
}

func (r *recorder) Observe(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) Notify(participant string, n Notice) {
	r.mu.Lock()
	r.notices[participant] = append(r.notices[participant], n)
	r.mu.Unlock()
}

func (r *recorder) count(kind EventKind, detail string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Kind == kind && (detail == "" || ev.Detail == detail) {
			n++
		}
	}
	return n
}

func (r *recorder) noticesFor(participant string) []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notice(nil), r.notices[participant]...)
}

func (r *recorder) hasNotice(participant string, kind NoticeKind) bool {
	for _, n := range r.noticesFor(participant) {
		if n.Kind == kind {
			return true
		}
	}
	return false
}

// --- rewards and presence ---

type rewardSink struct {
	mu   sync.Mutex
	got  []string
	hook func(participant string)
}

func (s *rewardSink) Dispatch(participant string, r challenge.Reward) error {
	if s.hook != nil {
		s.hook(participant)
	}
	switch r.Type {
	case "panic":
		panic("reward exploded")
	case "fail":
		return errors.New("inventory full")
	}
	s.mu.Lock()
	s.got = append(s.got, participant+":"+r.Type)
	s.mu.Unlock()
	return nil
}

func (s *rewardSink) delivered() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.got...)
}

type presenceSet struct {
	mu      sync.Mutex
	offline map[string]bool
}

func (p *presenceSet) Online(participant string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.offline[participant]
}

func (p *presenceSet) set(participant string, online bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.offline == nil {
		p.offline = make(map[string]bool)
	}
	p.offline[participant] = !online
}

type denyAll struct{}

func (denyAll) Allowed(string, string) bool { return false }

// --- requirements ---

// recheckRequirement is satisfied the first time it is
// rechecked, which lets always-active attempts complete
// through CheckCompletion.
type recheckRequirement struct{ name string }

func (r recheckRequirement) Name() string { return r.name }
func (r recheckRequirement) Kind() string { return "recheck" }
func (r recheckRequirement) Interested(*challenge.Event) bool { return false }
func (r recheckRequirement) NewProgression() challenge.Progression {
	return &recheckProgression{}
}

type recheckProgression struct{ done bool }

func (p *recheckProgression) Update(*challenge.Event) bool {
	p.done = true
	return true
}
func (p *recheckProgression) Satisfied() bool { return p.done }
func (p *recheckProgression) Describe() string { return "recheck" }
func (p *recheckProgression) State() ([]byte, error) { return []byte("{}"), nil }
func (p *recheckProgression) Restore([]byte) error { return nil }

var kinds = requirement.NewRegistry()

func countReq(
	t *testing.T, name, event string, amount int,
) challenge.Requirement {
	t.Helper()
	req, err := kinds.Build(challenge.RequirementSpec{
		Name: name,
		Kind: requirement.KindCount,
		Params: map[string]any{
			"event": event, "amount": amount,
		},
	})
	require.NoError(t, err)
	return req
}

// manual returns a selectable challenge completed by one
// event of type id.
func manual(t *testing.T, id string, rewards ...string) *challenge.Definition {
	t.Helper()
	return &challenge.Definition{
		ID:             challenge.ID(id),
		NeedsSelection: true,
		Requirements:   []challenge.Requirement{countReq(t, "goal", id, 1)},
		Rewards:        rewardList(rewards),
	}
}

// auto returns an always-active challenge completed by one
// event of type id.
func auto(t *testing.T, id string, rewards ...string) *challenge.Definition {
	t.Helper()
	return &challenge.Definition{
		ID:           challenge.ID(id),
		Requirements: []challenge.Requirement{countReq(t, "goal", id, 1)},
		Rewards:      rewardList(rewards),
	}
}

func rewardList(types []string) []challenge.Reward {
	out := make([]challenge.Reward, 0, len(types))
	for _, typ := range types {
		out = append(out, challenge.Reward{Type: typ})
	}
	return out
}

func listDef(
	t *testing.T, id string, visible, maxActive int, every string,
	defs ...*challenge.Definition,
) *registry.ListDefinition {
	t.Helper()
	l := registry.NewListDefinition(id)
	l.VisibleCount = visible
	l.MaxActivePerParticipant = maxActive
	l.RotationInterval = every
	for _, d := range defs {
		require.NoError(t, l.AddChallenge(d))
	}
	return l
}

func newTestEngine(
	t *testing.T, opts ...Option,
) (*Engine, *fakeClock, *recorder) {
	t.Helper()
	clock := newFakeClock()
	rec := newRecorder()
	base := []Option{
		WithClock(clock.Now),
		WithRand(rand.New(rand.NewPCG(7, 11))),
		WithObserver(rec),
		WithNotifier(rec),
	}
	return New(append(base, opts...)...), clock, rec
}

func mustAdd(t *testing.T, e *Engine, def *registry.ListDefinition) *List {
	t.Helper()
	l, err := e.AddList(def)
	require.NoError(t, err)
	return l
}

func ids(progress []*Progress) []challenge.ID {
	out := make([]challenge.ID, 0, len(progress))
	for _, g := range progress {
		out = append(out, g.ID())
	}
	return out
}
