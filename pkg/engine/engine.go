// Package engine tracks challenge lists, their rotating
// visible subsets, and every participant's progress toward
// the challenges in them.
//
// Locking: a List's slot lock is taken before a Profile's
// lock, which is taken before a Progress's lock. A List's
// state lock is a leaf and is never held while acquiring
// another lock.
package engine

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"

	"digital.vasic.challengeboard/pkg/logging"
	"digital.vasic.challengeboard/pkg/metrics"
	"digital.vasic.challengeboard/pkg/negotiation"
	"digital.vasic.challengeboard/pkg/registry"
)

// Policy selects how rotation treats challenges that
// participants are working on.
type Policy int

const (
	// PreserveActive keeps every challenge with an active
	// attempt visible and fills the remaining slots randomly.
	PreserveActive Policy = iota

	// CancelAndReshuffle cancels every attempt in the list
	// and draws a fresh visible subset.
	CancelAndReshuffle
)

// String returns the policy's configuration name.
func (p Policy) String() string {
	if p == CancelAndReshuffle {
		return "cancel-and-reshuffle"
	}
	return "preserve-active"
}

// ParsePolicy parses a policy configuration name.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "preserve-active", "preserve":
		return PreserveActive, nil
	case "cancel-and-reshuffle", "cancel", "reshuffle":
		return CancelAndReshuffle, nil
	default:
		return 0, fmt.Errorf("unknown rotation policy %q", s)
	}
}

// Mode is the engine-wide context handed to rotation checks.
type Mode struct {
	// Reloading suspends rotation checks while the catalog is
	// being swapped.
	Reloading bool

	// Testing shortens rotation intervals.
	Testing bool
}

// Engine owns the challenge lists and participant profiles.
// It is safe for concurrent use.
type Engine struct {
	mu       sync.RWMutex
	lists    map[string]*List
	profiles map[string]*Profile

	loader     *registry.Loader
	logger     logging.Logger
	metrics    metrics.EngineMetrics
	observer   Observer
	notifier   Notifier
	presence   Presence
	rewards    RewardDispatcher
	perms      PermissionChecker
	negotiator *negotiation.Negotiator
	timeout    time.Duration
	policy     Policy
	now        func() time.Time

	rngMu sync.Mutex
	rng   *rand.Rand

	suspended atomic.Int32
	testing   atomic.Bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used by the engine.
func WithLogger(l logging.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m metrics.EngineMetrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithObserver sets the receiver of engine events.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// WithNotifier sets the receiver of participant notices.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithPresence sets the online check used before dispatching
// rewards. By default every participant is online.
func WithPresence(p Presence) Option {
	return func(e *Engine) { e.presence = p }
}

// WithRewardDispatcher sets where rewards are sent.
func WithRewardDispatcher(d RewardDispatcher) Option {
	return func(e *Engine) { e.rewards = d }
}

// WithPermissions sets the permission checker. By default
// every permission is granted.
func WithPermissions(p PermissionChecker) Option {
	return func(e *Engine) { e.perms = p }
}

// WithPolicy sets the rotation policy for every list.
func WithPolicy(p Policy) Option {
	return func(e *Engine) { e.policy = p }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithRand sets the random source used to shuffle pools.
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) { e.rng = r }
}

// WithReplacementTimeout sets how long a replacement prompt
// stays valid.
func WithReplacementTimeout(d time.Duration) Option {
	return func(e *Engine) { e.timeout = d }
}

// WithLoader sets the catalog loader used by LoadList.
func WithLoader(l *registry.Loader) Option {
	return func(e *Engine) { e.loader = l }
}

// WithTestingMode starts the engine in testing mode.
func WithTestingMode(on bool) Option {
	return func(e *Engine) { e.testing.Store(on) }
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		lists:    make(map[string]*List),
		profiles: make(map[string]*Profile),
		logger:   logging.NullLogger{},
		metrics:  metrics.NoopMetrics{},
		observer: discardEvents{},
		notifier: discardNotices{},
		presence: everyoneOnline{},
		rewards:  discardRewards{},
		perms:    allowAll{},
		timeout:  negotiation.DefaultTimeout,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if e.loader == nil {
		e.loader = registry.NewLoader(registry.WithLoaderLogger(e.logger))
	}
	e.negotiator = negotiation.New(
		negotiation.WithClock(e.now),
		negotiation.WithTimeout(e.timeout),
	)
	return e
}

// Mode returns the current reload and testing flags.
func (e *Engine) Mode() Mode {
	return Mode{
		Reloading: e.suspended.Load() > 0,
		Testing:   e.testing.Load(),
	}
}

// SetTestingMode toggles shortened rotation intervals.
func (e *Engine) SetTestingMode(on bool) {
	if e.testing.Swap(on) != on {
		e.logger.Info("testing mode changed", logging.BoolField("enabled", on))
	}
}

// Policy returns the rotation policy.
func (e *Engine) Policy() Policy { return e.policy }

// Negotiator returns the replacement negotiation store.
func (e *Engine) Negotiator() *negotiation.Negotiator {
	return e.negotiator
}

// Online reports whether the participant is reachable.
func (e *Engine) Online(participant string) bool {
	return e.presence.Online(participant)
}

// Now returns the engine clock's current time.
func (e *Engine) Now() time.Time { return e.now() }

// Suspend runs fn with rotation checks suspended. The guard is
// released when fn returns, even if it panics. Nested and
// overlapping calls keep it until the last of them returns.
func (e *Engine) Suspend(fn func() error) error {
	e.suspended.Add(1)
	defer e.suspended.Add(-1)
	return fn()
}

// AddList registers a list built from def. The initial visible
// subset is drawn by a rotation, or is the first entries of
// the pool while rotation checks are suspended.
func (e *Engine) AddList(def *registry.ListDefinition) (*List, error) {
	l := newList(e, def)

	e.mu.Lock()
	if _, exists := e.lists[def.ID]; exists {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrDuplicateList, def.ID)
	}
	e.lists[def.ID] = l
	e.mu.Unlock()

	if e.suspended.Load() > 0 {
		l.resetToHead()
	} else {
		l.rotate("initial")
	}
	return l, nil
}

// LoadList builds a list from its YAML section and registers
// it. Invalid challenges are logged and skipped by the loader.
func (e *Engine) LoadList(id string, node *yaml.Node) (*List, error) {
	def, err := e.loader.Load(id, node)
	if err != nil {
		return nil, err
	}
	return e.AddList(def)
}

// LoadCatalog registers every list of cat and returns the
// lists that could not be added.
func (e *Engine) LoadCatalog(cat *registry.Catalog) []error {
	var errs []error
	for _, def := range cat.List() {
		if _, err := e.AddList(def); err != nil {
			e.logger.Warn("list not added",
				logging.ListField(def.ID), logging.ErrorField(err),
			)
			errs = append(errs, err)
		}
	}
	return errs
}

// LoadDir loads every list file in dir and registers the
// lists. It returns the catalog so callers can inspect its
// problems.
func (e *Engine) LoadDir(dir string) (*registry.Catalog, error) {
	cat, err := e.loader.LoadDir(dir)
	if err != nil {
		return nil, err
	}
	for _, err := range e.LoadCatalog(cat) {
		cat.Problems = append(cat.Problems, err)
	}
	return cat, nil
}

// Loader returns the catalog loader.
func (e *Engine) Loader() *registry.Loader { return e.loader }

// List returns the list with the given id.
func (e *Engine) List(id string) (*List, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	l, ok := e.lists[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownList, id)
	}
	return l, nil
}

// Lists returns every list sorted by id.
func (e *Engine) Lists() []*List {
	e.mu.RLock()
	out := make([]*List, 0, len(e.lists))
	for _, l := range e.lists {
		out = append(out, l)
	}
	e.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].ID() < out[j].ID()
	})
	return out
}

// Profile returns an existing participant profile.
func (e *Engine) Profile(participant string) (*Profile, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	p, ok := e.profiles[participant]
	return p, ok
}

// GetOrCreateProfile returns the participant's profile,
// creating an empty one on first use.
func (e *Engine) GetOrCreateProfile(participant string) *Profile {
	if p, ok := e.Profile(participant); ok {
		return p
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if p, ok := e.profiles[participant]; ok {
		return p
	}
	p := newProfile(e, participant)
	e.profiles[participant] = p
	return p
}

// Profiles returns every profile sorted by participant id.
func (e *Engine) Profiles() []*Profile {
	e.mu.RLock()
	out := make([]*Profile, 0, len(e.profiles))
	for _, p := range e.profiles {
		out = append(out, p)
	}
	e.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].ID() < out[j].ID()
	})
	return out
}

func (e *Engine) emit(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = e.now()
	}
	e.observer.Observe(ev)
}

func (e *Engine) notify(participant string, n Notice) {
	e.notifier.Notify(participant, n)
}

func (e *Engine) shuffle(n int, swap func(i, j int)) {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	e.rng.Shuffle(n, swap)
}
