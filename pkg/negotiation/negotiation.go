// Package negotiation implements the confirm/cancel protocol a
// participant goes through before an occupied challenge slot is
// replaced.
//
// A record moves NONE -> PENDING -> {CONFIRMED, CANCELLED,
// EXPIRED}. Each participant has at most one pending record;
// opening a new one replaces the old. The first resolution
// attempt carrying the right token removes the record.
package negotiation

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultTimeout is how long a pending replacement stays
// valid.
const DefaultTimeout = 5 * time.Minute

// Outcome is the result of a resolution attempt.
type Outcome int

const (
	// None means no pending record matched.
	None Outcome = iota
	// Pending means a record is awaiting resolution.
	Pending
	// Confirmed means the continuation ran.
	Confirmed
	// Cancelled means the record was discarded on request.
	Cancelled
	// Expired means the record timed out before resolution.
	Expired
)

// String returns the lowercase outcome name.
func (o Outcome) String() string {
	switch o {
	case Pending:
		return "pending"
	case Confirmed:
		return "confirmed"
	case Cancelled:
		return "cancelled"
	case Expired:
		return "expired"
	default:
		return "none"
	}
}

// Record is one pending replacement.
type Record struct {
	Participant string
	Token       string
	List        string
	Candidate   string
	Replacing   string
	CreatedAt   time.Time

	onConfirm func() error
	onCancel  func()
}

// expiresAt returns the instant the record stops being valid.
func (r *Record) expiresAt(timeout time.Duration) time.Time {
	return r.CreatedAt.Add(timeout)
}

// Request describes a replacement to negotiate.
type Request struct {
	Participant string
	List        string
	Candidate   string
	Replacing   string

	// OnConfirm runs when the participant confirms in time.
	OnConfirm func() error

	// OnCancel runs when the participant cancels in time.
	OnCancel func()
}

// Negotiator is a process-wide expiring store of pending
// replacements keyed by participant. It is safe for concurrent
// use.
type Negotiator struct {
	mu      sync.Mutex
	pending map[string]*Record
	timeout time.Duration
	now     func() time.Time
	token   func() string
}

// Option configures a Negotiator.
type Option func(*Negotiator)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(n *Negotiator) {
		if d > 0 {
			n.timeout = d
		}
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(n *Negotiator) { n.now = now }
}

// WithTokenSource sets the confirmation token generator.
func WithTokenSource(gen func() string) Option {
	return func(n *Negotiator) { n.token = gen }
}

// New creates a Negotiator.
func New(opts ...Option) *Negotiator {
	n := &Negotiator{
		pending: make(map[string]*Record),
		timeout: DefaultTimeout,
		now:     time.Now,
		token:   shortToken,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// shortToken returns the first eight characters of a random
// UUID.
func shortToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// Timeout returns the configured expiry.
func (n *Negotiator) Timeout() time.Duration { return n.timeout }

// Open stores a pending record for req.Participant, replacing
// any earlier one, and returns it.
func (n *Negotiator) Open(req Request) *Record {
	rec := &Record{
		Participant: req.Participant,
		Token:       n.token(),
		List:        req.List,
		Candidate:   req.Candidate,
		Replacing:   req.Replacing,
		CreatedAt:   n.now(),
		onConfirm:   req.OnConfirm,
		onCancel:    req.OnCancel,
	}

	n.mu.Lock()
	n.pending[req.Participant] = rec
	n.mu.Unlock()
	return rec
}

// take removes and returns the participant's record when the
// token matches. A mismatched token leaves the record in
// place.
func (n *Negotiator) take(
	participant, token string,
) (*Record, Outcome) {
	n.mu.Lock()
	defer n.mu.Unlock()

	rec, ok := n.pending[participant]
	if !ok || rec.Token != token {
		return nil, None
	}
	delete(n.pending, participant)
	if !n.now().Before(rec.expiresAt(n.timeout)) {
		return nil, Expired
	}
	return rec, Pending
}

// Confirm resolves the participant's record and runs its
// confirm continuation outside the store lock. The
// continuation's error is returned with the Confirmed outcome.
func (n *Negotiator) Confirm(
	participant, token string,
) (Outcome, error) {
	rec, outcome := n.take(participant, token)
	if outcome != Pending {
		return outcome, nil
	}
	if rec.onConfirm == nil {
		return Confirmed, nil
	}
	return Confirmed, rec.onConfirm()
}

// Cancel resolves the participant's record without applying
// it.
func (n *Negotiator) Cancel(participant, token string) Outcome {
	rec, outcome := n.take(participant, token)
	if outcome != Pending {
		return outcome
	}
	if rec.onCancel != nil {
		rec.onCancel()
	}
	return Cancelled
}

// Get returns a copy of the participant's live record.
// Expired records are removed and reported as absent.
func (n *Negotiator) Get(participant string) (Record, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	rec, ok := n.pending[participant]
	if !ok {
		return Record{}, false
	}
	if !n.now().Before(rec.expiresAt(n.timeout)) {
		delete(n.pending, participant)
		return Record{}, false
	}
	return *rec, true
}

// Discard drops the participant's record, if any.
func (n *Negotiator) Discard(participant string) {
	n.mu.Lock()
	delete(n.pending, participant)
	n.mu.Unlock()
}

// Sweep removes every expired record and returns how many were
// dropped.
func (n *Negotiator) Sweep() int {
	n.mu.Lock()
	defer n.mu.Unlock()

	now := n.now()
	dropped := 0
	for p, rec := range n.pending {
		if !now.Before(rec.expiresAt(n.timeout)) {
			delete(n.pending, p)
			dropped++
		}
	}
	return dropped
}

// Len returns the number of stored records, expired or not.
func (n *Negotiator) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.pending)
}
