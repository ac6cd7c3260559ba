package negotiation

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
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

func newTestNegotiator() (*Negotiator, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	seq := 0
	n := New(
		WithClock(clock.Now),
		WithTokenSource(func() string {
			seq++
			return fmt.Sprintf("tok%05d", seq)
		}),
	)
	return n, clock
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "none", None.String())
	assert.Equal(t, "pending", Pending.String())
	assert.Equal(t, "confirmed", Confirmed.String())
	assert.Equal(t, "cancelled", Cancelled.String())
	assert.Equal(t, "expired", Expired.String())
}

func TestShortToken(t *testing.T) {
	tok := shortToken()
	assert.Len(t, tok, 8)
	assert.NotEqual(t, tok, shortToken())
}

func TestNegotiator_ConfirmRunsContinuation(t *testing.T) {
	n, clock := newTestNegotiator()
	ran := false
	rec := n.Open(Request{
		Participant: "p1",
		List:        "daily",
		Candidate:   "b",
		Replacing:   "a",
		OnConfirm:   func() error { ran = true; return nil },
	})
	assert.Equal(t, clock.Now(), rec.CreatedAt)

	clock.Advance(4 * time.Minute)
	outcome, err := n.Confirm("p1", rec.Token)
	require.NoError(t, err)
	assert.Equal(t, Confirmed, outcome)
	assert.True(t, ran)
	assert.Zero(t, n.Len())

	outcome, err = n.Confirm("p1", rec.Token)
	require.NoError(t, err)
	assert.Equal(t, None, outcome)
}

func TestNegotiator_ConfirmError(t *testing.T) {
	n, _ := newTestNegotiator()
	boom := errors.New("gone")
	rec := n.Open(Request{
		Participant: "p1",
		OnConfirm:   func() error { return boom },
	})

	outcome, err := n.Confirm("p1", rec.Token)
	assert.Equal(t, Confirmed, outcome)
	assert.ErrorIs(t, err, boom)
}

func TestNegotiator_ExpiredIsDroppedSilently(t *testing.T) {
	n, clock := newTestNegotiator()
	ran := false
	rec := n.Open(Request{
		Participant: "p1",
		OnConfirm:   func() error { ran = true; return nil },
	})

	clock.Advance(DefaultTimeout)
	outcome, err := n.Confirm("p1", rec.Token)
	require.NoError(t, err)
	assert.Equal(t, Expired, outcome)
	assert.False(t, ran)
	assert.Zero(t, n.Len())
}

func TestNegotiator_Cancel(t *testing.T) {
	n, _ := newTestNegotiator()
	cancelled := false
	rec := n.Open(Request{
		Participant: "p1",
		OnConfirm:   func() error { t.Fatal("confirm ran"); return nil },
		OnCancel:    func() { cancelled = true },
	})

	assert.Equal(t, Cancelled, n.Cancel("p1", rec.Token))
	assert.True(t, cancelled)
	assert.Equal(t, None, n.Cancel("p1", rec.Token))
}

func TestNegotiator_MismatchedTokenKeepsRecord(t *testing.T) {
	n, _ := newTestNegotiator()
	rec := n.Open(Request{Participant: "p1"})

	outcome, err := n.Confirm("p1", "wrong")
	require.NoError(t, err)
	assert.Equal(t, None, outcome)
	assert.Equal(t, None, n.Cancel("p2", rec.Token))

	_, ok := n.Get("p1")
	assert.True(t, ok)
}

func TestNegotiator_OpenOverwrites(t *testing.T) {
	n, _ := newTestNegotiator()
	first := n.Open(Request{Participant: "p1", Candidate: "b"})
	second := n.Open(Request{Participant: "p1", Candidate: "c"})

	assert.Equal(t, 1, n.Len())
	outcome, _ := n.Confirm("p1", first.Token)
	assert.Equal(t, None, outcome)

	got, ok := n.Get("p1")
	require.True(t, ok)
	assert.Equal(t, "c", got.Candidate)
	assert.Equal(t, second.Token, got.Token)
}

func TestNegotiator_GetAndSweepExpire(t *testing.T) {
	n, clock := newTestNegotiator()
	n.Open(Request{Participant: "p1"})
	clock.Advance(3 * time.Minute)
	n.Open(Request{Participant: "p2"})
	clock.Advance(2 * time.Minute)

	_, ok := n.Get("p1")
	assert.False(t, ok)
	assert.Equal(t, 1, n.Len())

	n.Open(Request{Participant: "p3"})
	clock.Advance(3 * time.Minute)
	assert.Equal(t, 1, n.Sweep())
	assert.Equal(t, 1, n.Len())
	_, ok = n.Get("p3")
	assert.True(t, ok)
}

func TestNegotiator_WithTimeout(t *testing.T) {
	n := New(WithTimeout(time.Second))
	assert.Equal(t, time.Second, n.Timeout())
	assert.Equal(t, DefaultTimeout, New(WithTimeout(0)).Timeout())
}

func TestNegotiator_Discard(t *testing.T) {
	n, _ := newTestNegotiator()
	n.Open(Request{Participant: "p1"})
	n.Discard("p1")
	assert.Zero(t, n.Len())
}

func TestNegotiator_ConcurrentOpenResolve(t *testing.T) {
	n := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := fmt.Sprintf("p%d", i)
			rec := n.Open(Request{Participant: p})
			outcome, err := n.Confirm(p, rec.Token)
			assert.NoError(t, err)
			assert.Equal(t, Confirmed, outcome)
		}(i)
	}
	wg.Wait()
	assert.Zero(t, n.Len())
}
