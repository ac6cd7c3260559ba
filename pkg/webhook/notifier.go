package webhook

import (
	"context"
	"sync/atomic"
	"time"

	"digital.vasic.challengeboard/pkg/challenge"
	"digital.vasic.challengeboard/pkg/engine"
	"digital.vasic.challengeboard/pkg/logging"
	"digital.vasic.challengeboard/pkg/reward"
)

// Paths the payloads are posted to.
const (
	NoticesPath = "/notices"
	RewardsPath = "/rewards"
)

// DefaultQueueSize is the notifier's buffer.
const DefaultQueueSize = 256

// NoticePayload is the body posted for a notice.
type NoticePayload struct {
	Participant string        `json:"participant"`
	Notice      engine.Notice `json:"notice"`
	Time        time.Time     `json:"time"`
}

// RewardPayload is the body posted for a reward.
type RewardPayload struct {
	Participant string           `json:"participant"`
	Reward      challenge.Reward `json:"reward"`
}

// NotifierOption configures a Notifier.
type NotifierOption func(*Notifier)

// WithQueueSize overrides DefaultQueueSize.
func WithQueueSize(n int) NotifierOption {
	return func(nt *Notifier) {
		if n > 0 {
			nt.queue = make(chan NoticePayload, n)
		}
	}
}

// WithLogger sets the logger for delivery failures.
func WithLogger(l logging.Logger) NotifierOption {
	return func(nt *Notifier) { nt.logger = l }
}

// Notifier queues notices and posts them from Run. Notify never
// blocks; notices arriving while the queue is full are dropped.
type Notifier struct {
	client  *Client
	queue   chan NoticePayload
	logger  logging.Logger
	sent    atomic.Int64
	dropped atomic.Int64
	failed  atomic.Int64
}

// NewNotifier creates a Notifier posting through c.
func NewNotifier(c *Client, opts ...NotifierOption) *Notifier {
	n := &Notifier{
		client: c,
		queue:  make(chan NoticePayload, DefaultQueueSize),
		logger: logging.NullLogger{},
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Notify enqueues notice for participant.
func (n *Notifier) Notify(participant string, notice engine.Notice) {
	select {
	case n.queue <- NoticePayload{
		Participant: participant, Notice: notice, Time: time.Now(),
	}:
	default:
		n.dropped.Add(1)
		n.logger.Warn("notice dropped, queue full",
			logging.ParticipantField(participant),
			logging.StringField("kind", string(notice.Kind)),
		)
	}
}

// Run posts queued notices until ctx is done.
func (n *Notifier) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case p := <-n.queue:
			n.post(ctx, p)
		}
	}
}

func (n *Notifier) post(ctx context.Context, p NoticePayload) {
	if err := n.client.PostJSON(ctx, NoticesPath, p); err != nil {
		n.failed.Add(1)
		n.logger.Warn("notice delivery failed",
			logging.ParticipantField(p.Participant),
			logging.ErrorField(err),
		)
		return
	}
	n.sent.Add(1)
}

// Sent returns how many notices were delivered.
func (n *Notifier) Sent() int64 { return n.sent.Load() }

// Dropped returns how many notices were discarded unsent.
func (n *Notifier) Dropped() int64 { return n.dropped.Load() }

// Failed returns how many deliveries the server rejected.
func (n *Notifier) Failed() int64 { return n.failed.Load() }

// Rewards returns a reward handler that posts each reward and
// reports the server's rejection as a failure.
func Rewards(c *Client) reward.Handler {
	return reward.HandlerFunc(func(participant string, r challenge.Reward) error {
		timeout := c.httpClient.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return c.PostJSON(ctx, RewardsPath, RewardPayload{
			Participant: participant, Reward: r,
		})
	})
}
