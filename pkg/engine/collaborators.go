package engine

import "digital.vasic.challengeboard/pkg/challenge"

// Presence reports whether a participant is reachable. Rewards
// are only dispatched to reachable participants.
type Presence interface {
	Online(participant string) bool
}

// RewardDispatcher applies a reward to a participant. The
// engine never inspects rewards; a failing reward does not
// block the rest of the queue.
type RewardDispatcher interface {
	Dispatch(participant string, reward challenge.Reward) error
}

// PermissionChecker decides whether a participant holds a
// permission node.
type PermissionChecker interface {
	Allowed(participant, permission string) bool
}

// NoticeKind identifies a participant-facing notice.
type NoticeKind string

const (
	NoticeNoLongerAvailable NoticeKind = "no_longer_available"
	NoticeCompleted         NoticeKind = "completed"
	NoticeReplacePrompt     NoticeKind = "replace_prompt"
	NoticeExpired           NoticeKind = "expired"
	NoticeCancelled         NoticeKind = "cancelled"
)

// Notice is a message for one participant. Rendering and
// localization are left to the Notifier.
type Notice struct {
	Kind      NoticeKind   `json:"kind"`
	List      string       `json:"list,omitempty"`
	Challenge challenge.ID `json:"challenge,omitempty"`
	Replacing challenge.ID `json:"replacing,omitempty"`
	Token     string       `json:"token,omitempty"`
}

// Notifier delivers notices to participants. Like Observer it
// must not call back into the engine.
type Notifier interface {
	Notify(participant string, n Notice)
}

type everyoneOnline struct{}

func (everyoneOnline) Online(string) bool { return true }

type allowAll struct{}

func (allowAll) Allowed(string, string) bool { return true }

type discardRewards struct{}

func (discardRewards) Dispatch(string, challenge.Reward) error { return nil }

type discardNotices struct{}

func (discardNotices) Notify(string, Notice) {}

type discardEvents struct{}

func (discardEvents) Observe(Event) {}
