package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"digital.vasic.challengeboard/pkg/challenge"
	"digital.vasic.challengeboard/pkg/metrics"
)

func TestProfile_AddActiveChallenge_NeverExceedsCapacity(t *testing.T) {
	e, _, rec := newTestEngine(t)
	mustAdd(t, e, listDef(t, "daily", 0, 2, "daily",
		manual(t, "A"), manual(t, "B"), manual(t, "C"), manual(t, "D"),
	))
	p := e.GetOrCreateProfile("X")

	for _, id := range []challenge.ID{"A", "B", "C", "D"} {
		_, err := p.AddActiveChallenge("daily", id)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(p.Active("daily")), 2)
	}
	assert.Equal(t, []challenge.ID{"C", "D"}, ids(p.Active("daily")))
	assert.Equal(t, 2, rec.count(EventCancelled, ReasonEvicted))
}

func TestProfile_AddActiveChallenge_ManualEvictsNewestAutomatic(t *testing.T) {
	e, _, _ := newTestEngine(t)
	mustAdd(t, e, listDef(t, "daily", 0, 2, "daily",
		auto(t, "auto-1"), auto(t, "auto-2"), manual(t, "M"),
	))
	p := e.GetOrCreateProfile("X")

	for _, id := range []challenge.ID{"auto-1", "auto-2", "M"} {
		_, err := p.AddActiveChallenge("daily", id)
		require.NoError(t, err)
	}
	assert.Equal(t, []challenge.ID{"auto-1", "M"}, ids(p.Active("daily")))
}

func TestProfile_AddActiveChallenge_AutomaticYieldsToSelection(t *testing.T) {
	e, _, _ := newTestEngine(t)
	mustAdd(t, e, listDef(t, "daily", 0, 1, "daily",
		manual(t, "M"), auto(t, "auto-1"),
	))
	p := e.GetOrCreateProfile("X")

	_, err := p.AddActiveChallenge("daily", "M")
	require.NoError(t, err)

	_, err = p.AddActiveChallenge("daily", "auto-1")
	assert.ErrorIs(t, err, ErrSlotsHeldBySelection)
	assert.Equal(t, []challenge.ID{"M"}, ids(p.Active("daily")))
}

func TestProfile_AddActiveChallenge_AutomaticEvictsOldestAutomatic(t *testing.T) {
	e, _, _ := newTestEngine(t)
	mustAdd(t, e, listDef(t, "daily", 0, 1, "daily",
		auto(t, "auto-1"), auto(t, "auto-2"),
	))
	p := e.GetOrCreateProfile("X")

	_, err := p.AddActiveChallenge("daily", "auto-1")
	require.NoError(t, err)
	_, err = p.AddActiveChallenge("daily", "auto-2")
	require.NoError(t, err)

	assert.Equal(t, []challenge.ID{"auto-2"}, ids(p.Active("daily")))
}

func TestProfile_AddActiveChallenge_Rejections(t *testing.T) {
	e, _, rec := newTestEngine(t)
	mustAdd(t, e, listDef(t, "daily", 0, 2, "daily", manual(t, "A")))
	p := e.GetOrCreateProfile("X")

	_, err := p.AddActiveChallenge("daily", "gone")
	assert.ErrorIs(t, err, ErrNoLongerAvailable)
	assert.Empty(t, p.Active("daily"))
	assert.True(t, rec.hasNotice("X", NoticeNoLongerAvailable))

	_, err = p.AddActiveChallenge("daily", "A")
	require.NoError(t, err)
	_, err = p.AddActiveChallenge("daily", "A")
	assert.ErrorIs(t, err, ErrAlreadyInProgress)

	_, err = p.AddActiveChallenge("weekly", "A")
	assert.ErrorIs(t, err, ErrUnknownList)
}

func TestProgress_Complete_Idempotent(t *testing.T) {
	sink := &rewardSink{}
	m := metrics.NewInMemoryMetrics()
	e, _, rec := newTestEngine(t,
		WithRewardDispatcher(sink), WithMetrics(m),
	)
	mustAdd(t, e, listDef(t, "daily", 0, 1, "daily",
		manual(t, "A", "coins"),
	))
	p := e.GetOrCreateProfile("X")
	g, err := p.AddActiveChallenge("daily", "A")
	require.NoError(t, err)

	assert.True(t, g.Complete())
	assert.False(t, g.Complete())
	assert.False(t, g.Active())

	assert.Len(t, p.Completed(), 1)
	assert.Equal(t, []string{"X:coins"}, sink.delivered())
	assert.Equal(t, 1, m.CompletionCount("daily", "A"))
	assert.Equal(t, 1, rec.count(EventCompleted, ""))
	assert.Empty(t, p.Active("daily"))
}

func TestProfile_CompletionHistory_OneEntryPerChallenge(t *testing.T) {
	e, clock, _ := newTestEngine(t)
	def := auto(t, "A")
	def.Repeatable = true
	mustAdd(t, e, listDef(t, "daily", 0, 1, "daily", def))
	p := e.GetOrCreateProfile("X")

	for i := 0; i < 2; i++ {
		g, err := p.AddActiveChallenge("daily", "A")
		require.NoError(t, err)
		require.True(t, g.Complete())
		clock.Advance(time.Minute)
	}
	assert.Len(t, p.Completed(), 1)
}

func TestEngine_Progress_CompletesAndDispenses(t *testing.T) {
	sink := &rewardSink{}
	e, _, rec := newTestEngine(t, WithRewardDispatcher(sink))
	def := manual(t, "A", "coins")
	def.Requirements = []challenge.Requirement{
		countReq(t, "kills", "kill", 2),
	}
	mustAdd(t, e, listDef(t, "daily", 0, 1, "daily", def))
	p := e.GetOrCreateProfile("X")
	g, err := p.AddActiveChallenge("daily", "A")
	require.NoError(t, err)

	assert.Equal(t, 0, e.Progress("X", &challenge.Event{Type: "kill"}))
	assert.Equal(t, "1/2", g.Describe()[0].Progress)
	assert.Equal(t, 0, e.Progress("X", &challenge.Event{Type: "mine"}))
	assert.Equal(t, 1, e.Progress("X", &challenge.Event{Type: "kill"}))

	assert.True(t, p.HasCompleted("daily", "A"))
	assert.Equal(t, []string{"X:coins"}, sink.delivered())
	assert.True(t, rec.hasNotice("X", NoticeCompleted))
	assert.Equal(t, 0, e.Progress("nobody", &challenge.Event{Type: "kill"}))
}

func TestEngine_Progress_OfflineQueuesRewards(t *testing.T) {
	sink := &rewardSink{}
	presence := &presenceSet{}
	presence.set("X", false)
	e, _, _ := newTestEngine(t,
		WithRewardDispatcher(sink), WithPresence(presence),
	)
	mustAdd(t, e, listDef(t, "daily", 0, 1, "daily",
		manual(t, "A", "coins", "gems"),
	))
	p := e.GetOrCreateProfile("X")
	_, err := p.AddActiveChallenge("daily", "A")
	require.NoError(t, err)

	assert.Equal(t, 1, e.Progress("X", &challenge.Event{Type: "A"}))
	assert.Len(t, p.PendingRewards(), 2)
	assert.Empty(t, sink.delivered())

	presence.set("X", true)
	e.Join("X")
	assert.Empty(t, p.PendingRewards())
	assert.Equal(t, []string{"X:coins", "X:gems"}, sink.delivered())
}

func TestProfile_Dispense_FailuresDoNotBlockQueue(t *testing.T) {
	sink := &rewardSink{}
	m := metrics.NewInMemoryMetrics()
	e, _, rec := newTestEngine(t,
		WithRewardDispatcher(sink), WithMetrics(m),
	)
	mustAdd(t, e, listDef(t, "daily", 0, 1, "daily",
		manual(t, "A", "panic", "fail", "coins"),
	))
	g, err := e.GetOrCreateProfile("X").AddActiveChallenge("daily", "A")
	require.NoError(t, err)

	assert.NotPanics(t, func() { g.Complete() })
	assert.Equal(t, []string{"X:coins"}, sink.delivered())
	assert.Equal(t, 1, m.RewardFailureCount("panic"))
	assert.Equal(t, 1, m.RewardFailureCount("fail"))
	assert.Equal(t, 2, rec.count(EventRewardFailed, ""))
}

func TestProfile_CheckCompletion_ReentrantCallIsNoop(t *testing.T) {
	sink := &rewardSink{}
	e, _, _ := newTestEngine(t, WithRewardDispatcher(sink))
	def := &challenge.Definition{
		ID:           "login",
		Requirements: []challenge.Requirement{recheckRequirement{name: "seen"}},
		Rewards:      []challenge.Reward{{Type: "coins"}},
	}
	mustAdd(t, e, listDef(t, "daily", 0, 1, "daily", def))

	nested := -1
	sink.hook = func(participant string) {
		p, ok := e.Profile(participant)
		require.True(t, ok)
		nested = p.CheckCompletion("daily")
	}

	p := e.Join("X")

	assert.Equal(t, 0, nested)
	assert.True(t, p.HasCompleted("daily", "login"))
	assert.Equal(t, []string{"X:coins"}, sink.delivered())
}

func TestProfile_RefreshRepeatable_AfterCooldownOnly(t *testing.T) {
	e, clock, rec := newTestEngine(t)
	repeat := manual(t, "R")
	repeat.Repeatable = true
	repeat.RepeatableEvery = time.Hour
	mustAdd(t, e, listDef(t, "daily", 0, 2, "daily", repeat, manual(t, "once")))
	p := e.GetOrCreateProfile("X")

	for _, id := range []challenge.ID{"R", "once"} {
		g, err := p.AddActiveChallenge("daily", id)
		require.NoError(t, err)
		require.True(t, g.Complete())
	}

	clock.Advance(time.Hour - time.Millisecond)
	assert.Equal(t, 0, p.RefreshRepeatable())
	assert.True(t, p.HasCompleted("daily", "R"))

	clock.Advance(time.Millisecond)
	assert.Equal(t, 1, p.RefreshRepeatable())
	assert.False(t, p.HasCompleted("daily", "R"))
	assert.True(t, p.HasCompleted("daily", "once"))
	assert.Equal(t, 1, rec.count(EventCooldownReset, ""))

	clock.Advance(1000 * time.Hour)
	assert.Equal(t, 0, p.RefreshRepeatable())
	assert.True(t, p.HasCompleted("daily", "once"))
}

func TestProfile_AddUnrestricted_RegrantsAfterCooldown(t *testing.T) {
	e, clock, _ := newTestEngine(t)
	def := auto(t, "login")
	def.Repeatable = true
	def.RepeatableEvery = 24 * time.Hour
	mustAdd(t, e, listDef(t, "daily", 0, 1, "daily", def))

	p := e.Join("X")
	require.True(t, p.InProgress("daily", "login"))
	require.Equal(t, 1, e.Progress("X", &challenge.Event{Type: "login"}))

	assert.Equal(t, 0, p.AddUnrestrictedChallenges())
	assert.False(t, p.InProgress("daily", "login"))

	clock.Advance(24 * time.Hour)
	assert.Equal(t, 1, p.AddUnrestrictedChallenges())
	assert.True(t, p.InProgress("daily", "login"))
	assert.False(t, p.HasCompleted("daily", "login"))
}

func TestProfile_AddUnrestricted_SkipsManualAndForbidden(t *testing.T) {
	e, _, _ := newTestEngine(t, WithPermissions(denyAll{}))
	locked := auto(t, "vip")
	locked.Permission = "board.vip"
	mustAdd(t, e, listDef(t, "daily", 0, 3, "daily",
		auto(t, "open"), locked, manual(t, "M"),
	))

	p := e.Join("X")

	assert.Equal(t, []challenge.ID{"open"}, ids(p.Active("daily")))
}

func TestProfile_AddUnrestricted_StopsAtCapacity(t *testing.T) {
	e, _, _ := newTestEngine(t)
	mustAdd(t, e, listDef(t, "daily", 0, 1, "daily",
		auto(t, "first"), auto(t, "second"),
	))

	p := e.Join("X")
	assert.Equal(t, []challenge.ID{"first"}, ids(p.Active("daily")))
	held := p.Active("daily")[0]

	assert.Equal(t, 0, p.AddUnrestrictedChallenges())
	require.Len(t, p.Active("daily"), 1)
	assert.Same(t, held, p.Active("daily")[0], "bootstrapping must not evict")
}

func TestEngine_RefreshProfiles_ExpiresAttempts(t *testing.T) {
	e, clock, rec := newTestEngine(t)
	def := manual(t, "timed")
	def.MaxDuration = time.Hour
	mustAdd(t, e, listDef(t, "daily", 0, 1, "daily", def))
	p := e.GetOrCreateProfile("X")
	g, err := p.AddActiveChallenge("daily", "timed")
	require.NoError(t, err)

	clock.Advance(30 * time.Minute)
	assert.Equal(t, 30*time.Minute, g.TimeRemaining())

	clock.Advance(30 * time.Minute)
	e.RefreshProfiles()

	assert.Empty(t, p.Active("daily"))
	assert.True(t, rec.hasNotice("X", NoticeExpired))
	assert.Equal(t, 1, rec.count(EventCancelled, ReasonExpired))
}

func TestEngine_Progress_DropsExpiredAttempt(t *testing.T) {
	e, clock, _ := newTestEngine(t)
	def := manual(t, "timed")
	def.MaxDuration = time.Minute
	mustAdd(t, e, listDef(t, "daily", 0, 1, "daily", def))
	p := e.GetOrCreateProfile("X")
	_, err := p.AddActiveChallenge("daily", "timed")
	require.NoError(t, err)

	clock.Advance(time.Minute)
	assert.Equal(t, 0, e.Progress("X", &challenge.Event{Type: "timed"}))
	assert.False(t, p.HasCompleted("daily", "timed"))
	assert.Empty(t, p.Active("daily"))
}

func TestEngine_Progress_LeavesEventUntouched(t *testing.T) {
	e, clock, _ := newTestEngine(t)
	mustAdd(t, e, listDef(t, "daily", 1, 1, "daily", auto(t, "walk")))
	e.Join("X")

	ev := &challenge.Event{Type: "walk", Participant: "X"}
	assert.Equal(t, 1, e.Progress("X", ev))
	assert.True(t, ev.Time.IsZero())

	p, _ := e.Profile("X")
	require.Len(t, p.Completed(), 1)
	assert.Equal(t, clock.Now(), p.Completed()[0].CompletedAt)
}
