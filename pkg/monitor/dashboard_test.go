package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"digital.vasic.challengeboard/pkg/challenge"
	"digital.vasic.challengeboard/pkg/engine"
)

func TestDashboard_UpdateFromEvent(t *testing.T) {
	d := NewDashboard()
	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	d.UpdateFromEvent(engine.Event{Kind: engine.EventRotated, List: "daily", Time: at})
	for _, id := range []challenge.ID{"A", "B", "C"} {
		d.UpdateFromEvent(engine.Event{
			Kind: engine.EventStarted, List: "daily", Challenge: id,
			Participant: "X", Time: at,
		})
	}
	d.UpdateFromEvent(engine.Event{
		Kind: engine.EventCompleted, List: "daily", Challenge: "A",
		Participant: "X", Time: at,
	})
	d.UpdateFromEvent(engine.Event{
		Kind: engine.EventCancelled, List: "daily", Challenge: "B",
		Participant: "X", Time: at,
	})

	snap := d.Snapshot()
	list := snap.Lists["daily"]
	assert.Equal(t, 1, list.Rotations)
	assert.Equal(t, at, list.LastRotation)
	assert.Equal(t, 3, list.Started)
	assert.Equal(t, 1, list.Active)

	x := snap.Participants["X"]
	assert.Equal(t, []challenge.ID{"C"}, x.Active)
	assert.Equal(t, 1, x.Completed)

	assert.Equal(t, 1, snap.Summary.Lists)
	assert.Equal(t, 1, snap.Summary.Participants)
	assert.InDelta(t, 50.0, snap.Summary.CompletionRate, 0.001)
	assert.Equal(t, []string{"daily"}, d.ListIDs())
}

func TestDashboard_SnapshotIsCopy(t *testing.T) {
	d := NewDashboard()
	d.UpdateFromEvent(engine.Event{
		Kind: engine.EventStarted, List: "daily", Challenge: "A", Participant: "X",
	})

	snap := d.Snapshot()
	snap.Participants["X"].Active[0] = "changed"

	assert.Equal(t,
		[]challenge.ID{"A"}, d.Snapshot().Participants["X"].Active,
	)
}

func TestBuildDashboard_ReplaysCollector(t *testing.T) {
	c := NewEventCollector(0)
	c.Observe(engine.Event{Kind: engine.EventRotated, List: "weekly"})
	c.Observe(engine.Event{Kind: engine.EventRotated, List: "weekly"})

	d := BuildDashboard(c)
	assert.Equal(t, 2, d.Snapshot().Lists["weekly"].Rotations)
}
