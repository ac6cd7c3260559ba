package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"digital.vasic.challengeboard/pkg/challenge"
	"digital.vasic.challengeboard/pkg/registry"
)

func catalogOf(t *testing.T, lists ...*registry.ListDefinition) *registry.Catalog {
	t.Helper()
	cat := registry.NewCatalog()
	for _, l := range lists {
		require.NoError(t, cat.Register(l))
	}
	return cat
}

func TestEngine_Reload_RepairsVisibleSubset(t *testing.T) {
	e, _, rec := newTestEngine(t)
	l := mustAdd(t, e, listDef(t, "daily", 2, 1, "daily",
		manual(t, "A"), manual(t, "B"), manual(t, "C"), manual(t, "D"),
	))
	before := l.VisibleIDs()
	drop := before[0]
	keep := before[1]

	var pool []*challenge.Definition
	for _, id := range []challenge.ID{"A", "B", "C", "D", "E"} {
		if id != drop {
			pool = append(pool, manual(t, string(id)))
		}
	}
	require.NoError(t, e.Reload(catalogOf(t,
		listDef(t, "daily", 2, 1, "daily", pool...),
	)))

	after := l.VisibleIDs()
	require.Len(t, after, 2)
	assert.Equal(t, keep, after[0])
	assert.NotContains(t, after, drop)
	assert.Equal(t, 1, rec.count(EventReloaded, ""))
	assert.Equal(t, 1, rec.count(EventRotated, ""))
	assert.False(t, e.Mode().Reloading)
}

func TestEngine_Reload_RebindsProgress(t *testing.T) {
	e, _, rec := newTestEngine(t)
	withKills := func() *challenge.Definition {
		def := manual(t, "A")
		def.Requirements = []challenge.Requirement{
			countReq(t, "kills", "kill", 3),
		}
		return def
	}
	mustAdd(t, e, listDef(t, "daily", 0, 2, "daily",
		withKills(), manual(t, "B"),
	))
	p := e.GetOrCreateProfile("X")
	for _, id := range []challenge.ID{"A", "B"} {
		_, err := p.AddActiveChallenge("daily", id)
		require.NoError(t, err)
	}
	e.Progress("X", &challenge.Event{Type: "kill"})
	e.Progress("X", &challenge.Event{Type: "kill"})

	require.NoError(t, e.Reload(catalogOf(t,
		listDef(t, "daily", 0, 2, "daily", withKills()),
	)))

	active := p.Active("daily")
	require.Len(t, active, 1)
	assert.Equal(t, "2/3", active[0].Describe()[0].Progress)
	assert.True(t, rec.hasNotice("X", NoticeNoLongerAvailable))
	assert.Equal(t, 1, rec.count(EventCancelled, ReasonRemoved))

	assert.Equal(t, 1, e.Progress("X", &challenge.Event{Type: "kill"}))
}

func TestEngine_Reload_AddsAndRemovesLists(t *testing.T) {
	e, _, _ := newTestEngine(t)
	mustAdd(t, e, listDef(t, "daily", 1, 1, "daily", manual(t, "A")))
	_, err := e.GetOrCreateProfile("X").AddActiveChallenge("daily", "A")
	require.NoError(t, err)

	require.NoError(t, e.Reload(catalogOf(t,
		listDef(t, "weekly", 2, 1, "weekly",
			manual(t, "W1"), manual(t, "W2"), manual(t, "W3"),
		),
	)))

	_, err = e.List("daily")
	assert.ErrorIs(t, err, ErrUnknownList)

	weekly, err := e.List("weekly")
	require.NoError(t, err)
	assert.Equal(t, []challenge.ID{"W1", "W2"}, weekly.VisibleIDs())

	p, _ := e.Profile("X")
	assert.Empty(t, p.AllActive())
}

func TestEngine_LoadList_FromYAML(t *testing.T) {
	const src = `
maxChallengesPerPlayer: 1
visible-missions: 1
rotation-interval: 2h30m
challenges:
  first:
    needs-selection: true
    requirements:
      goal:
        kind: count
        event: catch
        amount: 2
  broken:
    requirements:
      goal:
        kind: nonsense
`
	var doc yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte(src), &doc))

	e, _, _ := newTestEngine(t)
	l, err := e.LoadList("daily", &doc)
	require.NoError(t, err)

	assert.Equal(t, "daily", l.ID())
	assert.Len(t, l.Pool(), 1)
	assert.Len(t, l.Definition().Problems, 1)
	assert.Equal(t, []challenge.ID{"first"}, l.VisibleIDs())
	assert.Equal(t, 1, l.MaxActive())
}
