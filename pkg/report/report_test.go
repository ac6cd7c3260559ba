package report

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"digital.vasic.challengeboard/pkg/challenge"
	"digital.vasic.challengeboard/pkg/engine"
)

const walkList = `
maxChallengesPerPlayer: 2
rotation-interval: weekly
challenges:
  walk:
    requirements:
      goal:
        kind: count
        event: step
        amount: 3
  swim:
    requirements:
      goal:
        kind: count
        event: stroke
`

var fixed = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func newBoard(t *testing.T) *engine.Engine {
	t.Helper()
	e := engine.New(engine.WithClock(func() time.Time { return fixed }))
	var doc yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte(walkList), &doc))
	_, err := e.LoadList("walk<&>", &doc)
	require.NoError(t, err)

	e.Join("ana")
	e.Join("bo")
	e.Progress("bo", &challenge.Event{Type: "stroke", Participant: "bo"})
	return e
}

func TestBuild(t *testing.T) {
	e := newBoard(t)
	r := Build(e, map[string]int{"rotations": 1, "completions": 1})

	assert.Equal(t, "board_20260314_093000", r.ID)
	assert.Equal(t, fixed, r.GeneratedAt)
	assert.Equal(t, "preserve-active", r.Policy)
	assert.False(t, r.Testing)

	require.Len(t, r.Lists, 1)
	l := r.Lists[0]
	assert.Equal(t, "walk<&>", l.ID)
	assert.Equal(t, "weekly", l.Interval)
	assert.Equal(t, 2, l.Challenges)
	assert.Equal(t, 2, l.MaxActive)
	assert.Len(t, l.Visible, 2)

	require.Len(t, r.Participants, 2)
	ana, bo := r.Participants[0], r.Participants[1]
	assert.Equal(t, "ana", ana.ID)
	assert.Len(t, ana.Active, 2)
	assert.Zero(t, ana.Completed)
	assert.Equal(t, "bo", bo.ID)
	assert.Len(t, bo.Active, 1)
	assert.Equal(t, 1, bo.Completed)
	assert.Contains(t, bo.Active[0].Progress, "goal")

	assert.Equal(t, 3, r.TotalActive)
	assert.Equal(t, 1, r.TotalCompleted)
	assert.Equal(t, []string{"completions", "rotations"}, r.CounterNames())
}

func TestBuild_Empty(t *testing.T) {
	r := Build(engine.New(), nil)
	assert.Empty(t, r.Lists)
	assert.Empty(t, r.Participants)
	assert.Empty(t, r.CounterNames())
}

func TestJSONReporter(t *testing.T) {
	r := Build(newBoard(t), nil)

	compact, err := NewJSONReporter(false).Generate(r)
	require.NoError(t, err)
	assert.NotContains(t, string(compact), "\n")

	var buf bytes.Buffer
	require.NoError(t, NewJSONReporter(true).Write(&buf, r))
	assert.Contains(t, buf.String(), "\n  ")

	var back BoardReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &back))
	assert.Equal(t, r.TotalActive, back.TotalActive)
	assert.NotContains(t, buf.String(), `"counters"`)
}

func TestHTMLReporter(t *testing.T) {
	r := Build(newBoard(t), map[string]int{"rewards<x>": 2})

	out, err := NewHTMLReporter().Generate(r)
	require.NoError(t, err)
	page := string(out)

	assert.Contains(t, page, "<!DOCTYPE html>")
	assert.Contains(t, page, "<h2>Lists</h2>")
	assert.Contains(t, page, "walk&lt;&amp;&gt;")
	assert.NotContains(t, page, "walk<&>")
	assert.Contains(t, page, "rewards&lt;x&gt;")
	assert.Contains(t, page, "<strong>Active attempts:</strong> 3")
	assert.Contains(t, page, "Generated by challengeboard")
}

func TestHTMLReporter_Empty(t *testing.T) {
	out, err := NewHTMLReporter().Generate(Build(engine.New(), nil))
	require.NoError(t, err)
	assert.Contains(t, string(out), "No lists loaded.")
	assert.NotContains(t, string(out), "<h2>Counters</h2>")
}

func TestForFormat(t *testing.T) {
	_, ok := ForFormat("json")
	assert.True(t, ok)
	rep, ok := ForFormat("html")
	assert.True(t, ok)
	assert.IsType(t, &HTMLReporter{}, rep)
	_, ok = ForFormat("xml")
	assert.False(t, ok)
}
