package report

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"digital.vasic.challengeboard/pkg/engine"
)

func TestAppendAndLoadHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.jsonl")

	entries, err := LoadHistory(path)
	require.NoError(t, err)
	assert.Empty(t, entries)

	for _, p := range []string{"ana", "bo"} {
		require.NoError(t, AppendToHistory(path, HistoricalEntry{
			Timestamp: fixed, Participant: p, List: "daily", ChallengeID: "fish",
		}))
	}

	entries, err = LoadHistory(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "ana", entries[0].Participant)
	assert.Equal(t, "fish", entries[1].ChallengeID)
	assert.True(t, fixed.Equal(entries[1].Timestamp))
}

func TestLoadHistory_BadLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{}\n\nnot json\n"), 0o644))

	_, err := LoadHistory(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3")
}

func TestHistory_RecordsCompletionsOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.jsonl")
	h := NewHistory(path, nil)
	assert.Equal(t, path, h.Path())

	h.Record(engine.Event{Kind: engine.EventStarted, Participant: "ana"})
	h.Record(engine.Event{
		Kind: engine.EventCompleted, Time: fixed,
		Participant: "ana", List: "daily", Challenge: "fish",
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, h.Run(ctx))

	entries, err := LoadHistory(path)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, fixed.Equal(entries[0].Timestamp))
	assert.Equal(t, "ana", entries[0].Participant)
	assert.Equal(t, "daily", entries[0].List)
	assert.Equal(t, "fish", entries[0].ChallengeID)
}

func TestHistory_Run(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.jsonl")
	h := NewHistory(path, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()

	h.Record(engine.Event{Kind: engine.EventCompleted, Participant: "bo"})
	assert.Eventually(t, func() bool {
		entries, _ := LoadHistory(path)
		return len(entries) == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestHistory_DropsWhenFull(t *testing.T) {
	h := NewHistory(filepath.Join(t.TempDir(), "h.jsonl"), nil)
	for i := 0; i < historyQueueSize+3; i++ {
		h.Record(engine.Event{Kind: engine.EventCompleted, Participant: "x"})
	}
	assert.Equal(t, int64(3), h.Dropped())
}
