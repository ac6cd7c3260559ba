package sqlite

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"digital.vasic.challengeboard/pkg/challenge"
	"digital.vasic.challengeboard/pkg/store"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "board.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open("  ")
	assert.Error(t, err)
}

func TestStore_Rotations(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	last := time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC)

	require.NoError(t, s.SaveRotations(ctx, []store.RotationRecord{
		{List: "weekly", Visible: []string{"c"}, LastRotation: last},
		{List: "daily", Visible: []string{"a", "b"}, LastRotation: last},
	}))
	require.NoError(t, s.SaveRotations(ctx, []store.RotationRecord{
		{List: "daily", Visible: []string{"b"}, LastRotation: last},
	}))

	got, err := s.LoadRotations(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "daily", got[0].List)
	assert.Equal(t, []string{"b"}, got[0].Visible)
	assert.True(t, last.Equal(got[0].LastRotation))
}

func TestStore_Profiles(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	started := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	profiles := []store.ProfileRecord{
		{
			Participant: "p2",
			Completed: []store.CompletedRecord{
				{List: "daily", Challenge: "a", CompletedAt: started},
			},
		},
		{
			Participant: "p1",
			Active: []store.ProgressRecord{
				{
					List: "daily", Challenge: "z", StartedAt: started,
					Requirements: map[string]json.RawMessage{
						"r": json.RawMessage(`{"current":1}`),
					},
				},
				{List: "daily", Challenge: "a", StartedAt: started},
			},
			PendingRewards: []challenge.Reward{{Type: "item"}},
		},
	}
	require.NoError(t, s.SaveProfiles(ctx, profiles))

	got, err := s.LoadProfiles(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)

	p1 := got[0]
	assert.Equal(t, "p1", p1.Participant)
	require.Len(t, p1.Active, 2)
	assert.Equal(t, "z", p1.Active[0].Challenge, "slot order kept")
	assert.Equal(t, "a", p1.Active[1].Challenge)
	assert.JSONEq(t, `{"current":1}`, string(p1.Active[0].Requirements["r"]))
	assert.Equal(t, []challenge.Reward{{Type: "item"}}, p1.PendingRewards)

	p2 := got[1]
	assert.Empty(t, p2.Active)
	assert.Nil(t, p2.PendingRewards)
	require.Len(t, p2.Completed, 1)
	assert.True(t, started.Equal(p2.Completed[0].CompletedAt))

	require.NoError(t, s.SaveProfiles(ctx, profiles[:1]))
	got, err = s.LoadProfiles(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "p2", got[0].Participant)
}
