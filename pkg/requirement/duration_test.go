package requirement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"digital.vasic.challengeboard/pkg/challenge"
)

func TestDuration_AccumulatesSeconds(t *testing.T) {
	req, err := NewRegistry().Build(challenge.RequirementSpec{
		Name:   "play",
		Kind:   KindDuration,
		Params: map[string]any{"seconds": 3600},
	})
	require.NoError(t, err)

	tick := &challenge.Event{
		Type:       DefaultDurationEvent,
		Attributes: map[string]any{"seconds": 1800},
	}
	require.True(t, req.Interested(tick))
	assert.False(t, req.Interested(&challenge.Event{
		Type: DefaultDurationEvent,
	}))

	prog := req.NewProgression()
	assert.False(t, prog.Update(tick))
	assert.Equal(t, "30m0s/1h0m0s", prog.Describe())
	assert.True(t, prog.Update(tick))
}

func TestDuration_RequiresSeconds(t *testing.T) {
	_, err := NewRegistry().Build(challenge.RequirementSpec{
		Name: "play", Kind: KindDuration,
	})
	assert.ErrorContains(t, err, "seconds")
}
