package reward

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"digital.vasic.challengeboard/pkg/challenge"
	"digital.vasic.challengeboard/pkg/logging"
)

type recordingHandler struct {
	got []string
	err error
}

func (h *recordingHandler) Apply(participant string, r challenge.Reward) error {
	h.got = append(h.got, participant+":"+r.Type)
	return h.err
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register("currency", &recordingHandler{}))
	assert.Equal(t, 1, r.Count())

	assert.Error(t, r.Register("currency", &recordingHandler{}))
	assert.Error(t, r.Register("item", nil))
	assert.Error(t, r.Register("", &recordingHandler{}))

	require.NoError(t, r.Register("item", &recordingHandler{}))
	assert.Equal(t, []string{"currency", "item"}, r.Types())

	_, ok := r.Get("item")
	assert.True(t, ok)
	_, ok = r.Get("title")
	assert.False(t, ok)
}

func TestRegistry_Dispatch(t *testing.T) {
	r := NewRegistry()
	currency := &recordingHandler{}
	require.NoError(t, r.Register("currency", currency))

	require.NoError(t, r.Dispatch("ann", challenge.Reward{Type: "currency"}))
	assert.Equal(t, []string{"ann:currency"}, currency.got)

	err := r.Dispatch("ann", challenge.Reward{Type: "title"})
	assert.ErrorIs(t, err, ErrNoHandler)

	fallback := &recordingHandler{}
	r.SetFallback(fallback)
	require.NoError(t, r.Dispatch("bob", challenge.Reward{Type: "title"}))
	assert.Equal(t, []string{"bob:title"}, fallback.got)
}

func TestRegistry_Dispatch_HandlerError(t *testing.T) {
	r := NewRegistry()
	boom := errors.New("inventory full")
	require.NoError(t, r.Register("item", &recordingHandler{err: boom}))

	err := r.Dispatch("ann", challenge.Reward{Type: "item"})
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "apply item reward")
}

func TestLog(t *testing.T) {
	h := Log(logging.NullLogger{})
	assert.NoError(t, h.Apply("ann", challenge.Reward{Type: "currency"}))
}
