package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"digital.vasic.challengeboard/pkg/challenge"
	"digital.vasic.challengeboard/pkg/engine"
	"digital.vasic.challengeboard/pkg/reward"
)

type capture struct {
	mu     sync.Mutex
	paths  []string
	bodies []json.RawMessage
	auth   []string
	status int
}

func (c *capture) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body json.RawMessage
		_ = json.NewDecoder(r.Body).Decode(&body)
		c.mu.Lock()
		c.paths = append(c.paths, r.URL.Path)
		c.bodies = append(c.bodies, body)
		c.auth = append(c.auth, r.Header.Get("Authorization"))
		status := c.status
		c.mu.Unlock()
		if status == 0 {
			status = http.StatusNoContent
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte("rejected"))
	})
}

func (c *capture) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.paths)
}

func (c *capture) setStatus(code int) {
	c.mu.Lock()
	c.status = code
	c.mu.Unlock()
}

func (c *capture) request(i int) (path, auth string, body json.RawMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paths[i], c.auth[i], c.bodies[i]
}

func TestNewClient_Options(t *testing.T) {
	c := NewClient("http://game.local/",
		WithToken("secret"), WithTimeout(time.Second),
	)
	assert.Equal(t, "http://game.local", c.BaseURL())
	assert.Equal(t, "secret", c.token)
	assert.Equal(t, time.Second, c.httpClient.Timeout)

	hc := &http.Client{}
	assert.Same(t, hc, NewClient("x", WithHTTPClient(hc)).httpClient)
}

func TestClient_PostJSON(t *testing.T) {
	rec := &capture{}
	srv := httptest.NewServer(rec.handler())
	defer srv.Close()

	c := NewClient(srv.URL, WithToken("secret"))
	require.NoError(t, c.PostJSON(context.Background(), "/hook", map[string]int{"n": 1}))
	require.Equal(t, 1, rec.count())
	path, auth, body := rec.request(0)
	assert.Equal(t, "/hook", path)
	assert.Equal(t, "Bearer secret", auth)
	assert.JSONEq(t, `{"n":1}`, string(body))

	rec.setStatus(http.StatusBadGateway)
	err := c.PostJSON(context.Background(), "/hook", nil)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadGateway, se.Code)
	assert.Equal(t, "rejected", se.Body)
}

func TestNotifier_Run(t *testing.T) {
	rec := &capture{}
	srv := httptest.NewServer(rec.handler())
	defer srv.Close()

	n := NewNotifier(NewClient(srv.URL))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- n.Run(ctx) }()

	n.Notify("ann", engine.Notice{Kind: engine.NoticeCompleted, List: "daily", Challenge: "fish"})
	assert.Eventually(t, func() bool { return n.Sent() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	path, _, body := rec.request(0)
	var got NoticePayload
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "ann", got.Participant)
	assert.Equal(t, engine.NoticeCompleted, got.Notice.Kind)
	assert.Equal(t, NoticesPath, path)
}

func TestNotifier_DropsWhenFull(t *testing.T) {
	n := NewNotifier(NewClient("http://unused"), WithQueueSize(1))
	n.Notify("ann", engine.Notice{Kind: engine.NoticeExpired})
	n.Notify("ann", engine.Notice{Kind: engine.NoticeExpired})
	assert.Equal(t, int64(1), n.Dropped())
}

func TestNotifier_FailureCounted(t *testing.T) {
	rec := &capture{status: http.StatusInternalServerError}
	srv := httptest.NewServer(rec.handler())
	defer srv.Close()

	n := NewNotifier(NewClient(srv.URL))
	n.post(context.Background(), NoticePayload{Participant: "ann"})
	assert.Equal(t, int64(1), n.Failed())
	assert.Equal(t, int64(0), n.Sent())
}

func TestRewards(t *testing.T) {
	rec := &capture{}
	srv := httptest.NewServer(rec.handler())
	defer srv.Close()

	reg := reward.NewRegistry()
	reg.SetFallback(Rewards(NewClient(srv.URL)))
	require.NoError(t, reg.Dispatch("ann", challenge.Reward{
		Type: "currency", Data: map[string]any{"amount": 100},
	}))
	require.Equal(t, 1, rec.count())
	path, _, body := rec.request(0)
	assert.Equal(t, RewardsPath, path)
	assert.JSONEq(t,
		`{"participant":"ann","reward":{"type":"currency","data":{"amount":100}}}`,
		string(body),
	)

	rec.setStatus(http.StatusConflict)
	assert.Error(t, reg.Dispatch("ann", challenge.Reward{Type: "currency"}))
}

func TestRewards_NoClientTimeout(t *testing.T) {
	rec := &capture{}
	srv := httptest.NewServer(rec.handler())
	defer srv.Close()

	h := Rewards(NewClient(srv.URL, WithHTTPClient(&http.Client{})))
	require.NoError(t, h.Apply("bo", challenge.Reward{Type: "item"}))
	assert.Equal(t, 1, rec.count())
}
