package ingest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relayline/relayline/internal/config"
	"github.com/relayline/relayline/internal/domain"
	"github.com/relayline/relayline/internal/logging"
	"github.com/relayline/relayline/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLog() *logging.Logger {
	return logging.New(io.Discard, "error", "json")
}

func testQueue(t *testing.T) (*store.QueueStore, *store.AccountStore) {
	t.Helper()
	db, err := store.Open(":memory:", testLog())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return store.NewQueueStore(db), store.NewAccountStore(db)
}

// fakeBridge serves a websocket endpoint that hands each connection to fn.
func fakeBridge(t *testing.T, fn func(conn *websocket.Conn)) (*httptest.Server, string) {
	t.Helper()
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		fn(conn)
	}))
	t.Cleanup(srv.Close)
	return srv, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func eventFrame(ev domain.RawMessageEvent) bridgeFrame {
	return bridgeFrame{Type: frameEvent, Event: &ev}
}

func TestValidateEvent(t *testing.T) {
	valid := domain.RawMessageEvent{ID: "m1", ChannelID: "100/200", Kind: domain.EventMessage}
	assert.NoError(t, validateEvent(valid))

	cases := map[string]domain.RawMessageEvent{
		"empty id":          {ChannelID: "100", Kind: domain.EventMessage},
		"bad channel":       {ID: "m1", ChannelID: "lobby!", Kind: domain.EventMessage},
		"empty channel":     {ID: "m1", Kind: domain.EventMessage},
		"unknown kind":      {ID: "m1", ChannelID: "100", Kind: "sticker"},
		"triple path":       {ID: "m1", ChannelID: "1/2/3", Kind: domain.EventMessage},
		"non-numeric parts": {ID: "m1", ChannelID: "12a/34", Kind: domain.EventMessage},
	}
	for name, ev := range cases {
		assert.Error(t, validateEvent(ev), name)
	}
}

func TestSession_EnqueuesOnlyValidEvents(t *testing.T) {
	queue, _ := testQueue(t)

	_, url := fakeBridge(t, func(conn *websocket.Conn) {
		var sub subscribeFrame
		require.NoError(t, conn.ReadJSON(&sub))
		assert.Equal(t, frameSubscribe, sub.Type)
		assert.Equal(t, "acct1", sub.AccountID)

		conn.WriteJSON(eventFrame(domain.RawMessageEvent{
			ID: "m1", ChannelID: "100/200", Kind: domain.EventMessage, Body: "hi",
		}))
		conn.WriteJSON(eventFrame(domain.RawMessageEvent{
			ChannelID: "100", Kind: domain.EventMessage, Body: "no id",
		}))
		conn.WriteJSON(eventFrame(domain.RawMessageEvent{
			ID: "m2", ChannelID: "not-a-channel", Kind: domain.EventMessage,
		}))
	})

	s := NewSession(config.AccountConfig{ID: "acct1", Credential: "blob"}, url, queue, testLog())
	err := s.Run(context.Background())
	require.Error(t, err, "bridge hangup surfaces as an error for the supervisor")

	depth, err := queue.Depth()
	require.NoError(t, err)
	assert.Equal(t, 1, depth, "only the valid event is queued")

	h := s.Health()
	assert.Equal(t, int64(1), h.MessageCount)
	assert.Equal(t, int64(2), h.ErrorCount)
}

func TestSession_HealthAndErrorFrames(t *testing.T) {
	queue, _ := testQueue(t)

	_, url := fakeBridge(t, func(conn *websocket.Conn) {
		var sub subscribeFrame
		conn.ReadJSON(&sub)
		conn.WriteJSON(bridgeFrame{Type: frameHealth, Health: &healthSample{Quality: 0.75}})
		conn.WriteJSON(bridgeFrame{Type: frameError, Error: &bridgeError{Code: "banned", Message: "account banned"}})
	})

	s := NewSession(config.AccountConfig{ID: "acct1"}, url, queue, testLog())
	err := s.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "banned")
	assert.Equal(t, 0.75, s.Health().Quality)
}

func TestSession_StampsAccountID(t *testing.T) {
	queue, _ := testQueue(t)

	_, url := fakeBridge(t, func(conn *websocket.Conn) {
		var sub subscribeFrame
		conn.ReadJSON(&sub)
		conn.WriteJSON(eventFrame(domain.RawMessageEvent{
			ID: "m1", ChannelID: "42", Kind: domain.EventMessage,
		}))
	})

	s := NewSession(config.AccountConfig{ID: "acct9"}, url, queue, testLog())
	s.Run(context.Background())

	batch, err := queue.Dequeue(1)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, "acct9", batch[0].Event.AccountID)
}

func TestSession_CancelStopsCleanly(t *testing.T) {
	queue, _ := testQueue(t)

	_, url := fakeBridge(t, func(conn *websocket.Conn) {
		var sub subscribeFrame
		conn.ReadJSON(&sub)
		// Hold the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	s := NewSession(config.AccountConfig{ID: "acct1"}, url, queue, testLog())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err, "cancellation is a clean shutdown, not a failure")
	case <-time.After(3 * time.Second):
		t.Fatal("session did not stop")
	}
}

func TestOrchestrator_AddIsIdempotentAndRemoveWaits(t *testing.T) {
	queue, accounts := testQueue(t)

	_, url := fakeBridge(t, func(conn *websocket.Conn) {
		var sub subscribeFrame
		conn.ReadJSON(&sub)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	o := NewOrchestrator(config.IngestConfig{BridgeURL: url, HealthSampleSeconds: 1}, queue, accounts, testLog())
	ctx := context.Background()

	require.NoError(t, o.Add(ctx, config.AccountConfig{ID: "a1", Name: "one"}))
	require.NoError(t, o.Add(ctx, config.AccountConfig{ID: "a1", Name: "one"}))
	assert.Len(t, o.Running(), 1)

	require.Eventually(t, func() bool {
		acct := accounts.Get("a1")
		return acct != nil && acct.State == domain.AccountOnline
	}, 3*time.Second, 20*time.Millisecond)

	o.Remove("a1")
	assert.Empty(t, o.Running())
	assert.Equal(t, domain.AccountOffline, accounts.Get("a1").State)

	// Second stop of a stopped account is a no-op
	o.Remove("a1")
	o.Stop()
	o.Stop()
}

func TestOrchestrator_FailuresAreIsolatedPerAccount(t *testing.T) {
	queue, accounts := testQueue(t)

	_, goodURL := fakeBridge(t, func(conn *websocket.Conn) {
		var sub subscribeFrame
		conn.ReadJSON(&sub)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	o := NewOrchestrator(config.IngestConfig{BridgeURL: goodURL, HealthSampleSeconds: 1, RestartMaxSeconds: 1}, queue, accounts, testLog())
	defer o.Stop()
	ctx := context.Background()

	require.NoError(t, o.Add(ctx, config.AccountConfig{ID: "healthy"}))

	// Point the second account at a dead bridge by swapping the URL the
	// orchestrator hands to new sessions.
	o.cfg.BridgeURL = "ws://127.0.0.1:1/nowhere"
	require.NoError(t, o.Add(ctx, config.AccountConfig{ID: "doomed"}))

	require.Eventually(t, func() bool {
		acct := accounts.Get("doomed")
		return acct != nil && acct.State == domain.AccountError
	}, 5*time.Second, 50*time.Millisecond)

	healthy := accounts.Get("healthy")
	require.NotNil(t, healthy)
	assert.Equal(t, domain.AccountOnline, healthy.State, "one account's failure never touches another")
	assert.Len(t, o.Running(), 2, "the failed account stays supervised for respawn")
}

func TestBridgeFrameRoundTrip(t *testing.T) {
	raw := `{"type":"event","event":{"id":"m1","channelId":"7","kind":"message","sender":"u","body":"x","timestamp":"2025-06-01T12:00:00Z"}}`
	var f bridgeFrame
	require.NoError(t, json.Unmarshal([]byte(raw), &f))
	require.NotNil(t, f.Event)
	assert.Equal(t, "m1", f.Event.ID)
	assert.Equal(t, domain.EventMessage, f.Event.Kind)
}
