// SPDX-License-Identifier: MIT

package push

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// nextEvent pulls one event with a deadline so a broken stream fails fast
// instead of hanging the suite.
func nextEvent(t *testing.T, events <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-events:
		require.True(t, ok, "event stream closed unexpectedly")
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestClientServesOrderedEventStream(t *testing.T) {
	frames := [][]byte{
		[]byte(`{"type":"playlist_update","payload":{"playlist":{"id":"pl-1","items":[{"id":"a","contentId":"c-a","position":0,"duration":5,"type":"image"}]},"displayIds":["display-1"]}}`),
		[]byte(`{"type":"display_control","payload":{"displayId":"display-9","action":"pause"}}`),
		[]byte(`{"type":"not_a_thing","payload":{}}`),
		[]byte(`{"type":"emergency_stop","payload":{"displayIds":["display-9"],"reason":"drill"}}`),
	}

	received := make(chan StatusUpdate, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/displays/display-1/channel", r.URL.Path)
		assert.Equal(t, "Bearer sekrit", r.Header.Get("Authorization"))

		conn, err := websocket.Accept(w, r, nil)
		require.NoError(t, err)
		defer conn.Close(websocket.StatusNormalClosure, "")

		ctx := r.Context()
		for _, frame := range frames {
			require.NoError(t, conn.Write(ctx, websocket.MessageText, frame))
		}

		var su StatusUpdate
		if err := wsjson.Read(ctx, conn, &su); err == nil {
			received <- su
		}
		<-ctx.Done()
	}))
	defer srv.Close()

	c := New(Options{
		BaseURL:           srv.URL,
		DisplayID:         "display-1",
		Token:             "sekrit",
		HeartbeatInterval: time.Minute,
	})

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- c.Run(ctx) }()

	ev := nextEvent(t, c.Events())
	sc, ok := ev.(StatusChange)
	require.True(t, ok)
	assert.Equal(t, StatusConnecting, sc.Old)
	assert.Equal(t, StatusConnected, sc.New)
	assert.Equal(t, StatusConnected, c.Status())

	ev = nextEvent(t, c.Events())
	upd, ok := ev.(PlaylistUpdate)
	require.True(t, ok, "expected playlist update, got %T", ev)
	assert.Equal(t, "pl-1", upd.Playlist.ID)

	// The foreign display_control and the undecodable frame are dropped; the
	// emergency stop passes through even though it targets another display.
	ev = nextEvent(t, c.Events())
	stop, ok := ev.(EmergencyStop)
	require.True(t, ok, "expected emergency stop, got %T", ev)
	assert.Equal(t, "drill", stop.Reason)

	// Outbound status rides the same connection.
	c.SendStatus(ctx, StatusUpdate{DisplayID: "display-1", PlaylistID: "pl-1", Index: 2, Playing: true})
	select {
	case su := <-received:
		assert.Equal(t, 2, su.Index)
		assert.True(t, su.Playing)
	case <-time.After(5 * time.Second):
		t.Fatal("console never received the status update")
	}

	cancel()
	select {
	case err := <-runDone:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("client did not stop")
	}
	_, open := <-c.Events()
	assert.False(t, open, "event stream must close when Run returns")
}

func TestClientReconnectCycleSurfacesError(t *testing.T) {
	// Nothing listens on the URL, so every dial fails immediately.
	c := New(Options{
		BaseURL:           "http://127.0.0.1:1",
		DisplayID:         "display-1",
		ReconnectAttempts: 2,
		ReconnectDelay:    10 * time.Millisecond,
		DialTimeout:       250 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- c.Run(ctx) }()

	// First cycle: one plain disconnect, then the exhausted-cycle error.
	ev := nextEvent(t, c.Events())
	sc := ev.(StatusChange)
	assert.Equal(t, StatusDisconnected, sc.New)

	for {
		ev = nextEvent(t, c.Events())
		sc = ev.(StatusChange)
		if sc.New == StatusError {
			break
		}
	}

	cancel()
	select {
	case err := <-runDone:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("client did not stop")
	}
}

func TestClientGraceFlagDuringInitialConnect(t *testing.T) {
	c := New(Options{
		BaseURL:           "http://127.0.0.1:1",
		DisplayID:         "display-1",
		ReconnectAttempts: 5,
		ReconnectDelay:    10 * time.Millisecond,
		DialTimeout:       250 * time.Millisecond,
		ConnectGrace:      time.Hour,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runDone := make(chan error, 1)
	go func() { runDone <- c.Run(ctx) }()

	ev := nextEvent(t, c.Events())
	sc := ev.(StatusChange)
	assert.Equal(t, StatusDisconnected, sc.New)
	assert.True(t, sc.Grace, "failures before the first connect carry the grace flag")

	cancel()
	select {
	case err := <-runDone:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("client did not stop")
	}
}

func TestSendStatusWithoutConnectionIsNoop(t *testing.T) {
	c := New(Options{BaseURL: "http://console.local", DisplayID: "display-1"})
	// Must not panic or block.
	c.SendStatus(context.Background(), StatusUpdate{DisplayID: "display-1"})
}
