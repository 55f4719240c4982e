// SPDX-License-Identifier: MIT

package kiosk

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

	"github.com/lumacast/lumacast/internal/model"
	"github.com/lumacast/lumacast/internal/render"
)

func attach(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func readCommand(t *testing.T, conn *websocket.Conn) Command {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var cmd Command
	require.NoError(t, wsjson.Read(ctx, conn, &cmd))
	return cmd
}

func TestBridgeForwardsCommands(t *testing.T) {
	b := NewBridge(func(contentID string) string { return "/assets/" + contentID })
	srv := httptest.NewServer(http.HandlerFunc(b.Attach))
	defer srv.Close()

	conn := attach(t, srv.URL)
	// Wait until the bridge has adopted the session before drawing.
	require.Eventually(t, func() bool {
		b.mu.Lock()
		defer b.mu.Unlock()
		return b.sess != nil
	}, 5*time.Second, 10*time.Millisecond)

	b.ShowImage(&model.Item{ID: "a", ContentID: "c-a", Type: model.ContentImage, Transition: "fade", TransitionDuration: 500})

	cmd := readCommand(t, conn)
	assert.Equal(t, OpShowImage, cmd.Op)
	assert.Equal(t, "a", cmd.ItemID)
	assert.Equal(t, "/assets/c-a", cmd.AssetPath)
	assert.Equal(t, "fade", cmd.Transition)
	assert.Equal(t, 500, cmd.TransitionDuration)
}

func TestBridgeReplaysLastCommandOnAttach(t *testing.T) {
	b := NewBridge(nil)
	srv := httptest.NewServer(http.HandlerFunc(b.Attach))
	defer srv.Close()

	// Draw while no kiosk is attached; the command is retained.
	b.ShowPlaceholder(render.PlaceholderNoPlaylist, "no playlist assigned")

	conn := attach(t, srv.URL)
	cmd := readCommand(t, conn)
	assert.Equal(t, OpPlaceholder, cmd.Op)
	assert.Equal(t, string(render.PlaceholderNoPlaylist), cmd.Kind)
}

func TestBridgeMediaEndRoutesToCallback(t *testing.T) {
	b := NewBridge(nil)
	srv := httptest.NewServer(http.HandlerFunc(b.Attach))
	defer srv.Close()

	conn := attach(t, srv.URL)
	require.Eventually(t, func() bool {
		b.mu.Lock()
		defer b.mu.Unlock()
		return b.sess != nil
	}, 5*time.Second, 10*time.Millisecond)

	ended := make(chan struct{})
	b.PlayVideo(&model.Item{ID: "v", ContentID: "c-v", Type: model.ContentVideo}, render.ModeDirect, func() {
		close(ended)
	})

	cmd := readCommand(t, conn)
	require.Equal(t, OpPlayVideo, cmd.Op)
	assert.Equal(t, string(render.ModeDirect), cmd.Mode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, wsjson.Write(ctx, conn, mediaEvent{Event: "media_end", ItemID: "v"}))

	select {
	case <-ended:
	case <-time.After(5 * time.Second):
		t.Fatal("media end never reached the renderer callback")
	}

	// A duplicate end event finds no pending callback and is ignored.
	require.NoError(t, wsjson.Write(ctx, conn, mediaEvent{Event: "media_end", ItemID: "v"}))
}

func TestBridgeClearDropsPendingCallbacks(t *testing.T) {
	b := NewBridge(nil)

	fired := false
	b.PlayVideo(&model.Item{ID: "v", ContentID: "c-v", Type: model.ContentVideo}, render.ModeDirect, func() { fired = true })
	b.Clear()

	b.mu.Lock()
	pending := len(b.pending)
	b.mu.Unlock()
	assert.Zero(t, pending)
	assert.False(t, fired)
}
