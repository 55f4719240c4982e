// SPDX-License-Identifier: MIT

// Package push maintains the persistent duplex connection between a display
// and the management console. Exactly one Client exists per mounted player;
// it owns dialing, heartbeats and the reconnect policy, and surfaces inbound
// frames as a single ordered event stream.
package push

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/lumacast/lumacast/internal/log"
	"github.com/lumacast/lumacast/internal/metrics"
)

// Options configures a push channel client.
type Options struct {
	// BaseURL is the console base URL (http or https); the channel path is
	// derived from it.
	BaseURL   string
	DisplayID string
	Token     string

	HeartbeatInterval time.Duration
	ReconnectAttempts int
	ReconnectDelay    time.Duration

	// ConnectGrace suppresses the offline-fallback signal while the very
	// first connection is still being established.
	ConnectGrace time.Duration

	DialTimeout time.Duration
}

func (o *Options) withDefaults() {
	if o.HeartbeatInterval <= 0 {
		o.HeartbeatInterval = 30 * time.Second
	}
	if o.ReconnectAttempts <= 0 {
		o.ReconnectAttempts = 10
	}
	if o.ReconnectDelay <= 0 {
		o.ReconnectDelay = 3 * time.Second
	}
	if o.DialTimeout <= 0 {
		o.DialTimeout = 10 * time.Second
	}
}

// Client is the push channel client. Construct with New, drive with Run.
type Client struct {
	opts   Options
	logger zerolog.Logger
	events chan Event

	mu            sync.Mutex
	conn          *websocket.Conn
	status        Status
	everConnected bool
	started       time.Time
}

// New creates a client. The connection is not opened until Run.
func New(opts Options) *Client {
	opts.withDefaults()
	return &Client{
		opts:   opts,
		logger: log.WithDisplay("push", opts.DisplayID),
		events: make(chan Event, 64),
		status: StatusConnecting,
	}
}

// Events returns the ordered stream of status changes and inbound messages.
// The stream is closed when Run returns.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Status returns the current connection status.
func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Run connects and serves the channel until ctx is cancelled. Reconnection
// is attempted indefinitely; the attempt counter only bounds one cycle and
// resets after every successful connect.
func (c *Client) Run(ctx context.Context) error {
	defer close(c.events)
	c.mu.Lock()
	c.started = time.Now()
	c.mu.Unlock()

	attempt := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		c.transition(ctx, StatusConnecting)

		conn, err := c.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			attempt++
			metrics.RecordReconnect("failure")
			c.logger.Warn().
				Err(err).
				Int(log.FieldAttempt, attempt).
				Str(log.FieldEvent, "push.dial_failed").
				Msg("push channel dial failed")
			if attempt >= c.opts.ReconnectAttempts {
				// Cycle exhausted. Surface the error state, then start a
				// fresh cycle: there is no give-up-forever state.
				c.transition(ctx, StatusError)
				attempt = 0
			} else {
				c.transition(ctx, StatusDisconnected)
			}
			if !sleep(ctx, c.opts.ReconnectDelay) {
				return ctx.Err()
			}
			continue
		}

		attempt = 0
		metrics.RecordReconnect("success")
		c.setConn(conn)
		c.transition(ctx, StatusConnected)
		c.logger.Info().Str(log.FieldEvent, "push.connected").Msg("push channel connected")

		serveErr := c.serve(ctx, conn)
		c.setConn(nil)
		_ = conn.Close(websocket.StatusGoingAway, "reconnect")

		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn().
			Err(serveErr).
			Str(log.FieldEvent, "push.dropped").
			Msg("push channel dropped")
		c.transition(ctx, StatusDisconnected)
		if !sleep(ctx, c.opts.ReconnectDelay) {
			return ctx.Err()
		}
	}
}

// SendStatus pushes a playback state snapshot to the console. Best-effort:
// failures are counted and logged, never returned.
func (c *Client) SendStatus(ctx context.Context, su StatusUpdate) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		metrics.StatusSendFailuresTotal.Inc()
		c.logger.Debug().Str(log.FieldEvent, "push.status_skipped").Msg("status update skipped, not connected")
		return
	}
	wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := wsjson.Write(wctx, conn, su); err != nil {
		metrics.StatusSendFailuresTotal.Inc()
		c.logger.Warn().Err(err).Str(log.FieldEvent, "push.status_send_failed").Msg("status update send failed")
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := channelURL(c.opts.BaseURL, c.opts.DisplayID)
	if err != nil {
		return nil, err
	}
	header := http.Header{}
	if c.opts.Token != "" {
		header.Set("Authorization", "Bearer "+c.opts.Token)
	}
	dctx, cancel := context.WithTimeout(ctx, c.opts.DialTimeout)
	defer cancel()
	conn, _, err := websocket.Dial(dctx, u, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// serve runs the heartbeat and read loop until either fails.
func (c *Client) serve(ctx context.Context, conn *websocket.Conn) error {
	sctx, cancel := context.WithCancel(ctx)
	defer cancel()

	hbErr := make(chan error, 1)
	go func() {
		ticker := time.NewTicker(c.opts.HeartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-sctx.Done():
				return
			case <-ticker.C:
				pctx, pcancel := context.WithTimeout(sctx, c.opts.HeartbeatInterval/2)
				err := conn.Ping(pctx)
				pcancel()
				if err != nil {
					select {
					case hbErr <- fmt.Errorf("heartbeat: %w", err):
					default:
					}
					cancel()
					return
				}
			}
		}
	}()

	for {
		_, raw, err := conn.Read(sctx)
		if err != nil {
			select {
			case herr := <-hbErr:
				return herr
			default:
			}
			return err
		}
		ev, err := DecodeMessage(raw)
		if err != nil {
			metrics.RecordMessage("unknown", "invalid")
			c.logger.Warn().Err(err).Str(log.FieldEvent, "push.bad_frame").Msg("dropping undecodable frame")
			continue
		}
		if !c.addressedToUs(ev) {
			metrics.RecordMessage(messageTypeOf(ev), "ignored")
			c.logger.Debug().Str(log.FieldEvent, "push.foreign_message").Msg("ignoring message for another display")
			continue
		}
		metrics.RecordMessage(messageTypeOf(ev), "applied")
		if !c.emit(ctx, ev) {
			return ctx.Err()
		}
	}
}

// addressedToUs filters unicast messages for other displays. Emergency stops
// pass through with their target set intact; the sequencer checks targeting
// so an untargeted stop is an observable no-op.
func (c *Client) addressedToUs(ev Event) bool {
	switch m := ev.(type) {
	case DisplayControl:
		return m.DisplayID == c.opts.DisplayID
	case PlaylistUpdate:
		if len(m.DisplayIDs) == 0 {
			return true
		}
		for _, id := range m.DisplayIDs {
			if id == c.opts.DisplayID {
				return true
			}
		}
		return false
	default:
		return true
	}
}

func (c *Client) emit(ctx context.Context, ev Event) bool {
	select {
	case c.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func (c *Client) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	if conn != nil {
		c.everConnected = true
	}
	c.mu.Unlock()
}

func (c *Client) transition(ctx context.Context, next Status) {
	c.mu.Lock()
	prev := c.status
	if prev == next {
		c.mu.Unlock()
		return
	}
	c.status = next
	grace := !c.everConnected && time.Since(c.started) < c.opts.ConnectGrace
	c.mu.Unlock()

	metrics.SetConnectionState(string(next), AllStatusStrings())
	c.logger.Debug().
		Str(log.FieldOldState, string(prev)).
		Str(log.FieldNewState, string(next)).
		Str(log.FieldEvent, "push.status").
		Msg("connection status changed")
	c.emit(ctx, StatusChange{Old: prev, New: next, Grace: grace})
}

func channelURL(base, displayID string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse console URL: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", errors.New("console URL must be http(s)")
	}
	u.Path = "/api/displays/" + displayID + "/channel"
	return u.String(), nil
}

func messageTypeOf(ev Event) string {
	switch ev.(type) {
	case PlaylistUpdate:
		return string(TypePlaylistUpdate)
	case DisplayControl:
		return string(TypeDisplayControl)
	case EmergencyStop:
		return string(TypeEmergencyStop)
	default:
		return "status"
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
