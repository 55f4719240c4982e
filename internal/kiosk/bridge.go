// SPDX-License-Identifier: MIT

// Package kiosk bridges the render surface to the kiosk UI process over a
// local websocket. The daemon is the authority on playback state; the kiosk
// is a dumb terminal that executes draw commands and reports media end
// events back.
package kiosk

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/lumacast/lumacast/internal/log"
	"github.com/lumacast/lumacast/internal/model"
	"github.com/lumacast/lumacast/internal/render"
)

// Command is one draw instruction for the kiosk UI.
type Command struct {
	Op          string `json:"op"`
	ItemID      string `json:"itemId,omitempty"`
	ContentID   string `json:"contentId,omitempty"`
	ContentType string `json:"contentType,omitempty"`
	AssetPath   string `json:"assetPath,omitempty"`
	Mode        string `json:"mode,omitempty"`
	Page        int    `json:"page,omitempty"`
	Kind        string `json:"kind,omitempty"`
	Detail      string `json:"detail,omitempty"`

	Transition         string `json:"transition,omitempty"`
	TransitionDuration int    `json:"transitionDuration,omitempty"`
}

// mediaEvent is what the kiosk sends back.
type mediaEvent struct {
	Event  string `json:"event"`
	ItemID string `json:"itemId"`
}

const (
	OpShowImage    = "show_image"
	OpPlayVideo    = "play_video"
	OpShowEmbed    = "show_embed"
	OpShowDocument = "show_document_page"
	OpPlaceholder  = "show_placeholder"
	OpClear        = "clear"
)

// AssetResolver maps a content id to a local asset path, "" when the asset
// is not preloaded and the kiosk should stream from the console directly.
type AssetResolver func(contentID string) string

// Bridge implements render.Surface over at most one attached kiosk session.
// Commands issued while no kiosk is attached are retained; a kiosk that
// (re)attaches immediately receives the latest command so the screen
// converges without waiting for the next transition.
type Bridge struct {
	resolve AssetResolver
	logger  zerolog.Logger

	mu      sync.Mutex
	sess    *session
	last    *Command
	pending map[string]func() // item id -> end callback
}

type session struct {
	conn *websocket.Conn
}

// NewBridge creates a kiosk bridge. resolve may be nil.
func NewBridge(resolve AssetResolver) *Bridge {
	if resolve == nil {
		resolve = func(string) string { return "" }
	}
	return &Bridge{
		resolve: resolve,
		logger:  log.WithComponent("kiosk"),
		pending: make(map[string]func()),
	}
}

// Attach is the websocket handler the local API mounts. A new kiosk
// connection replaces any previous one.
func (b *Bridge) Attach(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		b.logger.Warn().Err(err).Str(log.FieldEvent, "kiosk.accept_failed").Msg("kiosk attach failed")
		return
	}
	s := &session{conn: conn}

	b.mu.Lock()
	if b.sess != nil {
		_ = b.sess.conn.Close(websocket.StatusPolicyViolation, "replaced by new kiosk")
	}
	b.sess = s
	replay := b.last
	b.mu.Unlock()

	b.logger.Info().Str(log.FieldEvent, "kiosk.attached").Msg("kiosk attached")
	if replay != nil {
		b.write(s, *replay)
	}

	b.readLoop(r.Context(), s)
}

// readLoop consumes media end events until the kiosk goes away.
func (b *Bridge) readLoop(ctx context.Context, s *session) {
	defer b.detach(s)
	for {
		var ev mediaEvent
		if err := wsjson.Read(ctx, s.conn, &ev); err != nil {
			return
		}
		if ev.Event != "media_end" {
			continue
		}
		b.mu.Lock()
		done := b.pending[ev.ItemID]
		delete(b.pending, ev.ItemID)
		b.mu.Unlock()
		if done != nil {
			done()
		}
	}
}

func (b *Bridge) detach(s *session) {
	b.mu.Lock()
	if b.sess == s {
		b.sess = nil
	}
	b.mu.Unlock()
	_ = s.conn.Close(websocket.StatusNormalClosure, "")
	b.logger.Info().Str(log.FieldEvent, "kiosk.detached").Msg("kiosk detached")
}

// ShowImage implements render.Surface.
func (b *Bridge) ShowImage(item *model.Item) {
	b.send(b.itemCommand(OpShowImage, item))
}

// PlayVideo implements render.Surface. onEnd fires when the kiosk reports
// end-of-stream for this item.
func (b *Bridge) PlayVideo(item *model.Item, mode render.PresentationMode, onEnd func()) {
	b.registerEnd(item.ID, onEnd)
	cmd := b.itemCommand(OpPlayVideo, item)
	cmd.Mode = string(mode)
	b.send(cmd)
}

// ShowEmbed implements render.Surface.
func (b *Bridge) ShowEmbed(item *model.Item, onEnd func()) {
	b.registerEnd(item.ID, onEnd)
	b.send(b.itemCommand(OpShowEmbed, item))
}

// ShowDocumentPage implements render.Surface.
func (b *Bridge) ShowDocumentPage(item *model.Item, page int) {
	cmd := b.itemCommand(OpShowDocument, item)
	cmd.Page = page
	b.send(cmd)
}

// ShowPlaceholder implements render.Surface.
func (b *Bridge) ShowPlaceholder(kind render.PlaceholderKind, detail string) {
	b.send(Command{Op: OpPlaceholder, Kind: string(kind), Detail: detail})
}

// Clear implements render.Surface.
func (b *Bridge) Clear() {
	b.mu.Lock()
	b.pending = make(map[string]func())
	b.mu.Unlock()
	b.send(Command{Op: OpClear})
}

func (b *Bridge) itemCommand(op string, item *model.Item) Command {
	return Command{
		Op:                 op,
		ItemID:             item.ID,
		ContentID:          item.ContentID,
		ContentType:        string(item.Type),
		AssetPath:          b.resolve(item.ContentID),
		Transition:         item.Transition,
		TransitionDuration: item.TransitionDuration,
	}
}

func (b *Bridge) registerEnd(itemID string, onEnd func()) {
	if onEnd == nil {
		return
	}
	b.mu.Lock()
	b.pending[itemID] = onEnd
	b.mu.Unlock()
}

func (b *Bridge) send(cmd Command) {
	b.mu.Lock()
	c := cmd
	b.last = &c
	s := b.sess
	b.mu.Unlock()

	if s == nil {
		b.logger.Debug().Str(log.FieldEvent, "kiosk.no_session").Str("op", cmd.Op).Msg("no kiosk attached, command retained")
		return
	}
	b.write(s, cmd)
}

func (b *Bridge) write(s *session, cmd Command) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := wsjson.Write(ctx, s.conn, cmd); err != nil {
		b.logger.Warn().Err(err).Str(log.FieldEvent, "kiosk.write_failed").Str("op", cmd.Op).Msg("kiosk write failed, dropping session")
		b.detach(s)
	}
}
