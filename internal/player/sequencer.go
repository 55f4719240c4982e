// SPDX-License-Identifier: MIT

package player

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/lumacast/lumacast/internal/cache"
	"github.com/lumacast/lumacast/internal/log"
	"github.com/lumacast/lumacast/internal/metrics"
	"github.com/lumacast/lumacast/internal/model"
	"github.com/lumacast/lumacast/internal/push"
	"github.com/lumacast/lumacast/internal/recovery"
	"github.com/lumacast/lumacast/internal/render"
)

// Channel is the push channel surface the sequencer consumes.
type Channel interface {
	Events() <-chan push.Event
	SendStatus(ctx context.Context, su push.StatusUpdate)
}

// PlaylistCache is the offline fallback store.
type PlaylistCache interface {
	Put(displayID string, playlist model.Playlist) error
	Get(displayID string) (cache.Snapshot, bool)
}

// Guard wraps renderer invocations in a recovery boundary. A panic inside
// Do is converted into the returned error.
type Guard interface {
	Do(fn func() error) error
}

// Config wires a Sequencer.
type Config struct {
	DisplayID string
	Channel   Channel
	Cache     PlaylistCache
	Registry  *render.Registry
	Surface   render.Surface
	Tracker   Tracker
	Preloader Preloader
	Guard     Guard

	StallTimeout time.Duration
	CacheMaxAge  time.Duration

	// Clock overrides time for tests.
	Clock interface{ Now() time.Time }
}

// internal loop events
type (
	timerFired   struct{ gen uint64 }
	rendererDone struct{ itemID string }
	refresh      struct{}
	localControl struct {
		action push.ControlAction
		value  *int
	}
)

// Sequencer owns the playback event loop. All machine state is mutated from
// exactly one goroutine: the one running Run. Timers, renderer completion
// callbacks and local control enqueue events instead of touching state.
type Sequencer struct {
	cfg     Config
	machine *Machine
	logger  zerolog.Logger

	events chan any

	// snap is the published state copy; the loop stores a fresh pointer
	// after every handled event, concurrent readers only load.
	snap atomic.Pointer[Snapshot]

	// loop-owned; never touched outside Run's goroutine
	ctx      context.Context
	timer    *time.Timer
	timerGen uint64

	activeRenderer render.Renderer

	// last render-fault placeholder, repainted while the stall holds
	failKind   render.PlaceholderKind
	failDetail string
}

// New creates a sequencer.
func New(cfg Config) *Sequencer {
	s := &Sequencer{
		cfg:    cfg,
		logger: log.WithDisplay("player", cfg.DisplayID),
		events: make(chan any, 16),
		ctx:    context.Background(),
	}
	s.machine = NewMachine(MachineConfig{
		DisplayID:    cfg.DisplayID,
		Tracker:      cfg.Tracker,
		Preloader:    cfg.Preloader,
		Notify:       s.notifyStatus,
		StallTimeout: cfg.StallTimeout,
		Clock:        cfg.Clock,
	})
	s.storeSnapshot()
	return s
}

// Snapshot returns the current playback state. Safe for concurrent use: the
// loop publishes an immutable copy after every handled event, so readers on
// other goroutines (the local status API) see a consistent, at worst
// slightly stale view without touching loop-owned state.
func (s *Sequencer) Snapshot() Snapshot {
	return *s.snap.Load()
}

func (s *Sequencer) storeSnapshot() {
	snap := s.machine.Snapshot()
	s.snap.Store(&snap)
}

// Control enqueues a local control action (keyboard surface, local API).
// It shares the dispatch path with remote control, so the resulting state
// transition is identical to the push-channel equivalent.
func (s *Sequencer) Control(action push.ControlAction, value *int) {
	select {
	case s.events <- localControl{action: action, value: value}:
	default:
		s.logger.Warn().
			Str(log.FieldAction, string(action)).
			Str(log.FieldEvent, "player.control_dropped").
			Msg("control queue full, dropping action")
	}
}

// Run mounts the initial playlist and processes events until ctx is
// cancelled. initial may be nil when no playlist is assigned yet; a
// playlist_update will mount one later.
func (s *Sequencer) Run(ctx context.Context, initial *model.Playlist) error {
	s.ctx = ctx
	s.logger.Info().Str(log.FieldEvent, "player.started").Msg("sequencer started")

	if initial != nil && !initial.Empty() {
		if err := s.cachePut(*initial); err != nil {
			s.logger.Warn().Err(err).Str(log.FieldEvent, "player.cache_write_failed").Msg("failed to cache initial playlist")
		}
	}
	s.apply(s.machine.Init(initial))

	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return ctx.Err()

		case ev, ok := <-s.cfg.Channel.Events():
			if !ok {
				// Channel client exited; only happens on shutdown.
				s.shutdown()
				return ctx.Err()
			}
			s.handlePush(ev)

		case ev := <-s.events:
			s.handleLocal(ev)
		}
	}
}

func (s *Sequencer) handlePush(ev push.Event) {
	defer s.storeSnapshot()
	switch msg := ev.(type) {
	case push.StatusChange:
		s.machine.SetConnection(msg.New)
		if msg.New.Offline() && !msg.Grace {
			s.maybeFallback()
		}
		// Without playable content the screen mirrors the channel state:
		// outage view while offline, back to the assignment view on
		// reconnect.
		if !s.machine.HasPlaylist() {
			s.render()
		}

	case push.PlaylistUpdate:
		pl := msg.Playlist
		if err := pl.Validate(); err != nil {
			s.logger.Error().Err(err).Str(log.FieldEvent, "player.bad_playlist").Msg("rejecting invalid playlist update")
			return
		}
		if err := s.cachePut(pl); err != nil {
			s.logger.Warn().Err(err).Str(log.FieldEvent, "player.cache_write_failed").Msg("failed to cache playlist")
		}
		s.apply(s.machine.Replace(&pl))

	case push.DisplayControl:
		s.apply(s.machine.Apply(msg.Action, msg.Value, "push"))

	case push.EmergencyStop:
		s.apply(s.machine.EmergencyStop(msg))
	}
}

func (s *Sequencer) handleLocal(ev any) {
	defer s.storeSnapshot()
	switch e := ev.(type) {
	case timerFired:
		// Stale timers are the principal re-entrancy hazard: a fire that
		// raced a manual transition must not double-advance.
		if e.gen != s.timerGen {
			return
		}
		if s.machine.Stalled() {
			s.apply(s.machine.advanceTimeout())
		} else {
			s.apply(s.machine.Advance())
		}

	case rendererDone:
		cur := s.machine.Current()
		if cur == nil || cur.ID != e.itemID {
			return
		}
		s.apply(s.machine.Advance())

	case refresh:
		// A recovery retry lifts a render-fault stall first, so render
		// re-attempts the renderer instead of repainting the failure view.
		if s.machine.StalledOnRenderError() {
			s.apply(s.machine.ClearRenderStall())
			return
		}
		s.render()

	case localControl:
		s.apply(s.machine.Apply(e.action, e.value, "local"))
	}
}

// Refresh re-renders the current item without advancing. Used by the
// recovery shell after a retry to repaint whatever the crashed renderer
// left behind.
func (s *Sequencer) Refresh() {
	s.enqueue(refresh{})
}

// maybeFallback swaps to the cached playlist on disconnect. At most one
// swap per disconnect; a cached playlist identical to the one on screen, a
// stale snapshot or an empty cache all leave state unchanged.
func (s *Sequencer) maybeFallback() {
	if s.cfg.Cache == nil || !s.machine.FallbackArmed() {
		return
	}
	snap, ok := s.cfg.Cache.Get(s.cfg.DisplayID)
	if !ok {
		return
	}
	if snap.Stale(s.cfg.CacheMaxAge) {
		s.logger.Warn().Str(log.FieldEvent, "player.cache_stale").Msg("cached playlist too old for fallback")
		return
	}
	if snap.Playlist.ID == s.machine.PlaylistID() {
		return
	}
	s.machine.TripFallback()
	metrics.CacheFallbacksTotal.Inc()
	s.logger.Info().
		Str(log.FieldPlaylistID, snap.Playlist.ID).
		Str(log.FieldEvent, "player.cache_fallback").
		Msg("offline, switching to cached playlist")
	pl := snap.Playlist
	s.apply(s.machine.Replace(&pl))
}

// apply executes a transition effect: timer bookkeeping first (clear before
// reschedule, always), then rendering.
func (s *Sequencer) apply(eff Effect) {
	defer s.storeSnapshot()
	if eff.ClearTimer {
		s.clearTimer()
	}
	if eff.TimerSet {
		gen := s.timerGen
		s.timer = time.AfterFunc(eff.Timer, func() {
			s.enqueue(timerFired{gen: gen})
		})
	}
	if eff.Render {
		s.render()
	}
}

func (s *Sequencer) clearTimer() {
	s.timerGen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Sequencer) enqueue(ev any) {
	select {
	case s.events <- ev:
	case <-s.ctx.Done():
	}
}

// render starts the renderer for the current item, or a placeholder when
// there is nothing renderable. Renderer invocations run inside the recovery
// guard so a panicking renderer degrades into a stall instead of crashing
// the player.
func (s *Sequencer) render() {
	if s.activeRenderer != nil {
		s.activeRenderer.Stop()
		s.activeRenderer = nil
	}

	if !s.machine.HasPlaylist() {
		if s.machine.Connection().Offline() {
			s.cfg.Surface.ShowPlaceholder(render.PlaceholderOffline, "connection to console lost, no cached playlist")
			return
		}
		s.cfg.Surface.ShowPlaceholder(render.PlaceholderNoPlaylist, "no playlist assigned")
		return
	}

	item := s.machine.Current()
	if s.machine.Stalled() {
		if s.machine.StalledOnRenderError() {
			s.cfg.Surface.ShowPlaceholder(s.failKind, s.failDetail)
			return
		}
		s.cfg.Surface.ShowPlaceholder(render.PlaceholderUnsupported, string(item.Type))
		return
	}

	renderer, ok := s.cfg.Registry.For(item.Type)
	if !ok {
		// Valid type without a renderer cannot happen with the standard
		// registry; treat it like an unsupported discriminator anyway.
		s.failKind, s.failDetail = render.PlaceholderUnsupported, string(item.Type)
		s.cfg.Surface.ShowPlaceholder(s.failKind, s.failDetail)
		s.apply(s.machine.StallRenderError())
		return
	}

	itemID := item.ID
	start := func() error {
		return renderer.Start(s.ctx, item, func() {
			s.enqueue(rendererDone{itemID: itemID})
		})
	}

	var err error
	if s.cfg.Guard != nil {
		err = s.cfg.Guard.Do(start)
	} else {
		err = start()
	}
	if err != nil {
		s.logger.Error().
			Err(err).
			Str(log.FieldItemID, item.ID).
			Str(log.FieldContentType, string(item.Type)).
			Str(log.FieldEvent, "player.render_failed").
			Msg("renderer failed to start, stalling")
		s.failKind, s.failDetail = placeholderForError(err), err.Error()
		s.cfg.Surface.ShowPlaceholder(s.failKind, s.failDetail)
		s.apply(s.machine.StallRenderError())
		return
	}
	s.activeRenderer = renderer
}

// placeholderForError picks the failure view for a renderer fault. The
// recovery classifier drives the choice; deadline errors get the timeout
// view regardless of message text.
func placeholderForError(err error) render.PlaceholderKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return render.PlaceholderTimeout
	}
	switch recovery.Classify(err) {
	case recovery.CategoryNetwork, recovery.CategoryPushChannel:
		return render.PlaceholderNetwork
	default:
		return render.PlaceholderLoadError
	}
}

func (s *Sequencer) notifyStatus(su push.StatusUpdate) {
	if s.cfg.Channel == nil {
		return
	}
	s.cfg.Channel.SendStatus(s.ctx, su)
}

func (s *Sequencer) cachePut(pl model.Playlist) error {
	if s.cfg.Cache == nil {
		return nil
	}
	return s.cfg.Cache.Put(s.cfg.DisplayID, pl)
}

func (s *Sequencer) shutdown() {
	s.clearTimer()
	if s.activeRenderer != nil {
		s.activeRenderer.Stop()
		s.activeRenderer = nil
	}
	s.logger.Info().Str(log.FieldEvent, "player.stopped").Msg("sequencer stopped")
}
