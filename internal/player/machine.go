// SPDX-License-Identifier: MIT

// Package player contains the playback sequencer: a single-threaded state
// machine that advances through playlist items on a timer, applies remote
// and local control actions, reconciles wholesale playlist replacements and
// falls back to cached content when the push channel drops.
//
// The package is split in two layers. Machine is the pure, synchronous
// state machine: every transition is an ordinary method call that mutates
// state and returns the Effect the caller must apply (timer scheduling,
// re-rendering). Sequencer owns the event loop goroutine and the one
// cancelable item timer, and is the only caller of Machine methods, which
// preserves the cooperative single-writer model end to end.
package player

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/lumacast/lumacast/internal/log"
	"github.com/lumacast/lumacast/internal/metrics"
	"github.com/lumacast/lumacast/internal/model"
	"github.com/lumacast/lumacast/internal/push"
)

// Transition causes, used for tracking and metrics.
const (
	causeInit      = "init"
	causeCompleted = "completed"
	causeSkipped   = "skipped"
	causeSeek      = "seek"
	causeReplace   = "replace"
	causeStop      = "stop"
	causeRestart   = "restart"
	causeTimeout   = "stall_timeout"
)

// Stall causes. An unsupported discriminator stalls until the playlist is
// fixed; a render fault stalls until the recovery shell retries the item.
const (
	stallNone        = ""
	stallUnsupported = "unsupported_type"
	stallRenderError = "render_error"
)

// View is one item-view record, emitted when playback leaves an item
// through natural completion or an explicit skip.
type View struct {
	DisplayID        string
	PlaylistID       string
	ItemID           string
	ContentID        string
	Duration         time.Duration // actual time on screen
	ExpectedDuration int           // planned seconds
	Completed        bool
	Skipped          bool
}

// Tracker receives view records. Implementations must not block; reports
// are fire-and-forget.
type Tracker interface {
	Report(v View)
}

// Preloader manages ahead-of-time asset fetching. The machine retains at
// most current, next and the item after next; everything it lets go of is
// released explicitly rather than left to collection.
type Preloader interface {
	Fetch(item *model.Item)
	Release(item *model.Item)
}

// Notify delivers a playback status snapshot after a state transition.
// Best-effort by contract.
type Notify func(su push.StatusUpdate)

// clock abstracts time for testability.
type clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Effect tells the caller what to apply after a transition. Any transition
// that changes the current item clears the outstanding timer first; Timer
// and TimerSet say whether a fresh one must be scheduled.
type Effect struct {
	// ClearTimer requests cancelling the outstanding item timer.
	ClearTimer bool

	// TimerSet schedules a fresh item timer for Timer after clearing.
	TimerSet bool
	Timer    time.Duration

	// Render requests (re)starting the renderer for the current item.
	Render bool
}

func noEffect() Effect { return Effect{} }

// MachineConfig wires a Machine's collaborators.
type MachineConfig struct {
	DisplayID string
	Tracker   Tracker
	Preloader Preloader
	Notify    Notify

	// StallTimeout bounds the unsupported-content stall. 0 keeps the
	// source behavior: stall until an operator fixes the playlist.
	StallTimeout time.Duration

	// Clock overrides time for tests.
	Clock interface{ Now() time.Time }
}

// Machine is the pure sequencer state machine. Not safe for concurrent use;
// the Sequencer loop is its single caller.
type Machine struct {
	displayID    string
	tracker      Tracker
	preloader    Preloader
	notify       Notify
	clock        clock
	stallTimeout time.Duration
	logger       zerolog.Logger

	playlist   *model.Playlist
	index      int
	playing    bool
	stalled    bool
	stallCause string
	viewStart  time.Time
	conn       push.Status

	current *model.Item
	next    *model.Item
	after   *model.Item

	// retained tracks items whose assets are currently preloaded, by id.
	retained map[string]*model.Item

	// fellBack guards the one cache swap allowed per disconnect transition.
	fellBack bool
}

// NewMachine creates a machine with no playlist. Call Init to mount one.
func NewMachine(cfg MachineConfig) *Machine {
	m := &Machine{
		displayID:    cfg.DisplayID,
		tracker:      cfg.Tracker,
		preloader:    cfg.Preloader,
		notify:       cfg.Notify,
		clock:        realClock{},
		stallTimeout: cfg.StallTimeout,
		logger:       log.WithDisplay("sequencer", cfg.DisplayID),
		conn:         push.StatusConnecting,
		retained:     make(map[string]*model.Item),
	}
	if cfg.Clock != nil {
		m.clock = cfg.Clock
	}
	return m
}

// Snapshot is the externally visible playback state.
type Snapshot struct {
	PlaylistID string      `json:"playlistId,omitempty"`
	Index      int         `json:"index"`
	Playing    bool        `json:"playing"`
	Stalled    bool        `json:"stalled"`
	Connection push.Status `json:"connection"`
}

// Snapshot returns the current playback state.
func (m *Machine) Snapshot() Snapshot {
	s := Snapshot{
		Index:      m.index,
		Playing:    m.playing,
		Stalled:    m.stalled,
		Connection: m.conn,
	}
	if m.playlist != nil {
		s.PlaylistID = m.playlist.ID
	}
	return s
}

// HasPlaylist reports whether a non-empty playlist is mounted.
func (m *Machine) HasPlaylist() bool {
	return !m.playlist.Empty()
}

// PlaylistID returns the mounted playlist's identity, or "".
func (m *Machine) PlaylistID() string {
	if m.playlist == nil {
		return ""
	}
	return m.playlist.ID
}

// Current returns the resolved current item, nil without a playlist.
func (m *Machine) Current() *model.Item { return m.current }

// Index returns the current item index.
func (m *Machine) Index() int { return m.index }

// Playing returns the play/pause flag.
func (m *Machine) Playing() bool { return m.playing }

// Stalled reports whether playback is stalled in place, either on an
// unsupported content type or on a render fault.
func (m *Machine) Stalled() bool { return m.stalled }

// StalledOnRenderError reports whether the current stall came from a render
// fault rather than an unsupported discriminator. Only render-fault stalls
// are lifted by a recovery retry.
func (m *Machine) StalledOnRenderError() bool {
	return m.stalled && m.stallCause == stallRenderError
}

// Connection returns the last recorded push channel status.
func (m *Machine) Connection() push.Status { return m.conn }

// Init mounts a playlist and starts playback at index 0.
func (m *Machine) Init(p *model.Playlist) Effect {
	if p.Empty() {
		m.playlist = nil
		m.current, m.next, m.after = nil, nil, nil
		m.stalled = false
		m.stallCause = stallNone
		m.releaseAll()
		m.sendStatus()
		return Effect{ClearTimer: true, Render: true}
	}
	m.playlist = p
	m.playing = true
	return m.enter(0, causeInit)
}

// Replace swaps in a new playlist wholesale. Index resets to 0
// unconditionally: item identities are not stable across a replacement, so
// no attempt is made to preserve the viewer's position. The play/pause flag
// is preserved; an initial mount goes through Init instead.
func (m *Machine) Replace(p *model.Playlist) Effect {
	if p.Empty() {
		return m.Init(p)
	}
	if m.playlist == nil {
		return m.Init(p)
	}
	m.logger.Info().
		Str(log.FieldPlaylistID, p.ID).
		Str(log.FieldEvent, "sequencer.replace").
		Msg("playlist replaced")
	m.playlist = p
	return m.enter(0, causeReplace)
}

// Advance moves to the next item in the ring after natural completion
// (timer expiry or renderer end signal), emitting a "completed" view for
// the outgoing item.
func (m *Machine) Advance() Effect {
	if !m.HasPlaylist() {
		return noEffect()
	}
	m.trackOutgoing(true)
	return m.enter((m.index+1)%m.playlist.Len(), causeCompleted)
}

// advanceTimeout leaves a stalled item after the configured stall bound.
// No view is tracked: the item never actually rendered.
func (m *Machine) advanceTimeout() Effect {
	if !m.HasPlaylist() {
		return noEffect()
	}
	m.logger.Warn().
		Str(log.FieldItemID, m.current.ID).
		Str(log.FieldContentType, string(m.current.Type)).
		Str(log.FieldEvent, "sequencer.stall_timeout").
		Msg("advancing past stalled content after stall timeout")
	return m.enter((m.index+1)%m.playlist.Len(), causeTimeout)
}

// Skip moves by delta (+1 next, -1 previous) with ring wraparound, emitting
// a "skipped" view for the outgoing item.
func (m *Machine) Skip(delta int) Effect {
	if !m.HasPlaylist() {
		return noEffect()
	}
	m.trackOutgoing(false)
	n := m.playlist.Len()
	idx := ((m.index+delta)%n + n) % n
	return m.enter(idx, causeSkipped)
}

// Seek jumps directly to a valid in-range index. Out-of-range or missing
// values are a no-op. A seek is a direct jump: no view is tracked for the
// item being left.
func (m *Machine) Seek(value *int) Effect {
	if !m.HasPlaylist() || value == nil {
		return noEffect()
	}
	if *value < 0 || *value >= m.playlist.Len() {
		m.logger.Debug().
			Int("value", *value).
			Str(log.FieldEvent, "sequencer.seek_ignored").
			Msg("seek out of range")
		return noEffect()
	}
	return m.enter(*value, causeSeek)
}

// Play resumes playback. The timer restarts with the full item duration:
// elapsed time is not tracked across a pause, so a paused-then-resumed item
// replays its full planned duration rather than the remainder. Conservative
// on purpose; resuming never skips content.
func (m *Machine) Play() Effect {
	if !m.HasPlaylist() || m.playing {
		return noEffect()
	}
	m.playing = true
	m.sendStatus()
	eff := Effect{ClearTimer: true}
	if m.stalled {
		// Pause halted the stall-timeout timer too; re-arm it so the
		// opt-in auto-advance bound keeps working across a pause.
		if m.stallTimeout > 0 {
			eff.TimerSet = true
			eff.Timer = m.stallTimeout
		}
		return eff
	}
	if m.timerWanted() {
		eff.TimerSet = true
		eff.Timer = m.timerDuration()
	}
	return eff
}

// Pause halts playback and the item timer.
func (m *Machine) Pause() Effect {
	if !m.HasPlaylist() || !m.playing {
		return noEffect()
	}
	m.playing = false
	m.sendStatus()
	return Effect{ClearTimer: true}
}

// Stop pauses playback and rewinds to item 0 without auto-advancing.
func (m *Machine) Stop() Effect {
	if !m.HasPlaylist() {
		return noEffect()
	}
	m.playing = false
	return m.enter(0, causeStop)
}

// Restart rewinds to item 0 and forces playback on.
func (m *Machine) Restart() Effect {
	if !m.HasPlaylist() {
		return noEffect()
	}
	m.playing = true
	return m.enter(0, causeRestart)
}

// EmergencyStop pauses the display when the message targets it, regardless
// of current state, and always reports status back. Idempotent when already
// paused. Stops addressed elsewhere leave state unchanged.
func (m *Machine) EmergencyStop(msg push.EmergencyStop) Effect {
	if !msg.Targets(m.displayID) {
		return noEffect()
	}
	m.logger.Warn().
		Str("reason", msg.Reason).
		Str(log.FieldEvent, "sequencer.emergency_stop").
		Msg("emergency stop")
	m.playing = false
	m.sendStatus()
	return Effect{ClearTimer: true}
}

// Apply dispatches one control action. Local and remote control share this
// path so the resulting transitions are identical regardless of origin.
func (m *Machine) Apply(action push.ControlAction, value *int, origin string) Effect {
	metrics.RecordControl(string(action), origin)
	switch action {
	case push.ActionPlay:
		return m.Play()
	case push.ActionPause:
		return m.Pause()
	case push.ActionStop:
		return m.Stop()
	case push.ActionRestart:
		return m.Restart()
	case push.ActionNext:
		return m.Skip(1)
	case push.ActionPrevious:
		return m.Skip(-1)
	case push.ActionSeek:
		return m.Seek(value)
	default:
		m.logger.Warn().
			Str(log.FieldAction, string(action)).
			Str(log.FieldEvent, "sequencer.unknown_action").
			Msg("ignoring unknown control action")
		return noEffect()
	}
}

// StallRenderError puts the machine into the stall state after a content
// fault (missing or unrenderable asset). Unlike the unsupported-type stall,
// a render-fault stall is lifted by the recovery shell's retry through
// ClearRenderStall; until then the item stays put, bounded only by the
// configured stall timeout.
func (m *Machine) StallRenderError() Effect {
	if m.stalled {
		return noEffect()
	}
	m.stalled = true
	m.stallCause = stallRenderError
	metrics.StallsTotal.Inc()
	m.sendStatus()
	eff := Effect{ClearTimer: true}
	if m.stallTimeout > 0 {
		eff.TimerSet = true
		eff.Timer = m.stallTimeout
	}
	return eff
}

// ClearRenderStall lifts a render-fault stall ahead of a retry so the
// current item gets a fresh renderer start. Unsupported-type stalls are not
// lifted: retrying cannot make an unknown discriminator renderable.
func (m *Machine) ClearRenderStall() Effect {
	if !m.StalledOnRenderError() {
		return noEffect()
	}
	m.stalled = false
	m.stallCause = stallNone
	m.sendStatus()
	eff := Effect{ClearTimer: true, Render: true}
	if m.playing && m.timerWanted() {
		eff.TimerSet = true
		eff.Timer = m.timerDuration()
	}
	return eff
}

// SetConnection records the push channel status for snapshots. The cache
// fallback decision lives in the Sequencer, which gates it through
// FallbackArmed below.
func (m *Machine) SetConnection(s push.Status) {
	m.conn = s
	if s == push.StatusConnected {
		m.fellBack = false
	}
}

// FallbackArmed reports whether a cache fallback is still permitted for the
// current disconnect. Arm is one-shot: it trips until the next successful
// connection resets it.
func (m *Machine) FallbackArmed() bool {
	return !m.fellBack
}

// TripFallback consumes the one fallback permitted per disconnect.
func (m *Machine) TripFallback() {
	m.fellBack = true
}

// enter is the single transition path: it moves the index, resolves the
// current/next/after items, restarts preload bookkeeping, stamps the view
// start, notifies the console and computes the timer effect.
func (m *Machine) enter(idx int, cause string) Effect {
	m.index = idx
	m.viewStart = m.clock.Now()
	m.resolve()
	m.stalled = !m.current.Type.IsValid()
	m.stallCause = stallNone
	if m.stalled {
		m.stallCause = stallUnsupported
	}

	if m.stalled {
		metrics.StallsTotal.Inc()
		m.logger.Error().
			Str(log.FieldItemID, m.current.ID).
			Str(log.FieldContentType, string(m.current.Type)).
			Str(log.FieldEvent, "sequencer.stall").
			Msg("unsupported content type, stalling in place")
	}

	metrics.RecordTransition(cause)
	metrics.SetPlaybackState(m.index, m.playing)
	m.sendStatus()

	eff := Effect{ClearTimer: true, Render: true}
	if m.stalled {
		if m.stallTimeout > 0 {
			eff.TimerSet = true
			eff.Timer = m.stallTimeout
		}
		return eff
	}
	if m.playing && m.timerWanted() {
		eff.TimerSet = true
		eff.Timer = m.timerDuration()
	}
	return eff
}

// timerWanted reports whether the current item advances by timer at all.
// Intrinsic-length types with a zero planned duration play to natural end.
func (m *Machine) timerWanted() bool {
	if m.current == nil {
		return false
	}
	if m.current.Duration == 0 && m.current.Type.IntrinsicDuration() {
		return false
	}
	return true
}

func (m *Machine) timerDuration() time.Duration {
	if m.current == nil {
		return 0
	}
	return m.current.ItemDuration()
}

// resolve recomputes the current item plus the two-ahead lookahead and
// reconciles preloaded assets: newly visible preloadable items are fetched,
// superseded ones released.
func (m *Machine) resolve() {
	n := m.playlist.Len()
	m.current = m.playlist.ItemAt(m.index)
	m.next = m.playlist.ItemAt((m.index + 1) % n)
	m.after = m.playlist.ItemAt((m.index + 2) % n)

	keep := make(map[string]*model.Item, 3)
	for _, it := range []*model.Item{m.current, m.next, m.after} {
		if it != nil && it.Type.Preloadable() {
			keep[it.ID] = it
		}
	}
	if m.preloader != nil {
		for id, it := range m.retained {
			if _, ok := keep[id]; !ok {
				m.preloader.Release(it)
			}
		}
		for id, it := range keep {
			if _, ok := m.retained[id]; !ok {
				m.preloader.Fetch(it)
			}
		}
	}
	m.retained = keep
}

func (m *Machine) releaseAll() {
	if m.preloader != nil {
		for _, it := range m.retained {
			m.preloader.Release(it)
		}
	}
	m.retained = make(map[string]*model.Item)
}

// trackOutgoing emits the view record for the item being left.
func (m *Machine) trackOutgoing(completed bool) {
	if m.tracker == nil || m.current == nil {
		return
	}
	m.tracker.Report(View{
		DisplayID:        m.displayID,
		PlaylistID:       m.playlist.ID,
		ItemID:           m.current.ID,
		ContentID:        m.current.ContentID,
		Duration:         m.clock.Now().Sub(m.viewStart),
		ExpectedDuration: m.current.Duration,
		Completed:        completed,
		Skipped:          !completed,
	})
}

func (m *Machine) sendStatus() {
	if m.notify == nil {
		return
	}
	m.notify(push.StatusUpdate{
		DisplayID:  m.displayID,
		PlaylistID: m.PlaylistID(),
		Index:      m.index,
		Playing:    m.playing,
		Stalled:    m.stalled,
	})
}
