// SPDX-License-Identifier: MIT

package push

import (
	"encoding/json"
	"fmt"

	"github.com/lumacast/lumacast/internal/model"
)

// MessageType tags the JSON union of inbound push frames.
type MessageType string

const (
	// TypePlaylistUpdate replaces the playlist wholesale.
	TypePlaylistUpdate MessageType = "playlist_update"

	// TypeDisplayControl carries a remote control action for one display.
	TypeDisplayControl MessageType = "display_control"

	// TypeEmergencyStop pauses one, several or all displays.
	TypeEmergencyStop MessageType = "emergency_stop"
)

// ControlAction is a remote or local playback control verb.
type ControlAction string

const (
	ActionPlay     ControlAction = "play"
	ActionPause    ControlAction = "pause"
	ActionStop     ControlAction = "stop"
	ActionRestart  ControlAction = "restart"
	ActionNext     ControlAction = "next"
	ActionPrevious ControlAction = "previous"
	ActionSeek     ControlAction = "seek"
)

// IsValid checks whether the action is a known control verb.
func (a ControlAction) IsValid() bool {
	switch a {
	case ActionPlay, ActionPause, ActionStop, ActionRestart, ActionNext, ActionPrevious, ActionSeek:
		return true
	default:
		return false
	}
}

// String implements fmt.Stringer.
func (a ControlAction) String() string {
	return string(a)
}

// Event is one entry in the client's ordered event stream: either a
// connection status change or a decoded inbound message.
type Event interface {
	isEvent()
}

// StatusChange reports a connection state transition.
type StatusChange struct {
	Old Status
	New Status

	// Grace is set when the transition happens inside the initial connect
	// grace period, before the first successful connection. Consumers must
	// not fall back to cached content on a grace transition.
	Grace bool
}

// PlaylistUpdate carries a full playlist replacement and the set of display
// identities it applies to.
type PlaylistUpdate struct {
	Playlist   model.Playlist `json:"playlist"`
	DisplayIDs []string       `json:"displayIds"`
}

// DisplayControl carries one control action scoped to a single display.
// Value is only meaningful for seek.
type DisplayControl struct {
	DisplayID string        `json:"displayId"`
	Action    ControlAction `json:"action"`
	Value     *int          `json:"value,omitempty"`
}

// EmergencyStop pauses the addressed displays regardless of current state.
type EmergencyStop struct {
	All        bool     `json:"all"`
	DisplayIDs []string `json:"displayIds,omitempty"`
	Reason     string   `json:"reason,omitempty"`
}

func (StatusChange) isEvent()   {}
func (PlaylistUpdate) isEvent() {}
func (DisplayControl) isEvent() {}
func (EmergencyStop) isEvent()  {}

// Targets reports whether the emergency stop addresses the given display.
func (e EmergencyStop) Targets(displayID string) bool {
	if e.All {
		return true
	}
	for _, id := range e.DisplayIDs {
		if id == displayID {
			return true
		}
	}
	return false
}

// envelope is the wire frame: a type tag plus the raw payload.
type envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// StatusUpdate is the outbound best-effort playback state snapshot sent
// after every sequencer transition. The console treats these as idempotent
// snapshots, not a log.
type StatusUpdate struct {
	DisplayID  string `json:"displayId"`
	PlaylistID string `json:"playlistId,omitempty"`
	Index      int    `json:"index"`
	Playing    bool   `json:"playing"`
	Stalled    bool   `json:"stalled,omitempty"`
}

// DecodeMessage decodes one wire frame into its typed message.
func DecodeMessage(raw []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	switch env.Type {
	case TypePlaylistUpdate:
		var m PlaylistUpdate
		if err := json.Unmarshal(env.Payload, &m); err != nil {
			return nil, fmt.Errorf("decode playlist_update: %w", err)
		}
		m.Playlist.Normalize()
		return m, nil
	case TypeDisplayControl:
		var m DisplayControl
		if err := json.Unmarshal(env.Payload, &m); err != nil {
			return nil, fmt.Errorf("decode display_control: %w", err)
		}
		if !m.Action.IsValid() {
			return nil, fmt.Errorf("unknown control action %q", m.Action)
		}
		return m, nil
	case TypeEmergencyStop:
		var m EmergencyStop
		if err := json.Unmarshal(env.Payload, &m); err != nil {
			return nil, fmt.Errorf("decode emergency_stop: %w", err)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown message type %q", env.Type)
	}
}

// EncodeMessage wraps a typed message back into a wire frame; the inverse
// of DecodeMessage.
func EncodeMessage(ev Event) ([]byte, error) {
	var t MessageType
	switch ev.(type) {
	case PlaylistUpdate:
		t = TypePlaylistUpdate
	case DisplayControl:
		t = TypeDisplayControl
	case EmergencyStop:
		t = TypeEmergencyStop
	default:
		return nil, fmt.Errorf("message type %T is not a wire message", ev)
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Type: t, Payload: payload})
}
