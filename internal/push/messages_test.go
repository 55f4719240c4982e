// SPDX-License-Identifier: MIT

package push

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeMessage(t *testing.T) {
	t.Run("playlist update normalizes item order", func(t *testing.T) {
		raw := []byte(`{
			"type": "playlist_update",
			"payload": {
				"playlist": {
					"id": "pl-1",
					"items": [
						{"id": "b", "contentId": "c-b", "position": 5, "duration": 10, "type": "image"},
						{"id": "a", "contentId": "c-a", "position": 2, "duration": 5, "type": "image"}
					]
				},
				"displayIds": ["display-1"]
			}
		}`)
		ev, err := DecodeMessage(raw)
		require.NoError(t, err)

		upd, ok := ev.(PlaylistUpdate)
		require.True(t, ok)
		require.Len(t, upd.Playlist.Items, 2)
		assert.Equal(t, "a", upd.Playlist.Items[0].ID)
		assert.Equal(t, 0, upd.Playlist.Items[0].Position)
		assert.Equal(t, "b", upd.Playlist.Items[1].ID)
		assert.Equal(t, 1, upd.Playlist.Items[1].Position)
	})

	t.Run("display control with seek value", func(t *testing.T) {
		raw := []byte(`{"type":"display_control","payload":{"displayId":"display-1","action":"seek","value":3}}`)
		ev, err := DecodeMessage(raw)
		require.NoError(t, err)

		ctl, ok := ev.(DisplayControl)
		require.True(t, ok)
		assert.Equal(t, ActionSeek, ctl.Action)
		require.NotNil(t, ctl.Value)
		assert.Equal(t, 3, *ctl.Value)
	})

	t.Run("emergency stop", func(t *testing.T) {
		raw := []byte(`{"type":"emergency_stop","payload":{"all":true,"reason":"maintenance"}}`)
		ev, err := DecodeMessage(raw)
		require.NoError(t, err)

		stop, ok := ev.(EmergencyStop)
		require.True(t, ok)
		assert.True(t, stop.All)
		assert.Equal(t, "maintenance", stop.Reason)
	})

	t.Run("rejects unknown action", func(t *testing.T) {
		raw := []byte(`{"type":"display_control","payload":{"displayId":"display-1","action":"explode"}}`)
		_, err := DecodeMessage(raw)
		assert.Error(t, err)
	})

	t.Run("rejects unknown type", func(t *testing.T) {
		_, err := DecodeMessage([]byte(`{"type":"firmware_update","payload":{}}`))
		assert.Error(t, err)
	})

	t.Run("rejects malformed json", func(t *testing.T) {
		_, err := DecodeMessage([]byte(`{`))
		assert.Error(t, err)
	})
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	seek := 2
	events := []Event{
		DisplayControl{DisplayID: "display-1", Action: ActionSeek, Value: &seek},
		EmergencyStop{DisplayIDs: []string{"display-1", "display-2"}, Reason: "test"},
	}
	for _, ev := range events {
		raw, err := EncodeMessage(ev)
		require.NoError(t, err)
		got, err := DecodeMessage(raw)
		require.NoError(t, err)
		assert.Equal(t, ev, got)
	}
}

func TestEncodeMessageRejectsStatusChange(t *testing.T) {
	_, err := EncodeMessage(StatusChange{Old: StatusConnecting, New: StatusConnected})
	assert.Error(t, err)
}

func TestEmergencyStopTargets(t *testing.T) {
	tests := []struct {
		name string
		msg  EmergencyStop
		want bool
	}{
		{"all", EmergencyStop{All: true}, true},
		{"listed", EmergencyStop{DisplayIDs: []string{"x", "display-1"}}, true},
		{"not listed", EmergencyStop{DisplayIDs: []string{"x"}}, false},
		{"empty target set", EmergencyStop{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.msg.Targets("display-1"))
		})
	}
}

func TestStatusJSON(t *testing.T) {
	raw, err := json.Marshal(StatusConnected)
	require.NoError(t, err)
	assert.Equal(t, `"connected"`, string(raw))

	var s Status
	require.NoError(t, json.Unmarshal([]byte(`"disconnected"`), &s))
	assert.Equal(t, StatusDisconnected, s)
	assert.True(t, s.Offline())
	assert.False(t, StatusConnecting.Offline())
}

func TestChannelURL(t *testing.T) {
	tests := []struct {
		base    string
		want    string
		wantErr bool
	}{
		{"http://console.local:8080", "ws://console.local:8080/api/displays/d1/channel", false},
		{"https://console.example.com", "wss://console.example.com/api/displays/d1/channel", false},
		{"ftp://console.local", "", true},
		{"://bad", "", true},
	}
	for _, tt := range tests {
		got, err := channelURL(tt.base, "d1")
		if tt.wantErr {
			assert.Error(t, err, tt.base)
			continue
		}
		require.NoError(t, err, tt.base)
		assert.Equal(t, tt.want, got)
	}
}

func TestAddressedToUs(t *testing.T) {
	c := New(Options{BaseURL: "http://console.local", DisplayID: "display-1"})

	tests := []struct {
		name string
		ev   Event
		want bool
	}{
		{"control for us", DisplayControl{DisplayID: "display-1", Action: ActionPlay}, true},
		{"control for another display", DisplayControl{DisplayID: "display-2", Action: ActionPlay}, false},
		{"playlist broadcast", PlaylistUpdate{}, true},
		{"playlist for us", PlaylistUpdate{DisplayIDs: []string{"display-1"}}, true},
		{"playlist for others", PlaylistUpdate{DisplayIDs: []string{"display-2", "display-3"}}, false},
		{"emergency stop always passes", EmergencyStop{DisplayIDs: []string{"display-9"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.addressedToUs(tt.ev))
		})
	}
}
