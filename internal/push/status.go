// SPDX-License-Identifier: MIT

package push

import (
	"encoding/json"
	"fmt"
)

// Status represents the push channel connection state.
type Status string

const (
	// StatusConnecting indicates a dial is in progress.
	StatusConnecting Status = "connecting"

	// StatusConnected indicates a live connection.
	StatusConnected Status = "connected"

	// StatusDisconnected indicates the connection dropped and a reconnect
	// cycle is pending or in progress.
	StatusDisconnected Status = "disconnected"

	// StatusError indicates a reconnect cycle exhausted its attempts.
	StatusError Status = "error"
)

// String implements fmt.Stringer.
func (s Status) String() string {
	return string(s)
}

// IsValid checks whether the status is a known value.
func (s Status) IsValid() bool {
	switch s {
	case StatusConnecting, StatusConnected, StatusDisconnected, StatusError:
		return true
	default:
		return false
	}
}

// Offline reports whether consumers should treat the channel as down.
// Connecting counts as offline for fallback purposes; the grace period on
// the StatusChange event separately suppresses fallback during initial dial.
func (s Status) Offline() bool {
	return s != StatusConnected
}

// MarshalJSON implements json.Marshaler.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Status) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	v := Status(str)
	if !v.IsValid() {
		return fmt.Errorf("invalid connection status: %q", str)
	}
	*s = v
	return nil
}

// AllStatuses returns all defined connection statuses.
func AllStatuses() []Status {
	return []Status{StatusConnecting, StatusConnected, StatusDisconnected, StatusError}
}

// AllStatusStrings returns the statuses as plain strings, for metrics labels.
func AllStatusStrings() []string {
	all := AllStatuses()
	out := make([]string, len(all))
	for i, s := range all {
		out[i] = string(s)
	}
	return out
}
