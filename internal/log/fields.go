// SPDX-License-Identifier: MIT

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldDisplayID  = "display_id"
	FieldPlaylistID = "playlist_id"
	FieldItemID     = "item_id"
	FieldContentID  = "content_id"
	FieldSessionID  = "session_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// Playback fields
	FieldIndex       = "index"
	FieldContentType = "content_type"
	FieldAction      = "action"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Network fields
	FieldURL      = "url"
	FieldAttempt  = "attempt"
	FieldEndpoint = "endpoint"
)
