// SPDX-License-Identifier: MIT

package recovery

import "strings"

// Category is a coarse error classification used to choose a user-facing
// hint. Best-effort UX by substring matching, never control flow.
type Category string

const (
	CategoryNetwork     Category = "network"
	CategoryContent     Category = "content"
	CategoryPushChannel Category = "push_channel"
	CategoryMedia       Category = "media"
	CategoryDocument    Category = "document"
	CategoryGeneric     Category = "generic"
)

var categoryMarkers = []struct {
	category Category
	markers  []string
}{
	{CategoryPushChannel, []string{"websocket", "push channel", "socket hang up"}},
	{CategoryNetwork, []string{"network", "connection refused", "timeout", "dial tcp", "no such host", "fetch"}},
	{CategoryMedia, []string{"video", "media", "codec", "playback"}},
	{CategoryDocument, []string{"pdf", "document", "page"}},
	{CategoryContent, []string{"playlist", "content", "asset", "not found"}},
}

// Classify maps an error message to a category by substring matching.
func Classify(err error) Category {
	if err == nil {
		return CategoryGeneric
	}
	msg := strings.ToLower(err.Error())
	for _, entry := range categoryMarkers {
		for _, marker := range entry.markers {
			if strings.Contains(msg, marker) {
				return entry.category
			}
		}
	}
	return CategoryGeneric
}

// Hint returns remediation copy for a category.
func (c Category) Hint() string {
	switch c {
	case CategoryNetwork:
		return "Check the display's network connection."
	case CategoryContent:
		return "The assigned playlist or one of its items could not be loaded. Verify the playlist in the console."
	case CategoryPushChannel:
		return "The live connection to the console dropped. The display keeps playing cached content."
	case CategoryMedia:
		return "A video failed to play. Verify the media file in the content library."
	case CategoryDocument:
		return "A document failed to render. Verify the file in the content library."
	default:
		return "An unexpected error occurred. The display will retry automatically."
	}
}
