// SPDX-License-Identifier: MIT

package model

import "encoding/json"

// ContentType discriminates the renderer used for a playlist item.
//
// Unknown values are preserved through JSON decoding on purpose: the
// sequencer must see them so it can stall on unsupported content instead of
// silently skipping it.
type ContentType string

const (
	// ContentImage is a static image. Timer-only: it never self-completes.
	ContentImage ContentType = "image"

	// ContentVideo is a locally served video file. Self-completes at
	// end-of-stream.
	ContentVideo ContentType = "video"

	// ContentEmbed is third-party embedded video. Self-completes via the
	// provider's end event and cannot be preloaded locally.
	ContentEmbed ContentType = "embed"

	// ContentDocument is paged document content with an internal auto-page
	// sub-timer.
	ContentDocument ContentType = "document"
)

// String implements fmt.Stringer.
func (t ContentType) String() string {
	return string(t)
}

// IsValid checks whether the content type is one of the closed set of
// renderable variants.
func (t ContentType) IsValid() bool {
	switch t {
	case ContentImage, ContentVideo, ContentEmbed, ContentDocument:
		return true
	default:
		return false
	}
}

// IntrinsicDuration reports whether the type has a natural length of its
// own. For these types a planned duration of 0 means "play to natural end"
// rather than zero seconds.
func (t ContentType) IntrinsicDuration() bool {
	switch t {
	case ContentVideo, ContentEmbed:
		return true
	default:
		return false
	}
}

// Preloadable reports whether the underlying asset can be fetched ahead of
// time. Embedded third-party video is served by the provider and cannot be.
func (t ContentType) Preloadable() bool {
	return t.IsValid() && t != ContentEmbed
}

// MarshalJSON implements json.Marshaler.
func (t ContentType) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(t))
}

// AllContentTypes returns the closed set of renderable content types.
func AllContentTypes() []ContentType {
	return []ContentType{ContentImage, ContentVideo, ContentEmbed, ContentDocument}
}
