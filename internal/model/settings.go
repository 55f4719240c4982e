// SPDX-License-Identifier: MIT

package model

// Settings carries per-content-type configuration. Exactly one field is
// expected to be set, matching the item's Type; the others stay nil.
type Settings struct {
	Image    *ImageSettings    `json:"image,omitempty"`
	Video    *VideoSettings    `json:"video,omitempty"`
	Embed    *EmbedSettings    `json:"embed,omitempty"`
	Document *DocumentSettings `json:"document,omitempty"`
}

// ImageSettings configures static image rendering.
type ImageSettings struct {
	AltText string `json:"altText,omitempty"`
}

// VideoSettings configures local video playback. Width/Height feed the
// aspect-ratio detection that decides the presentation mode.
type VideoSettings struct {
	Width  int  `json:"width,omitempty"`
	Height int  `json:"height,omitempty"`
	Muted  bool `json:"muted,omitempty"`
	Loop   bool `json:"loop,omitempty"`
}

// EmbedSettings configures third-party embedded video.
type EmbedSettings struct {
	Provider string `json:"provider,omitempty"`
	EmbedID  string `json:"embedId,omitempty"`
}

// DocumentSettings configures paged document content.
type DocumentSettings struct {
	// PageSpec selects pages with comma/range syntax ("1,3-5"), 1-based.
	// Empty means all pages.
	PageSpec string `json:"pageSpec,omitempty"`

	// PageCount is the document's actual page count, known after the
	// document asset has been resolved.
	PageCount int `json:"pageCount,omitempty"`

	// PageInterval is the auto-page cadence in seconds, independent of the
	// item's outer duration. 0 disables auto-paging.
	PageInterval int `json:"pageInterval,omitempty"`
}
