// SPDX-License-Identifier: MIT

// Package render contains the per-content-type renderers the sequencer
// delegates to. Renderers translate playlist items into commands on a
// Surface (the attached playback output, e.g. a kiosk browser bridge) and
// own the completion contract: self-completing types invoke the done
// callback on natural end, timer-only types never do.
package render

import (
	"context"

	"github.com/lumacast/lumacast/internal/model"
)

// PlaceholderKind classifies full-screen fallback views.
type PlaceholderKind string

const (
	PlaceholderNoPlaylist  PlaceholderKind = "no_playlist"
	PlaceholderLoadError   PlaceholderKind = "content_load_error"
	PlaceholderNetwork     PlaceholderKind = "network_error"
	PlaceholderUnsupported PlaceholderKind = "unsupported_format"
	PlaceholderTimeout     PlaceholderKind = "timeout"
	PlaceholderOffline     PlaceholderKind = "push_channel_disconnected"
)

// Surface is the playback output the renderers draw on. Implementations
// bridge to the actual display (kiosk browser, media pipeline); tests use a
// fake.
type Surface interface {
	// ShowImage displays a static image.
	ShowImage(item *model.Item)

	// PlayVideo starts a local video with the given presentation mode and
	// invokes onEnd exactly once at natural end-of-stream.
	PlayVideo(item *model.Item, mode PresentationMode, onEnd func())

	// ShowEmbed mounts third-party embedded video and invokes onEnd when
	// the provider reports the end event.
	ShowEmbed(item *model.Item, onEnd func())

	// ShowDocumentPage displays one page of a paged document.
	ShowDocumentPage(item *model.Item, page int)

	// ShowPlaceholder replaces content with a full-screen fallback view.
	ShowPlaceholder(kind PlaceholderKind, detail string)

	// Clear removes whatever is currently shown.
	Clear()
}

// Renderer renders content of exactly one discriminator value.
type Renderer interface {
	// Type returns the content type this renderer handles.
	Type() model.ContentType

	// Start begins rendering the item. done is the natural-end signal for
	// self-completing types; timer-only renderers must not call it.
	Start(ctx context.Context, item *model.Item, done func()) error

	// Stop tears down the current rendering and releases sub-timers.
	Stop()
}

// Registry maps the closed content-type enumeration to renderers.
type Registry struct {
	renderers map[model.ContentType]Renderer
}

// NewRegistry builds the standard registry over the given surface. Every
// member of the closed content-type set gets a renderer; an unlisted type
// can only be an unknown discriminator, which the sequencer stalls on.
func NewRegistry(surface Surface) *Registry {
	r := &Registry{renderers: make(map[model.ContentType]Renderer)}
	for _, renderer := range []Renderer{
		NewImageRenderer(surface),
		NewVideoRenderer(surface),
		NewEmbedRenderer(surface),
		NewDocumentRenderer(surface),
	} {
		r.renderers[renderer.Type()] = renderer
	}
	return r
}

// For returns the renderer for a content type, or ok=false for an unknown
// discriminator.
func (r *Registry) For(t model.ContentType) (Renderer, bool) {
	renderer, ok := r.renderers[t]
	return renderer, ok
}

// Covers reports whether every valid content type has a renderer. Guarded
// by a test so the registry stays exhaustive when the enum grows.
func (r *Registry) Covers() bool {
	for _, t := range model.AllContentTypes() {
		if _, ok := r.renderers[t]; !ok {
			return false
		}
	}
	return true
}
