// SPDX-License-Identifier: MIT

package render

import (
	"context"
	"sync"

	"github.com/lumacast/lumacast/internal/model"
)

// PresentationMode selects how a video fills the display surface.
type PresentationMode string

const (
	// ModeDirect fits the video straight into the surface.
	ModeDirect PresentationMode = "fit-direct"

	// ModeBlurLetterbox centers the video over a blurred backdrop of
	// itself. Used for portrait-oriented video on a landscape display.
	ModeBlurLetterbox PresentationMode = "blur-letterbox"
)

// VideoRenderer plays local video. Self-completing: the surface reports
// natural end-of-stream and the renderer forwards it as completion.
type VideoRenderer struct {
	surface Surface

	mu     sync.Mutex
	active bool
}

// NewVideoRenderer creates the video renderer.
func NewVideoRenderer(surface Surface) *VideoRenderer {
	return &VideoRenderer{surface: surface}
}

func (r *VideoRenderer) Type() model.ContentType {
	return model.ContentVideo
}

func (r *VideoRenderer) Start(_ context.Context, item *model.Item, done func()) error {
	mode := DetectPresentationMode(item.Settings.Video)

	r.mu.Lock()
	r.active = true
	r.mu.Unlock()

	r.surface.PlayVideo(item, mode, func() {
		// End events arriving after Stop belong to a superseded item.
		r.mu.Lock()
		active := r.active
		r.active = false
		r.mu.Unlock()
		if active && done != nil {
			done()
		}
	})
	return nil
}

func (r *VideoRenderer) Stop() {
	r.mu.Lock()
	r.active = false
	r.mu.Unlock()
	r.surface.Clear()
}

// DetectPresentationMode chooses the presentation for a video from its
// known dimensions. Portrait video on the (landscape) signage surface gets
// the blurred-backdrop letterbox; everything else, including unknown
// dimensions, plays direct.
func DetectPresentationMode(s *model.VideoSettings) PresentationMode {
	if s == nil || s.Width <= 0 || s.Height <= 0 {
		return ModeDirect
	}
	if s.Height > s.Width {
		return ModeBlurLetterbox
	}
	return ModeDirect
}
