// SPDX-License-Identifier: MIT

package render

import (
	"context"
	"sync"

	"github.com/lumacast/lumacast/internal/model"
)

// EmbedRenderer mounts third-party embedded video. Self-completing via the
// provider's end event. The asset lives with the provider, so embeds are
// excluded from preloading.
type EmbedRenderer struct {
	surface Surface

	mu     sync.Mutex
	active bool
}

// NewEmbedRenderer creates the embed renderer.
func NewEmbedRenderer(surface Surface) *EmbedRenderer {
	return &EmbedRenderer{surface: surface}
}

func (r *EmbedRenderer) Type() model.ContentType {
	return model.ContentEmbed
}

func (r *EmbedRenderer) Start(_ context.Context, item *model.Item, done func()) error {
	r.mu.Lock()
	r.active = true
	r.mu.Unlock()

	r.surface.ShowEmbed(item, func() {
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

func (r *EmbedRenderer) Stop() {
	r.mu.Lock()
	r.active = false
	r.mu.Unlock()
	r.surface.Clear()
}
