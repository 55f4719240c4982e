// SPDX-License-Identifier: MIT

package render

import (
	"context"

	"github.com/lumacast/lumacast/internal/model"
)

// ImageRenderer displays static images. Timer-only: the item's duration
// timer is the only way an image advances, so done is never invoked.
type ImageRenderer struct {
	surface Surface
}

// NewImageRenderer creates the image renderer.
func NewImageRenderer(surface Surface) *ImageRenderer {
	return &ImageRenderer{surface: surface}
}

func (r *ImageRenderer) Type() model.ContentType {
	return model.ContentImage
}

func (r *ImageRenderer) Start(_ context.Context, item *model.Item, _ func()) error {
	r.surface.ShowImage(item)
	return nil
}

func (r *ImageRenderer) Stop() {
	r.surface.Clear()
}
