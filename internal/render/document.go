// SPDX-License-Identifier: MIT

package render

import (
	"context"
	"sync"
	"time"

	"github.com/lumacast/lumacast/internal/model"
)

// DocumentRenderer displays paged document content. The item advances on
// its outer duration timer like an image; independently, an internal
// sub-timer cycles through the resolved page sequence on the configured
// page interval. done is never invoked.
type DocumentRenderer struct {
	surface Surface

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewDocumentRenderer creates the document renderer.
func NewDocumentRenderer(surface Surface) *DocumentRenderer {
	return &DocumentRenderer{surface: surface}
}

func (r *DocumentRenderer) Type() model.ContentType {
	return model.ContentDocument
}

func (r *DocumentRenderer) Start(ctx context.Context, item *model.Item, _ func()) error {
	settings := item.Settings.Document
	if settings == nil {
		settings = &model.DocumentSettings{PageCount: 1}
	}
	pageCount := settings.PageCount
	if pageCount < 1 {
		pageCount = 1
	}
	pages := ParsePageSpec(settings.PageSpec, pageCount)

	r.stopPaging()
	r.surface.ShowDocumentPage(item, pages[0])

	interval := time.Duration(settings.PageInterval) * time.Second
	if interval <= 0 || len(pages) == 1 {
		return nil
	}

	pctx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()

	go r.autoPage(pctx, item, pages, interval)
	return nil
}

// autoPage cycles through pages until cancelled. It wraps around: the outer
// item duration decides when the document leaves the screen, not the page
// sequence.
func (r *DocumentRenderer) autoPage(ctx context.Context, item *model.Item, pages []int, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	i := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			i = (i + 1) % len(pages)
			r.surface.ShowDocumentPage(item, pages[i])
		}
	}
}

func (r *DocumentRenderer) Stop() {
	r.stopPaging()
	r.surface.Clear()
}

func (r *DocumentRenderer) stopPaging() {
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.mu.Unlock()
}
