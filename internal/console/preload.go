// SPDX-License-Identifier: MIT

package console

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lumacast/lumacast/internal/log"
	"github.com/lumacast/lumacast/internal/model"
)

// AssetPreloader fetches content assets ahead of playback into a local
// directory. Ownership is explicit: the sequencer retains at most three
// items (current, next, after next) and releases everything it supersedes,
// so the directory never grows beyond the lookahead window.
type AssetPreloader struct {
	client *Client
	dir    string
	logger zerolog.Logger

	mu     sync.Mutex
	assets map[string]string // content id -> local path
}

// NewAssetPreloader creates a preloader storing assets under dir.
func NewAssetPreloader(client *Client, dir string) *AssetPreloader {
	return &AssetPreloader{
		client: client,
		dir:    dir,
		logger: log.WithComponent("preload"),
		assets: make(map[string]string),
	}
}

// Fetch downloads the item's asset in the background. Failures are logged
// and dropped; a missing preload only costs a slower first paint.
func (p *AssetPreloader) Fetch(item *model.Item) {
	if item == nil || !item.Type.Preloadable() {
		return
	}
	p.mu.Lock()
	if _, ok := p.assets[item.ContentID]; ok {
		p.mu.Unlock()
		return
	}
	// Reserve the slot so concurrent resolves do not double-fetch.
	p.assets[item.ContentID] = ""
	p.mu.Unlock()

	go p.download(item.ContentID)
}

// Release drops the asset for a superseded item.
func (p *AssetPreloader) Release(item *model.Item) {
	if item == nil {
		return
	}
	p.mu.Lock()
	path, ok := p.assets[item.ContentID]
	delete(p.assets, item.ContentID)
	p.mu.Unlock()
	if !ok || path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		p.logger.Warn().
			Err(err).
			Str(log.FieldContentID, item.ContentID).
			Str(log.FieldEvent, "preload.release_failed").
			Msg("failed to remove preloaded asset")
	}
}

// Path returns the local path of a preloaded asset, or "" when absent.
func (p *AssetPreloader) Path(contentID string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.assets[contentID]
}

func (p *AssetPreloader) download(contentID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	req, err := p.client.newRequest(ctx, http.MethodGet, "/api/content/"+contentID+"/asset", nil)
	if err != nil {
		p.fail(contentID, err)
		return
	}
	resp, err := p.client.httpClient.Do(req)
	if err != nil {
		p.fail(contentID, err)
		return
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		p.fail(contentID, fmt.Errorf("unexpected status %s", resp.Status))
		return
	}

	if err := os.MkdirAll(p.dir, 0o750); err != nil {
		p.fail(contentID, err)
		return
	}
	dest := filepath.Join(p.dir, contentID)
	f, err := os.CreateTemp(p.dir, contentID+".*")
	if err != nil {
		p.fail(contentID, err)
		return
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		p.fail(contentID, err)
		return
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		p.fail(contentID, err)
		return
	}
	if err := os.Rename(f.Name(), dest); err != nil {
		_ = os.Remove(f.Name())
		p.fail(contentID, err)
		return
	}

	p.mu.Lock()
	if _, ok := p.assets[contentID]; ok {
		p.assets[contentID] = dest
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()
	// Released while downloading; clean up immediately.
	_ = os.Remove(dest)
}

func (p *AssetPreloader) fail(contentID string, err error) {
	p.mu.Lock()
	delete(p.assets, contentID)
	p.mu.Unlock()
	p.logger.Warn().
		Err(err).
		Str(log.FieldContentID, contentID).
		Str(log.FieldEvent, "preload.fetch_failed").
		Msg("asset preload failed")
}
