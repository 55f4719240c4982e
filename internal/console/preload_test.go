// SPDX-License-Identifier: MIT

package console

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumacast/lumacast/internal/model"
)

func TestPreloaderFetchAndRelease(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/content/c-a/asset", r.URL.Path)
		_, _ = w.Write([]byte("jpeg bytes"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	p := NewAssetPreloader(New(srv.URL, Options{}), dir)
	item := &model.Item{ID: "a", ContentID: "c-a", Type: model.ContentImage}

	p.Fetch(item)
	require.Eventually(t, func() bool { return p.Path("c-a") != "" }, 5*time.Second, 10*time.Millisecond)

	path := p.Path("c-a")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "jpeg bytes", string(data))

	p.Release(item)
	assert.Empty(t, p.Path("c-a"))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "released assets are removed from disk")
}

func TestPreloaderSkipsEmbedsAndUnknownTypes(t *testing.T) {
	p := NewAssetPreloader(New("http://127.0.0.1:1", Options{}), t.TempDir())

	p.Fetch(&model.Item{ID: "e", ContentID: "c-e", Type: model.ContentEmbed})
	p.Fetch(&model.Item{ID: "h", ContentID: "c-h", Type: model.ContentType("hologram")})
	p.Fetch(nil)

	assert.Empty(t, p.Path("c-e"))
	assert.Empty(t, p.Path("c-h"))
}

func TestPreloaderFailureClearsSlot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	p := NewAssetPreloader(New(srv.URL, Options{}), t.TempDir())
	item := &model.Item{ID: "a", ContentID: "c-a", Type: model.ContentImage}

	p.Fetch(item)
	// The reserved slot is cleared on failure so a later transition can try
	// again.
	require.Eventually(t, func() bool {
		p.mu.Lock()
		_, reserved := p.assets["c-a"]
		p.mu.Unlock()
		return !reserved
	}, 5*time.Second, 10*time.Millisecond)
	assert.Empty(t, p.Path("c-a"))
}

func TestPreloaderReleaseWithoutFetchIsNoop(t *testing.T) {
	p := NewAssetPreloader(New("http://127.0.0.1:1", Options{}), t.TempDir())
	p.Release(&model.Item{ID: "a", ContentID: "c-a", Type: model.ContentImage})
	p.Release(nil)
}
