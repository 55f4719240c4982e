// SPDX-License-Identifier: MIT

package render

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumacast/lumacast/internal/model"
)

type stubSurface struct {
	images       []string
	videos       []string
	videoModes   []PresentationMode
	embeds       []string
	pages        []int
	placeholders []PlaceholderKind
	cleared      int

	videoEnd func()
	embedEnd func()
}

func (s *stubSurface) ShowImage(item *model.Item) { s.images = append(s.images, item.ID) }

func (s *stubSurface) PlayVideo(item *model.Item, mode PresentationMode, onEnd func()) {
	s.videos = append(s.videos, item.ID)
	s.videoModes = append(s.videoModes, mode)
	s.videoEnd = onEnd
}

func (s *stubSurface) ShowEmbed(item *model.Item, onEnd func()) {
	s.embeds = append(s.embeds, item.ID)
	s.embedEnd = onEnd
}

func (s *stubSurface) ShowDocumentPage(item *model.Item, page int) {
	s.pages = append(s.pages, page)
}

func (s *stubSurface) ShowPlaceholder(kind PlaceholderKind, detail string) {
	s.placeholders = append(s.placeholders, kind)
}

func (s *stubSurface) Clear() { s.cleared++ }

func TestRegistryCoversAllContentTypes(t *testing.T) {
	r := NewRegistry(&stubSurface{})
	assert.True(t, r.Covers())

	_, ok := r.For(model.ContentType("hologram"))
	assert.False(t, ok)
}

func TestDetectPresentationMode(t *testing.T) {
	tests := []struct {
		name     string
		settings *model.VideoSettings
		want     PresentationMode
	}{
		{"nil settings", nil, ModeDirect},
		{"unknown dimensions", &model.VideoSettings{}, ModeDirect},
		{"landscape", &model.VideoSettings{Width: 1920, Height: 1080}, ModeDirect},
		{"square", &model.VideoSettings{Width: 1080, Height: 1080}, ModeDirect},
		{"portrait", &model.VideoSettings{Width: 1080, Height: 1920}, ModeBlurLetterbox},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectPresentationMode(tt.settings))
		})
	}
}

func TestImageRendererNeverCompletes(t *testing.T) {
	surface := &stubSurface{}
	r := NewImageRenderer(surface)

	called := false
	err := r.Start(context.Background(), &model.Item{ID: "img", Type: model.ContentImage}, func() { called = true })
	require.NoError(t, err)

	assert.Equal(t, []string{"img"}, surface.images)
	assert.False(t, called, "timer-only renderers must not invoke done")
}

func TestVideoRendererEndAfterStopIgnored(t *testing.T) {
	surface := &stubSurface{}
	r := NewVideoRenderer(surface)

	done := 0
	item := &model.Item{
		ID:       "vid",
		Type:     model.ContentVideo,
		Settings: model.Settings{Video: &model.VideoSettings{Width: 720, Height: 1280}},
	}
	require.NoError(t, r.Start(context.Background(), item, func() { done++ }))
	assert.Equal(t, []PresentationMode{ModeBlurLetterbox}, surface.videoModes)

	r.Stop()
	surface.videoEnd()
	assert.Zero(t, done, "end event for a superseded item must be dropped")
}

func TestVideoRendererNaturalEnd(t *testing.T) {
	surface := &stubSurface{}
	r := NewVideoRenderer(surface)

	done := 0
	require.NoError(t, r.Start(context.Background(), &model.Item{ID: "vid", Type: model.ContentVideo}, func() { done++ }))

	surface.videoEnd()
	surface.videoEnd()
	assert.Equal(t, 1, done, "completion fires exactly once")
}

func TestEmbedRendererProviderEnd(t *testing.T) {
	surface := &stubSurface{}
	r := NewEmbedRenderer(surface)

	done := 0
	require.NoError(t, r.Start(context.Background(), &model.Item{ID: "emb", Type: model.ContentEmbed}, func() { done++ }))
	require.Equal(t, []string{"emb"}, surface.embeds)

	surface.embedEnd()
	assert.Equal(t, 1, done)

	r.Stop()
	surface.embedEnd()
	assert.Equal(t, 1, done)
}

func TestDocumentRendererShowsFirstResolvedPage(t *testing.T) {
	surface := &stubSurface{}
	r := NewDocumentRenderer(surface)
	defer r.Stop()

	item := &model.Item{
		ID:   "doc",
		Type: model.ContentDocument,
		Settings: model.Settings{Document: &model.DocumentSettings{
			PageSpec:  "3-4",
			PageCount: 6,
		}},
	}
	require.NoError(t, r.Start(context.Background(), item, nil))
	assert.Equal(t, []int{3}, surface.pages)
}

func TestDocumentRendererWithoutSettingsShowsPageOne(t *testing.T) {
	surface := &stubSurface{}
	r := NewDocumentRenderer(surface)
	defer r.Stop()

	require.NoError(t, r.Start(context.Background(), &model.Item{ID: "doc", Type: model.ContentDocument}, nil))
	assert.Equal(t, []int{1}, surface.pages)
}
