// SPDX-License-Identifier: MIT

package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentType(t *testing.T) {
	for _, ct := range AllContentTypes() {
		assert.True(t, ct.IsValid(), string(ct))
	}
	assert.False(t, ContentType("hologram").IsValid())
	assert.False(t, ContentType("").IsValid())

	assert.True(t, ContentVideo.IntrinsicDuration())
	assert.True(t, ContentEmbed.IntrinsicDuration())
	assert.False(t, ContentImage.IntrinsicDuration())
	assert.False(t, ContentDocument.IntrinsicDuration())

	assert.True(t, ContentImage.Preloadable())
	assert.True(t, ContentVideo.Preloadable())
	assert.True(t, ContentDocument.Preloadable())
	assert.False(t, ContentEmbed.Preloadable(), "provider-served embeds cannot be preloaded")
	assert.False(t, ContentType("hologram").Preloadable())
}

func TestUnknownContentTypeSurvivesDecode(t *testing.T) {
	var item Item
	require.NoError(t, json.Unmarshal([]byte(`{"id":"x","contentId":"c","type":"hologram"}`), &item))
	assert.Equal(t, ContentType("hologram"), item.Type)
	assert.False(t, item.Type.IsValid())
}

func TestPlaylistNormalize(t *testing.T) {
	p := Playlist{ID: "pl-1", Items: []Item{
		{ID: "c", Position: 7},
		{ID: "a", Position: 0},
		{ID: "b", Position: 3},
	}}
	p.Normalize()

	want := []Item{
		{ID: "a", Position: 0},
		{ID: "b", Position: 1},
		{ID: "c", Position: 2},
	}
	if diff := cmp.Diff(want, p.Items); diff != "" {
		t.Errorf("normalized items mismatch (-want +got):\n%s", diff)
	}
	assert.NoError(t, p.Validate())
}

func TestPlaylistNormalizeStableForTies(t *testing.T) {
	p := Playlist{ID: "pl-1", Items: []Item{
		{ID: "first", Position: 1},
		{ID: "second", Position: 1},
	}}
	p.Normalize()
	assert.Equal(t, "first", p.Items[0].ID)
	assert.Equal(t, "second", p.Items[1].ID)
}

func TestPlaylistValidate(t *testing.T) {
	tests := []struct {
		name     string
		playlist Playlist
		wantErr  bool
	}{
		{"valid", Playlist{ID: "pl", Items: []Item{{ID: "a", Position: 0, Duration: 5}}}, false},
		{"empty is valid", Playlist{ID: "pl"}, false},
		{"missing id", Playlist{Items: []Item{{ID: "a", Position: 0}}}, true},
		{"position gap", Playlist{ID: "pl", Items: []Item{{ID: "a", Position: 1}}}, true},
		{"negative duration", Playlist{ID: "pl", Items: []Item{{ID: "a", Position: 0, Duration: -5}}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.playlist.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPlaylistTotalDuration(t *testing.T) {
	p := Playlist{ID: "pl", Items: []Item{
		{ID: "a", Position: 0, Duration: 5, Type: ContentImage},
		{ID: "b", Position: 1, Duration: 0, Type: ContentVideo},
		{ID: "c", Position: 2, Duration: 10, Type: ContentVideo},
		{ID: "d", Position: 3, Duration: 0, Type: ContentImage},
	}}
	// The zero-duration video has intrinsic length and is excluded; the
	// zero-duration image counts as zero.
	assert.Equal(t, 15*time.Second, p.TotalDuration())
}

func TestPlaylistItemAt(t *testing.T) {
	p := &Playlist{ID: "pl", Items: []Item{{ID: "a", Position: 0}}}
	require.NotNil(t, p.ItemAt(0))
	assert.Nil(t, p.ItemAt(-1))
	assert.Nil(t, p.ItemAt(1))

	var nilPlaylist *Playlist
	assert.Nil(t, nilPlaylist.ItemAt(0))
	assert.True(t, nilPlaylist.Empty())
	assert.Equal(t, 0, (&Playlist{}).Len())
}

func TestItemDuration(t *testing.T) {
	it := Item{Duration: 7}
	assert.Equal(t, 7*time.Second, it.ItemDuration())
}
