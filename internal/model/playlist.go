// SPDX-License-Identifier: MIT

// Package model defines the playlist domain types shared by the player
// subsystems. Playlists are replaced wholesale by the console, never patched.
package model

import (
	"fmt"
	"sort"
	"time"
)

// Display is a physical or logical screen endpoint, optionally bound to one
// playlist.
type Display struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Location   string `json:"location,omitempty"`
	PlaylistID string `json:"playlistId,omitempty"`
}

// Playlist is an ordered sequence of items assigned to displays.
type Playlist struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Items     []Item    `json:"items"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Item is one scheduled unit of content within a playlist.
type Item struct {
	ID        string `json:"id"`
	ContentID string `json:"contentId"`

	// Position is dense, zero-based and contiguous within the playlist.
	// The sequencer relies on this to compute "next" via modulo.
	Position int `json:"position"`

	// Duration is the planned display time in seconds. 0 on a type with
	// intrinsic length means "play to natural end".
	Duration int `json:"duration"`

	Transition         string `json:"transition,omitempty"`
	TransitionDuration int    `json:"transitionDuration,omitempty"`

	Type     ContentType `json:"type"`
	Hints    RenderHints `json:"hints,omitempty"`
	Settings Settings    `json:"settings,omitempty"`
}

// RenderHints carries presentation hints common to all content types.
type RenderHints struct {
	BackgroundColor string `json:"backgroundColor,omitempty"`
	ScaleMode       string `json:"scaleMode,omitempty"`
	Crop            string `json:"crop,omitempty"`
}

// Len returns the number of items.
func (p *Playlist) Len() int {
	return len(p.Items)
}

// Empty reports whether the playlist has no items.
func (p *Playlist) Empty() bool {
	return p == nil || len(p.Items) == 0
}

// TotalDuration sums planned item durations. Items whose type has an
// intrinsic, externally governed length and no planned duration are skipped.
func (p *Playlist) TotalDuration() time.Duration {
	var total time.Duration
	for _, it := range p.Items {
		if it.Duration == 0 && it.Type.IntrinsicDuration() {
			continue
		}
		total += time.Duration(it.Duration) * time.Second
	}
	return total
}

// Normalize sorts items by position and renumbers them densely from zero.
// Console payloads are expected to be contiguous already; this repairs gaps
// left by upstream deletions.
func (p *Playlist) Normalize() {
	sort.SliceStable(p.Items, func(i, j int) bool {
		return p.Items[i].Position < p.Items[j].Position
	})
	for i := range p.Items {
		p.Items[i].Position = i
	}
}

// Validate checks the playlist invariants after Normalize.
func (p *Playlist) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("playlist has no id")
	}
	for i, it := range p.Items {
		if it.Position != i {
			return fmt.Errorf("playlist %s: item %d has position %d, want %d", p.ID, i, it.Position, i)
		}
		if it.Duration < 0 {
			return fmt.Errorf("playlist %s: item %s has negative duration %d", p.ID, it.ID, it.Duration)
		}
	}
	return nil
}

// ItemAt returns the item at index i, or nil when out of range.
func (p *Playlist) ItemAt(i int) *Item {
	if p == nil || i < 0 || i >= len(p.Items) {
		return nil
	}
	return &p.Items[i]
}

// ItemDuration returns the effective timer duration for an item. Types with
// intrinsic length and no planned duration get no timer at all (zero).
func (it *Item) ItemDuration() time.Duration {
	return time.Duration(it.Duration) * time.Second
}
