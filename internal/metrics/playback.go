// SPDX-License-Identifier: MIT

// Package metrics provides Prometheus metrics for the player daemon.
// Label cardinality is kept low on purpose: no display_id or item_id labels.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TransitionsTotal counts sequencer item transitions by cause.
	TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lumacast_transitions_total",
		Help: "Total number of playback item transitions, by cause.",
	}, []string{"cause"})

	// ControlActionsTotal counts applied control actions by action and origin.
	ControlActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lumacast_control_actions_total",
		Help: "Total number of control actions applied, by action and origin (push/local).",
	}, []string{"action", "origin"})

	// StallsTotal counts deliberate unsupported-content stalls.
	StallsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lumacast_stalls_total",
		Help: "Total number of unsupported-content stalls entered.",
	})

	// CacheFallbacksTotal counts swaps to the locally cached playlist.
	CacheFallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lumacast_cache_fallbacks_total",
		Help: "Total number of offline fallbacks to the cached playlist.",
	})

	// CurrentIndex tracks the sequencer's current item index.
	CurrentIndex = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lumacast_current_index",
		Help: "Current playlist item index.",
	})

	// Playing tracks the play/pause flag (1 playing, 0 paused).
	Playing = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lumacast_playing",
		Help: "Whether playback is running (1) or paused (0).",
	})
)

// RecordTransition increments the transition counter for a cause
// ("completed", "skipped", "seek", "replace", "stop", "restart").
func RecordTransition(cause string) {
	TransitionsTotal.WithLabelValues(cause).Inc()
}

// RecordControl increments the control action counter.
func RecordControl(action, origin string) {
	ControlActionsTotal.WithLabelValues(action, origin).Inc()
}

// SetPlaybackState updates the index and playing gauges.
func SetPlaybackState(index int, playing bool) {
	CurrentIndex.Set(float64(index))
	if playing {
		Playing.Set(1)
	} else {
		Playing.Set(0)
	}
}
