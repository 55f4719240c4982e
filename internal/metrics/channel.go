// SPDX-License-Identifier: MIT

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConnectionState tracks the push-channel status as a labelled gauge
	// (exactly one label value is 1 at a time).
	ConnectionState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "lumacast_push_connection_state",
		Help: "Push channel connection state (1 for the active state).",
	}, []string{"state"})

	// ReconnectsTotal counts reconnect attempts by outcome.
	ReconnectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lumacast_push_reconnects_total",
		Help: "Total number of push channel reconnect attempts, by outcome.",
	}, []string{"outcome"})

	// MessagesTotal counts inbound push messages by type and disposition.
	MessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lumacast_push_messages_total",
		Help: "Total number of inbound push messages, by type and disposition (applied/ignored/invalid).",
	}, []string{"type", "disposition"})

	// StatusSendFailuresTotal counts dropped best-effort status updates.
	StatusSendFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lumacast_push_status_send_failures_total",
		Help: "Total number of status updates that could not be sent.",
	})

	// ViewReportsTotal counts view-tracking reports by outcome.
	ViewReportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lumacast_view_reports_total",
		Help: "Total number of view-tracking reports, by outcome (sent/failed/dropped).",
	}, []string{"outcome"})

	// RecoveryRetriesTotal counts recovery shell retries.
	RecoveryRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lumacast_recovery_retries_total",
		Help: "Total number of recovery shell auto-retries.",
	})
)

// SetConnectionState flips the connection state gauge to the given state.
func SetConnectionState(state string, all []string) {
	for _, s := range all {
		v := 0.0
		if s == state {
			v = 1.0
		}
		ConnectionState.WithLabelValues(s).Set(v)
	}
}

// RecordMessage increments the inbound message counter.
func RecordMessage(msgType, disposition string) {
	MessagesTotal.WithLabelValues(msgType, disposition).Inc()
}

// RecordReconnect increments the reconnect counter ("success", "failure").
func RecordReconnect(outcome string) {
	ReconnectsTotal.WithLabelValues(outcome).Inc()
}

// RecordViewReport increments the view report counter.
func RecordViewReport(outcome string) {
	ViewReportsTotal.WithLabelValues(outcome).Inc()
}
