// SPDX-License-Identifier: MIT

// Package track emits fire-and-forget view analytics. Reports are decoupled
// from playback correctness: failures are logged and dropped, a full queue
// drops the report, and the sequencer is never blocked.
package track

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/lumacast/lumacast/internal/log"
	"github.com/lumacast/lumacast/internal/metrics"
	"github.com/lumacast/lumacast/internal/player"
)

// Options configures a Reporter.
type Options struct {
	// Endpoint is the view-tracking URL on the console.
	Endpoint string
	Token    string

	// Rate limits reports per second. 0 uses a sane default.
	Rate float64

	// QueueSize bounds the in-flight buffer. 0 uses a sane default.
	QueueSize int

	HTTPClient *http.Client
}

// Reporter posts view records to the console from a single background
// goroutine fed by a bounded queue.
type Reporter struct {
	opts    Options
	client  *http.Client
	limiter *rate.Limiter
	queue   chan player.View
	logger  zerolog.Logger
}

// New creates a reporter. Start it with Run.
func New(opts Options) *Reporter {
	if opts.Rate <= 0 {
		opts.Rate = 5
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 128
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Reporter{
		opts:    opts,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(opts.Rate), int(opts.Rate)+1),
		queue:   make(chan player.View, opts.QueueSize),
		logger:  log.WithComponent("track"),
	}
}

// Report enqueues a view record. Never blocks; a full queue drops the
// record with a metric.
func (r *Reporter) Report(v player.View) {
	select {
	case r.queue <- v:
	default:
		metrics.RecordViewReport("dropped")
		r.logger.Warn().
			Str(log.FieldItemID, v.ItemID).
			Str(log.FieldEvent, "track.queue_full").
			Msg("view report queue full, dropping report")
	}
}

// Run drains the queue until ctx is cancelled.
func (r *Reporter) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case v := <-r.queue:
			if err := r.limiter.Wait(ctx); err != nil {
				return err
			}
			r.send(ctx, v)
		}
	}
}

// payload matches the console's view-tracking contract.
type payload struct {
	ReportID         string  `json:"reportId"`
	DisplayID        string  `json:"displayId"`
	PlaylistID       string  `json:"playlistId"`
	ContentID        string  `json:"contentId"`
	Duration         float64 `json:"duration"`
	ExpectedDuration int     `json:"expectedDuration"`
	Completed        bool    `json:"completed"`
	Skipped          bool    `json:"skipped"`
}

func (r *Reporter) send(ctx context.Context, v player.View) {
	body, err := json.Marshal(payload{
		ReportID:         uuid.NewString(),
		DisplayID:        v.DisplayID,
		PlaylistID:       v.PlaylistID,
		ContentID:        v.ContentID,
		Duration:         v.Duration.Seconds(),
		ExpectedDuration: v.ExpectedDuration,
		Completed:        v.Completed,
		Skipped:          v.Skipped,
	})
	if err != nil {
		metrics.RecordViewReport("failed")
		return
	}

	rctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(rctx, http.MethodPost, r.opts.Endpoint, bytes.NewReader(body))
	if err != nil {
		metrics.RecordViewReport("failed")
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if r.opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+r.opts.Token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		metrics.RecordViewReport("failed")
		r.logger.Warn().Err(err).Str(log.FieldEvent, "track.send_failed").Msg("view report failed")
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		metrics.RecordViewReport("failed")
		r.logger.Warn().
			Err(fmt.Errorf("unexpected status %s", resp.Status)).
			Str(log.FieldEvent, "track.send_failed").
			Msg("view report rejected")
		return
	}
	metrics.RecordViewReport("sent")
}
