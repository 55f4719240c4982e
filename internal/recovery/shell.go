// SPDX-License-Identifier: MIT

// Package recovery is the player's error boundary: it catches panics from
// renderer code, reports them, and drives a bounded auto-retry policy so a
// misbehaving renderer degrades gracefully instead of crashing the daemon.
package recovery

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lumacast/lumacast/internal/log"
	"github.com/lumacast/lumacast/internal/metrics"
)

// ConnStatus is the boundary's own view of console reachability, probed on
// every caught error.
type ConnStatus string

const (
	ConnOnline   ConnStatus = "online"
	ConnOffline  ConnStatus = "offline"
	ConnChecking ConnStatus = "checking"
)

// ErrorReporter receives caught errors with their stack.
type ErrorReporter interface {
	ReportError(displayID string, err error, stack []byte)
}

// Prober checks console reachability. Implemented by the console client.
type Prober interface {
	Health(ctx context.Context) error
}

// Option configures a Shell.
type Option func(*Shell)

// WithReporter sets the external error reporting collaborator.
func WithReporter(r ErrorReporter) Option {
	return func(s *Shell) { s.reporter = r }
}

// WithProber sets the console health prober.
func WithProber(p Prober) Option {
	return func(s *Shell) { s.prober = p }
}

// WithOnError sets an optional caller-supplied error handler.
func WithOnError(fn func(error)) Option {
	return func(s *Shell) { s.onError = fn }
}

// WithOnRetry sets the hook invoked when a retry fires; callers use it to
// re-render the player surface.
func WithOnRetry(fn func()) Option {
	return func(s *Shell) { s.onRetry = fn }
}

// WithScheduler overrides retry scheduling, for tests.
func WithScheduler(schedule func(d time.Duration, fn func())) Option {
	return func(s *Shell) { s.schedule = schedule }
}

// Shell is the recovery boundary. One per mounted player.
type Shell struct {
	maxRetries int
	retryDelay time.Duration
	logger     zerolog.Logger

	reporter ErrorReporter
	prober   Prober
	onError  func(error)
	onRetry  func()
	schedule func(d time.Duration, fn func())

	mu         sync.Mutex
	displayID  string
	hasError   bool
	lastErr    error
	retryCount int
	isRetrying bool
	connStatus ConnStatus
}

// New creates a shell. maxRetries bounds auto-retries per mount; retryDelay
// is the fixed pause before each one.
func New(displayID string, maxRetries int, retryDelay time.Duration, opts ...Option) *Shell {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelay <= 0 {
		retryDelay = 5 * time.Second
	}
	s := &Shell{
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		logger:     log.WithDisplay("recovery", displayID),
		displayID:  displayID,
		connStatus: ConnOnline,
		schedule:   func(d time.Duration, fn func()) { time.AfterFunc(d, fn) },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State is the boundary's externally visible state.
type State struct {
	HasError   bool       `json:"hasError"`
	Error      string     `json:"error,omitempty"`
	Category   Category   `json:"category,omitempty"`
	Hint       string     `json:"hint,omitempty"`
	RetryCount int        `json:"retryCount"`
	IsRetrying bool       `json:"isRetrying"`
	ConnStatus ConnStatus `json:"connectionStatus"`
	Exhausted  bool       `json:"exhausted"`
}

// State returns the current boundary state.
func (s *Shell) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := State{
		HasError:   s.hasError,
		RetryCount: s.retryCount,
		IsRetrying: s.isRetrying,
		ConnStatus: s.connStatus,
		Exhausted:  s.retryCount >= s.maxRetries,
	}
	if s.lastErr != nil {
		cat := Classify(s.lastErr)
		st.Error = s.lastErr.Error()
		st.Category = cat
		st.Hint = cat.Hint()
	}
	return st
}

// Do runs fn, converting a panic into the returned error and feeding every
// failure through the boundary's catch path.
func (s *Shell) Do(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("renderer panic: %v", r)
			s.catch(err, debug.Stack())
		}
	}()
	if err = fn(); err != nil {
		s.catch(err, nil)
	}
	return err
}

// catch records the error, reports it, invokes the caller handler, probes
// connectivity, and schedules at most one auto-retry while budget remains.
func (s *Shell) catch(err error, stack []byte) {
	cat := Classify(err)
	s.logger.Error().
		Err(err).
		Str("category", string(cat)).
		Str(log.FieldEvent, "recovery.caught").
		Msg("caught rendering error")

	if s.reporter != nil {
		if stack == nil {
			stack = debug.Stack()
		}
		s.reporter.ReportError(s.displayID, err, stack)
	}
	if s.onError != nil {
		s.onError(err)
	}

	s.mu.Lock()
	s.hasError = true
	s.lastErr = err
	scheduleRetry := !s.isRetrying && s.retryCount < s.maxRetries
	if scheduleRetry {
		s.isRetrying = true
	}
	s.mu.Unlock()

	go s.probe()

	if scheduleRetry {
		s.schedule(s.retryDelay, s.autoRetry)
	} else {
		s.logger.Warn().
			Int("retries", s.maxRetries).
			Str(log.FieldEvent, "recovery.exhausted").
			Msg("auto-retry budget exhausted, manual intervention required")
	}
}

// autoRetry consumes one unit of retry budget, clears the error state and
// re-renders. The budget never resets within a mount.
func (s *Shell) autoRetry() {
	s.mu.Lock()
	if !s.isRetrying {
		s.mu.Unlock()
		return
	}
	s.retryCount++
	s.isRetrying = false
	s.hasError = false
	s.lastErr = nil
	count := s.retryCount
	s.mu.Unlock()

	metrics.RecoveryRetriesTotal.Inc()
	s.logger.Info().
		Int("retry", count).
		Str(log.FieldEvent, "recovery.retry").
		Msg("auto-retrying after rendering error")
	if s.onRetry != nil {
		s.onRetry()
	}
}

// Retry is the manual retry action. Always permitted, even after the
// auto-retry budget is exhausted; it clears the error state but never the
// retry counter.
func (s *Shell) Retry() {
	s.mu.Lock()
	s.hasError = false
	s.lastErr = nil
	s.isRetrying = false
	s.mu.Unlock()

	s.logger.Info().Str(log.FieldEvent, "recovery.manual_retry").Msg("manual retry")
	if s.onRetry != nil {
		s.onRetry()
	}
}

// SetDisplayID resets the boundary completely when the display identity
// changes: new session, clean slate, fresh retry budget.
func (s *Shell) SetDisplayID(id string) {
	s.mu.Lock()
	if s.displayID == id {
		s.mu.Unlock()
		return
	}
	s.displayID = id
	s.hasError = false
	s.lastErr = nil
	s.retryCount = 0
	s.isRetrying = false
	s.connStatus = ConnOnline
	s.mu.Unlock()
	s.logger = log.WithDisplay("recovery", id)
}

// probe checks console reachability and records the result.
func (s *Shell) probe() {
	if s.prober == nil {
		return
	}
	s.mu.Lock()
	s.connStatus = ConnChecking
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	status := ConnOnline
	if err := s.prober.Health(ctx); err != nil {
		status = ConnOffline
	}
	s.mu.Lock()
	s.connStatus = status
	s.mu.Unlock()
}
