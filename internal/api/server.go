// SPDX-License-Identifier: MIT

// Package api provides the player's local HTTP surface: health and
// readiness probes, a playback status endpoint, a local control endpoint
// and Prometheus metrics.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/lumacast/lumacast/internal/health"
	"github.com/lumacast/lumacast/internal/log"
	"github.com/lumacast/lumacast/internal/player"
	"github.com/lumacast/lumacast/internal/push"
	"github.com/lumacast/lumacast/internal/recovery"
)

// Player is the playback surface the API exposes. Implemented by the
// sequencer.
type Player interface {
	Snapshot() player.Snapshot
	Control(action push.ControlAction, value *int)
}

// Server is the local HTTP API.
type Server struct {
	player         Player
	healthManager  *health.Manager
	shell          *recovery.Shell
	kioskAttach    http.HandlerFunc
	metricsEnabled bool
	logger         zerolog.Logger
}

// New creates the API server. kioskAttach mounts the kiosk bridge websocket
// and may be nil when the daemon runs headless.
func New(p Player, hm *health.Manager, shell *recovery.Shell, kioskAttach http.HandlerFunc, metricsEnabled bool) *Server {
	return &Server{
		player:         p,
		healthManager:  hm,
		shell:          shell,
		kioskAttach:    kioskAttach,
		metricsEnabled: metricsEnabled,
		logger:         log.WithComponent("api"),
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.healthManager.ServeHealth)
	r.Get("/readyz", s.healthManager.ServeReady)
	r.Get("/api/status", s.handleStatus)
	if s.kioskAttach != nil {
		r.Get("/api/kiosk", s.kioskAttach)
	}
	if s.metricsEnabled {
		r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	}

	// The control surface mirrors the remote push-channel actions; rate
	// limited since it is unauthenticated on the local interface.
	r.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(30, time.Minute))
		r.Post("/api/control", s.handleControl)
		r.Post("/api/recovery/retry", s.handleRetry)
	})

	return r
}

type statusResponse struct {
	Playback player.Snapshot `json:"playback"`
	Recovery recovery.State  `json:"recovery"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{Playback: s.player.Snapshot()}
	if s.shell != nil {
		resp.Recovery = s.shell.State()
	}
	writeJSON(w, http.StatusOK, resp)
}

type controlRequest struct {
	Action push.ControlAction `json:"action"`
	Value  *int               `json:"value,omitempty"`
}

// handleControl applies a local control action. Local and remote control
// share the sequencer's dispatch path, so the transitions are identical.
func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	var req controlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.Action.IsValid() {
		writeError(w, http.StatusBadRequest, "unknown control action")
		return
	}
	s.logger.Info().
		Str(log.FieldAction, string(req.Action)).
		Str(log.FieldEvent, "api.control").
		Msg("local control action")
	s.player.Control(req.Action, req.Value)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	if s.shell == nil {
		writeError(w, http.StatusNotFound, "recovery shell not enabled")
		return
	}
	s.shell.Retry()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "retrying"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
