// SPDX-License-Identifier: MIT

// playerd is the signage player daemon. It bootstraps the display from the
// management console, maintains the push channel, runs the playback
// sequencer and exposes the local operational API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lumacast/lumacast/internal/api"
	"github.com/lumacast/lumacast/internal/cache"
	"github.com/lumacast/lumacast/internal/config"
	"github.com/lumacast/lumacast/internal/console"
	"github.com/lumacast/lumacast/internal/health"
	"github.com/lumacast/lumacast/internal/kiosk"
	lclog "github.com/lumacast/lumacast/internal/log"
	"github.com/lumacast/lumacast/internal/model"
	"github.com/lumacast/lumacast/internal/player"
	"github.com/lumacast/lumacast/internal/push"
	"github.com/lumacast/lumacast/internal/recovery"
	"github.com/lumacast/lumacast/internal/render"
	"github.com/lumacast/lumacast/internal/track"
	"github.com/lumacast/lumacast/internal/version"
)

const bootstrapRetryDelay = 5 * time.Second

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		os.Exit(0)
	}

	// Safe defaults until the real config is loaded.
	lclog.Configure(lclog.Config{
		Level:   "info",
		Service: "playerd",
		Version: version.Version,
	})
	logger := lclog.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(strings.TrimSpace(*configPath))
	if err != nil {
		logger.Fatal().
			Err(err).
			Str(lclog.FieldEvent, "config.load_failed").
			Msg("failed to load configuration")
	}

	lclog.Reconfigure(lclog.Config{
		Level:   cfg.LogLevel,
		Service: cfg.LogService,
		Version: version.Version,
	})
	logger = lclog.WithDisplay("daemon", cfg.DisplayID)

	logger.Info().
		Str(lclog.FieldEvent, "startup").
		Str("version", version.Version).
		Str("commit", version.Commit).
		Str("build_date", version.Date).
		Str("addr", cfg.ListenAddr).
		Msg("starting playerd")
	logger.Info().Msgf("→ Console: %s (auth: %v)", config.MaskURL(cfg.ConsoleURL), cfg.ConsoleToken != "")
	logger.Info().Msgf("→ Display: %s", cfg.DisplayID)
	logger.Info().Msgf("→ Data dir: %s", cfg.DataDir)
	if cfg.Lightweight {
		logger.Info().Msg("→ Lightweight mode: enabled")
	}

	if err := run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().
			Err(err).
			Str(lclog.FieldEvent, "daemon.failed").
			Msg("playerd exited with error")
	}
	logger.Info().Str(lclog.FieldEvent, "shutdown").Msg("playerd stopped")
}

func run(ctx context.Context, cfg config.Config) error {
	logger := lclog.WithDisplay("daemon", cfg.DisplayID)

	store, err := cache.Open(filepath.Join(cfg.DataDir, "cache"))
	if err != nil {
		return fmt.Errorf("open playlist cache: %w", err)
	}
	defer func() { _ = store.Close() }()

	client := console.New(cfg.ConsoleURL, console.Options{Token: cfg.ConsoleToken})

	boot, err := bootstrap(ctx, client, cfg.DisplayID)
	if err != nil {
		return err
	}
	var initial *model.Playlist
	if boot != nil {
		initial = boot.Playlist
	}

	preloader := console.NewAssetPreloader(client, filepath.Join(cfg.DataDir, "assets"))
	bridge := kiosk.NewBridge(preloader.Path)
	registry := render.NewRegistry(bridge)

	channel := push.New(push.Options{
		BaseURL:           cfg.ConsoleURL,
		DisplayID:         cfg.DisplayID,
		Token:             cfg.ConsoleToken,
		HeartbeatInterval: cfg.HeartbeatInterval,
		ReconnectAttempts: cfg.ReconnectAttempts,
		ReconnectDelay:    cfg.ReconnectDelay,
		ConnectGrace:      cfg.ConnectGrace,
	})

	reporter := track.New(track.Options{
		Endpoint: strings.TrimRight(cfg.ConsoleURL, "/") + "/api/views",
		Token:    cfg.ConsoleToken,
		Rate:     cfg.TrackingRate,
	})

	// The shell guards renderer invocations; its retry hook repaints via the
	// sequencer, which does not exist yet when the shell is built.
	var seq *player.Sequencer
	shell := recovery.New(cfg.DisplayID, cfg.MaxRetries, cfg.RetryDelay,
		recovery.WithReporter(client),
		recovery.WithProber(client),
		recovery.WithOnRetry(func() {
			if seq != nil {
				seq.Refresh()
			}
		}),
	)

	seq = player.New(player.Config{
		DisplayID:    cfg.DisplayID,
		Channel:      channel,
		Cache:        store,
		Registry:     registry,
		Surface:      bridge,
		Tracker:      reporter,
		Preloader:    preloader,
		Guard:        shell,
		StallTimeout: cfg.StallTimeout,
		CacheMaxAge:  cfg.CacheMaxAge,
	})

	hm := health.NewManager(version.Version)
	hm.RegisterChecker(health.NewPushChecker(channel.Status))
	hm.RegisterChecker(health.NewCacheChecker(store.Probe))

	apiServer := api.New(seq, hm, shell, bridge.Attach, cfg.MetricsEnabled)
	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return channel.Run(gctx) })
	g.Go(func() error { return seq.Run(gctx, initial) })
	g.Go(func() error { return reporter.Run(gctx) })
	g.Go(func() error {
		logger.Info().Str(lclog.FieldEvent, "api.listening").Str("addr", cfg.ListenAddr).Msg("local API listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("local API: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// bootstrap fetches the display record and assigned playlist, retrying with
// a fixed delay until the console responds or the daemon is stopped. A
// display without an assigned playlist is a valid bootstrap result.
func bootstrap(ctx context.Context, client *console.Client, displayID string) (*console.BootstrapResponse, error) {
	logger := lclog.WithDisplay("daemon", displayID)
	for attempt := 1; ; attempt++ {
		boot, err := client.Bootstrap(ctx, displayID)
		if err == nil {
			return boot, nil
		}
		logger.Warn().
			Err(err).
			Int(lclog.FieldAttempt, attempt).
			Str(lclog.FieldEvent, "daemon.bootstrap_retry").
			Msg("bootstrap failed, retrying")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(bootstrapRetryDelay):
		}
	}
}
