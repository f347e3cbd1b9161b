// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/vidsync/vidsync/internal/config"
	"github.com/vidsync/vidsync/internal/downloadpool"
	xglog "github.com/vidsync/vidsync/internal/log"
	"github.com/vidsync/vidsync/internal/notify"
	"github.com/vidsync/vidsync/internal/orchestrator"
	"github.com/vidsync/vidsync/internal/persistence/sqlite"
	"github.com/vidsync/vidsync/internal/pipeline"
	"github.com/vidsync/vidsync/internal/scheduler"
	"github.com/vidsync/vidsync/internal/store"
	"github.com/vidsync/vidsync/internal/streamfetch"
)

var (
	version   = "v0.1.0"
	commit    = "none"
	buildDate = "unknown"
)

// envString reads an environment variable, returning def if unset or blank.
func envString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	xglog.Configure(xglog.Config{
		Level:   envString("VIDSYNC_LOG_LEVEL", "info"),
		Service: "vidsync",
		Version: version,
	})
	logger := xglog.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dataDir := envString("VIDSYNC_DATA", "/var/lib/vidsync")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		logger.Fatal().Err(err).Str("dir", dataDir).Msg("failed to create data directory")
	}

	dbPath := envString("VIDSYNC_DB_PATH", filepath.Join(dataDir, "vidsync.db"))

	if _, err := os.Stat(dbPath); err == nil {
		if issues, verr := sqlite.VerifyIntegrity(dbPath, "quick"); verr != nil {
			logger.Warn().Err(verr).Str("db_path", dbPath).Msg("integrity check could not run")
		} else if len(issues) > 0 {
			logger.Error().Strs("issues", issues).Str("db_path", dbPath).Msg("database integrity check reported problems")
		}
	}

	db, err := sqlite.Open(dbPath, sqlite.DefaultConfig())
	if err != nil {
		logger.Fatal().Err(err).Str("db_path", dbPath).Msg("failed to open database")
	}
	defer db.Close()

	st, err := store.Open(ctx, db)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open store")
	}

	cfgStore := config.NewStore(db)
	cfgHolder, err := config.NewHolder(ctx, cfgStore)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration bundle")
	}
	defer cfgHolder.Close()

	logger.Info().
		Str("event", "startup").
		Str("version", version).
		Str("commit", commit).
		Str("build_date", buildDate).
		Str("data_dir", dataDir).
		Str("db_path", dbPath).
		Msg("starting vidsync")

	notifier := notify.NewDispatcher()
	if envString("VIDSYNC_NOTIFY_CHANNEL", "") == "log" {
		notifier.SetActiveChannel(notify.ChannelLog, notify.LongForm, notify.LogSender{})
		logger.Info().Msg("notification channel: log")
	}

	var pool *downloadpool.Pool
	if aria2Path := envString("VIDSYNC_ARIA2_PATH", ""); aria2Path != "" {
		pool, err = downloadpool.New(ctx, downloadpool.Config{
			BinaryPath:              aria2Path,
			TotalThreads:            envInt("VIDSYNC_ARIA2_THREADS", 4),
			MaxConnectionsPerServer: envInt("VIDSYNC_ARIA2_MAX_CONNS", 4),
			Split:                   envInt("VIDSYNC_ARIA2_SPLIT", 4),
			HealthCheckInterval:     envDuration("VIDSYNC_ARIA2_HEALTHCHECK_INTERVAL", 10*time.Second),
		})
		if err != nil {
			logger.Warn().Err(err).Msg("download pool unavailable, falling back to single-connection HTTP fetch")
			pool = nil
		}
	} else {
		logger.Info().Msg("VIDSYNC_ARIA2_PATH not set; downloads use the single-connection HTTP fallback path only")
	}

	fetcher := &streamfetch.Fetcher{
		Pool:       pool,
		HTTPClient: http.DefaultClient,
		FFmpegPath: envString("VIDSYNC_FFMPEG_PATH", "ffmpeg"),
	}

	pl := pipeline.New(
		st,
		pipeline.NoopManifestProvider{},
		fetcher,
		notifier,
		envInt("VIDSYNC_MAX_CONCURRENT_VIDEOS", 3),
		envInt("VIDSYNC_MAX_CONCURRENT_PAGES", 5),
	)

	orch := orchestrator.New(st, pl, nil)

	applier := scheduler.NewTaskApplier(st, cfgStore, cfgHolder, nil)

	sched, err := scheduler.New(
		envDuration("VIDSYNC_SCAN_INTERVAL", 5*time.Minute),
		st,
		orch,
		applier,
		nil,
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to construct scheduler")
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sched.Run(ctx)
	})

	if metricsAddr := envString("VIDSYNC_METRICS_ADDR", ""); metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: metricsAddr, Handler: mux}
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		g.Go(func() error {
			logger.Info().Str("addr", metricsAddr).Msg("metrics listener starting")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		logger.Fatal().Err(err).Msg("vidsync daemon failed")
	}

	logger.Info().Msg("vidsync daemon exiting")
}
