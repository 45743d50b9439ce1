package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gpukit/cmdsched/internal/api"
	"github.com/gpukit/cmdsched/internal/command"
	"github.com/gpukit/cmdsched/internal/config"
	"github.com/gpukit/cmdsched/internal/executor"
	"github.com/gpukit/cmdsched/internal/resource"
)

func main() {
	addr := flag.String("addr", ":8080", "HTTP listen address")
	cfgPath := flag.String("config", "configs/batches.yaml", "Path to batch YAML config")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// ── Load config ──────────────────────────────────────────────────────────
	loader, err := config.NewLoader(*cfgPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	cfg := loader.Config()
	if err := config.Validate(cfg); err != nil {
		slog.Error("config validation failed", "err", err)
		os.Exit(1)
	}

	// ── Build graphs for configured batches ──────────────────────────────────
	batches, err := config.BuildAll(cfg)
	if err != nil {
		slog.Error("failed to build command graphs", "err", err)
		os.Exit(1)
	}
	slog.Info("command graphs built", "batches", len(batches))

	// ── Resource tracker with predeclared resources ──────────────────────────
	tracker := resource.NewTracker()
	for _, r := range cfg.Resources {
		if err := tracker.Create(command.ResourceID(r.ID), resource.Kind(r.Kind)); err != nil {
			slog.Error("failed to predeclare resource", "id", r.ID, "err", err)
			os.Exit(1)
		}
	}

	// ── Executor ─────────────────────────────────────────────────────────────
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	exec := executor.New(ctx, tracker, executor.NewSimBackend(), cfg.Executor)
	exec.SwapBatches(batches)

	// ── Hot-reload watcher ────────────────────────────────────────────────────
	loader.OnChange(func(newCfg *config.BatchConfig) {
		if err := config.Validate(newCfg); err != nil {
			slog.Warn("hot-reload skipped: config invalid", "err", err)
			return
		}
		newBatches, err := config.BuildAll(newCfg)
		if err != nil {
			slog.Warn("hot-reload skipped: graph build failed", "err", err)
			return
		}
		exec.SwapBatches(newBatches)
		slog.Info("batches hot-reloaded", "batches", len(newBatches))
	})
	stopWatch, err := loader.Watch()
	if err != nil {
		slog.Warn("config watcher unavailable (hot-reload disabled)", "err", err)
	} else {
		defer stopWatch()
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	handler := api.New(exec, loader, tracker)
	srv := &http.Server{
		Addr:         *addr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", *addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down…")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutCancel()
	_ = srv.Shutdown(shutCtx)
	cancel() // stop dispatch workers
	exec.Shutdown()
	if leaks := tracker.Leaks(); len(leaks) > 0 {
		slog.Warn("live resources at shutdown", "count", len(leaks))
	}
	slog.Info("goodbye")
}
