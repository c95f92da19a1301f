package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"evaljudge/internal/api"
	"evaljudge/internal/cache"
	"evaljudge/internal/config"
	"evaljudge/internal/logging"
	"evaljudge/internal/pipeline"
	"evaljudge/internal/sandbox/local"
	"evaljudge/internal/scheduler"

	"go.uber.org/zap"
)

const defaultShutdownTimeout = 10 * time.Second

func main() {
	overlayPath := flag.String("config", "", "path to an optional local-dev YAML config overlay")
	flag.Parse()

	cfg, err := config.Load(*overlayPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}

	if err := logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, OutputPath: "stdout", ErrorPath: "stderr"}); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logging.Sync() }()

	artifactCache, err := cache.New(cfg.CacheRoot, cfg.CacheTTL)
	if err != nil {
		logging.Error(context.Background(), "init cache failed", zap.Error(err))
		os.Exit(1)
	}
	defer artifactCache.Close()

	if err := os.MkdirAll(cfg.ScratchRoot, 0755); err != nil {
		logging.Error(context.Background(), "init scratch root failed", zap.Error(err))
		os.Exit(1)
	}

	sched := scheduler.New(cfg.Threads, cfg.TaskRetention)
	deps := &pipeline.Deps{Cache: artifactCache, Sandbox: local.New(), ScratchRoot: cfg.ScratchRoot}
	registerHandlers(sched, deps)

	router := api.NewRouter(&api.Server{
		Scheduler:      sched,
		Cache:          artifactCache,
		Token:          cfg.Token,
		CacheTTL:       cfg.CacheTTL,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})

	httpServer := &http.Server{Handler: router}
	listener, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		logging.Error(context.Background(), "init http listener failed", zap.Error(err))
		os.Exit(1)
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info(context.Background(), "judge server started", zap.String("addr", cfg.Addr()))
		errCh <- httpServer.Serve(listener)
	}()

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error(context.Background(), "http server stopped", zap.Error(err))
		}
	case <-shutdownCtx.Done():
		logging.Info(context.Background(), "shutdown signal received")
	}

	sched.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logging.Error(context.Background(), "http server shutdown failed", zap.Error(err))
		os.Exit(1)
	}
}

func registerHandlers(sched *scheduler.Scheduler, deps *pipeline.Deps) {
	sched.RegisterHandler("compile", deps.Compile)
	sched.RegisterHandler("compile-checker", deps.CompileChecker)
	sched.RegisterHandler("judge", deps.Judge)
	sched.RegisterHandler("run", deps.Run)
	sched.RegisterHandler("interactive", deps.Interactive)
}
