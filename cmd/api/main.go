package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ewilliams-labs/vibereco/internal/adapters/rest"
	"github.com/ewilliams-labs/vibereco/internal/app"
	"github.com/ewilliams-labs/vibereco/internal/config"
	"github.com/ewilliams-labs/vibereco/internal/logging"
	"github.com/ewilliams-labs/vibereco/internal/worker"
)

// finishedRunsKept bounds how many completed runs GET /runs/{id} can return.
const finishedRunsKept = 256

func main() {
	if err := run(); err != nil {
		logging.Error().Err(err).Msg("api server stopped")
		os.Exit(1)
	}
}

func run() error {
	// 1. Configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	log := logging.Component("api")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Adapters and services
	progress := func(msg string) { log.Debug().Msg(msg) }
	a, err := app.New(ctx, cfg, app.Options{Progress: progress, Live: true})
	if err != nil {
		return err
	}
	defer a.Close()

	// 3. Background run queue
	pool := worker.NewPool(a.Orchestrator, cfg.Server.QueueSize, finishedRunsKept)
	pool.Start(cfg.Server.Workers)

	handler := rest.NewHandler(a.Orchestrator, a.ABTests,
		rest.WithRunQueue(pool),
		rest.WithCatalog(a.Catalog),
		rest.WithDefaultLimit(cfg.Pipeline.Limit),
	)

	// 4. Serve
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("vibereco api listening")
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		_ = pool.Stop(context.Background())
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown incomplete")
	}
	if err := pool.Stop(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("in-flight runs were cancelled")
	}
	return nil
}
