package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/usestring/perfrelay/internal/config"
	"github.com/usestring/perfrelay/internal/httpapi"
	"github.com/usestring/perfrelay/internal/logging"
	"github.com/usestring/perfrelay/internal/relay"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg := config.Load()
	logCleanup, err := logging.Setup(logging.FromAppConfig(cfg))
	if err != nil {
		return fmt.Errorf("setting up logging: %w", err)
	}
	defer logCleanup()

	for _, w := range cfg.Warnings() {
		slog.Warn("config", slog.String("warning", w))
	}

	svc, err := relay.NewFromConfig(cfg, nil)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr: cfg.ListenAddr,
		Handler: httpapi.NewHandler(svc, httpapi.Options{
			MaxBodyBytes:   cfg.MaxBodyBytes,
			AllowedOrigins: cfg.CORSAllowedOrigins,
			ServeUI:        cfg.ServeUI,
		}),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		slog.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
