package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/spf13/cobra"

	"github.com/hupe1980/mcpchat/config"
	"github.com/hupe1980/mcpchat/logging"
	"github.com/hupe1980/mcpchat/model"
	"github.com/hupe1980/mcpchat/model/anthropic"
	"github.com/hupe1980/mcpchat/model/openai"
	"github.com/hupe1980/mcpchat/provider"
	"github.com/hupe1980/mcpchat/server"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger := newLogger(cfg)

	m, err := newModel(cfg)
	if err != nil {
		return err
	}

	client := provider.NewMCPClient(func(o *provider.MCPClientOptions) {
		o.CallTimeout = cfg.CallTimeout
	})
	registry := provider.NewRegistry(cfg.Providers, client, func(o *provider.RegistryOptions) {
		o.Logger = logger
	})
	resolver := provider.NewResolver(registry, logger)

	srv := server.New(registry, resolver, m, func(o *server.Options) {
		o.StepLimit = cfg.StepLimit
		o.EventBuffer = cfg.EventBuffer
		o.Logger = logger
	})

	// Warm the registry so the first /providers call reflects reality.
	probeCtx, cancel := context.WithTimeout(ctx, cfg.CallTimeout)
	registry.ProbeAll(probeCtx)
	cancel()

	httpSrv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			"addr", cfg.Addr(),
			"model", m.Info().Name,
			"providers", len(cfg.Providers),
		)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	}
}

func newLogger(cfg *config.Config) logging.Logger {
	level := slog.LevelInfo
	if cfg.LogDebug {
		level = slog.LevelDebug
	}
	return logging.New(logging.Config{Level: level, Format: cfg.LogFormat})
}

func newModel(cfg *config.Config) (model.Model, error) {
	switch cfg.ModelAPI {
	case "openai":
		return openai.NewModel(func(o *openai.Options) {
			if cfg.ModelName != "" {
				o.Model = cfg.ModelName
			}
		}), nil
	case "anthropic":
		return anthropic.NewModel(func(o *anthropic.Options) {
			if cfg.ModelName != "" {
				o.Model = anthropicsdk.Model(cfg.ModelName)
			}
		}), nil
	default:
		return nil, fmt.Errorf("unknown MODEL_API %q (want openai or anthropic)", cfg.ModelAPI)
	}
}
