package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/fairscan/internal/server"
	"github.com/hyperjump/fairscan/internal/watcher"
)

func newServeCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and watch the configured model directories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, g)
		},
	}
}

func runServe(cmd *cobra.Command, g *globalFlags) error {
	cfg, configPath, logger, err := g.setup(false)
	if err != nil {
		return err
	}
	defer logger.Sync()
	logger.Info("config loaded", zap.String("config_path", configPath), zap.Bool("debug", cfg.Debug || g.debug))

	c, err := newComponents(cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	exts := cfg.Watch.Extensions
	watch := watcher.New(cfg.Watch.Directories, exts, cfg.Watch.RecursiveOrDefault(),
		watcher.NewAuditHandler(c.auditor, exts, logger), watcher.WithLogger(logger))
	if err := watch.Start(ctx); err != nil {
		return err
	}
	defer watch.Stop()
	go watch.SyncExisting()

	srv := server.NewServer(c.auditor, c.storage, cfg, logger, watch, configPath)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Stop(shutdownCtx)
}
