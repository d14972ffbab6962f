package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/agrisense-lab/npkcal/internal/config"
	"github.com/agrisense-lab/npkcal/internal/ingestion"
	"github.com/agrisense-lab/npkcal/internal/server"
	"github.com/agrisense-lab/npkcal/internal/worker"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP control surface and the calibration worker",
		Long: `Run the HTTP control surface (/, /health, /ready, /start, /stop, /status,
/metrics) and the readings API under /v1/readings. With worker.autostart the
worker attaches to the raw collection immediately; otherwise it waits for
POST /start.

Examples:
  npkcal serve
  npkcal serve --config /etc/npkcal/npkcal.yaml
  NPKCAL_STORE__DRIVER=postgres NPKCAL_STORE__POSTGRES__DSN=postgres://... npkcal serve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			newLogger(os.Stdout, cfg.Log)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	logBanner(cfg)

	a, err := newApp(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialize", "error", err)
		return err
	}
	defer a.Close()

	ctrl := worker.NewController(ctx, func() worker.Runner { return a.newReconciler() }, a.metrics)

	srv := server.New(fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port), a.health, cfg.Server.Mode)
	ctrl.RegisterRoutes(srv.Engine)
	ingestion.NewService(a.store, a.processor, cfg.Worker.TimestampField, cfg.Server.MaxBodySizeKB).RegisterRoutes(srv.Engine)
	if a.metricsH != nil {
		srv.MountMetrics(a.metricsH)
	}

	if cfg.Worker.Autostart {
		slog.Info("[Worker] Autostart enabled", "result", ctrl.Start())
	} else {
		slog.Info("[Worker] Autostart disabled, waiting for POST /start")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Signal received, shutting down...", "worker", ctrl.Stop())

		waitCtx, cancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
		defer cancel()
		if err := ctrl.Wait(waitCtx); err != nil {
			return fmt.Errorf("worker did not stop within %s: %w", cfg.Worker.ShutdownTimeout, err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("Server stopped with error", "error", err)
		return err
	}
	slog.Info("Shutdown complete")
	return nil
}

func logBanner(cfg *config.Config) {
	env := "development"
	if config.Production() {
		env = "production"
	}
	slog.Info("Starting NPK calibration worker",
		"monitoring", cfg.Worker.RawCollection,
		"target", cfg.Worker.CalibratedCollection,
		"store", cfg.Store.Driver,
		"model", cfg.Model.Type,
		"environment", env,
	)
}
