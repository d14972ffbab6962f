package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/agrisense-lab/npkcal/internal/calibration"
	"github.com/agrisense-lab/npkcal/internal/config"
	"github.com/agrisense-lab/npkcal/internal/core/storage"
	"github.com/agrisense-lab/npkcal/internal/core/storage/firestore"
	"github.com/agrisense-lab/npkcal/internal/core/storage/memory"
	"github.com/agrisense-lab/npkcal/internal/core/storage/natskv"
	"github.com/agrisense-lab/npkcal/internal/core/storage/postgres"
	"github.com/agrisense-lab/npkcal/internal/metrics"
	"github.com/agrisense-lab/npkcal/internal/migrations"
	"github.com/agrisense-lab/npkcal/internal/model"
	"github.com/agrisense-lab/npkcal/internal/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// app holds the collaborators shared by every command.
type app struct {
	cfg       *config.Config
	store     storage.DocumentStore
	health    server.HealthChecker
	predictor model.Predictor
	metrics   metrics.Collector
	metricsH  http.Handler
	processor *calibration.Processor
}

// loadConfig reads configPath. The default path is optional; an explicit one
// must exist.
func loadConfig(path string) (*config.Config, error) {
	if path == defaultConfigPath {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			path = ""
		}
	}
	return config.Load(path)
}

// newApp opens the store, loads the model and builds the processor. Store
// credentials and the model load completely before anything attaches.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg, metrics: metrics.NewNop()}

	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m, err := metrics.NewPrometheus(reg, cfg.Metrics.Namespace)
		if err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
		a.metrics = m
		a.metricsH = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}

	predictor, err := model.New(model.Options{
		Type:    cfg.Model.Type,
		Path:    cfg.Model.Path,
		URL:     cfg.Model.URL,
		Timeout: cfg.Model.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load calibration model: %w", err)
	}
	a.predictor = predictor
	slog.Info("[Model] Calibration model loaded", "type", cfg.Model.Type, "path", cfg.Model.Path, "url", cfg.Model.URL)

	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.store = store
	if hc, ok := store.(server.HealthChecker); ok {
		a.health = hc
	}

	a.processor = calibration.NewProcessor(store, predictor, calibration.Collections{
		Raw:        cfg.Worker.RawCollection,
		Calibrated: cfg.Worker.CalibratedCollection,
	}, a.metrics)
	return a, nil
}

func openStore(ctx context.Context, cfg *config.Config) (storage.DocumentStore, error) {
	w := cfg.Worker
	switch cfg.Store.Driver {
	case config.DriverMemory:
		slog.Warn("[Store] Using in-memory document store, data is lost on exit")
		return memory.New(memory.WithQueueSize(w.QueueSize)), nil

	case config.DriverPostgres:
		pg := cfg.Store.Postgres
		db, err := postgres.Open(pg.DSN, pg.MaxOpenConns, pg.MaxIdleConns)
		if err != nil {
			return nil, err
		}
		if err := migrations.RunMigrations(db, pg.AutoMigrate); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run database migrations: %w", err)
		}
		store, err := postgres.NewStore(db, pg.DSN,
			postgres.WithNotifyChannel(pg.NotifyChannel),
			postgres.WithQueueSize(w.QueueSize),
		)
		if err != nil {
			db.Close()
			return nil, err
		}
		return store, nil

	case config.DriverNATS:
		n := cfg.Store.NATS
		store, err := natskv.Connect(n.URL,
			natskv.WithBucketPrefix(n.BucketPrefix),
			natskv.WithQueueSize(w.QueueSize),
		)
		if err != nil {
			return nil, err
		}
		return store, nil

	case config.DriverFirestore:
		fs := cfg.Store.Firestore
		creds, err := firestore.LoadCredentials(fs.CredentialsEnv, fs.CredentialsFile, fs.ProjectID)
		if err != nil {
			return nil, err
		}
		store, err := firestore.Open(ctx, creds, firestore.WithQueueSize(w.QueueSize))
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	return nil, fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
}

// newReconciler builds a fresh Reconciler. Each worker run gets its own so
// that process-local state starts empty.
func (a *app) newReconciler() *calibration.Reconciler {
	return calibration.NewReconciler(a.store, a.processor, calibration.ReconcilerOptions{
		Collection:     a.cfg.Worker.RawCollection,
		TimestampField: a.cfg.Worker.TimestampField,
		MaxAttempts:    a.cfg.Worker.MaxAttempts,
	}, a.metrics)
}

func (a *app) Close() {
	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		slog.Error("[Store] Failed to close document store", "error", err)
	}
}
