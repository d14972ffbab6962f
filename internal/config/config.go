package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "NPKCAL_"

// Store drivers.
const (
	DriverMemory    = "memory"
	DriverPostgres  = "postgres"
	DriverNATS      = "nats"
	DriverFirestore = "firestore"
)

// Config represents the top-level configuration for npkcal.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Log     LogConfig     `koanf:"log"`
	Worker  WorkerConfig  `koanf:"worker"`
	Store   StoreConfig   `koanf:"store"`
	Model   ModelConfig   `koanf:"model"`
	Metrics MetricsConfig `koanf:"metrics"`
}

type ServerConfig struct {
	Port int    `koanf:"port"`
	Host string `koanf:"host"`
	Mode string `koanf:"mode"` // debug | release

	MaxBodySizeKB int `koanf:"max_body_size_kb"` // POST /v1/readings body limit
}

type LogConfig struct {
	Level  string `koanf:"level"`  // debug | info | warn | error
	Format string `koanf:"format"` // text | json
}

type WorkerConfig struct {
	Autostart            bool          `koanf:"autostart"`
	RawCollection        string        `koanf:"raw_collection"`
	CalibratedCollection string        `koanf:"calibrated_collection"`
	TimestampField       string        `koanf:"timestamp_field"`
	QueueSize            int           `koanf:"queue_size"`
	MaxAttempts          int           `koanf:"max_attempts"` // 0 disables dead-lettering
	ShutdownTimeout      time.Duration `koanf:"shutdown_timeout"`
}

type StoreConfig struct {
	Driver    string          `koanf:"driver"`
	Postgres  PostgresConfig  `koanf:"postgres"`
	NATS      NATSConfig      `koanf:"nats"`
	Firestore FirestoreConfig `koanf:"firestore"`
}

type PostgresConfig struct {
	DSN           string `koanf:"dsn"`
	MaxOpenConns  int    `koanf:"max_open_conns"`
	MaxIdleConns  int    `koanf:"max_idle_conns"`
	AutoMigrate   bool   `koanf:"auto_migrate"`
	NotifyChannel string `koanf:"notify_channel"`
}

type NATSConfig struct {
	URL          string `koanf:"url"`
	BucketPrefix string `koanf:"bucket_prefix"`
}

type FirestoreConfig struct {
	ProjectID       string `koanf:"project_id"`
	CredentialsFile string `koanf:"credentials_file"`
	CredentialsEnv  string `koanf:"credentials_env"` // env var holding the service account JSON
}

type ModelConfig struct {
	Type    string        `koanf:"type"` // linear | remote
	Path    string        `koanf:"path"`
	URL     string        `koanf:"url"`
	Timeout time.Duration `koanf:"timeout"`
}

type MetricsConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Namespace string `koanf:"namespace"`
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.MaxBodySizeKB <= 0 {
		return fmt.Errorf("server.max_body_size_kb must be > 0")
	}
	if strings.TrimSpace(c.Server.Host) == "" {
		return fmt.Errorf("server.host is required")
	}
	if c.Server.Mode != "debug" && c.Server.Mode != "release" {
		return fmt.Errorf("invalid server.mode %q (must be debug or release)", c.Server.Mode)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log.level %q", c.Log.Level)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("invalid log.format %q (must be text or json)", c.Log.Format)
	}

	if strings.TrimSpace(c.Worker.RawCollection) == "" {
		return fmt.Errorf("worker.raw_collection is required")
	}
	if strings.TrimSpace(c.Worker.CalibratedCollection) == "" {
		return fmt.Errorf("worker.calibrated_collection is required")
	}
	if c.Worker.RawCollection == c.Worker.CalibratedCollection {
		return fmt.Errorf("worker.raw_collection and worker.calibrated_collection must differ")
	}
	if strings.TrimSpace(c.Worker.TimestampField) == "" {
		return fmt.Errorf("worker.timestamp_field is required")
	}
	if c.Worker.QueueSize <= 0 {
		return fmt.Errorf("worker.queue_size must be > 0")
	}
	if c.Worker.MaxAttempts < 0 {
		return fmt.Errorf("worker.max_attempts must be >= 0")
	}
	if c.Worker.ShutdownTimeout <= 0 {
		return fmt.Errorf("worker.shutdown_timeout must be > 0")
	}

	switch c.Store.Driver {
	case DriverMemory:
	case DriverPostgres:
		if strings.TrimSpace(c.Store.Postgres.DSN) == "" {
			return fmt.Errorf("store.postgres.dsn is required")
		}
		if c.Store.Postgres.MaxOpenConns <= 0 {
			return fmt.Errorf("store.postgres.max_open_conns must be > 0")
		}
		if c.Store.Postgres.MaxIdleConns <= 0 {
			return fmt.Errorf("store.postgres.max_idle_conns must be > 0")
		}
		if strings.TrimSpace(c.Store.Postgres.NotifyChannel) == "" {
			return fmt.Errorf("store.postgres.notify_channel is required")
		}
	case DriverNATS:
		if strings.TrimSpace(c.Store.NATS.URL) == "" {
			return fmt.Errorf("store.nats.url is required")
		}
	case DriverFirestore:
		if c.Store.Firestore.CredentialsFile == "" && c.Store.Firestore.CredentialsEnv == "" {
			return fmt.Errorf("store.firestore needs credentials_file or credentials_env")
		}
	default:
		return fmt.Errorf("unsupported store.driver %q", c.Store.Driver)
	}

	switch c.Model.Type {
	case "linear":
		if strings.TrimSpace(c.Model.Path) == "" {
			return fmt.Errorf("model.path is required for linear models")
		}
		if _, err := os.Stat(c.Model.Path); err != nil {
			return fmt.Errorf("model.path %q is not accessible: %w", c.Model.Path, err)
		}
	case "remote":
		if strings.TrimSpace(c.Model.URL) == "" {
			return fmt.Errorf("model.url is required for remote models")
		}
		if c.Model.Timeout <= 0 {
			return fmt.Errorf("model.timeout must be > 0")
		}
	default:
		return fmt.Errorf("unsupported model.type %q", c.Model.Type)
	}

	return nil
}

// Load parses config from defaults, file and env, then validates it.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"server.port":                      8080,
		"server.host":                      "0.0.0.0",
		"server.mode":                      "release",
		"server.max_body_size_kb":          64,
		"log.level":                        "info",
		"log.format":                       "text",
		"worker.autostart":                 true,
		"worker.raw_collection":            "npk_readings",
		"worker.calibrated_collection":     "calibrated_npk_readings_sensor_1",
		"worker.timestamp_field":           "timestamp",
		"worker.queue_size":                64,
		"worker.max_attempts":              3,
		"worker.shutdown_timeout":          "10s",
		"store.driver":                     DriverMemory,
		"store.postgres.dsn":               "",
		"store.postgres.max_open_conns":    10,
		"store.postgres.max_idle_conns":    5,
		"store.postgres.auto_migrate":      true,
		"store.postgres.notify_channel":    "npkcal_documents",
		"store.nats.url":                   "nats://127.0.0.1:4222",
		"store.nats.bucket_prefix":         "npkcal",
		"store.firestore.project_id":       "",
		"store.firestore.credentials_file": "firebase-adminsdk.json",
		"store.firestore.credentials_env":  "FIREBASE_CREDENTIALS_JSON",
		"model.type":                       "linear",
		"model.path":                       "soil_calibration_model.yaml",
		"model.url":                        "",
		"model.timeout":                    "5s",
		"metrics.enabled":                  true,
		"metrics.namespace":                "npkcal",
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// NPKCAL_STORE__POSTGRES__DSN=... overrides store.postgres.dsn
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// Unprefixed collection names kept for existing deployments.
	if v := os.Getenv("RAW_COLLECTION"); v != "" {
		k.Set("worker.raw_collection", v)
	}
	if v := os.Getenv("CALIBRATED_COLLECTION"); v != "" {
		k.Set("worker.calibrated_collection", v)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Production reports whether the service runs on the hosted platform.
func Production() bool {
	return os.Getenv("RENDER") != ""
}
