// Package config loads the daemon configuration from layered sources:
// compiled defaults, an optional YAML file, then environment variables.
// The final result is validated before anything is wired from it.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	appErrors "github.com/BrandvoiceRetail/idea-brand-coach-sub000/internal/errors"
)

// Environment names the deployment environment.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// Config is the full daemon configuration.
type Config struct {
	Environment Environment `yaml:"environment" validate:"oneof=development staging production"`

	Store   Store   `yaml:"store"`
	Remote  Remote  `yaml:"remote"`
	Sync    Sync    `yaml:"sync"`
	Server  Server  `yaml:"server"`
	Logging Logging `yaml:"logging"`

	// LoadedFrom records which sources contributed, for startup logging.
	LoadedFrom []string `yaml:"-"`
}

// Store configures the on-device SQLite store.
type Store struct {
	Path      string `yaml:"path" validate:"required"`
	Namespace string `yaml:"namespace" validate:"required"`
}

// Remote configures the authoritative Supabase store and its probe.
type Remote struct {
	URL           string        `yaml:"url" validate:"required,url"`
	APIKey        string        `yaml:"apiKey" validate:"required"`
	Table         string        `yaml:"table" validate:"required"`
	ProbeInterval time.Duration `yaml:"probeInterval" validate:"min=1s"`
}

// Sync tunes the propagation engine.
type Sync struct {
	DrainInterval    time.Duration `yaml:"drainInterval" validate:"min=100ms"`
	MaxRetries       int           `yaml:"maxRetries" validate:"min=1,max=10"`
	BaseDelay        time.Duration `yaml:"baseDelay" validate:"min=10ms"`
	ForceSyncTimeout time.Duration `yaml:"forceSyncTimeout" validate:"min=1s"`
	ConflictPolicy   string        `yaml:"conflictPolicy" validate:"oneof=local-first remote-first manual"`
}

// Server configures the metrics and health HTTP listener.
type Server struct {
	Port            int           `yaml:"port" validate:"min=1,max=65535"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" validate:"min=1s"`
}

// Logging configures the zap logger.
type Logging struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json console"`
}

var validate = validator.New()

// Default returns the compiled-in defaults. They are complete enough to run
// against a local Supabase instance without any file or environment.
func Default() Config {
	return Config{
		Environment: Development,
		Store: Store{
			Path:      "brandcoach.db",
			Namespace: "brandcoach",
		},
		Remote: Remote{
			URL:           "http://localhost:54321",
			APIKey:        "anon",
			Table:         "knowledge_entries",
			ProbeInterval: 10 * time.Second,
		},
		Sync: Sync{
			DrainInterval:    5 * time.Second,
			MaxRetries:       3,
			BaseDelay:        time.Second,
			ForceSyncTimeout: 30 * time.Second,
			ConflictPolicy:   "local-first",
		},
		Server: Server{
			Port:            9090,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: Logging{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration. path names the YAML file; an empty path or
// a missing file is not an error, the file layer is simply skipped.
func Load(path string) (*Config, error) {
	cfg := Default()
	cfg.LoadedFrom = []string{"defaults"}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// fall through to env overlay
		case err != nil:
			return nil, appErrors.Config(appErrors.CodeConfigLoad, "cannot read config file").
				WithDetails(path).WithCause(err).Build()
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, appErrors.Config(appErrors.CodeConfigLoad, "cannot parse config file").
					WithDetails(path).WithCause(err).Build()
			}
			cfg.LoadedFrom = append(cfg.LoadedFrom, path)
		}
	}

	cfg.applyEnvironment()
	cfg.LoadedFrom = append(cfg.LoadedFrom, "environment")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the assembled configuration against the struct tags.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return appErrors.Config(appErrors.CodeConfigInvalid, "configuration rejected").
			WithCause(err).Build()
	}
	return nil
}

// applyEnvironment overlays environment variables, the highest priority
// source. Only variables that are set override the current value.
func (c *Config) applyEnvironment() {
	if v := os.Getenv("ENVIRONMENT"); v != "" {
		c.Environment = Environment(v)
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("DB_NAMESPACE"); v != "" {
		c.Store.Namespace = v
	}
	if v := os.Getenv("SUPABASE_URL"); v != "" {
		c.Remote.URL = v
	}
	if v := os.Getenv("SUPABASE_ANON_KEY"); v != "" {
		c.Remote.APIKey = v
	}
	if v := os.Getenv("SUPABASE_TABLE"); v != "" {
		c.Remote.Table = v
	}
	if v := os.Getenv("SYNC_DRAIN_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Sync.DrainInterval = d
		}
	}
	if v := os.Getenv("SYNC_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Sync.MaxRetries = n
		}
	}
	if v := os.Getenv("CONFLICT_POLICY"); v != "" {
		c.Sync.ConflictPolicy = v
	}
	if v := os.Getenv("METRICS_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Server.Port = n
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
}
