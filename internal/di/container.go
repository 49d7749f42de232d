// Package di assembles the application graph. Construction is explicit and
// staged; every stage either succeeds or tears down what came before it.
package di

import (
	"context"
	"fmt"

	supabase "github.com/supabase-community/supabase-go"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BrandvoiceRetail/idea-brand-coach-sub000/internal/config"
	"github.com/BrandvoiceRetail/idea-brand-coach-sub000/internal/infrastructure/observability"
	"github.com/BrandvoiceRetail/idea-brand-coach-sub000/internal/infrastructure/persistence/sqlite"
	"github.com/BrandvoiceRetail/idea-brand-coach-sub000/internal/infrastructure/remote"
	"github.com/BrandvoiceRetail/idea-brand-coach-sub000/internal/repository"
	syncengine "github.com/BrandvoiceRetail/idea-brand-coach-sub000/internal/sync"
)

// Container holds the wired application components.
type Container struct {
	Config     *config.Config
	Logger     *zap.Logger
	Metrics    *observability.Collector
	Store      *sqlite.Store
	Repository *repository.KnowledgeRepository
	Remote     remote.Store
	Monitor    *syncengine.ProbeMonitor
	Engine     *syncengine.Engine

	shutdownFunctions []func() error
}

// NewContainer builds every component in dependency order.
func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	c := &Container{Config: cfg}

	if err := c.initialize(ctx); err != nil {
		c.runShutdown()
		return nil, err
	}
	return c, nil
}

func (c *Container) initialize(ctx context.Context) error {
	// 1. Logger
	if err := c.initializeLogger(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	// 2. Metrics registry
	c.Metrics = observability.NewCollector(c.Config.Store.Namespace)

	// 3. Local store
	if err := c.initializeStore(ctx); err != nil {
		return fmt.Errorf("failed to initialize local store: %w", err)
	}

	// 4. Repository
	c.Repository = repository.NewKnowledgeRepository(c.Store, c.Logger)

	// 5. Remote store with circuit breaker
	if err := c.initializeRemote(); err != nil {
		return fmt.Errorf("failed to initialize remote store: %w", err)
	}

	// 6. Connectivity monitor
	c.Monitor = syncengine.NewProbeMonitor(
		c.Config.Remote.URL, c.Config.Remote.ProbeInterval, c.Logger)
	c.Monitor.Start()
	c.addShutdownFunction(func() error {
		c.Monitor.Stop()
		return nil
	})

	// 7. Sync engine
	if err := c.initializeEngine(); err != nil {
		return fmt.Errorf("failed to initialize sync engine: %w", err)
	}

	c.Logger.Info("container initialized",
		zap.Strings("configSources", c.Config.LoadedFrom),
		zap.String("environment", string(c.Config.Environment)))
	return nil
}

func (c *Container) initializeLogger() error {
	var zapCfg zap.Config
	if c.Config.Environment == config.Production {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(c.Config.Logging.Level)
	if err != nil {
		return err
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.Encoding = c.Config.Logging.Format

	logger, err := zapCfg.Build()
	if err != nil {
		return err
	}
	c.Logger = logger
	c.addShutdownFunction(func() error {
		// Sync on stdout/stderr fails on some platforms; not actionable.
		_ = logger.Sync()
		return nil
	})
	return nil
}

func (c *Container) initializeStore(ctx context.Context) error {
	store, err := sqlite.New(sqlite.Config{
		Path:      c.Config.Store.Path,
		Namespace: c.Config.Store.Namespace,
	}, c.Logger, c.Metrics)
	if err != nil {
		return err
	}
	if err := store.Initialize(ctx); err != nil {
		return err
	}
	c.Store = store
	c.addShutdownFunction(store.Close)
	return nil
}

func (c *Container) initializeRemote() error {
	client, err := supabase.NewClient(c.Config.Remote.URL, c.Config.Remote.APIKey, nil)
	if err != nil {
		return err
	}
	c.Remote = remote.NewSupabaseStore(
		client, c.Config.Remote.Table, remote.DefaultBreakerConfig(), c.Logger)
	return nil
}

func (c *Container) initializeEngine() error {
	policy, err := syncengine.PolicyFor(c.Config.Sync.ConflictPolicy)
	if err != nil {
		return err
	}

	engine := syncengine.NewEngine(
		c.Repository, c.Remote, c.Monitor, policy,
		syncengine.Config{
			DrainInterval:    c.Config.Sync.DrainInterval,
			MaxRetries:       c.Config.Sync.MaxRetries,
			BaseDelay:        c.Config.Sync.BaseDelay,
			ForceSyncTimeout: c.Config.Sync.ForceSyncTimeout,
		},
		c.Logger, c.Metrics)
	engine.Start()
	c.Engine = engine
	c.addShutdownFunction(func() error {
		engine.Stop()
		return nil
	})
	return nil
}

func (c *Container) addShutdownFunction(fn func() error) {
	c.shutdownFunctions = append(c.shutdownFunctions, fn)
}

// Shutdown tears components down in reverse construction order.
func (c *Container) Shutdown(ctx context.Context) error {
	done := make(chan error, 1)
	go func() { done <- c.runShutdown() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Container) runShutdown() error {
	var errs []error
	for i := len(c.shutdownFunctions) - 1; i >= 0; i-- {
		if err := c.shutdownFunctions[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.shutdownFunctions = nil
	if len(errs) > 0 {
		return fmt.Errorf("shutdown completed with %d errors, first: %w", len(errs), errs[0])
	}
	return nil
}
