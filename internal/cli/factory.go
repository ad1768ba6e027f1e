package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	backend "github.com/redis/go-redis/v9"

	"github.com/aretw0/hpyharness"
	"github.com/aretw0/hpyharness/internal/config"
	"github.com/aretw0/hpyharness/internal/logging"
	"github.com/aretw0/hpyharness/internal/telemetry"
	"github.com/aretw0/hpyharness/pkg/adapters/redis"
	"github.com/aretw0/hpyharness/pkg/observability"
	"github.com/aretw0/hpyharness/pkg/ports"
)

// Options carries the settings shared by every subcommand.
type Options struct {
	ConfigPath string
	LogLevel   string
	LogFormat  string
	// Set holds key=value build option overrides (debug, force, abi, ...).
	Set     map[string]string
	WorkDir string

	// Registerer, if set, receives the harness metrics.
	Registerer prometheus.Registerer
	// Toolchain replaces the configured compiler.
	Toolchain ports.Toolchain
	Stderr    io.Writer
}

// LoadConfig reads the config file and the environment, then applies the
// --set overrides and command line log settings.
func LoadConfig(opts Options) (config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return config.Config{}, err
	}
	if len(opts.Set) > 0 {
		raw := make(map[string]any, len(opts.Set))
		for k, v := range opts.Set {
			raw[k] = v
		}
		bo, err := config.DecodeOptions(cfg.BuildOptions(), raw)
		if err != nil {
			return config.Config{}, err
		}
		cfg.Debug, cfg.Force, cfg.OutputDir, cfg.Verbose = bo.Debug, bo.Force, bo.OutputDir, bo.Verbose
		if bo.ABI != "" {
			cfg.ABI = bo.ABI
		}
	}
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}
	if opts.LogFormat != "" {
		cfg.LogFormat = opts.LogFormat
	}
	if err := cfg.Normalize(); err != nil {
		return config.Config{}, err
	}
	return cfg, cfg.Validate()
}

// App bundles what a subcommand needs.
type App struct {
	Harness *hpyharness.Harness
	Logger  *slog.Logger
	// History is nil unless Redis is configured.
	History *redis.History

	shutdownTracing func(context.Context) error
}

// Close flushes traces and releases the Redis connection, if any.
func (a *App) Close() error {
	var errs []error
	if a.shutdownTracing != nil {
		errs = append(errs, a.shutdownTracing(context.Background()))
	}
	if a.History != nil {
		errs = append(errs, a.History.Close())
	}
	return errors.Join(errs...)
}

// NewApp builds a Harness following CLI conventions: logs go to stderr,
// every lifecycle event is logged, metrics are recorded when a registerer
// is supplied, and builds are locked and recorded in Redis when configured.
func NewApp(opts Options) (*App, error) {
	cfg, err := LoadConfig(opts)
	if err != nil {
		return nil, err
	}

	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	app := &App{Logger: logging.NewWithFormat(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat, stderr)}

	app.shutdownTracing, err = telemetry.Setup(context.Background(), "hpyharness", cfg.OTelEndpoint)
	if err != nil {
		return nil, fmt.Errorf("setup tracing: %w", err)
	}

	hooks := observability.LogHooks(app.Logger)
	if opts.Registerer != nil {
		hooks = hooks.Merge(observability.NewMetrics(opts.Registerer).Hooks())
	}

	hopts := []hpyharness.Option{
		hpyharness.WithConfig(cfg),
		hpyharness.WithLogger(app.Logger),
	}
	if cfg.Redis.Addr != "" {
		client := backend.NewClient(&backend.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		app.History = redis.NewHistory(client,
			redis.WithPrefix(cfg.Redis.Prefix),
			redis.WithLimit(cfg.Redis.HistoryLimit),
			redis.WithLogger(app.Logger),
		)
		hooks = hooks.Merge(app.History.Hooks())
		hopts = append(hopts, hpyharness.WithLocker(redis.NewLocker(client, cfg.Redis.Prefix)))
	}
	hopts = append(hopts, hpyharness.WithLifecycleHooks(hooks))
	if opts.WorkDir != "" {
		hopts = append(hopts, hpyharness.WithWorkDir(opts.WorkDir))
	}
	if opts.Toolchain != nil {
		hopts = append(hopts, hpyharness.WithToolchain(opts.Toolchain))
	}

	h, err := hpyharness.New(hopts...)
	if err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("error initializing harness: %w", err)
	}
	app.Harness = h
	return app, nil
}
