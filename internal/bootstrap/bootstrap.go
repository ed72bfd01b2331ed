// Package bootstrap wires configuration, storage, providers, and the HTTP
// server into a runnable application.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/costargen/costargen/internal/api"
	"github.com/costargen/costargen/internal/config"
	"github.com/costargen/costargen/internal/generate"
	log "github.com/costargen/costargen/internal/logging"
	"github.com/costargen/costargen/internal/logging"
	"github.com/costargen/costargen/internal/provider"
	"github.com/costargen/costargen/internal/quota"
	"github.com/costargen/costargen/internal/usage"
)

// App holds every long-lived component; Stop tears them down in reverse
// construction order.
type App struct {
	Config   *config.Config
	Registry *provider.Registry
	Ledger   *quota.Ledger
	Recorder *usage.Recorder
	Server   *api.Server
}

// Load reads .env, the YAML config, and environment overrides, then
// configures logging. It should run before any component construction.
func Load(configPath string) (*config.Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	if errLoad := godotenv.Load(filepath.Join(wd, ".env")); errLoad != nil {
		if !errors.Is(errLoad, os.ErrNotExist) {
			log.WithError(errLoad).Warnf("Failed to load .env file")
		}
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	config.ApplyEnvOverrides(cfg)

	if err := logging.Configure(logging.Options{
		Debug:    cfg.Debug,
		ToFile:   cfg.LoggingToFile,
		FilePath: cfg.LogFilePath,
	}); err != nil {
		return nil, fmt.Errorf("failed to configure logging: %w", err)
	}

	return cfg, nil
}

// New constructs the full application from a loaded config. Background
// workers are not started; call Start.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	store, err := quota.NewStore(ctx, cfg.Quota.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open quota store: %w", err)
	}
	ledger := quota.NewLedger(quota.NewBreakerStore(store), cfg.Quota.DailyRetentionDays, cfg.Quota.MonthlyRetentionMonths)

	registry := provider.LoadFromEnvironment(cfg.InvokeTimeout())
	if registry.Len() == 0 {
		log.Warnf("No provider credentials found, every request will use the static fallback")
	} else {
		log.Infof("Loaded %d providers: %v", registry.Len(), registry.Names())
	}

	backend, err := usage.NewBackend(usage.BackendConfig{
		DSN:           cfg.Usage.DSN,
		BatchSize:     cfg.Usage.BatchSize,
		FlushInterval: cfg.Usage.FlushInterval(),
		RetentionDays: cfg.Usage.RetentionDays,
	})
	if err != nil {
		_ = ledger.Stop()
		return nil, fmt.Errorf("failed to open usage backend: %w", err)
	}
	recorder := usage.NewRecorder(backend)

	service := generate.NewService(registry, ledger, recorder, generate.Options{
		Params: provider.GenerationParams{
			Temperature: cfg.Generation.Temperature,
			MaxTokens:   cfg.Generation.MaxTokens,
		},
		InvokeTimeout:  cfg.InvokeTimeout(),
		MaxAttempts:    cfg.Generation.MaxProviderAttempts,
		AnonDailyLimit: cfg.Quota.AnonymousDailyLimit,
	})

	return &App{
		Config:   cfg,
		Registry: registry,
		Ledger:   ledger,
		Recorder: recorder,
		Server:   api.NewServer(cfg, service, registry, recorder),
	}, nil
}

// Start launches background workers and the HTTP listener. It blocks
// until the listener stops.
func (a *App) Start(ctx context.Context) error {
	a.Ledger.Start()
	if err := a.Recorder.Start(ctx); err != nil {
		log.WithError(err).Warnf("Usage recorder failed to bootstrap counters")
	}

	log.Infof("Listening on :%d", a.Config.Port)
	return a.Server.Start()
}

// Stop drains the server and flushes storage.
func (a *App) Stop(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warnf("Server shutdown did not complete cleanly")
	}
	if err := a.Recorder.Stop(); err != nil {
		log.WithError(err).Warnf("Usage recorder shutdown failed")
	}
	if err := a.Ledger.Stop(); err != nil {
		log.WithError(err).Warnf("Quota ledger shutdown failed")
	}
}
