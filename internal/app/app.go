package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/hectronix2005/Mejor-Inversion/internal/alerting"
	"github.com/hectronix2005/Mejor-Inversion/internal/config"
	"github.com/hectronix2005/Mejor-Inversion/internal/orchestrator"
	"github.com/hectronix2005/Mejor-Inversion/internal/registry"
	"github.com/hectronix2005/Mejor-Inversion/internal/scheduler"
	"github.com/hectronix2005/Mejor-Inversion/internal/service"
	"github.com/hectronix2005/Mejor-Inversion/internal/store"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

// openStore selects the snapshot backend: PostgreSQL when a DSN is
// configured, the JSON file store otherwise.
func (a *App) openStore(ctx context.Context) (store.Store, func(), error) {
	if a.Config.Storage.DSN != "" {
		pool, err := store.NewPool(ctx, a.Config.Storage)
		if err != nil {
			return nil, nil, err
		}
		st := store.NewPostgresStore(pool)
		return st, st.Close, nil
	}

	st, err := store.NewFileStore(a.Config.Storage.DataDir)
	if err != nil {
		return nil, nil, err
	}
	return st, st.Close, nil
}

func (a *App) buildRegistry() (*registry.Registry, error) {
	return registry.Build(a.Config.Sources, registry.BuildOptions{
		DefaultTimeout: a.Config.Scraper.DefaultTimeout,
		UserAgent:      a.Config.Scraper.UserAgent,
	}, a.Logger)
}

func (a *App) newOrchestrator(reg *registry.Registry, st store.Store) *orchestrator.Orchestrator {
	return orchestrator.New(reg, st, orchestrator.Options{
		RunBudget:      a.Config.Scraper.RunBudget,
		MaxConcurrent:  a.Config.Scraper.MaxConcurrent,
		FetchGrace:     a.Config.Scraper.FetchGrace,
		RateCeilingPct: decimal.NewFromFloat(a.Config.Scraper.RateCeilingPct),
	}, a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Enabled && a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

func (a *App) newScheduler() *scheduler.Scheduler {
	if !a.Config.Scheduler.Enabled {
		return nil
	}
	return scheduler.New(scheduler.Options{
		Interval:      a.Config.Scheduler.Interval,
		AlignToBucket: a.Config.Scheduler.AlignToBucket,
		StartupDelay:  a.Config.Scheduler.StartupDelay,
	}, a.Logger)
}

// newService assembles the full collection stack over an open store.
func (a *App) newService(st store.Store) (*service.Service, error) {
	reg, err := a.buildRegistry()
	if err != nil {
		return nil, err
	}
	orc := a.newOrchestrator(reg, st)
	return service.New(orc, st, a.newScheduler(), a.newNotifier(), a.Config.Alerting.Enabled, a.Logger), nil
}
