package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hectronix2005/Mejor-Inversion/internal/alerting"
	"github.com/hectronix2005/Mejor-Inversion/internal/orchestrator"
	"github.com/hectronix2005/Mejor-Inversion/internal/rates"
	"github.com/hectronix2005/Mejor-Inversion/internal/scheduler"
	"github.com/hectronix2005/Mejor-Inversion/internal/store"
)

// Service ties the orchestrator, persistence, scheduling, and alerting
// together. It caches the latest snapshot so API reads never wait on a run.
type Service struct {
	orc       *orchestrator.Orchestrator
	store     store.Store
	scheduler *scheduler.Scheduler
	notifier  alerting.Notifier
	alertsOn  bool
	logger    zerolog.Logger

	mu     sync.RWMutex
	latest rates.Snapshot
	loaded bool
}

// New constructs the rate collection service. The scheduler and notifier
// are optional; the store is required.
func New(orc *orchestrator.Orchestrator, st store.Store, sched *scheduler.Scheduler, notifier alerting.Notifier, alertsOn bool, logger zerolog.Logger) *Service {
	return &Service{
		orc:       orc,
		store:     st,
		scheduler: sched,
		notifier:  notifier,
		alertsOn:  alertsOn && notifier != nil,
		logger:    logger.With().Str("component", "service").Logger(),
	}
}

// Run begins the periodic refresh loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, s.refreshTick)
}

func (s *Service) refreshTick(ctx context.Context, scheduledAt time.Time) error {
	_, _, err := s.RunOnce(ctx)
	if errors.Is(err, orchestrator.ErrRunInProgress) {
		s.logger.Warn().Time("scheduled_at", scheduledAt).Msg("skipping refresh, a run is already in progress")
		return nil
	}
	return err
}

// RunOnce executes one complete scrape run against the current snapshot.
// ErrRunInProgress passes through so callers can report the conflict.
func (s *Service) RunOnce(ctx context.Context) (rates.Snapshot, orchestrator.Report, error) {
	previous, err := s.Current(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("could not load previous snapshot, running without carry-forward")
		previous = rates.Snapshot{}
	}

	snap, report, err := s.orc.Run(ctx, previous, 0)
	if err != nil {
		return rates.Snapshot{}, orchestrator.Report{}, err
	}

	if !snap.Empty() {
		s.mu.Lock()
		s.latest = snap
		s.loaded = true
		s.mu.Unlock()
	}

	s.maybeAlert(ctx, report)
	return snap, report, nil
}

// Current returns the most recent snapshot, loading it from the store on
// first use.
func (s *Service) Current(ctx context.Context) (rates.Snapshot, error) {
	s.mu.RLock()
	if s.loaded {
		snap := s.latest
		s.mu.RUnlock()
		return snap, nil
	}
	s.mu.RUnlock()

	if s.store == nil {
		return rates.Snapshot{}, nil
	}
	snap, err := s.store.ReadCurrent(ctx)
	if err != nil {
		return rates.Snapshot{}, err
	}

	s.mu.Lock()
	if !s.loaded {
		s.latest = snap
		s.loaded = true
	}
	snap = s.latest
	s.mu.Unlock()
	return snap, nil
}

// History lists persisted history entries in [from, to).
func (s *Service) History(ctx context.Context, from, to time.Time) ([]store.HistoryEntry, error) {
	if s.store == nil {
		return nil, store.ErrNotConfigured
	}
	return s.store.ListHistory(ctx, from, to)
}

// maybeAlert sends a notification when a run failed outright or left
// sources failed or degraded into persistence errors.
func (s *Service) maybeAlert(ctx context.Context, report orchestrator.Report) {
	if !s.alertsOn {
		return
	}
	if !report.Failed && report.FailedEntities == 0 && report.StoreError == "" {
		return
	}

	var failedSources []string
	for _, er := range report.Entities {
		if er.Fresh == 0 && er.Stale == 0 {
			failedSources = append(failedSources, er.EntityID)
		}
	}

	note := alerting.Notification{
		RunID:          report.RunID,
		StartedAt:      report.StartedAt,
		Failed:         report.Failed,
		OKEntities:     report.OKEntities,
		StaleEntities:  report.StaleEntities,
		FailedEntities: report.FailedEntities,
		TotalRecords:   report.TotalRecords,
		FailedSources:  failedSources,
		StoreError:     report.StoreError,
	}
	if err := s.notifier.Notify(ctx, note); err != nil {
		s.logger.Error().Err(err).Str("run_id", report.RunID).Msg("failed to deliver run alert")
	}
}
