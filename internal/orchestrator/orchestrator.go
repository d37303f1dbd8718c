package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/hectronix2005/Mejor-Inversion/internal/adapter"
	"github.com/hectronix2005/Mejor-Inversion/internal/rates"
	"github.com/hectronix2005/Mejor-Inversion/internal/registry"
	"github.com/hectronix2005/Mejor-Inversion/internal/store"
)

// ErrRunInProgress rejects a run requested while another is executing.
// Concurrent runs would race on the store and the previous snapshot.
var ErrRunInProgress = errors.New("a scrape run is already in progress")

const (
	defaultRunBudget     = 2 * time.Minute
	defaultMaxConcurrent = 5
)

// Options tune orchestrator behaviour.
type Options struct {
	RunBudget      time.Duration
	MaxConcurrent  int
	FetchGrace     time.Duration
	RateCeilingPct decimal.Decimal
}

// EntityResult summarises one adapter's contribution to a run.
type EntityResult struct {
	EntityID string                `json:"entity_id"`
	Kind     adapter.OutcomeKind   `json:"outcome"`
	Reason   adapter.FailureReason `json:"reason,omitempty"`
	Detail   string                `json:"detail,omitempty"`
	Fresh    int                   `json:"fresh_records"`
	Stale    int                   `json:"stale_records"`
	Rejected int                   `json:"rejected_records"`
	Elapsed  time.Duration         `json:"elapsed"`
	Warnings []string              `json:"warnings,omitempty"`
}

// Report describes a completed run for observability and the manual
// trigger response. It is not part of the snapshot.
type Report struct {
	RunID          string         `json:"run_id"`
	StartedAt      time.Time      `json:"started_at"`
	Elapsed        time.Duration  `json:"elapsed"`
	Entities       []EntityResult `json:"entities"`
	OKEntities     int            `json:"ok_entities"`
	StaleEntities  int            `json:"stale_entities"`
	FailedEntities int            `json:"failed_entities"`
	TotalRecords   int            `json:"total_records"`
	Warnings       []string       `json:"warnings,omitempty"`
	StoreError     string         `json:"store_error,omitempty"`
	Failed         bool           `json:"failed"`
}

// Orchestrator drives one complete scraping run to a merged snapshot.
type Orchestrator struct {
	registry *registry.Registry
	store    store.Store
	opts     Options
	logger   zerolog.Logger

	mu  sync.Mutex
	now func() time.Time
}

// New constructs an orchestrator. The store may be nil for dry runs; the
// computed snapshot is then returned without persistence.
func New(reg *registry.Registry, st store.Store, opts Options, logger zerolog.Logger) *Orchestrator {
	if opts.RunBudget <= 0 {
		opts.RunBudget = defaultRunBudget
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = defaultMaxConcurrent
	}
	if opts.RateCeilingPct.IsZero() {
		opts.RateCeilingPct = rates.DefaultRateCeilingPct
	}

	return &Orchestrator{
		registry: reg,
		store:    st,
		opts:     opts,
		logger:   logger.With().Str("component", "orchestrator").Logger(),
		now:      time.Now,
	}
}

type fetchResult struct {
	idx     int
	outcome adapter.Outcome
	elapsed time.Duration
}

// Run fans out every registered adapter, waits for all to settle or for
// the budget to expire, and merges the collected outcomes into a snapshot.
// A zero budget falls back to the configured run budget.
func (o *Orchestrator) Run(ctx context.Context, previous rates.Snapshot, budget time.Duration) (rates.Snapshot, Report, error) {
	if !o.mu.TryLock() {
		return rates.Snapshot{}, Report{}, ErrRunInProgress
	}
	defer o.mu.Unlock()

	if budget <= 0 {
		budget = o.opts.RunBudget
	}

	started := o.now().UTC()
	report := Report{RunID: uuid.NewString(), StartedAt: started}
	entries := o.registry.List()

	o.logger.Info().Str("run_id", report.RunID).Int("sources", len(entries)).Dur("budget", budget).Msg("starting scrape run")

	outcomes := o.collect(ctx, entries, budget)

	observedAt := o.now().UTC()
	snapshot, entityResults := o.merge(entries, outcomes, previous, observedAt)

	report.Entities = entityResults
	report.TotalRecords = len(snapshot.Records)
	for _, er := range entityResults {
		switch {
		case er.Fresh > 0:
			report.OKEntities++
		case er.Stale > 0:
			report.StaleEntities++
		default:
			report.FailedEntities++
		}
	}

	if snapshot.Empty() {
		// Zero usable records: leave the store untouched so a total
		// outage cannot wipe the previous snapshot.
		report.Failed = true
		report.Warnings = append(report.Warnings, "run produced no usable records; store left untouched")
	} else if o.store != nil {
		o.persist(ctx, snapshot, observedAt, &report)
	}

	report.Elapsed = o.now().UTC().Sub(started)
	o.logger.Info().
		Str("run_id", report.RunID).
		Int("ok", report.OKEntities).
		Int("stale", report.StaleEntities).
		Int("failed", report.FailedEntities).
		Int("records", report.TotalRecords).
		Dur("elapsed", report.Elapsed).
		Msg("scrape run finished")

	return snapshot, report, nil
}

// collect dispatches all adapters concurrently and gathers whatever
// resolves before the budget expires. Late results are discarded;
// stragglers are told to stop via context but never forcibly aborted.
func (o *Orchestrator) collect(ctx context.Context, entries []registry.Entry, budget time.Duration) []*fetchResult {
	fetchCtx, cancelFetch := context.WithCancel(ctx)
	defer cancelFetch()

	results := make(chan fetchResult, len(entries))
	g := new(errgroup.Group)
	g.SetLimit(o.opts.MaxConcurrent)
	for i := range entries {
		idx := i
		entry := entries[i]
		g.Go(func() error {
			t0 := time.Now()
			outcome := entry.Adapter.Fetch(fetchCtx)
			results <- fetchResult{idx: idx, outcome: outcome, elapsed: time.Since(t0)}
			return nil
		})
	}
	go func() {
		_ = g.Wait()
		close(results)
	}()

	deadline := time.NewTimer(budget)
	defer deadline.Stop()

	outcomes := make([]*fetchResult, len(entries))
collect:
	for {
		select {
		case res, ok := <-results:
			if !ok {
				break collect
			}
			r := res
			outcomes[r.idx] = &r
		case <-deadline.C:
			o.logger.Warn().Msg("run budget exceeded; cancelling unresolved adapters")
			cancelFetch()
			o.drainGrace(results, outcomes)
			break collect
		case <-ctx.Done():
			break collect
		}
	}

	return outcomes
}

// drainGrace gives cancelled adapters a short window to report their own
// outcome before the run fabricates a timeout failure for them.
func (o *Orchestrator) drainGrace(results <-chan fetchResult, outcomes []*fetchResult) {
	if o.opts.FetchGrace <= 0 {
		return
	}
	grace := time.NewTimer(o.opts.FetchGrace)
	defer grace.Stop()
	for {
		select {
		case res, ok := <-results:
			if !ok {
				return
			}
			r := res
			outcomes[r.idx] = &r
		case <-grace.C:
			return
		}
	}
}

// merge applies validation, the STALE carry-forward policy, and the
// duplicate-key tie-break, producing records in registry order with terms
// ascending so the snapshot is deterministic.
func (o *Orchestrator) merge(entries []registry.Entry, outcomes []*fetchResult, previous rates.Snapshot, observedAt time.Time) (rates.Snapshot, []EntityResult) {
	merged := make([]rates.Record, 0, len(entries)*3)
	entityResults := make([]EntityResult, 0, len(entries))

	for i, entry := range entries {
		er := EntityResult{EntityID: entry.EntityID}

		var outcome adapter.Outcome
		if res := outcomes[i]; res != nil {
			outcome = res.outcome
			er.Elapsed = res.elapsed
		} else {
			outcome = adapter.Failure(adapter.ReasonTimeout, "run budget exceeded")
		}
		er.Kind = outcome.Kind
		er.Reason = outcome.Reason
		er.Detail = outcome.Detail
		er.Warnings = append(er.Warnings, outcome.Warnings...)
		for _, term := range outcome.MissingTerms {
			er.Warnings = append(er.Warnings, fmt.Sprintf("term %dd missing from source output", term))
		}

		configured := make(map[int]bool, len(entry.Terms))
		for _, term := range entry.Terms {
			configured[term] = true
		}

		byTerm := make(map[int]rates.Record, len(outcome.Records))
		for _, rec := range outcome.Records {
			// Identity comes from the registry, not the adapter, so a
			// misbehaving adapter cannot impersonate another entity.
			rec.EntityID = entry.EntityID
			rec.EntityName = entry.DisplayName
			rec.ProductType = entry.Product
			if rec.SourceURL == "" {
				rec.SourceURL = entry.SourceURL
			}

			if err := rates.Validate(rec, o.opts.RateCeilingPct); err != nil {
				er.Rejected++
				er.Warnings = append(er.Warnings, fmt.Sprintf("rejected record for term %dd: %v", rec.TermDays, err))
				continue
			}
			if _, dup := byTerm[rec.TermDays]; dup {
				er.Warnings = append(er.Warnings, fmt.Sprintf("duplicate record for term %dd, keeping the later one", rec.TermDays))
			}
			if len(configured) > 0 && !configured[rec.TermDays] {
				er.Warnings = append(er.Warnings, fmt.Sprintf("term %dd not in configured term list", rec.TermDays))
			}

			rec.ObservedAt = observedAt
			rec.SourceStatus = rates.StatusOK
			byTerm[rec.TermDays] = rec
		}
		er.Fresh = len(byTerm)

		// STALE policy: keys this run could not refresh are carried
		// forward from the previous snapshot with their original
		// observation time.
		for _, prev := range previous.ByEntity(entry.EntityID) {
			if _, ok := byTerm[prev.TermDays]; ok {
				continue
			}
			prev.SourceStatus = rates.StatusStale
			byTerm[prev.TermDays] = prev
			er.Stale++
		}

		terms := make([]int, 0, len(byTerm))
		for term := range byTerm {
			terms = append(terms, term)
		}
		sort.Ints(terms)
		for _, term := range terms {
			merged = append(merged, byTerm[term])
		}

		entityResults = append(entityResults, er)
	}

	return rates.Snapshot{Records: merged}, entityResults
}

// persist writes the snapshot and appends history, best effort. Failures
// are surfaced on the report; the in-memory snapshot is still served.
func (o *Orchestrator) persist(ctx context.Context, snapshot rates.Snapshot, observedAt time.Time, report *Report) {
	var storeErrs []string
	if err := o.store.WriteCurrent(ctx, snapshot); err != nil {
		o.logger.Error().Err(err).Str("run_id", report.RunID).Msg("failed to write current snapshot")
		storeErrs = append(storeErrs, err.Error())
	}
	// History append failure never rolls back a successful current write.
	if err := o.store.AppendHistory(ctx, snapshot, observedAt); err != nil {
		o.logger.Error().Err(err).Str("run_id", report.RunID).Msg("failed to append history entry")
		storeErrs = append(storeErrs, err.Error())
	}
	if len(storeErrs) > 0 {
		report.StoreError = strings.Join(storeErrs, "; ")
	}
}
