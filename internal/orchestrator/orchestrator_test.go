package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/hectronix2005/Mejor-Inversion/internal/adapter"
	"github.com/hectronix2005/Mejor-Inversion/internal/rates"
	"github.com/hectronix2005/Mejor-Inversion/internal/registry"
	"github.com/hectronix2005/Mejor-Inversion/internal/store"
)

type fetchFunc func(ctx context.Context) adapter.Outcome

func (f fetchFunc) Fetch(ctx context.Context) adapter.Outcome { return f(ctx) }

type memStore struct {
	mu      sync.Mutex
	current *rates.Snapshot
	history []rates.Snapshot

	writeErr  error
	appendErr error
}

func (m *memStore) WriteCurrent(_ context.Context, snap rates.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.current = &snap
	return nil
}

func (m *memStore) AppendHistory(_ context.Context, snap rates.Snapshot, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return m.appendErr
	}
	m.history = append(m.history, snap)
	return nil
}

func (m *memStore) ReadCurrent(_ context.Context) (rates.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return rates.Snapshot{}, nil
	}
	return *m.current, nil
}

func (m *memStore) ListHistory(context.Context, time.Time, time.Time) ([]store.HistoryEntry, error) {
	return nil, nil
}

func (m *memStore) Close() {}

func mustRegistry(t *testing.T, entries ...registry.Entry) *registry.Registry {
	t.Helper()
	reg := registry.New()
	for _, e := range entries {
		if err := reg.Register(e); err != nil {
			t.Fatalf("register %s: %v", e.EntityID, err)
		}
	}
	return reg
}

func staticAdapter(records ...rates.Record) adapter.Adapter {
	return fetchFunc(func(context.Context) adapter.Outcome {
		return adapter.Success(records, nil)
	})
}

func failingAdapter(reason adapter.FailureReason) adapter.Adapter {
	return fetchFunc(func(context.Context) adapter.Outcome {
		return adapter.Failure(reason, "boom")
	})
}

func rec(term int, rate string) rates.Record {
	return rates.Record{TermDays: term, AnnualRatePct: decimal.RequireFromString(rate)}
}

func cdtEntry(id, name string, a adapter.Adapter, terms ...int) registry.Entry {
	return registry.Entry{
		EntityID:    id,
		DisplayName: name,
		Product:     rates.ProductCDT,
		Terms:       terms,
		Adapter:     a,
	}
}

func TestRunMergesFreshRecords(t *testing.T) {
	reg := mustRegistry(t,
		cdtEntry("bancolombia", "Bancolombia", staticAdapter(rec(30, "9.10"), rec(90, "9.85")), 30, 90),
		registry.Entry{
			EntityID:    "nubank",
			DisplayName: "Nu",
			Product:     rates.ProductSavings,
			Terms:       []int{0},
			Adapter:     staticAdapter(rec(0, "8.25")),
		},
	)

	orc := New(reg, nil, Options{RunBudget: time.Second}, zerolog.Nop())
	snap, report, err := orc.Run(context.Background(), rates.Snapshot{}, 0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Failed {
		t.Fatal("run reported failed with usable records")
	}
	if len(snap.Records) != 3 {
		t.Fatalf("got %d records, want 3", len(snap.Records))
	}
	if report.OKEntities != 2 || report.FailedEntities != 0 {
		t.Fatalf("ok=%d failed=%d, want 2/0", report.OKEntities, report.FailedEntities)
	}
	for _, r := range snap.Records {
		if r.SourceStatus != rates.StatusOK {
			t.Errorf("%s: status %s, want OK", r.Key(), r.SourceStatus)
		}
		if r.ObservedAt.IsZero() {
			t.Errorf("%s: observed_at not stamped", r.Key())
		}
	}

	got, ok := snap.Lookup(rates.Key{EntityID: "bancolombia", TermDays: 90})
	if !ok {
		t.Fatal("bancolombia/90d missing from snapshot")
	}
	if got.EntityName != "Bancolombia" || got.ProductType != rates.ProductCDT {
		t.Errorf("registry identity not enforced: %+v", got)
	}
	if !got.AnnualRatePct.Equal(decimal.RequireFromString("9.85")) {
		t.Errorf("rate = %s, want 9.85", got.AnnualRatePct)
	}
}

func TestRunCarriesForwardStaleRecords(t *testing.T) {
	prevObserved := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	previous := rates.Snapshot{Records: []rates.Record{
		{
			EntityID:      "bancolombia",
			EntityName:    "Bancolombia",
			ProductType:   rates.ProductCDT,
			TermDays:      30,
			AnnualRatePct: decimal.RequireFromString("9.00"),
			ObservedAt:    prevObserved,
			SourceStatus:  rates.StatusOK,
		},
		{
			EntityID:      "gone_bank",
			EntityName:    "Gone Bank",
			ProductType:   rates.ProductCDT,
			TermDays:      30,
			AnnualRatePct: decimal.RequireFromString("7.00"),
			ObservedAt:    prevObserved,
			SourceStatus:  rates.StatusOK,
		},
	}}

	reg := mustRegistry(t,
		cdtEntry("bancolombia", "Bancolombia", failingAdapter(adapter.ReasonNetwork), 30),
	)

	orc := New(reg, nil, Options{RunBudget: time.Second}, zerolog.Nop())
	snap, report, err := orc.Run(context.Background(), previous, 0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(snap.Records) != 1 {
		t.Fatalf("got %d records, want 1", len(snap.Records))
	}

	got := snap.Records[0]
	if got.SourceStatus != rates.StatusStale {
		t.Errorf("status = %s, want STALE", got.SourceStatus)
	}
	if !got.ObservedAt.Equal(prevObserved) {
		t.Errorf("observed_at = %s, want original %s", got.ObservedAt, prevObserved)
	}
	if !got.AnnualRatePct.Equal(decimal.RequireFromString("9.00")) {
		t.Errorf("rate = %s, want 9.00", got.AnnualRatePct)
	}
	if report.StaleEntities != 1 {
		t.Errorf("stale entities = %d, want 1", report.StaleEntities)
	}

	// Entities no longer registered drop out of the snapshot.
	if _, ok := snap.Lookup(rates.Key{EntityID: "gone_bank", TermDays: 30}); ok {
		t.Error("unregistered entity carried forward")
	}
}

func TestRunZeroRecordsLeavesStoreUntouched(t *testing.T) {
	st := &memStore{}
	seeded := rates.Snapshot{Records: []rates.Record{{
		EntityID:      "bbva",
		EntityName:    "BBVA",
		ProductType:   rates.ProductCDT,
		TermDays:      60,
		AnnualRatePct: decimal.RequireFromString("9.40"),
		ObservedAt:    time.Now().UTC(),
		SourceStatus:  rates.StatusOK,
	}}}
	if err := st.WriteCurrent(context.Background(), seeded); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	reg := mustRegistry(t,
		cdtEntry("finandina", "Finandina", failingAdapter(adapter.ReasonParse), 90),
	)

	orc := New(reg, st, Options{RunBudget: time.Second}, zerolog.Nop())
	snap, report, err := orc.Run(context.Background(), rates.Snapshot{}, 0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !snap.Empty() {
		t.Fatalf("expected empty snapshot, got %d records", len(snap.Records))
	}
	if !report.Failed {
		t.Error("report.Failed = false for zero-record run")
	}

	kept, err := st.ReadCurrent(context.Background())
	if err != nil {
		t.Fatalf("ReadCurrent: %v", err)
	}
	if len(kept.Records) != 1 {
		t.Fatalf("store overwritten by empty run: %d records", len(kept.Records))
	}
	if len(st.history) != 0 {
		t.Errorf("history appended for empty run: %d entries", len(st.history))
	}
}

func TestRunBudgetDiscardsUnresolvedAdapters(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	slow := fetchFunc(func(ctx context.Context) adapter.Outcome {
		select {
		case <-block:
		case <-ctx.Done():
		}
		return adapter.Failure(adapter.ReasonTimeout, "cancelled")
	})

	reg := mustRegistry(t,
		cdtEntry("fast", "Fast Bank", staticAdapter(rec(30, "9.50")), 30),
		cdtEntry("slow", "Slow Bank", slow, 30),
	)

	orc := New(reg, nil, Options{RunBudget: 50 * time.Millisecond, MaxConcurrent: 2}, zerolog.Nop())

	start := time.Now()
	snap, report, err := orc.Run(context.Background(), rates.Snapshot{}, 0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("run took %s, budget not enforced", elapsed)
	}

	if len(snap.Records) != 1 || snap.Records[0].EntityID != "fast" {
		t.Fatalf("unexpected records: %+v", snap.Records)
	}
	if report.FailedEntities != 1 {
		t.Errorf("failed entities = %d, want 1", report.FailedEntities)
	}
	for _, er := range report.Entities {
		if er.EntityID == "slow" && er.Reason != adapter.ReasonTimeout {
			t.Errorf("slow entity reason = %s, want TIMEOUT", er.Reason)
		}
	}
}

func TestRunDuplicateTermKeepsLater(t *testing.T) {
	reg := mustRegistry(t,
		cdtEntry("davivienda", "Davivienda", staticAdapter(rec(30, "9.00"), rec(30, "9.30")), 30),
	)

	orc := New(reg, nil, Options{RunBudget: time.Second}, zerolog.Nop())
	snap, report, err := orc.Run(context.Background(), rates.Snapshot{}, 0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(snap.Records) != 1 {
		t.Fatalf("got %d records, want 1", len(snap.Records))
	}
	if !snap.Records[0].AnnualRatePct.Equal(decimal.RequireFromString("9.30")) {
		t.Errorf("rate = %s, want later value 9.30", snap.Records[0].AnnualRatePct)
	}

	warned := false
	for _, w := range report.Entities[0].Warnings {
		if w != "" {
			warned = true
		}
	}
	if !warned {
		t.Error("duplicate term produced no warning")
	}
}

func TestRunRejectsInvalidRecords(t *testing.T) {
	reg := mustRegistry(t,
		cdtEntry("pichincha", "Pichincha",
			staticAdapter(rec(30, "150.00"), rec(60, "0"), rec(90, "9.75")), 30, 60, 90),
	)

	orc := New(reg, nil, Options{RunBudget: time.Second}, zerolog.Nop())
	snap, report, err := orc.Run(context.Background(), rates.Snapshot{}, 0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(snap.Records) != 1 {
		t.Fatalf("got %d records, want 1 (ceiling and zero-rate rejected)", len(snap.Records))
	}
	if report.Entities[0].Rejected != 2 {
		t.Errorf("rejected = %d, want 2", report.Entities[0].Rejected)
	}
}

func TestRunRejectsConcurrentRuns(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	slow := fetchFunc(func(ctx context.Context) adapter.Outcome {
		close(started)
		select {
		case <-release:
		case <-ctx.Done():
		}
		return adapter.Success([]rates.Record{rec(30, "9.00")}, nil)
	})

	reg := mustRegistry(t, cdtEntry("lulobank", "Lulo", slow, 30))
	orc := New(reg, nil, Options{RunBudget: 5 * time.Second}, zerolog.Nop())

	done := make(chan error, 1)
	go func() {
		_, _, err := orc.Run(context.Background(), rates.Snapshot{}, 0)
		done <- err
	}()

	<-started
	_, _, err := orc.Run(context.Background(), rates.Snapshot{}, 0)
	if !errors.Is(err, ErrRunInProgress) {
		t.Fatalf("concurrent run error = %v, want ErrRunInProgress", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first run: %v", err)
	}
}

func TestRunIsIdempotentOnStableInput(t *testing.T) {
	reg := mustRegistry(t,
		cdtEntry("popular", "Banco Popular", staticAdapter(rec(30, "9.20"), rec(60, "9.45")), 30, 60),
	)
	orc := New(reg, nil, Options{RunBudget: time.Second}, zerolog.Nop())

	first, _, err := orc.Run(context.Background(), rates.Snapshot{}, 0)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, _, err := orc.Run(context.Background(), first, 0)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if len(first.Records) != len(second.Records) {
		t.Fatalf("record counts differ: %d vs %d", len(first.Records), len(second.Records))
	}
	for i := range first.Records {
		a, b := first.Records[i], second.Records[i]
		if a.Key() != b.Key() || !a.AnnualRatePct.Equal(b.AnnualRatePct) || b.SourceStatus != rates.StatusOK {
			t.Errorf("record %d drifted: %+v vs %+v", i, a, b)
		}
	}
}

func TestRunSurfacesStoreErrors(t *testing.T) {
	st := &memStore{writeErr: errors.New("disk full")}
	reg := mustRegistry(t,
		cdtEntry("ban100", "Ban100", staticAdapter(rec(30, "9.60")), 30),
	)

	orc := New(reg, st, Options{RunBudget: time.Second}, zerolog.Nop())
	snap, report, err := orc.Run(context.Background(), rates.Snapshot{}, 0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if snap.Empty() {
		t.Fatal("snapshot dropped because persistence failed")
	}
	if report.StoreError == "" {
		t.Error("store error not surfaced on the report")
	}
}
