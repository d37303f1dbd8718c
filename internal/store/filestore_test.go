package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hectronix2005/Mejor-Inversion/internal/rates"
)

func sampleSnapshot(rate string) rates.Snapshot {
	return rates.Snapshot{Records: []rates.Record{{
		EntityID:      "bancolombia",
		EntityName:    "Bancolombia",
		ProductType:   rates.ProductCDT,
		TermDays:      90,
		AnnualRatePct: decimal.RequireFromString(rate),
		ObservedAt:    time.Date(2026, 8, 25, 6, 0, 0, 0, time.UTC),
		SourceStatus:  rates.StatusOK,
	}}}
}

func TestFileStoreRequiresDir(t *testing.T) {
	if _, err := NewFileStore(""); err == nil {
		t.Fatal("empty data dir accepted")
	}
}

func TestFileStoreWriteReadCurrent(t *testing.T) {
	st, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ctx := context.Background()

	// Missing file reads as an empty snapshot.
	snap, err := st.ReadCurrent(ctx)
	if err != nil {
		t.Fatalf("ReadCurrent on empty store: %v", err)
	}
	if !snap.Empty() {
		t.Fatalf("expected empty snapshot, got %d records", len(snap.Records))
	}

	want := sampleSnapshot("9.85")
	if err := st.WriteCurrent(ctx, want); err != nil {
		t.Fatalf("WriteCurrent: %v", err)
	}

	got, err := st.ReadCurrent(ctx)
	if err != nil {
		t.Fatalf("ReadCurrent: %v", err)
	}
	if len(got.Records) != 1 {
		t.Fatalf("got %d records, want 1", len(got.Records))
	}

	rec := got.Records[0]
	if rec.Key() != want.Records[0].Key() {
		t.Errorf("key = %s, want %s", rec.Key(), want.Records[0].Key())
	}
	if !rec.AnnualRatePct.Equal(want.Records[0].AnnualRatePct) {
		t.Errorf("rate = %s, want %s", rec.AnnualRatePct, want.Records[0].AnnualRatePct)
	}
	if !rec.ObservedAt.Equal(want.Records[0].ObservedAt) {
		t.Errorf("observed_at = %s, want %s", rec.ObservedAt, want.Records[0].ObservedAt)
	}
}

func TestFileStoreWriteCurrentReplaces(t *testing.T) {
	dir := t.TempDir()
	st, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ctx := context.Background()

	if err := st.WriteCurrent(ctx, sampleSnapshot("9.00")); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := st.WriteCurrent(ctx, sampleSnapshot("9.50")); err != nil {
		t.Fatalf("second write: %v", err)
	}

	got, err := st.ReadCurrent(ctx)
	if err != nil {
		t.Fatalf("ReadCurrent: %v", err)
	}
	if want := decimal.RequireFromString("9.50"); !got.Records[0].AnnualRatePct.Equal(want) {
		t.Errorf("rate = %s, want %s", got.Records[0].AnnualRatePct, want)
	}

	// No temp files left behind by the rename.
	files, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, f := range files {
		if f.Name() != currentFileName && f.Name() != historyDirName {
			t.Errorf("unexpected leftover file %s", f.Name())
		}
	}
}

func TestFileStoreHistory(t *testing.T) {
	st, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ctx := context.Background()

	t0 := time.Date(2026, 8, 24, 6, 0, 0, 0, time.UTC)
	t1 := t0.Add(6 * time.Hour)
	t2 := t0.Add(12 * time.Hour)

	if err := st.AppendHistory(ctx, sampleSnapshot("9.00"), t0); err != nil {
		t.Fatalf("append t0: %v", err)
	}
	if err := st.AppendHistory(ctx, sampleSnapshot("9.25"), t1); err != nil {
		t.Fatalf("append t1: %v", err)
	}
	if err := st.AppendHistory(ctx, sampleSnapshot("9.50"), t2); err != nil {
		t.Fatalf("append t2: %v", err)
	}

	// [t0, t2) excludes the upper bound.
	entries, err := st.ListHistory(ctx, t0, t2)
	if err != nil {
		t.Fatalf("ListHistory: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if !entries[0].RunAt.Equal(t0) || !entries[1].RunAt.Equal(t1) {
		t.Errorf("entries out of order: %v, %v", entries[0].RunAt, entries[1].RunAt)
	}
	if want := decimal.RequireFromString("9.25"); !entries[1].Snapshot.Records[0].AnnualRatePct.Equal(want) {
		t.Errorf("t1 rate = %s, want %s", entries[1].Snapshot.Records[0].AnnualRatePct, want)
	}
}

func TestFileStoreHistoryCollision(t *testing.T) {
	dir := t.TempDir()
	st, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ctx := context.Background()

	runAt := time.Date(2026, 8, 24, 6, 0, 0, 12345, time.UTC)
	if err := st.AppendHistory(ctx, sampleSnapshot("9.00"), runAt); err != nil {
		t.Fatalf("first append: %v", err)
	}
	if err := st.AppendHistory(ctx, sampleSnapshot("9.10"), runAt); err != nil {
		t.Fatalf("colliding append: %v", err)
	}

	files, err := os.ReadDir(filepath.Join(dir, historyDirName))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("got %d history files, want 2", len(files))
	}
}

func TestMarshalRecordsIsStable(t *testing.T) {
	snap := sampleSnapshot("9.85")
	a, err := marshalRecords(snap)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	b, err := marshalRecords(snap)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(a) != string(b) {
		t.Fatal("same snapshot serialized differently")
	}

	empty, err := marshalRecords(rates.Snapshot{})
	if err != nil {
		t.Fatalf("marshal empty: %v", err)
	}
	if string(empty) != "[]" {
		t.Fatalf("empty snapshot = %q, want []", string(empty))
	}
}
