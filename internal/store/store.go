package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/hectronix2005/Mejor-Inversion/internal/rates"
)

var (
	// ErrNotConfigured indicates the store backend was not initialised.
	ErrNotConfigured = errors.New("store: backend not configured")
)

// HistoryEntry is one immutable appended snapshot plus its run timestamp.
type HistoryEntry struct {
	RunAt    time.Time
	Snapshot rates.Snapshot
}

// Store persists the current snapshot and its append-only history.
//
// WriteCurrent atomically replaces the latest snapshot: readers never
// observe a half-written one. AppendHistory failures are reported but must
// not undo a successful WriteCurrent.
type Store interface {
	WriteCurrent(ctx context.Context, snap rates.Snapshot) error
	AppendHistory(ctx context.Context, snap rates.Snapshot, runAt time.Time) error
	ReadCurrent(ctx context.Context) (rates.Snapshot, error)
	ListHistory(ctx context.Context, from, to time.Time) ([]HistoryEntry, error)
	Close()
}

// marshalRecords produces the stable on-disk encoding: a JSON list of
// records in snapshot order. The same snapshot re-serializes identically,
// which keeps history entries diffable.
func marshalRecords(snap rates.Snapshot) ([]byte, error) {
	records := snap.Records
	if records == nil {
		records = []rates.Record{}
	}
	return json.MarshalIndent(records, "", "  ")
}

func unmarshalRecords(data []byte) (rates.Snapshot, error) {
	var records []rates.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return rates.Snapshot{}, err
	}
	return rates.Snapshot{Records: records}, nil
}
