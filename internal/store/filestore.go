package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/hectronix2005/Mejor-Inversion/internal/rates"
)

const (
	currentFileName   = "rates.json"
	historyDirName    = "history"
	historyTimeLayout = "20060102_150405"
)

// FileStore keeps the current snapshot in <dir>/rates.json and appends
// dated copies under <dir>/history/. The current file is replaced through
// a temp-file rename so readers never see a partial write.
type FileStore struct {
	dir string
}

// NewFileStore prepares the data directory layout.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, ErrNotConfigured
	}
	if err := os.MkdirAll(filepath.Join(dir, historyDirName), 0o755); err != nil {
		return nil, fmt.Errorf("create data directories: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// WriteCurrent atomically replaces the latest snapshot file.
func (s *FileStore) WriteCurrent(ctx context.Context, snap rates.Snapshot) error {
	data, err := marshalRecords(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, currentFileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp snapshot: %w", err)
	}

	if err := os.Rename(tmpName, filepath.Join(s.dir, currentFileName)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace current snapshot: %w", err)
	}
	return nil
}

// AppendHistory writes a dated copy of the snapshot. Existing entries are
// never touched.
func (s *FileStore) AppendHistory(ctx context.Context, snap rates.Snapshot, runAt time.Time) error {
	data, err := marshalRecords(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	name := fmt.Sprintf("rates_%s.json", runAt.UTC().Format(historyTimeLayout))
	path := filepath.Join(s.dir, historyDirName, name)
	if _, err := os.Stat(path); err == nil {
		name = fmt.Sprintf("rates_%s_%09d.json", runAt.UTC().Format(historyTimeLayout), runAt.Nanosecond())
		path = filepath.Join(s.dir, historyDirName, name)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("append history entry: %w", err)
	}
	return nil
}

// ReadCurrent loads the latest snapshot; a missing file yields an empty
// snapshot, not an error.
func (s *FileStore) ReadCurrent(ctx context.Context) (rates.Snapshot, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, currentFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return rates.Snapshot{}, nil
		}
		return rates.Snapshot{}, fmt.Errorf("read current snapshot: %w", err)
	}

	snap, err := unmarshalRecords(data)
	if err != nil {
		return rates.Snapshot{}, fmt.Errorf("decode current snapshot: %w", err)
	}
	return snap, nil
}

// ListHistory returns history entries whose run timestamp falls in
// [from, to), ordered by run time.
func (s *FileStore) ListHistory(ctx context.Context, from, to time.Time) ([]HistoryEntry, error) {
	dir := filepath.Join(s.dir, historyDirName)
	names, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read history directory: %w", err)
	}

	entries := make([]HistoryEntry, 0, len(names))
	for _, de := range names {
		if de.IsDir() {
			continue
		}
		runAt, ok := parseHistoryName(de.Name())
		if !ok {
			continue
		}
		if runAt.Before(from) || !runAt.Before(to) {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, de.Name()))
		if err != nil {
			return nil, fmt.Errorf("read history entry %s: %w", de.Name(), err)
		}
		snap, err := unmarshalRecords(data)
		if err != nil {
			return nil, fmt.Errorf("decode history entry %s: %w", de.Name(), err)
		}
		entries = append(entries, HistoryEntry{RunAt: runAt, Snapshot: snap})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].RunAt.Before(entries[j].RunAt) })
	return entries, nil
}

// Close is a no-op for the file backend.
func (s *FileStore) Close() {}

func parseHistoryName(name string) (time.Time, bool) {
	base := strings.TrimSuffix(name, ".json")
	base = strings.TrimPrefix(base, "rates_")
	if len(base) > len(historyTimeLayout) {
		base = base[:len(historyTimeLayout)]
	}
	t, err := time.Parse(historyTimeLayout, base)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

var _ Store = (*FileStore)(nil)
