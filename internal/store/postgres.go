package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hectronix2005/Mejor-Inversion/internal/config"
	"github.com/hectronix2005/Mejor-Inversion/internal/rates"
)

const (
	writeCurrentSQL = `INSERT INTO snapshot_current (id, records, updated_at)
    VALUES (1, $1, $2)
    ON CONFLICT (id) DO UPDATE
    SET records    = EXCLUDED.records,
        updated_at = EXCLUDED.updated_at;`

	readCurrentSQL = `SELECT records FROM snapshot_current WHERE id = 1;`

	appendHistorySQL = `INSERT INTO snapshot_history (run_ts, records)
    VALUES ($1, $2);`

	listHistorySQL = `SELECT run_ts, records
    FROM snapshot_history
    WHERE run_ts >= $1
      AND run_ts < $2
    ORDER BY run_ts;`
)

// NewPool configures a PostgreSQL connection pool from runtime settings.
func NewPool(ctx context.Context, cfg config.StorageConfig) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("storage.dsn is required")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse storage dsn: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	return pool, nil
}

// PostgresStore persists snapshots in a singleton current row plus an
// append-only history table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wires a pgx pool into a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Close releases the underlying pool resources.
func (s *PostgresStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *PostgresStore) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// WriteCurrent replaces the singleton current snapshot. The single-row
// upsert keeps the replace atomic for readers.
func (s *PostgresStore) WriteCurrent(ctx context.Context, snap rates.Snapshot) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	data, err := marshalRecords(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	if _, execErr := pool.Exec(ctx, writeCurrentSQL, data, time.Now().UTC()); execErr != nil {
		return fmt.Errorf("write current snapshot: %w", execErr)
	}
	return nil
}

// AppendHistory inserts an immutable history row for the run.
func (s *PostgresStore) AppendHistory(ctx context.Context, snap rates.Snapshot, runAt time.Time) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	data, err := marshalRecords(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	if _, execErr := pool.Exec(ctx, appendHistorySQL, runAt.UTC(), data); execErr != nil {
		return fmt.Errorf("append history entry: %w", execErr)
	}
	return nil
}

// ReadCurrent loads the singleton snapshot; a missing row yields an empty
// snapshot, not an error.
func (s *PostgresStore) ReadCurrent(ctx context.Context) (rates.Snapshot, error) {
	pool, err := s.getPool()
	if err != nil {
		return rates.Snapshot{}, err
	}

	rows, queryErr := pool.Query(ctx, readCurrentSQL)
	if queryErr != nil {
		return rates.Snapshot{}, fmt.Errorf("read current snapshot: %w", queryErr)
	}
	defer rows.Close()

	if !rows.Next() {
		return rates.Snapshot{}, rows.Err()
	}

	var data []byte
	if scanErr := rows.Scan(&data); scanErr != nil {
		return rates.Snapshot{}, fmt.Errorf("scan current snapshot: %w", scanErr)
	}

	snap, err := unmarshalRecords(data)
	if err != nil {
		return rates.Snapshot{}, fmt.Errorf("decode current snapshot: %w", err)
	}
	return snap, nil
}

// ListHistory returns history entries with run_ts in [from, to).
func (s *PostgresStore) ListHistory(ctx context.Context, from, to time.Time) ([]HistoryEntry, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listHistorySQL, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list history: %w", queryErr)
	}
	defer rows.Close()

	entries := make([]HistoryEntry, 0)
	for rows.Next() {
		var (
			runAt time.Time
			data  []byte
		)
		if scanErr := rows.Scan(&runAt, &data); scanErr != nil {
			return nil, fmt.Errorf("scan history entry: %w", scanErr)
		}
		snap, err := unmarshalRecords(data)
		if err != nil {
			return nil, fmt.Errorf("decode history entry: %w", err)
		}
		entries = append(entries, HistoryEntry{RunAt: runAt, Snapshot: snap})
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return entries, nil
}

var _ Store = (*PostgresStore)(nil)
