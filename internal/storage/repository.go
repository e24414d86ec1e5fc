package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
	// ErrNoSnapshot is returned when no snapshot has been stored yet.
	ErrNoSnapshot = errors.New("storage: no snapshot recorded")
)

const (
	insertSnapshotSQL = `INSERT INTO rate_snapshots (
        fetched_at,
        base_unit,
        as_of_date,
        source_ts,
        rates
    ) VALUES (
        $1,$2,$3,$4,$5
    )
    ON CONFLICT (as_of_date, source_ts) DO UPDATE
    SET
        fetched_at = EXCLUDED.fetched_at,
        base_unit  = EXCLUDED.base_unit,
        rates      = EXCLUDED.rates
    RETURNING id;`

	snapshotColumns = `id,
        fetched_at,
        base_unit,
        as_of_date,
        source_ts,
        rates,
        created_at`

	latestSnapshotSQL = `SELECT ` + snapshotColumns + `
    FROM rate_snapshots
    ORDER BY source_ts DESC, id DESC
    LIMIT 1;`

	listRecentSnapshotsSQL = `SELECT ` + snapshotColumns + `
    FROM rate_snapshots
    ORDER BY source_ts DESC, id DESC
    LIMIT $1;`

	listSnapshotsBetweenSQL = `SELECT ` + snapshotColumns + `
    FROM rate_snapshots
    WHERE source_ts >= $1
      AND source_ts < $2
    ORDER BY source_ts;`

	countSnapshotsSQL = `SELECT COUNT(*) FROM rate_snapshots;`

	insertAlertSQL = `INSERT INTO rate_alerts (
        snapshot_id,
        pair,
        previous_rate,
        current_rate,
        change_pct,
        threshold_pct,
        direction,
        channels
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8
    )
    RETURNING id, created_at;`

	listRecentAlertsSQL = `SELECT
        id,
        snapshot_id,
        pair,
        previous_rate::text,
        current_rate::text,
        change_pct::text,
        threshold_pct::text,
        direction,
        channels,
        created_at
    FROM rate_alerts
    ORDER BY created_at DESC
    LIMIT $1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// SnapshotStore defines operations for rate snapshot persistence.
type SnapshotStore interface {
	InsertSnapshot(ctx context.Context, record SnapshotRecord) (int64, error)
	LatestSnapshot(ctx context.Context) (SnapshotRecord, error)
	ListRecentSnapshots(ctx context.Context, limit int) ([]SnapshotRecord, error)
	ListSnapshotsBetween(ctx context.Context, from, to time.Time) ([]SnapshotRecord, error)
	CountSnapshots(ctx context.Context) (int64, error)
}

// AlertStore defines operations for alert auditing.
type AlertStore interface {
	InsertAlert(ctx context.Context, alert AlertRecord) (AlertRecord, error)
	ListRecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to snapshots and alerts.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// best effort; the lock dies with the session anyway
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// InsertSnapshot persists a snapshot, replacing one with the same date and
// provider timestamp, and returns its id.
func (s *Store) InsertSnapshot(ctx context.Context, record SnapshotRecord) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}

	payload, err := json.Marshal(record.Rates)
	if err != nil {
		return 0, fmt.Errorf("encode rates: %w", err)
	}

	var id int64
	if err := pool.QueryRow(ctx, insertSnapshotSQL,
		record.FetchedAt,
		record.Base,
		record.AsOfDate,
		record.SourceTS,
		payload,
	).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert snapshot: %w", err)
	}
	return id, nil
}

// LatestSnapshot returns the most recent snapshot by provider timestamp.
func (s *Store) LatestSnapshot(ctx context.Context) (SnapshotRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return SnapshotRecord{}, err
	}

	rows, err := pool.Query(ctx, latestSnapshotSQL)
	if err != nil {
		return SnapshotRecord{}, fmt.Errorf("latest snapshot: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if rows.Err() != nil {
			return SnapshotRecord{}, rows.Err()
		}
		return SnapshotRecord{}, ErrNoSnapshot
	}
	return scanSnapshot(rows)
}

// ListRecentSnapshots lists the most recent snapshots, newest first.
func (s *Store) ListRecentSnapshots(ctx context.Context, limit int) ([]SnapshotRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentSnapshotsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent snapshots: %w", queryErr)
	}
	return collectSnapshots(rows, limit)
}

// ListSnapshotsBetween lists snapshots whose provider timestamp is in [from, to).
func (s *Store) ListSnapshotsBetween(ctx context.Context, from, to time.Time) ([]SnapshotRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listSnapshotsBetweenSQL, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list snapshots between: %w", queryErr)
	}
	return collectSnapshots(rows, 0)
}

// CountSnapshots counts stored snapshots.
func (s *Store) CountSnapshots(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countSnapshotsSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count snapshots: %w", scanErr)
	}
	return count, nil
}

// InsertAlert persists an alert emission.
func (s *Store) InsertAlert(ctx context.Context, alert AlertRecord) (AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return AlertRecord{}, err
	}

	channels := alert.Channels
	if channels == nil {
		channels = []string{}
	}

	rec := alert
	if scanErr := pool.QueryRow(ctx, insertAlertSQL,
		alert.SnapshotID,
		alert.Pair,
		alert.PreviousRate.String(),
		alert.CurrentRate.String(),
		alert.ChangePct.String(),
		alert.ThresholdPct.String(),
		alert.Direction,
		channels,
	).Scan(&rec.ID, &rec.CreatedAt); scanErr != nil {
		return AlertRecord{}, fmt.Errorf("insert alert: %w", scanErr)
	}
	return rec, nil
}

// ListRecentAlerts lists most recent alerts.
func (s *Store) ListRecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentAlertsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent alerts: %w", queryErr)
	}
	defer rows.Close()

	alerts := make([]AlertRecord, 0, limit)
	for rows.Next() {
		var rec AlertRecord
		var previousStr, currentStr, changeStr, thresholdStr string
		if err := rows.Scan(
			&rec.ID,
			&rec.SnapshotID,
			&rec.Pair,
			&previousStr,
			&currentStr,
			&changeStr,
			&thresholdStr,
			&rec.Direction,
			&rec.Channels,
			&rec.CreatedAt,
		); err != nil {
			return nil, err
		}

		var convErr error
		if rec.PreviousRate, convErr = decimal.NewFromString(previousStr); convErr != nil {
			return nil, fmt.Errorf("parse previous rate: %w", convErr)
		}
		if rec.CurrentRate, convErr = decimal.NewFromString(currentStr); convErr != nil {
			return nil, fmt.Errorf("parse current rate: %w", convErr)
		}
		if rec.ChangePct, convErr = decimal.NewFromString(changeStr); convErr != nil {
			return nil, fmt.Errorf("parse change pct: %w", convErr)
		}
		if rec.ThresholdPct, convErr = decimal.NewFromString(thresholdStr); convErr != nil {
			return nil, fmt.Errorf("parse threshold pct: %w", convErr)
		}

		alerts = append(alerts, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return alerts, nil
}

func collectSnapshots(rows pgx.Rows, capacity int) ([]SnapshotRecord, error) {
	defer rows.Close()

	records := make([]SnapshotRecord, 0, capacity)
	for rows.Next() {
		record, scanErr := scanSnapshot(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		records = append(records, record)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

func scanSnapshot(rows pgx.Rows) (SnapshotRecord, error) {
	var (
		record  SnapshotRecord
		payload []byte
	)
	if err := rows.Scan(
		&record.ID,
		&record.FetchedAt,
		&record.Base,
		&record.AsOfDate,
		&record.SourceTS,
		&payload,
		&record.CreatedAt,
	); err != nil {
		return SnapshotRecord{}, err
	}

	if err := json.Unmarshal(payload, &record.Rates); err != nil {
		return SnapshotRecord{}, fmt.Errorf("decode snapshot %d rates: %w", record.ID, err)
	}
	return record, nil
}
