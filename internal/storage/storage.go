// Package storage provides a SQLite-backed journal of observed BTC prices
// and folds it into candles for the chart.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/rewired-gh/btcview/internal/models"
)

// Sample is one journaled price observation.
type Sample struct {
	ID         string
	Price      float64
	CapturedAt time.Time
	// SourceTimestamp is the snapshot timestamp the sample came from.
	SourceTimestamp string
}

// Storage wraps a SQLite database holding price samples.
type Storage struct {
	db         *sql.DB
	maxSamples int
}

// New opens or creates the SQLite database at dbPath.
// An empty dbPath defaults to $TMPDIR/btcview/history.db.
func New(maxSamples int, dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "btcview", "history.db")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	s := &Storage{db: db, maxSamples: maxSamples}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS price_samples (
			id          TEXT PRIMARY KEY,
			price       REAL NOT NULL,
			captured_at INTEGER NOT NULL,
			source_ts   TEXT NOT NULL UNIQUE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_price_samples_captured_at ON price_samples(captured_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// RecordSample journals the current price of snap. The snapshot timestamp is
// used as capture time when it parses as RFC 3339, otherwise fallback is used.
// A snapshot whose timestamp is already journaled is ignored and reported as
// not recorded.
func (s *Storage) RecordSample(ctx context.Context, snap *models.AnalysisSnapshot, fallback time.Time) (bool, error) {
	if snap == nil {
		return false, errors.New("snapshot is required")
	}
	if snap.CurrentPrice <= 0 {
		return false, fmt.Errorf("invalid price %v", snap.CurrentPrice)
	}
	capturedAt := fallback
	if ts, err := time.Parse(time.RFC3339, snap.Timestamp); err == nil {
		capturedAt = ts
	}
	sourceTS := snap.Timestamp
	if sourceTS == "" {
		sourceTS = capturedAt.UTC().Format(time.RFC3339Nano)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO price_samples (id, price, captured_at, source_ts)
		VALUES (?,?,?,?)`,
		uuid.NewString(), snap.CurrentPrice, capturedAt.UnixNano(), sourceTS,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert sample: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return false, nil
	}

	if s.maxSamples > 0 {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM price_samples WHERE id NOT IN (
				SELECT id FROM price_samples ORDER BY captured_at DESC LIMIT ?
			)`, s.maxSamples); err != nil {
			return false, fmt.Errorf("failed to enforce sample cap: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit sample: %w", err)
	}
	return true, nil
}

// Samples returns journaled samples captured at or after since, oldest first.
func (s *Storage) Samples(ctx context.Context, since time.Time) ([]Sample, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, price, captured_at, source_ts
		FROM price_samples WHERE captured_at >= ?
		ORDER BY captured_at ASC`, since.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	var samples []Sample
	for rows.Next() {
		var sm Sample
		var capturedNano int64
		if err := rows.Scan(&sm.ID, &sm.Price, &capturedNano, &sm.SourceTimestamp); err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		sm.CapturedAt = time.Unix(0, capturedNano)
		samples = append(samples, sm)
	}
	return samples, rows.Err()
}

// Candles folds samples into OHLC candles aligned to interval and returns at
// most limit of the newest, oldest first.
func (s *Storage) Candles(ctx context.Context, interval time.Duration, limit int) ([]models.Candle, error) {
	if interval < time.Second {
		return nil, fmt.Errorf("candle interval must be at least 1s, got %s", interval)
	}

	var since time.Time
	if limit > 0 {
		var latestNano sql.NullInt64
		if err := s.db.QueryRowContext(ctx, `SELECT MAX(captured_at) FROM price_samples`).Scan(&latestNano); err != nil {
			return nil, fmt.Errorf("failed to query latest sample: %w", err)
		}
		if !latestNano.Valid {
			return nil, nil
		}
		latest := time.Unix(0, latestNano.Int64)
		since = latest.Truncate(interval).Add(-time.Duration(limit-1) * interval)
	}

	samples, err := s.Samples(ctx, since)
	if err != nil {
		return nil, err
	}
	candles := Fold(samples, interval)
	if limit > 0 && len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}
	return candles, nil
}

// Fold groups time-ordered samples into candles aligned to interval.
// Buckets without samples produce no candle.
func Fold(samples []Sample, interval time.Duration) []models.Candle {
	var candles []models.Candle
	for _, sm := range samples {
		bucket := sm.CapturedAt.Truncate(interval).Unix()
		n := len(candles)
		if n > 0 && candles[n-1].Time == bucket {
			c := &candles[n-1]
			c.High = max(c.High, sm.Price)
			c.Low = min(c.Low, sm.Price)
			c.Close = sm.Price
			continue
		}
		candles = append(candles, models.Candle{
			Time:  bucket,
			Open:  sm.Price,
			High:  sm.Price,
			Low:   sm.Price,
			Close: sm.Price,
		})
	}
	return candles
}

// Rotate keeps at most maxSamples newest samples and returns how many it
// removed. It applies a lowered cap to a journal written under a higher one.
func (s *Storage) Rotate(ctx context.Context) (int64, error) {
	if s.maxSamples <= 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM price_samples WHERE id NOT IN (
			SELECT id FROM price_samples ORDER BY captured_at DESC LIMIT ?
		)`, s.maxSamples)
	if err != nil {
		return 0, fmt.Errorf("failed to rotate samples: %w", err)
	}
	return res.RowsAffected()
}
