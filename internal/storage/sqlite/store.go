// Package sqlite is the default repertoire store, backed by github.com/mattn/go-sqlite3.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"repertoire/internal/core"
	"repertoire/internal/storage"

	_ "github.com/mattn/go-sqlite3"
)

// Store handles SQLite database operations. Graph mutations run in synchronous
// transactions; the review log goes through an async writer.
type Store struct {
	db           *sql.DB
	path         string
	logger       *slog.Logger
	writeChan    chan func(*sql.Tx) error
	healthStatus atomic.Bool
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
}

var _ storage.Store = (*Store)(nil)

// NewStore opens the database file and starts the review log writer
func NewStore(path string, devMode bool, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	// Pragmas go in the DSN so every pooled connection gets them
	params := []string{"_foreign_keys=on", "_busy_timeout=5000", "_txlock=immediate"}
	if devMode {
		params = append(params, "_journal_mode=WAL")
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	dsn := path + sep + strings.Join(params, "&")

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w: %w", core.ErrStoreFailure, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w: %w", core.ErrStoreFailure, err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	ctx, cancel := context.WithCancel(context.Background())

	s := &Store{
		db:        db,
		path:      path,
		logger:    logger.With("component", "sqlite"),
		writeChan: make(chan func(*sql.Tx) error, 1000),
		ctx:       ctx,
		cancel:    cancel,
	}
	s.healthStatus.Store(true)

	s.wg.Add(1)
	go s.writerLoop()

	return s, nil
}

// writerLoop processes async review log writes
func (s *Store) writerLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			deadline := time.After(2 * time.Second)
			for {
				select {
				case fn := <-s.writeChan:
					if s.healthStatus.Load() {
						s.executeWrite(fn)
					}
				case <-deadline:
					return
				default:
					return
				}
			}

		case fn := <-s.writeChan:
			if !s.healthStatus.Load() {
				continue
			}
			s.executeWrite(fn)
		}
	}
}

func (s *Store) executeWrite(fn func(*sql.Tx) error) {
	tx, err := s.db.Begin()
	if err != nil {
		s.logger.Error("storage degraded: failed to begin transaction", "error", err)
		s.healthStatus.Store(false)
		return
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		s.logger.Error("storage degraded: write operation failed", "error", err)
		s.healthStatus.Store(false)
		return
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("storage degraded: failed to commit", "error", err)
		s.healthStatus.Store(false)
	}
}

func (s *Store) Update(ctx context.Context, fn func(storage.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w: %w", core.ErrStoreFailure, err)
	}
	defer sqlTx.Rollback()

	if err := fn(&tx{ctx: ctx, tx: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w: %w", core.ErrStoreFailure, err)
	}
	return nil
}

// View runs fn in a transaction that is always rolled back
func (s *Store) View(ctx context.Context, fn func(storage.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w: %w", core.ErrStoreFailure, err)
	}
	defer sqlTx.Rollback()

	return fn(&tx{ctx: ctx, tx: sqlTx})
}

// RecordReview queues a review log entry; it is dropped when the store is degraded or the queue is full
func (s *Store) RecordReview(rec storage.ReviewRecord) error {
	if !s.healthStatus.Load() {
		return nil
	}

	select {
	case s.writeChan <- func(tx *sql.Tx) error {
		query := `INSERT INTO review_log (
			source_id, notation, correct, difficulty, interval_days, reviewed_utc
		) VALUES (?, ?, ?, ?, ?, ?)`

		_, err := tx.Exec(query,
			rec.SourceID, rec.Notation, rec.Correct,
			rec.Difficulty, rec.IntervalDays, rec.ReviewedAt.UTC(),
		)
		return err
	}:
		return nil
	default:
		s.logger.Warn("storage write queue full, dropping review record")
		return nil
	}
}

func (s *Store) ReviewHistory(ctx context.Context, limit int) ([]storage.ReviewRecord, error) {
	query := `SELECT source_id, notation, correct, difficulty, interval_days, reviewed_utc
	FROM review_log ORDER BY review_id DESC`

	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w: %w", core.ErrStoreFailure, err)
	}
	defer rows.Close()

	var records []storage.ReviewRecord
	for rows.Next() {
		var r storage.ReviewRecord
		if err := rows.Scan(&r.SourceID, &r.Notation, &r.Correct, &r.Difficulty, &r.IntervalDays, &r.ReviewedAt); err != nil {
			return nil, fmt.Errorf("scan failed: %w: %w", core.ErrStoreFailure, err)
		}
		r.ReviewedAt = r.ReviewedAt.UTC()
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w: %w", core.ErrStoreFailure, err)
	}

	return records, nil
}

func (s *Store) Stats(ctx context.Context) (storage.Stats, error) {
	var st storage.Stats
	counts := []struct {
		table string
		dst   *int
	}{
		{"positions", &st.Positions},
		{"moves", &st.Moves},
		{"openings", &st.Openings},
		{"review_log", &st.Reviews},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+c.table).Scan(c.dst); err != nil {
			return st, fmt.Errorf("count %s: %w: %w", c.table, core.ErrStoreFailure, err)
		}
	}
	return st, nil
}

// IsHealthy returns the current health status
func (s *Store) IsHealthy() bool {
	return s.healthStatus.Load()
}

// Close stops the writer and closes the database connection
func (s *Store) Close() error {
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		s.logger.Warn("storage writer shutdown timeout, some review records may be lost")
	}

	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// InitDB creates the database schema
func (s *Store) InitDB() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(Schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return tx.Commit()
}

// DeleteDB closes the store and removes the database file
func (s *Store) DeleteDB() error {
	if err := s.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	for _, suffix := range []string{"", "-wal", "-shm"} {
		if err := os.Remove(s.path + suffix); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to delete database file: %w", err)
		}
	}

	return nil
}
