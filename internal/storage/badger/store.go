// Package badger stores the repertoire in an embedded github.com/dgraph-io/badger/v4
// key-value database. Secondary indexes are kept as key prefixes, see keys.go.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"repertoire/internal/core"
	"repertoire/internal/storage"

	"github.com/dgraph-io/badger/v4"
)

// maxConflictRetries bounds how often Update reruns fn after a write conflict
const maxConflictRetries = 3

type Config struct {
	// Path is the database directory, ignored when InMemory is set
	Path     string
	InMemory bool

	SyncWrites bool

	// GCInterval of zero disables value log garbage collection
	GCInterval     time.Duration
	GCDiscardRatio float64

	Logger *slog.Logger
}

func DefaultConfig(path string) Config {
	return Config{
		Path:           path,
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig is used by tests
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// badgerLogger adapts slog.Logger to badger's Logger interface
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

type Store struct {
	db      *badger.DB
	moveSeq *badger.Sequence
	logSeq  *badger.Sequence
	logger  *slog.Logger

	healthStatus atomic.Bool
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	closeOnce    sync.Once
	closeErr     error
}

var _ storage.Store = (*Store)(nil)

func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "badger")

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(&badgerLogger{logger: logger})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w: %w", core.ErrStoreFailure, err)
	}

	moveSeq, err := db.GetSequence([]byte(seqMoveKey), 64)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("move sequence: %w: %w", core.ErrStoreFailure, err)
	}
	logSeq, err := db.GetSequence([]byte(seqLogKey), 64)
	if err != nil {
		moveSeq.Release()
		db.Close()
		return nil, fmt.Errorf("review log sequence: %w: %w", core.ErrStoreFailure, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		db:      db,
		moveSeq: moveSeq,
		logSeq:  logSeq,
		logger:  logger,
		cancel:  cancel,
	}
	s.healthStatus.Store(true)

	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.wg.Add(1)
		go s.runGC(ctx, cfg.GCInterval, cfg.GCDiscardRatio)
	}

	return s, nil
}

func (s *Store) runGC(ctx context.Context, interval time.Duration, ratio float64) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// ErrNoRewrite means there was nothing worth collecting
			if err := s.db.RunValueLogGC(ratio); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				s.logger.Warn("value log GC failed", "error", err)
			}
		}
	}
}

// Update runs fn in a read-write transaction, retrying on write conflicts
func (s *Store) Update(ctx context.Context, fn func(storage.Tx) error) error {
	var err error
	for range maxConflictRetries {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("context cancelled: %w", err)
		}

		err = s.update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		s.logger.Debug("transaction conflict, retrying")
	}
	return fmt.Errorf("commit: %w: %w", core.ErrStoreFailure, err)
}

func (s *Store) update(fn func(storage.Tx) error) error {
	txn := s.db.NewTransaction(true)
	defer txn.Discard()

	if err := fn(&tx{txn: txn, moveSeq: s.moveSeq}); err != nil {
		return err
	}

	if err := txn.Commit(); err != nil {
		if errors.Is(err, badger.ErrConflict) {
			return err
		}
		s.healthStatus.Store(false)
		s.logger.Error("storage degraded: failed to commit", "error", err)
		return fmt.Errorf("commit: %w: %w", core.ErrStoreFailure, err)
	}
	return nil
}

func (s *Store) View(ctx context.Context, fn func(storage.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	txn := s.db.NewTransaction(false)
	defer txn.Discard()

	return fn(&tx{txn: txn})
}

func (s *Store) RecordReview(rec storage.ReviewRecord) error {
	seq, err := s.logSeq.Next()
	if err != nil {
		return fmt.Errorf("review log sequence: %w: %w", core.ErrStoreFailure, err)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode review: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(logKey(seq), data)
	})
	if err != nil {
		return fmt.Errorf("record review: %w: %w", core.ErrStoreFailure, err)
	}
	return nil
}

func (s *Store) ReviewHistory(ctx context.Context, limit int) ([]storage.ReviewRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}

	var records []storage.ReviewRecord
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte(prefixLog)
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefixEnd(prefix)); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(records) >= limit {
				break
			}
			var r storage.ReviewRecord
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &r)
			})
			if err != nil {
				return err
			}
			records = append(records, r)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("review history: %w: %w", core.ErrStoreFailure, err)
	}
	return records, nil
}

func (s *Store) Stats(ctx context.Context) (storage.Stats, error) {
	var st storage.Stats
	if err := ctx.Err(); err != nil {
		return st, fmt.Errorf("context cancelled: %w", err)
	}

	err := s.db.View(func(txn *badger.Txn) error {
		st.Positions = countPrefix(txn, prefixPositionID)
		st.Moves = countPrefix(txn, prefixMove)
		st.Openings = countPrefix(txn, prefixOpeningID)
		st.Reviews = countPrefix(txn, prefixLog)
		return nil
	})
	if err != nil {
		return st, fmt.Errorf("stats: %w: %w", core.ErrStoreFailure, err)
	}
	return st, nil
}

func (s *Store) IsHealthy() bool {
	return s.healthStatus.Load() && !s.db.IsClosed()
}

// Close is safe to call more than once
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		s.wg.Wait()

		err := errors.Join(s.moveSeq.Release(), s.logSeq.Release())
		s.closeErr = errors.Join(err, s.db.Close())
	})
	return s.closeErr
}
