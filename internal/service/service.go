// Package service owns the in-memory exploration and training sessions and
// routes their operations to the repertoire graph and the review scheduler.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"repertoire/internal/core"
	"repertoire/internal/graph"
	"repertoire/internal/metrics"
	"repertoire/internal/review"
	"repertoire/internal/storage"

	"github.com/google/uuid"
)

const (
	DefaultIdleTTL         = 2 * time.Hour
	DefaultCleanupInterval = 10 * time.Minute

	sessionExplorer = "explorer"
	sessionTrainer  = "trainer"
)

// Service coordinates sessions, the graph and storage
type Service struct {
	graph     *graph.Graph
	scheduler *review.Scheduler
	store     storage.Store

	explorers map[string]*Explorer
	trainers  map[string]*Trainer
	mu        sync.RWMutex

	idleTTL time.Duration
	clock   func() time.Time
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New creates a service; idleTTL <= 0 selects DefaultIdleTTL
func New(g *graph.Graph, sched *review.Scheduler, idleTTL time.Duration, logger *slog.Logger, m *metrics.Metrics) *Service {
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		graph:     g,
		scheduler: sched,
		store:     g.Store(),
		explorers: make(map[string]*Explorer),
		trainers:  make(map[string]*Trainer),
		idleTTL:   idleTTL,
		clock:     time.Now,
		logger:    logger.With("component", "service"),
		metrics:   m,
	}
}

// SetClock replaces the time source for session bookkeeping and training
func (s *Service) SetClock(clock func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = clock
}

// Now reads the service clock
func (s *Service) Now() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clock()
}

func (s *Service) Graph() *graph.Graph {
	return s.graph
}

// GetStorageHealth returns the storage component status
func (s *Service) GetStorageHealth() string {
	if s.store.IsHealthy() {
		return "ok"
	}
	return "degraded"
}

// Stats counts the stored repertoire
func (s *Service) Stats(ctx context.Context) (storage.Stats, error) {
	return s.store.Stats(ctx)
}

// SessionCount returns the number of live sessions of both kinds
func (s *Service) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.explorers) + len(s.trainers)
}

// Openings

func (s *Service) Openings(ctx context.Context) (graph.OpeningsByColor, error) {
	return s.graph.OpeningsByColor(ctx)
}

func (s *Service) CreateOpening(ctx context.Context, name string, color core.Color) (core.Opening, bool, error) {
	return s.graph.DeclareOpening(ctx, name, color)
}

// RemoveOpening cascades the opening out of the graph. Explorers using it fall
// back to no active opening at the root and its training sessions are closed.
func (s *Service) RemoveOpening(ctx context.Context, id int64) error {
	if err := s.graph.RemoveOpening(ctx, id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.explorers {
		e.detachOpening(id)
	}
	for sid, t := range s.trainers {
		if t.opening.ID == id {
			t.Close()
			delete(s.trainers, sid)
			s.metrics.SessionClosed(sessionTrainer)
		}
	}
	return nil
}

// Explorer sessions

// CreateExplorer opens an exploration session at the root, optionally with an
// active opening
func (s *Service) CreateExplorer(ctx context.Context, openingID *int64) (*Explorer, error) {
	root, err := s.graph.Position(ctx, core.RootID)
	if err != nil {
		return nil, fmt.Errorf("create explorer: %w", err)
	}

	e := newExplorer(s.graph, root, s.Now())
	if openingID != nil {
		if _, err := e.SelectOpening(ctx, openingID); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	e.id = s.generateID()
	s.explorers[e.id] = e
	s.mu.Unlock()

	s.metrics.SessionOpened(sessionExplorer)
	s.logger.Debug("explorer opened", "session", e.id)
	return e, nil
}

// Explorer retrieves a live exploration session and marks it used
func (s *Service) Explorer(id string) (*Explorer, error) {
	s.mu.RLock()
	e, ok := s.explorers[id]
	now := s.clock()
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: explorer session %s", core.ErrNotFound, id)
	}
	e.touch(now)
	return e, nil
}

func (s *Service) CloseExplorer(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.explorers[id]; !ok {
		return fmt.Errorf("%w: explorer session %s", core.ErrNotFound, id)
	}
	delete(s.explorers, id)
	s.metrics.SessionClosed(sessionExplorer)
	return nil
}

// Training sessions

// StartTraining opens a training session over an opening's moves played by
// the opening's side
func (s *Service) StartTraining(ctx context.Context, openingID int64, mode Mode) (*Trainer, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("%w: training mode %q", core.ErrMalformedInput, mode)
	}
	o, err := s.graph.Opening(ctx, openingID)
	if err != nil {
		return nil, fmt.Errorf("start training: %w", err)
	}

	now := s.Now()
	t, err := newTrainer(ctx, s.graph, s.scheduler, o, mode, now)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	t.id = s.generateID()
	s.trainers[t.id] = t
	s.mu.Unlock()

	s.metrics.SessionOpened(sessionTrainer)
	s.logger.Debug("training started", "session", t.id, "opening", o.ID, "mode", mode)
	return t, nil
}

func (s *Service) Trainer(id string) (*Trainer, error) {
	s.mu.RLock()
	t, ok := s.trainers[id]
	now := s.clock()
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: training session %s", core.ErrNotFound, id)
	}
	t.touch(now)
	return t, nil
}

func (s *Service) CloseTrainer(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.trainers[id]
	if !ok {
		return fmt.Errorf("%w: training session %s", core.ErrNotFound, id)
	}
	t.Close()
	delete(s.trainers, id)
	s.metrics.SessionClosed(sessionTrainer)
	return nil
}

// generateID returns an id unused by any session; callers hold s.mu
func (s *Service) generateID() string {
	for {
		id := uuid.New().String()
		_, e := s.explorers[id]
		_, t := s.trainers[id]
		if !e && !t {
			return id
		}
	}
}

// Shutdown closes every session and the store
func (s *Service) Shutdown() error {
	var errs []error

	s.mu.Lock()
	for id, t := range s.trainers {
		t.Close()
		delete(s.trainers, id)
		s.metrics.SessionClosed(sessionTrainer)
	}
	for id := range s.explorers {
		delete(s.explorers, id)
		s.metrics.SessionClosed(sessionExplorer)
	}
	s.mu.Unlock()

	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("storage: %w", err))
	}
	return errors.Join(errs...)
}

// RunCleanupJob evicts idle sessions every interval until ctx is done
func (s *Service) RunCleanupJob(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cleanupIdle()
		}
	}
}

func (s *Service) cleanupIdle() {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.clock().Add(-s.idleTTL)
	evicted := 0

	for id, e := range s.explorers {
		if e.idleSince().Before(cutoff) {
			delete(s.explorers, id)
			s.metrics.SessionClosed(sessionExplorer)
			evicted++
		}
	}
	for id, t := range s.trainers {
		if t.idleSince().Before(cutoff) {
			t.Close()
			delete(s.trainers, id)
			s.metrics.SessionClosed(sessionTrainer)
			evicted++
		}
	}

	if evicted > 0 {
		s.logger.Info("evicted idle sessions", "count", evicted)
	}
}
