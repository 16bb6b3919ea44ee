package review

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"math/rand/v2"
	"time"

	"repertoire/internal/core"
	"repertoire/internal/metrics"
	"repertoire/internal/storage"
)

// Scheduler picks training cards and persists scored answers
type Scheduler struct {
	store   storage.Store
	rng     *rand.Rand
	clock   func() time.Time
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewScheduler uses rng for card sampling; nil means the global source
func NewScheduler(store storage.Store, rng *rand.Rand, logger *slog.Logger, m *metrics.Metrics) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:   store,
		rng:     rng,
		clock:   time.Now,
		logger:  logger.With("component", "review"),
		metrics: m,
	}
}

// SetClock replaces the time source used by RandomDue
func (s *Scheduler) SetClock(clock func() time.Time) {
	s.clock = clock
}

func (s *Scheduler) intN(n int) int {
	if s.rng == nil {
		return rand.IntN(n)
	}
	return s.rng.IntN(n)
}

// RandomDue samples one of the opening's moves played by color, uniformly
// among the due ones, or among all of them when none is due
func (s *Scheduler) RandomDue(ctx context.Context, openingID int64, color core.Color) (core.Position, core.Move, error) {
	now := s.clock()

	var (
		pos  core.Position
		card core.Move
	)
	err := s.store.View(ctx, func(tx storage.Tx) error {
		if _, err := tx.OpeningByID(openingID); err != nil {
			return err
		}
		moves, err := tx.MovesByOpening(openingID)
		if err != nil {
			return err
		}

		var matching, due []core.Move
		for _, m := range moves {
			if m.Color != color {
				continue
			}
			matching = append(matching, m)
			if NeedsReview(m.Review, now) {
				due = append(due, m)
			}
		}

		pool := due
		if len(pool) == 0 {
			pool = matching
		}
		if len(pool) == 0 {
			return fmt.Errorf("%w: no %s moves in opening %d", core.ErrNotFound, color.Name(), openingID)
		}

		card = pool[s.intN(len(pool))]
		pos, err = tx.PositionByID(card.SourceID)
		return err
	})
	if err != nil {
		return core.Position{}, core.Move{}, fmt.Errorf("random card: %w", err)
	}
	return pos, card, nil
}

// FullReview keeps the moves of a traversal that color plays and that are due
func FullReview(seq iter.Seq2[core.Position, core.Move], color core.Color, now time.Time) iter.Seq2[core.Position, core.Move] {
	return func(yield func(core.Position, core.Move) bool) {
		for p, m := range seq {
			if m.Color != color || !NeedsReview(m.Review, now) {
				continue
			}
			if !yield(p, m) {
				return
			}
		}
	}
}

// UpdatePerformance scores the move (sourceID, notation) and persists the new
// schedule. It returns the move as stored afterwards, and false without
// writing when the move is not due.
func (s *Scheduler) UpdatePerformance(ctx context.Context, sourceID int64, notation string, correct bool, now time.Time) (core.Move, bool, error) {
	var m core.Move
	updated := false

	err := s.store.Update(ctx, func(tx storage.Tx) error {
		var err error
		m, err = tx.Move(sourceID, notation)
		if err != nil {
			return err
		}
		var next core.Review
		next, updated = Update(m.Review, correct, now)
		if !updated {
			return nil
		}
		if err := tx.UpdateMoveReview(sourceID, notation, next); err != nil {
			return err
		}
		m.Review = next
		return nil
	})
	if err != nil {
		return core.Move{}, false, fmt.Errorf("update performance (%d, %s): %w", sourceID, notation, err)
	}
	if !updated {
		s.logger.Debug("move not due, answer ignored", "source", sourceID, "move", notation)
		return m, false, nil
	}
	next := m.Review

	s.metrics.Review(correct)
	rec := storage.ReviewRecord{
		SourceID:     sourceID,
		Notation:     notation,
		Correct:      correct,
		Difficulty:   next.Difficulty,
		IntervalDays: next.IntervalDays,
		ReviewedAt:   now.UTC(),
	}
	if err := s.store.RecordReview(rec); err != nil {
		s.logger.Warn("review log write failed", "error", err)
	}
	return m, true, nil
}
