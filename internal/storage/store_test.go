package storage_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"repertoire/internal/core"
	"repertoire/internal/storage"
	"repertoire/internal/storage/storagetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	fenStart = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"
	fenE4    = "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1"
	fenD4    = "rnbqkbnr/pppppppp/8/8/3P4/8/PPP1PPPP/RNBQKBNR b KQkq - 0 1"
)

// seed writes root, two children and one opening owning both edges
func seed(t *testing.T, s storage.Store) (core.Move, core.Move) {
	t.Helper()
	var e4, d4 core.Move
	err := s.Update(context.Background(), func(tx storage.Tx) error {
		for _, p := range []core.Position{
			{ID: 0, State: fenStart, Turn: core.ColorWhite},
			{ID: 1, State: fenE4, Turn: core.ColorBlack},
			{ID: 2, State: fenD4, Turn: core.ColorBlack},
		} {
			if err := tx.InsertPosition(p); err != nil {
				return err
			}
		}
		if err := tx.InsertOpening(core.Opening{ID: 0, Name: "Open games", Color: core.ColorWhite}); err != nil {
			return err
		}
		var err error
		e4, err = tx.InsertMove(core.Move{SourceID: 0, DestID: 1, Notation: "e2e4", Openings: []int64{0}, Color: core.ColorWhite, Review: core.NewReview()})
		if err != nil {
			return err
		}
		d4, err = tx.InsertMove(core.Move{SourceID: 0, DestID: 2, Notation: "d2d4", Openings: []int64{0}, Color: core.ColorWhite, Review: core.NewReview()})
		return err
	})
	require.NoError(t, err)
	return e4, d4
}

func TestPositions(t *testing.T) {
	storagetest.RunForAllStores(t, "Positions", func(t *testing.T, s storage.Store) {
		ctx := context.Background()

		err := s.View(ctx, func(tx storage.Tx) error {
			_, ok, err := tx.MaxPositionID()
			require.NoError(t, err)
			assert.False(t, ok, "empty store has no max id")
			return nil
		})
		require.NoError(t, err)

		seed(t, s)

		err = s.View(ctx, func(tx storage.Tx) error {
			p, err := tx.PositionByState(fenE4)
			require.NoError(t, err)
			assert.Equal(t, int64(1), p.ID)
			assert.Equal(t, core.ColorBlack, p.Turn)

			p, err = tx.PositionByID(0)
			require.NoError(t, err)
			assert.Equal(t, fenStart, p.State)

			max, ok, err := tx.MaxPositionID()
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, int64(2), max)

			// unknown ids are skipped, not reported
			ps, err := tx.PositionsByIDs([]int64{2, 0, 42})
			require.NoError(t, err)
			require.Len(t, ps, 2)
			assert.Equal(t, int64(0), ps[0].ID)
			assert.Equal(t, int64(2), ps[1].ID)

			ps, err = tx.PositionsByIDs([]int64{42, 43})
			require.NoError(t, err)
			assert.Empty(t, ps)

			_, err = tx.PositionByID(42)
			assert.True(t, errors.Is(err, core.ErrNotFound))
			_, err = tx.PositionByState("missing")
			assert.True(t, errors.Is(err, core.ErrNotFound))
			return nil
		})
		require.NoError(t, err)
	})
}

func TestMoves(t *testing.T) {
	storagetest.RunForAllStores(t, "Moves", func(t *testing.T, s storage.Store) {
		ctx := context.Background()
		e4, d4 := seed(t, s)
		assert.Less(t, e4.ID, d4.ID, "creation sequence must increase")

		err := s.Update(ctx, func(tx storage.Tx) error {
			require.NoError(t, tx.InsertOpening(core.Opening{ID: 1, Name: "Queen pawn", Color: core.ColorWhite}))
			require.NoError(t, tx.AddMoveOpening(0, "d2d4", 1))
			require.NoError(t, tx.AddMoveOpening(0, "d2d4", 1))

			m, err := tx.Move(0, "d2d4")
			require.NoError(t, err)
			assert.Equal(t, []int64{0, 1}, m.Openings)
			assert.Equal(t, int64(2), m.DestID)
			assert.Equal(t, core.DefaultDifficulty, m.Difficulty)
			assert.Nil(t, m.LastReviewed)

			from, err := tx.MovesFrom(0)
			require.NoError(t, err)
			require.Len(t, from, 2)
			assert.Equal(t, "e2e4", from[0].Notation)
			assert.Equal(t, "d2d4", from[1].Notation)

			owned, err := tx.MovesByOpening(1)
			require.NoError(t, err)
			require.Len(t, owned, 1)
			assert.Equal(t, "d2d4", owned[0].Notation)

			n, err := tx.CountMovesInto(1)
			require.NoError(t, err)
			assert.Equal(t, 1, n)

			require.NoError(t, tx.RemoveMoveOpening(0, "d2d4", 0))
			owned, err = tx.MovesByOpening(0)
			require.NoError(t, err)
			require.Len(t, owned, 1)
			assert.Equal(t, "e2e4", owned[0].Notation)

			require.NoError(t, tx.DeleteMove(0, "e2e4"))
			n, err = tx.CountMovesInto(1)
			require.NoError(t, err)
			assert.Equal(t, 0, n)

			_, err = tx.Move(0, "e2e4")
			assert.True(t, errors.Is(err, core.ErrNotFound))
			assert.True(t, errors.Is(tx.DeleteMove(0, "e2e4"), core.ErrNotFound))
			return nil
		})
		require.NoError(t, err)
	})
}

func TestMoveReviewUpdate(t *testing.T) {
	storagetest.RunForAllStores(t, "ReviewUpdate", func(t *testing.T, s storage.Store) {
		ctx := context.Background()
		seed(t, s)

		now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
		err := s.Update(ctx, func(tx storage.Tx) error {
			return tx.UpdateMoveReview(0, "e2e4", core.Review{Difficulty: 0.1, LastReviewed: &now, IntervalDays: 8.5})
		})
		require.NoError(t, err)

		err = s.View(ctx, func(tx storage.Tx) error {
			m, err := tx.Move(0, "e2e4")
			require.NoError(t, err)
			assert.InDelta(t, 0.1, m.Difficulty, 1e-9)
			assert.InDelta(t, 8.5, m.IntervalDays, 1e-9)
			require.NotNil(t, m.LastReviewed)
			assert.True(t, now.Equal(*m.LastReviewed))
			return nil
		})
		require.NoError(t, err)

		err = s.Update(ctx, func(tx storage.Tx) error {
			return tx.UpdateMoveReview(0, "e2e4", core.Review{Difficulty: 2, IntervalDays: 1})
		})
		assert.True(t, errors.Is(err, core.ErrMalformedInput))
	})
}

func TestOpenings(t *testing.T) {
	storagetest.RunForAllStores(t, "Openings", func(t *testing.T, s storage.Store) {
		ctx := context.Background()

		err := s.Update(ctx, func(tx storage.Tx) error {
			require.NoError(t, tx.InsertOpening(core.Opening{ID: 0, Name: "Sicilian", Color: core.ColorBlack}))
			require.NoError(t, tx.InsertOpening(core.Opening{ID: 1, Name: "Sicilian", Color: core.ColorWhite}))

			o, err := tx.OpeningByName("Sicilian", core.ColorWhite)
			require.NoError(t, err)
			assert.Equal(t, int64(1), o.ID)

			max, ok, err := tx.MaxOpeningID()
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, int64(1), max)

			require.NoError(t, tx.DeleteOpening(0))
			_, err = tx.OpeningByName("Sicilian", core.ColorBlack)
			assert.True(t, errors.Is(err, core.ErrNotFound))

			all, err := tx.Openings()
			require.NoError(t, err)
			require.Len(t, all, 1)
			assert.Equal(t, core.ColorWhite, all[0].Color)
			return nil
		})
		require.NoError(t, err)
	})
}

func TestUpdateRollsBackOnError(t *testing.T) {
	storagetest.RunForAllStores(t, "Rollback", func(t *testing.T, s storage.Store) {
		ctx := context.Background()
		boom := errors.New("boom")

		err := s.Update(ctx, func(tx storage.Tx) error {
			require.NoError(t, tx.InsertPosition(core.Position{ID: 0, State: fenStart, Turn: core.ColorWhite}))
			return boom
		})
		require.ErrorIs(t, err, boom)

		err = s.View(ctx, func(tx storage.Tx) error {
			_, err := tx.PositionByID(0)
			assert.True(t, errors.Is(err, core.ErrNotFound))
			return nil
		})
		require.NoError(t, err)
	})
}

func TestInsertRejectsInvalidRecords(t *testing.T) {
	storagetest.RunForAllStores(t, "Validation", func(t *testing.T, s storage.Store) {
		err := s.Update(context.Background(), func(tx storage.Tx) error {
			return tx.InsertPosition(core.Position{ID: 0, State: fenStart})
		})
		assert.True(t, errors.Is(err, core.ErrMalformedInput), "missing turn color")

		err = s.Update(context.Background(), func(tx storage.Tx) error {
			_, err := tx.InsertMove(core.Move{SourceID: 0, DestID: 1, Notation: "e2e4", Color: core.ColorWhite, Review: core.NewReview()})
			return err
		})
		assert.True(t, errors.Is(err, core.ErrMalformedInput), "edge without owners")

		err = s.Update(context.Background(), func(tx storage.Tx) error {
			return tx.InsertOpening(core.Opening{ID: 0, Name: "Bogus", Color: core.Color(9)})
		})
		assert.True(t, errors.Is(err, core.ErrMalformedInput), "unknown opening color")
	})
}

func TestValidateColorTag(t *testing.T) {
	assert.NoError(t, storage.Validate(core.Opening{ID: 1, Name: "Italian", Color: core.ColorWhite}))
	assert.NoError(t, storage.Validate(core.Position{ID: 1, State: fenE4, Turn: core.ColorBlack}))

	err := storage.Validate(core.Opening{ID: 1, Name: "Italian", Color: core.Color(9)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrMalformedInput))
	assert.Contains(t, err.Error(), "color")
}

func TestReviewLogAndStats(t *testing.T) {
	storagetest.RunForAllStores(t, "ReviewLog", func(t *testing.T, s storage.Store) {
		ctx := context.Background()
		seed(t, s)

		now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
		require.NoError(t, s.RecordReview(storage.ReviewRecord{SourceID: 0, Notation: "e2e4", Correct: true, Difficulty: 0.2, IntervalDays: 6, ReviewedAt: now}))
		require.NoError(t, s.RecordReview(storage.ReviewRecord{SourceID: 0, Notation: "d2d4", Correct: false, Difficulty: 0.5, IntervalDays: 1, ReviewedAt: now.Add(time.Minute)}))

		// sqlite writes the log asynchronously
		require.Eventually(t, func() bool {
			records, err := s.ReviewHistory(ctx, 10)
			return err == nil && len(records) == 2
		}, 2*time.Second, 10*time.Millisecond)

		records, err := s.ReviewHistory(ctx, 1)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "d2d4", records[0].Notation)
		assert.False(t, records[0].Correct)

		st, err := s.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, storage.Stats{Positions: 3, Moves: 2, Openings: 1, Reviews: 2}, st)
		assert.True(t, s.IsHealthy())
	})
}
