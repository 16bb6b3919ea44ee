package review_test

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"repertoire/internal/core"
	"repertoire/internal/graph"
	"repertoire/internal/review"
	"repertoire/internal/rules"
	"repertoire/internal/storage"
	"repertoire/internal/storage/storagetest"
	"repertoire/internal/variation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC)

// setup records 1.e4 e5 2.Nf3 for a white opening and returns its id
func setup(t *testing.T, s storage.Store) (*graph.Graph, *review.Scheduler, int64) {
	t.Helper()
	ctx := context.Background()
	g := graph.New(s, rules.Standard{}, nil, nil)
	_, err := g.EnsureRoot(ctx)
	require.NoError(t, err)

	o, _, err := g.DeclareOpening(ctx, "King pawn", core.ColorWhite)
	require.NoError(t, err)

	pos := core.RootID
	for _, n := range []string{"e2e4", "e7e5", "g1f3"} {
		m, err := g.GetOrCreateEdge(ctx, pos, n, o.ID)
		require.NoError(t, err)
		pos = m.DestID
	}

	sched := review.NewScheduler(s, rand.New(rand.NewPCG(7, 7)), nil, nil)
	sched.SetClock(func() time.Time { return now })
	return g, sched, o.ID
}

func TestRandomDueMatchesColor(t *testing.T) {
	storagetest.RunForAllStores(t, "RandomDueColor", func(t *testing.T, s storage.Store) {
		ctx := context.Background()
		_, sched, opening := setup(t, s)

		for range 20 {
			p, m, err := sched.RandomDue(ctx, opening, core.ColorWhite)
			require.NoError(t, err)
			assert.Equal(t, core.ColorWhite, m.Color)
			assert.Equal(t, m.SourceID, p.ID)
			assert.Equal(t, core.ColorWhite, p.Turn)
		}

		_, m, err := sched.RandomDue(ctx, opening, core.ColorBlack)
		require.NoError(t, err)
		assert.Equal(t, "e7e5", m.Notation)
	})
}

func TestRandomDuePrefersDueMoves(t *testing.T) {
	storagetest.RunForAllStores(t, "RandomDuePrefersDue", func(t *testing.T, s storage.Store) {
		ctx := context.Background()
		_, sched, opening := setup(t, s)

		_, ok, err := sched.UpdatePerformance(ctx, core.RootID, "e2e4", true, now)
		require.NoError(t, err)
		require.True(t, ok)

		for range 20 {
			_, m, err := sched.RandomDue(ctx, opening, core.ColorWhite)
			require.NoError(t, err)
			assert.Equal(t, "g1f3", m.Notation)
		}

		_, nf3, err := sched.RandomDue(ctx, opening, core.ColorWhite)
		require.NoError(t, err)
		_, ok, err = sched.UpdatePerformance(ctx, nf3.SourceID, nf3.Notation, true, now)
		require.NoError(t, err)
		require.True(t, ok)

		// nothing due: fall back to every white move
		seen := map[string]bool{}
		for range 50 {
			_, m, err := sched.RandomDue(ctx, opening, core.ColorWhite)
			require.NoError(t, err)
			seen[m.Notation] = true
		}
		assert.Equal(t, map[string]bool{"e2e4": true, "g1f3": true}, seen)
	})
}

func TestRandomDueFallsBackWhenNothingDue(t *testing.T) {
	storagetest.RunForAllStores(t, "RandomDueFallback", func(t *testing.T, s storage.Store) {
		ctx := context.Background()
		g, sched, opening := setup(t, s)

		_, ok, err := sched.UpdatePerformance(ctx, core.RootID, "e2e4", true, now)
		require.NoError(t, err)
		require.True(t, ok)
		e4, err := g.Edge(ctx, core.RootID, "e2e4")
		require.NoError(t, err)
		e5, err := g.Edge(ctx, e4.DestID, "e7e5")
		require.NoError(t, err)
		_, ok, err = sched.UpdatePerformance(ctx, e5.DestID, "g1f3", true, now)
		require.NoError(t, err)
		require.True(t, ok)

		// every white move was just reviewed
		p, m, err := sched.RandomDue(ctx, opening, core.ColorWhite)
		require.NoError(t, err)
		assert.Equal(t, core.ColorWhite, m.Color)
		assert.Contains(t, []string{"e2e4", "g1f3"}, m.Notation)
		assert.False(t, review.NeedsReview(m.Review, now))
		assert.Equal(t, m.SourceID, p.ID)
	})
}

func TestRandomDueNotFound(t *testing.T) {
	storagetest.RunForAllStores(t, "RandomDueNotFound", func(t *testing.T, s storage.Store) {
		ctx := context.Background()
		g, sched, _ := setup(t, s)

		empty, _, err := g.DeclareOpening(ctx, "Empty", core.ColorBlack)
		require.NoError(t, err)

		_, _, err = sched.RandomDue(ctx, empty.ID, core.ColorBlack)
		assert.True(t, errors.Is(err, core.ErrNotFound))

		_, _, err = sched.RandomDue(ctx, 404, core.ColorWhite)
		assert.True(t, errors.Is(err, core.ErrNotFound))
	})
}

func TestUpdatePerformancePersistsOncePerCycle(t *testing.T) {
	storagetest.RunForAllStores(t, "UpdatePerformance", func(t *testing.T, s storage.Store) {
		ctx := context.Background()
		g, sched, _ := setup(t, s)

		scored, ok, err := sched.UpdatePerformance(ctx, core.RootID, "e2e4", true, now)
		require.NoError(t, err)
		assert.True(t, ok)

		m, err := g.Edge(ctx, core.RootID, "e2e4")
		require.NoError(t, err)
		require.NotNil(t, m.LastReviewed)
		assert.True(t, now.Equal(*m.LastReviewed))
		assert.InDelta(t, 13.14, m.IntervalDays, 1e-9)
		assert.False(t, review.NeedsReview(m.Review, now))

		// the returned move matches what was stored
		assert.Equal(t, "e2e4", scored.Notation)
		require.NotNil(t, scored.LastReviewed)
		assert.True(t, now.Equal(*scored.LastReviewed))
		assert.Equal(t, m.IntervalDays, scored.IntervalDays)
		assert.Equal(t, m.Difficulty, scored.Difficulty)

		unchanged, ok, err := sched.UpdatePerformance(ctx, core.RootID, "e2e4", false, now.Add(time.Second))
		require.NoError(t, err)
		assert.False(t, ok, "second answer in the same cycle is ignored")
		assert.Equal(t, m.IntervalDays, unchanged.IntervalDays)

		after, err := g.Edge(ctx, core.RootID, "e2e4")
		require.NoError(t, err)
		assert.Equal(t, m.Review.IntervalDays, after.IntervalDays)
		assert.Equal(t, m.Review.Difficulty, after.Difficulty)

		_, _, err = sched.UpdatePerformance(ctx, core.RootID, "d2d4", true, now)
		assert.True(t, errors.Is(err, core.ErrNotFound))

		require.Eventually(t, func() bool {
			records, err := s.ReviewHistory(ctx, 0)
			return err == nil && len(records) == 1 && records[0].Correct
		}, 2*time.Second, 10*time.Millisecond)
	})
}

func TestFullReviewFiltersTraversal(t *testing.T) {
	storagetest.RunForAllStores(t, "FullReview", func(t *testing.T, s storage.Store) {
		ctx := context.Background()
		g, sched, opening := setup(t, s)

		positions, moves, err := g.OpeningSubgraph(ctx, opening)
		require.NoError(t, err)
		tree, err := variation.New(positions, moves)
		require.NoError(t, err)

		var white []string
		for p, m := range review.FullReview(tree.Traverse(core.RootID), core.ColorWhite, now) {
			assert.Equal(t, core.ColorWhite, p.Turn)
			white = append(white, m.Notation)
		}
		assert.Equal(t, []string{"e2e4", "g1f3"}, white)

		_, ok, err := sched.UpdatePerformance(ctx, core.RootID, "e2e4", true, now)
		require.NoError(t, err)
		require.True(t, ok)

		// rebuild from the store to see the new schedule
		positions, moves, err = g.OpeningSubgraph(ctx, opening)
		require.NoError(t, err)
		tree, err = variation.New(positions, moves)
		require.NoError(t, err)

		white = white[:0]
		for _, m := range review.FullReview(tree.Traverse(core.RootID), core.ColorWhite, now) {
			white = append(white, m.Notation)
		}
		assert.Equal(t, []string{"g1f3"}, white)

		var black []string
		for _, m := range review.FullReview(tree.Traverse(core.RootID), core.ColorBlack, now) {
			black = append(black, m.Notation)
		}
		assert.Equal(t, []string{"e7e5"}, black)
	})
}
