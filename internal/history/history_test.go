package history

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"repertoire/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapResolver map[int64]core.Position

func (r mapResolver) Position(_ context.Context, id int64) (core.Position, error) {
	p, ok := r[id]
	if !ok {
		return core.Position{}, fmt.Errorf("position %d: %w", id, core.ErrNotFound)
	}
	return p, nil
}

// chain builds positions 0..n and the moves i -> i+1
func chain(n int) (mapResolver, []core.Move) {
	r := mapResolver{}
	var moves []core.Move
	for i := 0; i <= n; i++ {
		r[int64(i)] = core.Position{ID: int64(i), State: fmt.Sprintf("s%d", i)}
		if i > 0 {
			moves = append(moves, core.Move{
				ID:       int64(i),
				SourceID: int64(i - 1),
				DestID:   int64(i),
				Notation: fmt.Sprintf("m%d", i),
				Openings: []int64{0},
			})
		}
	}
	return r, moves
}

func TestPushUndoReturnsToStart(t *testing.T) {
	ctx := context.Background()
	r, moves := chain(5)
	h := New(r)

	for i, m := range moves {
		p, err := h.Push(ctx, m)
		require.NoError(t, err)
		assert.Equal(t, int64(i+1), p.ID)
	}
	assert.Equal(t, int64(5), h.PositionID())

	var p core.Position
	var err error
	for range moves {
		p, err = h.Undo(ctx)
		require.NoError(t, err)
	}
	assert.Equal(t, core.RootID, p.ID)
	assert.Equal(t, core.RootID, h.PositionID())
	assert.Equal(t, -1, h.Cursor())

	_, err = h.Undo(ctx)
	assert.True(t, errors.Is(err, core.ErrInvalidState))
}

func TestRedoRestoresUndoneMove(t *testing.T) {
	ctx := context.Background()
	r, moves := chain(3)
	h := New(r)

	for _, m := range moves {
		_, err := h.Push(ctx, m)
		require.NoError(t, err)
	}

	_, err := h.Undo(ctx)
	require.NoError(t, err)
	_, err = h.Undo(ctx)
	require.NoError(t, err)

	m, p, err := h.Redo(ctx)
	require.NoError(t, err)
	assert.Equal(t, moves[1], m)
	assert.Equal(t, int64(2), p.ID)

	m, p, err = h.Redo(ctx)
	require.NoError(t, err)
	assert.Equal(t, moves[2], m)
	assert.Equal(t, int64(3), p.ID)

	_, _, err = h.Redo(ctx)
	assert.True(t, errors.Is(err, core.ErrNoFurtherMoves))
	assert.True(t, errors.Is(err, core.ErrInvalidState))
}

func TestPushAfterUndoDiscardsFuture(t *testing.T) {
	ctx := context.Background()
	r, moves := chain(3)
	h := New(r)

	for _, m := range moves {
		_, err := h.Push(ctx, m)
		require.NoError(t, err)
	}
	_, err := h.Undo(ctx)
	require.NoError(t, err)
	_, err = h.Undo(ctx)
	require.NoError(t, err)

	r[9] = core.Position{ID: 9, State: "side"}
	side := core.Move{ID: 9, SourceID: 1, DestID: 9, Notation: "x9", Openings: []int64{0}}
	p, err := h.Push(ctx, side)
	require.NoError(t, err)
	assert.Equal(t, int64(9), p.ID)
	assert.Equal(t, 2, h.Len())

	_, _, err = h.Redo(ctx)
	assert.True(t, errors.Is(err, core.ErrNoFurtherMoves))

	line := h.Line()
	require.Len(t, line, 2)
	assert.Equal(t, "m1", line[0].Notation)
	assert.Equal(t, "x9", line[1].Notation)
}

func TestPushFailureLeavesHistoryUnchanged(t *testing.T) {
	ctx := context.Background()
	r, moves := chain(1)
	h := New(r)

	_, err := h.Push(ctx, moves[0])
	require.NoError(t, err)

	_, err = h.Push(ctx, core.Move{SourceID: 1, DestID: 42, Notation: "gone"})
	assert.True(t, errors.Is(err, core.ErrNotFound))
	assert.Equal(t, 0, h.Cursor())
	assert.Equal(t, 1, h.Len())
}

func TestTruncate(t *testing.T) {
	ctx := context.Background()
	r, moves := chain(3)
	h := New(r)

	_, err := h.Truncate()
	assert.True(t, errors.Is(err, core.ErrInvalidState))

	for _, m := range moves {
		_, err := h.Push(ctx, m)
		require.NoError(t, err)
	}
	_, err = h.Undo(ctx)
	require.NoError(t, err)

	dropped, err := h.Truncate()
	require.NoError(t, err)
	assert.Equal(t, "m2", dropped.Notation)
	assert.Equal(t, 1, h.Len())
	assert.Equal(t, int64(1), h.PositionID())

	cur, ok := h.Current()
	require.True(t, ok)
	assert.Equal(t, "m1", cur.Notation)

	h.Reset()
	_, ok = h.Current()
	assert.False(t, ok)
	assert.Empty(t, h.Line())
}
