// Package history is the linear undo/redo cursor of an exploration session.
package history

import (
	"context"
	"fmt"
	"slices"

	"repertoire/internal/core"
)

// Resolver loads positions by id; *graph.Graph satisfies it
type Resolver interface {
	Position(ctx context.Context, id int64) (core.Position, error)
}

// History is not safe for concurrent use; sessions serialize access
type History struct {
	resolver Resolver
	moves    []core.Move
	cursor   int // -1 at root
}

func New(r Resolver) *History {
	return &History{resolver: r, cursor: -1}
}

// Push discards any undone moves, appends m and makes its destination current
func (h *History) Push(ctx context.Context, m core.Move) (core.Position, error) {
	p, err := h.resolver.Position(ctx, m.DestID)
	if err != nil {
		return core.Position{}, fmt.Errorf("push %s: %w", m.Notation, err)
	}

	h.moves = append(h.moves[:h.cursor+1], m.Clone())
	h.cursor++
	return p, nil
}

// Undo steps back to the source of the move at the cursor
func (h *History) Undo(ctx context.Context) (core.Position, error) {
	if h.cursor < 0 {
		return core.Position{}, fmt.Errorf("%w: nothing to undo", core.ErrInvalidState)
	}

	m := h.moves[h.cursor]
	p, err := h.resolver.Position(ctx, m.SourceID)
	if err != nil {
		return core.Position{}, fmt.Errorf("undo %s: %w", m.Notation, err)
	}
	h.cursor--
	return p, nil
}

// Redo replays the next undone move
func (h *History) Redo(ctx context.Context) (core.Move, core.Position, error) {
	if h.cursor+1 >= len(h.moves) {
		return core.Move{}, core.Position{}, core.ErrNoFurtherMoves
	}

	m := h.moves[h.cursor+1]
	p, err := h.resolver.Position(ctx, m.DestID)
	if err != nil {
		return core.Move{}, core.Position{}, fmt.Errorf("redo %s: %w", m.Notation, err)
	}
	h.cursor++
	return m.Clone(), p, nil
}

// Truncate drops the move at the cursor together with everything after it
// and returns the dropped move
func (h *History) Truncate() (core.Move, error) {
	if h.cursor < 0 {
		return core.Move{}, fmt.Errorf("%w: no move to remove", core.ErrInvalidState)
	}

	m := h.moves[h.cursor]
	h.moves = h.moves[:h.cursor]
	h.cursor--
	return m, nil
}

// Current returns the move at the cursor, false at root
func (h *History) Current() (core.Move, bool) {
	if h.cursor < 0 {
		return core.Move{}, false
	}
	return h.moves[h.cursor].Clone(), true
}

// PositionID is the id of the current position
func (h *History) PositionID() int64 {
	if h.cursor < 0 {
		return core.RootID
	}
	return h.moves[h.cursor].DestID
}

// Line returns the moves from the root up to the cursor
func (h *History) Line() []core.Move {
	return slices.Clone(h.moves[:h.cursor+1])
}

func (h *History) Cursor() int {
	return h.cursor
}

func (h *History) Len() int {
	return len(h.moves)
}

func (h *History) Reset() {
	h.moves = nil
	h.cursor = -1
}
