package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"repertoire/internal/core"
	"repertoire/internal/graph"
	"repertoire/internal/history"
)

// Explorer is one exploration session: a cursor into the graph with an
// optional active opening that new moves are recorded into
type Explorer struct {
	id      string
	graph   *graph.Graph
	history *history.History

	root     core.Position
	opening  *core.Opening
	position core.Position
	lastUsed time.Time
	mu       sync.Mutex
}

// ExplorerState is a snapshot of a session after an operation
type ExplorerState struct {
	ID         string
	Opening    *core.Opening
	Position   core.Position
	LastMove   *core.Move
	LastSource core.Position // source position of LastMove
	Candidates graph.Candidates
	Line       []core.Move
	Cursor     int
	Length     int
}

func newExplorer(g *graph.Graph, root core.Position, now time.Time) *Explorer {
	return &Explorer{
		graph:    g,
		history:  history.New(g),
		root:     root,
		position: root,
		lastUsed: now,
	}
}

func (e *Explorer) ID() string {
	return e.id
}

func (e *Explorer) touch(now time.Time) {
	e.mu.Lock()
	e.lastUsed = now
	e.mu.Unlock()
}

func (e *Explorer) idleSince() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastUsed
}

// State returns the current snapshot
func (e *Explorer) State(ctx context.Context) (ExplorerState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state(ctx)
}

// state builds the snapshot; callers hold e.mu
func (e *Explorer) state(ctx context.Context) (ExplorerState, error) {
	var active *int64
	if e.opening != nil {
		active = &e.opening.ID
	}
	cands, err := e.graph.CandidateEdges(ctx, e.position.ID, active)
	if err != nil {
		return ExplorerState{}, err
	}

	st := ExplorerState{
		ID:         e.id,
		Position:   e.position,
		Candidates: cands,
		Line:       e.history.Line(),
		Cursor:     e.history.Cursor(),
		Length:     e.history.Len(),
	}
	if e.opening != nil {
		o := *e.opening
		st.Opening = &o
	}
	if m, ok := e.history.Current(); ok {
		src, err := e.graph.Position(ctx, m.SourceID)
		if err != nil {
			return ExplorerState{}, err
		}
		st.LastMove = &m
		st.LastSource = src
	}
	return st, nil
}

// SelectOpening sets or clears the active opening and returns to the root
func (e *Explorer) SelectOpening(ctx context.Context, openingID *int64) (ExplorerState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var selected *core.Opening
	if openingID != nil {
		o, err := e.graph.Opening(ctx, *openingID)
		if err != nil {
			return ExplorerState{}, fmt.Errorf("select opening: %w", err)
		}
		selected = &o
	}

	e.opening = selected
	e.position = e.root
	e.history.Reset()
	return e.state(ctx)
}

// Push plays notation from the current position, records it in the active
// opening and advances the cursor
func (e *Explorer) Push(ctx context.Context, notation string) (ExplorerState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.opening == nil {
		return ExplorerState{}, fmt.Errorf("%w: no active opening", core.ErrInvalidState)
	}

	m, err := e.graph.GetOrCreateEdge(ctx, e.position.ID, notation, e.opening.ID)
	if err != nil {
		return ExplorerState{}, err
	}
	p, err := e.history.Push(ctx, m)
	if err != nil {
		return ExplorerState{}, err
	}
	e.position = p
	return e.state(ctx)
}

func (e *Explorer) Undo(ctx context.Context) (ExplorerState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.history.Undo(ctx)
	if err != nil {
		return ExplorerState{}, err
	}
	e.position = p
	return e.state(ctx)
}

func (e *Explorer) Redo(ctx context.Context) (ExplorerState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, p, err := e.history.Redo(ctx)
	if err != nil {
		return ExplorerState{}, err
	}
	e.position = p
	return e.state(ctx)
}

// RemoveLast detaches the move at the cursor from the active opening, cascading
// through the line below it, and steps back to its source position
func (e *Explorer) RemoveLast(ctx context.Context) (ExplorerState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.opening == nil {
		return ExplorerState{}, fmt.Errorf("%w: no active opening", core.ErrInvalidState)
	}
	m, ok := e.history.Current()
	if !ok {
		return ExplorerState{}, fmt.Errorf("%w: no move to remove", core.ErrInvalidState)
	}

	if err := e.graph.RemoveEdgeFromOpening(ctx, m.SourceID, m.Notation, e.opening.ID); err != nil {
		return ExplorerState{}, err
	}
	if _, err := e.history.Truncate(); err != nil {
		return ExplorerState{}, err
	}

	p, err := e.graph.Position(ctx, m.SourceID)
	if err != nil {
		return ExplorerState{}, err
	}
	e.position = p
	return e.state(ctx)
}

// detachOpening clears the active opening if it is id
func (e *Explorer) detachOpening(id int64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.opening == nil || e.opening.ID != id {
		return
	}
	e.opening = nil
	e.history.Reset()
	e.position = e.root
}
