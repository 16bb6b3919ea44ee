package graph

import (
	"context"
	"errors"
	"fmt"

	"repertoire/internal/core"
	"repertoire/internal/rules"
	"repertoire/internal/storage"
)

// getOrCreatePosition resolves a state to its position, inserting it with
// id max+1 (0 on an empty store) when unseen
func getOrCreatePosition(tx storage.Tx, r rules.Rules, state string) (core.Position, bool, error) {
	p, err := tx.PositionByState(state)
	if err == nil {
		return p, false, nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return p, false, err
	}

	turn, err := r.Turn(state)
	if err != nil {
		return p, false, err
	}

	max, ok, err := tx.MaxPositionID()
	if err != nil {
		return p, false, err
	}
	id := core.RootID
	if ok {
		id = max + 1
	}

	p = core.Position{ID: id, State: state, Turn: turn}
	if err := tx.InsertPosition(p); err != nil {
		return core.Position{}, false, err
	}
	return p, true, nil
}

// GetOrCreatePosition is idempotent: the same state always yields the same id
func (g *Graph) GetOrCreatePosition(ctx context.Context, state string) (core.Position, error) {
	var p core.Position
	var created bool
	err := g.store.Update(ctx, func(tx storage.Tx) error {
		var err error
		p, created, err = getOrCreatePosition(tx, g.rules, state)
		return err
	})
	if err != nil {
		return core.Position{}, fmt.Errorf("get or create position: %w", err)
	}
	if created {
		g.metrics.PositionCreated()
	}
	return p, nil
}

func (g *Graph) Position(ctx context.Context, id int64) (core.Position, error) {
	var p core.Position
	err := g.store.View(ctx, func(tx storage.Tx) error {
		var err error
		p, err = tx.PositionByID(id)
		return err
	})
	return p, err
}

// DeletePosition removes an unreferenced position. The root and positions
// still attached to an edge are refused.
func (g *Graph) DeletePosition(ctx context.Context, id int64) error {
	if id == core.RootID {
		return fmt.Errorf("%w: the root position cannot be deleted", core.ErrInvalidState)
	}

	err := g.store.Update(ctx, func(tx storage.Tx) error {
		if _, err := tx.PositionByID(id); err != nil {
			return err
		}
		in, err := tx.CountMovesInto(id)
		if err != nil {
			return err
		}
		out, err := tx.MovesFrom(id)
		if err != nil {
			return err
		}
		if in > 0 || len(out) > 0 {
			return fmt.Errorf("%w: position %d is still referenced by %d moves", core.ErrInvalidState, id, in+len(out))
		}
		return tx.DeletePosition(id)
	})
	if err != nil {
		return fmt.Errorf("delete position: %w", err)
	}
	g.metrics.PositionsDeleted(1)
	return nil
}
