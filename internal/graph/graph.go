// Package graph is the deduplicated position/move graph of a repertoire.
// Positions are content addressed by their canonical state, moves are
// opening-tagged edges, and an edge lives exactly as long as some opening owns it.
package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"repertoire/internal/board"
	"repertoire/internal/core"
	"repertoire/internal/metrics"
	"repertoire/internal/rules"
	"repertoire/internal/storage"
)

type Graph struct {
	store   storage.Store
	rules   rules.Rules
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func New(store storage.Store, r rules.Rules, logger *slog.Logger, m *metrics.Metrics) *Graph {
	if logger == nil {
		logger = slog.Default()
	}
	return &Graph{
		store:   store,
		rules:   r,
		logger:  logger.With("component", "graph"),
		metrics: m,
	}
}

func (g *Graph) Store() storage.Store {
	return g.store
}

func (g *Graph) Rules() rules.Rules {
	return g.rules
}

// EnsureRoot inserts the starting position as id 0 on an empty store
func (g *Graph) EnsureRoot(ctx context.Context) (core.Position, error) {
	var root core.Position
	created := false

	err := g.store.Update(ctx, func(tx storage.Tx) error {
		p, err := tx.PositionByID(core.RootID)
		if err == nil {
			root = p
			return nil
		}
		if !errors.Is(err, core.ErrNotFound) {
			return err
		}

		p, created, err = getOrCreatePosition(tx, g.rules, board.StartingFEN)
		if err != nil {
			return err
		}
		if p.ID != core.RootID {
			return fmt.Errorf("%w: starting position stored as %d", core.ErrIntegrity, p.ID)
		}
		root = p
		return nil
	})
	if err != nil {
		return core.Position{}, fmt.Errorf("ensure root: %w", err)
	}

	if created {
		g.metrics.PositionCreated()
		g.logger.Info("root position created", "state", root.State)
	}
	return root, nil
}
