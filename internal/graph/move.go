package graph

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"repertoire/internal/core"
	"repertoire/internal/storage"
)

// Candidates partitions the moves leaving a position: Major belong to the
// active opening, Minor were recorded under other openings
type Candidates struct {
	Major []core.Move `json:"major"`
	Minor []core.Move `json:"minor"`
}

// GetOrCreateEdge records that openingID plays notation from sourceID.
// An existing edge gains the opening; a new edge is created together with its
// destination position. The whole call is one transaction.
func (g *Graph) GetOrCreateEdge(ctx context.Context, sourceID int64, notation string, openingID int64) (core.Move, error) {
	var (
		edge        core.Move
		edgeCreated bool
		edgeMerged  bool
		posCreated  bool
	)

	err := g.store.Update(ctx, func(tx storage.Tx) error {
		edgeCreated, edgeMerged, posCreated = false, false, false

		if _, err := tx.OpeningByID(openingID); err != nil {
			return err
		}

		m, err := tx.Move(sourceID, notation)
		switch {
		case err == nil:
			if m.HasOpening(openingID) {
				edge = m
				return nil
			}
			if err := tx.AddMoveOpening(sourceID, notation, openingID); err != nil {
				return err
			}
			m.Openings = append(m.Openings, openingID)
			slices.Sort(m.Openings)
			edge = m
			edgeMerged = true
			return nil
		case !errors.Is(err, core.ErrNotFound):
			return err
		}

		src, err := tx.PositionByID(sourceID)
		if err != nil {
			return err
		}
		next, _, err := g.rules.Apply(src.State, notation)
		if err != nil {
			return err
		}
		dest, created, err := getOrCreatePosition(tx, g.rules, next)
		if err != nil {
			return err
		}
		posCreated = created

		edge, err = tx.InsertMove(core.Move{
			SourceID: sourceID,
			DestID:   dest.ID,
			Notation: notation,
			Openings: []int64{openingID},
			Color:    src.Turn,
			Review:   core.NewReview(),
		})
		if err != nil {
			return err
		}
		edgeCreated = true
		return nil
	})
	if err != nil {
		return core.Move{}, fmt.Errorf("get or create edge (%d, %s): %w", sourceID, notation, err)
	}

	if posCreated {
		g.metrics.PositionCreated()
	}
	switch {
	case edgeCreated:
		g.metrics.EdgeCreated()
		g.logger.Debug("edge created", "source", sourceID, "move", notation, "dest", edge.DestID, "opening", openingID)
	case edgeMerged:
		g.metrics.EdgeMerged()
		g.logger.Debug("edge claimed by opening", "source", sourceID, "move", notation, "opening", openingID)
	}
	return edge, nil
}

// Edge looks a move up by its identity key
func (g *Graph) Edge(ctx context.Context, sourceID int64, notation string) (core.Move, error) {
	var m core.Move
	err := g.store.View(ctx, func(tx storage.Tx) error {
		var err error
		m, err = tx.Move(sourceID, notation)
		return err
	})
	return m, err
}

// CandidateEdges lists the moves out of a position in creation order. With no
// active opening every move is Minor.
func (g *Graph) CandidateEdges(ctx context.Context, positionID int64, activeOpeningID *int64) (Candidates, error) {
	var c Candidates
	err := g.store.View(ctx, func(tx storage.Tx) error {
		if _, err := tx.PositionByID(positionID); err != nil {
			return err
		}
		moves, err := tx.MovesFrom(positionID)
		if err != nil {
			return err
		}
		for _, m := range moves {
			if activeOpeningID != nil && m.HasOpening(*activeOpeningID) {
				c.Major = append(c.Major, m)
			} else {
				c.Minor = append(c.Minor, m)
			}
		}
		return nil
	})
	if err != nil {
		return Candidates{}, fmt.Errorf("candidate edges of %d: %w", positionID, err)
	}
	return c, nil
}

func (g *Graph) MovesByOpening(ctx context.Context, openingID int64) ([]core.Move, error) {
	var moves []core.Move
	err := g.store.View(ctx, func(tx storage.Tx) error {
		if _, err := tx.OpeningByID(openingID); err != nil {
			return err
		}
		var err error
		moves, err = tx.MovesByOpening(openingID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("moves of opening %d: %w", openingID, err)
	}
	return moves, nil
}

// OpeningSubgraph returns a consistent snapshot of an opening's edges and
// every position they touch, the root included
func (g *Graph) OpeningSubgraph(ctx context.Context, openingID int64) ([]core.Position, []core.Move, error) {
	var (
		positions []core.Position
		moves     []core.Move
	)
	err := g.store.View(ctx, func(tx storage.Tx) error {
		if _, err := tx.OpeningByID(openingID); err != nil {
			return err
		}
		var err error
		moves, err = tx.MovesByOpening(openingID)
		if err != nil {
			return err
		}

		ids := []int64{core.RootID}
		for _, m := range moves {
			ids = append(ids, m.SourceID, m.DestID)
		}
		slices.Sort(ids)
		positions, err = tx.PositionsByIDs(slices.Compact(ids))
		return err
	})
	if err != nil {
		return nil, nil, fmt.Errorf("subgraph of opening %d: %w", openingID, err)
	}
	return positions, moves, nil
}
