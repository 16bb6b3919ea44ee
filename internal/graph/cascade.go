package graph

import (
	"context"
	"errors"
	"fmt"

	"repertoire/internal/core"
	"repertoire/internal/storage"
)

type edgeKey struct {
	source   int64
	notation string
}

type cascadeResult struct {
	visited          int
	edgesDeleted     int
	positionsDeleted int
}

// cascade removes openingID from every queued edge. An edge left without
// owners is deleted; when that orphans its destination, the destination's
// outbound edges owned by openingID are queued and the destination is marked.
// Marked positions are deleted once the worklist drains, but only if they have
// neither inbound nor outbound edges left. The root is never marked.
func cascade(tx storage.Tx, openingID int64, seeds []edgeKey) (cascadeResult, error) {
	var res cascadeResult

	worklist := append([]edgeKey(nil), seeds...)
	marked := make(map[int64]bool)
	var markOrder []int64

	for len(worklist) > 0 {
		k := worklist[0]
		worklist = worklist[1:]
		res.visited++

		m, err := tx.Move(k.source, k.notation)
		if errors.Is(err, core.ErrNotFound) {
			// already removed through another path
			continue
		}
		if err != nil {
			return res, err
		}
		if !m.HasOpening(openingID) {
			continue
		}

		if err := tx.RemoveMoveOpening(k.source, k.notation, openingID); err != nil {
			return res, err
		}
		if len(m.Openings) > 1 {
			continue
		}

		if err := tx.DeleteMove(k.source, k.notation); err != nil {
			return res, err
		}
		res.edgesDeleted++

		dest := m.DestID
		if dest == core.RootID || marked[dest] {
			continue
		}
		in, err := tx.CountMovesInto(dest)
		if err != nil {
			return res, err
		}
		if in > 0 {
			continue
		}

		out, err := tx.MovesFrom(dest)
		if err != nil {
			return res, err
		}
		for _, o := range out {
			if o.HasOpening(openingID) {
				worklist = append(worklist, edgeKey{source: o.SourceID, notation: o.Notation})
			}
		}
		marked[dest] = true
		markOrder = append(markOrder, dest)
	}

	for _, id := range markOrder {
		in, err := tx.CountMovesInto(id)
		if err != nil {
			return res, err
		}
		out, err := tx.MovesFrom(id)
		if err != nil {
			return res, err
		}
		if in > 0 || len(out) > 0 {
			continue
		}
		if err := tx.DeletePosition(id); err != nil {
			return res, err
		}
		res.positionsDeleted++
	}

	return res, nil
}

// RemoveEdgeFromOpening withdraws openingID from one edge and cascades
func (g *Graph) RemoveEdgeFromOpening(ctx context.Context, sourceID int64, notation string, openingID int64) error {
	var res cascadeResult
	err := g.store.Update(ctx, func(tx storage.Tx) error {
		m, err := tx.Move(sourceID, notation)
		if err != nil {
			return err
		}
		if !m.HasOpening(openingID) {
			return fmt.Errorf("%w: opening %d does not own (%d, %s)", core.ErrNotFound, openingID, sourceID, notation)
		}

		res, err = cascade(tx, openingID, []edgeKey{{source: sourceID, notation: notation}})
		return err
	})
	if err != nil {
		return fmt.Errorf("remove edge (%d, %s) from opening %d: %w", sourceID, notation, openingID, err)
	}

	g.recordCascade(openingID, res)
	return nil
}

// RemoveOpening cascades over every edge the opening owns, then deletes it
func (g *Graph) RemoveOpening(ctx context.Context, openingID int64) error {
	var res cascadeResult
	err := g.store.Update(ctx, func(tx storage.Tx) error {
		if _, err := tx.OpeningByID(openingID); err != nil {
			return err
		}
		owned, err := tx.MovesByOpening(openingID)
		if err != nil {
			return err
		}

		seeds := make([]edgeKey, 0, len(owned))
		for _, m := range owned {
			seeds = append(seeds, edgeKey{source: m.SourceID, notation: m.Notation})
		}
		if res, err = cascade(tx, openingID, seeds); err != nil {
			return err
		}

		return tx.DeleteOpening(openingID)
	})
	if err != nil {
		return fmt.Errorf("remove opening %d: %w", openingID, err)
	}

	g.recordCascade(openingID, res)
	g.logger.Info("opening removed", "opening", openingID,
		"edges_deleted", res.edgesDeleted, "positions_deleted", res.positionsDeleted)
	return nil
}

func (g *Graph) recordCascade(openingID int64, res cascadeResult) {
	g.metrics.CascadeVisited(res.visited)
	g.metrics.EdgesDeleted(res.edgesDeleted)
	g.metrics.PositionsDeleted(res.positionsDeleted)
	g.logger.Debug("cascade finished", "opening", openingID,
		"visited", res.visited, "edges_deleted", res.edgesDeleted, "positions_deleted", res.positionsDeleted)
}
