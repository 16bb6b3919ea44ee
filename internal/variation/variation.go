// Package variation holds a read-only snapshot of one opening's subgraph and
// walks every line in it.
package variation

import (
	"fmt"
	"iter"
	"slices"

	"repertoire/internal/core"
)

type pair struct {
	src, dst int64
}

type Tree struct {
	positions map[int64]core.Position
	children  map[int64][]core.Move
	edges     map[pair]core.Move
}

// New indexes the snapshot. Children are ordered by move creation; an edge
// whose endpoints are missing from positions is an integrity error.
func New(positions []core.Position, moves []core.Move) (*Tree, error) {
	t := &Tree{
		positions: make(map[int64]core.Position, len(positions)),
		children:  make(map[int64][]core.Move),
		edges:     make(map[pair]core.Move, len(moves)),
	}
	for _, p := range positions {
		t.positions[p.ID] = p
	}

	ordered := slices.Clone(moves)
	slices.SortStableFunc(ordered, func(a, b core.Move) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		default:
			return 0
		}
	})

	for _, m := range ordered {
		if _, ok := t.positions[m.SourceID]; !ok {
			return nil, fmt.Errorf("%w: move %s leaves unknown position %d", core.ErrIntegrity, m.Notation, m.SourceID)
		}
		if _, ok := t.positions[m.DestID]; !ok {
			return nil, fmt.Errorf("%w: move %s leads to unknown position %d", core.ErrIntegrity, m.Notation, m.DestID)
		}
		t.children[m.SourceID] = append(t.children[m.SourceID], m)
		k := pair{m.SourceID, m.DestID}
		if _, dup := t.edges[k]; !dup {
			t.edges[k] = m
		}
	}
	return t, nil
}

// Edge returns the first recorded move from src to dst
func (t *Tree) Edge(src, dst int64) (core.Move, bool) {
	m, ok := t.edges[pair{src, dst}]
	return m, ok
}

func (t *Tree) Position(id int64) (core.Position, bool) {
	p, ok := t.positions[id]
	return p, ok
}

// Children lists the moves out of a position in creation order
func (t *Tree) Children(id int64) []core.Move {
	return slices.Clone(t.children[id])
}

func (t *Tree) Len() int {
	return len(t.edges)
}

type frame struct {
	pos  int64
	next int
}

// Traverse walks the tree depth first from root. Every reachable position is
// expanded once; each move leaving an expanded position is yielded with its
// source position. Each call starts a fresh walk.
func (t *Tree) Traverse(root int64) iter.Seq2[core.Position, core.Move] {
	return func(yield func(core.Position, core.Move) bool) {
		if _, ok := t.positions[root]; !ok {
			return
		}

		visited := map[int64]bool{root: true}
		stack := []frame{{pos: root}}

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			kids := t.children[top.pos]
			if top.next >= len(kids) {
				stack = stack[:len(stack)-1]
				continue
			}

			m := kids[top.next]
			top.next++

			if !yield(t.positions[top.pos], m) {
				return
			}
			if !visited[m.DestID] {
				visited[m.DestID] = true
				stack = append(stack, frame{pos: m.DestID})
			}
		}
	}
}
