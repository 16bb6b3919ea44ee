package service

import (
	"context"
	"fmt"
	"iter"
	"sync"
	"time"

	"repertoire/internal/core"
	"repertoire/internal/graph"
	"repertoire/internal/review"
	"repertoire/internal/variation"
)

type Mode string

const (
	ModeRandom Mode = "random"
	ModeFull   Mode = "full"
)

func (m Mode) Valid() bool {
	return m == ModeRandom || m == ModeFull
}

// Card is one training question: play Move from Position
type Card struct {
	Position core.Position
	Move     core.Move
}

// Trainer is one training session over an opening. Random mode samples due
// moves without end; full mode walks the opening once in depth-first order.
type Trainer struct {
	id        string
	mode      Mode
	opening   core.Opening
	scheduler *review.Scheduler

	next func() (core.Position, core.Move, bool)
	stop func()

	current  *Card
	answered bool
	finished bool
	lastUsed time.Time
	mu       sync.Mutex
}

func newTrainer(ctx context.Context, g *graph.Graph, sched *review.Scheduler, o core.Opening, mode Mode, now time.Time) (*Trainer, error) {
	t := &Trainer{
		mode:      mode,
		opening:   o,
		scheduler: sched,
		lastUsed:  now,
	}
	if mode != ModeFull {
		return t, nil
	}

	positions, moves, err := g.OpeningSubgraph(ctx, o.ID)
	if err != nil {
		return nil, fmt.Errorf("start training: %w", err)
	}
	tree, err := variation.New(positions, moves)
	if err != nil {
		return nil, fmt.Errorf("start training: %w", err)
	}
	t.next, t.stop = iter.Pull2(review.FullReview(tree.Traverse(core.RootID), o.Color, now))
	return t, nil
}

func (t *Trainer) ID() string {
	return t.id
}

func (t *Trainer) Mode() Mode {
	return t.mode
}

func (t *Trainer) Opening() core.Opening {
	return t.opening
}

func (t *Trainer) touch(now time.Time) {
	t.mu.Lock()
	t.lastUsed = now
	t.mu.Unlock()
}

func (t *Trainer) idleSince() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastUsed
}

// Next draws the following card. ok is false once a full review is exhausted.
func (t *Trainer) Next(ctx context.Context) (card Card, ok bool, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.finished {
		return Card{}, false, nil
	}

	switch t.mode {
	case ModeFull:
		p, m, more := t.next()
		if !more {
			t.finish()
			return Card{}, false, nil
		}
		card = Card{Position: p, Move: m}
	default:
		p, m, err := t.scheduler.RandomDue(ctx, t.opening.ID, t.opening.Color)
		if err != nil {
			return Card{}, false, err
		}
		card = Card{Position: p, Move: m}
	}

	t.current = &card
	t.answered = false
	return card, true, nil
}

// Current returns the card awaiting an answer
func (t *Trainer) Current() (Card, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current == nil {
		return Card{}, false
	}
	return *t.current, true
}

func (t *Trainer) Finished() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.finished
}

// Check reports whether notation is the expected move of the current card
func (t *Trainer) Check(notation string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current == nil {
		return false, fmt.Errorf("%w: no card drawn", core.ErrInvalidState)
	}
	return notation == t.current.Move.Notation, nil
}

// Record scores the current card and returns it with the stored schedule. A
// card can be scored once; the returned flag is false when the move was not
// due and its schedule was left unchanged.
func (t *Trainer) Record(ctx context.Context, correct bool, now time.Time) (Card, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current == nil {
		return Card{}, false, fmt.Errorf("%w: no card drawn", core.ErrInvalidState)
	}
	if t.answered {
		return Card{}, false, fmt.Errorf("%w: card already answered", core.ErrInvalidState)
	}

	card := *t.current
	m, updated, err := t.scheduler.UpdatePerformance(ctx, card.Move.SourceID, card.Move.Notation, correct, now)
	if err != nil {
		return Card{}, false, err
	}
	card.Move = m
	t.current = &card
	t.answered = true
	return card, updated, nil
}

// Close releases the full review iterator
func (t *Trainer) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.finish()
}

// finish stops the iterator; callers hold t.mu
func (t *Trainer) finish() {
	t.finished = true
	if t.stop != nil {
		t.stop()
		t.stop = nil
	}
}
