// Package rules adapts a chess rules implementation to the three questions the
// repertoire graph asks: where does a move lead, how is it written, whose turn is it.
// Legality is never checked here; callers pass moves that were already validated.
package rules

import (
	"fmt"
	"unicode"

	"repertoire/internal/board"
	"repertoire/internal/core"

	"github.com/notnil/chess"
)

type Rules interface {
	// Apply returns the canonical state after the move and the side to move next
	Apply(state, notation string) (string, core.Color, error)
	// SAN renders a coordinate move as standard algebraic notation
	SAN(state, notation string) (string, error)
	// Turn parses the side to move from a canonical state
	Turn(state string) (core.Color, error)
}

// Standard implements Rules on top of github.com/notnil/chess
type Standard struct{}

func (Standard) Apply(state, notation string) (string, core.Color, error) {
	pos, mv, err := decode(state, notation)
	if err != nil {
		return "", 0, err
	}
	next := pos.Update(mv)
	return next.String(), colorOf(next.Turn()), nil
}

func (Standard) SAN(state, notation string) (string, error) {
	pos, mv, err := decode(state, notation)
	if err != nil {
		return "", err
	}
	return chess.AlgebraicNotation{}.Encode(pos, mv), nil
}

func (Standard) Turn(state string) (core.Color, error) {
	return board.TurnOf(state)
}

func decode(state, notation string) (*chess.Position, *chess.Move, error) {
	if !IsMoveSafe(notation) {
		return nil, nil, fmt.Errorf("%w: move %q is not coordinate notation", core.ErrMalformedInput, notation)
	}
	if _, err := board.ParseFEN(state); err != nil {
		return nil, nil, err
	}

	opt, err := chess.FEN(state)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", core.ErrMalformedInput, err)
	}
	pos := chess.NewGame(opt).Position()

	mv, err := chess.UCINotation{}.Decode(pos, notation)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", core.ErrMalformedInput, err)
	}
	return pos, mv, nil
}

// IsMoveSafe accepts UCI coordinate moves only: [a-h][1-8][a-h][1-8][qrbn]?
func IsMoveSafe(move string) bool {
	for _, r := range move {
		if unicode.IsControl(r) {
			return false
		}
	}

	if len(move) < 4 || len(move) > 5 {
		return false
	}

	if move[0] < 'a' || move[0] > 'h' ||
		move[1] < '1' || move[1] > '8' ||
		move[2] < 'a' || move[2] > 'h' ||
		move[3] < '1' || move[3] > '8' {
		return false
	}

	if len(move) == 5 {
		switch move[4] {
		case 'q', 'r', 'b', 'n':
		default:
			return false
		}
	}

	return true
}

func colorOf(c chess.Color) core.Color {
	if c == chess.Black {
		return core.ColorBlack
	}
	return core.ColorWhite
}
