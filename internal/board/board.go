package board

import (
	"fmt"
	"strconv"
	"strings"

	"repertoire/internal/core"
)

const (
	StartingFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"
)

// Board is a parsed canonical state, used for turn parsing and terminal rendering
type Board struct {
	squares   [8][8]byte
	turn      core.Color
	castling  string
	enPassant string
	halfmove  int
	fullmove  int
}

func ParseFEN(fen string) (*Board, error) {
	parts := strings.Fields(fen)
	if len(parts) != 6 {
		return nil, fmt.Errorf("%w: FEN expects 6 fields, got %d", core.ErrMalformedInput, len(parts))
	}

	b := &Board{}

	ranks := strings.Split(parts[0], "/")
	if len(ranks) != 8 {
		return nil, fmt.Errorf("%w: FEN expects 8 ranks, got %d", core.ErrMalformedInput, len(ranks))
	}

	for r, rank := range ranks {
		file := 0
		for _, ch := range rank {
			if ch >= '1' && ch <= '8' {
				file += int(ch - '0')
				continue
			}
			if !strings.ContainsRune("pnbrqkPNBRQK", ch) {
				return nil, fmt.Errorf("%w: unknown piece %q in rank %d", core.ErrMalformedInput, ch, 8-r)
			}
			if file >= 8 {
				return nil, fmt.Errorf("%w: too many pieces in rank %d", core.ErrMalformedInput, 8-r)
			}
			b.squares[r][file] = byte(ch)
			file++
		}
		if file != 8 {
			return nil, fmt.Errorf("%w: rank %d has %d files", core.ErrMalformedInput, 8-r, file)
		}
	}

	turn, err := core.ParseColor(parts[1])
	if err != nil || len(parts[1]) != 1 {
		return nil, fmt.Errorf("%w: turn must be 'w' or 'b'", core.ErrMalformedInput)
	}
	b.turn = turn
	b.castling = parts[2]
	b.enPassant = parts[3]

	if b.halfmove, err = strconv.Atoi(parts[4]); err != nil {
		return nil, fmt.Errorf("%w: halfmove counter %q", core.ErrMalformedInput, parts[4])
	}
	if b.fullmove, err = strconv.Atoi(parts[5]); err != nil {
		return nil, fmt.Errorf("%w: fullmove counter %q", core.ErrMalformedInput, parts[5])
	}

	return b, nil
}

// TurnOf parses only as much of the state as needed to read the side to move
func TurnOf(fen string) (core.Color, error) {
	b, err := ParseFEN(fen)
	if err != nil {
		return 0, err
	}
	return b.turn, nil
}

func (b *Board) Turn() core.Color {
	return b.turn
}

func (b *Board) FullMove() int {
	return b.fullmove
}

// ToASCII renders the board from the given side's point of view
func (b *Board) ToASCII(orientation core.Color) string {
	files := "a b c d e f g h"
	order := [8]int{0, 1, 2, 3, 4, 5, 6, 7}
	if orientation == core.ColorBlack {
		files = "h g f e d c b a"
		order = [8]int{7, 6, 5, 4, 3, 2, 1, 0}
	}

	var sb strings.Builder
	sb.WriteString("  " + files + "\n")
	for _, r := range order {
		fmt.Fprintf(&sb, "%d ", 8-r)
		for _, f := range order {
			if piece := b.squares[r][f]; piece == 0 {
				sb.WriteString(". ")
			} else {
				fmt.Fprintf(&sb, "%c ", piece)
			}
		}
		fmt.Fprintf(&sb, " %d\n", 8-r)
	}
	sb.WriteString("  " + files)

	return sb.String()
}

func (b *Board) GetPieceAt(square string) byte {
	if len(square) != 2 {
		return 0
	}
	if square[0] < 'a' || square[0] > 'h' || square[1] < '1' || square[1] > '8' {
		return 0
	}
	file := square[0] - 'a'
	rank := '8' - square[1]
	return b.squares[rank][file]
}
