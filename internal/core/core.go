package core

import (
	"fmt"
	"math"
	"slices"
	"time"
)

const (
	// RootID is the id of the starting position, always present in the graph
	RootID int64 = 0

	DefaultDifficulty   = 0.3
	DefaultIntervalDays = 3.0
)

type Color byte

const (
	ColorWhite Color = 'w'
	ColorBlack Color = 'b'
)

func (c Color) String() string {
	switch c {
	case ColorWhite:
		return "w"
	case ColorBlack:
		return "b"
	default:
		return "-"
	}
}

// Name returns the long form used by openings ("white"/"black")
func (c Color) Name() string {
	switch c {
	case ColorWhite:
		return "white"
	case ColorBlack:
		return "black"
	default:
		return "unknown"
	}
}

func (c Color) Valid() bool {
	return c == ColorWhite || c == ColorBlack
}

func (c Color) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: color %d", ErrMalformedInput, c)
	}
	return []byte(c.String()), nil
}

func (c *Color) UnmarshalText(b []byte) error {
	parsed, err := ParseColor(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func OppositeColor(c Color) Color {
	if c == ColorWhite {
		return ColorBlack
	}
	return ColorWhite
}

// ParseColor accepts both the short FEN form and the long opening form
func ParseColor(s string) (Color, error) {
	switch s {
	case "w", "white", "White":
		return ColorWhite, nil
	case "b", "black", "Black":
		return ColorBlack, nil
	default:
		return 0, fmt.Errorf("%w: unknown color %q", ErrMalformedInput, s)
	}
}

// Position is a deduplicated board state
type Position struct {
	ID    int64  `json:"id" validate:"gte=0"`
	State string `json:"state" validate:"required,max=100"`
	Turn  Color  `json:"turn" validate:"color"`
}

// Review holds the spaced-repetition state of a move
type Review struct {
	Difficulty   float64    `json:"difficulty" validate:"gte=0,lte=1"`
	LastReviewed *time.Time `json:"lastReviewed,omitempty"`
	IntervalDays float64    `json:"intervalDays" validate:"gt=0"`
}

func NewReview() Review {
	return Review{
		Difficulty:   DefaultDifficulty,
		IntervalDays: DefaultIntervalDays,
	}
}

// Interval converts the fractional day count to a duration. Intervals past
// the range of time.Duration (about 292 years) saturate.
func (r Review) Interval() time.Duration {
	d := r.IntervalDays * float64(24*time.Hour)
	if d >= float64(math.MaxInt64) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

// Due returns the time the move becomes due, zero if never reviewed
func (r Review) Due() time.Time {
	if r.LastReviewed == nil {
		return time.Time{}
	}
	return r.LastReviewed.Add(r.Interval())
}

// Move is a directed, opening-tagged edge between two positions.
// (SourceID, Notation) is the identity key; ID only orders siblings by creation.
type Move struct {
	ID       int64   `json:"id"`
	SourceID int64   `json:"sourceId" validate:"gte=0"`
	DestID   int64   `json:"destId" validate:"gte=0"`
	Notation string  `json:"notation" validate:"required,max=16"`
	Openings []int64 `json:"openings" validate:"min=1"`
	Color    Color   `json:"color" validate:"color"`
	Review
}

func (m Move) HasOpening(id int64) bool {
	return slices.Contains(m.Openings, id)
}

// Clone returns a copy that shares no slices or pointers with m
func (m Move) Clone() Move {
	c := m
	c.Openings = slices.Clone(m.Openings)
	if m.LastReviewed != nil {
		t := *m.LastReviewed
		c.LastReviewed = &t
	}
	return c
}

// Opening is a named, color-scoped set of edges
type Opening struct {
	ID    int64  `json:"id" validate:"gte=0"`
	Name  string `json:"name" validate:"required,max=100"`
	Color Color  `json:"color" validate:"color"`
}
