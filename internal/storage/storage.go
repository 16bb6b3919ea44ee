// Package storage defines the document store contract the repertoire graph runs on.
// Backends live in the sqlite and badger subpackages.
package storage

import (
	"context"
	"time"

	"repertoire/internal/core"
)

// Store is a transactional handle on one repertoire.
// Every multi-step graph mutation runs inside a single Update call; a returned
// error rolls the whole call back.
type Store interface {
	Update(ctx context.Context, fn func(Tx) error) error
	View(ctx context.Context, fn func(Tx) error) error

	// RecordReview appends to the review log. Backends may write it asynchronously.
	RecordReview(rec ReviewRecord) error
	// ReviewHistory returns the most recent review log entries, newest first
	ReviewHistory(ctx context.Context, limit int) ([]ReviewRecord, error)

	Stats(ctx context.Context) (Stats, error)
	IsHealthy() bool
	Close() error
}

// Tx exposes the point lookups, set queries and partial updates of the three
// collections. Lookups that miss return core.ErrNotFound.
type Tx interface {
	PositionByState(state string) (core.Position, error)
	PositionByID(id int64) (core.Position, error)
	// PositionsByIDs skips ids with no stored position instead of failing;
	// callers that need every id compare the result against the request
	PositionsByIDs(ids []int64) ([]core.Position, error)
	// MaxPositionID reports false when no position exists
	MaxPositionID() (int64, bool, error)
	InsertPosition(p core.Position) error
	DeletePosition(id int64) error

	Move(sourceID int64, notation string) (core.Move, error)
	// MovesFrom returns outbound edges in creation order
	MovesFrom(sourceID int64) ([]core.Move, error)
	CountMovesInto(destID int64) (int, error)
	// MovesByOpening returns the edges an opening owns in creation order
	MovesByOpening(openingID int64) ([]core.Move, error)
	// InsertMove assigns the creation sequence and returns the stored edge
	InsertMove(m core.Move) (core.Move, error)
	AddMoveOpening(sourceID int64, notation string, openingID int64) error
	RemoveMoveOpening(sourceID int64, notation string, openingID int64) error
	UpdateMoveReview(sourceID int64, notation string, r core.Review) error
	DeleteMove(sourceID int64, notation string) error

	OpeningByID(id int64) (core.Opening, error)
	OpeningByName(name string, color core.Color) (core.Opening, error)
	Openings() ([]core.Opening, error)
	MaxOpeningID() (int64, bool, error)
	InsertOpening(o core.Opening) error
	DeleteOpening(id int64) error
}

// ReviewRecord is one scored training answer
type ReviewRecord struct {
	SourceID     int64     `json:"sourceId"`
	Notation     string    `json:"notation"`
	Correct      bool      `json:"correct"`
	Difficulty   float64   `json:"difficulty"`
	IntervalDays float64   `json:"intervalDays"`
	ReviewedAt   time.Time `json:"reviewedAt"`
}

type Stats struct {
	Positions int `json:"positions"`
	Moves     int `json:"moves"`
	Openings  int `json:"openings"`
	Reviews   int `json:"reviews"`
}
