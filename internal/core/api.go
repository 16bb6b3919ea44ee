package core

import "time"

// Request types

type CreateOpeningRequest struct {
	Name  string `json:"name" validate:"required,max=100"`
	Color string `json:"color" validate:"required,oneof=white black w b"`
}

type StartExplorerRequest struct {
	OpeningID *int64 `json:"openingId,omitempty" validate:"omitempty,gte=0"`
}

// SelectOpeningRequest clears the active opening when OpeningID is omitted
type SelectOpeningRequest struct {
	OpeningID *int64 `json:"openingId" validate:"omitempty,gte=0"`
}

type MoveRequest struct {
	Move string `json:"move" validate:"required,min=4,max=5"` // UCI coordinate move
}

type StartTrainingRequest struct {
	OpeningID *int64 `json:"openingId" validate:"required,gte=0"`
	Mode      string `json:"mode" validate:"required,oneof=random full"`
}

// PerformanceRequest scores the current card either by the move played or by an explicit result
type PerformanceRequest struct {
	Result string `json:"result,omitempty" validate:"required_without=Move,omitempty,oneof=correct wrong"`
	Move   string `json:"move,omitempty" validate:"required_without=Result,omitempty,min=4,max=5"`
}

// Response types

type OpeningResponse struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"` // "white" or "black"
}

type OpeningsResponse struct {
	White []OpeningResponse `json:"white"`
	Black []OpeningResponse `json:"black"`
}

type PositionResponse struct {
	ID   int64  `json:"id"`
	FEN  string `json:"fen"`
	Turn string `json:"turn"` // "w" or "b"
}

type MoveResponse struct {
	Move         string     `json:"move"`
	SAN          string     `json:"san,omitempty"`
	SourceID     int64      `json:"sourceId"`
	DestID       int64      `json:"destId"`
	Color        string     `json:"color"`
	Openings     []int64    `json:"openings"`
	Difficulty   float64    `json:"difficulty"`
	IntervalDays float64    `json:"intervalDays"`
	LastReviewed *time.Time `json:"lastReviewed,omitempty"`
}

type ExplorerResponse struct {
	SessionID string           `json:"sessionId"`
	Opening   *OpeningResponse `json:"opening,omitempty"`
	Position  PositionResponse `json:"position"`
	LastMove  *MoveResponse    `json:"lastMove,omitempty"`
	Major     []MoveResponse   `json:"major"`
	Minor     []MoveResponse   `json:"minor"`
	Line      []string         `json:"line"`
	Cursor    int              `json:"cursor"`
	Length    int              `json:"length"`
}

type CardResponse struct {
	SessionID string            `json:"sessionId"`
	Mode      string            `json:"mode"`
	Opening   OpeningResponse   `json:"opening"`
	Finished  bool              `json:"finished"`
	Position  *PositionResponse `json:"position,omitempty"`
	Move      *MoveResponse     `json:"move,omitempty"`
}

type PerformanceResponse struct {
	SessionID string       `json:"sessionId"`
	Correct   bool         `json:"correct"`
	Updated   bool         `json:"updated"` // false when the move was not due
	Expected  MoveResponse `json:"expected"`
}

type BoardResponse struct {
	FEN   string `json:"fen"`
	Board string `json:"board"` // ASCII board
}

type HealthResponse struct {
	Status    string `json:"status"`
	Time      int64  `json:"time"`
	Storage   string `json:"storage"`
	Sessions  int    `json:"sessions"`
	Positions int    `json:"positions"`
	Moves     int    `json:"moves"`
	Openings  int    `json:"openings"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}
