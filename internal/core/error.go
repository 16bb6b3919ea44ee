package core

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidState   = errors.New("invalid state")
	ErrNoFurtherMoves = fmt.Errorf("%w: no further moves", ErrInvalidState)
	ErrMalformedInput = errors.New("malformed input")
	ErrStoreFailure   = errors.New("store failure")
	ErrIntegrity      = errors.New("data integrity violation")
)

// Error codes
const (
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeInvalidState      = "INVALID_STATE"
	ErrCodeNoFurtherMoves    = "NO_FURTHER_MOVES"
	ErrCodeMalformedInput    = "MALFORMED_INPUT"
	ErrCodeStoreFailure      = "STORE_FAILURE"
	ErrCodeIntegrity         = "INTEGRITY_ERROR"
	ErrCodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	ErrCodeInvalidContent    = "INVALID_CONTENT_TYPE"
	ErrCodeInvalidRequest    = "INVALID_REQUEST"
	ErrCodeInternalError     = "INTERNAL_ERROR"
)

// Code maps an error onto its response code, most specific first
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoFurtherMoves):
		return ErrCodeNoFurtherMoves
	case errors.Is(err, ErrNotFound):
		return ErrCodeNotFound
	case errors.Is(err, ErrInvalidState):
		return ErrCodeInvalidState
	case errors.Is(err, ErrMalformedInput):
		return ErrCodeMalformedInput
	case errors.Is(err, ErrIntegrity):
		return ErrCodeIntegrity
	case errors.Is(err, ErrStoreFailure):
		return ErrCodeStoreFailure
	default:
		return ErrCodeInternalError
	}
}
