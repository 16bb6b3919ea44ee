// Package review implements the spaced-repetition schedule of repertoire moves.
//
// Each move carries a difficulty in [0,1], the time of its last review and an
// interval in days. A move is due once the interval has elapsed since the last
// review, or if it was never reviewed. Scoring a due move adapts both values:
//
//	overdue    = correct: clamp(elapsed/interval, 0, 2), 2 on a first review
//	             wrong:   1
//	difficulty = clamp(difficulty + overdue*(8-9*rating)/17, 0, 1)
//	weight     = 3 - 1.7*difficulty
//	interval   = correct: interval * (1 + (weight-1)*overdue)
//	             wrong:   min(interval, interval/weight²)
package review

import (
	"time"

	"repertoire/internal/core"
)

const (
	maxOverdue = 2.0
	day        = 24 * time.Hour
)

// NeedsReview reports whether a move is due at now
func NeedsReview(r core.Review, now time.Time) bool {
	if r.LastReviewed == nil {
		return true
	}
	return !now.Before(r.Due())
}

// Update scores one answer. It returns false and leaves r untouched when the
// move is not due, so a move counts at most once per cycle.
func Update(r core.Review, correct bool, now time.Time) (core.Review, bool) {
	if !NeedsReview(r, now) {
		return r, false
	}

	rating := 0.0
	if correct {
		rating = 1.0
	}

	overdue := 1.0
	if correct {
		overdue = maxOverdue
		if r.LastReviewed != nil {
			elapsed := float64(now.Sub(*r.LastReviewed)) / float64(day)
			overdue = clamp(elapsed/r.IntervalDays, 0, maxOverdue)
		}
	}

	difficulty := clamp(r.Difficulty+overdue*(1.0/17.0)*(8-9*rating), 0, 1)
	weight := 3 - 1.7*difficulty

	interval := r.IntervalDays
	if correct {
		interval *= 1 + (weight-1)*overdue
	} else {
		interval = min(interval, interval/(weight*weight))
	}

	reviewed := now
	return core.Review{
		Difficulty:   difficulty,
		LastReviewed: &reviewed,
		IntervalDays: interval,
	}, true
}

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(v, hi))
}
