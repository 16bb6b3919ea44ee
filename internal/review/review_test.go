package review

import (
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"repertoire/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

func days(d float64) time.Duration {
	return core.Review{IntervalDays: d}.Interval()
}

func TestNeedsReview(t *testing.T) {
	r := core.NewReview()
	assert.True(t, NeedsReview(r, t0), "never reviewed")

	last := t0
	r.LastReviewed = &last
	assert.False(t, NeedsReview(r, t0.Add(days(2.9))))
	assert.True(t, NeedsReview(r, t0.Add(days(3))))
	assert.True(t, NeedsReview(r, t0.Add(days(10))))
}

func TestUpdateFirstCorrectReview(t *testing.T) {
	next, ok := Update(core.NewReview(), true, t0)
	require.True(t, ok)

	wantDifficulty := 0.3 - 2.0/17.0
	weight := 3 - 1.7*wantDifficulty
	assert.InDelta(t, wantDifficulty, next.Difficulty, 1e-12)
	assert.InDelta(t, 3*(1+(weight-1)*2), next.IntervalDays, 1e-12)
	assert.InDelta(t, 13.14, next.IntervalDays, 1e-9)
	require.NotNil(t, next.LastReviewed)
	assert.Equal(t, t0, *next.LastReviewed)
}

func TestUpdateFirstWrongReview(t *testing.T) {
	next, ok := Update(core.NewReview(), false, t0)
	require.True(t, ok)

	wantDifficulty := 0.3 + 8.0/17.0
	weight := 3 - 1.7*wantDifficulty
	assert.InDelta(t, wantDifficulty, next.Difficulty, 1e-12)
	assert.InDelta(t, 3/(weight*weight), next.IntervalDays, 1e-12)
	assert.Less(t, next.IntervalDays, 3.0)
}

func TestUpdateOverdueIsCapped(t *testing.T) {
	last := t0
	r := core.Review{Difficulty: 0.5, LastReviewed: &last, IntervalDays: 2}

	onTime, ok := Update(r, true, t0.Add(days(2)))
	require.True(t, ok)
	late, ok := Update(r, true, t0.Add(days(4)))
	require.True(t, ok)
	veryLate, ok := Update(r, true, t0.Add(days(40)))
	require.True(t, ok)

	// overdue 1: d' = 0.5 - 1/17
	d1 := 0.5 - 1.0/17.0
	assert.InDelta(t, d1, onTime.Difficulty, 1e-12)
	assert.InDelta(t, 2*(1+(2-1.7*d1)*1), onTime.IntervalDays, 1e-12)

	// overdue is clamped at 2
	assert.InDelta(t, late.Difficulty, veryLate.Difficulty, 1e-12)
	assert.InDelta(t, late.IntervalDays, veryLate.IntervalDays, 1e-12)
	assert.Greater(t, late.IntervalDays, onTime.IntervalDays)
}

func TestUpdateRejectsMoveNotDue(t *testing.T) {
	first, ok := Update(core.NewReview(), true, t0)
	require.True(t, ok)

	again, ok := Update(first, true, t0.Add(time.Minute))
	assert.False(t, ok)
	assert.Equal(t, first, again)

	again, ok = Update(first, false, t0.Add(time.Minute))
	assert.False(t, ok)
	assert.Equal(t, first, again)
}

func TestScenarioCorrectReviewDefersNextReview(t *testing.T) {
	r := core.NewReview()
	require.Equal(t, 3.0, r.IntervalDays)
	require.True(t, NeedsReview(r, t0))

	next, ok := Update(r, true, t0)
	require.True(t, ok)
	assert.Equal(t, t0, *next.LastReviewed)
	assert.False(t, NeedsReview(next, t0))
	assert.False(t, NeedsReview(next, t0.Add(days(next.IntervalDays)-time.Second)))
	assert.True(t, NeedsReview(next, t0.Add(days(next.IntervalDays))))
}

func TestHugeIntervalIsNotDueImmediately(t *testing.T) {
	last := t0
	r := core.Review{Difficulty: 0.1, LastReviewed: &last, IntervalDays: 200000}

	assert.Equal(t, time.Duration(math.MaxInt64), r.Interval())
	assert.True(t, r.Due().After(t0))
	assert.False(t, NeedsReview(r, t0.Add(time.Minute)))

	next, ok := Update(r, true, t0.Add(time.Minute))
	assert.False(t, ok)
	assert.Equal(t, r, next)

	assert.True(t, NeedsReview(r, t0.Add(r.Interval())))
}

func TestConsecutiveCorrectReviewsNeverShrinkInterval(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))

	for trial := 0; trial < 200; trial++ {
		r := core.Review{Difficulty: rng.Float64(), IntervalDays: 0.5 + rng.Float64()*30}
		now := t0
		for step := 0; step < 8; step++ {
			next, ok := Update(r, true, now)
			require.True(t, ok)
			assert.GreaterOrEqual(t, next.IntervalDays, r.IntervalDays)
			assert.GreaterOrEqual(t, next.Difficulty, 0.0)
			assert.LessOrEqual(t, next.Difficulty, 1.0)

			r = next
			now = now.Add(days(r.IntervalDays * (1 + rng.Float64()*2)))
		}
	}
}

func TestWrongThenCorrectStaysInBounds(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))

	for trial := 0; trial < 200; trial++ {
		r := core.Review{Difficulty: rng.Float64(), IntervalDays: 0.1 + rng.Float64()*60}
		now := t0

		wrong, ok := Update(r, false, now)
		require.True(t, ok)
		assert.LessOrEqual(t, wrong.IntervalDays, r.IntervalDays)
		assert.Greater(t, wrong.IntervalDays, 0.0)

		now = now.Add(days(wrong.IntervalDays))
		right, ok := Update(wrong, true, now)
		require.True(t, ok)

		for _, d := range []float64{wrong.Difficulty, right.Difficulty} {
			assert.GreaterOrEqual(t, d, 0.0)
			assert.LessOrEqual(t, d, 1.0)
		}
	}
}
