package points

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDailyReward(t *testing.T) {
	p := DefaultPolicy()

	cases := []struct {
		streak int
		want   int
	}{
		{1, 5},
		{2, 6},
		{5, 9},
		{6, 10},
		{7, 10},
		{100, 10},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, p.DailyReward(tc.streak), "streak %d", tc.streak)
	}
}

func TestDailyRewardMonotonic(t *testing.T) {
	p := DefaultPolicy()
	prev := 0
	for streak := 1; streak <= 50; streak++ {
		reward := p.DailyReward(streak)
		assert.GreaterOrEqual(t, reward, prev)
		assert.GreaterOrEqual(t, reward, p.BaseDailyPoints)
		assert.LessOrEqual(t, reward, p.MaxDailyPoints)
		prev = reward
	}
}

func TestCanCheckInFirstTime(t *testing.T) {
	assert.True(t, CanCheckIn(nil, time.Now()))
}

func TestCanCheckInDayBoundary(t *testing.T) {
	lateEvening := time.Date(2024, 3, 10, 23, 59, 0, 0, time.UTC)
	justAfterMidnight := time.Date(2024, 3, 11, 0, 1, 0, 0, time.UTC)
	sameDayLater := time.Date(2024, 3, 10, 23, 59, 30, 0, time.UTC)

	// Crossing midnight unblocks even two minutes apart
	assert.True(t, CanCheckIn(&lateEvening, justAfterMidnight))
	// Same UTC day blocks regardless of elapsed time
	assert.False(t, CanCheckIn(&lateEvening, sameDayLater))

	morning := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)
	evening := time.Date(2024, 3, 10, 22, 0, 0, 0, time.UTC)
	assert.False(t, CanCheckIn(&morning, evening))
}

func TestCanCheckInUsesUTC(t *testing.T) {
	// 2024-03-10 23:00 UTC expressed in a +02:00 zone is already 2024-03-11 local,
	// but the UTC day is what counts.
	plus2 := time.FixedZone("plus2", 2*3600)
	last := time.Date(2024, 3, 11, 1, 0, 0, 0, plus2) // 23:00 UTC on the 10th
	now := time.Date(2024, 3, 10, 22, 0, 0, 0, time.UTC)
	assert.False(t, CanCheckIn(&last, now))
}

func TestCanCheckInYearBoundary(t *testing.T) {
	nye := time.Date(2023, 12, 31, 23, 0, 0, 0, time.UTC)
	newYear := time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC)
	assert.True(t, CanCheckIn(&nye, newYear))
}

func TestFormatPoints(t *testing.T) {
	assert.Equal(t, "25 pBUILDR", FormatPoints(25))
}
