// Package points holds the pure reward arithmetic. Nothing here touches
// storage or the clock; callers pass state in and get numbers back.
package points

import (
	"fmt"
	"time"
)

// Default reward values, overridable through configuration.
const (
	DefaultInitialGrant  = 10
	DefaultReferralBonus = 25
	DefaultBaseDaily     = 5
	DefaultMaxDaily      = 10
)

// Policy computes reward amounts from engagement state.
type Policy struct {
	InitialGrantPoints  int
	ReferralBonusPoints int
	BaseDailyPoints     int
	MaxDailyPoints      int
}

// DefaultPolicy returns a policy with the stock reward values.
func DefaultPolicy() Policy {
	return Policy{
		InitialGrantPoints:  DefaultInitialGrant,
		ReferralBonusPoints: DefaultReferralBonus,
		BaseDailyPoints:     DefaultBaseDaily,
		MaxDailyPoints:      DefaultMaxDaily,
	}
}

// DailyReward returns the points earned for a check-in at the given streak:
// base + (streak-1), clamped to [base, max].
func (p Policy) DailyReward(streak int) int {
	reward := p.BaseDailyPoints + (streak - 1)
	if reward > p.MaxDailyPoints {
		return p.MaxDailyPoints
	}
	if reward < p.BaseDailyPoints {
		return p.BaseDailyPoints
	}
	return reward
}

// ReferralBonus is the fixed credit paid to a referrer per invited account.
func (p Policy) ReferralBonus() int {
	return p.ReferralBonusPoints
}

// InitialGrant is the fixed credit paid at account creation.
func (p Policy) InitialGrant() int {
	return p.InitialGrantPoints
}

// CanCheckIn reports whether a check-in is allowed at now given the last
// check-in time. The gate is a UTC calendar-day boundary, not a rolling 24h
// window: 23:59 then 00:01 the next day is allowed, twice within the same UTC
// day is not.
func CanCheckIn(lastCheckinAt *time.Time, now time.Time) bool {
	if lastCheckinAt == nil {
		return true
	}
	return !sameUTCDay(*lastCheckinAt, now)
}

func sameUTCDay(a, b time.Time) bool {
	a, b = a.UTC(), b.UTC()
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

// FormatPoints renders a point amount for user-facing bot messages.
func FormatPoints(points int) string {
	return fmt.Sprintf("%d pBUILDR", points)
}
