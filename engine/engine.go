// Package engine orchestrates check-in and referral transactions against the
// store. It is the only writer of balances, streaks, and referral lineage;
// everything else reads.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/buildr-network/pointsbot/models"
	"github.com/buildr-network/pointsbot/points"
	"github.com/buildr-network/pointsbot/store"
)

var (
	// ErrAccountNotFound is returned when an operation references an account
	// that was never created.
	ErrAccountNotFound = errors.New("engine: account not found")
	// ErrAlreadyCheckedIn is returned when a second check-in lands on the same
	// UTC day. Expected, user-facing, not a system failure.
	ErrAlreadyCheckedIn = errors.New("engine: already checked in today")
)

// conflictRetries is how many times a transaction is re-attempted after a
// version race before the conflict is surfaced to the transport layer.
const conflictRetries = 1

// Engine executes the engagement state machine. Stateless between calls; safe
// to run as multiple parallel instances against the same store.
type Engine struct {
	store  store.Store
	policy points.Policy
	log    *zap.SugaredLogger
}

// New creates an engine on top of the given store and reward policy.
func New(st store.Store, policy points.Policy, log *zap.SugaredLogger) *Engine {
	return &Engine{store: st, policy: policy, log: log}
}

// Policy exposes the reward policy for transport-layer rendering.
func (e *Engine) Policy() points.Policy {
	return e.policy
}

// CheckInResult reports the outcome of a successful daily check-in.
type CheckInResult struct {
	Streak  int `json:"streak"`
	Reward  int `json:"reward"`
	Balance int `json:"balance"`
}

// CheckIn claims the daily reward for an account. At most one check-in
// succeeds per UTC calendar day; the streak grows by one on every success and
// is never reset by a gap (matching the original product behavior).
func (e *Engine) CheckIn(ctx context.Context, telegramID string, now time.Time) (*CheckInResult, error) {
	if telegramID == "" {
		return nil, fmt.Errorf("%w: empty account id", ErrAccountNotFound)
	}

	var lastErr error
	for attempt := 0; attempt <= conflictRetries; attempt++ {
		result, err := e.checkInOnce(ctx, telegramID, now)
		if errors.Is(err, store.ErrConflict) {
			lastErr = err
			e.log.Debugw("check-in conflict, retrying", "telegram_id", telegramID, "attempt", attempt)
			continue
		}
		return result, err
	}
	return nil, lastErr
}

func (e *Engine) checkInOnce(ctx context.Context, telegramID string, now time.Time) (*CheckInResult, error) {
	acct, err := e.store.GetAccount(ctx, telegramID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	rec, err := e.store.GetCheckin(ctx, telegramID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		rec = &models.CheckinRecord{TelegramID: telegramID}
	}

	if !points.CanCheckIn(rec.LastCheckinAt, now) {
		return nil, ErrAlreadyCheckedIn
	}

	checkinAt := now
	rec.LastCheckinAt = &checkinAt
	rec.Streak++
	reward := e.policy.DailyReward(rec.Streak)
	acct.Balance += reward

	if err := e.store.Commit(ctx, store.Mutation{
		Accounts: []*models.Account{acct},
		Checkins: []*models.CheckinRecord{rec},
	}); err != nil {
		return nil, err
	}

	e.log.Infow("daily check-in",
		"telegram_id", telegramID,
		"streak", rec.Streak,
		"reward", reward,
		"balance", acct.Balance,
	)
	return &CheckInResult{Streak: rec.Streak, Reward: reward, Balance: acct.Balance}, nil
}

// CheckinStatus returns the stored check-in state for an account, a zero
// record when the account never checked in.
func (e *Engine) CheckinStatus(ctx context.Context, telegramID string) (*models.CheckinRecord, error) {
	rec, err := e.store.GetCheckin(ctx, telegramID)
	if errors.Is(err, store.ErrNotFound) {
		return &models.CheckinRecord{TelegramID: telegramID}, nil
	}
	return rec, err
}

// CreateAccountInput is the validated boundary struct for account creation.
type CreateAccountInput struct {
	TelegramID string
	Username   string
	ReferrerID string // optional; self-referrals and unknown IDs are dropped
	Now        time.Time
}

func (in CreateAccountInput) validate() error {
	if in.TelegramID == "" {
		return errors.New("engine: telegram id is required")
	}
	if in.Now.IsZero() {
		return errors.New("engine: creation time is required")
	}
	return nil
}

// CreateOrGetAccount returns the existing account for the ID, or creates one
// with the initial grant. A valid referrer is credited the referral bonus in
// the same transaction as the creation; self-referrals and unknown referrers
// silently downgrade to "no referrer". The second return value reports
// whether a referral bonus was applied by this call.
func (e *Engine) CreateOrGetAccount(ctx context.Context, in CreateAccountInput) (*models.Account, bool, error) {
	if err := in.validate(); err != nil {
		return nil, false, err
	}

	var lastErr error
	for attempt := 0; attempt <= conflictRetries; attempt++ {
		acct, bonusApplied, err := e.createOrGetOnce(ctx, in)
		if errors.Is(err, store.ErrConflict) {
			lastErr = err
			e.log.Debugw("account creation conflict, retrying", "telegram_id", in.TelegramID, "attempt", attempt)
			continue
		}
		return acct, bonusApplied, err
	}
	return nil, false, lastErr
}

func (e *Engine) createOrGetOnce(ctx context.Context, in CreateAccountInput) (*models.Account, bool, error) {
	existing, err := e.store.GetAccount(ctx, in.TelegramID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, err
	}

	referrerID := in.ReferrerID
	if referrerID == in.TelegramID {
		e.log.Debugw("self-referral dropped", "telegram_id", in.TelegramID)
		referrerID = ""
	}

	acct := &models.Account{
		TelegramID: in.TelegramID,
		Username:   in.Username,
		Balance:    e.policy.InitialGrant(),
		CreatedAt:  in.Now,
	}
	mut := store.Mutation{Accounts: []*models.Account{acct}}
	bonusApplied := false

	if referrerID != "" {
		referrer, err := e.store.GetAccount(ctx, referrerID)
		switch {
		case err == nil:
			bonus := e.policy.ReferralBonus()
			referrer.Balance += bonus
			acct.ReferredBy = &referrer.TelegramID
			mut.Accounts = append(mut.Accounts, referrer)
			mut.Bonuses = []*models.ReferralBonus{{
				ID:         uuid.NewString(),
				ReferrerID: referrer.TelegramID,
				ReferredID: in.TelegramID,
				Amount:     bonus,
				CreatedAt:  in.Now,
			}}
			bonusApplied = true
		case errors.Is(err, store.ErrNotFound):
			e.log.Debugw("unknown referrer dropped", "telegram_id", in.TelegramID, "referrer_id", referrerID)
		default:
			return nil, false, err
		}
	}

	if err := e.store.Commit(ctx, mut); err != nil {
		return nil, false, err
	}

	e.log.Infow("account created",
		"telegram_id", in.TelegramID,
		"referred_by", referrerID,
		"bonus_applied", bonusApplied,
	)
	return acct, bonusApplied, nil
}

// GetBalance loads an account by Telegram ID.
func (e *Engine) GetBalance(ctx context.Context, telegramID string) (*models.Account, error) {
	acct, err := e.store.GetAccount(ctx, telegramID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrAccountNotFound
	}
	return acct, err
}

// LeaderboardEntry is one row of the ranked balance projection.
type LeaderboardEntry struct {
	Position int    `json:"position"`
	Username string `json:"username"`
	Balance  int    `json:"balance"`
}

// Leaderboard returns the top n accounts by balance, ties broken by creation
// order. Read-only; safe to call concurrently with writes.
func (e *Engine) Leaderboard(ctx context.Context, n int) ([]LeaderboardEntry, error) {
	accounts, err := e.store.TopAccounts(ctx, n)
	if err != nil {
		return nil, err
	}
	entries := make([]LeaderboardEntry, len(accounts))
	for i, acct := range accounts {
		entries[i] = LeaderboardEntry{Position: i + 1, Username: acct.Username, Balance: acct.Balance}
	}
	return entries, nil
}

// ReferralStats summarizes an account's referral earnings.
type ReferralStats struct {
	Count       int64 `json:"count"`
	TotalEarned int   `json:"total_earned"`
}

// ReferralStats counts the accounts referred by telegramID and the points
// earned from them.
func (e *Engine) ReferralStats(ctx context.Context, telegramID string) (*ReferralStats, error) {
	count, err := e.store.CountReferrals(ctx, telegramID)
	if err != nil {
		return nil, err
	}
	return &ReferralStats{Count: count, TotalEarned: int(count) * e.policy.ReferralBonus()}, nil
}
