// Package store is the durable mapping behind the engagement engine. All
// writes go through Commit, which applies every record in one transaction
// with a compare-and-swap on per-row version counters.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/buildr-network/pointsbot/models"
)

var (
	// ErrNotFound is returned when no record exists for the given key.
	ErrNotFound = errors.New("store: record not found")
	// ErrConflict is returned when a commit loses a version race. Callers may
	// re-read and retry.
	ErrConflict = errors.New("store: concurrent modification")
)

// Mutation is the unit of atomic change: either every record is applied or
// none. Records with a zero row ID are inserted, the rest are updated only if
// their Version still matches the stored row.
type Mutation struct {
	Accounts []*models.Account
	Checkins []*models.CheckinRecord
	Bonuses  []*models.ReferralBonus
}

// Store is the narrow persistence interface the engine operates against.
type Store interface {
	// GetAccount loads an account by Telegram ID, ErrNotFound when absent.
	GetAccount(ctx context.Context, telegramID string) (*models.Account, error)
	// GetCheckin loads a check-in record by Telegram ID, ErrNotFound when absent.
	GetCheckin(ctx context.Context, telegramID string) (*models.CheckinRecord, error)
	// TopAccounts returns up to n accounts ordered by balance descending,
	// ties broken by creation order.
	TopAccounts(ctx context.Context, n int) ([]models.Account, error)
	// CountReferrals counts accounts whose ReferredBy equals telegramID.
	CountReferrals(ctx context.Context, telegramID string) (int64, error)
	// Commit atomically applies a mutation, ErrConflict on any version race
	// or duplicate insert.
	Commit(ctx context.Context, mut Mutation) error

	// RecordIntroduction marks that a user posted in a tracked group topic.
	// Idempotent; the first timestamp wins.
	RecordIntroduction(ctx context.Context, telegramID string, topicID int, at time.Time) error
	// HasIntroduction reports whether an introduction was recorded.
	HasIntroduction(ctx context.Context, telegramID string, topicID int) (bool, error)
}
