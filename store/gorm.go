package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/buildr-network/pointsbot/models"
)

// GormStore persists the ledger in MySQL through GORM. Optimistic concurrency:
// updates are guarded by the row's version column so two writers racing on the
// same account cannot both win.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps an initialized gorm DB.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) GetAccount(ctx context.Context, telegramID string) (*models.Account, error) {
	var acct models.Account
	if err := s.db.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&acct).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load account %s: %w", telegramID, err)
	}
	return &acct, nil
}

func (s *GormStore) GetCheckin(ctx context.Context, telegramID string) (*models.CheckinRecord, error) {
	var rec models.CheckinRecord
	if err := s.db.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load checkin %s: %w", telegramID, err)
	}
	return &rec, nil
}

func (s *GormStore) TopAccounts(ctx context.Context, n int) ([]models.Account, error) {
	var accounts []models.Account
	if err := s.db.WithContext(ctx).
		Order("balance DESC, id ASC").
		Limit(n).
		Find(&accounts).Error; err != nil {
		return nil, fmt.Errorf("rank accounts: %w", err)
	}
	return accounts, nil
}

func (s *GormStore) CountReferrals(ctx context.Context, telegramID string) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("referred_by = ?", telegramID).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count referrals for %s: %w", telegramID, err)
	}
	return count, nil
}

// Commit applies every record of the mutation in one transaction. Accounts are
// processed in lexicographic Telegram ID order so multi-account commits take
// row locks in a fixed order.
func (s *GormStore) Commit(ctx context.Context, mut Mutation) error {
	accounts := make([]*models.Account, len(mut.Accounts))
	copy(accounts, mut.Accounts)
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].TelegramID < accounts[j].TelegramID })

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, acct := range accounts {
			if acct.ID == 0 {
				acct.Version = 1
				if err := tx.Create(acct).Error; err != nil {
					if errors.Is(err, gorm.ErrDuplicatedKey) {
						return ErrConflict
					}
					return fmt.Errorf("insert account %s: %w", acct.TelegramID, err)
				}
				continue
			}
			res := tx.Model(&models.Account{}).
				Where("id = ? AND version = ?", acct.ID, acct.Version).
				Updates(map[string]interface{}{
					"balance":    acct.Balance,
					"version":    acct.Version + 1,
					"updated_at": time.Now(),
				})
			if res.Error != nil {
				return fmt.Errorf("update account %s: %w", acct.TelegramID, res.Error)
			}
			if res.RowsAffected == 0 {
				return ErrConflict
			}
			acct.Version++
		}

		for _, rec := range mut.Checkins {
			if rec.ID == 0 {
				rec.Version = 1
				if err := tx.Create(rec).Error; err != nil {
					if errors.Is(err, gorm.ErrDuplicatedKey) {
						return ErrConflict
					}
					return fmt.Errorf("insert checkin %s: %w", rec.TelegramID, err)
				}
				continue
			}
			res := tx.Model(&models.CheckinRecord{}).
				Where("id = ? AND version = ?", rec.ID, rec.Version).
				Updates(map[string]interface{}{
					"last_checkin_at": rec.LastCheckinAt,
					"streak":          rec.Streak,
					"version":         rec.Version + 1,
					"updated_at":      time.Now(),
				})
			if res.Error != nil {
				return fmt.Errorf("update checkin %s: %w", rec.TelegramID, res.Error)
			}
			if res.RowsAffected == 0 {
				return ErrConflict
			}
			rec.Version++
		}

		for _, bonus := range mut.Bonuses {
			if err := tx.Create(bonus).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return ErrConflict
				}
				return fmt.Errorf("insert referral bonus %s: %w", bonus.ID, err)
			}
		}
		return nil
	})
	return err
}

// RecordIntroduction upserts a group-activity row; concurrent first posts
// resolve to a single row via the unique index.
func (s *GormStore) RecordIntroduction(ctx context.Context, telegramID string, topicID int, at time.Time) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.GroupActivity{TelegramID: telegramID, TopicID: topicID, FirstMessageAt: at}).Error
	if err != nil {
		return fmt.Errorf("record introduction %s: %w", telegramID, err)
	}
	return nil
}

func (s *GormStore) HasIntroduction(ctx context.Context, telegramID string, topicID int) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.GroupActivity{}).
		Where("telegram_id = ? AND topic_id = ?", telegramID, topicID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("check introduction %s: %w", telegramID, err)
	}
	return count > 0, nil
}
