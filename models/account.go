package models

import (
	"time"

	"gorm.io/gorm"
)

// Account is the points ledger entry for one Telegram identity. Balance only
// ever moves through the engagement engine; Version backs the optimistic
// concurrency check in the store layer.
type Account struct {
	ID         uint      `gorm:"primaryKey" json:"-"`
	TelegramID string    `gorm:"size:32;uniqueIndex;not null" json:"telegram_id"`
	Username   string    `gorm:"size:64" json:"username"`
	Balance    int       `gorm:"not null;default:0" json:"balance"`
	ReferredBy *string   `gorm:"size:32;index" json:"referred_by"`
	Version    uint      `gorm:"not null;default:0" json:"-"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// BeforeCreate hook ensures timestamps are set even when not provided.
func (a *Account) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	return nil
}

// BeforeUpdate ensures the UpdatedAt timestamp is refreshed.
func (a *Account) BeforeUpdate(tx *gorm.DB) error {
	a.UpdatedAt = time.Now()
	return nil
}
