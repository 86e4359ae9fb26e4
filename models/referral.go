package models

import "time"

// ReferralBonus records the one-time credit paid to a referrer when a referred
// account is created. The unique index on ReferredID guarantees at most one
// bonus per referred account at the schema level.
type ReferralBonus struct {
	ID         string    `gorm:"size:36;primaryKey" json:"id"`
	ReferrerID string    `gorm:"size:32;index;not null" json:"referrer_id"`
	ReferredID string    `gorm:"size:32;uniqueIndex;not null" json:"referred_id"`
	Amount     int       `gorm:"not null" json:"amount"`
	CreatedAt  time.Time `json:"created_at"`
}
