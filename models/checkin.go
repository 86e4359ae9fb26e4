package models

import "time"

// CheckinRecord tracks one account's daily check-in state. A row is created on
// the first successful check-in and updated on every later one, never deleted.
// Streak counts consecutive successful check-ins without a gap reset.
type CheckinRecord struct {
	ID            uint       `gorm:"primaryKey" json:"-"`
	TelegramID    string     `gorm:"size:32;uniqueIndex;not null" json:"telegram_id"`
	LastCheckinAt *time.Time `json:"last_checkin_at"`
	Streak        int        `gorm:"not null;default:0" json:"streak"`
	Version       uint       `gorm:"not null;default:0" json:"-"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}
