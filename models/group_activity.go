package models

import "time"

// GroupActivity marks that a user has posted in a tracked group topic. Used by
// the bot to gate reward commands behind an introduction message.
type GroupActivity struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	TelegramID     string    `gorm:"size:32;uniqueIndex:idx_group_activity_user_topic;not null" json:"telegram_id"`
	TopicID        int       `gorm:"uniqueIndex:idx_group_activity_user_topic;not null" json:"topic_id"`
	FirstMessageAt time.Time `json:"first_message_at"`
}
