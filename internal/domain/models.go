// Package domain defines the persistence models and shared value types of the
// moderation bot. ChatSettings and WarningRecord are mapped with GORM; the
// complaint types (see complaint.go) live only in memory.
package domain

import "time"

// ChatSettings holds the per-chat feature toggles.
//
// Fields:
//   - ChatID: transport chat identifier, primary key.
//   - SpamProtectionEnabled: flood detection runs only when true (default off).
//   - LinksAllowed: when false, messages carrying links are deleted (default on).
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
type ChatSettings struct {
	ChatID                int64     `json:"chat_id"                 gorm:"primaryKey;autoIncrement:false"`
	SpamProtectionEnabled bool      `json:"spam_protection_enabled" gorm:"not null"`
	LinksAllowed          bool      `json:"links_allowed"           gorm:"not null"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// TableName returns the database table name for ChatSettings.
func (ChatSettings) TableName() string { return "chat_settings" }

// DefaultChatSettings returns the settings a chat starts with.
func DefaultChatSettings(chatID int64) ChatSettings {
	return ChatSettings{ChatID: chatID, SpamProtectionEnabled: false, LinksAllowed: true}
}

// WarningRecord counts moderation warnings for one user in one chat.
//
// Fields:
//   - ChatID / UserID: composite unique key.
//   - Count: current number of warnings (never negative).
//   - Version: optimistic concurrency token, bumped on every write.
//   - LastWarnedAt: time of the most recent warning or decay step; the
//     cleanup pass forgives one warning per elapsed decay window.
type WarningRecord struct {
	ID           uint      `json:"-"              gorm:"primaryKey"`
	ChatID       int64     `json:"chat_id"        gorm:"not null;uniqueIndex:ux_warning_chat_user,priority:1"`
	UserID       int64     `json:"user_id"        gorm:"not null;uniqueIndex:ux_warning_chat_user,priority:2"`
	Count        int       `json:"count"          gorm:"not null;default:0"`
	Version      int64     `json:"-"              gorm:"not null;default:0"`
	LastWarnedAt time.Time `json:"last_warned_at" gorm:"not null;index"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName returns the database table name for WarningRecord.
func (WarningRecord) TableName() string { return "warnings" }
