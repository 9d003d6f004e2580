// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate queries used by the
// owner statistics command and the ops API. Each function is context-aware
// and safe to call from services or handlers.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-modbot/internal/domain"
)

// SettingsStats summarizes stored chat settings.
type SettingsStats struct {
	Chats           int64 `json:"chats"`
	SpamProtected   int64 `json:"spam_protected"`
	LinksRestricted int64 `json:"links_restricted"`
}

// WarningTotals returns how many (chat,user) rows currently carry warnings
// and the sum of their counts.
//
// Return values:
//   - users: rows with a positive count
//   - total: sum of counts over those rows
//   - err:   database error, if any
func WarningTotals(ctx context.Context, db *gorm.DB) (users int64, total int64, err error) {
	var row struct {
		Users int64
		Total int64
	}
	err = db.WithContext(ctx).
		Model(&domain.WarningRecord{}).
		Select("COUNT(*) AS users, COALESCE(SUM(count), 0) AS total").
		Where("count > 0").
		Scan(&row).Error
	return row.Users, row.Total, err
}

// ChatSettingsStats counts stored chats and how many deviate from defaults.
func ChatSettingsStats(ctx context.Context, db *gorm.DB) (SettingsStats, error) {
	var out SettingsStats
	q := db.WithContext(ctx).Model(&domain.ChatSettings{})

	if err := q.Count(&out.Chats).Error; err != nil {
		return out, err
	}
	if out.Chats == 0 {
		return out, nil
	}
	if err := db.WithContext(ctx).Model(&domain.ChatSettings{}).
		Where("spam_protection_enabled = ?", true).
		Count(&out.SpamProtected).Error; err != nil {
		return out, err
	}
	if err := db.WithContext(ctx).Model(&domain.ChatSettings{}).
		Where("links_allowed = ?", false).
		Count(&out.LinksRestricted).Error; err != nil {
		return out, err
	}
	return out, nil
}
