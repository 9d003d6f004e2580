// Package repo – chat settings persistence.
//
// Functions:
//
//   - GetOrCreateChatSettings(ctx, db, chatID) -> *domain.ChatSettings, error
//     Returns the stored row, inserting the defaults first when missing.
//
//   - SetLinksAllowed(ctx, db, chatID, allowed) -> *domain.ChatSettings, error
//   - SetSpamProtection(ctx, db, chatID, enabled) -> *domain.ChatSettings, error
//     Write one toggle inside a transaction and return the updated row.
//
//   - ToggleLinksAllowed / ToggleSpamProtection(ctx, db, chatID)
//     Flip a toggle in the database (NOT column) and return the updated row.
//
// The insert uses ON CONFLICT DO NOTHING so concurrent first reads of the
// same chat cannot fail on the primary key.
package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-modbot/internal/domain"
)

// Settings columns that may be written through the toggle helpers.
const (
	colLinksAllowed   = "links_allowed"
	colSpamProtection = "spam_protection_enabled"
)

// GetOrCreateChatSettings returns the settings row for chatID, creating it
// with domain defaults when absent.
func GetOrCreateChatSettings(ctx context.Context, db *gorm.DB, chatID int64) (*domain.ChatSettings, error) {
	tx := db.WithContext(ctx)
	if err := ensureSettings(tx, chatID); err != nil {
		return nil, err
	}
	return loadSettings(tx, chatID)
}

// SetLinksAllowed stores the links toggle for chatID.
func SetLinksAllowed(ctx context.Context, db *gorm.DB, chatID int64, allowed bool) (*domain.ChatSettings, error) {
	return setColumn(ctx, db, chatID, colLinksAllowed, allowed)
}

// SetSpamProtection stores the spam protection toggle for chatID.
func SetSpamProtection(ctx context.Context, db *gorm.DB, chatID int64, enabled bool) (*domain.ChatSettings, error) {
	return setColumn(ctx, db, chatID, colSpamProtection, enabled)
}

// ToggleLinksAllowed flips the links toggle for chatID.
func ToggleLinksAllowed(ctx context.Context, db *gorm.DB, chatID int64) (*domain.ChatSettings, error) {
	return setColumn(ctx, db, chatID, colLinksAllowed, gorm.Expr("NOT "+colLinksAllowed))
}

// ToggleSpamProtection flips the spam protection toggle for chatID.
func ToggleSpamProtection(ctx context.Context, db *gorm.DB, chatID int64) (*domain.ChatSettings, error) {
	return setColumn(ctx, db, chatID, colSpamProtection, gorm.Expr("NOT "+colSpamProtection))
}

func setColumn(ctx context.Context, db *gorm.DB, chatID int64, column string, value any) (*domain.ChatSettings, error) {
	var out *domain.ChatSettings
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureSettings(tx, chatID); err != nil {
			return err
		}
		if err := tx.Model(&domain.ChatSettings{}).
			Where("chat_id = ?", chatID).
			Update(column, value).Error; err != nil {
			return err
		}
		s, err := loadSettings(tx, chatID)
		if err != nil {
			return err
		}
		out = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func ensureSettings(tx *gorm.DB, chatID int64) error {
	s := domain.DefaultChatSettings(chatID)
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&s).Error
}

func loadSettings(tx *gorm.DB, chatID int64) (*domain.ChatSettings, error) {
	var s domain.ChatSettings
	if err := tx.Where("chat_id = ?", chatID).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}
