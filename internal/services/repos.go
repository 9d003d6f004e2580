package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-modbot/internal/domain"
	"github.com/tbourn/go-modbot/internal/repo"
)

// SettingsRepo defines the persistence contract of SettingsService.
type SettingsRepo interface {
	// GetOrCreateChatSettings returns the stored row, inserting defaults first.
	GetOrCreateChatSettings(ctx context.Context, db *gorm.DB, chatID int64) (*domain.ChatSettings, error)
	SetLinksAllowed(ctx context.Context, db *gorm.DB, chatID int64, allowed bool) (*domain.ChatSettings, error)
	SetSpamProtection(ctx context.Context, db *gorm.DB, chatID int64, enabled bool) (*domain.ChatSettings, error)
	ToggleLinksAllowed(ctx context.Context, db *gorm.DB, chatID int64) (*domain.ChatSettings, error)
	ToggleSpamProtection(ctx context.Context, db *gorm.DB, chatID int64) (*domain.ChatSettings, error)
}

// WarningRepo defines the persistence contract of WarningService.
type WarningRepo interface {
	// AddWarning increments and returns the count, retrying optimistic conflicts.
	AddWarning(ctx context.Context, db *gorm.DB, chatID, userID int64, now time.Time) (int, error)
	GetWarnings(ctx context.Context, db *gorm.DB, chatID, userID int64) (int, error)
	GetWarning(ctx context.Context, db *gorm.DB, chatID, userID int64) (*domain.WarningRecord, error)
	ListStaleWarnings(ctx context.Context, db *gorm.DB, cutoff time.Time, limit int) ([]domain.WarningRecord, error)
	// DecayWarning lowers rec by steps; repo.ErrConflict on a lost race.
	DecayWarning(ctx context.Context, db *gorm.DB, rec *domain.WarningRecord, steps int, now time.Time) error
}

// StatsRepo exposes the aggregate queries used by owner statistics.
type StatsRepo interface {
	WarningTotals(ctx context.Context, db *gorm.DB) (users, total int64, err error)
	ChatSettingsStats(ctx context.Context, db *gorm.DB) (repo.SettingsStats, error)
}

// RepoShim adapts the repo package's free functions to the service
// repository interfaces.
type RepoShim struct{}

var (
	_ SettingsRepo = RepoShim{}
	_ WarningRepo  = RepoShim{}
	_ StatsRepo    = RepoShim{}
)

// GetOrCreateChatSettings proxies repo.GetOrCreateChatSettings.
func (RepoShim) GetOrCreateChatSettings(ctx context.Context, db *gorm.DB, chatID int64) (*domain.ChatSettings, error) {
	return repo.GetOrCreateChatSettings(ctx, db, chatID)
}

// SetLinksAllowed proxies repo.SetLinksAllowed.
func (RepoShim) SetLinksAllowed(ctx context.Context, db *gorm.DB, chatID int64, allowed bool) (*domain.ChatSettings, error) {
	return repo.SetLinksAllowed(ctx, db, chatID, allowed)
}

// SetSpamProtection proxies repo.SetSpamProtection.
func (RepoShim) SetSpamProtection(ctx context.Context, db *gorm.DB, chatID int64, enabled bool) (*domain.ChatSettings, error) {
	return repo.SetSpamProtection(ctx, db, chatID, enabled)
}

// ToggleLinksAllowed proxies repo.ToggleLinksAllowed.
func (RepoShim) ToggleLinksAllowed(ctx context.Context, db *gorm.DB, chatID int64) (*domain.ChatSettings, error) {
	return repo.ToggleLinksAllowed(ctx, db, chatID)
}

// ToggleSpamProtection proxies repo.ToggleSpamProtection.
func (RepoShim) ToggleSpamProtection(ctx context.Context, db *gorm.DB, chatID int64) (*domain.ChatSettings, error) {
	return repo.ToggleSpamProtection(ctx, db, chatID)
}

// AddWarning proxies repo.AddWarning.
func (RepoShim) AddWarning(ctx context.Context, db *gorm.DB, chatID, userID int64, now time.Time) (int, error) {
	return repo.AddWarning(ctx, db, chatID, userID, now)
}

// GetWarnings proxies repo.GetWarnings.
func (RepoShim) GetWarnings(ctx context.Context, db *gorm.DB, chatID, userID int64) (int, error) {
	return repo.GetWarnings(ctx, db, chatID, userID)
}

// GetWarning proxies repo.GetWarning.
func (RepoShim) GetWarning(ctx context.Context, db *gorm.DB, chatID, userID int64) (*domain.WarningRecord, error) {
	return repo.GetWarning(ctx, db, chatID, userID)
}

// ListStaleWarnings proxies repo.ListStaleWarnings.
func (RepoShim) ListStaleWarnings(ctx context.Context, db *gorm.DB, cutoff time.Time, limit int) ([]domain.WarningRecord, error) {
	return repo.ListStaleWarnings(ctx, db, cutoff, limit)
}

// DecayWarning proxies repo.DecayWarning.
func (RepoShim) DecayWarning(ctx context.Context, db *gorm.DB, rec *domain.WarningRecord, steps int, now time.Time) error {
	return repo.DecayWarning(ctx, db, rec, steps, now)
}

// WarningTotals proxies repo.WarningTotals.
func (RepoShim) WarningTotals(ctx context.Context, db *gorm.DB) (int64, int64, error) {
	return repo.WarningTotals(ctx, db)
}

// ChatSettingsStats proxies repo.ChatSettingsStats.
func (RepoShim) ChatSettingsStats(ctx context.Context, db *gorm.DB) (repo.SettingsStats, error) {
	return repo.ChatSettingsStats(ctx, db)
}
