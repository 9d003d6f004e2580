// Package repo – moderation warnings.
//
// Warning rows are written with optimistic concurrency: every update is
// conditioned on the version that was read and bumps it. A lost race
// surfaces as ErrConflict from the single-attempt helpers; AddWarning retries
// on its own with a linear backoff before giving up.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-modbot/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrConflict is returned when an optimistic update lost to a concurrent
// writer (after retries, for AddWarning).
var ErrConflict = errors.New("concurrent update conflict")

// AddWarningAttempts and AddWarningBackoff bound the AddWarning retry loop;
// attempt n sleeps n*AddWarningBackoff before retrying.
var (
	AddWarningAttempts = 5
	AddWarningBackoff  = 50 * time.Millisecond
)

// AddWarning increments the warning count of (chatID,userID) and returns the
// new count.
func AddWarning(ctx context.Context, db *gorm.DB, chatID, userID int64, now time.Time) (int, error) {
	for attempt := 1; ; attempt++ {
		n, err := tryAddWarning(ctx, db, chatID, userID, now)
		if err == nil {
			return n, nil
		}
		if !errors.Is(err, ErrConflict) {
			return 0, err
		}
		if attempt >= AddWarningAttempts {
			return 0, err
		}
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(time.Duration(attempt) * AddWarningBackoff):
		}
	}
}

func tryAddWarning(ctx context.Context, db *gorm.DB, chatID, userID int64, now time.Time) (int, error) {
	tx := db.WithContext(ctx)

	var rec domain.WarningRecord
	err := tx.Where("chat_id = ? AND user_id = ?", chatID, userID).First(&rec).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		rec = domain.WarningRecord{ChatID: chatID, UserID: userID, Count: 1, Version: 1, LastWarnedAt: now}
		if cerr := tx.Create(&rec).Error; cerr != nil {
			// Someone else inserted the row first: retry as an update.
			if _, gerr := GetWarning(ctx, db, chatID, userID); gerr == nil {
				return 0, ErrConflict
			}
			return 0, cerr
		}
		return 1, nil
	case err != nil:
		return 0, err
	}

	if err := compareAndUpdate(tx, &rec, rec.Count+1, now); err != nil {
		return 0, err
	}
	return rec.Count, nil
}

// GetWarning returns the warning row of (chatID,userID) or ErrNotFound.
func GetWarning(ctx context.Context, db *gorm.DB, chatID, userID int64) (*domain.WarningRecord, error) {
	var rec domain.WarningRecord
	err := db.WithContext(ctx).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetWarnings returns the warning count of (chatID,userID); zero when the
// user was never warned.
func GetWarnings(ctx context.Context, db *gorm.DB, chatID, userID int64) (int, error) {
	rec, err := GetWarning(ctx, db, chatID, userID)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return rec.Count, nil
}

// ListStaleWarnings returns up to limit rows with a positive count whose last
// warning is at or before cutoff, oldest first.
func ListStaleWarnings(ctx context.Context, db *gorm.DB, cutoff time.Time, limit int) ([]domain.WarningRecord, error) {
	var out []domain.WarningRecord
	err := db.WithContext(ctx).
		Where("count > 0 AND last_warned_at <= ?", cutoff).
		Order("last_warned_at asc").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// DecayWarning lowers rec.Count by steps (not below zero) and stamps now,
// provided the row still carries rec.Version. On success rec is updated in
// place; a concurrent write yields ErrConflict.
func DecayWarning(ctx context.Context, db *gorm.DB, rec *domain.WarningRecord, steps int, now time.Time) error {
	n := rec.Count - steps
	if n < 0 {
		n = 0
	}
	return compareAndUpdate(db.WithContext(ctx), rec, n, now)
}

func compareAndUpdate(tx *gorm.DB, rec *domain.WarningRecord, count int, now time.Time) error {
	res := tx.Model(&domain.WarningRecord{}).
		Where("id = ? AND version = ?", rec.ID, rec.Version).
		Updates(map[string]any{
			"count":          count,
			"version":        rec.Version + 1,
			"last_warned_at": now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	rec.Count = count
	rec.Version++
	rec.LastWarnedAt = now
	return nil
}
