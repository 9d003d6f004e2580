package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-modbot/internal/cache"
	"github.com/tbourn/go-modbot/internal/repo"
)

// Decay job tuning.
const (
	DecayBatchSize   = 200
	DecayMaxAttempts = 3
)

// WarningService owns persistent warning counts and mirrors them into the
// flood store's short-lived count cache.
type WarningService struct {
	DB    *gorm.DB
	Repo  WarningRepo
	Flood *cache.FloodStore

	// Window is the idle time after which one warning is forgiven.
	Window time.Duration
	Now    func() time.Time
}

func (s *WarningService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Add records one more warning for the user and returns the new count.
func (s *WarningService) Add(ctx context.Context, chatID, userID int64) (int, error) {
	ctx, span := otel.Tracer("services/warnings").Start(ctx, "Add",
		trace.WithAttributes(
			attribute.Int64("chat.id", chatID),
			attribute.Int64("user.id", userID),
		))
	defer span.End()

	n, err := s.Repo.AddWarning(ctx, s.DB, chatID, userID, s.now())
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	s.Flood.SetCachedWarningsCount(chatID, userID, n)
	moderationActions.WithLabelValues("warn").Inc()
	return n, nil
}

// Count returns the user's warning count, preferring the cached value.
func (s *WarningService) Count(ctx context.Context, chatID, userID int64) (int, error) {
	if n, ok := s.Flood.GetCachedWarningsCount(chatID, userID); ok {
		return n, nil
	}
	n, err := s.Repo.GetWarnings(ctx, s.DB, chatID, userID)
	if err != nil {
		return 0, err
	}
	s.Flood.SetCachedWarningsCount(chatID, userID, n)
	return n, nil
}

// DecayOnce forgives warnings of every record idle for at least one window:
// one warning per elapsed window. Records are processed in batches; a record
// that keeps losing optimistic races is left for the next pass.
// It returns how many records were lowered.
func (s *WarningService) DecayOnce(ctx context.Context) (int, error) {
	if s.Window <= 0 {
		return 0, nil
	}
	ctx, span := otel.Tracer("services/warnings").Start(ctx, "DecayOnce")
	defer span.End()

	now := s.now()
	cutoff := now.Add(-s.Window)
	decayed := 0
	for {
		if err := ctx.Err(); err != nil {
			return decayed, err
		}
		batch, err := s.Repo.ListStaleWarnings(ctx, s.DB, cutoff, DecayBatchSize)
		if err != nil {
			span.RecordError(err)
			return decayed, err
		}

		progress := 0
		for i := range batch {
			ok, err := s.decayRecord(ctx, batch[i].ChatID, batch[i].UserID, cutoff, now)
			if err != nil {
				log.Warn().Err(err).
					Int64("chat_id", batch[i].ChatID).
					Int64("user_id", batch[i].UserID).
					Msg("warning decay failed")
				continue
			}
			if ok {
				progress++
			}
		}
		decayed += progress
		warningsDecayed.Add(float64(progress))

		// Rows stamped with now fall out of the stale set, so a full batch
		// with progress means more may be waiting.
		if len(batch) < DecayBatchSize || progress == 0 {
			break
		}
	}
	span.SetAttributes(attribute.Int("warnings.decayed", decayed))
	return decayed, nil
}

// decayRecord applies one decay to (chatID,userID), reloading the row after
// every conflict. It reports whether the row was written.
func (s *WarningService) decayRecord(ctx context.Context, chatID, userID int64, cutoff, now time.Time) (bool, error) {
	var lastErr error
	for attempt := 0; attempt < DecayMaxAttempts; attempt++ {
		rec, err := s.Repo.GetWarning(ctx, s.DB, chatID, userID)
		if errors.Is(err, repo.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if rec.Count <= 0 || rec.LastWarnedAt.After(cutoff) {
			// Reset or re-warned since it was listed.
			return false, nil
		}

		steps := int(now.Sub(rec.LastWarnedAt) / s.Window)
		if steps < 1 {
			return false, nil
		}
		err = s.Repo.DecayWarning(ctx, s.DB, rec, steps, now)
		if err == nil {
			s.Flood.SetCachedWarningsCount(chatID, userID, rec.Count)
			return true, nil
		}
		if !errors.Is(err, repo.ErrConflict) {
			return false, err
		}
		lastErr = err
	}
	return false, lastErr
}

// Run executes DecayOnce every interval until ctx is cancelled.
func (s *WarningService) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := s.DecayOnce(ctx)
			if err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("warning decay pass failed")
				continue
			}
			if n > 0 {
				log.Debug().Int("decayed", n).Msg("warning decay pass")
			}
		}
	}
}
