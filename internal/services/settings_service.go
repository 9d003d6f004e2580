package services

import (
	"context"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-modbot/internal/cache"
	"github.com/tbourn/go-modbot/internal/domain"
)

// SettingsService reads chat settings through the in-memory cache and
// writes them through to the database.
type SettingsService struct {
	DB    *gorm.DB
	Repo  SettingsRepo
	Cache *cache.SettingsCache
}

// Get returns the chat's settings, loading (and creating) them on a miss.
func (s *SettingsService) Get(ctx context.Context, chatID int64) (domain.ChatSettings, error) {
	if cs, ok := s.Cache.TryGet(chatID); ok {
		return cs, nil
	}

	ctx, span := otel.Tracer("services/settings").Start(ctx, "Get",
		trace.WithAttributes(attribute.Int64("chat.id", chatID)))
	defer span.End()

	cs, err := s.Repo.GetOrCreateChatSettings(ctx, s.DB, chatID)
	if err != nil {
		span.RecordError(err)
		return domain.ChatSettings{}, err
	}
	s.remember(*cs)
	return *cs, nil
}

// SetLinksAllowed persists the links toggle.
func (s *SettingsService) SetLinksAllowed(ctx context.Context, chatID int64, allowed bool) (domain.ChatSettings, error) {
	return s.write(ctx, "SetLinksAllowed", chatID, func(ctx context.Context) (*domain.ChatSettings, error) {
		return s.Repo.SetLinksAllowed(ctx, s.DB, chatID, allowed)
	})
}

// SetSpamProtection persists the spam protection toggle.
func (s *SettingsService) SetSpamProtection(ctx context.Context, chatID int64, enabled bool) (domain.ChatSettings, error) {
	return s.write(ctx, "SetSpamProtection", chatID, func(ctx context.Context) (*domain.ChatSettings, error) {
		return s.Repo.SetSpamProtection(ctx, s.DB, chatID, enabled)
	})
}

// ToggleLinks flips the links toggle and returns the new settings.
func (s *SettingsService) ToggleLinks(ctx context.Context, chatID int64) (domain.ChatSettings, error) {
	return s.write(ctx, "ToggleLinks", chatID, func(ctx context.Context) (*domain.ChatSettings, error) {
		return s.Repo.ToggleLinksAllowed(ctx, s.DB, chatID)
	})
}

// ToggleSpam flips spam protection and returns the new settings.
func (s *SettingsService) ToggleSpam(ctx context.Context, chatID int64) (domain.ChatSettings, error) {
	return s.write(ctx, "ToggleSpam", chatID, func(ctx context.Context) (*domain.ChatSettings, error) {
		return s.Repo.ToggleSpamProtection(ctx, s.DB, chatID)
	})
}

func (s *SettingsService) write(ctx context.Context, op string, chatID int64, fn func(context.Context) (*domain.ChatSettings, error)) (domain.ChatSettings, error) {
	ctx, span := otel.Tracer("services/settings").Start(ctx, op,
		trace.WithAttributes(attribute.Int64("chat.id", chatID)))
	defer span.End()

	cs, err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		// The stored row may or may not have changed; drop the cached copy.
		s.Cache.Remove(chatID)
		return domain.ChatSettings{}, err
	}
	s.remember(*cs)
	return *cs, nil
}

func (s *SettingsService) remember(cs domain.ChatSettings) {
	if err := s.Cache.Set(cs); err != nil {
		log.Warn().Err(err).Int64("chat_id", cs.ChatID).Msg("settings cache write failed")
	}
}
