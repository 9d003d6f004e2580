package cache

import (
	"strconv"
	"time"

	"github.com/tbourn/go-modbot/internal/domain"
)

// DefaultSettingsSliding is the sliding lifetime of a cached chat setting.
const DefaultSettingsSliding = 15 * time.Minute

// SettingsCache caches per-chat settings with a sliding expiration. It holds
// copies; callers never share a value with the cache.
type SettingsCache struct {
	ttl time.Duration
	c   *Cache[domain.ChatSettings]
}

// NewSettingsCache builds a SettingsCache (DefaultSettingsSliding when ttl <= 0).
func NewSettingsCache(ttl time.Duration, now func() time.Time, sweep time.Duration) *SettingsCache {
	if ttl <= 0 {
		ttl = DefaultSettingsSliding
	}
	return &SettingsCache{
		ttl: ttl,
		c: New(
			WithClock[domain.ChatSettings](now),
			WithName[domain.ChatSettings]("settings"),
			WithJanitor[domain.ChatSettings](sweep),
		),
	}
}

// TryGet returns the cached settings for chatID.
func (s *SettingsCache) TryGet(chatID int64) (domain.ChatSettings, bool) {
	return s.c.TryGet(strconv.FormatInt(chatID, 10))
}

// Set stores settings under their ChatID, overwriting any cached copy.
func (s *SettingsCache) Set(settings domain.ChatSettings) error {
	return s.c.Set(strconv.FormatInt(settings.ChatID, 10), settings, Sliding(s.ttl))
}

// Remove drops chatID from the cache.
func (s *SettingsCache) Remove(chatID int64) bool {
	return s.c.Remove(strconv.FormatInt(chatID, 10))
}

// Len returns the number of cached chats.
func (s *SettingsCache) Len() int { return s.c.Len() }

// Close releases the underlying cache.
func (s *SettingsCache) Close() { s.c.Close() }
