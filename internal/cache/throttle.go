package cache

import (
	"math"
	"time"
)

// ThrottleStore is a per (chat,user) cooldown gate.
type ThrottleStore struct {
	now   func() time.Time
	until *Cache[time.Time]
}

// NewThrottleStore builds a ThrottleStore. now may be nil for time.Now.
func NewThrottleStore(now func() time.Time, sweep time.Duration) *ThrottleStore {
	if now == nil {
		now = time.Now
	}
	return &ThrottleStore{
		now: now,
		until: New(
			WithClock[time.Time](now),
			WithName[time.Time]("throttle"),
			WithJanitor[time.Time](sweep),
		),
	}
}

// TryCheckAndSet admits the caller when no cooldown is running for the key
// and starts one lasting delay. Otherwise it returns the remaining whole
// seconds, rounded up. Concurrent callers for one key never both pass.
func (s *ThrottleStore) TryCheckAndSet(chatID, userID int64, delay time.Duration) (bool, int) {
	if delay <= 0 {
		return true, 0
	}
	deadline := s.now().Add(delay)
	stored, added, err := s.until.SetIfAbsent(pairKey(chatID, userID), deadline, Absolute(delay))
	if err != nil {
		return false, int(math.Ceil(delay.Seconds()))
	}
	if added {
		return true, 0
	}
	left := stored.Sub(s.now()).Seconds()
	if left < 0 {
		left = 0
	}
	return false, int(math.Ceil(left))
}

// Active returns the number of running cooldowns.
func (s *ThrottleStore) Active() int { return s.until.Len() }

// Close releases the underlying cache.
func (s *ThrottleStore) Close() { s.until.Close() }
