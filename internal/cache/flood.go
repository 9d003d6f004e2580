package cache

import (
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Flood detector modes.
const (
	ModeWindow = "window"
	ModeBucket = "bucket"
)

// FloodConfig tunes a FloodStore.
//
//   - Mode:     ModeWindow (count/window) or ModeBucket (token bucket).
//   - Limit:    messages per window, or bucket capacity.
//   - Window:   window length, or time to refill an empty bucket.
//   - EntryTTL: idle lifetime of per-key detector state.
//   - WarnTTL:  lifetime of cached warning counts.
type FloodConfig struct {
	Mode     string
	Limit    int
	Window   time.Duration
	EntryTTL time.Duration
	WarnTTL  time.Duration
}

// floodState is the per (chat,user) detector. Exactly one of limiter or
// stamps is used, depending on the store mode.
type floodState struct {
	limiter *rate.Limiter

	mu     sync.Mutex
	stamps []time.Time
}

// FloodStore answers "is this message spam" per (chat,user).
//
// In bucket mode each key owns a rate.Limiter with burst Limit refilling
// Limit tokens per Window; a message is spam when no token is left. In
// window mode each key owns a FIFO of timestamps; when the count within
// Window reaches Limit the queue is cleared and the message is spam.
type FloodStore struct {
	cfg    FloodConfig
	now    func() time.Time
	states *Cache[*floodState]
	warns  *Cache[int]
}

// NewFloodStore builds a FloodStore. now may be nil for time.Now.
// sweep > 0 starts janitors on the underlying caches.
func NewFloodStore(cfg FloodConfig, now func() time.Time, sweep time.Duration) *FloodStore {
	if now == nil {
		now = time.Now
	}
	if cfg.Limit < 1 {
		cfg.Limit = 1
	}
	if cfg.Mode != ModeBucket {
		cfg.Mode = ModeWindow
	}
	return &FloodStore{
		cfg: cfg,
		now: now,
		states: New(
			WithClock[*floodState](now),
			WithName[*floodState]("flood"),
			WithJanitor[*floodState](sweep),
		),
		warns: New(
			WithClock[int](now),
			WithName[int]("warnings"),
			WithJanitor[int](sweep),
		),
	}
}

// Mode returns the active detector mode.
func (s *FloodStore) Mode() string { return s.cfg.Mode }

// AddAndCheck records one message from userID in chatID and reports whether
// it crosses the flood threshold. A closed store never reports spam.
func (s *FloodStore) AddAndCheck(chatID, userID int64) bool {
	st, err := s.states.GetOrCreate(pairKey(chatID, userID), Sliding(s.cfg.EntryTTL), s.newState)
	if err != nil {
		return false
	}

	now := s.now()
	var spam bool
	if s.cfg.Mode == ModeBucket {
		spam = !st.limiter.AllowN(now, 1)
	} else {
		spam = st.observe(now, s.cfg.Window, s.cfg.Limit)
	}

	verdict := "ok"
	if spam {
		verdict = "spam"
	}
	spamVerdicts.WithLabelValues(s.cfg.Mode, verdict).Inc()
	return spam
}

func (s *FloodStore) newState() *floodState {
	if s.cfg.Mode == ModeBucket {
		perSec := float64(s.cfg.Limit) / s.cfg.Window.Seconds()
		return &floodState{limiter: rate.NewLimiter(rate.Limit(perSec), s.cfg.Limit)}
	}
	return &floodState{stamps: make([]time.Time, 0, s.cfg.Limit)}
}

// observe appends now to the window and reports a trip. The queue is cleared
// on trip so the next message starts a fresh count.
func (st *floodState) observe(now time.Time, window time.Duration, limit int) bool {
	st.mu.Lock()
	defer st.mu.Unlock()

	cutoff := now.Add(-window)
	drop := 0
	for drop < len(st.stamps) && !st.stamps[drop].After(cutoff) {
		drop++
	}
	if drop > 0 {
		st.stamps = append(st.stamps[:0], st.stamps[drop:]...)
	}
	st.stamps = append(st.stamps, now)

	if len(st.stamps) >= limit {
		st.stamps = st.stamps[:0]
		return true
	}
	return false
}

// SetCachedWarningsCount remembers a warning count for a short while so the
// decay pass and handlers can read it without touching storage.
func (s *FloodStore) SetCachedWarningsCount(chatID, userID int64, count int) {
	_ = s.warns.Set(pairKey(chatID, userID), count, Absolute(s.cfg.WarnTTL))
}

// GetCachedWarningsCount returns the cached warning count, if still fresh.
func (s *FloodStore) GetCachedWarningsCount(chatID, userID int64) (int, bool) {
	return s.warns.TryGet(pairKey(chatID, userID))
}

// Tracked returns the number of keys with live detector state.
func (s *FloodStore) Tracked() int { return s.states.Len() }

// Close releases the underlying caches.
func (s *FloodStore) Close() {
	s.states.Close()
	s.warns.Close()
}

func pairKey(chatID, userID int64) string {
	return strconv.FormatInt(chatID, 10) + ":" + strconv.FormatInt(userID, 10)
}
