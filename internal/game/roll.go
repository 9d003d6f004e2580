package game

import (
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Roll durations used when the store is left unconfigured.
const (
	DefaultRollDuration = 5 * time.Minute
	MaxRollDuration     = time.Hour
)

// RollResult is one participant's roll. The first roll sticks.
type RollResult struct {
	UserID    int64     `json:"user_id"`
	FirstName string    `json:"first_name"`
	Value     int       `json:"value"`
	At        time.Time `json:"at"`
}

// RollEvent is a snapshot of a dice-roll event. Results are in leaderboard
// order.
type RollEvent struct {
	ID        uuid.UUID     `json:"id"`
	ChatID    int64         `json:"chat_id"`
	HostID    int64         `json:"host_id"`
	MessageID int           `json:"message_id"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	EndsAt    time.Time     `json:"ends_at"`
	Closed    bool          `json:"closed"`
	Results   []RollResult  `json:"results"`
}

// RollConfig tunes a RollStore.
type RollConfig struct {
	DefaultDuration time.Duration
	MaxDuration     time.Duration
}

// RollFinishFunc receives the final snapshot of an event that timed out.
type RollFinishFunc func(ev RollEvent)

type rollSession struct {
	id        uuid.UUID
	chatID    int64
	hostID    int64
	startedAt time.Time
	duration  time.Duration

	messageID atomic.Int64
	closed    atomic.Bool

	mu      sync.Mutex
	results map[int64]RollResult
	timer   *time.Timer

	// editMu orders leaderboard message edits for this event.
	editMu sync.Mutex
}

func (s *rollSession) endsAt() time.Time { return s.startedAt.Add(s.duration) }

// RollStore is the registry of dice-roll events. Events are independent of
// each other, including events in the same chat.
type RollStore struct {
	cfg  RollConfig
	now  func() time.Time
	intn func(n int) int

	events sync.Map // uuid.UUID -> *rollSession

	hookMu   sync.RWMutex
	onFinish RollFinishFunc
}

// NewRollStore builds an empty registry.
func NewRollStore(cfg RollConfig) *RollStore {
	if cfg.MaxDuration <= 0 {
		cfg.MaxDuration = MaxRollDuration
	}
	if cfg.DefaultDuration <= 0 || cfg.DefaultDuration > cfg.MaxDuration {
		cfg.DefaultDuration = min(DefaultRollDuration, cfg.MaxDuration)
	}
	return &RollStore{cfg: cfg, now: time.Now, intn: rand.IntN}
}

// OnFinish registers the hook run when an event times out.
func (r *RollStore) OnFinish(fn RollFinishFunc) {
	r.hookMu.Lock()
	r.onFinish = fn
	r.hookMu.Unlock()
}

// ClampDuration maps a requested duration into (0, MaxDuration]; zero or
// negative picks the default.
func (r *RollStore) ClampDuration(d time.Duration) time.Duration {
	switch {
	case d <= 0:
		return r.cfg.DefaultDuration
	case d > r.cfg.MaxDuration:
		return r.cfg.MaxDuration
	}
	return d
}

// CreateEvent opens a new event in chatID hosted by hostID.
func (r *RollStore) CreateEvent(chatID, hostID int64, duration time.Duration) uuid.UUID {
	s := &rollSession{
		id:        uuid.New(),
		chatID:    chatID,
		hostID:    hostID,
		startedAt: r.now(),
		duration:  r.ClampDuration(duration),
		results:   make(map[int64]RollResult),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	r.events.Store(s.id, s)
	id := s.id
	s.timer = time.AfterFunc(s.duration, func() { r.expire(id) })
	activeGames.WithLabelValues("roll").Inc()
	return id
}

// SetMessageID binds the leaderboard message to the event. Only the first
// non-zero binding sticks.
func (r *RollStore) SetMessageID(id uuid.UUID, messageID int) bool {
	s, ok := r.session(id)
	if !ok || messageID == 0 {
		return false
	}
	return s.messageID.CompareAndSwap(0, int64(messageID))
}

// TryGetEvent returns a snapshot of a running event.
func (r *RollStore) TryGetEvent(id uuid.UUID) (RollEvent, bool) {
	s, ok := r.session(id)
	if !ok {
		return RollEvent{}, false
	}
	return s.snapshot(), true
}

// TryRoll rolls for userID. The value is drawn before insertion; when the
// user already rolled, the stored value is returned with firstTime false.
// ok is false for unknown, stopped or expired events.
//
// A roll accepted here is always part of the event's final snapshot: close
// marks the session closed before it takes s.mu, so the check under s.mu
// either sees the close or runs before the final snapshot.
func (r *RollStore) TryRoll(id uuid.UUID, userID int64, firstName string) (value int, firstTime, ok bool) {
	s, found := r.session(id)
	if !found || s.closed.Load() || !r.now().Before(s.endsAt()) {
		rollsTotal.WithLabelValues("rejected").Inc()
		return 0, false, false
	}

	v := r.intn(100) + 1

	s.mu.Lock()
	defer s.mu.Unlock()
	now := r.now()
	if s.closed.Load() || !now.Before(s.endsAt()) {
		rollsTotal.WithLabelValues("rejected").Inc()
		return 0, false, false
	}
	if prev, rolled := s.results[userID]; rolled {
		rollsTotal.WithLabelValues("repeat").Inc()
		return prev.Value, false, true
	}
	s.results[userID] = RollResult{UserID: userID, FirstName: firstName, Value: v, At: now}
	rollsTotal.WithLabelValues("first").Inc()
	return v, true, true
}

// WithEditLock runs fn with the latest snapshot while holding the event's
// edit lock. It skips fn and returns false when the event is gone, closed,
// or has no bound message yet.
func (r *RollStore) WithEditLock(id uuid.UUID, fn func(ev RollEvent) error) (bool, error) {
	s, ok := r.session(id)
	if !ok {
		return false, nil
	}
	s.editMu.Lock()
	defer s.editMu.Unlock()
	if s.closed.Load() || s.messageID.Load() == 0 {
		return false, nil
	}
	return true, fn(s.snapshot())
}

// StopEvent closes the event and returns its final snapshot. It returns
// after any in-flight leaderboard edit has finished, so the caller's final
// edit is the last one.
func (r *RollStore) StopEvent(id uuid.UUID) (RollEvent, bool) {
	v, ok := r.events.LoadAndDelete(id)
	if !ok {
		return RollEvent{}, false
	}
	return r.close(v.(*rollSession)), true
}

// Active returns the number of running events.
func (r *RollStore) Active() int {
	n := 0
	r.events.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// StopAll closes every event without running the finish hook.
func (r *RollStore) StopAll() {
	r.events.Range(func(k, _ any) bool {
		r.StopEvent(k.(uuid.UUID))
		return true
	})
}

func (r *RollStore) session(id uuid.UUID) (*rollSession, bool) {
	v, ok := r.events.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*rollSession), true
}

// close must only be called by the path that removed s from the map.
func (r *RollStore) close(s *rollSession) RollEvent {
	s.closed.Store(true)
	activeGames.WithLabelValues("roll").Dec()

	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()

	// Wait out an edit that started before the close.
	s.editMu.Lock()
	s.editMu.Unlock()

	return s.snapshot()
}

func (r *RollStore) expire(id uuid.UUID) {
	v, ok := r.events.LoadAndDelete(id)
	if !ok {
		return
	}
	ev := r.close(v.(*rollSession))

	r.hookMu.RLock()
	fn := r.onFinish
	r.hookMu.RUnlock()
	if fn != nil {
		fn(ev)
	}
}

func (s *rollSession) snapshot() RollEvent {
	s.mu.Lock()
	results := make([]RollResult, 0, len(s.results))
	for _, res := range s.results {
		results = append(results, res)
	}
	s.mu.Unlock()
	SortResults(results)

	return RollEvent{
		ID:        s.id,
		ChatID:    s.chatID,
		HostID:    s.hostID,
		MessageID: int(s.messageID.Load()),
		StartedAt: s.startedAt,
		Duration:  s.duration,
		EndsAt:    s.endsAt(),
		Closed:    s.closed.Load(),
		Results:   results,
	}
}
