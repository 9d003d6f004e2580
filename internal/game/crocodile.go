// Package game holds the timer-driven chat games.
//
// Crocodile is the word-guess game: a host sees a secret word and describes
// it while the rest of the chat guesses. RollStore runs dice-roll events where
// every participant rolls once within a time window.
//
// Both registries are keyed sync.Maps and every way a session can end
// (correct guess, host action, timeout) goes through a remove-if-present on
// that map. Whichever path removes the session performs the follow-up side
// effect; the others observe "already gone" and do nothing. Timer callbacks
// receive only identifiers and look their session up again, so a callback
// that fires after a manual end finds nothing to do.
package game

import (
	"errors"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/text/cases"
)

// DefaultCrocodileTimeout is how long a round lasts when unconfigured.
const DefaultCrocodileTimeout = 15 * time.Minute

// ErrNoWords is returned when a word list is empty.
var ErrNoWords = errors.New("word list is empty")

// GameState is a snapshot of a running word-guess round.
type GameState struct {
	GameID    uint64
	ChatID    int64
	HostID    int64
	Word      string
	StartedAt time.Time
	EndsAt    time.Time
}

// CrocodileConfig tunes the word-guess game.
type CrocodileConfig struct {
	Timeout            time.Duration
	ResetTimerOnChange bool
}

// CrocodileTimeoutFunc is called once when a round times out, after the
// round has been removed.
type CrocodileTimeoutFunc func(state GameState)

type crocSession struct {
	id uint64

	mu    sync.Mutex
	state GameState
	timer *time.Timer
}

// Crocodile is the registry of word-guess rounds, one per chat.
type Crocodile struct {
	cfg   CrocodileConfig
	words []string
	now   func() time.Time
	intn  func(n int) int

	games  sync.Map // int64 chatID -> *crocSession
	nextID atomic.Uint64

	hookMu    sync.RWMutex
	onTimeout CrocodileTimeoutFunc
}

// NewCrocodile builds the registry over a non-empty word list.
func NewCrocodile(cfg CrocodileConfig, words []string) (*Crocodile, error) {
	words = uniqueWords(words)
	if len(words) == 0 {
		return nil, ErrNoWords
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultCrocodileTimeout
	}
	return &Crocodile{
		cfg:   cfg,
		words: words,
		now:   time.Now,
		intn:  rand.IntN,
	}, nil
}

// OnTimeout registers the timeout notification hook.
func (c *Crocodile) OnTimeout(fn CrocodileTimeoutFunc) {
	c.hookMu.Lock()
	c.onTimeout = fn
	c.hookMu.Unlock()
}

// Timeout returns the configured round length.
func (c *Crocodile) Timeout() time.Duration { return c.cfg.Timeout }

// TryStartGame starts a round hosted by hostID unless the chat already has
// one. It returns the secret word on success.
func (c *Crocodile) TryStartGame(chatID, hostID int64) (string, bool) {
	if _, busy := c.games.Load(chatID); busy {
		return "", false
	}

	now := c.now()
	s := &crocSession{id: c.nextID.Add(1)}
	s.state = GameState{
		GameID:    s.id,
		ChatID:    chatID,
		HostID:    hostID,
		Word:      c.pick(""),
		StartedAt: now,
		EndsAt:    now.Add(c.cfg.Timeout),
	}

	// Hold the session lock until the timer exists so a concurrent EndGame
	// always finds a timer to stop.
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, loaded := c.games.LoadOrStore(chatID, s); loaded {
		return "", false
	}
	s.timer = c.arm(chatID, s.id)
	activeGames.WithLabelValues("crocodile").Inc()
	return s.state.Word, true
}

// TryChangeWord swaps the secret word of the chat's round. When configured
// it also restarts the round timer.
func (c *Crocodile) TryChangeWord(chatID int64) (string, bool) {
	s, ok := c.session(chatID)
	if !ok {
		return "", false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Word = c.pick(s.state.Word)
	if c.cfg.ResetTimerOnChange && s.timer != nil && s.timer.Stop() {
		s.state.EndsAt = c.now().Add(c.cfg.Timeout)
		s.timer = c.arm(chatID, s.id)
	}
	return s.state.Word, true
}

// TryGuess compares text with the secret word, ignoring surrounding space
// and letter case. evaluated is false when the chat has no round. Keeping
// the host out is the caller's job.
func (c *Crocodile) TryGuess(chatID, userID int64, text string) (correct, evaluated bool) {
	s, ok := c.session(chatID)
	if !ok {
		return false, false
	}
	if strings.TrimSpace(text) == "" {
		return false, false
	}
	s.mu.Lock()
	word := s.state.Word
	s.mu.Unlock()
	return sameWord(text, word), true
}

// TryWin evaluates a guess by userID and, when it is correct, ends the
// round in the same step. The host cannot win their own round. Only one
// caller can win a round; the winner gets the final state.
func (c *Crocodile) TryWin(chatID, userID int64, text string) (GameState, bool) {
	s, ok := c.session(chatID)
	if !ok {
		return GameState{}, false
	}
	s.mu.Lock()
	word, host := s.state.Word, s.state.HostID
	s.mu.Unlock()
	if userID == host || !sameWord(text, word) {
		return GameState{}, false
	}
	return c.finish(chatID, s)
}

// EndGame ends the chat's round and returns its final state. ok is false
// when no round was running.
func (c *Crocodile) EndGame(chatID int64) (GameState, bool) {
	s, ok := c.session(chatID)
	if !ok {
		return GameState{}, false
	}
	return c.finish(chatID, s)
}

// TryGetGameState returns a snapshot of the chat's round.
func (c *Crocodile) TryGetGameState(chatID int64) (GameState, bool) {
	s, ok := c.session(chatID)
	if !ok {
		return GameState{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, true
}

// HasGame reports whether the chat has a running round.
func (c *Crocodile) HasGame(chatID int64) bool {
	_, ok := c.games.Load(chatID)
	return ok
}

// Active returns the number of running rounds.
func (c *Crocodile) Active() int {
	n := 0
	c.games.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// StopAll ends every round without notifying anyone.
func (c *Crocodile) StopAll() {
	c.games.Range(func(k, v any) bool {
		c.finish(k.(int64), v.(*crocSession))
		return true
	})
}

func (c *Crocodile) session(chatID int64) (*crocSession, bool) {
	v, ok := c.games.Load(chatID)
	if !ok {
		return nil, false
	}
	return v.(*crocSession), true
}

// finish removes s if it is still the chat's round and stops its timer.
func (c *Crocodile) finish(chatID int64, s *crocSession) (GameState, bool) {
	if !c.games.CompareAndDelete(chatID, s) {
		return GameState{}, false
	}
	activeGames.WithLabelValues("crocodile").Dec()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	return s.state, true
}

// arm must be called with the session lock held.
func (c *Crocodile) arm(chatID int64, gameID uint64) *time.Timer {
	return time.AfterFunc(c.cfg.Timeout, func() { c.expire(chatID, gameID) })
}

func (c *Crocodile) expire(chatID int64, gameID uint64) {
	s, ok := c.session(chatID)
	if !ok || s.id != gameID {
		return
	}
	state, ended := c.finish(chatID, s)
	if !ended {
		return
	}
	c.hookMu.RLock()
	fn := c.onTimeout
	c.hookMu.RUnlock()
	if fn != nil {
		fn(state)
	}
}

// pick returns a random word other than prev. A one-word list returns prev.
// c.words holds no duplicates, so prev occupies at most one slot and the
// draw skips over it.
func (c *Crocodile) pick(prev string) string {
	skip := slices.Index(c.words, prev)
	if skip < 0 {
		return c.words[c.intn(len(c.words))]
	}
	if len(c.words) == 1 {
		return prev
	}
	i := c.intn(len(c.words) - 1)
	if i >= skip {
		i++
	}
	return c.words[i]
}

func sameWord(guess, word string) bool {
	f := cases.Fold()
	return f.String(strings.TrimSpace(guess)) == f.String(strings.TrimSpace(word))
}
