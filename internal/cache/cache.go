// Package cache implements the in-memory state layer of the bot.
//
// The building block is Cache, a typed wrapper over an otter cache that adds
// per-entry sliding or absolute expiration and eviction callbacks. The
// remaining types are layered on top of it:
//
//   - FloodStore:     per (chat,user) spam detector, token bucket or window
//   - ThrottleStore:  per (chat,user) cooldown gate for reports
//   - ProcessedStore: idempotent ledger of resolved complaints
//   - SettingsCache:  read-through cache of per-chat toggles
//
// Expired entries are never returned. They are reclaimed by otter's
// maintenance, by DeleteExpired, and by the optional janitor. Every eviction
// callback fires exactly once per stored entry with the reason the entry left
// the cache.
//
// All types are safe for concurrent use.
package cache

import (
	"errors"
	"sync"
	"time"

	"github.com/maypok86/otter/v2"
)

// ErrClosed is returned by Set once the cache has been closed.
var ErrClosed = errors.New("cache closed")

type policyKind uint8

const (
	kindAbsolute policyKind = iota
	kindSliding
)

// Policy describes how an entry expires.
type Policy struct {
	kind policyKind
	ttl  time.Duration
}

// Sliding returns a policy whose deadline moves forward by d on every hit.
func Sliding(d time.Duration) Policy { return Policy{kind: kindSliding, ttl: d} }

// Absolute returns a policy with a fixed deadline d after Set.
func Absolute(d time.Duration) Policy { return Policy{kind: kindAbsolute, ttl: d} }

// IsSliding reports whether the policy slides on access.
func (p Policy) IsSliding() bool { return p.kind == kindSliding }

// TTL returns the policy duration.
func (p Policy) TTL() time.Duration { return p.ttl }

// Reason explains why an entry left the cache.
type Reason uint8

const (
	ReasonExpired Reason = iota
	ReasonRemoved
	ReasonReplaced
)

func (r Reason) String() string {
	switch r {
	case ReasonExpired:
		return "expired"
	case ReasonRemoved:
		return "removed"
	case ReasonReplaced:
		return "replaced"
	}
	return "unknown"
}

func reasonFor(cause otter.DeletionCause) Reason {
	switch cause {
	case otter.CauseExpiration:
		return ReasonExpired
	case otter.CauseReplacement:
		return ReasonReplaced
	default:
		return ReasonRemoved
	}
}

// EvictFunc is invoked once per entry when it leaves the cache.
type EvictFunc[V any] func(key string, value V, reason Reason)

type entry[V any] struct {
	value   V
	policy  Policy
	onEvict EvictFunc[V]
}

// policyExpiry gives every entry its own deadline. Sliding entries behave
// like otter.ExpiryAccessing and absolute ones like otter.ExpiryWriting.
type policyExpiry[V any] struct{}

func (policyExpiry[V]) ExpireAfterCreate(e otter.Entry[string, *entry[V]]) time.Duration {
	return e.Value.policy.ttl
}

func (policyExpiry[V]) ExpireAfterUpdate(e otter.Entry[string, *entry[V]], _ *entry[V]) time.Duration {
	return e.Value.policy.ttl
}

func (policyExpiry[V]) ExpireAfterRead(e otter.Entry[string, *entry[V]]) time.Duration {
	if e.Value.policy.IsSliding() {
		return e.Value.policy.ttl
	}
	return e.ExpiresAfter()
}

// funcClock adapts a time.Now style function to otter.Clock.
type funcClock func() time.Time

func (f funcClock) NowNano() int64 { return f().UnixNano() }

func (funcClock) Tick(d time.Duration) <-chan time.Time { return time.Tick(d) }

// Option configures a Cache.
type Option[V any] func(*Cache[V])

// WithClock replaces time.Now; tests use it to drive expiry.
func WithClock[V any](now func() time.Time) Option[V] {
	return func(c *Cache[V]) { c.now = now }
}

// WithEvict registers a cache-wide eviction callback. It runs in addition to
// any per-entry callback passed to SetFunc.
func WithEvict[V any](fn EvictFunc[V]) Option[V] {
	return func(c *Cache[V]) { c.onEvict = fn }
}

// WithName labels the cache in eviction metrics.
func WithName[V any](name string) Option[V] {
	return func(c *Cache[V]) { c.name = name }
}

// WithJanitor starts a goroutine that sweeps expired entries every interval.
// It stops on Close.
func WithJanitor[V any](interval time.Duration) Option[V] {
	return func(c *Cache[V]) { c.sweepEvery = interval }
}

// Cache is a generic expiring key/value store backed by otter.
//
// Eviction callbacks run synchronously while otter holds the entry, so they
// must not call back into the same cache.
type Cache[V any] struct {
	store *otter.Cache[string, *entry[V]]

	// gate lets Close wait out in-flight writes.
	gate   sync.RWMutex
	closed bool

	now        func() time.Time
	onEvict    EvictFunc[V]
	name       string
	sweepEvery time.Duration

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// New constructs a Cache. Without WithJanitor, expired entries are reclaimed
// by otter's own maintenance or explicit DeleteExpired calls.
func New[V any](opts ...Option[V]) *Cache[V] {
	c := &Cache[V]{
		name: "default",
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	for _, o := range opts {
		o(c)
	}

	o := &otter.Options[string, *entry[V]]{
		ExpiryCalculator: policyExpiry[V]{},
		OnAtomicDeletion: c.deleted,
	}
	if c.now != nil {
		o.Clock = funcClock(c.now)
	}
	c.store = otter.Must(o)

	if c.sweepEvery > 0 {
		go c.janitor()
	} else {
		close(c.done)
	}
	return c
}

// Set stores value under key, replacing any previous entry.
func (c *Cache[V]) Set(key string, value V, p Policy) error {
	return c.SetFunc(key, value, p, nil)
}

// SetFunc stores value under key with an entry-specific eviction callback.
func (c *Cache[V]) SetFunc(key string, value V, p Policy, onEvict EvictFunc[V]) error {
	c.gate.RLock()
	defer c.gate.RUnlock()
	if c.closed {
		return ErrClosed
	}
	c.store.Set(key, &entry[V]{value: value, policy: p, onEvict: onEvict})
	return nil
}

// TryGet returns the live value stored under key. A hit on a sliding entry
// pushes its deadline forward.
func (c *Cache[V]) TryGet(key string) (V, bool) {
	e, ok := c.store.GetIfPresent(key)
	if !ok {
		var zero V
		return zero, false
	}
	return e.value, true
}

// GetOrCreate returns the live value under key, or stores and returns the
// result of create when there is none. create runs while otter holds the key
// and must not call back into the cache.
func (c *Cache[V]) GetOrCreate(key string, p Policy, create func() V) (V, error) {
	var zero V

	c.gate.RLock()
	defer c.gate.RUnlock()
	if c.closed {
		return zero, ErrClosed
	}
	if e, ok := c.store.GetIfPresent(key); ok {
		return e.value, nil
	}

	var out V
	c.store.Compute(key, func(old *entry[V], found bool) (*entry[V], otter.ComputeOp) {
		if found {
			out = old.value
			return old, otter.CancelOp
		}
		out = create()
		return &entry[V]{value: out, policy: p}, otter.WriteOp
	})
	return out, nil
}

// SetIfAbsent stores value only when key has no live entry. It returns the
// value that is stored after the call and whether this call stored it.
func (c *Cache[V]) SetIfAbsent(key string, value V, p Policy) (V, bool, error) {
	var zero V

	c.gate.RLock()
	defer c.gate.RUnlock()
	if c.closed {
		return zero, false, ErrClosed
	}

	out, added := value, false
	c.store.Compute(key, func(old *entry[V], found bool) (*entry[V], otter.ComputeOp) {
		if found {
			out = old.value
			return old, otter.CancelOp
		}
		added = true
		return &entry[V]{value: value, policy: p}, otter.WriteOp
	})
	return out, added, nil
}

// Remove deletes key and reports whether a live entry was removed.
func (c *Cache[V]) Remove(key string) bool {
	return c.RemoveFunc(key, nil)
}

// RemoveFunc deletes key only when match accepts the stored value. A nil
// match accepts anything.
func (c *Cache[V]) RemoveFunc(key string, match func(V) bool) bool {
	removed := false
	c.store.Compute(key, func(old *entry[V], found bool) (*entry[V], otter.ComputeOp) {
		if !found || (match != nil && !match(old.value)) {
			return old, otter.CancelOp
		}
		removed = true
		return nil, otter.InvalidateOp
	})
	return removed
}

// DeleteExpired runs pending maintenance, evicting every expired entry.
func (c *Cache[V]) DeleteExpired() { c.store.CleanUp() }

// Len returns the number of live entries.
func (c *Cache[V]) Len() int {
	n := 0
	for range c.store.All() {
		n++
	}
	return n
}

// Close stops the janitor and evicts all entries with ReasonRemoved. Later
// writes fail with ErrClosed. Close is idempotent.
func (c *Cache[V]) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
	<-c.done

	c.gate.Lock()
	if c.closed {
		c.gate.Unlock()
		return
	}
	c.closed = true
	c.gate.Unlock()

	c.store.InvalidateAll()
	c.store.StopAllGoroutines()
}

func (c *Cache[V]) janitor() {
	defer close(c.done)
	t := time.NewTicker(c.sweepEvery)
	defer t.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-t.C:
			c.DeleteExpired()
		}
	}
}

func (c *Cache[V]) deleted(ev otter.DeletionEvent[string, *entry[V]]) {
	if ev.Value == nil {
		return
	}
	reason := reasonFor(ev.Cause)
	cacheEvictions.WithLabelValues(c.name, reason.String()).Inc()
	if ev.Value.onEvict != nil {
		ev.Value.onEvict(ev.Key, ev.Value.value, reason)
	}
	if c.onEvict != nil {
		c.onEvict(ev.Key, ev.Value.value, reason)
	}
}
