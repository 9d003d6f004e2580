package cache

import (
	"sync"
	"time"

	"github.com/tbourn/go-modbot/internal/domain"
)

// DefaultRetention is how long a resolved complaint is remembered.
const DefaultRetention = 72 * time.Hour

// ledgerRecord is one resolved complaint and the end of its retention.
type ledgerRecord struct {
	info    domain.ProcessedComplaint
	expires time.Time
}

// entryStore is the expiring side of the ledger. *Cache satisfies it; tests
// substitute failing implementations.
type entryStore interface {
	SetFunc(key string, v *ledgerRecord, p Policy, fn EvictFunc[*ledgerRecord]) error
	RemoveFunc(key string, match func(*ledgerRecord) bool) bool
	Close()
}

// ProcessedStore is the idempotent ledger of resolved complaints.
//
// The sync.Map is the source of truth and its LoadOrStore is the mutual
// exclusion point: of N concurrent TryAdd calls for one key exactly one
// wins. A record past its deadline is treated as absent and dropped on the
// next lookup. Each winning record also gets a private cache entry with the
// same retention; its eviction callback reclaims the map record of keys that
// are never looked up again, and only if the map still holds that record.
type ProcessedStore struct {
	records   sync.Map // string -> *ledgerRecord
	entries   entryStore
	retention time.Duration
	now       func() time.Time
}

// NewProcessedStore builds a ledger keeping records for retention
// (DefaultRetention when <= 0). now may be nil for time.Now.
func NewProcessedStore(retention time.Duration, now func() time.Time, sweep time.Duration) *ProcessedStore {
	if retention <= 0 {
		retention = DefaultRetention
	}
	if now == nil {
		now = time.Now
	}
	return &ProcessedStore{
		entries: New(
			WithClock[*ledgerRecord](now),
			WithName[*ledgerRecord]("processed"),
			WithJanitor[*ledgerRecord](sweep),
		),
		retention: retention,
		now:       now,
	}
}

// TryGet returns the resolution recorded for key.
func (s *ProcessedStore) TryGet(key domain.ComplaintKey) (domain.ProcessedComplaint, bool) {
	rec, ok := s.load(key.String())
	if !ok {
		return domain.ProcessedComplaint{}, false
	}
	return rec.info, true
}

// TryAdd records info for key unless a live record already exists.
// retention overrides the store default when > 0. If the expiring entry
// cannot be registered, the record is withdrawn and the error returned.
func (s *ProcessedStore) TryAdd(key domain.ComplaintKey, info domain.ProcessedComplaint, retention time.Duration) (bool, error) {
	if retention <= 0 {
		retention = s.retention
	}
	k := key.String()
	rec := &ledgerRecord{info: info, expires: s.now().Add(retention)}

	for {
		if _, loaded := s.records.LoadOrStore(k, rec); !loaded {
			break
		}
		// load drops an expired holder, after which the slot is free again.
		if _, live := s.load(k); live {
			return false, nil
		}
	}
	if err := s.entries.SetFunc(k, rec, Absolute(retention), s.onEvict); err != nil {
		s.records.CompareAndDelete(k, rec)
		return false, err
	}
	return true, nil
}

// TryRemove withdraws the record for key so the complaint can be resolved
// again. It returns the removed record.
func (s *ProcessedStore) TryRemove(key domain.ComplaintKey) (domain.ProcessedComplaint, bool) {
	k := key.String()
	v, ok := s.records.LoadAndDelete(k)
	if !ok {
		return domain.ProcessedComplaint{}, false
	}
	rec := v.(*ledgerRecord)
	// A concurrent TryAdd may already own a newer entry under k; only drop ours.
	s.entries.RemoveFunc(k, func(cur *ledgerRecord) bool { return cur == rec })
	if !s.live(rec) {
		return domain.ProcessedComplaint{}, false
	}
	return rec.info, true
}

// Len returns the number of live records.
func (s *ProcessedStore) Len() int {
	n := 0
	s.records.Range(func(_, v any) bool {
		if s.live(v.(*ledgerRecord)) {
			n++
		}
		return true
	})
	return n
}

// Close evicts every entry, emptying the ledger. Later TryAdd calls fail
// with ErrClosed.
func (s *ProcessedStore) Close() { s.entries.Close() }

func (s *ProcessedStore) live(rec *ledgerRecord) bool { return s.now().Before(rec.expires) }

// load returns the live record under k. An expired record is removed from
// the map and its entry, and reported missing.
func (s *ProcessedStore) load(k string) (*ledgerRecord, bool) {
	v, ok := s.records.Load(k)
	if !ok {
		return nil, false
	}
	rec := v.(*ledgerRecord)
	if s.live(rec) {
		return rec, true
	}
	if s.records.CompareAndDelete(k, rec) {
		s.entries.RemoveFunc(k, func(cur *ledgerRecord) bool { return cur == rec })
	}
	return nil, false
}

func (s *ProcessedStore) onEvict(key string, rec *ledgerRecord, _ Reason) {
	s.records.CompareAndDelete(key, rec)
}
