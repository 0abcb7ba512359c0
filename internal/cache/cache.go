// Package cache holds the authoritative in-memory transaction collection the
// UI reads from. It is the single point of mutation for the sync layer: bulk
// fetches, live change events and optimistic local writes all funnel through
// the operations here, and every operation re-establishes the canonical
// descending-creation-time order before returning.
package cache

import (
	"sort"
	"sync"
	"time"

	"github.com/avolkov/moneyflow/internal/domain"
)

// EventKind identifies a live-change event routed into the cache.
type EventKind string

const (
	// EventAdded inserts or refreshes a record.
	EventAdded EventKind = "added"
	// EventModified refreshes a record (an insert if it was unknown).
	EventModified EventKind = "modified"
	// EventRemoved drops a record by id. A miss is tolerated; the record
	// may already be gone via another path.
	EventRemoved EventKind = "removed"
)

// Store is the ordered, de-duplicated transaction collection plus its fetch
// bookkeeping. Safe for concurrent use; snapshots are copied out so callers
// never hold a reference into shared state.
type Store struct {
	mu          sync.RWMutex
	items       []domain.Transaction
	hasMore     bool
	initialized bool
	lastFetch   time.Time
}

// NewStore creates an empty cache.
func NewStore() *Store {
	return &Store{}
}

// ReplaceAll overwrites the collection after an authoritative full fetch.
// An empty set is valid here: a successful unfiltered fetch that returned
// nothing genuinely means the owner has no records.
func (s *Store) ReplaceAll(records []domain.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = make([]domain.Transaction, len(records))
	copy(s.items, records)
	s.sortLocked()
	s.initialized = true
}

// MergeUpsert folds a batch of records into the collection. Existing entries
// are replaced only when the incoming value actually differs, absent ones are
// appended, and the sort order is re-derived once for the whole batch.
// MergeUpsert never removes anything; an empty batch is a no-op.
func (s *Store) MergeUpsert(records []domain.Transaction) {
	if len(records) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range records {
		s.upsertLocked(rec)
	}
	s.sortLocked()
}

// ApplyEvent folds a single live-change event into the collection in the
// order events were delivered.
func (s *Store) ApplyEvent(kind EventKind, record domain.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch kind {
	case EventRemoved:
		s.removeLocked(record.ID)
	default:
		s.upsertLocked(record)
	}
	s.sortLocked()
}

// RemoveByID drops a record, typically after a successful delete mutation.
// Removing an unknown id is not an error.
func (s *Store) RemoveByID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeLocked(id)
}

// Clear empties the collection and resets the bookkeeping. Only valid as the
// deliberate result of signing out.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = nil
	s.hasMore = false
	s.initialized = false
	s.lastFetch = time.Time{}
}

// Snapshot returns a copy of the collection in canonical order.
func (s *Store) Snapshot() []domain.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Transaction, len(s.items))
	copy(out, s.items)
	return out
}

// Get returns a copy of the record with the given id, if present.
func (s *Store) Get(id string) (domain.Transaction, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.items {
		if t.ID == id {
			return t, true
		}
	}
	return domain.Transaction{}, false
}

// Len returns the number of cached records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Initialized reports whether at least one authoritative fetch has landed.
func (s *Store) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

// HasMore reports whether another pagination window is believed to exist.
func (s *Store) HasMore() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasMore
}

// SetHasMore records the pagination bookkeeping.
func (s *Store) SetHasMore(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hasMore = v
}

// LastFetch returns the time of the last successful fetch.
func (s *Store) LastFetch() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastFetch
}

// MarkFetched records a successful fetch at t.
func (s *Store) MarkFetched(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastFetch = t
}

// upsertLocked inserts or replaces one record without re-sorting. The value
// comparison keeps an identical incoming copy from disturbing the existing
// entry, so unrelated order and identity stay stable.
func (s *Store) upsertLocked(rec domain.Transaction) {
	for i, existing := range s.items {
		if existing.ID == rec.ID {
			if !existing.Equal(rec) {
				s.items[i] = rec
			}
			return
		}
	}
	s.items = append(s.items, rec)
}

func (s *Store) removeLocked(id string) {
	for i, existing := range s.items {
		if existing.ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return
		}
	}
}

// sortLocked re-derives the canonical order from the full current content.
// Stable sort plus the deterministic comparator means re-sorting an
// unchanged set is a no-op.
func (s *Store) sortLocked() {
	sort.SliceStable(s.items, func(i, j int) bool {
		return domain.MoreRecent(s.items[i], s.items[j])
	})
}
