package cache

import (
	"sync"
	"time"
)

const DefaultTTL = time.Hour

// Store is the TTL-keyed ephemeral store shared by the throttle policy and
// the usage counters. All operations are total functions over the key space;
// there are no error conditions.
type Store interface {
	Set(key string, value any, ttl time.Duration)
	Get(key string) (any, bool)
	Has(key string) bool
	Delete(key string)
	Increment(key string, ttl time.Duration) int64
	IncrementBelow(key string, limit int64, ttl time.Duration) (int64, bool)
	Keys() []string
	Size() int
}

type entry struct {
	value     any
	expiresAt time.Time
}

// MemoryStore is a mutex-guarded in-memory Store. Reads lazily evict expired
// entries; Keys and Size run a full sweep first so their answers only cover
// live entries.
type MemoryStore struct {
	DefaultTTL time.Duration
	Now        func() time.Time

	mu      sync.Mutex
	entries map[string]entry
}

func NewMemoryStore(defaultTTL time.Duration) *MemoryStore {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	return &MemoryStore{
		DefaultTTL: defaultTTL,
		entries:    map[string]entry{},
	}
}

func (s *MemoryStore) Set(key string, value any, ttl time.Duration) {
	if s == nil {
		return
	}
	if ttl <= 0 {
		ttl = s.defaultTTL()
	}
	s.mu.Lock()
	s.entries[key] = entry{value: value, expiresAt: s.now().Add(ttl)}
	s.mu.Unlock()
}

func (s *MemoryStore) Get(key string) (any, bool) {
	if s == nil {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	if s.now().After(item.expiresAt) {
		delete(s.entries, key)
		return nil, false
	}
	return item.value, true
}

func (s *MemoryStore) Has(key string) bool {
	_, ok := s.Get(key)
	return ok
}

func (s *MemoryStore) Delete(key string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

// Increment bumps an integer counter. A fresh or expired key starts at 1 with
// the given ttl; an existing key keeps its original expiry so counting
// windows stay fixed rather than sliding.
func (s *MemoryStore) Increment(key string, ttl time.Duration) int64 {
	if s == nil {
		return 0
	}
	if ttl <= 0 {
		ttl = s.defaultTTL()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	item, ok := s.entries[key]
	if !ok || now.After(item.expiresAt) {
		s.entries[key] = entry{value: int64(1), expiresAt: now.Add(ttl)}
		return 1
	}
	count := asInt64(item.value) + 1
	s.entries[key] = entry{value: count, expiresAt: item.expiresAt}
	return count
}

// IncrementBelow bumps the counter only while it sits below limit, holding
// the lock across the check and the increment so concurrent callers cannot
// both slip past the boundary. It returns the count observed before the
// attempt and whether the increment was applied. A counter at or above the
// limit is left untouched, so a full window expires on its original schedule.
func (s *MemoryStore) IncrementBelow(key string, limit int64, ttl time.Duration) (int64, bool) {
	if s == nil {
		return 0, false
	}
	if ttl <= 0 {
		ttl = s.defaultTTL()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	item, ok := s.entries[key]
	if !ok || now.After(item.expiresAt) {
		if limit <= 0 {
			return 0, false
		}
		s.entries[key] = entry{value: int64(1), expiresAt: now.Add(ttl)}
		return 0, true
	}
	current := asInt64(item.value)
	if current >= limit {
		return current, false
	}
	s.entries[key] = entry{value: current + 1, expiresAt: item.expiresAt}
	return current, true
}

func (s *MemoryStore) Keys() []string {
	if s == nil {
		return nil
	}
	s.sweep()
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.entries))
	for key := range s.entries {
		keys = append(keys, key)
	}
	return keys
}

func (s *MemoryStore) Size() int {
	if s == nil {
		return 0
	}
	s.sweep()
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Sweep removes every expired entry regardless of access and reports how
// many were evicted.
func (s *MemoryStore) Sweep() int {
	if s == nil {
		return 0
	}
	return s.sweep()
}

// Flush drops all entries unconditionally. Used at teardown.
func (s *MemoryStore) Flush() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.entries = map[string]entry{}
	s.mu.Unlock()
}

func (s *MemoryStore) sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for key, item := range s.entries {
		if now.After(item.expiresAt) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

func (s *MemoryStore) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *MemoryStore) defaultTTL() time.Duration {
	if s != nil && s.DefaultTTL > 0 {
		return s.DefaultTTL
	}
	return DefaultTTL
}

func asInt64(value any) int64 {
	switch v := value.(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}
