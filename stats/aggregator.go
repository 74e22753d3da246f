// Package stats derives usage counters from the shared TTL store. Nothing
// here is persisted separately; every value is either an incrementing counter
// with a fixed ttl or recomputed on read from the live key space.
package stats

import (
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-botway/cache"
	"github.com/goliatone/go-botway/core"
)

const (
	KeyTotalMessages = "stats:total_messages"
	KeyErrors24h     = "stats:errors_24h"
	KeyLastActivity  = "stats:last_activity"

	senderKeyPrefix = "stats:user:"
	lastSeenSuffix  = ":last_seen"
	userKeyPrefix   = "user:"

	totalMessagesTTL = 7 * 24 * time.Hour
	errorsTTL        = 24 * time.Hour
	senderTTL        = 24 * time.Hour
)

// Aggregator records message volume and sender activity in the TTL store.
// Sender keys self-expire after 24h of inactivity, so the active-sender count
// is always a snapshot of "active in the last 24h".
type Aggregator struct {
	Now func() time.Time

	store cache.Store
}

func NewAggregator(store cache.Store) *Aggregator {
	return &Aggregator{store: store}
}

// RecordMessage bumps the total counter and stamps sender and global
// activity. Recording happens before throttling and is independent of how
// dispatch concludes.
func (a *Aggregator) RecordMessage(senderID int64, hasSender bool) {
	if a == nil || a.store == nil {
		return
	}
	now := a.now()
	a.store.Increment(KeyTotalMessages, totalMessagesTTL)
	a.store.Set(KeyLastActivity, now, totalMessagesTTL)
	if hasSender {
		id := strconv.FormatInt(senderID, 10)
		a.store.Set(senderKeyPrefix+id, now, senderTTL)
		a.store.Set(userKeyPrefix+id+lastSeenSuffix, now, senderTTL)
	}
}

// RecordError bumps the rolling 24h error counter.
func (a *Aggregator) RecordError() {
	if a == nil || a.store == nil {
		return
	}
	a.store.Increment(KeyErrors24h, errorsTTL)
}

// Snapshot recomputes the usage view from the store's current key space.
func (a *Aggregator) Snapshot() core.UsageSnapshot {
	if a == nil || a.store == nil {
		return core.UsageSnapshot{}
	}
	snapshot := core.UsageSnapshot{}
	if value, ok := a.store.Get(KeyTotalMessages); ok {
		snapshot.TotalMessages = asInt64(value)
	}
	if value, ok := a.store.Get(KeyErrors24h); ok {
		snapshot.Errors24h = asInt64(value)
	}
	if value, ok := a.store.Get(KeyLastActivity); ok {
		if at, isTime := value.(time.Time); isTime {
			snapshot.LastActivity = at
		}
	}
	for _, key := range a.store.Keys() {
		if strings.HasPrefix(key, senderKeyPrefix) {
			snapshot.ActiveSenders++
		}
	}
	return snapshot
}

func (a *Aggregator) now() time.Time {
	if a != nil && a.Now != nil {
		return a.Now().UTC()
	}
	return time.Now().UTC()
}

func asInt64(value any) int64 {
	switch v := value.(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}
