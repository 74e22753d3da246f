// Package ratelimit bounds how many updates a single reply target can push
// through the dispatcher inside a fixed window. The window lives in the TTL
// store and resets implicitly when its entry expires.
package ratelimit

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-botway/cache"
	"github.com/goliatone/go-botway/core"
)

const (
	DefaultWindow    = time.Minute
	DefaultLimit     = 10
	DefaultKeyPrefix = "throttle:"
)

// ThrottledError reports a dropped update for callers that want a typed
// error rather than a decision struct.
type ThrottledError struct {
	ChatID     int64
	Count      int64
	RetryAfter time.Duration
}

func (e ThrottledError) Error() string {
	return fmt.Sprintf("ratelimit: chat %d throttled at %d updates per window", e.ChatID, e.Count)
}

func (e ThrottledError) ToServiceError() *goerrors.Error {
	metadata := map[string]any{
		"chat_id": e.ChatID,
		"count":   e.Count,
	}
	if e.RetryAfter > 0 {
		metadata["retry_after_ms"] = e.RetryAfter.Milliseconds()
	}
	return goerrors.New(e.Error(), goerrors.CategoryRateLimit).
		WithCode(http.StatusTooManyRequests).
		WithTextCode(core.BotErrorRateLimited).
		WithMetadata(metadata)
}

// FixedWindowPolicy counts updates per target id in the TTL store. A
// throttled update does not increment the counter, so throttling never
// extends itself past the window's natural expiry.
type FixedWindowPolicy struct {
	Window    time.Duration
	Limit     int
	KeyPrefix string

	store cache.Store
}

func NewFixedWindowPolicy(store cache.Store, window time.Duration, limit int) *FixedWindowPolicy {
	if window <= 0 {
		window = DefaultWindow
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &FixedWindowPolicy{
		Window:    window,
		Limit:     limit,
		KeyPrefix: DefaultKeyPrefix,
		store:     store,
	}
}

// Allow checks and advances the target's window counter. The returned count
// is the value observed before this update was added.
func (p *FixedWindowPolicy) Allow(targetID int64) core.ThrottleDecision {
	if p == nil || p.store == nil {
		return core.ThrottleDecision{Allow: true}
	}
	key := p.key(targetID)
	current, admitted := p.store.IncrementBelow(key, int64(p.limit()), p.window())
	return core.ThrottleDecision{Allow: admitted, Count: current}
}

func (p *FixedWindowPolicy) key(targetID int64) string {
	prefix := p.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return prefix + strconv.FormatInt(targetID, 10)
}

func (p *FixedWindowPolicy) limit() int {
	if p != nil && p.Limit > 0 {
		return p.Limit
	}
	return DefaultLimit
}

func (p *FixedWindowPolicy) window() time.Duration {
	if p != nil && p.Window > 0 {
		return p.Window
	}
	return DefaultWindow
}
