package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/goliatone/go-botway/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const activityCacheKeyPrefix = "go-botway::dispatch_activity::v1"

// CachedActivityStore serves activity listings through the repository cache
// while writes go straight to the base store and invalidate the page they
// land on.
type CachedActivityStore struct {
	base  *ActivityStore
	cache repositorycache.CacheService
}

func NewCachedActivityStore(base *ActivityStore, cacheService repositorycache.CacheService) (*CachedActivityStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base activity store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: activity cache service is required")
	}
	return &CachedActivityStore{base: base, cache: cacheService}, nil
}

// ActivityCacheKey returns the deterministic cache key for one listing page:
// go-botway::dispatch_activity::v1::<kind>::<status>::<chat_id>::<page>::<per_page>
// with each segment URL-path escaped.
func ActivityCacheKey(filter core.DispatchActivityFilter) string {
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	perPage := filter.PerPage
	if perPage <= 0 {
		perPage = 25
	}
	segments := []string{
		strings.TrimSpace(filter.Kind),
		strings.TrimSpace(filter.Status),
		fmt.Sprint(filter.ChatID),
		fmt.Sprint(page),
		fmt.Sprint(perPage),
	}
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.Join(append([]string{activityCacheKeyPrefix}, segments...), "::")
}

func (s *CachedActivityStore) Record(ctx context.Context, entry core.DispatchActivity) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached activity store is not configured")
	}
	if err := s.base.Record(ctx, entry); err != nil {
		return err
	}
	// New entries land on the first page of the unfiltered listing; drop it
	// so the next read sees them. Filtered pages age out via the cache TTL.
	return s.cache.Delete(ctx, ActivityCacheKey(core.DispatchActivityFilter{}))
}

func (s *CachedActivityStore) List(ctx context.Context, filter core.DispatchActivityFilter) (core.DispatchActivityPage, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.DispatchActivityPage{}, fmt.Errorf("sqlstore: cached activity store is not configured")
	}
	cacheKey := ActivityCacheKey(filter)
	page, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.DispatchActivityPage, error) {
		return s.base.List(ctx, filter)
	})
	if err != nil {
		return core.DispatchActivityPage{}, err
	}
	return clonePage(page), nil
}

func clonePage(page core.DispatchActivityPage) core.DispatchActivityPage {
	cloned := page
	cloned.Entries = make([]core.DispatchActivity, len(page.Entries))
	for i, entry := range page.Entries {
		copied := entry
		copied.Metadata = copyAnyMap(entry.Metadata)
		cloned.Entries[i] = copied
	}
	return cloned
}
