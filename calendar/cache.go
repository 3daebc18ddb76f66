package calendar

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// =============================================================================
// HOLIDAY CACHE - Holidays change rarely; committed days must stay fresh
// =============================================================================

// HolidaySource loads the organization's holiday list.
type HolidaySource interface {
	ListHolidays(ctx context.Context) ([]Holiday, error)
}

const holidayCacheKey = "holidays"

// CachedHolidays wraps a HolidaySource with a TTL cache. Only the holiday
// list is cached: committed leave days are per-user and recomputed whenever
// the leave history changes, so they bypass this layer entirely.
type CachedHolidays struct {
	src   HolidaySource
	cache *gocache.Cache
}

func NewCachedHolidays(src HolidaySource, ttl time.Duration) *CachedHolidays {
	return &CachedHolidays{
		src:   src,
		cache: gocache.New(ttl, 2*ttl),
	}
}

func (c *CachedHolidays) ListHolidays(ctx context.Context) ([]Holiday, error) {
	if cached, ok := c.cache.Get(holidayCacheKey); ok {
		return cached.([]Holiday), nil
	}
	holidays, err := c.src.ListHolidays(ctx)
	if err != nil {
		return nil, err
	}
	c.cache.Set(holidayCacheKey, holidays, gocache.DefaultExpiration)
	return holidays, nil
}

// Invalidate drops the cached list. Called after holiday edits so HR sees
// their change on the next read.
func (c *CachedHolidays) Invalidate() {
	c.cache.Delete(holidayCacheKey)
}

var _ HolidaySource = (*CachedHolidays)(nil)
