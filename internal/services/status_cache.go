package services

import (
	"strconv"
	"time"

	"duetrack/internal/cache"
	"duetrack/internal/core"
	"duetrack/internal/recurrence"
)

// BillStatus is the resolved state of a bill on one day.
type BillStatus struct {
	Status       core.Status
	NextDueDate  time.Time
	DaysUntilDue int
}

// StatusCache memoizes resolved statuses. Entries are keyed on the bill id,
// the bill version and the day, so any change to the bill or its payments
// and any day change produce a fresh key.
type StatusCache struct {
	entries *cache.LRU[BillStatus]
}

func NewStatusCache(size int, ttl time.Duration) *StatusCache {
	return &StatusCache{entries: cache.NewLRU[BillStatus](size, ttl)}
}

func statusKey(b core.Bill, today time.Time) string {
	return b.ID + ":" + strconv.FormatInt(b.Version, 10) + ":" + today.Format(time.DateOnly)
}

// Resolve returns the cached status or computes and stores it.
func (c *StatusCache) Resolve(b core.Bill, today time.Time) BillStatus {
	return c.entries.GetOrLoad(statusKey(b, today), func() BillStatus {
		due := recurrence.NextDueDate(b, today)
		return BillStatus{
			Status:       recurrence.ResolveStatus(b, today),
			NextDueDate:  due,
			DaysUntilDue: recurrence.DaysBetween(today, due),
		}
	})
}

// CleanExpired lets a cache.Manager sweep the cache.
func (c *StatusCache) CleanExpired() int {
	return c.entries.CleanExpired()
}

func (c *StatusCache) Stats() (hits, misses uint64) {
	return c.entries.Stats()
}

var _ cache.Cleaner = (*StatusCache)(nil)
