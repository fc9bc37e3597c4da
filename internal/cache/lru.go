package cache

import (
	"container/list"
	"sync"
	"time"
)

// LRU is a size-bounded cache whose entries also expire after ttl. An
// expired entry counts as a miss and is dropped on access.
type LRU[T any] struct {
	mu    sync.Mutex
	limit int
	ttl   time.Duration
	index map[string]*list.Element
	order *list.List // front is most recently used
	now   func() time.Time

	hits, misses uint64
}

type entry[T any] struct {
	key      string
	value    T
	deadline time.Time
}

func NewLRU[T any](limit int, ttl time.Duration) *LRU[T] {
	if limit < 1 {
		limit = 1
	}
	return &LRU[T]{
		limit: limit,
		ttl:   ttl,
		index: make(map[string]*list.Element),
		order: list.New(),
		now:   time.Now,
	}
}

// lookup must be called with c.mu held.
func (c *LRU[T]) lookup(key string) (T, bool) {
	el, ok := c.index[key]
	if ok && c.now().After(el.Value.(*entry[T]).deadline) {
		c.drop(el)
		ok = false
	}
	if !ok {
		c.misses++
		var zero T
		return zero, false
	}
	c.hits++
	c.order.MoveToFront(el)
	return el.Value.(*entry[T]).value, true
}

// store must be called with c.mu held.
func (c *LRU[T]) store(key string, value T) {
	e := &entry[T]{key: key, value: value, deadline: c.now().Add(c.ttl)}
	if el, ok := c.index[key]; ok {
		el.Value = e
		c.order.MoveToFront(el)
		return
	}
	c.index[key] = c.order.PushFront(e)
	for c.order.Len() > c.limit {
		c.drop(c.order.Back())
	}
}

func (c *LRU[T]) drop(el *list.Element) {
	delete(c.index, el.Value.(*entry[T]).key)
	c.order.Remove(el)
}

func (c *LRU[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lookup(key)
}

func (c *LRU[T]) Set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store(key, value)
}

// GetOrLoad returns the cached value for key, calling load and caching its
// result on a miss. load runs under the cache lock and must not call back
// into the cache.
func (c *LRU[T]) GetOrLoad(key string, load func() T) T {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.lookup(key); ok {
		return v
	}
	v := load()
	c.store(key, v)
	return v
}

// CleanExpired drops every expired entry and reports how many went.
func (c *LRU[T]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	n := 0
	for el := c.order.Back(); el != nil; {
		prev := el.Prev()
		if now.After(el.Value.(*entry[T]).deadline) {
			c.drop(el)
			n++
		}
		el = prev
	}
	return n
}

func (c *LRU[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.index)
}

func (c *LRU[T]) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
