package directory

import (
	"container/list"
	"context"
	"strconv"
	"sync"
	"time"

	"corrflow/internal/store"
)

// Key identifies one cached lookup.
type Key string

// DivisionKey returns the cache key of a division manager lookup.
func DivisionKey(id int64) Key { return Key("division:" + strconv.FormatInt(id, 10)) }

// DepartmentKey returns the cache key of a department manager lookup.
func DepartmentKey(id int64) Key { return Key("department:" + strconv.FormatInt(id, 10)) }

// UserKey returns the cache key of a user lookup.
func UserKey(id int64) Key { return Key("user:" + strconv.FormatInt(id, 10)) }

type managerValue struct {
	id int64
	ok bool
}

type entry struct {
	key     Key
	value   any
	expires time.Time
}

// CacheStats reports cache effectiveness.
type CacheStats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Size      int
}

// CachedDirectory decorates a Directory with a bounded LRU cache. Entries
// expire after ttl; the least recently used entry is evicted once size
// entries are held. Errors are never cached.
type CachedDirectory struct {
	next Directory
	ttl  time.Duration
	size int
	now  func() time.Time

	mu    sync.Mutex
	order *list.List
	items map[Key]*list.Element
	stats CacheStats
}

// CacheOption customizes a CachedDirectory.
type CacheOption func(*CachedDirectory)

// WithClock replaces the time source, for tests.
func WithClock(now func() time.Time) CacheOption {
	return func(c *CachedDirectory) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCachedDirectory wraps next with a cache holding at most size entries for ttl each.
func NewCachedDirectory(next Directory, size int, ttl time.Duration, opts ...CacheOption) *CachedDirectory {
	if size <= 0 {
		size = 1
	}
	c := &CachedDirectory{
		next:  next,
		ttl:   ttl,
		size:  size,
		now:   time.Now,
		order: list.New(),
		items: make(map[Key]*list.Element, size),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DivisionManager implements Directory.
func (c *CachedDirectory) DivisionManager(ctx context.Context, divisionID int64) (int64, bool, error) {
	return c.manager(ctx, DivisionKey(divisionID), func() (int64, bool, error) {
		return c.next.DivisionManager(ctx, divisionID)
	})
}

// DepartmentManager implements Directory.
func (c *CachedDirectory) DepartmentManager(ctx context.Context, departmentID int64) (int64, bool, error) {
	return c.manager(ctx, DepartmentKey(departmentID), func() (int64, bool, error) {
		return c.next.DepartmentManager(ctx, departmentID)
	})
}

// User implements Directory. Callers receive a copy they may modify.
func (c *CachedDirectory) User(ctx context.Context, userID int64) (*store.User, error) {
	key := UserKey(userID)
	if value, ok := c.get(key); ok {
		return copyUser(value.(*store.User)), nil
	}
	user, err := c.next.User(ctx, userID)
	if err != nil {
		return nil, err
	}
	c.put(key, copyUser(user))
	return user, nil
}

func (c *CachedDirectory) manager(_ context.Context, key Key, load func() (int64, bool, error)) (int64, bool, error) {
	if value, ok := c.get(key); ok {
		mv := value.(managerValue)
		return mv.id, mv.ok, nil
	}
	id, ok, err := load()
	if err != nil {
		return 0, false, err
	}
	c.put(key, managerValue{id: id, ok: ok})
	return id, ok, nil
}

// Invalidate drops the given keys. Unknown keys are ignored.
func (c *CachedDirectory) Invalidate(keys ...Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		if el, ok := c.items[key]; ok {
			c.order.Remove(el)
			delete(c.items, key)
		}
	}
}

// Purge drops every entry.
func (c *CachedDirectory) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.items = make(map[Key]*list.Element, c.size)
}

// Stats returns a snapshot of cache counters.
func (c *CachedDirectory) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	stats := c.stats
	stats.Size = c.order.Len()
	return stats
}

func (c *CachedDirectory) get(key Key) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key]
	if !ok {
		c.stats.Misses++
		return nil, false
	}
	ent := el.Value.(*entry)
	if c.ttl > 0 && !c.now().Before(ent.expires) {
		c.order.Remove(el)
		delete(c.items, key)
		c.stats.Misses++
		return nil, false
	}
	c.order.MoveToFront(el)
	c.stats.Hits++
	return ent.value, true
}

func (c *CachedDirectory) put(key Key, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	expires := c.now().Add(c.ttl)
	if el, ok := c.items[key]; ok {
		ent := el.Value.(*entry)
		ent.value = value
		ent.expires = expires
		c.order.MoveToFront(el)
		return
	}
	c.items[key] = c.order.PushFront(&entry{key: key, value: value, expires: expires})
	for c.order.Len() > c.size {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*entry).key)
		c.stats.Evictions++
	}
}

func copyUser(u *store.User) *store.User {
	if u == nil {
		return nil
	}
	clone := *u
	return &clone
}
