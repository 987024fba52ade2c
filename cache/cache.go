package cache

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/fastygo/entitycache/domain"
)

// AllObjects is the bucket holding every descriptor. Per-type buckets are reserved.
const AllObjects = "*"

// Config controls a Cache.
type Config struct {
	Clock  domain.Clock
	Logger *zap.Logger
	// CoalesceRefresh shares one in-flight refetch between concurrent readers of the
	// same expired id. Off by default: each reader refetches on its own.
	CoalesceRefresh bool
}

// Stats is a point-in-time view of cache counters.
type Stats struct {
	Objects       int    `json:"objects"`
	Hits          uint64 `json:"hits"`
	Misses        uint64 `json:"misses"`
	Refreshes     uint64 `json:"refreshes"`
	RefreshErrors uint64 `json:"refresh_errors"`
}

// Cache maps identifiers to descriptors, at most one per identifier.
type Cache struct {
	mu      sync.RWMutex
	buckets map[string]map[string]*domain.Descriptor

	clock    domain.Clock
	logger   *zap.Logger
	coalesce bool
	group    singleflight.Group

	hits          atomic.Uint64
	misses        atomic.Uint64
	refreshes     atomic.Uint64
	refreshErrors atomic.Uint64
}

// New builds an empty cache.
func New(cfg Config) *Cache {
	if cfg.Clock == nil {
		cfg.Clock = domain.SystemClock
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Cache{
		buckets:  map[string]map[string]*domain.Descriptor{AllObjects: {}},
		clock:    cfg.Clock,
		logger:   cfg.Logger,
		coalesce: cfg.CoalesceRefresh,
	}
}

// Clock returns the time source shared with descriptors.
func (c *Cache) Clock() domain.Clock { return c.clock }

// Track starts tracking obj under its id. If the id is already tracked, the previous
// entity is detached and the existing descriptor is pointed at obj; its refetch
// function is replaced by refetch, so a nil refetch leaves obj without one.
// ttl follows Descriptor.SetExpiration; use domain.NoExpiration to disable expiry.
func (c *Cache) Track(obj domain.Managed, status domain.Status, ttl time.Duration, refetch domain.RefetchFunc) bool {
	if obj == nil {
		c.logger.Warn("track: nil object", zap.Stack("stack"))
		return false
	}
	id := obj.Base().ID()
	if id == "" {
		c.logger.Warn("track: object has no id", zap.String("type", obj.Base().TypeTag()), zap.Stack("stack"))
		return false
	}

	c.mu.Lock()
	bucket := c.buckets[AllObjects]
	d, ok := bucket[id]
	if ok {
		if prev := d.GetNoWait(); prev != nil && prev != obj {
			c.logger.Debug("replacing tracked object", zap.String("id", id))
		}
		d.SetObject(obj)
		d.SetStatus(status)
		d.SetRefetch(nil)
	} else {
		d = domain.NewDescriptor(c, obj, status, c.clock)
		bucket[id] = d
	}
	c.mu.Unlock()

	d.SetExpiration(ttl, refetch)
	return true
}

// Untrack drops the descriptor for id and detaches its entity.
func (c *Cache) Untrack(id string) bool {
	c.mu.Lock()
	d, ok := c.buckets[AllObjects][id]
	if ok {
		delete(c.buckets[AllObjects], id)
	}
	c.mu.Unlock()

	if !ok {
		return false
	}
	d.Release()
	return true
}

// Descriptor returns the descriptor for id, or nil.
func (c *Cache) Descriptor(id string) *domain.Descriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.buckets[AllObjects][id]
}

// GetNoWait returns the tracked entity for id, stale or not, without refetching.
func (c *Cache) GetNoWait(id string) domain.Managed {
	d := c.Descriptor(id)
	if d == nil {
		c.misses.Add(1)
		return nil
	}
	c.hits.Add(1)
	return d.GetNoWait()
}

// Get returns the tracked entity for id, refetching first when it has expired and
// doFetch is set. A failed refetch returns the stale entity and the error.
func (c *Cache) Get(ctx context.Context, id string, doFetch bool) (domain.Managed, error) {
	d := c.Descriptor(id)
	if d == nil {
		c.misses.Add(1)
		return nil, domain.ObjectNotFound("", id)
	}
	c.hits.Add(1)
	if !doFetch || !d.HasExpired() {
		return d.GetNoWait(), nil
	}
	return c.refresh(ctx, id, d, false)
}

// Refresh refetches id regardless of expiry.
func (c *Cache) Refresh(ctx context.Context, id string) (domain.Managed, error) {
	d := c.Descriptor(id)
	if d == nil {
		return nil, domain.ObjectNotFound("", id)
	}
	return c.refresh(ctx, id, d, true)
}

// RefreshExpired refetches every expired descriptor that has a refetch function and
// returns how many were refreshed.
func (c *Cache) RefreshExpired(ctx context.Context) (int, error) {
	c.mu.RLock()
	due := make(map[string]*domain.Descriptor)
	for id, d := range c.buckets[AllObjects] {
		if d.HasRefetch() && d.HasExpired() {
			due[id] = d
		}
	}
	c.mu.RUnlock()

	var errs error
	n := 0
	for id, d := range due {
		if err := ctx.Err(); err != nil {
			return n, errors.Join(errs, err)
		}
		if _, err := c.refresh(ctx, id, d, false); err != nil {
			errs = errors.Join(errs, err)
			continue
		}
		n++
	}
	return n, errs
}

func (c *Cache) refresh(ctx context.Context, id string, d *domain.Descriptor, force bool) (domain.Managed, error) {
	run := func() (domain.Managed, error) {
		if force {
			return d.Refresh(ctx)
		}
		return d.Get(ctx, true)
	}

	var (
		obj domain.Managed
		err error
	)
	if c.coalesce {
		v, e, _ := c.group.Do(id, func() (any, error) {
			return run()
		})
		obj, _ = v.(domain.Managed)
		err = e
	} else {
		obj, err = run()
	}

	c.refreshes.Add(1)
	if err != nil {
		c.refreshErrors.Add(1)
		c.logger.Warn("refresh failed, serving stale object", zap.String("id", id), zap.Error(err))
	}
	return obj, err
}

// ClearAll swaps in an empty map and returns the discarded descriptors. Entities in the
// returned map are still attached; callers release them as needed.
func (c *Cache) ClearAll() map[string]*domain.Descriptor {
	c.mu.Lock()
	old := c.buckets[AllObjects]
	c.buckets[AllObjects] = map[string]*domain.Descriptor{}
	c.mu.Unlock()
	return old
}

// Reset clears the cache and detaches every entity it held.
func (c *Cache) Reset() int {
	old := c.ClearAll()
	for _, d := range old {
		d.Release()
	}
	return len(old)
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.buckets[AllObjects])
}

// IDs lists tracked identifiers, sorted.
func (c *Cache) IDs() []string {
	c.mu.RLock()
	ids := make([]string, 0, len(c.buckets[AllObjects]))
	for id := range c.buckets[AllObjects] {
		ids = append(ids, id)
	}
	c.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

func (c *Cache) Stats() Stats {
	return Stats{
		Objects:       c.Len(),
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
		Refreshes:     c.refreshes.Load(),
		RefreshErrors: c.refreshErrors.Load(),
	}
}

var _ domain.Container = (*Cache)(nil)
