package domain

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Status is the lifecycle state of a tracked entity.
type Status int

const (
	StatusNone Status = iota
	StatusNew
	StatusDirty
	StatusDeleted
)

func (s Status) String() string {
	switch s {
	case StatusNone:
		return "none"
	case StatusNew:
		return "new"
	case StatusDirty:
		return "dirty"
	case StatusDeleted:
		return "deleted"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// NoExpiration disables TTL handling for a descriptor.
const NoExpiration time.Duration = -1

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock reads the wall clock.
var SystemClock Clock = systemClock{}

// Container is the cache owning a descriptor.
type Container interface {
	Untrack(id string) bool
}

// RefetchFunc loads a fresh copy of current. A nil result with a nil error keeps current.
type RefetchFunc func(ctx context.Context, current Managed) (Managed, error)

// Descriptor tracks one managed entity: its lifecycle status, an optional TTL and the
// function used to refresh it once expired. It is the only path from a cache to the entity.
type Descriptor struct {
	mu        sync.Mutex
	container Container
	object    Managed
	status    Status
	ttl       time.Duration
	expiresAt time.Time
	refetch   RefetchFunc
	clock     Clock
}

// NewDescriptor attaches a descriptor to obj with the given initial status.
// container may be nil for an entity tracked outside any cache.
func NewDescriptor(container Container, obj Managed, status Status, clock Clock) *Descriptor {
	if clock == nil {
		clock = SystemClock
	}
	d := &Descriptor{
		container: container,
		status:    status,
		ttl:       NoExpiration,
		clock:     clock,
	}
	if obj != nil && !isNil(obj) {
		d.object = obj
		obj.Core().cod.Store(d)
	}
	return d
}

// Container returns the owning cache, or nil.
func (d *Descriptor) Container() Container {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.container
}

// GetNoWait returns the tracked entity without checking expiry.
func (d *Descriptor) GetNoWait() Managed {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.object
}

// Get returns the tracked entity. When it has expired and doFetch is set, the refetch
// function runs first and its result replaces the tracked entity. A failed refetch
// returns the stale entity together with the error.
func (d *Descriptor) Get(ctx context.Context, doFetch bool) (Managed, error) {
	d.mu.Lock()
	obj := d.object
	stale := doFetch && d.refetch != nil && d.expiredLocked()
	d.mu.Unlock()

	if !stale {
		return obj, nil
	}
	return d.Refresh(ctx)
}

// Refresh runs the refetch function unconditionally and restarts the TTL window.
func (d *Descriptor) Refresh(ctx context.Context) (Managed, error) {
	d.mu.Lock()
	cur, fn := d.object, d.refetch
	d.mu.Unlock()

	if fn == nil {
		return cur, nil
	}
	next, err := fn(ctx, cur)
	if err != nil {
		return cur, err
	}
	if next != nil && !isNil(next) {
		d.SetObject(next)
		cur = next
	}

	d.mu.Lock()
	d.restartLocked()
	d.mu.Unlock()
	return cur, nil
}

// SetObject points the descriptor at obj, detaching the previous entity first.
func (d *Descriptor) SetObject(obj Managed) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.setObjectLocked(obj)
}

func (d *Descriptor) setObjectLocked(obj Managed) {
	if d.object == obj {
		return
	}
	if d.object != nil {
		d.object.Core().cod.CompareAndSwap(d, nil)
	}
	d.object = obj
	if obj != nil && !isNil(obj) {
		obj.Core().cod.Store(d)
	}
}

// Release detaches the entity and drops all references.
func (d *Descriptor) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.setObjectLocked(nil)
	d.container = nil
	d.refetch = nil
}

func (d *Descriptor) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

// SetStatus forces a status, bypassing transition rules.
func (d *Descriptor) SetStatus(s Status) {
	d.mu.Lock()
	d.status = s
	d.mu.Unlock()
}

// SetDirty moves a clean entity to dirty. New and deleted entities keep their status.
func (d *Descriptor) SetDirty() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.status != StatusNone {
		return d.status == StatusDirty
	}
	d.status = StatusDirty
	return true
}

// ClearDirty returns a dirty or new entity to clean.
func (d *Descriptor) ClearDirty() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.status != StatusDirty && d.status != StatusNew {
		return false
	}
	d.status = StatusNone
	return true
}

func (d *Descriptor) SetDeleted() {
	d.SetStatus(StatusDeleted)
}

func (d *Descriptor) IsDirty() bool   { return d.Status() == StatusDirty }
func (d *Descriptor) IsNew() bool     { return d.Status() == StatusNew }
func (d *Descriptor) IsDeleted() bool { return d.Status() == StatusDeleted }

// IsModified reports new or dirty.
func (d *Descriptor) IsModified() bool {
	s := d.Status()
	return s == StatusNew || s == StatusDirty
}

// SetExpiration sets a sliding TTL starting now. A negative ttl never expires; zero
// expires immediately. refetch, when non-nil, replaces the refresh function.
func (d *Descriptor) SetExpiration(ttl time.Duration, refetch RefetchFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ttl = ttl
	if refetch != nil {
		d.refetch = refetch
	}
	d.restartLocked()
}

// SetRefetch replaces the refresh function; nil removes it.
func (d *Descriptor) SetRefetch(refetch RefetchFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.refetch = refetch
}

// TTL returns the configured TTL, or NoExpiration.
func (d *Descriptor) TTL() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ttl
}

// ExpiresAt returns the absolute expiry, zero when the entity never expires.
func (d *Descriptor) ExpiresAt() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.expiresAt
}

// HasRefetch reports whether a refresh function is set.
func (d *Descriptor) HasRefetch() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.refetch != nil
}

func (d *Descriptor) HasExpired() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.expiredLocked()
}

func (d *Descriptor) expiredLocked() bool {
	if d.ttl < 0 {
		return false
	}
	return !d.clock.Now().Before(d.expiresAt)
}

func (d *Descriptor) restartLocked() {
	if d.ttl < 0 {
		d.expiresAt = time.Time{}
		return
	}
	d.expiresAt = d.clock.Now().Add(d.ttl)
}
