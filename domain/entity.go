package domain

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Managed is implemented by wrappers built on Entity.
type Managed interface {
	Wrapper
	Core() *Entity
}

// Entity is a wrapper with identity, ownership, tags, ACL and a version chain.
// Its lifecycle state lives in an attached Descriptor.
type Entity struct {
	Object

	kind  *Kind
	outer Managed
	cod   atomic.Pointer[Descriptor]
	mu    sync.RWMutex
}

// NewEntity binds rec to a plain Entity.
func NewEntity(rec Record) *Entity {
	return GenericKind.NewEntity(rec)
}

// Core returns e; it makes *Entity Managed.
func (e *Entity) Core() *Entity { return e }

// Kind returns the factory that built e.
func (e *Entity) Kind() *Kind { return e.kind }

// SetID sets the identifier.
func (e *Entity) SetID(id string) bool { return e.Set(FieldID, id) }

func (e *Entity) OwnerID() string             { return e.GetString(FieldOwner, "") }
func (e *Entity) SetOwnerID(id string) bool   { return e.Set(FieldOwner, id) }
func (e *Entity) CreatorID() string           { return e.GetString(FieldCreator, "") }
func (e *Entity) SetCreatorID(id string) bool { return e.Set(FieldCreator, id) }

// TTLMillis returns the record's own ttl field in milliseconds.
func (e *Entity) TTLMillis() (int64, bool) {
	return toInt64(e.rec[FieldTTL])
}

// DeriveID builds an identifier of the form {ownerID}_{token}, or {token} without an
// owner. The token is a random UUID without dashes; collisions are unlikely, not impossible.
// The type tag does not change the format.
func DeriveID(_ string, ownerID string) string {
	token := strings.ReplaceAll(uuid.NewString(), "-", "")
	if ownerID == "" {
		return token
	}
	return ownerID + "_" + token
}

// Tracking

// Descriptor returns the attached descriptor, or nil when untracked.
func (e *Entity) Descriptor() *Descriptor { return e.cod.Load() }

// EnableTrackingNew attaches a descriptor in the new state.
func (e *Entity) EnableTrackingNew() bool { return e.EnableTracking(StatusNew) }

// EnableTracking attaches a fresh descriptor with status. An existing descriptor is kept
// and the call reports false.
func (e *Entity) EnableTracking(status Status) bool {
	if e.cod.Load() != nil {
		return false
	}
	NewDescriptor(nil, e.Self(), status, nil)
	return true
}

// Detach clears the link to the descriptor. The descriptor itself is left to its owner.
func (e *Entity) Detach() { e.cod.Store(nil) }

// IsTracked reports whether a descriptor is attached.
func (e *Entity) IsTracked() bool { return e.cod.Load() != nil }

// IsCached reports whether the attached descriptor belongs to a cache.
func (e *Entity) IsCached() bool {
	d := e.cod.Load()
	return d != nil && d.Container() != nil
}

// Status returns the lifecycle status and false when untracked.
func (e *Entity) Status() (Status, bool) {
	d := e.cod.Load()
	if d == nil {
		return StatusNone, false
	}
	return d.Status(), true
}

func (e *Entity) SetDirty() bool {
	d := e.cod.Load()
	if d == nil {
		return false
	}
	return d.SetDirty()
}

func (e *Entity) ClearDirty() bool {
	d := e.cod.Load()
	if d == nil {
		return false
	}
	return d.ClearDirty()
}

func (e *Entity) SetDeleted() bool {
	d := e.cod.Load()
	if d == nil {
		return false
	}
	d.SetDeleted()
	return true
}

func (e *Entity) IsDirty() bool {
	d := e.cod.Load()
	return d != nil && d.IsDirty()
}

func (e *Entity) IsNew() bool {
	d := e.cod.Load()
	return d != nil && d.IsNew()
}

func (e *Entity) IsDeleted() bool {
	d := e.cod.Load()
	return d != nil && d.IsDeleted()
}

func (e *Entity) IsModified() bool {
	d := e.cod.Load()
	return d != nil && d.IsModified()
}

// Locking. A cached entity is shared by every reader of its id: writers go through
// Update and readers through View. fn must not call back into Update or View.

// Update runs fn holding the write lock.
func (e *Entity) Update(fn func(*Entity)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e)
}

// View runs fn holding the read lock.
func (e *Entity) View(fn func(*Entity)) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	fn(e)
}

// CopyRecord returns a deep copy of the record taken under the read lock.
func (e *Entity) CopyRecord() Record {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.rec.Clone()
}

// Self returns the outermost typed wrapper built around e.
func (e *Entity) Self() Managed {
	if e.outer != nil {
		return e.outer
	}
	return e
}
