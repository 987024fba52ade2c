package domain

import "errors"

// Kind is the Factory for managed entities. build wraps the core Entity in a typed
// view; a nil build yields the plain Entity.
type Kind struct {
	tag   string
	build func(*Entity) Managed
}

// NewKind declares an entity kind for tag.
func NewKind(tag string, build func(*Entity) Managed) *Kind {
	return &Kind{tag: tag, build: build}
}

// GenericKind builds plain entities. It is the fallback for records whose type tag
// has no registered kind.
var GenericKind = NewKind("", nil)

func (k *Kind) TypeTag() string { return k.tag }

// New implements Factory.
func (k *Kind) New(rec Record) Wrapper { return k.NewManaged(rec) }

// NewManaged binds rec and returns the typed view.
func (k *Kind) NewManaged(rec Record) Managed {
	return k.NewEntity(rec).Self()
}

// NewEntity binds rec and returns the core entity.
func (k *Kind) NewEntity(rec Record) *Entity {
	if rec == nil {
		rec = Record{}
	}
	e := &Entity{Object: Object{rec: rec}, kind: k}
	e.marker = e
	if k.build != nil {
		e.outer = k.build(e)
	}
	return e
}

// Create builds a new entity of this kind with a derived id and creation time,
// owned by ownerID, and tracks it as new.
func (k *Kind) Create(ownerID string, clock Clock) Managed {
	if clock == nil {
		clock = SystemClock
	}
	rec := Record{
		FieldID:      DeriveID(k.tag, ownerID),
		FieldCreated: NowMillis(clock.Now()),
	}
	if k.tag != "" {
		rec[FieldType] = k.tag
	}
	if ownerID != "" {
		rec[FieldOwner] = ownerID
		rec[FieldCreator] = ownerID
	}
	m := k.NewManaged(rec)
	m.Core().EnableTrackingNew()
	return m
}

// Built-in kinds.
var (
	PostKind = NewKind("post", func(e *Entity) Managed { return &Post{Entity: e} })
	TaskKind = NewKind("task", func(e *Entity) Managed { return &Task{Entity: e} })
	UserKind = NewKind("user", func(e *Entity) Managed { return &User{Entity: e} })
)

// RegisterBuiltins registers the built-in kinds with r.
func RegisterBuiltins(r *Registry) error {
	return errors.Join(
		r.Register(PostKind),
		r.Register(TaskKind),
		r.Register(UserKind),
	)
}
