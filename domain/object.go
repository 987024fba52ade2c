package domain

import (
	"encoding/json"
)

// Wrapper is implemented by every typed view bound to a Record.
type Wrapper interface {
	Base() *Object
}

type dirtyMarker interface {
	SetDirty() bool
}

// Object wraps a Record with typed accessors. The record is held by reference, so
// changes made through the wrapper are visible to anyone holding the record and vice versa.
// Aux data and the snapshot are side channels that never reach the wire.
type Object struct {
	rec      Record
	aux      Record
	snapshot Record

	watchers  []watcher
	nextWatch int

	marker dirtyMarker
	assert *Asserter
}

// NewObject binds rec to a new wrapper. A nil rec gets an empty record.
func NewObject(rec Record) *Object {
	if rec == nil {
		rec = Record{}
	}
	return &Object{rec: rec}
}

// Base returns o; it makes *Object a Wrapper.
func (o *Object) Base() *Object { return o }

// Record returns the wrapped record.
func (o *Object) Record() Record { return o.rec }

// SetRecord replaces the wrapped record. Watchers registered with AllFields are
// notified and the owning entity, if tracked, is marked dirty.
func (o *Object) SetRecord(rec Record) {
	if !o.asserter().NotNil("record", rec) {
		return
	}
	old := o.rec
	o.rec = rec
	o.markDirty()
	o.notify(AllFields, old, rec)
}

// ID returns the record identifier.
func (o *Object) ID() string { return o.rec.ID() }

// TypeTag returns the record type tag.
func (o *Object) TypeTag() string { return o.rec.TypeTag() }

// Has reports whether field is present.
func (o *Object) Has(field string) bool {
	_, ok := o.rec[field]
	return ok
}

// Get returns the field value or def when absent.
func (o *Object) Get(field string, def any) any {
	if v, ok := o.rec[field]; ok {
		return v
	}
	return def
}

// Set writes a field. Writing a value equal to the stored one is a no-op and reports false.
func (o *Object) Set(field string, value any) bool {
	if !o.asserter().Check(field != "", "set: empty field name") {
		return false
	}
	old, existed := o.rec[field]
	if existed && sameValue(old, value) {
		return false
	}
	o.rec[field] = value
	o.markDirty()
	o.notify(field, old, value)
	return true
}

// Unset removes a field, reporting whether it was present.
func (o *Object) Unset(field string) bool {
	old, ok := o.rec[field]
	if !ok {
		return false
	}
	delete(o.rec, field)
	o.markDirty()
	o.notify(field, old, nil)
	return true
}

// GetString returns a string field or def.
func (o *Object) GetString(field, def string) string {
	if s, ok := o.rec[field].(string); ok {
		return s
	}
	return def
}

// GetInt64 returns a numeric field truncated to int64, or def.
func (o *Object) GetInt64(field string, def int64) int64 {
	if n, ok := toInt64(o.rec[field]); ok {
		return n
	}
	return def
}

// GetBool returns a bool field or def.
func (o *Object) GetBool(field string, def bool) bool {
	if b, ok := o.rec[field].(bool); ok {
		return b
	}
	return def
}

// GetStrings returns a string list field. Non-string elements are skipped.
func (o *Object) GetStrings(field string) []string {
	return toStrings(o.rec[field])
}

// GetMap returns a nested object field or nil.
func (o *Object) GetMap(field string) map[string]any {
	switch m := o.rec[field].(type) {
	case map[string]any:
		return m
	case Record:
		return m
	}
	return nil
}

// AuxData returns the auxiliary side channel, creating it on first use.
func (o *Object) AuxData() Record {
	if o.aux == nil {
		o.aux = Record{}
	}
	return o.aux
}

// SetAuxData replaces the auxiliary side channel.
func (o *Object) SetAuxData(aux Record) { o.aux = aux }

// AuxGet reads an auxiliary value.
func (o *Object) AuxGet(key string, def any) any {
	if v, ok := o.aux[key]; ok {
		return v
	}
	return def
}

// AuxSet writes an auxiliary value. Aux writes never dirty the entity.
func (o *Object) AuxSet(key string, value any) {
	o.AuxData()[key] = value
}

// Timestamps are milliseconds since the epoch; 0 means absent.

func (o *Object) CreatedTS() int64   { return o.GetInt64(FieldCreated, 0) }
func (o *Object) UpdatedTS() int64   { return o.GetInt64(FieldUpdated, 0) }
func (o *Object) PublishedTS() int64 { return o.GetInt64(FieldPublished, 0) }
func (o *Object) EditedTS() int64    { return o.GetInt64(FieldEdited, 0) }
func (o *Object) ExpiresTS() int64   { return o.GetInt64(FieldExpires, 0) }
func (o *Object) DeletedTS() int64   { return o.GetInt64(FieldDeleted, 0) }

func (o *Object) SetCreatedTS(ms int64) bool   { return o.Set(FieldCreated, ms) }
func (o *Object) SetUpdatedTS(ms int64) bool   { return o.Set(FieldUpdated, ms) }
func (o *Object) SetPublishedTS(ms int64) bool { return o.Set(FieldPublished, ms) }
func (o *Object) SetEditedTS(ms int64) bool    { return o.Set(FieldEdited, ms) }
func (o *Object) SetExpiresTS(ms int64) bool   { return o.Set(FieldExpires, ms) }
func (o *Object) SetDeletedTS(ms int64) bool   { return o.Set(FieldDeleted, ms) }

// Visibility returns the visibility scope, or "" when none is set.
func (o *Object) Visibility() string { return o.GetString(FieldVisibility, "") }

// SetVisibility sets the visibility scope.
func (o *Object) SetVisibility(scope string) bool { return o.Set(FieldVisibility, scope) }

// IsPublicVisible reports whether the scope is public. A record without a scope counts as public.
func (o *Object) IsPublicVisible() bool {
	scope := o.Visibility()
	return scope == "" || scope == VisibilityPublic
}

// MarshalJSON emits the record only.
func (o *Object) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.rec)
}

func (o *Object) markDirty() {
	if o.marker != nil {
		o.marker.SetDirty()
	}
}

func (o *Object) asserter() *Asserter {
	if o.assert == nil {
		o.assert = NewAsserter(nil)
	}
	return o.assert
}

// SetAsserter routes this wrapper's diagnostics through a.
func (o *Object) SetAsserter(a *Asserter) { o.assert = a }

// Unwrap returns the record behind a wrapper. Records pass through unchanged; anything else yields nil.
func Unwrap(v any) Record {
	switch val := v.(type) {
	case Wrapper:
		if val == nil || isNil(val) {
			return nil
		}
		return val.Base().rec
	case Record:
		return val
	case map[string]any:
		return Record(val)
	}
	return nil
}
