package domain

import "time"

func (e *Entity) PreviousVersion() string  { return e.GetString(FieldPrevious, "") }
func (e *Entity) NextVersion() string      { return e.GetString(FieldNext, "") }
func (e *Entity) HasPreviousVersion() bool { return e.PreviousVersion() != "" }

// HasNextVersion reports whether a newer version supersedes e.
func (e *Entity) HasNextVersion() bool { return e.NextVersion() != "" }

// Clone deep-copies the record, and aux data when cloneAux is set, into a new untracked
// entity of the same kind. The snapshot is not copied.
func (e *Entity) Clone(cloneAux bool) Managed {
	k := e.kind
	if k == nil {
		k = GenericKind
	}
	c := k.NewEntity(e.rec.Clone())
	if cloneAux {
		c.aux = e.aux.Clone()
	}
	c.assert = e.assert
	return c.Self()
}

// CreateNewVersion clones e into a successor with a fresh id and creation time and
// links the two: successor.previous = e.id, e.next = successor.id. When restoreSnapshot
// is set and e has a snapshot, e is first rolled back to it, so the superseded version
// keeps its last known good content while the successor carries the edits.
func (e *Entity) CreateNewVersion(restoreSnapshot, cloneAux bool) Managed {
	if !e.asserter().Check(e.ID() != "", "create new version: entity has no id") {
		return nil
	}

	next := e.Clone(cloneAux)
	n := next.Core()
	n.rec[FieldID] = DeriveID(e.TypeTag(), e.OwnerID())
	n.rec[FieldCreated] = NowMillis(e.now())
	for _, f := range []string{FieldUpdated, FieldEdited, FieldPublished, FieldDeleted, FieldNext} {
		delete(n.rec, f)
	}
	n.rec[FieldPrevious] = e.ID()

	if restoreSnapshot && e.HasSnapshot() {
		e.ResetFromSnapshot(false)
	}
	e.Set(FieldNext, n.ID())
	return next
}

func (e *Entity) now() time.Time {
	if d := e.cod.Load(); d != nil && d.clock != nil {
		return d.clock.Now()
	}
	return SystemClock.Now()
}
