package domain

import "sort"

// CreateSnapshot stores a deep copy of the current record. An existing snapshot is kept
// unless overwrite is set; the result reports whether a snapshot was taken.
func (o *Object) CreateSnapshot(overwrite bool) bool {
	if o.snapshot != nil && !overwrite {
		return false
	}
	o.snapshot = o.rec.Clone()
	return true
}

// HasSnapshot reports whether a snapshot exists.
func (o *Object) HasSnapshot() bool { return o.snapshot != nil }

// SnapshotData returns the snapshot record, or nil.
func (o *Object) SnapshotData() Record { return o.snapshot }

// ClearSnapshot drops the snapshot.
func (o *Object) ClearSnapshot() { o.snapshot = nil }

// ResetFromSnapshot replaces the live record with a copy of the snapshot. The replacement
// dirties a tracked entity; pass clearDirty to reset the lifecycle status afterwards.
func (o *Object) ResetFromSnapshot(clearDirty bool) bool {
	if !o.asserter().Check(o.snapshot != nil, "reset from snapshot: no snapshot") {
		return false
	}
	o.SetRecord(o.snapshot.Clone())
	if clearDirty {
		if c, ok := o.marker.(interface{ ClearDirty() bool }); ok {
			c.ClearDirty()
		}
	}
	return true
}

// ChangedFromSnapshot reports whether field differs from its snapshot value.
// Without a snapshot every present field counts as changed.
func (o *Object) ChangedFromSnapshot(field string) bool {
	if o.snapshot == nil {
		return o.Has(field)
	}
	cur, inCur := o.rec[field]
	prev, inPrev := o.snapshot[field]
	if inCur != inPrev {
		return true
	}
	return inCur && !sameValue(cur, prev)
}

// Delta lists the fields that differ from the snapshot, sorted.
func (o *Object) Delta() []string {
	seen := make(map[string]struct{}, len(o.rec))
	for k := range o.rec {
		seen[k] = struct{}{}
	}
	for k := range o.snapshot {
		seen[k] = struct{}{}
	}
	var out []string
	for k := range seen {
		if o.ChangedFromSnapshot(k) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
