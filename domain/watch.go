package domain

// AllFields subscribes a watcher to every write, including record replacement.
const AllFields = "*"

// WatchFunc observes a value-changing write. old is nil when the field was absent.
type WatchFunc func(field string, old, value any)

// WatchHandle identifies a registered watcher.
type WatchHandle int

type watcher struct {
	handle WatchHandle
	field  string
	fn     WatchFunc
}

// Watch registers fn for writes to field. Watchers run serially, in registration
// order, on the writer's goroutine.
func (o *Object) Watch(field string, fn WatchFunc) WatchHandle {
	if !o.asserter().NotNil("watch func", fn) {
		return 0
	}
	o.nextWatch++
	h := WatchHandle(o.nextWatch)
	o.watchers = append(o.watchers, watcher{handle: h, field: field, fn: fn})
	return h
}

// Unwatch removes a watcher, reporting whether it was registered.
func (o *Object) Unwatch(h WatchHandle) bool {
	for i, w := range o.watchers {
		if w.handle == h {
			o.watchers = append(o.watchers[:i], o.watchers[i+1:]...)
			return true
		}
	}
	return false
}

func (o *Object) notify(field string, old, value any) {
	if len(o.watchers) == 0 {
		return
	}
	// copy so a watcher may unregister itself
	ws := append([]watcher(nil), o.watchers...)
	for _, w := range ws {
		if w.field == field || w.field == AllFields {
			w.fn(field, old, value)
		}
	}
}
