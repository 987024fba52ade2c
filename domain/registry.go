package domain

import (
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Factory builds a typed wrapper around a record.
type Factory interface {
	TypeTag() string
	New(rec Record) Wrapper
}

// Registry maps type tags to factories. A tag binds to exactly one factory; later
// registrations for the same tag are rejected and the first one stays in effect.
// Build one at process start and pass it to the components that wrap records.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	assert    *Asserter
}

// NewRegistry returns an empty registry logging to logger.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		assert:    NewAsserter(logger),
	}
}

// Asserter returns the diagnostics helper shared by wrappers built here.
func (r *Registry) Asserter() *Asserter { return r.assert }

// Register binds f under its own type tag.
func (r *Registry) Register(f Factory) error {
	if !r.assert.NotNil("factory", f) {
		return ErrInvalidRecord
	}
	return r.RegisterAs(f.TypeTag(), f)
}

// RegisterAs binds f under tag.
func (r *Registry) RegisterAs(tag string, f Factory) error {
	if !r.assert.NotNil("factory", f) || !r.assert.Check(tag != "", "register: empty type tag") {
		return ErrInvalidRecord
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.factories[tag]; ok {
		r.assert.Logger().Warn("type tag already registered", zap.String("type", tag))
		return ErrConflictingRegistration
	}
	r.factories[tag] = f
	return nil
}

// Lookup returns the factory for tag, or nil.
func (r *Registry) Lookup(tag string) Factory {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.factories[tag]
}

// Deregister removes tag, reporting whether it was bound.
func (r *Registry) Deregister(tag string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[tag]; !ok {
		return false
	}
	delete(r.factories, tag)
	return true
}

// Tags lists registered tags, sorted.
func (r *Registry) Tags() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tags := make([]string, 0, len(r.factories))
	for tag := range r.factories {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// Count returns the number of registered tags.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.factories)
}

// Wrap binds a record to the factory registered for its type tag, falling back to
// fallback. A value that is already a Wrapper is returned as is. When no factory
// applies the result is (nil, false) and the caller keeps the raw record.
func (r *Registry) Wrap(v any, fallback Factory) (Wrapper, bool) {
	if w, ok := v.(Wrapper); ok && !isNil(w) {
		return w, true
	}
	rec := Unwrap(v)
	if rec == nil {
		r.assert.NotNil("record", v)
		return nil, false
	}

	f := r.Lookup(rec.TypeTag())
	if f == nil {
		f = fallback
	}
	if f == nil {
		r.assert.Logger().Warn("no factory for type tag", zap.String("type", rec.TypeTag()), zap.String("id", rec.ID()))
		return nil, false
	}

	w := f.New(rec)
	if w == nil {
		return nil, false
	}
	w.Base().SetAsserter(r.assert)
	return w, true
}
