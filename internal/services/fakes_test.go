package services

import (
	"context"
	"sort"
	"sync"

	"github.com/fastygo/entitycache/domain"
	"github.com/fastygo/entitycache/repository"
)

// memRepo is an in-memory RecordRepository. Setting err makes every call fail.
type memRepo struct {
	mu    sync.Mutex
	recs  map[string]domain.Record
	err   error
	gets  int
	saves int
}

func newMemRepo(recs ...domain.Record) *memRepo {
	r := &memRepo{recs: map[string]domain.Record{}}
	for _, rec := range recs {
		r.recs[rec.ID()] = rec
	}
	return r
}

func (r *memRepo) Get(_ context.Context, typeTag, id string) (domain.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gets++
	if r.err != nil {
		return nil, r.err
	}
	rec, ok := r.recs[id]
	if !ok || (typeTag != "" && rec.TypeTag() != typeTag) {
		return nil, domain.ObjectNotFound(typeTag, id)
	}
	return rec.Clone(), nil
}

func (r *memRepo) GetMany(ctx context.Context, typeTag string, ids []string) ([]domain.Record, error) {
	if r.failing() {
		return nil, r.err
	}
	out := make([]domain.Record, len(ids))
	for i, id := range ids {
		if rec, err := r.Get(ctx, typeTag, id); err == nil {
			out[i] = rec
		}
	}
	return out, nil
}

func (r *memRepo) Save(_ context.Context, rec domain.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves++
	if r.err != nil {
		return r.err
	}
	r.recs[rec.ID()] = rec.Clone()
	return nil
}

func (r *memRepo) Delete(_ context.Context, typeTag, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if _, ok := r.recs[id]; !ok {
		return domain.ObjectNotFound(typeTag, id)
	}
	delete(r.recs, id)
	return nil
}

func (r *memRepo) List(_ context.Context, filter repository.RecordFilter) ([]domain.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	var out []domain.Record
	for _, rec := range r.recs {
		if filter.Type == "" || rec.TypeTag() == filter.Type {
			out = append(out, rec.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out, nil
}

func (r *memRepo) has(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.recs[id]
	return ok
}

func (r *memRepo) failing() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err != nil
}

type tierSet map[string]bool

func (s tierSet) TierOnline(name string) bool {
	online, ok := s[name]
	return !ok || online
}

type onlineFlag bool

func (f onlineFlag) IsOnline() bool { return bool(f) }

func rec(id, typeTag string) domain.Record {
	return domain.Record{domain.FieldID: id, domain.FieldType: typeTag, "title": "t-" + id}
}

var (
	_ repository.RecordRepository = (*memRepo)(nil)
	_ repository.RecordLister     = (*memRepo)(nil)
)
