package repository

import (
	"context"

	"github.com/fastygo/entitycache/domain"
)

// RecordFilter narrows List results. Empty fields match everything.
type RecordFilter struct {
	Type    string
	OwnerID string
	Limit   int
	Offset  int
}

// RecordRepository stores entity records keyed by id. An empty type tag matches any type.
type RecordRepository interface {
	// Get returns domain.ErrObjectNotFound on a miss.
	Get(ctx context.Context, typeTag, id string) (domain.Record, error)
	// GetMany returns a slice aligned with ids; misses are nil entries.
	GetMany(ctx context.Context, typeTag string, ids []string) ([]domain.Record, error)
	Save(ctx context.Context, rec domain.Record) error
	Delete(ctx context.Context, typeTag, id string) error
}

// RecordLister is implemented by stores that can enumerate records.
type RecordLister interface {
	List(ctx context.Context, filter RecordFilter) ([]domain.Record, error)
}
