package usecase

import (
	"context"

	"github.com/fastygo/entitycache/domain"
)

// Write operations recorded by a WriteBuffer.
const (
	OperationSave   = "save"
	OperationDelete = "delete"
)

// Store is the primary storage written to when modified entities are persisted.
type Store interface {
	Save(ctx context.Context, rec domain.Record) error
	Delete(ctx context.Context, typeTag, id string) error
}

// WriteBuffer keeps writes that the primary store rejected so they can be replayed
// later. Use cases stay storage-agnostic.
type WriteBuffer interface {
	BufferSave(ctx context.Context, rec domain.Record) error
	BufferDelete(ctx context.Context, typeTag, id string) error
}
