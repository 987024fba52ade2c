package services

import (
	"context"
	"encoding/json"

	"github.com/fastygo/entitycache/domain"
	"github.com/fastygo/entitycache/internal/infrastructure/buffer"
	"github.com/fastygo/entitycache/usecase"
)

// Deletes replay ahead of saves.
const (
	savePriority   = 3
	deletePriority = 2
)

type BufferBridge struct {
	processor *BufferProcessor
}

func NewBufferBridge(processor *BufferProcessor) *BufferBridge {
	return &BufferBridge{processor: processor}
}

func (b *BufferBridge) BufferSave(_ context.Context, rec domain.Record) error {
	if b.processor == nil || rec == nil || rec.ID() == "" {
		return domain.ErrInvalidRecord
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return b.processor.Enqueue(buffer.Item{
		RecordID:  rec.ID(),
		TypeTag:   rec.TypeTag(),
		Operation: usecase.OperationSave,
		Data:      payload,
		Priority:  savePriority,
	})
}

func (b *BufferBridge) BufferDelete(_ context.Context, typeTag, id string) error {
	if b.processor == nil || id == "" {
		return domain.ErrInvalidRecord
	}
	return b.processor.Enqueue(buffer.Item{
		RecordID:  id,
		TypeTag:   typeTag,
		Operation: usecase.OperationDelete,
		Priority:  deletePriority,
	})
}

var _ usecase.WriteBuffer = (*BufferBridge)(nil)
