package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fastygo/entitycache/domain"
	"github.com/fastygo/entitycache/internal/infrastructure/buffer"
	"github.com/fastygo/entitycache/repository"
	"github.com/fastygo/entitycache/usecase"
)

// ConnectionHealth abstracts the connection monitor functionality.
type ConnectionHealth interface {
	IsOnline() bool
}

// ProcessorConfig controls how frequently the buffer is drained.
type ProcessorConfig struct {
	Interval   time.Duration
	BatchSize  int
	MaxRetries int
	// MaxAge drops items that have waited longer than this. Zero keeps them.
	MaxAge time.Duration
}

// BufferProcessor replays buffered record writes into the primary store.
type BufferProcessor struct {
	store   *buffer.Store
	monitor ConnectionHealth
	target  repository.RecordRepository
	logger  *zap.Logger
	cron    *cron.Cron
	cfg     ProcessorConfig
}

func NewBufferProcessor(
	store *buffer.Store,
	monitor ConnectionHealth,
	target repository.RecordRepository,
	logger *zap.Logger,
	cfg ProcessorConfig,
) *BufferProcessor {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	bp := &BufferProcessor{
		store:   store,
		monitor: monitor,
		target:  target,
		logger:  logger,
		cfg:     cfg,
		cron:    cron.New(cron.WithSeconds()),
	}

	schedule := fmt.Sprintf("@every %ds", everySeconds(cfg.Interval))
	_, _ = bp.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Interval)
		defer cancel()
		if _, err := bp.Drain(ctx); err != nil {
			bp.logger.Error("buffer drain failed", zap.Error(err))
		}
	})

	return bp
}

// Start launches the cron scheduler.
func (bp *BufferProcessor) Start() {
	if bp == nil || bp.cron == nil {
		return
	}
	bp.cron.Start()
	bp.logger.Info("buffer processor started")
}

// Stop gracefully stops the scheduler.
func (bp *BufferProcessor) Stop(ctx context.Context) {
	if bp == nil || bp.cron == nil {
		return
	}
	stopCtx := bp.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	bp.logger.Info("buffer processor stopped")
}

// Drain replays one batch and reports how many items reached the primary store.
func (bp *BufferProcessor) Drain(ctx context.Context) (int, error) {
	if bp == nil || bp.store == nil {
		return 0, nil
	}
	if bp.monitor != nil && !bp.monitor.IsOnline() {
		bp.logger.Debug("skipping buffer drain (offline)")
		return 0, nil
	}
	if bp.cfg.MaxAge > 0 {
		if n, err := bp.store.Cleanup(time.Now().Add(-bp.cfg.MaxAge)); err != nil {
			bp.logger.Warn("buffer cleanup failed", zap.Error(err))
		} else if n > 0 {
			bp.logger.Warn("dropped stale buffer items", zap.Int("count", n))
		}
	}

	items, err := bp.store.GetBatch(bp.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	replayed := 0
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return replayed, err
		}
		if err := bp.replay(ctx, item); err != nil {
			bp.logger.Error("failed to replay buffer item",
				zap.String("item_id", item.ID),
				zap.String("record_id", item.RecordID),
				zap.String("type", item.TypeTag),
				zap.Error(err))

			item.Retries++
			if item.Retries >= bp.cfg.MaxRetries {
				bp.logger.Warn("dropping buffer item (max retries reached)", zap.String("item_id", item.ID))
				_ = bp.store.Remove(item)
				continue
			}
			if err := bp.store.Requeue(item); err != nil {
				bp.logger.Error("failed to requeue buffer item", zap.Error(err))
			}
			continue
		}

		replayed++
		if err := bp.store.Remove(item); err != nil {
			bp.logger.Warn("failed to purge replayed buffer item", zap.Error(err))
		}
	}
	return replayed, nil
}

// Enqueue stores a write for later replay.
func (bp *BufferProcessor) Enqueue(item buffer.Item) error {
	if bp == nil || bp.store == nil {
		return errors.New("buffer processor not configured")
	}
	return bp.store.Enqueue(item)
}

// Size returns the number of buffered items.
func (bp *BufferProcessor) Size() int {
	if bp == nil || bp.store == nil {
		return 0
	}
	size, err := bp.store.Size()
	if err != nil {
		return 0
	}
	return size
}

func (bp *BufferProcessor) replay(ctx context.Context, item buffer.Item) error {
	if bp.target == nil {
		return errors.New("no replay target configured")
	}
	switch item.Operation {
	case usecase.OperationSave:
		rec, err := domain.DecodeRecord(item.Data)
		if err != nil {
			return err
		}
		return bp.target.Save(ctx, rec)
	case usecase.OperationDelete:
		err := bp.target.Delete(ctx, item.TypeTag, item.RecordID)
		if errors.Is(err, domain.ErrObjectNotFound) {
			return nil
		}
		return err
	default:
		return fmt.Errorf("unsupported operation %s", item.Operation)
	}
}

func everySeconds(d time.Duration) int {
	if s := int(d.Seconds()); s > 0 {
		return s
	}
	return 1
}
