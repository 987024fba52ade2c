package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fastygo/entitycache/usecase/objects"
)

// ExpiredRefresher refetches expired cache entries.
type ExpiredRefresher interface {
	RefreshExpired(ctx context.Context) (int, error)
}

// Flusher persists modified entities.
type Flusher interface {
	Flush(ctx context.Context) (objects.FlushResult, error)
}

type RefresherConfig struct {
	Interval time.Duration
	// Flusher is optional; when set every sweep also persists modified entities.
	Flusher Flusher
}

// Refresher periodically sweeps the cache for expired entries.
type Refresher struct {
	target  ExpiredRefresher
	flusher Flusher
	logger  *zap.Logger
	cron    *cron.Cron
	cfg     RefresherConfig
}

func NewRefresher(target ExpiredRefresher, logger *zap.Logger, cfg RefresherConfig) *Refresher {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Refresher{
		target:  target,
		flusher: cfg.Flusher,
		logger:  logger,
		cfg:     cfg,
		cron:    cron.New(cron.WithSeconds()),
	}

	schedule := fmt.Sprintf("@every %ds", everySeconds(cfg.Interval))
	_, _ = r.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Interval)
		defer cancel()
		r.RunOnce(ctx)
	})
	return r
}

func (r *Refresher) Start() {
	if r == nil || r.cron == nil {
		return
	}
	r.cron.Start()
	r.logger.Info("cache refresher started", zap.Duration("interval", r.cfg.Interval))
}

func (r *Refresher) Stop(ctx context.Context) {
	if r == nil || r.cron == nil {
		return
	}
	stopCtx := r.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	r.logger.Info("cache refresher stopped")
}

// RunOnce performs a single sweep and returns the number of refreshed entries.
func (r *Refresher) RunOnce(ctx context.Context) int {
	if r == nil || r.target == nil {
		return 0
	}
	n, err := r.target.RefreshExpired(ctx)
	if err != nil {
		r.logger.Warn("cache refresh had failures", zap.Int("refreshed", n), zap.Error(err))
	} else if n > 0 {
		r.logger.Debug("refreshed expired objects", zap.Int("refreshed", n))
	}

	if r.flusher != nil {
		if _, err := r.flusher.Flush(ctx); err != nil {
			r.logger.Warn("flush had failures", zap.Error(err))
		}
	}
	return n
}
