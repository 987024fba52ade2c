package usecase

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/fastygo/entitycache/domain"
)

// Params carries collaborator-specific fetch options. A nil Params is valid.
type Params map[string]any

// Fetcher loads raw records from remote storage. A nil record (or a nil entry in a
// batch) together with a nil error means "not found"; it is not an error.
type Fetcher interface {
	FetchOne(ctx context.Context, id, typeTag string, params Params) (domain.Record, error)
	FetchMany(ctx context.Context, ids []string, typeTag string, params Params) ([]domain.Record, error)
}

// ResultFunc receives the outcome of a single fetch.
type ResultFunc func(err error, rec domain.Record)

// BatchResultFunc receives the outcome of a batch fetch.
type BatchResultFunc func(err error, recs []domain.Record)

// CallbackFetcher is a collaborator that reports through callbacks. Implementations
// must invoke cb exactly once.
type CallbackFetcher interface {
	FetchOne(id, typeTag string, params Params, cb ResultFunc)
	FetchMany(ids []string, typeTag string, params Params, cb BatchResultFunc)
}

type callbackAdapter struct {
	cf     CallbackFetcher
	logger *zap.Logger
}

// FromCallbacks adapts a callback collaborator to Fetcher. Calls block until the
// callback fires or ctx ends; extra invocations are logged and dropped.
func FromCallbacks(cf CallbackFetcher, logger *zap.Logger) Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &callbackAdapter{cf: cf, logger: logger}
}

type oneResult struct {
	rec domain.Record
	err error
}

func (a *callbackAdapter) FetchOne(ctx context.Context, id, typeTag string, params Params) (domain.Record, error) {
	ch := make(chan oneResult, 1)
	var once sync.Once
	a.cf.FetchOne(id, typeTag, params, func(err error, rec domain.Record) {
		fired := false
		once.Do(func() {
			fired = true
			ch <- oneResult{rec: rec, err: err}
		})
		if !fired {
			a.logger.Warn("fetch callback invoked more than once", zap.String("id", id), zap.String("type", typeTag))
		}
	})

	select {
	case res := <-ch:
		return res.rec, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type manyResult struct {
	recs []domain.Record
	err  error
}

func (a *callbackAdapter) FetchMany(ctx context.Context, ids []string, typeTag string, params Params) ([]domain.Record, error) {
	ch := make(chan manyResult, 1)
	var once sync.Once
	a.cf.FetchMany(ids, typeTag, params, func(err error, recs []domain.Record) {
		fired := false
		once.Do(func() {
			fired = true
			ch <- manyResult{recs: recs, err: err}
		})
		if !fired {
			a.logger.Warn("batch fetch callback invoked more than once", zap.Int("ids", len(ids)), zap.String("type", typeTag))
		}
	})

	select {
	case res := <-ch:
		return res.recs, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

var _ Fetcher = (*callbackAdapter)(nil)
