package objects

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/entitycache/cache"
	"github.com/fastygo/entitycache/domain"
	"github.com/fastygo/entitycache/usecase"
)

// Config tunes the manager.
type Config struct {
	// DefaultTTL applies to fetched records without a ttl field. Zero or negative
	// values disable expiry.
	DefaultTTL time.Duration
	// Fallback wraps records whose type tag has no registered factory. Defaults to
	// domain.GenericKind.
	Fallback domain.Factory
}

// Deps are the collaborators of a Manager. Store and Buffer are optional; without a
// Store, Persist and Flush fail.
type Deps struct {
	Registry *domain.Registry
	Cache    *cache.Cache
	Fetcher  usecase.Fetcher
	Store    usecase.Store
	Buffer   usecase.WriteBuffer
	Logger   *zap.Logger
}

// Manager is the read path over the object cache: cache hits are served immediately,
// misses go to the fetcher and the result is wrapped and tracked.
type Manager struct {
	registry *domain.Registry
	cache    *cache.Cache
	fetcher  usecase.Fetcher
	store    usecase.Store
	buffer   usecase.WriteBuffer
	logger   *zap.Logger
	cfg      Config
}

// Result is delivered by GetAsync.
type Result struct {
	Object domain.Managed
	Err    error
}

// Callback receives the outcome of GetCallback.
type Callback func(err error, obj domain.Managed)

// FlushResult counts what Flush did.
type FlushResult struct {
	Saved    int `json:"saved"`
	Deleted  int `json:"deleted"`
	Buffered int `json:"buffered"`
	Failed   int `json:"failed"`
}

func New(deps Deps, cfg Config) *Manager {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Registry == nil {
		deps.Registry = domain.NewRegistry(deps.Logger)
	}
	if deps.Cache == nil {
		deps.Cache = cache.New(cache.Config{Logger: deps.Logger})
	}
	if cfg.Fallback == nil {
		cfg.Fallback = domain.GenericKind
	}
	return &Manager{
		registry: deps.Registry,
		cache:    deps.Cache,
		fetcher:  deps.Fetcher,
		store:    deps.Store,
		buffer:   deps.Buffer,
		logger:   deps.Logger,
		cfg:      cfg,
	}
}

func (m *Manager) Cache() *cache.Cache        { return m.cache }
func (m *Manager) Registry() *domain.Registry { return m.registry }

// Get returns the entity for id. A cached entity is returned as is, without a
// freshness check. On a miss with allowRemote the fetcher is asked for the record,
// which is wrapped with factory and tracked as existing. Fetch errors are returned
// unchanged; a missing record yields domain.ErrObjectNotFound.
func (m *Manager) Get(ctx context.Context, id string, params usecase.Params, allowRemote bool, factory domain.Factory) (domain.Managed, error) {
	if obj := m.cache.GetNoWait(id); obj != nil {
		return obj, nil
	}
	if !allowRemote {
		return nil, domain.ObjectNotFound(tagOf(factory), id)
	}
	return m.fetchOne(ctx, id, params, factory)
}

// GetAsync is Get delivered through a single-shot channel. Cache hits are delivered
// before GetAsync returns.
func (m *Manager) GetAsync(ctx context.Context, id string, params usecase.Params, allowRemote bool, factory domain.Factory) <-chan Result {
	out := make(chan Result, 1)
	if obj := m.cache.GetNoWait(id); obj != nil || !allowRemote {
		if obj == nil {
			out <- Result{Err: domain.ObjectNotFound(tagOf(factory), id)}
		} else {
			out <- Result{Object: obj}
		}
		close(out)
		return out
	}
	go func() {
		defer close(out)
		obj, err := m.fetchOne(ctx, id, params, factory)
		out <- Result{Object: obj, Err: err}
	}()
	return out
}

// GetCallback supports callers written against the callback convention. A cache hit
// is returned and cb runs before GetCallback returns. A miss returns nil and cb runs
// exactly once on another goroutine after the fetch completes.
func (m *Manager) GetCallback(ctx context.Context, id string, params usecase.Params, allowRemote bool, factory domain.Factory, cb Callback) domain.Managed {
	if cb == nil {
		cb = func(error, domain.Managed) {}
	}
	if obj := m.cache.GetNoWait(id); obj != nil {
		cb(nil, obj)
		return obj
	}
	if !allowRemote {
		cb(domain.ObjectNotFound(tagOf(factory), id), nil)
		return nil
	}
	go func() {
		obj, err := m.fetchOne(ctx, id, params, factory)
		cb(err, obj)
	}()
	return nil
}

// GetDirect reads the cache only and never blocks.
func (m *Manager) GetDirect(id string) domain.Managed {
	return m.cache.GetNoWait(id)
}

// GroupGet loads several entities. It always reads remotely; GroupGetFromCache is
// available to callers that accept cached copies.
func (m *Manager) GroupGet(ctx context.Context, ids []string, params usecase.Params, factory domain.Factory) ([]domain.Managed, error) {
	return m.GroupGetFromRemote(ctx, ids, params, factory)
}

// GroupGetFromRemote fetches ids in one batch, tracks every record returned and
// returns the wrapped entities in fetcher order. Missing records are skipped.
func (m *Manager) GroupGetFromRemote(ctx context.Context, ids []string, params usecase.Params, factory domain.Factory) ([]domain.Managed, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if m.fetcher == nil {
		return nil, domain.NewError(domain.ErrCodeInternal, "no fetcher configured")
	}
	recs, err := m.fetcher.FetchMany(ctx, ids, tagOf(factory), params)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Managed, 0, len(recs))
	for _, rec := range recs {
		if rec == nil {
			continue
		}
		obj := m.build(rec, factory)
		if obj == nil {
			continue
		}
		m.track(obj, params, factory)
		out = append(out, obj)
	}
	return out, nil
}

// GroupGetFromCache returns the cached entities among ids and the ids that missed.
func (m *Manager) GroupGetFromCache(ids []string) ([]domain.Managed, []string) {
	var (
		found   []domain.Managed
		missing []string
	)
	for _, id := range ids {
		if obj := m.cache.GetNoWait(id); obj != nil {
			found = append(found, obj)
			continue
		}
		missing = append(missing, id)
	}
	return found, missing
}

// Refresh refetches a cached entity regardless of its TTL.
func (m *Manager) Refresh(ctx context.Context, id string) (domain.Managed, error) {
	return m.cache.Refresh(ctx, id)
}

// Create builds a new entity of kind owned by ownerID and tracks it as new.
func (m *Manager) Create(kind *domain.Kind, ownerID string) domain.Managed {
	obj := kind.Create(ownerID, m.cache.Clock())
	obj.Base().SetAsserter(m.registry.Asserter())
	m.cache.Track(obj, domain.StatusNew, domain.NoExpiration, nil)
	return obj
}

// Track starts tracking obj with status and no expiry.
func (m *Manager) Track(obj domain.Managed, status domain.Status) bool {
	return m.cache.Track(obj, status, domain.NoExpiration, nil)
}

func (m *Manager) Untrack(id string) bool { return m.cache.Untrack(id) }

// Reset drops every cached entity and returns how many were dropped.
func (m *Manager) Reset() int {
	n := m.cache.Reset()
	m.logger.Info("object cache reset", zap.Int("objects", n))
	return n
}

// Persist writes a modified entity to the store: new and dirty entities are saved,
// deleted ones removed and untracked. When the store fails and a buffer is configured
// the write is buffered and counts as done. The record is copied under the entity's
// read lock, so callers must not hold its write lock.
func (m *Manager) Persist(ctx context.Context, obj domain.Managed) (buffered bool, err error) {
	if obj == nil {
		return false, domain.ErrInvalidRecord
	}
	if m.store == nil {
		return false, domain.NewError(domain.ErrCodeInternal, "no store configured")
	}
	e := obj.Core()
	switch {
	case e.IsDeleted():
		rec := e.CopyRecord()
		buffered, err = m.write(ctx, usecase.OperationDelete, rec)
		if err == nil {
			m.cache.Untrack(rec.ID())
		}
	case e.IsModified():
		rec := e.CopyRecord()
		if rec.TypeTag() == "" {
			return false, domain.WrapError(domain.ErrCodeInvalid, "persist "+rec.ID(), domain.ErrUnknownType)
		}
		buffered, err = m.write(ctx, usecase.OperationSave, rec)
		if err == nil {
			e.ClearDirty()
		}
	}
	return buffered, err
}

// Flush persists every modified entity in the cache.
func (m *Manager) Flush(ctx context.Context) (FlushResult, error) {
	var (
		res  FlushResult
		errs error
	)
	for _, id := range m.cache.IDs() {
		if err := ctx.Err(); err != nil {
			return res, errors.Join(errs, err)
		}
		obj := m.cache.GetNoWait(id)
		if obj == nil {
			continue
		}
		e := obj.Core()
		deleted, modified := e.IsDeleted(), e.IsModified()
		if !deleted && !modified {
			continue
		}
		buffered, err := m.Persist(ctx, obj)
		switch {
		case err != nil:
			res.Failed++
			errs = errors.Join(errs, err)
		case buffered:
			res.Buffered++
		case deleted:
			res.Deleted++
		default:
			res.Saved++
		}
	}
	if res != (FlushResult{}) {
		m.logger.Info("flushed modified objects",
			zap.Int("saved", res.Saved),
			zap.Int("deleted", res.Deleted),
			zap.Int("buffered", res.Buffered),
			zap.Int("failed", res.Failed))
	}
	return res, errs
}

func (m *Manager) write(ctx context.Context, op string, rec domain.Record) (bool, error) {
	var err error
	if op == usecase.OperationDelete {
		err = m.store.Delete(ctx, rec.TypeTag(), rec.ID())
	} else {
		err = m.store.Save(ctx, rec)
	}
	if err == nil {
		return false, nil
	}
	if m.buffer == nil {
		return false, err
	}

	var bufErr error
	if op == usecase.OperationDelete {
		bufErr = m.buffer.BufferDelete(ctx, rec.TypeTag(), rec.ID())
	} else {
		bufErr = m.buffer.BufferSave(ctx, rec)
	}
	if bufErr != nil {
		m.logger.Error("failed to buffer object write", zap.String("operation", op), zap.String("id", rec.ID()), zap.Error(bufErr))
		return false, err
	}
	m.logger.Warn("store write failed, buffered", zap.String("operation", op), zap.String("id", rec.ID()), zap.Error(err))
	return true, nil
}

func (m *Manager) fetchOne(ctx context.Context, id string, params usecase.Params, factory domain.Factory) (domain.Managed, error) {
	if m.fetcher == nil {
		return nil, domain.NewError(domain.ErrCodeInternal, "no fetcher configured")
	}
	rec, err := m.fetcher.FetchOne(ctx, id, tagOf(factory), params)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, domain.ObjectNotFound(tagOf(factory), id)
	}
	if rec.ID() == "" {
		rec[domain.FieldID] = id
	}

	obj := m.build(rec, factory)
	if obj == nil {
		return nil, domain.WrapError(domain.ErrCodeInvalid, "wrap "+id, domain.ErrUnknownType)
	}
	m.track(obj, params, factory)
	return obj, nil
}

// build wraps rec with factory, or with the registry when factory is nil. Wrappers that
// cannot be tracked are rebuilt with the fallback kind.
func (m *Manager) build(rec domain.Record, factory domain.Factory) domain.Managed {
	var (
		w  domain.Wrapper
		ok bool
	)
	if factory != nil {
		w = factory.New(rec)
		ok = w != nil
		if ok {
			w.Base().SetAsserter(m.registry.Asserter())
		}
	} else {
		w, ok = m.registry.Wrap(rec, m.cfg.Fallback)
	}
	if ok {
		if obj, isManaged := w.(domain.Managed); isManaged {
			return obj
		}
	}

	m.logger.Warn("record not wrapped as managed entity, using fallback",
		zap.String("id", rec.ID()), zap.String("type", rec.TypeTag()))
	if kind, isKind := m.cfg.Fallback.(*domain.Kind); isKind {
		obj := kind.NewManaged(rec)
		obj.Base().SetAsserter(m.registry.Asserter())
		return obj
	}
	return nil
}

func (m *Manager) track(obj domain.Managed, params usecase.Params, factory domain.Factory) {
	m.cache.Track(obj, domain.StatusNone, m.ttlFor(obj), m.refetcher(params, factory))
}

func (m *Manager) ttlFor(obj domain.Managed) time.Duration {
	if ms, ok := obj.Core().TTLMillis(); ok {
		if ms < 0 {
			return domain.NoExpiration
		}
		return time.Duration(ms) * time.Millisecond
	}
	if m.cfg.DefaultTTL <= 0 {
		return domain.NoExpiration
	}
	return m.cfg.DefaultTTL
}

// refetcher reloads an entity by id. Local edits win: a modified entity is kept.
func (m *Manager) refetcher(params usecase.Params, factory domain.Factory) domain.RefetchFunc {
	return func(ctx context.Context, cur domain.Managed) (domain.Managed, error) {
		if cur == nil {
			return nil, nil
		}
		e := cur.Core()
		if e.IsModified() || e.IsDeleted() {
			return nil, nil
		}
		var id, tag string
		e.View(func(e *domain.Entity) {
			id, tag = e.ID(), e.TypeTag()
		})
		if ft := tagOf(factory); ft != "" {
			tag = ft
		}
		rec, err := m.fetcher.FetchOne(ctx, id, tag, params)
		if err != nil || rec == nil {
			return nil, err
		}
		if rec.ID() == "" {
			rec[domain.FieldID] = id
		}
		return m.build(rec, factory), nil
	}
}

func tagOf(f domain.Factory) string {
	if f == nil {
		return ""
	}
	return f.TypeTag()
}
