package objects

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/entitycache/cache"
	"github.com/fastygo/entitycache/domain"
	"github.com/fastygo/entitycache/usecase"
)

type mockCallbackFetcher struct {
	mock.Mock
}

func (m *mockCallbackFetcher) FetchOne(id, typeTag string, params usecase.Params, cb usecase.ResultFunc) {
	m.Called(id, typeTag, params, cb)
}

func (m *mockCallbackFetcher) FetchMany(ids []string, typeTag string, params usecase.Params, cb usecase.BatchResultFunc) {
	m.Called(ids, typeTag, params, cb)
}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Save(ctx context.Context, rec domain.Record) error {
	return m.Called(ctx, rec).Error(0)
}

func (m *mockStore) Delete(ctx context.Context, typeTag, id string) error {
	return m.Called(ctx, typeTag, id).Error(0)
}

type mockBuffer struct {
	mock.Mock
}

func (m *mockBuffer) BufferSave(ctx context.Context, rec domain.Record) error {
	return m.Called(ctx, rec).Error(0)
}

func (m *mockBuffer) BufferDelete(ctx context.Context, typeTag, id string) error {
	return m.Called(ctx, typeTag, id).Error(0)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// stubFetcher serves records from a map and counts calls.
type stubFetcher struct {
	mu    sync.Mutex
	recs  map[string]domain.Record
	err   error
	calls int
}

func (f *stubFetcher) FetchOne(_ context.Context, id, _ string, _ usecase.Params) (domain.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	rec, ok := f.recs[id]
	if !ok {
		return nil, nil
	}
	return rec.Clone(), nil
}

func (f *stubFetcher) FetchMany(ctx context.Context, ids []string, typeTag string, params usecase.Params) ([]domain.Record, error) {
	out := make([]domain.Record, 0, len(ids))
	for _, id := range ids {
		rec, err := f.FetchOne(ctx, id, typeTag, params)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (f *stubFetcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fixture struct {
	manager *Manager
	fetcher *stubFetcher
	clock   *fakeClock
}

func newFixture(t *testing.T, store usecase.Store, buffer usecase.WriteBuffer) fixture {
	t.Helper()
	registry := domain.NewRegistry(nil)
	require.NoError(t, domain.RegisterBuiltins(registry))

	clock := &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
	fetcher := &stubFetcher{recs: map[string]domain.Record{
		"p1": {domain.FieldID: "p1", domain.FieldType: "post", "title": "hello"},
		"p2": {domain.FieldID: "p2", domain.FieldType: "post", domain.FieldTTL: 500},
		"t1": {domain.FieldID: "t1", domain.FieldType: "task"},
		"x1": {domain.FieldID: "x1", domain.FieldType: "ghost"},
	}}
	m := New(Deps{
		Registry: registry,
		Cache:    cache.New(cache.Config{Clock: clock}),
		Fetcher:  fetcher,
		Store:    store,
		Buffer:   buffer,
	}, Config{DefaultTTL: time.Minute})
	return fixture{manager: m, fetcher: fetcher, clock: clock}
}

func TestManager_EndToEndCallbackCollaborator(t *testing.T) {
	cf := &mockCallbackFetcher{}
	cf.On("FetchOne", "p1", "post", usecase.Params(nil), mock.Anything).
		Run(func(args mock.Arguments) {
			cb := args.Get(3).(usecase.ResultFunc)
			cb(nil, domain.Record{domain.FieldID: "p1", domain.FieldTTL: -1, domain.FieldType: "post"})
		}).
		Once()

	registry := domain.NewRegistry(nil)
	require.NoError(t, domain.RegisterBuiltins(registry))
	m := New(Deps{Registry: registry, Fetcher: usecase.FromCallbacks(cf, nil)}, Config{})

	obj, err := m.Get(context.Background(), "p1", nil, true, domain.PostKind)
	require.NoError(t, err)
	assert.Equal(t, "p1", obj.Base().ID())

	direct := m.GetDirect("p1")
	require.NotNil(t, direct)
	assert.Same(t, obj, direct)
	assert.Equal(t, "p1", direct.Base().ID())

	_, isPost := direct.(*domain.Post)
	assert.True(t, isPost)
	assert.Equal(t, domain.NoExpiration, m.Cache().Descriptor("p1").TTL())
	cf.AssertNumberOfCalls(t, "FetchOne", 1)
}

func TestManager_GetHitSkipsFetcher(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	first, err := f.manager.Get(ctx, "p1", nil, true, domain.PostKind)
	require.NoError(t, err)

	// stale hits are still served without a fetch
	f.clock.Advance(time.Hour)
	second, err := f.manager.Get(ctx, "p1", nil, true, domain.PostKind)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, f.fetcher.count())
	status, tracked := first.Core().Status()
	assert.True(t, tracked)
	assert.Equal(t, domain.StatusNone, status)
}

func TestManager_GetMissWithoutRemote(t *testing.T) {
	f := newFixture(t, nil, nil)

	_, err := f.manager.Get(context.Background(), "p1", nil, false, domain.PostKind)
	assert.ErrorIs(t, err, domain.ErrObjectNotFound)
	assert.Zero(t, f.fetcher.count())
}

func TestManager_GetNotFound(t *testing.T) {
	f := newFixture(t, nil, nil)

	_, err := f.manager.Get(context.Background(), "nope", nil, true, domain.PostKind)
	assert.ErrorIs(t, err, domain.ErrObjectNotFound)
	assert.Nil(t, f.manager.GetDirect("nope"))
}

func TestManager_FetchErrorsPassThrough(t *testing.T) {
	f := newFixture(t, nil, nil)
	boom := errors.New("connection refused")
	f.fetcher.err = boom

	_, err := f.manager.Get(context.Background(), "p1", nil, true, domain.PostKind)
	assert.Same(t, boom, err)
}

func TestManager_RecordTTL(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	_, err := f.manager.Get(ctx, "p2", nil, true, domain.PostKind)
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, f.manager.Cache().Descriptor("p2").TTL())

	_, err = f.manager.Get(ctx, "p1", nil, true, domain.PostKind)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, f.manager.Cache().Descriptor("p1").TTL())
}

func TestManager_RegistryWrapsWithoutFactory(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	obj, err := f.manager.Get(ctx, "t1", nil, true, nil)
	require.NoError(t, err)
	_, isTask := obj.(*domain.Task)
	assert.True(t, isTask)

	obj, err = f.manager.Get(ctx, "x1", nil, true, nil)
	require.NoError(t, err)
	_, isEntity := obj.(*domain.Entity)
	assert.True(t, isEntity, "unknown tags fall back to plain entities")
}

func TestManager_GetAsync(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	res := <-f.manager.GetAsync(ctx, "p1", nil, true, domain.PostKind)
	require.NoError(t, res.Err)
	assert.Equal(t, "p1", res.Object.Base().ID())

	select {
	case hit := <-f.manager.GetAsync(ctx, "p1", nil, true, domain.PostKind):
		assert.Same(t, res.Object, hit.Object)
	default:
		t.Fatal("cache hit should be ready immediately")
	}

	miss := <-f.manager.GetAsync(ctx, "p9", nil, false, domain.PostKind)
	assert.ErrorIs(t, miss.Err, domain.ErrObjectNotFound)
}

func TestManager_GetCallback(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	done := make(chan domain.Managed, 1)
	ret := f.manager.GetCallback(ctx, "p1", nil, true, domain.PostKind, func(err error, obj domain.Managed) {
		assert.NoError(t, err)
		done <- obj
	})
	assert.Nil(t, ret, "misses complete through the callback")

	var fetched domain.Managed
	select {
	case fetched = <-done:
	case <-time.After(time.Second):
		t.Fatal("callback not invoked")
	}

	var viaCallback domain.Managed
	ret = f.manager.GetCallback(ctx, "p1", nil, true, domain.PostKind, func(err error, obj domain.Managed) {
		viaCallback = obj
	})
	assert.Same(t, fetched, ret)
	assert.Same(t, fetched, viaCallback)
}

func TestManager_GroupGetAlwaysFetches(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	_, err := f.manager.Get(ctx, "p1", nil, true, domain.PostKind)
	require.NoError(t, err)

	objs, err := f.manager.GroupGet(ctx, []string{"p1", "p2", "missing"}, nil, domain.PostKind)
	require.NoError(t, err)
	require.Len(t, objs, 2)
	assert.Equal(t, "p1", objs[0].Base().ID())
	assert.Equal(t, "p2", objs[1].Base().ID())
	assert.Equal(t, 4, f.fetcher.count())
	assert.Same(t, objs[0], f.manager.GetDirect("p1"))

	found, missing := f.manager.GroupGetFromCache([]string{"p1", "p2", "missing"})
	assert.Len(t, found, 2)
	assert.Equal(t, []string{"missing"}, missing)
}

func TestManager_RefreshReplacesCleanEntity(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	first, err := f.manager.Get(ctx, "p1", nil, true, domain.PostKind)
	require.NoError(t, err)

	f.fetcher.recs["p1"]["title"] = "updated"
	fresh, err := f.manager.Refresh(ctx, "p1")
	require.NoError(t, err)

	assert.NotSame(t, first, fresh)
	assert.Equal(t, "updated", fresh.(*domain.Post).Title())
	assert.False(t, first.Core().IsCached())
}

func TestManager_RefreshRestoresMissingID(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()
	f.fetcher.recs["n1"] = domain.Record{domain.FieldType: "post", "title": "no id"}

	first, err := f.manager.Get(ctx, "n1", nil, true, domain.PostKind)
	require.NoError(t, err)
	require.Equal(t, "n1", first.Base().ID())

	fresh, err := f.manager.Refresh(ctx, "n1")
	require.NoError(t, err)
	assert.NotSame(t, first, fresh)
	assert.Equal(t, "n1", fresh.Base().ID())
	assert.Same(t, fresh, f.manager.GetDirect("n1"))
}

func TestManager_RefreshKeepsLocalEdits(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	obj, err := f.manager.Get(ctx, "p1", nil, true, domain.PostKind)
	require.NoError(t, err)
	obj.(*domain.Post).SetTitle("local")
	require.True(t, obj.Core().IsDirty())

	got, err := f.manager.Refresh(ctx, "p1")
	require.NoError(t, err)
	assert.Same(t, obj, got)
	assert.Equal(t, 1, f.fetcher.count())
}

func TestManager_CreateAndFlush(t *testing.T) {
	store := &mockStore{}
	store.On("Save", mock.Anything, mock.Anything).Return(nil)
	store.On("Delete", mock.Anything, "post", "p1").Return(nil)

	f := newFixture(t, store, nil)
	ctx := context.Background()

	created := f.manager.Create(domain.TaskKind, "u1")
	assert.True(t, created.Core().IsNew())
	assert.True(t, created.Core().IsCached())

	loaded, err := f.manager.Get(ctx, "p1", nil, true, domain.PostKind)
	require.NoError(t, err)
	loaded.Core().SetDeleted()

	clean, err := f.manager.Get(ctx, "p2", nil, true, domain.PostKind)
	require.NoError(t, err)

	res, err := f.manager.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, FlushResult{Saved: 1, Deleted: 1}, res)

	assert.False(t, created.Core().IsModified())
	assert.Nil(t, f.manager.GetDirect("p1"))
	assert.Same(t, clean, f.manager.GetDirect("p2"))
	store.AssertNumberOfCalls(t, "Save", 1)
	store.AssertExpectations(t)
}

func TestManager_PersistBuffersOnStoreFailure(t *testing.T) {
	down := errors.New("primary offline")
	store := &mockStore{}
	store.On("Save", mock.Anything, mock.Anything).Return(down)
	buffer := &mockBuffer{}
	buffer.On("BufferSave", mock.Anything, mock.MatchedBy(func(rec domain.Record) bool {
		return rec.ID() == "p1" && rec["title"] == "edited"
	})).Return(nil)

	f := newFixture(t, store, buffer)
	ctx := context.Background()

	obj, err := f.manager.Get(ctx, "p1", nil, true, domain.PostKind)
	require.NoError(t, err)
	obj.(*domain.Post).SetTitle("edited")

	buffered, err := f.manager.Persist(ctx, obj)
	require.NoError(t, err)
	assert.True(t, buffered)
	assert.False(t, obj.Core().IsDirty())
	buffer.AssertExpectations(t)
}

func TestManager_PersistKeepsDirtyWithoutBuffer(t *testing.T) {
	down := errors.New("primary offline")
	store := &mockStore{}
	store.On("Save", mock.Anything, mock.Anything).Return(down)

	f := newFixture(t, store, nil)
	ctx := context.Background()

	obj, err := f.manager.Get(ctx, "p1", nil, true, domain.PostKind)
	require.NoError(t, err)
	obj.(*domain.Post).SetTitle("edited")

	res, err := f.manager.Flush(ctx)
	assert.ErrorIs(t, err, down)
	assert.Equal(t, FlushResult{Failed: 1}, res)
	assert.True(t, obj.Core().IsDirty())
}

func TestManager_Reset(t *testing.T) {
	f := newFixture(t, nil, nil)
	obj, err := f.manager.Get(context.Background(), "p1", nil, true, domain.PostKind)
	require.NoError(t, err)

	assert.Equal(t, 1, f.manager.Reset())
	assert.False(t, obj.Core().IsTracked())
	assert.Nil(t, f.manager.GetDirect("p1"))
}
