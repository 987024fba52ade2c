package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fastygo/entitycache/domain"
)

type funcFetcher struct {
	one  func(id, typeTag string, params Params, cb ResultFunc)
	many func(ids []string, typeTag string, params Params, cb BatchResultFunc)
}

func (f funcFetcher) FetchOne(id, typeTag string, params Params, cb ResultFunc) {
	f.one(id, typeTag, params, cb)
}

func (f funcFetcher) FetchMany(ids []string, typeTag string, params Params, cb BatchResultFunc) {
	f.many(ids, typeTag, params, cb)
}

func TestFromCallbacks_FetchOne(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	f := FromCallbacks(funcFetcher{
		one: func(id, typeTag string, params Params, cb ResultFunc) {
			go func() {
				cb(nil, domain.Record{domain.FieldID: id, domain.FieldType: typeTag, "q": params["q"]})
				cb(errors.New("late"), nil)
			}()
		},
	}, zap.New(core))

	rec, err := f.FetchOne(context.Background(), "p1", "post", Params{"q": 1})
	require.NoError(t, err)
	assert.Equal(t, "p1", rec.ID())
	assert.Equal(t, "post", rec.TypeTag())
	assert.Equal(t, 1, rec["q"])

	assert.Eventually(t, func() bool {
		return logs.FilterMessage("fetch callback invoked more than once").Len() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestFromCallbacks_NotFoundIsNotAnError(t *testing.T) {
	f := FromCallbacks(funcFetcher{
		one: func(_, _ string, _ Params, cb ResultFunc) { cb(nil, nil) },
	}, nil)

	rec, err := f.FetchOne(context.Background(), "x", "post", nil)
	assert.NoError(t, err)
	assert.Nil(t, rec)
}

func TestFromCallbacks_ErrorsPassThrough(t *testing.T) {
	boom := errors.New("boom")
	f := FromCallbacks(funcFetcher{
		many: func(_ []string, _ string, _ Params, cb BatchResultFunc) { cb(boom, nil) },
	}, nil)

	_, err := f.FetchMany(context.Background(), []string{"a"}, "post", nil)
	assert.Same(t, boom, err)
}

func TestFromCallbacks_FetchMany(t *testing.T) {
	f := FromCallbacks(funcFetcher{
		many: func(ids []string, _ string, _ Params, cb BatchResultFunc) {
			out := make([]domain.Record, len(ids))
			for i, id := range ids {
				out[i] = domain.Record{domain.FieldID: id}
			}
			cb(nil, out)
		},
	}, nil)

	recs, err := f.FetchMany(context.Background(), []string{"a", "b"}, "post", nil)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "b", recs[1].ID())
}

func TestFromCallbacks_ContextEndsWait(t *testing.T) {
	f := FromCallbacks(funcFetcher{
		one: func(string, string, Params, ResultFunc) {},
	}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := f.FetchOne(ctx, "p1", "post", nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
