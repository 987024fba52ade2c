package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedRegistry(t *testing.T) (*Registry, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.WarnLevel)
	return NewRegistry(zap.New(core)), logs
}

func TestRegistry_FirstRegistrationWins(t *testing.T) {
	r, logs := newObservedRegistry(t)

	other := NewKind("post", nil)
	require.NoError(t, r.Register(PostKind))
	err := r.Register(other)

	assert.True(t, errors.Is(err, ErrConflictingRegistration))
	assert.Same(t, PostKind, r.Lookup("post"))
	assert.Equal(t, 1, logs.FilterMessage("type tag already registered").Len())
}

func TestRegistry_RegisterBuiltins(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, RegisterBuiltins(r))

	assert.Equal(t, []string{"post", "task", "user"}, r.Tags())
	assert.Equal(t, 3, r.Count())
	assert.Error(t, RegisterBuiltins(r))
	assert.Equal(t, 3, r.Count())
}

func TestRegistry_Deregister(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(TaskKind))

	assert.True(t, r.Deregister("task"))
	assert.False(t, r.Deregister("task"))
	assert.Nil(t, r.Lookup("task"))
	require.NoError(t, r.RegisterAs("task", TaskKind))
}

func TestRegistry_RejectsEmptyTag(t *testing.T) {
	r, logs := newObservedRegistry(t)

	assert.ErrorIs(t, r.Register(GenericKind), ErrInvalidRecord)
	assert.ErrorIs(t, r.Register(nil), ErrInvalidRecord)
	assert.Equal(t, 0, r.Count())
	assert.GreaterOrEqual(t, logs.FilterMessage("assertion failed").Len(), 2)
}

func TestRegistry_WrapPicksFactoryByTag(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, RegisterBuiltins(r))

	rec := Record{FieldID: "p1", FieldType: "post", "title": "hello"}
	w, ok := r.Wrap(rec, nil)
	require.True(t, ok)

	post, isPost := w.(*Post)
	require.True(t, isPost)
	assert.Equal(t, "hello", post.Title())
	assert.Equal(t, "p1", post.ID())
}

func TestRegistry_WrapUnwrapIsReferenceIdentical(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, RegisterBuiltins(r))

	rec := Record{FieldID: "t1", FieldType: "task"}
	w, ok := r.Wrap(rec, nil)
	require.True(t, ok)

	got := Unwrap(w)
	got["marker"] = true
	assert.Equal(t, true, rec["marker"])

	again, ok := r.Wrap(w, nil)
	require.True(t, ok)
	assert.Same(t, w, again)
}

func TestRegistry_WrapUnknownTag(t *testing.T) {
	r, logs := newObservedRegistry(t)

	rec := Record{FieldID: "x1", FieldType: "ghost"}
	w, ok := r.Wrap(rec, nil)
	assert.False(t, ok)
	assert.Nil(t, w)
	assert.Equal(t, 1, logs.FilterMessage("no factory for type tag").Len())

	w, ok = r.Wrap(rec, GenericKind)
	require.True(t, ok)
	_, isEntity := w.(*Entity)
	assert.True(t, isEntity)
}

func TestRegistry_Deserialize(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, RegisterBuiltins(r))

	src := UserKind.NewManaged(Record{FieldID: "u1", FieldType: "user", "email": "a@b.c"})
	src.Base().AuxSet("session", "s1")

	carrier := src.Base().Serialize()
	assert.Equal(t, "user", carrier.Type)

	delete(carrier.Data, FieldType)
	w, ok := r.Deserialize(carrier, nil)
	require.True(t, ok)

	u, isUser := w.(*User)
	require.True(t, isUser)
	assert.Equal(t, "a@b.c", u.Email())
	assert.Equal(t, "s1", u.AuxGet("session", nil))
}
