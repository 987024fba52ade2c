package domain

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ now time.Time }

func newFakeClock() *fakeClock { return &fakeClock{now: time.UnixMilli(1_700_000_000_000)} }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestDescriptor_TTLBoundaries(t *testing.T) {
	clock := newFakeClock()
	d := NewDescriptor(nil, NewEntity(Record{FieldID: "a"}), StatusNone, clock)

	assert.False(t, d.HasExpired(), "default never expires")

	d.SetExpiration(NoExpiration, nil)
	clock.Advance(24 * time.Hour)
	assert.False(t, d.HasExpired())
	assert.True(t, d.ExpiresAt().IsZero())

	d.SetExpiration(0, nil)
	assert.True(t, d.HasExpired())

	d.SetExpiration(1000*time.Millisecond, nil)
	assert.False(t, d.HasExpired())
	clock.Advance(999 * time.Millisecond)
	assert.False(t, d.HasExpired())
	clock.Advance(time.Millisecond)
	assert.True(t, d.HasExpired())
}

func TestDescriptor_StatusTransitions(t *testing.T) {
	d := NewDescriptor(nil, nil, StatusNew, nil)

	assert.False(t, d.SetDirty(), "new entities are not separately dirty")
	assert.Equal(t, StatusNew, d.Status())
	assert.True(t, d.IsModified())

	require.True(t, d.ClearDirty())
	assert.Equal(t, StatusNone, d.Status())
	assert.False(t, d.ClearDirty())

	assert.True(t, d.SetDirty())
	assert.True(t, d.SetDirty())
	assert.True(t, d.IsDirty())

	d.SetDeleted()
	assert.True(t, d.IsDeleted())
	assert.False(t, d.SetDirty())
	assert.False(t, d.ClearDirty())
	assert.Equal(t, "deleted", d.Status().String())
}

func TestDescriptor_GetRefetchesOnlyWhenExpired(t *testing.T) {
	clock := newFakeClock()
	first := NewEntity(Record{FieldID: "a", "v": 1})
	d := NewDescriptor(nil, first, StatusNone, clock)

	calls := 0
	d.SetExpiration(time.Second, func(_ context.Context, cur Managed) (Managed, error) {
		calls++
		return NewEntity(Record{FieldID: cur.Base().ID(), "v": calls + 1}), nil
	})

	got, err := d.Get(context.Background(), true)
	require.NoError(t, err)
	assert.Same(t, first, got)
	assert.Equal(t, 0, calls)

	clock.Advance(time.Second)
	assert.Same(t, first, d.GetNoWait(), "no-wait never refetches")

	got, err = d.Get(context.Background(), false)
	require.NoError(t, err)
	assert.Same(t, first, got)

	got, err = d.Get(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, int64(2), got.Base().GetInt64("v", 0))
	assert.Same(t, d, got.Core().Descriptor())
	assert.Nil(t, first.Descriptor(), "replaced entity is detached")

	// sliding window restarted at refresh time
	clock.Advance(999 * time.Millisecond)
	assert.False(t, d.HasExpired())
}

func TestDescriptor_FailedRefetchServesStale(t *testing.T) {
	clock := newFakeClock()
	cur := NewEntity(Record{FieldID: "a"})
	d := NewDescriptor(nil, cur, StatusNone, clock)

	boom := errors.New("backend down")
	d.SetExpiration(0, func(context.Context, Managed) (Managed, error) { return nil, boom })

	got, err := d.Get(context.Background(), true)
	assert.ErrorIs(t, err, boom)
	assert.Same(t, cur, got)
	assert.True(t, d.HasExpired())
}

func TestDescriptor_NilRefetchResultKeepsCurrent(t *testing.T) {
	clock := newFakeClock()
	cur := NewEntity(Record{FieldID: "a"})
	d := NewDescriptor(nil, cur, StatusNone, clock)
	d.SetExpiration(time.Minute, func(context.Context, Managed) (Managed, error) { return nil, nil })

	got, err := d.Refresh(context.Background())
	require.NoError(t, err)
	assert.Same(t, cur, got)
	assert.Equal(t, clock.Now().Add(time.Minute), d.ExpiresAt())
}

func TestDescriptor_Release(t *testing.T) {
	e := NewEntity(Record{FieldID: "a"})
	d := NewDescriptor(nil, e, StatusDirty, nil)
	d.SetExpiration(time.Minute, func(context.Context, Managed) (Managed, error) { return nil, nil })

	d.Release()
	assert.Nil(t, d.GetNoWait())
	assert.False(t, d.HasRefetch())
	assert.False(t, e.IsTracked())
}
