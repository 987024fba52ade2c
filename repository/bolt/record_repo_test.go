package bolt

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/entitycache/domain"
	"github.com/fastygo/entitycache/internal/infrastructure/boltdb"
	"github.com/fastygo/entitycache/repository"
)

func newRepo(t *testing.T) *RecordRepository {
	t.Helper()
	db, err := boltdb.Open(filepath.Join(t.TempDir(), "data", "local.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewRecordRepository(db)
}

func TestRecordRepository_SaveGet(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, domain.Record{domain.FieldID: "p1", domain.FieldType: "post", "title": "hi"}))

	rec, err := repo.Get(ctx, "post", "p1")
	require.NoError(t, err)
	assert.Equal(t, "hi", rec["title"])

	rec, err = repo.Get(ctx, "", "p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", rec.ID())

	_, err = repo.Get(ctx, "task", "p1")
	assert.ErrorIs(t, err, domain.ErrObjectNotFound)
}

func TestRecordRepository_SaveMovesRetypedRecord(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, domain.Record{domain.FieldID: "a", domain.FieldType: "post"}))
	require.NoError(t, repo.Save(ctx, domain.Record{domain.FieldID: "a", domain.FieldType: "task"}))

	_, err := repo.Get(ctx, "post", "a")
	assert.ErrorIs(t, err, domain.ErrObjectNotFound)
	rec, err := repo.Get(ctx, "task", "a")
	require.NoError(t, err)
	assert.Equal(t, "task", rec.TypeTag())
}

func TestRecordRepository_SaveRejectsMissingID(t *testing.T) {
	repo := newRepo(t)
	assert.ErrorIs(t, repo.Save(context.Background(), domain.Record{"x": 1}), domain.ErrInvalidRecord)
}

func TestRecordRepository_GetManyIsPositional(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, domain.Record{domain.FieldID: "a", domain.FieldType: "post"}))
	require.NoError(t, repo.Save(ctx, domain.Record{domain.FieldID: "c", domain.FieldType: "post"}))

	recs, err := repo.GetMany(ctx, "post", []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "a", recs[0].ID())
	assert.Nil(t, recs[1])
	assert.Equal(t, "c", recs[2].ID())
}

func TestRecordRepository_Delete(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, domain.Record{domain.FieldID: "a"}))

	require.NoError(t, repo.Delete(ctx, "", "a"))
	assert.ErrorIs(t, repo.Delete(ctx, "", "a"), domain.ErrObjectNotFound)
}

func TestRecordRepository_List(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()
	for _, rec := range []domain.Record{
		{domain.FieldID: "p1", domain.FieldType: "post", domain.FieldOwner: "u1"},
		{domain.FieldID: "p2", domain.FieldType: "post", domain.FieldOwner: "u2"},
		{domain.FieldID: "p3", domain.FieldType: "post", domain.FieldOwner: "u1"},
		{domain.FieldID: "t1", domain.FieldType: "task", domain.FieldOwner: "u1"},
	} {
		require.NoError(t, repo.Save(ctx, rec))
	}

	recs, err := repo.List(ctx, repository.RecordFilter{Type: "post", OwnerID: "u1"})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "p1", recs[0].ID())
	assert.Equal(t, "p3", recs[1].ID())

	recs, err = repo.List(ctx, repository.RecordFilter{OwnerID: "u1", Offset: 1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "p3", recs[0].ID())
}
