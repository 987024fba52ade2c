package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/entitycache/domain"
	"github.com/fastygo/entitycache/repository"
)

type RecordRepository struct {
	pool *pgxpool.Pool
}

// NewRecordRepository creates a Postgres-backed RecordRepository. Records live in the
// entities table as JSONB payloads.
func NewRecordRepository(pool *pgxpool.Pool) *RecordRepository {
	return &RecordRepository{pool: pool}
}

func (r *RecordRepository) Get(ctx context.Context, typeTag, id string) (domain.Record, error) {
	const query = `
	SELECT payload
	FROM entities
	WHERE id = $1
	  AND ($2 = '' OR type = $2)
	`
	var payload []byte
	if err := r.pool.QueryRow(ctx, query, id, typeTag).Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ObjectNotFound(typeTag, id)
		}
		return nil, err
	}
	return decodePayload(payload)
}

func (r *RecordRepository) GetMany(ctx context.Context, typeTag string, ids []string) ([]domain.Record, error) {
	out := make([]domain.Record, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	const query = `
	SELECT id, payload
	FROM entities
	WHERE id = ANY($1)
	  AND ($2 = '' OR type = $2)
	`
	rows, err := r.pool.Query(ctx, query, ids, typeTag)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	found := make(map[string]domain.Record, len(ids))
	for rows.Next() {
		var (
			id      string
			payload []byte
		)
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, err
		}
		rec, err := decodePayload(payload)
		if err != nil {
			return nil, err
		}
		found[id] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, id := range ids {
		out[i] = found[id]
	}
	return out, nil
}

func (r *RecordRepository) List(ctx context.Context, filter repository.RecordFilter) ([]domain.Record, error) {
	const query = `
	SELECT payload
	FROM entities
	WHERE ($1 = '' OR type = $1)
	  AND ($2 = '' OR owner_id = $2)
	ORDER BY updated_at DESC
	LIMIT $3 OFFSET $4
	`
	rows, err := r.pool.Query(ctx, query, filter.Type, filter.OwnerID, clampLimit(filter.Limit), filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []domain.Record
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		rec, err := decodePayload(payload)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func (r *RecordRepository) Save(ctx context.Context, rec domain.Record) error {
	if rec == nil || rec.ID() == "" {
		return domain.ErrInvalidRecord
	}

	const query = `
	INSERT INTO entities (id, type, owner_id, payload, created_at, updated_at)
	VALUES ($1, $2, $3, $4, NOW(), NOW())
	ON CONFLICT (id) DO UPDATE
	SET type = EXCLUDED.type,
		owner_id = EXCLUDED.owner_id,
		payload = EXCLUDED.payload,
		updated_at = NOW()
	`

	payload, err := json.Marshal(rec)
	if err != nil {
		return domain.WrapError(domain.ErrCodeInvalid, "encode record", err)
	}
	owner, _ := rec[domain.FieldOwner].(string)

	_, err = r.pool.Exec(ctx, query, rec.ID(), rec.TypeTag(), owner, payload)
	return err
}

func (r *RecordRepository) Delete(ctx context.Context, typeTag, id string) error {
	const query = `DELETE FROM entities WHERE id = $1 AND ($2 = '' OR type = $2)`
	tag, err := r.pool.Exec(ctx, query, id, typeTag)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ObjectNotFound(typeTag, id)
	}
	return nil
}

var (
	_ repository.RecordRepository = (*RecordRepository)(nil)
	_ repository.RecordLister     = (*RecordRepository)(nil)
)
