package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redislib "github.com/redis/go-redis/v9"

	"github.com/fastygo/entitycache/domain"
	"github.com/fastygo/entitycache/repository"
)

// RecordRepository keeps records as JSON strings under entity:{id}. Keys expire with the
// record's own ttl field when positive, never when negative, and after the
// repository default otherwise.
type RecordRepository struct {
	client redislib.Cmdable
	prefix string
	ttl    time.Duration
}

// NewRecordRepository creates a Redis-backed record repository.
func NewRecordRepository(client redislib.Cmdable, ttl time.Duration) *RecordRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RecordRepository{
		client: client,
		prefix: "entity:",
		ttl:    ttl,
	}
}

func (r *RecordRepository) Get(ctx context.Context, typeTag, id string) (domain.Record, error) {
	result, err := r.client.Get(ctx, r.key(id)).Result()
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			return nil, domain.ObjectNotFound(typeTag, id)
		}
		return nil, err
	}

	rec, err := domain.DecodeRecord([]byte(result))
	if err != nil {
		return nil, err
	}
	if !matchesType(rec, typeTag) {
		return nil, domain.ObjectNotFound(typeTag, id)
	}
	return rec, nil
}

func (r *RecordRepository) GetMany(ctx context.Context, typeTag string, ids []string) ([]domain.Record, error) {
	out := make([]domain.Record, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.key(id)
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		rec, err := domain.DecodeRecord([]byte(s))
		if err != nil || !matchesType(rec, typeTag) {
			continue
		}
		out[i] = rec
	}
	return out, nil
}

func (r *RecordRepository) Save(ctx context.Context, rec domain.Record) error {
	if rec == nil || rec.ID() == "" {
		return domain.ErrInvalidRecord
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return domain.WrapError(domain.ErrCodeInvalid, "encode record", err)
	}
	return r.client.Set(ctx, r.key(rec.ID()), payload, r.expiration(rec)).Err()
}

func (r *RecordRepository) Delete(ctx context.Context, _ string, id string) error {
	n, err := r.client.Del(ctx, r.key(id)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ObjectNotFound("", id)
	}
	return nil
}

// expiration maps the record ttl (milliseconds) to a key expiry; 0 keeps the key.
func (r *RecordRepository) expiration(rec domain.Record) time.Duration {
	switch ms := rec[domain.FieldTTL].(type) {
	case float64:
		return r.fromMillis(int64(ms))
	case int64:
		return r.fromMillis(ms)
	case int:
		return r.fromMillis(int64(ms))
	}
	return r.ttl
}

func (r *RecordRepository) fromMillis(ms int64) time.Duration {
	switch {
	case ms < 0:
		return 0
	case ms == 0:
		return r.ttl
	default:
		return time.Duration(ms) * time.Millisecond
	}
}

func (r *RecordRepository) key(id string) string {
	return r.prefix + id
}

func matchesType(rec domain.Record, typeTag string) bool {
	return typeTag == "" || rec.TypeTag() == typeTag
}

var _ repository.RecordRepository = (*RecordRepository)(nil)
