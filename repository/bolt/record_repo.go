package bolt

import (
	"bytes"
	"context"
	"encoding/json"

	bbolt "go.etcd.io/bbolt"

	"github.com/fastygo/entitycache/domain"
	"github.com/fastygo/entitycache/repository"
)

const (
	bucketPrefix = "rec:"
	untypedTag   = "_untyped"
)

// RecordRepository keeps records in a local Bolt file, one bucket per type tag,
// keyed by id.
type RecordRepository struct {
	db *bbolt.DB
}

func NewRecordRepository(db *bbolt.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

func (r *RecordRepository) Get(ctx context.Context, typeTag, id string) (domain.Record, error) {
	if r == nil || r.db == nil {
		return nil, bbolt.ErrDatabaseNotOpen
	}
	var rec domain.Record
	err := r.db.View(func(tx *bbolt.Tx) error {
		payload := lookup(tx, typeTag, []byte(id))
		if payload == nil {
			return domain.ObjectNotFound(typeTag, id)
		}
		var err error
		rec, err = domain.DecodeRecord(payload)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *RecordRepository) GetMany(ctx context.Context, typeTag string, ids []string) ([]domain.Record, error) {
	if r == nil || r.db == nil {
		return nil, bbolt.ErrDatabaseNotOpen
	}
	out := make([]domain.Record, len(ids))
	err := r.db.View(func(tx *bbolt.Tx) error {
		for i, id := range ids {
			payload := lookup(tx, typeTag, []byte(id))
			if payload == nil {
				continue
			}
			rec, err := domain.DecodeRecord(payload)
			if err != nil {
				continue
			}
			out[i] = rec
		}
		return nil
	})
	return out, err
}

func (r *RecordRepository) List(ctx context.Context, filter repository.RecordFilter) ([]domain.Record, error) {
	if r == nil || r.db == nil {
		return nil, bbolt.ErrDatabaseNotOpen
	}
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	var (
		out     []domain.Record
		skipped int
	)
	err := r.db.View(func(tx *bbolt.Tx) error {
		return eachBucket(tx, filter.Type, func(b *bbolt.Bucket) error {
			c := b.Cursor()
			for k, v := c.First(); k != nil && len(out) < limit; k, v = c.Next() {
				rec, err := domain.DecodeRecord(v)
				if err != nil {
					continue
				}
				if filter.OwnerID != "" && rec[domain.FieldOwner] != filter.OwnerID {
					continue
				}
				if skipped < filter.Offset {
					skipped++
					continue
				}
				out = append(out, rec)
			}
			return nil
		})
	})
	return out, err
}

func (r *RecordRepository) Save(ctx context.Context, rec domain.Record) error {
	if r == nil || r.db == nil {
		return bbolt.ErrDatabaseNotOpen
	}
	if rec == nil || rec.ID() == "" {
		return domain.ErrInvalidRecord
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return domain.WrapError(domain.ErrCodeInvalid, "encode record", err)
	}

	key := []byte(rec.ID())
	target := bucketName(rec.TypeTag())
	return r.db.Update(func(tx *bbolt.Tx) error {
		// a record whose type changed must not stay visible under the old tag
		if err := eachBucket(tx, "", func(b *bbolt.Bucket) error {
			return b.Delete(key)
		}); err != nil {
			return err
		}
		b, err := tx.CreateBucketIfNotExists(target)
		if err != nil {
			return err
		}
		return b.Put(key, payload)
	})
}

func (r *RecordRepository) Delete(ctx context.Context, typeTag, id string) error {
	if r == nil || r.db == nil {
		return bbolt.ErrDatabaseNotOpen
	}
	key := []byte(id)
	return r.db.Update(func(tx *bbolt.Tx) error {
		found := false
		err := eachBucket(tx, typeTag, func(b *bbolt.Bucket) error {
			if b.Get(key) == nil {
				return nil
			}
			found = true
			return b.Delete(key)
		})
		if err != nil {
			return err
		}
		if !found {
			return domain.ObjectNotFound(typeTag, id)
		}
		return nil
	})
}

func bucketName(typeTag string) []byte {
	if typeTag == "" {
		typeTag = untypedTag
	}
	return []byte(bucketPrefix + typeTag)
}

// lookup returns a copy of the stored payload; Bolt memory is only valid inside the transaction.
func lookup(tx *bbolt.Tx, typeTag string, key []byte) []byte {
	var found []byte
	_ = eachBucket(tx, typeTag, func(b *bbolt.Bucket) error {
		if found != nil {
			return nil
		}
		if v := b.Get(key); v != nil {
			found = append([]byte(nil), v...)
		}
		return nil
	})
	return found
}

// eachBucket visits the bucket for typeTag, or every record bucket when typeTag is empty.
func eachBucket(tx *bbolt.Tx, typeTag string, fn func(*bbolt.Bucket) error) error {
	if typeTag != "" {
		b := tx.Bucket(bucketName(typeTag))
		if b == nil {
			return nil
		}
		return fn(b)
	}
	prefix := []byte(bucketPrefix)
	return tx.ForEach(func(name []byte, b *bbolt.Bucket) error {
		if !bytes.HasPrefix(name, prefix) {
			return nil
		}
		return fn(b)
	})
}

var (
	_ repository.RecordRepository = (*RecordRepository)(nil)
	_ repository.RecordLister     = (*RecordRepository)(nil)
)
