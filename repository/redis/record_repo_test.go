package redis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fastygo/entitycache/domain"
)

func TestRecordRepository_Expiration(t *testing.T) {
	repo := NewRecordRepository(nil, time.Minute)

	cases := []struct {
		name string
		rec  domain.Record
		want time.Duration
	}{
		{"absent uses default", domain.Record{}, time.Minute},
		{"positive millis", domain.Record{domain.FieldTTL: int64(1500)}, 1500 * time.Millisecond},
		{"decoded json number", domain.Record{domain.FieldTTL: float64(250)}, 250 * time.Millisecond},
		{"negative keeps key", domain.Record{domain.FieldTTL: -1}, 0},
		{"zero uses default", domain.Record{domain.FieldTTL: 0}, time.Minute},
		{"non-numeric uses default", domain.Record{domain.FieldTTL: "soon"}, time.Minute},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, repo.expiration(tc.rec))
		})
	}
}

func TestRecordRepository_Key(t *testing.T) {
	repo := NewRecordRepository(nil, 0)
	assert.Equal(t, "entity:p1", repo.key("p1"))
	assert.Equal(t, time.Hour, repo.ttl)
}
