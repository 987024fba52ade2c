package postgres

import (
	"encoding/json"

	"github.com/fastygo/entitycache/domain"
)

func clampLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 100
	}
	return limit
}

func decodePayload(payload []byte) (domain.Record, error) {
	if len(payload) == 0 {
		return domain.Record{}, nil
	}
	var rec domain.Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, err
	}
	return rec, nil
}
