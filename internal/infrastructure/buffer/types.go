package buffer

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Item is a record write the primary store rejected, kept for replay.
type Item struct {
	ID        string          `json:"id"`
	RecordID  string          `json:"record_id"`
	TypeTag   string          `json:"type"`
	Operation string          `json:"operation"`
	Data      json.RawMessage `json:"data,omitempty"`
	Priority  int             `json:"priority"`
	Retries   int             `json:"retries"`
	Timestamp time.Time       `json:"timestamp"`

	bucketKey []byte
}

func (i *Item) normalize(now time.Time) {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	if i.Priority <= 0 || i.Priority > 5 {
		i.Priority = 3
	}
	if i.Timestamp.IsZero() {
		i.Timestamp = now
	}
}
