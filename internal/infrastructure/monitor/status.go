package monitor

import "time"

// TierStatus is the last probe outcome for one storage tier.
type TierStatus struct {
	Online bool   `json:"online"`
	Error  string `json:"error,omitempty"`
}

// Status is a point-in-time view of every registered tier.
type Status struct {
	Tiers      map[string]TierStatus `json:"tiers"`
	Buffer     bool                  `json:"buffer"`
	BufferSize int                   `json:"buffer_size"`
	LastCheck  time.Time             `json:"last_check"`
}
