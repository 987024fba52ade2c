package transport

// BatchRequest lists ids for POST /api/v1/objects/{type}/batch.
type BatchRequest struct {
	IDs []string `json:"ids"`
}

// WriteRequest carries field changes for create and update. Reserved fields
// (identifier, type tag, owner) cannot be written this way.
type WriteRequest struct {
	Fields     map[string]any `json:"fields"`
	Unset      []string       `json:"unset"`
	Visibility string         `json:"visibility"`
	Tags       []string       `json:"tags"`
}

// ObjectMeta accompanies object payloads.
type ObjectMeta struct {
	Status   string `json:"status,omitempty"`
	Cached   bool   `json:"cached"`
	Buffered bool   `json:"buffered,omitempty"`
}

// ListMeta accompanies list payloads.
type ListMeta struct {
	Count  int `json:"count"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}
