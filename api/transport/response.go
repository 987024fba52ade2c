package transport

// Envelope wraps every API response.
type Envelope struct {
	Status    string     `json:"status"`
	Code      string     `json:"code,omitempty"`
	RequestID string     `json:"request_id,omitempty"`
	Data      any        `json:"data,omitempty"`
	Error     *ErrorBody `json:"error,omitempty"`
	Meta      any        `json:"meta,omitempty"`
}

// ErrorBody describes a failed request.
type ErrorBody struct {
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func NewSuccess(data any, meta any) Envelope {
	return Envelope{Status: "success", Data: data, Meta: meta}
}

func NewError(code, message string, details any) Envelope {
	return Envelope{
		Status: "error",
		Code:   code,
		Error:  &ErrorBody{Message: message, Details: details},
	}
}
