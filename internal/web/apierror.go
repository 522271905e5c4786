package web

// APIError is the error envelope for all 4xx/5xx JSON responses.
type APIError struct {
	Detail string `json:"detail"`
}

func newAPIError(msg string) *APIError {
	return &APIError{Detail: msg}
}

// ValidationError reports per-field problems.
type ValidationError struct {
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields"`
}

func newValidationError(fields map[string]string) *ValidationError {
	return &ValidationError{Detail: "validation error", Fields: fields}
}
