package sdk

import "fmt"

// Error codes returned by the server in the error envelope.
const (
	CodeBadRequest    = "bad_request"
	CodeInvalidQuery  = "invalid_query"
	CodeEncoding      = "encoding_failed"
	CodeIndexNotReady = "index_not_ready"
	CodeTimeout       = "timeout"
	CodeInternalError = "internal_error"
)

// APIError is a structured error response from the server.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("semdex: %s (%d): %s", e.Code, e.StatusCode, e.Message)
}

// IsRetryable reports whether the request may succeed on retry: the index
// is still loading or the request timed out.
func (e *APIError) IsRetryable() bool {
	return e.Code == CodeIndexNotReady || e.Code == CodeTimeout
}
