package errors

import (
	"net/http"

	"github.com/go-chi/render"
)

// Code is the machine readable error_code member of an error response
type Code string

const (
	CodeInvalidRequest   Code = "INVALID_REQUEST"
	CodeInvalidJSON      Code = "INVALID_JSON"
	CodeValidationFailed Code = "VALIDATION_FAILED"
	CodeNotFound         Code = "NOT_FOUND"
	CodePageNotFound     Code = "PAGE_NOT_FOUND"
	CodeDatasetNotFound  Code = "DATASET_NOT_FOUND"
	CodePayloadTooLarge  Code = "PAYLOAD_TOO_LARGE"
	CodeUnsupportedMedia Code = "UNSUPPORTED_MEDIA_TYPE"
	CodeRateLimited      Code = "RATE_LIMIT_EXCEEDED"
	CodeWebSocketUpgrade Code = "WEBSOCKET_UPGRADE_FAILED"
)

// APIError is a transport level failure: the request itself was wrong, as
// opposed to an AppError raised while processing a well formed request.
type APIError struct {
	Status  int
	Code    Code
	Message string
	Details interface{}
}

func (e *APIError) Error() string {
	return e.Message
}

// Render implements render.Renderer
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.Status)
	return nil
}

// New returns an APIError without details
func New(status int, code Code, message string) *APIError {
	return &APIError{Status: status, Code: code, Message: message}
}

// NewWithDetails returns an APIError whose details are rendered under the
// "details" member
func NewWithDetails(status int, code Code, message string, details interface{}) *APIError {
	return &APIError{Status: status, Code: code, Message: message, Details: details}
}

// InvalidRequestWithError reports a request that could not be decoded
func InvalidRequestWithError(err error) *APIError {
	return NewWithDetails(http.StatusBadRequest, CodeInvalidRequest, "Invalid request format", err.Error())
}

// ValidationError names one rejected request field
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ErrValidation reports a single invalid field
func ErrValidation(field, message string) *APIError {
	return NewWithDetails(http.StatusBadRequest, CodeValidationFailed, message, ValidationError{
		Field:   field,
		Message: message,
	})
}

// NewValidationErrors reports every invalid field of a request body
func NewValidationErrors(errs []ValidationError) *APIError {
	return NewWithDetails(http.StatusBadRequest, CodeValidationFailed, "Request validation failed",
		map[string]interface{}{"errors": errs})
}
