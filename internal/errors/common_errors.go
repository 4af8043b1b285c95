package errors

import (
	"errors"
	"fmt"
)

// ErrorType classifies an AppError. Ingest outcomes carry the type in their
// JSON so the dashboard can pick a message style per type.
type ErrorType string

// Ingest failures
const (
	ErrTypeUnparseable         ErrorType = "UNPARSEABLE"
	ErrTypeNoViableSchema      ErrorType = "NO_VIABLE_SCHEMA"
	ErrTypeWrongSchema         ErrorType = "WRONG_SCHEMA"
	ErrTypeMissingExpectation  ErrorType = "MISSING_EXPECTATION"
	ErrTypeEmptyFile           ErrorType = "EMPTY_FILE"
	ErrTypeInsufficientHistory ErrorType = "INSUFFICIENT_HISTORY"
)

// Service failures
const (
	ErrTypeDefinition ErrorType = "DEFINITION"
	ErrTypeStorage    ErrorType = "STORAGE"
	ErrTypeValidation ErrorType = "VALIDATION"
	ErrTypeNotFound   ErrorType = "NOT_FOUND"
	ErrTypeConfig     ErrorType = "CONFIG"
)

// AppError is a typed failure. Message is shown to users as is, Cause stays
// reachable through errors.Is and errors.As.
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

func (e *AppError) Error() string {
	msg := "[" + string(e.Type) + "] " + e.Message
	if e.Cause == nil {
		return msg
	}
	return msg + ": " + e.Cause.Error()
}

func (e *AppError) Unwrap() error { return e.Cause }

// WithContext attaches key=value to the problem response rendered for e
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = map[string]interface{}{}
	}
	e.Context[key] = value
	return e
}

func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{Type: errType, Message: message, Cause: cause, Context: map[string]interface{}{}}
}

// TypeOf returns the ErrorType of the first AppError in the chain, or "".
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ""
}

// IsType reports whether err carries an AppError of the given type.
func IsType(err error, errType ErrorType) bool {
	return TypeOf(err) == errType
}

// UserMessage renders err the way it is shown to a dashboard user: the AppError
// message followed by its cause, without the type prefix.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return err.Error()
	}
	if appErr.Cause != nil {
		return fmt.Sprintf("%s: %s", appErr.Message, UserMessage(appErr.Cause))
	}
	return appErr.Message
}

func NewUnparseableError(message string, cause error) *AppError {
	return NewAppError(ErrTypeUnparseable, message, cause)
}

// NewNoViableSchemaError is returned when a table satisfies no dataset schema
func NewNoViableSchemaError(message string) *AppError {
	return NewAppError(ErrTypeNoViableSchema, message, nil)
}

// NewWrongSchemaError is returned when a table was detected as another
// dataset than the slot expects
func NewWrongSchemaError(message string) *AppError {
	return NewAppError(ErrTypeWrongSchema, message, nil)
}

func NewEmptyFileError(name string) *AppError {
	return NewAppError(ErrTypeEmptyFile, fmt.Sprintf("File '%s' is empty", name), nil)
}

// NewDefinitionError flags a broken schema or page definition at load time
func NewDefinitionError(message string) *AppError {
	return NewAppError(ErrTypeDefinition, message, nil)
}

func NewStorageError(message string, cause error) *AppError {
	return NewAppError(ErrTypeStorage, message, cause)
}

func NewAppValidationError(message string) *AppError {
	return NewAppError(ErrTypeValidation, message, nil)
}

func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrTypeNotFound, resource+" not found", nil)
}

func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}
