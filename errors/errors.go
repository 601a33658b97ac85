package errors

import "fmt"

var (
	ErrWorkerPanic        = fmt.Errorf("worker panic")
	ErrEmptyExtensionList = fmt.Errorf("extension allow-list is empty")
)

// Code identifies a client-facing failure category.
// It travels on the wire inside the "error" event.
type Code string

const (
	CodeTooLarge       Code = "TooLarge"
	CodeTypeNotAllowed Code = "TypeNotAllowed"
	CodeStorageError   Code = "StorageError"
)

// RelayError is the only error shape reported back to a connected client.
// Anything else stays on the server side (logged, never surfaced).
type RelayError struct {
	Code    Code
	Message string
}

func (e *RelayError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewTooLarge(size, max int64) *RelayError {
	return &RelayError{
		Code:    CodeTooLarge,
		Message: fmt.Sprintf("file of %d bytes exceeds the %d bytes limit", size, max),
	}
}

func NewTypeNotAllowed(extension string) *RelayError {
	return &RelayError{
		Code:    CodeTypeNotAllowed,
		Message: fmt.Sprintf("file type %q is not allowed", extension),
	}
}

func NewStorageError(cause error) *RelayError {
	return &RelayError{
		Code:    CodeStorageError,
		Message: fmt.Sprintf("file could not be stored: %v", cause),
	}
}
