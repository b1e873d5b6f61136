// Package errors provides custom error types for the asset composer.
// All service-layer and graph errors should use AppError to ensure consistent,
// secure error responses that never leak internal details to clients.
package errors

import "net/http"

// AppError represents a structured application error with an error code,
// human-readable message, HTTP status code, and optional internal error.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string { return e.Message }

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Is reports whether target is an AppError carrying the same code, so wrapped
// copies of a sentinel still match it.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

// Wrap creates a new AppError with the same code/message/status but wraps an internal error.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// WithMessage creates a new AppError with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

// Authentication & authorization errors.
var (
	ErrUnauthorized       = &AppError{Code: "UNAUTHORIZED", Message: "Authentication required", StatusCode: http.StatusUnauthorized}
	ErrInvalidCredentials = &AppError{Code: "INVALID_CREDENTIALS", Message: "Invalid email or password", StatusCode: http.StatusUnauthorized}
	ErrAccountLocked      = &AppError{Code: "ACCOUNT_LOCKED", Message: "Account is temporarily locked, try again later", StatusCode: http.StatusLocked}
)

// General errors.
var (
	ErrInvalidInput   = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrNotFound       = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
)

// User errors.
var (
	ErrUserNotFound   = &AppError{Code: "USER_NOT_FOUND", Message: "User not found", StatusCode: http.StatusNotFound}
	ErrDuplicateEmail = &AppError{Code: "DUPLICATE_EMAIL", Message: "A user with this email already exists", StatusCode: http.StatusConflict}
)

// Graph errors. Graph operations that return one of these leave the graph unchanged.
var (
	ErrDuplicateID     = &AppError{Code: "DUPLICATE_ID", Message: "An element with this id already exists", StatusCode: http.StatusConflict}
	ErrNodeNotFound    = &AppError{Code: "NODE_NOT_FOUND", Message: "Node not found", StatusCode: http.StatusNotFound}
	ErrInvalidGraph    = &AppError{Code: "INVALID_GRAPH", Message: "Graph is inconsistent", StatusCode: http.StatusBadRequest}
	ErrInvalidNodeData = &AppError{Code: "INVALID_NODE_DATA", Message: "Node data does not match its type", StatusCode: http.StatusBadRequest}
)

// Import errors.
var (
	ErrImportMissingFields        = &AppError{Code: "IMPORT_MISSING_FIELDS", Message: "Composition file is missing nodes or edges", StatusCode: http.StatusBadRequest}
	ErrImportUnknownSchemaVersion = &AppError{Code: "IMPORT_UNKNOWN_SCHEMA_VERSION", Message: "Composition file has an unsupported version", StatusCode: http.StatusBadRequest}
	ErrImportMalformedJSON        = &AppError{Code: "IMPORT_MALFORMED_JSON", Message: "Composition file is not valid JSON", StatusCode: http.StatusBadRequest}
)

// Persistence errors.
var (
	ErrPersistence         = &AppError{Code: "PERSISTENCE_ERROR", Message: "Failed to persist composition", StatusCode: http.StatusInternalServerError}
	ErrAssetNotFound       = &AppError{Code: "ASSET_NOT_FOUND", Message: "Asset not found", StatusCode: http.StatusNotFound}
	ErrCompositionNotFound = &AppError{Code: "COMPOSITION_NOT_FOUND", Message: "Composition not found", StatusCode: http.StatusNotFound}
)

// Session errors.
var (
	ErrSessionNotFound     = &AppError{Code: "SESSION_NOT_FOUND", Message: "Composition session not found", StatusCode: http.StatusNotFound}
	ErrSessionNotReady     = &AppError{Code: "SESSION_NOT_READY", Message: "Composition session is not ready for edits", StatusCode: http.StatusConflict}
	ErrOperationInProgress = &AppError{Code: "OPERATION_IN_PROGRESS", Message: "Another save or import is already in progress", StatusCode: http.StatusConflict}
)
