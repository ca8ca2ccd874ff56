package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeNotFound indicates a resource was not found
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeValidation indicates invalid input data
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeConflict indicates a conflict with concurrent or existing data
	ErrorTypeConflict ErrorType = "conflict"
	// ErrorTypeInvalidState indicates an operation attempted on an entity
	// whose current lifecycle state does not allow it
	ErrorTypeInvalidState ErrorType = "invalid_state"
	// ErrorTypeUnauthorized indicates authentication failure
	ErrorTypeUnauthorized ErrorType = "unauthorized"
	// ErrorTypeForbidden indicates insufficient permissions
	ErrorTypeForbidden ErrorType = "forbidden"
	// ErrorTypeInternal indicates an internal server error
	ErrorTypeInternal ErrorType = "internal"
	// ErrorTypeMethodNotAllowed indicates an unsupported HTTP method
	ErrorTypeMethodNotAllowed ErrorType = "method_not_allowed"
	// ErrorTypeExternal indicates an external service error
	ErrorTypeExternal ErrorType = "external"
)

// Stable machine-readable codes returned to clients alongside the error type.
// These are part of the API contract; callers key retry logic off them.
const (
	CodeBaseNotFound            = "BASE_NOT_FOUND"
	CodeTemplateNotFound        = "TEMPLATE_NOT_FOUND"
	CodeUpgradeTemplateNotFound = "UPGRADE_TEMPLATE_NOT_FOUND"
	CodeSpawnNotFound           = "SPAWN_NOT_FOUND"
	CodeUpgradeNotFound         = "UPGRADE_NOT_FOUND"
	CodeBaseLimitReached        = "BASE_LIMIT_REACHED"
	CodeUpgradeInProgress       = "UPGRADE_IN_PROGRESS"
	CodeCoordinatesOccupied     = "COORDINATES_OCCUPIED"
	CodeMovementCooldown        = "MOVEMENT_COOLDOWN"
	CodeDistanceTooFar          = "DISTANCE_TOO_FAR"
	CodeSameCoordinates         = "SAME_COORDINATES"
	CodeInvalidBaseStatus       = "INVALID_BASE_STATUS"
	CodeSpawnUnavailable        = "SPAWN_UNAVAILABLE"
)

// AppError is the base error type for application errors
type AppError struct {
	Type    ErrorType
	Code    string
	Message string
	Details map[string]any
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetails attaches contextual details (ids, thresholds, remaining time)
// to the error and returns it for chaining.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	e.Details = details
	return e
}

// NotFound creates a not found error with a stable code
func NotFound(code, message string) *AppError {
	return &AppError{
		Type:    ErrorTypeNotFound,
		Code:    code,
		Message: message,
	}
}

// NotFoundf creates a not found error with formatting
func NotFoundf(code, format string, args ...interface{}) *AppError {
	return &AppError{
		Type:    ErrorTypeNotFound,
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Validation creates a validation error
func Validation(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeValidation,
		Message: message,
	}
}

// Validationf creates a validation error with formatting
func Validationf(format string, args ...interface{}) *AppError {
	return &AppError{
		Type:    ErrorTypeValidation,
		Message: fmt.Sprintf(format, args...),
	}
}

// Invalidf creates a validation error carrying a stable code
func Invalidf(code, format string, args ...interface{}) *AppError {
	return &AppError{
		Type:    ErrorTypeValidation,
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Conflict creates a conflict error with a stable code
func Conflict(code, message string) *AppError {
	return &AppError{
		Type:    ErrorTypeConflict,
		Code:    code,
		Message: message,
	}
}

// Conflictf creates a conflict error with formatting
func Conflictf(code, format string, args ...interface{}) *AppError {
	return &AppError{
		Type:    ErrorTypeConflict,
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// InvalidState creates an invalid state error
func InvalidState(code, message string) *AppError {
	return &AppError{
		Type:    ErrorTypeInvalidState,
		Code:    code,
		Message: message,
	}
}

// InvalidStatef creates an invalid state error with formatting
func InvalidStatef(code, format string, args ...interface{}) *AppError {
	return &AppError{
		Type:    ErrorTypeInvalidState,
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeInternal,
		Message: message,
		Err:     err,
	}
}

// Unauthorized creates an unauthorized error
func Unauthorized(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeUnauthorized,
		Message: message,
	}
}

// MethodNotAllowed creates a method not allowed error
func MethodNotAllowed(method string) *AppError {
	return &AppError{
		Type:    ErrorTypeMethodNotAllowed,
		Message: fmt.Sprintf("method %s not allowed", method),
	}
}

// External creates an external service error
func External(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeExternal,
		Message: message,
	}
}

// WrapExternal wraps an error as an external service error
func WrapExternal(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeExternal,
		Message: message,
		Err:     err,
	}
}

// GetType returns the error type of an error
func GetType(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeInternal
}

// GetCode returns the stable code of an error, or "" for uncoded errors
func GetCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// GetDetails returns the contextual details attached to an error, if any
func GetDetails(err error) map[string]any {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Details
	}
	return nil
}

// HasCode reports whether err carries the given stable code
func HasCode(err error, code string) bool {
	return GetCode(err) == code
}
