package types

import (
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Complete error code constants.
// Handlers and services MUST use these constants instead of hardcoded strings.
const (
	// Validation (400)
	ErrCodeValidationMissingField    ErrorCode = "validation_missing_required_field"
	ErrCodeValidationInvalidPlatform ErrorCode = "validation_invalid_platform"
	ErrCodeValidationInvalidContent  ErrorCode = "validation_invalid_content_type"
	ErrCodeValidationDuplicate       ErrorCode = "validation_duplicate_platform"
	ErrCodeValidationEmptyPlatforms  ErrorCode = "validation_empty_platforms"
	ErrCodeValidationTimeInPast      ErrorCode = "validation_time_in_past"
	ErrCodeValidationVelocity        ErrorCode = "validation_invalid_velocity"
	ErrCodeValidationInvalidTimezone ErrorCode = "validation_invalid_timezone"
	ErrCodeValidationInvalidCount    ErrorCode = "validation_invalid_count"
	ErrCodeValidationInvalidTime     ErrorCode = "validation_invalid_time"
	ErrCodeValidationInvalidField    ErrorCode = "validation_invalid_field"

	// Not Found (404)
	ErrCodeNotFoundPost    ErrorCode = "not_found_scheduled_post"
	ErrCodeNotFoundTask    ErrorCode = "not_found_publish_task"
	ErrCodeNotFoundContent ErrorCode = "not_found_content"

	// Conflict (409)
	ErrCodeConflictNotCancellable ErrorCode = "conflict_not_cancellable"
	ErrCodeConflictRunInProgress  ErrorCode = "conflict_run_in_progress"
	ErrCodeConflictSlotTaken      ErrorCode = "conflict_slot_taken"

	// Publishing (reported per platform, never as HTTP responses)
	ErrCodePublishNotConfigured   ErrorCode = "publish_not_configured"
	ErrCodePublishContentMismatch ErrorCode = "publish_content_mismatch"
	ErrCodePublishTimeout         ErrorCode = "publish_timeout"

	// Internal/Upstream (500/502)
	ErrCodeInternalDB          ErrorCode = "internal_database_error"
	ErrCodeInternalUnexpected  ErrorCode = "internal_unexpected_error"
	ErrCodeUpstreamPlatform    ErrorCode = "upstream_platform_error"
	ErrCodeUpstreamUnavailable ErrorCode = "upstream_unavailable"
	ErrCodeUpstreamRateLimited ErrorCode = "upstream_rate_limited"
)

// HTTPStatus maps an ErrorCode to its corresponding HTTP status code.
// Returns 500 for unrecognized error codes as a safe default.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"):
		return http.StatusBadRequest
	case strings.HasPrefix(s, "not_found_"):
		return http.StatusNotFound
	case strings.HasPrefix(s, "conflict_"):
		return http.StatusConflict
	case s == string(ErrCodeUpstreamRateLimited):
		return http.StatusTooManyRequests
	case strings.HasPrefix(s, "upstream_"), strings.HasPrefix(s, "publish_"):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// AppError is the standard application error type used throughout the service.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code corresponding to this error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a copy of the error with the provided details merged in.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     e.Err,
		Details: merged,
	}
}

// NewAppError creates a new AppError with the given code, message, and optional
// underlying error.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewAppErrorWithDetails creates a new AppError with structured details.
func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: details,
	}
}
