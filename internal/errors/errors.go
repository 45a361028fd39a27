package errors

import (
	stderrors "errors"
	"fmt"
)

// Precondition failures. These are the only errors the realtime core lets
// escape to its callers; bus failures are logged and swallowed instead.
var (
	ErrMissingPostID      = stderrors.New("post id is required")
	ErrMissingCommunityID = stderrors.New("community id is required")
	ErrMissingUserID      = stderrors.New("user id is required")
)

// APIError represents a standardized API error response
type APIError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Field   string    `json:"field,omitempty"`
	Details string    `json:"details,omitempty"`
	Status  int       `json:"-"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field: %s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newAPIError(code ErrorCode, message string) *APIError {
	return &APIError{Code: code, Message: message, Status: code.StatusCode()}
}

// NotFound creates a NOT_FOUND error
func NotFound(resource string) *APIError {
	return newAPIError(ErrNotFound, fmt.Sprintf("%s not found", resource))
}

// Unauthorized creates an UNAUTHORIZED error
func Unauthorized(message string) *APIError {
	return newAPIError(ErrUnauthorized, message)
}

// BadRequest creates a BAD_REQUEST error
func BadRequest(message string) *APIError {
	return newAPIError(ErrBadRequest, message)
}

// InvalidField creates a BAD_REQUEST error bound to a request field
func InvalidField(field, message string) *APIError {
	e := newAPIError(ErrBadRequest, message)
	e.Field = field
	return e
}

// InternalError creates an INTERNAL_ERROR
func InternalError(message string) *APIError {
	return newAPIError(ErrInternalError, message)
}

// RateLimited creates a RATE_LIMITED error
func RateLimited(message string) *APIError {
	if message == "" {
		message = "rate limit exceeded"
	}
	return newAPIError(ErrRateLimited, message)
}

// ServiceUnavailable creates a SERVICE_UNAVAILABLE error
func ServiceUnavailable(service string) *APIError {
	return newAPIError(ErrServiceUnavail, fmt.Sprintf("%s is temporarily unavailable", service))
}

// WithDetails adds additional details to an error
func (e *APIError) WithDetails(details string) *APIError {
	e.Details = details
	return e
}

// FromError maps precondition sentinels to BAD_REQUEST and anything else to
// INTERNAL_ERROR.
func FromError(err error) *APIError {
	var apiErr *APIError
	switch {
	case stderrors.As(err, &apiErr):
		return apiErr
	case stderrors.Is(err, ErrMissingPostID):
		return InvalidField("post_id", err.Error())
	case stderrors.Is(err, ErrMissingCommunityID):
		return InvalidField("community_id", err.Error())
	case stderrors.Is(err, ErrMissingUserID):
		return InvalidField("user_id", err.Error())
	default:
		return InternalError("internal error").WithDetails(err.Error())
	}
}
