// Package errors defines structured error types for the ssoguard token service.
// Every error carries an OAuth-style code and the HTTP status it maps to.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/turtacn/ssoguard/pkg/constants"
)

// ================================================================================
// Base Error Interface
// ================================================================================

// CBCError represents a structured error with additional metadata
type CBCError interface {
	error

	// Code returns the OAuth 2.0 error code
	Code() constants.ErrorCode

	// HTTPStatus returns the HTTP status code
	HTTPStatus() int

	// Description returns a human-readable description
	Description() string

	// Unwrap returns the underlying error for error chain support
	Unwrap() error

	// WithCause returns a copy of the error with cause attached
	WithCause(cause error) CBCError

	// WithMetadata returns a copy of the error with an extra metadata entry
	WithMetadata(key string, value interface{}) CBCError

	// Metadata returns all metadata
	Metadata() map[string]interface{}
}

// ================================================================================
// Base Error Implementation
// ================================================================================

type baseError struct {
	code        constants.ErrorCode
	httpStatus  int
	description string
	message     string
	cause       error
	metadata    map[string]interface{}
	// kind links copies back to the sentinel they were derived from so errors.Is keeps working.
	kind *baseError
}

// Error implements the error interface
func (e *baseError) Error() string {
	msg := e.message
	if msg == "" {
		msg = e.description
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.cause)
	}
	return msg
}

// Code returns the OAuth 2.0 error code
func (e *baseError) Code() constants.ErrorCode {
	return e.code
}

// HTTPStatus returns the HTTP status code
func (e *baseError) HTTPStatus() int {
	return e.httpStatus
}

// Description returns the error description
func (e *baseError) Description() string {
	return e.description
}

// Unwrap returns the underlying cause error
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is reports whether target is the sentinel this error was derived from.
func (e *baseError) Is(target error) bool {
	t, ok := target.(*baseError)
	if !ok {
		return false
	}
	return e == t || (e.kind != nil && e.kind == t) || (t.kind != nil && e.kind == t.kind && e.kind != nil)
}

// WithCause attaches a cause to a copy of the error. Sentinels stay untouched.
func (e *baseError) WithCause(cause error) CBCError {
	c := e.clone()
	c.cause = cause
	return c
}

// WithMetadata attaches metadata to a copy of the error.
func (e *baseError) WithMetadata(key string, value interface{}) CBCError {
	c := e.clone()
	c.metadata[key] = value
	return c
}

// Metadata returns all metadata
func (e *baseError) Metadata() map[string]interface{} {
	return e.metadata
}

func (e *baseError) clone() *baseError {
	c := *e
	c.metadata = make(map[string]interface{}, len(e.metadata)+1)
	for k, v := range e.metadata {
		c.metadata[k] = v
	}
	if e.kind == nil {
		c.kind = e
	}
	return &c
}

// ================================================================================
// Error Constructor
// ================================================================================

// NewError creates a new CBCError with the specified parameters
func NewError(code constants.ErrorCode, httpStatus int, description string, message string) CBCError {
	return &baseError{
		code:        code,
		httpStatus:  httpStatus,
		description: description,
		message:     message,
		metadata:    make(map[string]interface{}),
	}
}

// ================================================================================
// Token Failure Taxonomy
// ================================================================================

// Sentinel token failures. Compare with errors.Is; decorate with WithCause/WithMetadata.
var (
	// ErrMalformedToken is returned when the token cannot be decoded at all
	ErrMalformedToken = NewError(constants.ErrCodeInvalidToken, http.StatusUnauthorized,
		"The token is malformed.", "token is malformed")

	// ErrSignatureInvalid is returned when the signature does not verify
	ErrSignatureInvalid = NewError(constants.ErrCodeInvalidToken, http.StatusUnauthorized,
		"The token signature is invalid.", "token signature is invalid")

	// ErrTokenExpired is returned when now >= exp
	ErrTokenExpired = NewError(constants.ErrCodeInvalidToken, http.StatusUnauthorized,
		"The token has expired.", "token has expired")

	// ErrTokenRevoked is returned for tokens present in the revocation store
	ErrTokenRevoked = NewError(constants.ErrCodeInvalidToken, http.StatusUnauthorized,
		"The token has been revoked.", "token has been revoked")

	// ErrInvalidCredential is the umbrella failure surfaced by Refresh and ToPrincipal
	ErrInvalidCredential = NewError(constants.ErrCodeInvalidToken, http.StatusUnauthorized,
		"The access token is invalid, expired or revoked.", "invalid credential")

	// ErrBadCredentials is returned by the password check on unknown users or wrong passwords
	ErrBadCredentials = NewError(constants.ErrCodeInvalidGrant, http.StatusUnauthorized,
		"Bad credentials.", "bad credentials")

	// ErrUnauthenticated is returned when a protected resource is reached without a principal
	ErrUnauthenticated = NewError(constants.ErrCodeInvalidToken, http.StatusUnauthorized,
		"Full authentication is required to access this resource.", "unauthenticated")
)

// InvalidCredential collapses any token failure into ErrInvalidCredential, keeping the
// specific failure as the cause.
func InvalidCredential(cause error) CBCError {
	if cause == nil {
		return ErrInvalidCredential
	}
	return ErrInvalidCredential.WithCause(cause)
}

// ================================================================================
// Predefined Error Constructors
// ================================================================================

// ErrInvalidRequest creates an invalid_request error
func ErrInvalidRequest(message string) CBCError {
	return NewError(
		constants.ErrCodeInvalidRequest,
		http.StatusBadRequest,
		"The request is missing a required parameter, includes an invalid parameter value, or is otherwise malformed.",
		message,
	)
}

// ErrUnsupportedOperation creates an error for operations not offered in the active mode
func ErrUnsupportedOperation(operation string, mode constants.AuthMode) CBCError {
	return NewError(
		constants.ErrCodeUnsupportedOperation,
		http.StatusNotImplemented,
		"The operation is not available in the configured authentication mode.",
		fmt.Sprintf("%s is not supported in %s mode", operation, mode),
	).WithMetadata("mode", string(mode))
}

// ErrForbidden creates an insufficient_scope error
func ErrForbidden(authority string) CBCError {
	return NewError(
		constants.ErrCodeInsufficientScope,
		http.StatusForbidden,
		"The request requires higher privileges than provided by the access token.",
		fmt.Sprintf("authority %s required", authority),
	).WithMetadata("authority", authority)
}

// ErrRateLimitExceeded creates a rate limit exceeded error
func ErrRateLimitExceeded(scope string) CBCError {
	return NewError(
		constants.ErrCodeRateLimited,
		http.StatusTooManyRequests,
		"Rate limit exceeded. Please try again later.",
		fmt.Sprintf("rate limit exceeded for %s", scope),
	).WithMetadata("scope", scope)
}

// ErrServerError creates a server_error error
func ErrServerError(message string) CBCError {
	return NewError(
		constants.ErrCodeServerError,
		http.StatusInternalServerError,
		"The server encountered an unexpected condition that prevented it from fulfilling the request.",
		message,
	)
}

// ErrStoreUnavailable creates an error for an unreachable revocation backend
func ErrStoreUnavailable(backend string, cause error) CBCError {
	return NewError(
		constants.ErrCodeTemporarilyUnavailable,
		http.StatusServiceUnavailable,
		"The revocation store is currently unavailable.",
		fmt.Sprintf("%s revocation store unavailable", backend),
	).WithCause(cause).WithMetadata("backend", backend)
}

// ErrInvalidConfig creates a configuration error
func ErrInvalidConfig(message string) CBCError {
	return NewError(
		constants.ErrCodeServerError,
		http.StatusInternalServerError,
		"The service configuration is invalid.",
		message,
	)
}

// ErrSecretUnavailable creates an error for a signing secret that could not be loaded
func ErrSecretUnavailable(source string, cause error) CBCError {
	return NewError(
		constants.ErrCodeServerError,
		http.StatusInternalServerError,
		"The signing secret could not be loaded.",
		fmt.Sprintf("signing secret unavailable from %s", source),
	).WithCause(cause).WithMetadata("source", source)
}

// ================================================================================
// Error Validation Utilities
// ================================================================================

// AsCBCError finds the first CBCError in err's chain
func AsCBCError(err error) (CBCError, bool) {
	var cbcErr CBCError
	if stderrors.As(err, &cbcErr) {
		return cbcErr, true
	}
	return nil, false
}

// IsCBCError checks if an error is a CBCError
func IsCBCError(err error) bool {
	_, ok := AsCBCError(err)
	return ok
}

// Is is errors.Is re-exported so callers can import a single errors package.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// IsAuthenticationError reports whether err should be answered with 401
func IsAuthenticationError(err error) bool {
	if cbcErr, ok := AsCBCError(err); ok {
		return cbcErr.HTTPStatus() == http.StatusUnauthorized
	}
	return false
}

// IsTransientError checks if an error is transient and can be retried
func IsTransientError(err error) bool {
	if cbcErr, ok := AsCBCError(err); ok {
		return cbcErr.Code() == constants.ErrCodeTemporarilyUnavailable
	}
	return false
}

// ShouldLogError determines if an error should be logged at error level
func ShouldLogError(err error) bool {
	if cbcErr, ok := AsCBCError(err); ok {
		status := cbcErr.HTTPStatus()
		return status >= 500
	}
	return true
}

// ================================================================================
// Error Response Builder
// ================================================================================

// ErrorResponse represents the JSON structure for error responses
type ErrorResponse struct {
	Error            string                 `json:"error"`
	ErrorDescription string                 `json:"error_description"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
}

// ToErrorResponse converts a CBCError to an ErrorResponse
func ToErrorResponse(err CBCError) *ErrorResponse {
	resp := &ErrorResponse{
		Error:            string(err.Code()),
		ErrorDescription: err.Description(),
	}
	if len(err.Metadata()) > 0 {
		resp.Metadata = err.Metadata()
	}
	return resp
}

// ToGenericErrorResponse converts any error to an ErrorResponse and its HTTP status
func ToGenericErrorResponse(err error) (int, *ErrorResponse) {
	if cbcErr, ok := AsCBCError(err); ok {
		return cbcErr.HTTPStatus(), ToErrorResponse(cbcErr)
	}

	return http.StatusInternalServerError, &ErrorResponse{
		Error:            string(constants.ErrCodeServerError),
		ErrorDescription: "An unexpected error occurred",
	}
}
