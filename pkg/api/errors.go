package api

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents the category of an error returned to clients.
type ErrorType string

const (
	ErrorTypeServerError        ErrorType = "server_error"
	ErrorTypeInvalidRequest     ErrorType = "invalid_request"
	ErrorTypeValidation         ErrorType = "validation_error"
	ErrorTypeHandlerNotFound    ErrorType = "handler_not_found"
	ErrorTypeCapabilityMismatch ErrorType = "capability_mismatch"
	ErrorTypeUnauthenticated    ErrorType = "unauthenticated"
	ErrorTypeUntrustedClient    ErrorType = "untrusted_client"
	ErrorTypeTooManyRequests    ErrorType = "too_many_requests"
	ErrorTypeConfiguration      ErrorType = "configuration_error"
	ErrorTypeEstimator          ErrorType = "estimator_error"
)

// Typed is implemented by every error in the taxonomy.
type Typed interface {
	error
	ErrorType() ErrorType
}

// APIError is a generic structured error with type, code, param, and message.
type APIError struct {
	Type    ErrorType `json:"type"`
	Code    string    `json:"code,omitempty"`
	Param   string    `json:"param,omitempty"`
	Message string    `json:"message"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("%s: %s (param: %s)", e.Type, e.Message, e.Param)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// ErrorType implements Typed.
func (e *APIError) ErrorType() ErrorType { return e.Type }

// NewInvalidRequestError creates an APIError for malformed request bodies.
func NewInvalidRequestError(param, message string) *APIError {
	return &APIError{
		Type:    ErrorTypeInvalidRequest,
		Param:   param,
		Message: message,
	}
}

// NewServerError creates an APIError for internal server errors.
func NewServerError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeServerError,
		Message: message,
	}
}

// NewEstimatorError creates an APIError for failures reported by the estimator.
func NewEstimatorError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeEstimator,
		Message: message,
	}
}

// ValidationError reports a command payload that failed construction-time
// validation.
type ValidationError struct {
	Param   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("%s (param: %s)", e.Message, e.Param)
	}
	return e.Message
}

// ErrorType implements Typed.
func (e *ValidationError) ErrorType() ErrorType { return ErrorTypeValidation }

// NewValidationError creates a ValidationError for the named field.
func NewValidationError(param, format string, args ...any) *ValidationError {
	return &ValidationError{Param: param, Message: fmt.Sprintf(format, args...)}
}

// HandlerNotFoundError is returned by the bus when no handler is registered
// for a command kind.
type HandlerNotFoundError struct {
	Kind Kind
}

func (e *HandlerNotFoundError) Error() string {
	return fmt.Sprintf("an appropriate handler could not be located for %s", e.Kind)
}

// ErrorType implements Typed.
func (e *HandlerNotFoundError) ErrorType() ErrorType { return ErrorTypeHandlerNotFound }

// CapabilityMismatchError is returned when the estimator lacks the capability
// a command requires, such as probabilities from a non-probabilistic model.
type CapabilityMismatchError struct {
	Kind       Kind
	Capability Capability
	Estimator  string
}

func (e *CapabilityMismatchError) Error() string {
	if e.Estimator != "" {
		return fmt.Sprintf("%s requires a %s estimator, the loaded %s is not", e.Kind, e.Capability, e.Estimator)
	}
	return fmt.Sprintf("%s requires a %s estimator", e.Kind, e.Capability)
}

// ErrorType implements Typed.
func (e *CapabilityMismatchError) ErrorType() ErrorType { return ErrorTypeCapabilityMismatch }

// AuthenticationError is returned when credentials are missing or invalid.
type AuthenticationError struct {
	Message string
}

func (e *AuthenticationError) Error() string {
	if e.Message == "" {
		return "authentication required"
	}
	return e.Message
}

// ErrorType implements Typed.
func (e *AuthenticationError) ErrorType() ErrorType { return ErrorTypeUnauthenticated }

// UntrustedClientError is returned when the remote address is not in the
// trusted client set.
type UntrustedClientError struct {
	Addr string
}

func (e *UntrustedClientError) Error() string {
	return fmt.Sprintf("client %s is not trusted", e.Addr)
}

// ErrorType implements Typed.
func (e *UntrustedClientError) ErrorType() ErrorType { return ErrorTypeUntrustedClient }

// RateLimitError is returned when a caller exceeds its request budget.
type RateLimitError struct {
	Subject string
}

func (e *RateLimitError) Error() string {
	if e.Subject == "" {
		return "rate limit exceeded"
	}
	return fmt.Sprintf("rate limit exceeded for %s", e.Subject)
}

// ErrorType implements Typed.
func (e *RateLimitError) ErrorType() ErrorType { return ErrorTypeTooManyRequests }

// ConfigurationError reports invalid server wiring detected at startup.
type ConfigurationError struct {
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid configuration for %s: %s", e.Field, e.Message)
	}
	return "invalid configuration: " + e.Message
}

// ErrorType implements Typed.
func (e *ConfigurationError) ErrorType() ErrorType { return ErrorTypeConfiguration }

// TypeOf returns the ErrorType of err, or ErrorTypeServerError when err is
// not part of the taxonomy.
func TypeOf(err error) ErrorType {
	var typed Typed
	if errors.As(err, &typed) {
		return typed.ErrorType()
	}
	return ErrorTypeServerError
}

// StatusCode maps an error to the HTTP status reported to REST clients.
func StatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	switch TypeOf(err) {
	case ErrorTypeValidation:
		return http.StatusUnprocessableEntity
	case ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case ErrorTypeUnauthenticated, ErrorTypeUntrustedClient:
		return http.StatusUnauthorized
	case ErrorTypeTooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// AsErrorResponse renders err as an ErrorResponse.
func AsErrorResponse(err error) *ErrorResponse {
	var typed Typed
	if errors.As(err, &typed) {
		return NewErrorResponse(typed.ErrorType(), typed.Error())
	}
	return NewErrorResponse(ErrorTypeServerError, err.Error())
}
