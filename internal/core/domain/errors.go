package domain

import (
	"context"
	"errors"
	"fmt"
)

// Error codes used across the service. They double as the machine-readable
// "error" field of REST error responses.
const (
	CodeNoLocationSelected = "NO_LOCATION_SELECTED"
	CodeConnectivity       = "CONNECTIVITY_ERROR"
	CodeTimeout            = "TIMEOUT_ERROR"
	CodeProvider           = "PROVIDER_ERROR"
	CodeStorage            = "STORAGE_ERROR"
	CodeInvalidLocation    = "INVALID_LOCATION"
)

// WeatherError represents domain-specific errors that can occur during forecast operations.
// It provides structured error information with error codes and optional underlying causes.
type WeatherError struct {
	// Code identifies the type of error for programmatic handling
	Code string

	// Message provides a human-readable error description
	Message string

	// Cause wraps an underlying error if applicable
	Cause error
}

// Error implements the error interface for WeatherError.
func (e *WeatherError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}

	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause to errors.Is and errors.As.
func (e *WeatherError) Unwrap() error {
	return e.Cause
}

// ErrNoLocationSelected is returned by a refresh without a current location.
var ErrNoLocationSelected = &WeatherError{
	Code:    CodeNoLocationSelected,
	Message: "no location selected",
}

// NewConnectivityError reports that the provider could not be reached at all.
func NewConnectivityError(cause error) *WeatherError {
	return &WeatherError{Code: CodeConnectivity, Message: "No internet connection", Cause: cause}
}

// NewTimeoutError reports that the provider did not answer in time.
func NewTimeoutError(cause error) *WeatherError {
	return &WeatherError{Code: CodeTimeout, Message: "Connection timed out", Cause: cause}
}

// NewProviderError reports a non-2xx answer, a malformed payload or any other failure.
func NewProviderError(detail string, cause error) *WeatherError {
	return &WeatherError{
		Code:    CodeProvider,
		Message: "Failed to load weather data: " + detail,
		Cause:   cause,
	}
}

// NewStorageError reports a durable store read or write failure.
func NewStorageError(op string, cause error) *WeatherError {
	return &WeatherError{Code: CodeStorage, Message: "storage " + op + " failed", Cause: cause}
}

// AsWeatherError classifies any error into the domain taxonomy.
// Errors that are already a WeatherError are returned as is; a deadline becomes a
// timeout; everything else is a generic provider failure.
func AsWeatherError(err error) *WeatherError {
	if err == nil {
		return nil
	}

	var we *WeatherError
	if errors.As(err, &we) {
		return we
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return NewTimeoutError(err)
	}

	return NewProviderError(err.Error(), err)
}

// ErrorCode returns the domain code of err, or "" when err is nil.
func ErrorCode(err error) string {
	if we := AsWeatherError(err); we != nil {
		return we.Code
	}

	return ""
}
