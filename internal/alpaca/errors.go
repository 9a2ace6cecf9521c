package alpaca

import (
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
)

// ErrorType represents the category of error that occurred talking to an
// Alpaca server.
type ErrorType int

const (
	// ErrTypeNetwork indicates a network-level error (connection refused, timeout, etc.)
	ErrTypeNetwork ErrorType = iota
	// ErrTypeHTTP indicates an HTTP-level error (non-2xx status code)
	ErrTypeHTTP
	// ErrTypeProtocol indicates a malformed Alpaca payload (invalid JSON, missing fields)
	ErrTypeProtocol
	// ErrTypeDevice indicates the device reported an Alpaca error number
	ErrTypeDevice
	// ErrTypeValidation indicates invalid input (bad address, bad port)
	ErrTypeValidation
	// ErrTypeTimeout indicates a request timeout
	ErrTypeTimeout
	// ErrTypeConnectionRefused indicates the server refused the connection
	ErrTypeConnectionRefused
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeNetwork:
		return "Network Error"
	case ErrTypeHTTP:
		return "HTTP Error"
	case ErrTypeProtocol:
		return "Protocol Error"
	case ErrTypeDevice:
		return "Device Error"
	case ErrTypeValidation:
		return "Validation Error"
	case ErrTypeTimeout:
		return "Timeout"
	case ErrTypeConnectionRefused:
		return "Connection Refused"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// Error represents a failure during Alpaca server communication.
type Error struct {
	Type       ErrorType // Category of error
	Message    string    // Human-readable error message
	StatusCode int       // HTTP status code (if applicable)
	Server     string    // Server address:port (for context)
	Err        error     // Underlying error (if any)
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Server != "" {
		if e.Err != nil {
			return fmt.Sprintf("%s: %s [%s] (caused by: %v)", e.Type, e.Message, e.Server, e.Err)
		}
		return fmt.Sprintf("%s: %s [%s]", e.Type, e.Message, e.Server)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for error chain inspection
func (e *Error) Unwrap() error {
	return e.Err
}

// ClassifyNetworkError analyzes a transport error and returns a more specific
// error type for it.
func ClassifyNetworkError(err error, server string) *Error {
	if err == nil {
		return nil
	}

	if os.IsTimeout(err) {
		return &Error{
			Type:    ErrTypeTimeout,
			Message: "request timed out",
			Server:  server,
			Err:     err,
		}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		switch {
		case errors.Is(opErr.Err, syscall.ECONNREFUSED):
			return &Error{
				Type:    ErrTypeConnectionRefused,
				Message: "server refused connection",
				Server:  server,
				Err:     err,
			}
		case errors.Is(opErr.Err, syscall.EHOSTUNREACH):
			return &Error{
				Type:    ErrTypeNetwork,
				Message: "host unreachable",
				Server:  server,
				Err:     err,
			}
		case errors.Is(opErr.Err, syscall.ENETUNREACH):
			return &Error{
				Type:    ErrTypeNetwork,
				Message: "network unreachable",
				Server:  server,
				Err:     err,
			}
		}
	}

	return &Error{
		Type:    ErrTypeNetwork,
		Message: "network error occurred",
		Server:  server,
		Err:     err,
	}
}

// NewNetworkError creates a network-level error with automatic classification
func NewNetworkError(message, server string, err error) *Error {
	classified := ClassifyNetworkError(err, server)
	if classified != nil {
		classified.Message = message
		return classified
	}
	return &Error{
		Type:    ErrTypeNetwork,
		Message: message,
		Server:  server,
		Err:     err,
	}
}

// NewHTTPError creates an HTTP-level error
func NewHTTPError(statusCode int, message, server string) *Error {
	return &Error{
		Type:       ErrTypeHTTP,
		Message:    message,
		StatusCode: statusCode,
		Server:     server,
	}
}

// NewProtocolError creates a malformed-payload error
func NewProtocolError(message, server string, err error) *Error {
	return &Error{
		Type:    ErrTypeProtocol,
		Message: message,
		Server:  server,
		Err:     err,
	}
}

// NewDeviceError creates an error for a non-zero Alpaca ErrorNumber
func NewDeviceError(errorNumber int, errorMessage, server string) *Error {
	return &Error{
		Type:    ErrTypeDevice,
		Message: fmt.Sprintf("device error %d: %s", errorNumber, errorMessage),
		Server:  server,
	}
}

// NewValidationError creates an invalid-input error
func NewValidationError(message string) *Error {
	return &Error{
		Type:    ErrTypeValidation,
		Message: message,
	}
}

// IsNetworkError checks if an error is a transport failure (including timeout
// and connection refused)
func IsNetworkError(err error) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Type == ErrTypeNetwork ||
			ae.Type == ErrTypeTimeout ||
			ae.Type == ErrTypeConnectionRefused
	}
	return false
}

// IsProtocolError checks if an error is a malformed-payload error
func IsProtocolError(err error) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Type == ErrTypeProtocol
	}
	return false
}

// IsHTTPError checks if an error is an HTTP status error
func IsHTTPError(err error) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Type == ErrTypeHTTP
	}
	return false
}

// IsValidationError checks if an error is an invalid-input error
func IsValidationError(err error) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Type == ErrTypeValidation
	}
	return false
}
