package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/c360/exchange/pkg/retry"
)

// ErrorClass represents the classification of errors for handling purposes
type ErrorClass int

const (
	// ErrorTransient represents temporary errors that may be retried
	ErrorTransient ErrorClass = iota
	// ErrorInvalid represents errors due to invalid input or configuration
	ErrorInvalid
	// ErrorFatal represents unrecoverable errors that should stop processing
	ErrorFatal
)

// String returns the string representation of ErrorClass
func (ec ErrorClass) String() string {
	switch ec {
	case ErrorTransient:
		return "transient"
	case ErrorInvalid:
		return "invalid"
	case ErrorFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Standard error variables for common conditions
var (
	// Connection and networking errors
	ErrConnectionTimeout = errors.New("connection timeout")
	ErrConnectionLost    = errors.New("connection lost")
	ErrNotConnected      = errors.New("not connected")

	// Data errors
	ErrInvalidData      = errors.New("invalid data format")
	ErrUnexpectedStatus = errors.New("unexpected response status")
	ErrNoMessages       = errors.New("no messages received")

	// Blob storage errors
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrContainerNotFound  = errors.New("container not found")
	ErrBlobNotFound       = errors.New("blob not found")
	ErrEmptyBlob          = errors.New("blob is empty")

	// Configuration errors
	ErrInvalidConfig  = errors.New("invalid configuration")
	ErrMissingConfig  = errors.New("missing required configuration")
	ErrConfigNotFound = errors.New("configuration not found")

	// API credential errors
	ErrAPINotFound = errors.New("api entry not found, check that it exists in api_config.json")
	ErrMissingKey  = errors.New("api key is empty")
	ErrMissingURL  = errors.New("api url is empty")
	ErrInvalidKey  = errors.New("api key is invalid, check for typos")

	// Resource errors
	ErrRateLimited        = errors.New("rate limited")
	ErrMaxRetriesExceeded = errors.New("maximum retries exceeded")
)

// ClassifiedError wraps an error with its classification
type ClassifiedError struct {
	Class     ErrorClass
	Err       error
	Message   string
	Component string
	Operation string
}

// Error implements the error interface
func (ce *ClassifiedError) Error() string {
	if ce.Message != "" {
		return ce.Message
	}
	return ce.Err.Error()
}

// Unwrap returns the underlying error
func (ce *ClassifiedError) Unwrap() error {
	return ce.Err
}

// sentinels maps the standard values, and the context errors, to the class
// they carry when they reach a caller unclassified.
var sentinels = []struct {
	err   error
	class ErrorClass
}{
	{ErrConnectionTimeout, ErrorTransient},
	{ErrConnectionLost, ErrorTransient},
	{ErrNotConnected, ErrorTransient},
	{ErrStorageUnavailable, ErrorTransient},
	{ErrRateLimited, ErrorTransient},
	{context.DeadlineExceeded, ErrorTransient},

	{ErrInvalidData, ErrorInvalid},
	{ErrInvalidConfig, ErrorInvalid},
	{ErrAPINotFound, ErrorInvalid},
	{ErrMissingKey, ErrorInvalid},
	{ErrMissingURL, ErrorInvalid},
	{ErrInvalidKey, ErrorInvalid},
	{ErrEmptyBlob, ErrorInvalid},
	{ErrBlobNotFound, ErrorInvalid},
	{ErrContainerNotFound, ErrorInvalid},
	{ErrUnexpectedStatus, ErrorInvalid},

	{ErrMissingConfig, ErrorFatal},
	{ErrConfigNotFound, ErrorFatal},
	{ErrMaxRetriesExceeded, ErrorFatal},
}

// messagePatterns classify errors from client libraries that only expose a
// message. Matching is case-insensitive.
var messagePatterns = map[ErrorClass][]string{
	ErrorTransient: {
		"timeout",
		"connection refused",
		"connection reset",
		"network",
		"temporary",
		"unavailable",
		"leader not available",
		"not leader",
		"busy",
	},
	ErrorFatal: {
		"fatal",
		"panic",
		"authentication failed",
		"authorization failure",
		"disk full",
	},
}

// hasClass reports whether err belongs to class. An explicit classification
// anywhere in the chain wins over sentinels and message patterns.
func hasClass(err error, class ErrorClass) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == class
	}

	for _, s := range sentinels {
		if s.class == class && errors.Is(err, s.err) {
			return true
		}
	}

	// Cancellation comes from the operator and is never retried.
	if errors.Is(err, context.Canceled) {
		return false
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range messagePatterns[class] {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// IsTransient checks if an error is transient and should be retried
func IsTransient(err error) bool {
	return hasClass(err, ErrorTransient)
}

// IsFatal checks if an error is fatal and should stop processing
func IsFatal(err error) bool {
	return hasClass(err, ErrorFatal)
}

// IsInvalid checks if an error is due to invalid input
func IsInvalid(err error) bool {
	return hasClass(err, ErrorInvalid)
}

// Classify returns the error class for an error. Unrecognised errors come
// from a single external call and are treated as transient.
func Classify(err error) ErrorClass {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class
	}
	for _, class := range []ErrorClass{ErrorInvalid, ErrorFatal} {
		if hasClass(err, class) {
			return class
		}
	}
	return ErrorTransient
}

// Wrap creates a standardized error with context following the pattern:
// "component.method: action failed: %w". An existing classification in err
// is preserved.
func Wrap(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s.%s: %s failed: %w", component, method, action, err)
}

func wrapAs(class ErrorClass, err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrapped := Wrap(err, component, method, action)
	return &ClassifiedError{
		Class:     class,
		Err:       wrapped,
		Message:   wrapped.Error(),
		Component: component,
		Operation: method,
	}
}

// WrapTransient wraps an error as transient with context
func WrapTransient(err error, component, method, action string) error {
	return wrapAs(ErrorTransient, err, component, method, action)
}

// WrapFatal wraps an error as fatal with context
func WrapFatal(err error, component, method, action string) error {
	return wrapAs(ErrorFatal, err, component, method, action)
}

// WrapInvalid wraps an error as invalid with context
func WrapInvalid(err error, component, method, action string) error {
	return wrapAs(ErrorInvalid, err, component, method, action)
}

// RetryIf runs fn under cfg, repeating it only while retryable reports true
// for the error it returned. A nil retryable means IsTransient. The error of
// the last attempt is returned without the retry package's marker.
func RetryIf(ctx context.Context, cfg retry.Config, retryable func(error) bool, fn func() error) error {
	if retryable == nil {
		retryable = IsTransient
	}

	err := retry.Do(ctx, cfg, func() error {
		err := fn()
		if err != nil && !retryable(err) {
			return retry.NonRetryable(err)
		}
		return err
	})

	var nre *retry.NonRetryableError
	if errors.As(err, &nre) {
		return nre.Err
	}
	return err
}
