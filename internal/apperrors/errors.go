package apperrors

import (
	"errors"
)

// Sentinel errors shared by storage, the gateway client and the HTTP layer.
// Wrap them with fmt.Errorf("%w: ...") and test with errors.Is or the
// helpers below.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrValidation   = errors.New("validation failed")
	ErrBadRequest   = errors.New("bad request")
	ErrDatabase     = errors.New("database error")
	ErrNATS         = errors.New("nats communication error")
	ErrUnauthorized = errors.New("unauthorized access")
	// ErrDuplicate is a unique constraint hit, e.g. a redelivered webhook.
	ErrDuplicate = errors.New("duplicate resource")
	// ErrConflict is a state conflict, e.g. relaunching a completed campaign.
	ErrConflict    = errors.New("resource conflict")
	ErrTimeout     = errors.New("operation timeout")
	ErrRateLimited = errors.New("rate limited")
	// ErrGateway is any failure reported by or while reaching the WhatsApp provider.
	ErrGateway = errors.New("whatsapp gateway error")
)

// RetryableError marks a failure that may succeed when attempted again.
// It is transparent: Error returns the wrapped message unchanged.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// FatalError marks a failure that retrying cannot fix.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return e.Err.Error() }
func (e *FatalError) Unwrap() error { return e.Err }

// NewRetryable marks err as retryable. A nil err stays nil.
func NewRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// NewFatal marks err as fatal. A nil err stays nil.
func NewFatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Err: err}
}

// IsRetryable reports whether err is or wraps a RetryableError.
func IsRetryable(err error) bool {
	var target *RetryableError
	return errors.As(err, &target)
}

// IsFatal reports whether err is or wraps a FatalError.
func IsFatal(err error) bool {
	var target *FatalError
	return errors.As(err, &target)
}

func IsNotFoundError(err error) bool     { return errors.Is(err, ErrNotFound) }
func IsConflictError(err error) bool     { return errors.Is(err, ErrConflict) }
func IsDuplicateError(err error) bool    { return errors.Is(err, ErrDuplicate) }
func IsTimeoutError(err error) bool      { return errors.Is(err, ErrTimeout) }
func IsRateLimitedError(err error) bool  { return errors.Is(err, ErrRateLimited) }
func IsGatewayError(err error) bool      { return errors.Is(err, ErrGateway) }
func IsUnauthorizedError(err error) bool { return errors.Is(err, ErrUnauthorized) }

// IsValidationError reports whether err is a rejected input, either a
// failed validation or a request that could not be decoded.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrBadRequest)
}
