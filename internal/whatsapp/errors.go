package whatsapp

import (
	"encoding/json"
	"fmt"
	"net/http"

	"gitlab.com/timkado/api/wa-property-crm/internal/apperrors"
)

// Provider error codes that mean "slow down".
var rateLimitCodes = map[int]bool{
	4:      true, // application request limit
	80007:  true, // WABA rate limit
	130429: true, // cloud API throughput
	131056: true, // pair rate limit
}

const codeInvalidToken = 190

// GatewayError describes a failed Cloud API call. StatusCode is 0 when the
// request never got a response.
type GatewayError struct {
	Operation  string
	StatusCode int
	Code       int
	Type       string
	Message    string
	Payload    json.RawMessage
	cause      error
}

func (e *GatewayError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("whatsapp %s failed: %s", e.Operation, e.Message)
	}
	return fmt.Sprintf("whatsapp %s failed (status %d, code %d): %s", e.Operation, e.StatusCode, e.Code, e.Message)
}

func (e *GatewayError) Unwrap() error {
	return e.cause
}

// Is lets callers classify with errors.Is against apperrors sentinels.
func (e *GatewayError) Is(target error) bool {
	switch target {
	case apperrors.ErrGateway:
		return true
	case apperrors.ErrRateLimited:
		return e.IsRateLimited()
	case apperrors.ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized || e.Code == codeInvalidToken
	}
	return false
}

// IsRateLimited reports whether the provider throttled the request.
func (e *GatewayError) IsRateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests || rateLimitCodes[e.Code]
}

// Details returns the provider payload for API responses.
func (e *GatewayError) Details() interface{} {
	if len(e.Payload) > 0 {
		return e.Payload
	}
	return map[string]interface{}{"message": e.Message}
}

// result is the metric label for the error.
func (e *GatewayError) result() string {
	switch {
	case e.StatusCode == 0:
		return "transport_error"
	case e.IsRateLimited():
		return "rate_limited"
	case e.Is(apperrors.ErrUnauthorized):
		return "unauthorized"
	}
	return "error"
}

func newAPIError(operation string, statusCode int, body []byte) *GatewayError {
	gwErr := &GatewayError{
		Operation:  operation,
		StatusCode: statusCode,
		Message:    http.StatusText(statusCode),
		Payload:    rawOrString(body),
	}
	var parsed errorResponse
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Code != 0 {
		gwErr.Code = parsed.Error.Code
		gwErr.Type = parsed.Error.Type
		gwErr.Message = parsed.Error.Message
	}
	return gwErr
}
