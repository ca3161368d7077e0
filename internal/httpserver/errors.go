package httpserver

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"
	"go.uber.org/zap"

	"gitlab.com/timkado/api/wa-property-crm/internal/apperrors"
	"gitlab.com/timkado/api/wa-property-crm/internal/whatsapp"
	"gitlab.com/timkado/api/wa-property-crm/pkg/logger"
)

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error   string      `json:"error"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// classify maps an error chain to an HTTP status and error kind.
// Order matters: a throttled gateway call is both ErrRateLimited and ErrGateway.
func classify(err error) (int, string) {
	switch {
	case apperrors.IsValidationError(err):
		return http.StatusBadRequest, "validation"
	case apperrors.IsNotFoundError(err):
		return http.StatusNotFound, "not_found"
	case apperrors.IsConflictError(err), apperrors.IsDuplicateError(err):
		return http.StatusConflict, "conflict"
	case apperrors.IsRateLimitedError(err):
		return http.StatusTooManyRequests, "rate_limited"
	case apperrors.IsGatewayError(err):
		return http.StatusBadGateway, "gateway"
	case apperrors.IsTimeoutError(err):
		return http.StatusGatewayTimeout, "timeout"
	}
	return http.StatusInternalServerError, "internal"
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := classify(err)
	resp := ErrorResponse{Error: kind, Message: err.Error()}

	var gwErr *whatsapp.GatewayError
	if errors.As(err, &gwErr) {
		resp.Details = gwErr.Details()
	}

	log := logger.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error("Request failed", zap.String("kind", kind), zap.Error(err))
		if status == http.StatusInternalServerError {
			resp.Message = "internal server error"
		}
	} else {
		log.Debug("Request rejected", zap.String("kind", kind), zap.Error(err))
	}

	render.Status(r, status)
	render.JSON(w, r, resp)
}
