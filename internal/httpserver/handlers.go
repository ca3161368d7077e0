package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"go.uber.org/zap"

	"gitlab.com/timkado/api/wa-property-crm/internal/apperrors"
	"gitlab.com/timkado/api/wa-property-crm/internal/model"
	"gitlab.com/timkado/api/wa-property-crm/internal/requestctx"
	"gitlab.com/timkado/api/wa-property-crm/internal/usecase"
	"gitlab.com/timkado/api/wa-property-crm/internal/validator"
)

// CampaignCore is the campaign surface the API needs.
type CampaignCore interface {
	Get(ctx context.Context, id string) (*model.Campaign, error)
	Launch(ctx context.Context, campaignID string) (*usecase.LaunchResult, error)
}

// StageCore is the pipeline surface the API needs.
type StageCore interface {
	Transition(ctx context.Context, contactID, stage, notes, actor string) (*model.StageChange, error)
	BulkTransition(ctx context.Context, contactIDs []string, stage, notes, actor string) (*usecase.BulkResult, error)
	History(ctx context.Context, contactID string, limit int) ([]model.Activity, error)
}

// MessagingCore sends operator-initiated messages.
type MessagingCore interface {
	SendMessage(ctx context.Context, contactID, text string) (*model.Message, error)
	SendProperty(ctx context.Context, contactID, propertyID, note string) (*model.Message, error)
}

type stageRequest struct {
	Stage string `json:"stage" validate:"required"`
	Notes string `json:"notes" validate:"max=2000"`
}

type bulkStageRequest struct {
	ContactIDs []string `json:"contact_ids" validate:"required,min=1,max=500"`
	Stage      string   `json:"stage" validate:"required"`
	Notes      string   `json:"notes" validate:"max=2000"`
}

type sendMessageRequest struct {
	ContactID string `json:"contact_id" validate:"required"`
	Message   string `json:"message" validate:"required,max=4096"`
}

type sendPropertyRequest struct {
	ContactID  string `json:"contact_id" validate:"required"`
	PropertyID string `json:"property_id" validate:"required"`
	Message    string `json:"message" validate:"max=1024"`
}

// SendResponse acknowledges a direct send.
type SendResponse struct {
	Success   bool           `json:"success"`
	MessageID string         `json:"message_id"`
	Message   *model.Message `json:"data"`
}

// decode reads and validates a JSON request body.
func decode(r *http.Request, v interface{}) error {
	if err := render.DecodeJSON(r.Body, v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", apperrors.ErrBadRequest, err)
	}
	return validator.Validate(v)
}

// LaunchCampaign runs a campaign to completion and returns its counts.
// The launch is detached from the request so a dropped connection does not
// abandon the campaign half way.
func LaunchCampaign(log *zap.Logger, core CampaignCore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		// Large audiences take longer than the server write timeout.
		if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
			log.Debug("Could not clear write deadline", zap.Error(err))
		}

		result, err := core.Launch(context.WithoutCancel(r.Context()), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		render.JSON(w, r, result)
	}
}

// GetCampaign returns the campaign with its counters.
func GetCampaign(core CampaignCore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		campaign, err := core.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		render.JSON(w, r, campaign)
	}
}

func UpdateStage(core StageCore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req stageRequest
		if err := decode(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		actor := requestctx.ActorFromContext(r.Context(), model.ActorOperator)
		change, err := core.Transition(r.Context(), chi.URLParam(r, "id"), req.Stage, req.Notes, actor)
		if err != nil {
			writeError(w, r, err)
			return
		}
		render.JSON(w, r, change)
	}
}

func BulkUpdateStage(core StageCore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req bulkStageRequest
		if err := decode(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		actor := requestctx.ActorFromContext(r.Context(), model.ActorOperator)
		result, err := core.BulkTransition(r.Context(), req.ContactIDs, req.Stage, req.Notes, actor)
		if err != nil {
			writeError(w, r, err)
			return
		}
		render.JSON(w, r, result)
	}
}

// ListActivities returns the contact's stage history, newest first.
func ListActivities(core StageCore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				writeError(w, r, fmt.Errorf("%w: limit must be a non-negative integer", apperrors.ErrBadRequest))
				return
			}
			limit = n
		}
		activities, err := core.History(r.Context(), chi.URLParam(r, "id"), limit)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if activities == nil {
			activities = []model.Activity{}
		}
		render.JSON(w, r, activities)
	}
}

func SendMessage(core MessagingCore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sendMessageRequest
		if err := decode(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		msg, err := core.SendMessage(r.Context(), req.ContactID, req.Message)
		if err != nil {
			writeError(w, r, err)
			return
		}
		render.JSON(w, r, SendResponse{Success: true, MessageID: msg.ProviderMessageID, Message: msg})
	}
}

func SendProperty(core MessagingCore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sendPropertyRequest
		if err := decode(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		msg, err := core.SendProperty(r.Context(), req.ContactID, req.PropertyID, req.Message)
		if err != nil {
			writeError(w, r, err)
			return
		}
		render.JSON(w, r, SendResponse{Success: true, MessageID: msg.ProviderMessageID, Message: msg})
	}
}
