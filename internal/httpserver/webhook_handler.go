package httpserver

import (
	"bytes"
	"context"
	"crypto/subtle"
	"io"
	"net/http"

	"github.com/go-chi/render"
	"go.uber.org/zap"

	"gitlab.com/timkado/api/wa-property-crm/internal/model"
	"gitlab.com/timkado/api/wa-property-crm/internal/whatsapp"
	"gitlab.com/timkado/api/wa-property-crm/pkg/logger"
	"gitlab.com/timkado/api/wa-property-crm/pkg/utils"
)

const maxWebhookBody = 1 << 20

// WebhookCore accepts a parsed provider payload for asynchronous processing.
type WebhookCore interface {
	Accept(ctx context.Context, payload *model.WebhookPayload)
}

// VerifyWebhook answers the provider's subscription handshake.
func VerifyWebhook(verifyToken string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		token := q.Get("hub.verify_token")
		if q.Get("hub.mode") != "subscribe" || verifyToken == "" ||
			subtle.ConstantTimeCompare([]byte(token), []byte(verifyToken)) != 1 {
			logger.FromContext(r.Context()).Warn("Webhook verification rejected",
				zap.String("mode", q.Get("hub.mode")))
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, q.Get("hub.challenge"))
	}
}

// ReceiveWebhook acknowledges provider callbacks as soon as they are handed off.
// Processing outcomes never change the response.
func ReceiveWebhook(log *zap.Logger, appSecret string, core WebhookCore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
		if err != nil {
			logger.FromContextOr(ctx, log).Error("Failed to read webhook body", zap.Error(err))
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		if appSecret != "" && !whatsapp.VerifySignature(body, r.Header.Get(whatsapp.SignatureHeader), appSecret) {
			logger.FromContextOr(ctx, log).Warn("Webhook signature mismatch")
			w.WriteHeader(http.StatusForbidden)
			return
		}

		var payload model.WebhookPayload
		if err := render.DecodeJSON(bytes.NewReader(body), &payload); err != nil {
			logger.FromContextOr(ctx, log).Error("Malformed webhook payload", zap.Error(err), zap.String("size", utils.ByteCountSI(len(body))))
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		core.Accept(ctx, &payload)
		w.WriteHeader(http.StatusOK)
	}
}
