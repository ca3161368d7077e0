package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"gitlab.com/timkado/api/wa-property-crm/internal/apperrors"
	"gitlab.com/timkado/api/wa-property-crm/internal/config"
	"gitlab.com/timkado/api/wa-property-crm/internal/observer"
	"gitlab.com/timkado/api/wa-property-crm/pkg/logger"
	"gitlab.com/timkado/api/wa-property-crm/pkg/utils"
)

const maxErrorBody = 64 << 10

// Sender sends outbound WhatsApp messages and returns the provider message ID.
type Sender interface {
	SendText(ctx context.Context, to, body string) (string, error)
	SendInteractive(ctx context.Context, to string, msg Interactive) (string, error)
	SendImage(ctx context.Context, to, link, caption string) (string, error)
}

// Client talks to the WhatsApp Cloud API. Every call is a single attempt.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	phoneNumberID string
	accessToken   string
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a Cloud API client from configuration.
func NewClient(cfg config.WhatsAppConfig, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &Client{
		httpClient:    &http.Client{Timeout: timeout},
		baseURL:       strings.TrimRight(cfg.APIURL, "/"),
		phoneNumberID: cfg.PhoneNumberID,
		accessToken:   cfg.AccessToken,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SendText sends a plain text message.
func (c *Client) SendText(ctx context.Context, to, body string) (string, error) {
	return c.send(ctx, "send_text", sendRequest{
		To:   to,
		Type: "text",
		Text: &textBody{Body: body},
	})
}

// SendInteractive sends a reply-button message.
func (c *Client) SendInteractive(ctx context.Context, to string, msg Interactive) (string, error) {
	if len(msg.Action.Buttons) > 3 {
		return "", fmt.Errorf("%w: at most 3 reply buttons, got %d", apperrors.ErrValidation, len(msg.Action.Buttons))
	}
	return c.send(ctx, "send_interactive", sendRequest{
		To:          to,
		Type:        "interactive",
		Interactive: &msg,
	})
}

// SendImage sends an image by public link with an optional caption.
func (c *Client) SendImage(ctx context.Context, to, link, caption string) (string, error) {
	return c.send(ctx, "send_image", sendRequest{
		To:    to,
		Type:  "image",
		Image: &mediaBody{Link: link, Caption: caption},
	})
}

// VerifyCredentials checks that the access token can read the phone number.
func (c *Client) VerifyCredentials(ctx context.Context) error {
	const op = "verify_credentials"
	url := fmt.Sprintf("%s/%s?fields=display_phone_number,verified_name", c.baseURL, c.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	start := utils.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		gwErr := &GatewayError{Operation: op, Message: err.Error(), cause: err}
		observer.ObserveGatewayRequest(op, gwErr.result(), time.Since(start))
		return gwErr
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		gwErr := newAPIError(op, resp.StatusCode, body)
		observer.ObserveGatewayRequest(op, gwErr.result(), time.Since(start))
		return gwErr
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	observer.ObserveGatewayRequest(op, "success", time.Since(start))
	return nil
}

func (c *Client) send(ctx context.Context, op string, payload sendRequest) (string, error) {
	log := logger.FromContext(ctx).With(zap.String("operation", op))

	payload.MessagingProduct = "whatsapp"
	payload.RecipientType = "individual"
	payload.To = NormalizePhone(payload.To)
	if payload.To == "" {
		return "", fmt.Errorf("%w: recipient phone is required", apperrors.ErrValidation)
	}

	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", c.baseURL, c.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	start := utils.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		gwErr := &GatewayError{Operation: op, Message: err.Error(), cause: err}
		observer.ObserveGatewayRequest(op, gwErr.result(), time.Since(start))
		log.Warn("WhatsApp request failed", zap.Error(err))
		return "", gwErr
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		gwErr := newAPIError(op, resp.StatusCode, body)
		observer.ObserveGatewayRequest(op, gwErr.result(), time.Since(start))
		log.Warn("WhatsApp API returned an error",
			zap.Int("status", resp.StatusCode),
			zap.Int("code", gwErr.Code),
			zap.String("message", gwErr.Message))
		return "", gwErr
	}

	var sendResp sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&sendResp); err != nil || len(sendResp.Messages) == 0 || sendResp.Messages[0].ID == "" {
		gwErr := &GatewayError{Operation: op, StatusCode: resp.StatusCode, Message: "response carried no message id", cause: err}
		observer.ObserveGatewayRequest(op, "error", time.Since(start))
		return "", gwErr
	}

	observer.ObserveGatewayRequest(op, "success", time.Since(start))
	log.Debug("WhatsApp message accepted", zap.String("provider_message_id", sendResp.Messages[0].ID))
	return sendResp.Messages[0].ID, nil
}

// NormalizePhone strips whitespace and a leading "+" from an E.164 number.
func NormalizePhone(phone string) string {
	return strings.TrimPrefix(strings.TrimSpace(phone), "+")
}
