package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/timkado/api/wa-property-crm/internal/apperrors"
	"gitlab.com/timkado/api/wa-property-crm/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.WhatsAppConfig{
		APIURL:        srv.URL + "/v21.0/",
		PhoneNumberID: "1234567890",
		AccessToken:   "test-token",
		Timeout:       2 * time.Second,
	})
}

func TestClient_SendText(t *testing.T) {
	var captured map[string]interface{}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v21.0/1234567890/messages", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &captured))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"messaging_product":"whatsapp","contacts":[{"input":"2348011111111","wa_id":"2348011111111"}],"messages":[{"id":"wamid.ABC"}]}`))
	})

	id, err := client.SendText(context.Background(), "+2348011111111", "Hello there")
	require.NoError(t, err)
	assert.Equal(t, "wamid.ABC", id)

	assert.Equal(t, "whatsapp", captured["messaging_product"])
	assert.Equal(t, "individual", captured["recipient_type"])
	assert.Equal(t, "2348011111111", captured["to"], "leading + is stripped")
	assert.Equal(t, "text", captured["type"])
	assert.Equal(t, map[string]interface{}{"body": "Hello there"}, captured["text"])
}

func TestClient_SendInteractive(t *testing.T) {
	var captured sendRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.BTN"}]}`))
	})

	msg := NewButtonMessage("What are you looking for?",
		ReplyTitle{ID: "intent_buy", Title: "Buy"},
		ReplyTitle{ID: "intent_rent", Title: "Rent"},
		ReplyTitle{ID: "intent_invest", Title: "Invest"},
	)
	id, err := client.SendInteractive(context.Background(), "2348011111111", msg)
	require.NoError(t, err)
	assert.Equal(t, "wamid.BTN", id)

	assert.Equal(t, "interactive", captured.Type)
	require.NotNil(t, captured.Interactive)
	assert.Equal(t, "button", captured.Interactive.Type)
	require.Len(t, captured.Interactive.Action.Buttons, 3)
	assert.Equal(t, "reply", captured.Interactive.Action.Buttons[0].Type)
	assert.Equal(t, "intent_rent", captured.Interactive.Action.Buttons[1].Reply.ID)
}

func TestClient_SendInteractive_TooManyButtons(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request must not be sent")
	})
	msg := NewButtonMessage("pick", ReplyTitle{ID: "1"}, ReplyTitle{ID: "2"}, ReplyTitle{ID: "3"}, ReplyTitle{ID: "4"})
	_, err := client.SendInteractive(context.Background(), "2348011111111", msg)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestClient_SendImage(t *testing.T) {
	var captured sendRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.IMG"}]}`))
	})

	id, err := client.SendImage(context.Background(), "2348011111111", "https://cdn.example.com/p.jpg", "3 bed terrace")
	require.NoError(t, err)
	assert.Equal(t, "wamid.IMG", id)
	require.NotNil(t, captured.Image)
	assert.Equal(t, "https://cdn.example.com/p.jpg", captured.Image.Link)
	assert.Equal(t, "3 bed terrace", captured.Image.Caption)
}

func TestClient_ErrorClassification(t *testing.T) {
	testCases := []struct {
		name          string
		status        int
		body          string
		rateLimited   bool
		unauthorized  bool
		expectCode    int
		expectMessage string
	}{
		{
			name:          "invalid recipient",
			status:        http.StatusBadRequest,
			body:          `{"error":{"message":"Recipient phone number not in allowed list","type":"OAuthException","code":131030,"fbtrace_id":"x"}}`,
			expectCode:    131030,
			expectMessage: "Recipient phone number not in allowed list",
		},
		{
			name:        "http 429",
			status:      http.StatusTooManyRequests,
			body:        `{"error":{"message":"slow down","code":130429}}`,
			rateLimited: true,
			expectCode:  130429,
		},
		{
			name:        "pair rate limit on 400",
			status:      http.StatusBadRequest,
			body:        `{"error":{"message":"pair rate limit hit","code":131056}}`,
			rateLimited: true,
			expectCode:  131056,
		},
		{
			name:         "expired token",
			status:       http.StatusUnauthorized,
			body:         `{"error":{"message":"Error validating access token","type":"OAuthException","code":190}}`,
			unauthorized: true,
			expectCode:   190,
		},
		{
			name:          "non json body",
			status:        http.StatusBadGateway,
			body:          `upstream down`,
			expectMessage: "Bad Gateway",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})

			_, err := client.SendText(context.Background(), "2348011111111", "hi")
			require.Error(t, err)

			var gwErr *GatewayError
			require.True(t, errors.As(err, &gwErr))
			assert.Equal(t, tc.status, gwErr.StatusCode)
			assert.Equal(t, tc.expectCode, gwErr.Code)
			if tc.expectMessage != "" {
				assert.Equal(t, tc.expectMessage, gwErr.Message)
			}
			assert.NotEmpty(t, gwErr.Payload)
			assert.True(t, json.Valid(gwErr.Payload))

			assert.ErrorIs(t, err, apperrors.ErrGateway)
			assert.Equal(t, tc.rateLimited, errors.Is(err, apperrors.ErrRateLimited))
			assert.Equal(t, tc.unauthorized, errors.Is(err, apperrors.ErrUnauthorized))
		})
	}
}

func TestClient_TransportError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	})
	client.httpClient.Timeout = 50 * time.Millisecond

	_, err := client.SendText(context.Background(), "2348011111111", "hi")
	var gwErr *GatewayError
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, 0, gwErr.StatusCode)
	assert.ErrorIs(t, err, apperrors.ErrGateway)
	assert.False(t, errors.Is(err, apperrors.ErrRateLimited))
}

func TestClient_MissingMessageID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"messages":[]}`))
	})
	_, err := client.SendText(context.Background(), "2348011111111", "hi")
	assert.ErrorIs(t, err, apperrors.ErrGateway)
}

func TestClient_EmptyRecipient(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request must not be sent")
	})
	_, err := client.SendText(context.Background(), " + ", "hi")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestClient_VerifyCredentials(t *testing.T) {
	t.Run("valid token", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Equal(t, "/v21.0/1234567890", r.URL.Path)
			_, _ = w.Write([]byte(`{"display_phone_number":"+234 800 000 0000","id":"1234567890"}`))
		})
		assert.NoError(t, client.VerifyCredentials(context.Background()))
	})

	t.Run("expired token", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"message":"Session has expired","code":190}}`))
		})
		err := client.VerifyCredentials(context.Background())
		assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	})
}

func TestNormalizePhone(t *testing.T) {
	assert.Equal(t, "2348011111111", NormalizePhone("+2348011111111"))
	assert.Equal(t, "2348011111111", NormalizePhone(" 2348011111111 "))
	assert.Equal(t, "", NormalizePhone(""))
}
