// File: internal/notify/channels_test.go
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logward/logward/internal/config"
	"github.com/logward/logward/internal/models"
)

func notificationRecord() *models.LogRecord {
	return &models.LogRecord{
		ID:          42,
		Level:       models.LevelCritical,
		Channel:     "payments",
		Message:     "charge processor unreachable",
		Environment: "production",
		UserID:      "user-3",
		CreatedAt:   time.Now().UTC(),
	}
}

func TestEmailChannelSend(t *testing.T) {
	ch := NewEmailChannel(&config.EmailConfig{
		Enabled:   true,
		SMTPHost:  "mail.example.com",
		SMTPPort:  587,
		FromEmail: "alerts@example.com",
		FromName:  "Logward",
		Recipient: "oncall@example.com",
	})

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	ch.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr = addr
		gotFrom = from
		gotTo = to
		gotMsg = msg
		return nil
	}

	require.NoError(t, ch.Send(context.Background(), notificationRecord()))

	assert.Equal(t, "mail.example.com:587", gotAddr)
	assert.Equal(t, "alerts@example.com", gotFrom)
	assert.Equal(t, []string{"oncall@example.com"}, gotTo)
	assert.Contains(t, string(gotMsg), "Subject: [CRITICAL]")
	assert.Contains(t, string(gotMsg), "charge processor unreachable")
	assert.Contains(t, string(gotMsg), "From: Logward <alerts@example.com>")
}

func TestEmailChannelSendFailure(t *testing.T) {
	ch := NewEmailChannel(&config.EmailConfig{
		Enabled:   true,
		SMTPHost:  "mail.example.com",
		FromEmail: "alerts@example.com",
		Recipient: "oncall@example.com",
	})
	ch.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		return errors.New("connection refused")
	}

	err := ch.Send(context.Background(), notificationRecord())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestEmailChannelValidation(t *testing.T) {
	ch := NewEmailChannel(&config.EmailConfig{Enabled: true})
	assert.Error(t, ch.ValidateConfiguration())

	err := ch.Send(context.Background(), notificationRecord())
	assert.Error(t, err)
}

func TestWebhookChannelSend(t *testing.T) {
	var received WebhookPayload
	var gotHeader string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("Content-Type")
		json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	ch := NewWebhookChannel(&config.WebhookConfig{
		Enabled: true,
		URL:     ts.URL,
	}, time.Second)

	require.NoError(t, ch.Send(context.Background(), notificationRecord()))

	assert.Equal(t, "application/json", gotHeader)
	assert.Equal(t, "log_notification", received.Type)
	assert.Equal(t, "logward", received.Source)
	require.NotNil(t, received.Record)
	assert.Equal(t, int64(42), received.Record.ID)
}

func TestWebhookChannelNonSuccessStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	ch := NewWebhookChannel(&config.WebhookConfig{Enabled: true, URL: ts.URL}, time.Second)

	err := ch.Send(context.Background(), notificationRecord())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-success")
}

func TestWebhookChannelCustomHeaders(t *testing.T) {
	var gotAuth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	ch := NewWebhookChannel(&config.WebhookConfig{
		Enabled: true,
		URL:     ts.URL,
		Headers: map[string]string{"Authorization": "Bearer token-1"},
	}, time.Second)

	require.NoError(t, ch.Send(context.Background(), notificationRecord()))
	assert.Equal(t, "Bearer token-1", gotAuth)
}

func TestChatChannelSend(t *testing.T) {
	var received chatMessage
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&received)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	ch := NewChatChannel(&config.ChatConfig{
		Enabled:    true,
		WebhookURL: ts.URL,
		Username:   "logward",
	}, time.Second)

	require.NoError(t, ch.Send(context.Background(), notificationRecord()))

	assert.Equal(t, "logward", received.Username)
	assert.Contains(t, received.Text, "*[CRITICAL]*")
	assert.Contains(t, received.Text, "charge processor unreachable")
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(newFakeChannel("webhook")))

	err := registry.Register(newFakeChannel("Webhook"))
	require.Error(t, err)

	ch, ok := registry.Get("WEBHOOK")
	assert.True(t, ok)
	assert.Equal(t, "webhook", ch.Name())
}
