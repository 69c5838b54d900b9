// File: internal/notify/webhook.go
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/logward/logward/internal/config"
	"github.com/logward/logward/internal/models"
	"github.com/logward/logward/pkg/utils"
)

// WebhookPayload defines the webhook payload structure
type WebhookPayload struct {
	Type      string            `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	Source    string            `json:"source"`
	Record    *models.LogRecord `json:"record"`
	Version   string            `json:"version"`
}

// WebhookChannel delivers notifications to a generic HTTP endpoint
type WebhookChannel struct {
	config     *config.WebhookConfig
	logger     *logrus.Entry
	httpClient *http.Client
}

// NewWebhookChannel creates a new webhook channel
func NewWebhookChannel(cfg *config.WebhookConfig, timeout time.Duration) *WebhookChannel {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &WebhookChannel{
		config: cfg,
		logger: utils.GetLogger().WithField("component", "webhook_channel"),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     30 * time.Second,
			},
		},
	}
}

// Name returns the channel name
func (c *WebhookChannel) Name() string {
	return "webhook"
}

// IsEnabled reports whether the channel is configured for delivery
func (c *WebhookChannel) IsEnabled() bool {
	return c.config.Enabled
}

// Send posts the record to the configured endpoint. Delivery is a
// single best-effort attempt: failures are recorded by the dispatcher,
// not retried.
func (c *WebhookChannel) Send(ctx context.Context, record *models.LogRecord) error {
	if err := c.ValidateConfiguration(); err != nil {
		return err
	}

	payload := &WebhookPayload{
		Type:      "log_notification",
		Timestamp: time.Now().UTC(),
		Source:    "logward",
		Record:    record,
		Version:   "1.0",
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeInternal, "Failed to marshal webhook payload", err.Error())
	}

	method := c.config.Method
	if method == "" {
		method = http.MethodPost
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.URL, bytes.NewReader(jsonData))
	if err != nil {
		return utils.NewAppError(utils.ErrCodeInternal, "Failed to create webhook request", err.Error())
	}
	c.setRequestHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDelivery, "Failed to send webhook", err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return utils.NewAppError(utils.ErrCodeDelivery,
			"Webhook returned non-success status",
			fmt.Sprintf("status: %d", resp.StatusCode))
	}

	return nil
}

func (c *WebhookChannel) setRequestHeaders(req *http.Request) {
	for key, value := range c.config.Headers {
		req.Header.Set(key, value)
	}

	if req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", "logward/1.0")
	}

	if requestID, err := utils.GenerateID(); err == nil {
		req.Header.Set("X-Request-ID", requestID)
	}
}

// ValidateConfiguration checks the channel configuration
func (c *WebhookChannel) ValidateConfiguration() error {
	if c.config.URL == "" {
		return utils.NewAppError(utils.ErrCodeValidation, "Webhook URL is required", "")
	}
	if _, err := url.ParseRequestURI(c.config.URL); err != nil {
		return utils.NewAppError(utils.ErrCodeValidation, "Webhook URL is invalid", err.Error())
	}
	return nil
}

// ConfigurationRequirements describes the fields the channel needs
func (c *WebhookChannel) ConfigurationRequirements() []FieldRequirement {
	return []FieldRequirement{
		{Name: "url", Type: "string", Required: true, Description: "Webhook endpoint URL"},
		{Name: "method", Type: "string", Required: false, Description: "HTTP method (default POST)"},
		{Name: "headers", Type: "map", Required: false, Description: "Additional request headers"},
	}
}

// TestConnection performs a live delivery test
func (c *WebhookChannel) TestConnection(ctx context.Context) TestResult {
	record := &models.LogRecord{
		Level:       models.LevelInfo,
		Channel:     models.DefaultChannel,
		Message:     "Test notification from logward",
		Environment: "test",
		CreatedAt:   time.Now().UTC(),
	}

	if err := c.Send(ctx, record); err != nil {
		return TestResult{Success: false, Message: err.Error()}
	}
	return TestResult{Success: true, Message: "Webhook delivered"}
}
