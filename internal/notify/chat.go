// File: internal/notify/chat.go
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/logward/logward/internal/config"
	"github.com/logward/logward/internal/models"
	"github.com/logward/logward/pkg/utils"
)

// chatMessage is the Slack-compatible webhook body
type chatMessage struct {
	Username string `json:"username,omitempty"`
	Text     string `json:"text"`
}

// ChatChannel delivers notifications to a chat webhook
type ChatChannel struct {
	config     *config.ChatConfig
	logger     *logrus.Entry
	httpClient *http.Client
}

// NewChatChannel creates a new chat webhook channel
func NewChatChannel(cfg *config.ChatConfig, timeout time.Duration) *ChatChannel {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ChatChannel{
		config: cfg,
		logger: utils.GetLogger().WithField("component", "chat_channel"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Name returns the channel name
func (c *ChatChannel) Name() string {
	return "chat"
}

// IsEnabled reports whether the channel is configured for delivery
func (c *ChatChannel) IsEnabled() bool {
	return c.config.Enabled
}

// Send posts a formatted message to the chat webhook
func (c *ChatChannel) Send(ctx context.Context, record *models.LogRecord) error {
	if err := c.ValidateConfiguration(); err != nil {
		return err
	}

	msg := chatMessage{
		Username: c.config.Username,
		Text:     formatChatText(record),
	}

	jsonData, err := json.Marshal(msg)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeInternal, "Failed to marshal chat message", err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.WebhookURL, bytes.NewReader(jsonData))
	if err != nil {
		return utils.NewAppError(utils.ErrCodeInternal, "Failed to create chat request", err.Error())
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDelivery, "Failed to send chat message", err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return utils.NewAppError(utils.ErrCodeDelivery,
			"Chat webhook returned non-success status",
			fmt.Sprintf("status: %d", resp.StatusCode))
	}

	return nil
}

func formatChatText(record *models.LogRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*[%s]* %s\n", strings.ToUpper(string(record.Level)), record.Message)
	fmt.Fprintf(&b, "channel: `%s` environment: `%s`", record.Channel, record.Environment)
	if record.UserID != "" {
		fmt.Fprintf(&b, " user: `%s`", record.UserID)
	}
	if record.URL != "" {
		fmt.Fprintf(&b, "\n%s %s", record.Method, record.URL)
	}
	return b.String()
}

// ValidateConfiguration checks the channel configuration
func (c *ChatChannel) ValidateConfiguration() error {
	if c.config.WebhookURL == "" {
		return utils.NewAppError(utils.ErrCodeValidation, "Chat webhook URL is required", "")
	}
	if _, err := url.ParseRequestURI(c.config.WebhookURL); err != nil {
		return utils.NewAppError(utils.ErrCodeValidation, "Chat webhook URL is invalid", err.Error())
	}
	return nil
}

// ConfigurationRequirements describes the fields the channel needs
func (c *ChatChannel) ConfigurationRequirements() []FieldRequirement {
	return []FieldRequirement{
		{Name: "webhook_url", Type: "string", Required: true, Description: "Chat webhook URL"},
		{Name: "username", Type: "string", Required: false, Description: "Display name for posted messages"},
	}
}

// TestConnection performs a live delivery test
func (c *ChatChannel) TestConnection(ctx context.Context) TestResult {
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
	return TestResult{Success: true, Message: "Chat message delivered"}
}
