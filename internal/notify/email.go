// File: internal/notify/email.go
package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/logward/logward/internal/config"
	"github.com/logward/logward/internal/models"
	"github.com/logward/logward/pkg/utils"
)

// EmailChannel delivers notifications over SMTP
type EmailChannel struct {
	config *config.EmailConfig
	logger *logrus.Entry

	// send is swappable for tests
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailChannel creates a new mail channel
func NewEmailChannel(cfg *config.EmailConfig) *EmailChannel {
	return &EmailChannel{
		config: cfg,
		logger: utils.GetLogger().WithField("component", "email_channel"),
		send:   smtp.SendMail,
	}
}

// Name returns the channel name
func (c *EmailChannel) Name() string {
	return "email"
}

// IsEnabled reports whether the channel is configured for delivery
func (c *EmailChannel) IsEnabled() bool {
	return c.config.Enabled
}

// Send delivers a notification email for the record
func (c *EmailChannel) Send(ctx context.Context, record *models.LogRecord) error {
	if err := c.ValidateConfiguration(); err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", c.config.SMTPHost, c.config.SMTPPort)

	var auth smtp.Auth
	if c.config.Username != "" && c.config.Password != "" {
		auth = smtp.PlainAuth("", c.config.Username, c.config.Password, c.config.SMTPHost)
	}

	msg := c.buildMessage(record)

	// net/smtp has no context support; honor cancellation around the
	// blocking call.
	errCh := make(chan error, 1)
	go func() {
		errCh <- c.send(addr, auth, c.config.FromEmail, []string{c.config.Recipient}, msg)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return utils.NewAppError(utils.ErrCodeDelivery, "Failed to send email", err.Error())
		}
		return nil
	case <-ctx.Done():
		return utils.NewAppError(utils.ErrCodeDelivery, "Email send cancelled", ctx.Err().Error())
	}
}

func (c *EmailChannel) buildMessage(record *models.LogRecord) []byte {
	subject := fmt.Sprintf("[%s] %s", strings.ToUpper(string(record.Level)), truncate(record.Message, 80))

	var body strings.Builder
	fmt.Fprintf(&body, "Level: %s\r\n", record.Level)
	fmt.Fprintf(&body, "Channel: %s\r\n", record.Channel)
	fmt.Fprintf(&body, "Environment: %s\r\n", record.Environment)
	fmt.Fprintf(&body, "Time: %s\r\n", record.CreatedAt.Format(time.RFC3339))
	if record.UserID != "" {
		fmt.Fprintf(&body, "User: %s\r\n", record.UserID)
	}
	if record.URL != "" {
		fmt.Fprintf(&body, "URL: %s %s\r\n", record.Method, record.URL)
	}
	fmt.Fprintf(&body, "\r\n%s\r\n", record.Message)
	if record.StackTrace != "" {
		fmt.Fprintf(&body, "\r\nStack trace:\r\n%s\r\n", record.StackTrace)
	}

	from := c.config.FromEmail
	if c.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", c.config.FromName, c.config.FromEmail)
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		from, c.config.Recipient, subject, body.String())
	return []byte(msg)
}

// ValidateConfiguration checks the channel configuration
func (c *EmailChannel) ValidateConfiguration() error {
	if c.config.SMTPHost == "" {
		return utils.NewAppError(utils.ErrCodeValidation, "SMTP host is required", "")
	}
	if c.config.FromEmail == "" {
		return utils.NewAppError(utils.ErrCodeValidation, "From email is required", "")
	}
	if c.config.Recipient == "" {
		return utils.NewAppError(utils.ErrCodeValidation, "Recipient is required", "")
	}
	return nil
}

// ConfigurationRequirements describes the fields the channel needs
func (c *EmailChannel) ConfigurationRequirements() []FieldRequirement {
	return []FieldRequirement{
		{Name: "smtp_host", Type: "string", Required: true, Description: "SMTP server hostname"},
		{Name: "smtp_port", Type: "int", Required: false, Description: "SMTP server port (default 587)"},
		{Name: "username", Type: "string", Required: false, Description: "SMTP username"},
		{Name: "password", Type: "string", Required: false, Description: "SMTP password"},
		{Name: "from_email", Type: "string", Required: true, Description: "Sender address"},
		{Name: "recipient", Type: "string", Required: true, Description: "Recipient address"},
	}
}

// TestConnection performs a live delivery test
func (c *EmailChannel) TestConnection(ctx context.Context) TestResult {
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
	return TestResult{Success: true, Message: "Test email sent"}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
