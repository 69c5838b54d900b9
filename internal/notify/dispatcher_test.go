// File: internal/notify/dispatcher_test.go
package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logward/logward/internal/models"
)

// fakeChannel is a controllable Channel for dispatcher tests
type fakeChannel struct {
	name    string
	enabled bool

	mu      sync.Mutex
	sent    []*models.LogRecord
	sendErr error
	panics  bool
}

func newFakeChannel(name string) *fakeChannel {
	return &fakeChannel{name: name, enabled: true}
}

func (c *fakeChannel) Name() string    { return c.name }
func (c *fakeChannel) IsEnabled() bool { return c.enabled }

func (c *fakeChannel) Send(ctx context.Context, record *models.LogRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.panics {
		panic("channel exploded")
	}
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, record)
	return nil
}

func (c *fakeChannel) ValidateConfiguration() error { return nil }

func (c *fakeChannel) ConfigurationRequirements() []FieldRequirement { return nil }

func (c *fakeChannel) TestConnection(ctx context.Context) TestResult {
	return TestResult{Success: true, Message: "ok"}
}

func (c *fakeChannel) sentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

func productionError(message string) *models.LogRecord {
	return &models.LogRecord{
		Level:       models.LevelError,
		Channel:     "app",
		Message:     message,
		Environment: "production",
		CreatedAt:   time.Now().UTC(),
	}
}

func newTestDispatcher(t *testing.T, channels ...Channel) (*Dispatcher, *Registry) {
	registry := NewRegistry()
	for _, ch := range channels {
		require.NoError(t, registry.Register(ch))
	}
	return NewDispatcher(registry, 5*time.Second), registry
}

func TestDispatcherDeliversToMatchingChannel(t *testing.T) {
	ch := newFakeChannel("webhook")
	d, _ := newTestDispatcher(t, ch)

	results := d.Dispatch(context.Background(), productionError("disk full"))

	require.Contains(t, results, "webhook")
	assert.True(t, results["webhook"].Delivered)
	assert.Equal(t, 1, ch.sentCount())
}

func TestDispatcherSkipsByLevel(t *testing.T) {
	ch := newFakeChannel("webhook")
	d, _ := newTestDispatcher(t, ch)

	record := productionError("just info")
	record.Level = models.LevelInfo

	results := d.Dispatch(context.Background(), record)

	assert.True(t, results["webhook"].Skipped)
	assert.Equal(t, SkipLevel, results["webhook"].Reason)
	assert.Equal(t, 0, ch.sentCount())
}

func TestDispatcherSkipsByEnvironment(t *testing.T) {
	ch := newFakeChannel("webhook")
	d, _ := newTestDispatcher(t, ch)

	record := productionError("dev only")
	record.Environment = "development"

	results := d.Dispatch(context.Background(), record)

	assert.True(t, results["webhook"].Skipped)
	assert.Equal(t, SkipEnvironment, results["webhook"].Reason)
}

func TestDispatcherSkipsDisabledChannel(t *testing.T) {
	ch := newFakeChannel("webhook")
	ch.enabled = false
	d, _ := newTestDispatcher(t, ch)

	results := d.Dispatch(context.Background(), productionError("anything"))

	assert.True(t, results["webhook"].Skipped)
	assert.Equal(t, SkipDisabled, results["webhook"].Reason)
}

func TestDispatcherRateLimitsRepeatedDeliveries(t *testing.T) {
	ch := newFakeChannel("webhook")
	d, _ := newTestDispatcher(t, ch)

	// Three matching events within the one minute window: only the
	// first delivers, the rest are skipped by the limiter.
	for i, msg := range []string{"error one", "error two", "error three"} {
		results := d.Dispatch(context.Background(), productionError(msg))
		if i == 0 {
			assert.True(t, results["webhook"].Delivered, "event %d", i)
		} else {
			assert.True(t, results["webhook"].Skipped, "event %d", i)
			assert.Equal(t, SkipRateLimit, results["webhook"].Reason)
		}
	}

	assert.Equal(t, 1, ch.sentCount())
}

func TestDispatcherCustomConditionGatesDelivery(t *testing.T) {
	ch := newFakeChannel("webhook")
	d, _ := newTestDispatcher(t, ch)

	setting, ok := d.GetSetting("webhook")
	require.True(t, ok)
	setting.Conditions.Custom = []models.Condition{
		{Field: "channel", Operator: models.OpEquals, Value: "payments"},
	}
	require.NoError(t, d.UpdateSetting(setting))

	results := d.Dispatch(context.Background(), productionError("wrong channel"))
	assert.True(t, results["webhook"].Skipped)
	assert.Equal(t, SkipCondition, results["webhook"].Reason)

	record := productionError("right channel")
	record.Channel = "payments"
	results = d.Dispatch(context.Background(), record)
	assert.True(t, results["webhook"].Delivered)
}

func TestDispatcherFailureIsolation(t *testing.T) {
	failing := newFakeChannel("email")
	failing.sendErr = errors.New("smtp connection refused")
	healthy := newFakeChannel("webhook")
	d, _ := newTestDispatcher(t, failing, healthy)

	results := d.Dispatch(context.Background(), productionError("shared event"))

	// One channel's failure never blocks another's delivery.
	assert.False(t, results["email"].Delivered)
	assert.Equal(t, "smtp connection refused", results["email"].Error)
	assert.True(t, results["webhook"].Delivered)
}

func TestDispatcherRecoversFromChannelPanic(t *testing.T) {
	panicking := newFakeChannel("email")
	panicking.panics = true
	healthy := newFakeChannel("webhook")
	d, _ := newTestDispatcher(t, panicking, healthy)

	results := d.Dispatch(context.Background(), productionError("panic trigger"))

	assert.False(t, results["email"].Delivered)
	assert.Contains(t, results["email"].Error, "channel panic")
	assert.True(t, results["webhook"].Delivered)
}

func TestDispatcherTracksCounters(t *testing.T) {
	ch := newFakeChannel("webhook")
	d, _ := newTestDispatcher(t, ch)

	d.Dispatch(context.Background(), productionError("first"))

	setting, ok := d.GetSetting("webhook")
	require.True(t, ok)
	assert.Equal(t, int64(1), setting.NotificationCount)
	assert.NotNil(t, setting.LastNotificationAt)

	ch.sendErr = errors.New("boom")
	// Push past the rate limit window by resetting state first.
	require.NoError(t, d.ResetSetting("webhook"))

	d.Dispatch(context.Background(), productionError("second"))

	setting, _ = d.GetSetting("webhook")
	assert.Equal(t, int64(1), setting.FailureCount)
	assert.Equal(t, "boom", setting.LastError)
}

func TestDispatcherUpdatePreservesCounters(t *testing.T) {
	ch := newFakeChannel("webhook")
	d, _ := newTestDispatcher(t, ch)

	d.Dispatch(context.Background(), productionError("count me"))

	updated := models.NewChannelSetting("webhook")
	updated.Conditions.Levels = []models.Level{models.LevelCritical}
	require.NoError(t, d.UpdateSetting(updated))

	setting, _ := d.GetSetting("webhook")
	assert.Equal(t, int64(1), setting.NotificationCount)
	assert.Equal(t, []models.Level{models.LevelCritical}, setting.Conditions.Levels)
}

func TestDispatcherStats(t *testing.T) {
	ch := newFakeChannel("webhook")
	d, _ := newTestDispatcher(t, ch)

	d.Dispatch(context.Background(), productionError("delivered"))

	record := productionError("skipped")
	record.Level = models.LevelInfo
	d.Dispatch(context.Background(), record)

	stats := d.GetStats()
	assert.Equal(t, int64(2), stats.TotalDispatched)
	assert.Equal(t, int64(1), stats.TotalDelivered)
	assert.Equal(t, int64(1), stats.TotalSkipped)
	assert.Contains(t, stats.Channels, "webhook")
}
