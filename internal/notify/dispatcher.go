// File: internal/notify/dispatcher.go
package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/logward/logward/internal/metrics"
	"github.com/logward/logward/internal/models"
	"github.com/logward/logward/pkg/utils"
)

// Skip reasons reported in DeliveryResult
const (
	SkipDisabled    = "disabled"
	SkipLevel       = "level"
	SkipEnvironment = "environment"
	SkipCondition   = "condition"
	SkipRateLimit   = "rate_limit"
)

// DeliveryResult is the per-channel outcome of a dispatch
type DeliveryResult struct {
	Channel   string        `json:"channel"`
	Delivered bool          `json:"delivered"`
	Skipped   bool          `json:"skipped"`
	Reason    string        `json:"reason,omitempty"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// DispatcherStats provides dispatcher statistics
type DispatcherStats struct {
	TotalDispatched int64                             `json:"total_dispatched"`
	TotalDelivered  int64                             `json:"total_delivered"`
	TotalFailed     int64                             `json:"total_failed"`
	TotalSkipped    int64                             `json:"total_skipped"`
	Channels        map[string]*models.ChannelSetting `json:"channels"`
}

// Dispatcher evaluates per-channel delivery conditions and invokes
// channels. Channels are evaluated independently; one channel's
// failure or slowness never blocks another's delivery.
type Dispatcher struct {
	registry *Registry
	logger   *logrus.Entry
	timeout  time.Duration

	mu       sync.Mutex
	settings map[string]*models.ChannelSetting

	totalDispatched int64
	totalDelivered  int64
	totalFailed     int64
	totalSkipped    int64

	metricsManager *metrics.Manager
}

// NewDispatcher creates a dispatcher over the given channel registry
func NewDispatcher(registry *Registry, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Dispatcher{
		registry: registry,
		logger:   utils.GetLogger().WithField("component", "dispatcher"),
		timeout:  timeout,
		settings: make(map[string]*models.ChannelSetting),
	}
}

// SetMetricsManager attaches a metrics manager
func (d *Dispatcher) SetMetricsManager(mm *metrics.Manager) {
	d.metricsManager = mm
}

// Dispatch evaluates every registered channel for the record and
// delivers where conditions allow. It never returns an error: channel
// failures are recorded in the per-channel settings and the result map.
func (d *Dispatcher) Dispatch(ctx context.Context, record *models.LogRecord) map[string]DeliveryResult {
	channels := d.registry.All()
	results := make(map[string]DeliveryResult, len(channels))

	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, ch := range channels {
		wg.Add(1)
		go func(ch Channel) {
			defer wg.Done()

			result := d.dispatchToChannel(ctx, ch, record)

			mu.Lock()
			results[result.Channel] = result
			mu.Unlock()
		}(ch)
	}

	wg.Wait()

	d.mu.Lock()
	d.totalDispatched++
	for _, r := range results {
		switch {
		case r.Delivered:
			d.totalDelivered++
		case r.Skipped:
			d.totalSkipped++
		default:
			d.totalFailed++
		}
	}
	d.mu.Unlock()

	return results
}

// dispatchToChannel evaluates conditions and attempts delivery for one
// channel. A panic inside a channel implementation is caught and
// recorded as a failure; it never propagates to the ingestion caller.
func (d *Dispatcher) dispatchToChannel(ctx context.Context, ch Channel, record *models.LogRecord) (result DeliveryResult) {
	name := strings.ToLower(ch.Name())
	result = DeliveryResult{Channel: name}
	start := time.Now()

	defer func() {
		result.Duration = time.Since(start)
		if r := recover(); r != nil {
			result.Delivered = false
			result.Skipped = false
			result.Error = fmt.Sprintf("channel panic: %v", r)
			d.recordFailure(name, result.Error, start)
		}
	}()

	setting := d.getOrCreateSetting(name)

	if !setting.Enabled || !ch.IsEnabled() {
		result.Skipped = true
		result.Reason = SkipDisabled
		return result
	}

	if !setting.AllowsLevel(record.Level) {
		result.Skipped = true
		result.Reason = SkipLevel
		d.recordSkip(name, SkipLevel)
		return result
	}

	if !setting.AllowsEnvironment(record.Environment) {
		result.Skipped = true
		result.Reason = SkipEnvironment
		d.recordSkip(name, SkipEnvironment)
		return result
	}

	if !EvaluateConditions(setting.Conditions.Custom, record) {
		result.Skipped = true
		result.Reason = SkipCondition
		d.recordSkip(name, SkipCondition)
		return result
	}

	d.mu.Lock()
	limited := setting.RateLimited(time.Now())
	d.mu.Unlock()
	if limited {
		result.Skipped = true
		result.Reason = SkipRateLimit
		d.recordSkip(name, SkipRateLimit)
		return result
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	err := ch.Send(sendCtx, record)
	if err != nil {
		result.Error = err.Error()
		d.recordFailure(name, err.Error(), start)
		d.logger.WithFields(logrus.Fields{
			"channel": name,
			"error":   err.Error(),
		}).Warn("Notification delivery failed")
		return result
	}

	result.Delivered = true
	d.recordSuccess(name, start)
	return result
}

func (d *Dispatcher) recordSuccess(name string, start time.Time) {
	now := time.Now()

	d.mu.Lock()
	setting := d.settingLocked(name)
	setting.NotificationCount++
	setting.LastNotificationAt = &now
	d.mu.Unlock()

	if d.metricsManager != nil {
		d.metricsManager.GetPrometheusMetrics().RecordNotificationSent(name, time.Since(start))
	}
}

func (d *Dispatcher) recordFailure(name, errMsg string, start time.Time) {
	now := time.Now()

	d.mu.Lock()
	setting := d.settingLocked(name)
	setting.FailureCount++
	setting.LastFailureAt = &now
	setting.LastError = errMsg
	d.mu.Unlock()

	if d.metricsManager != nil {
		d.metricsManager.GetPrometheusMetrics().RecordNotificationFailure(name, time.Since(start))
	}
}

func (d *Dispatcher) recordSkip(name, reason string) {
	if d.metricsManager != nil {
		d.metricsManager.GetPrometheusMetrics().RecordNotificationSkipped(name, reason)
	}
}

func (d *Dispatcher) getOrCreateSetting(name string) *models.ChannelSetting {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.settingLocked(name)
}

func (d *Dispatcher) settingLocked(name string) *models.ChannelSetting {
	name = strings.ToLower(name)
	if setting, ok := d.settings[name]; ok {
		return setting
	}
	setting := models.NewChannelSetting(name)
	d.settings[name] = setting
	return setting
}

// GetSetting returns a copy of a channel's setting
func (d *Dispatcher) GetSetting(name string) (*models.ChannelSetting, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	setting, ok := d.settings[strings.ToLower(name)]
	if !ok {
		if _, registered := d.registry.Get(name); !registered {
			return nil, false
		}
		setting = d.settingLocked(name)
	}
	copied := *setting
	return &copied, true
}

// GetSettings returns copies of all channel settings
func (d *Dispatcher) GetSettings() []*models.ChannelSetting {
	// Make sure every registered channel has a setting
	for _, ch := range d.registry.All() {
		d.getOrCreateSetting(ch.Name())
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	settings := make([]*models.ChannelSetting, 0, len(d.settings))
	for _, setting := range d.settings {
		copied := *setting
		settings = append(settings, &copied)
	}
	return settings
}

// UpdateSetting replaces a channel's configuration; delivery counters
// are preserved across updates.
func (d *Dispatcher) UpdateSetting(updated *models.ChannelSetting) error {
	name := strings.ToLower(updated.Channel)
	if _, ok := d.registry.Get(name); !ok {
		return utils.NewAppError(utils.ErrCodeNotFound, "Unknown notification channel", name)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	current := d.settingLocked(name)
	current.Enabled = updated.Enabled
	current.Settings = updated.Settings
	current.Conditions = updated.Conditions
	current.RateLimit = updated.RateLimit
	return nil
}

// ResetSetting clears a channel's delivery counters
func (d *Dispatcher) ResetSetting(name string) error {
	if _, ok := d.registry.Get(name); !ok {
		return utils.NewAppError(utils.ErrCodeNotFound, "Unknown notification channel", name)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.settingLocked(name).ResetCounters()
	return nil
}

// GetStats returns dispatcher statistics
func (d *Dispatcher) GetStats() *DispatcherStats {
	d.mu.Lock()
	defer d.mu.Unlock()

	channels := make(map[string]*models.ChannelSetting, len(d.settings))
	for name, setting := range d.settings {
		copied := *setting
		channels[name] = &copied
	}

	return &DispatcherStats{
		TotalDispatched: d.totalDispatched,
		TotalDelivered:  d.totalDelivered,
		TotalFailed:     d.totalFailed,
		TotalSkipped:    d.totalSkipped,
		Channels:        channels,
	}
}
