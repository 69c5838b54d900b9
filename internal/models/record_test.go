// File: internal/models/record_test.go
package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
		ok       bool
	}{
		{"error", LevelError, true},
		{"ERROR", LevelError, true},
		{" Critical ", LevelCritical, true},
		{"emergency", LevelEmergency, true},
		{"debug", LevelDebug, true},
		{"fatal", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		level, ok := ParseLevel(tt.input)
		assert.Equal(t, tt.ok, ok, "input %q", tt.input)
		if tt.ok {
			assert.Equal(t, tt.expected, level)
		}
	}
}

func TestLevelSeverityOrdering(t *testing.T) {
	// Emergency is the most severe, debug the least.
	assert.Less(t, LevelEmergency.Severity(), LevelAlert.Severity())
	assert.Less(t, LevelError.Severity(), LevelWarning.Severity())
	assert.Less(t, LevelInfo.Severity(), LevelDebug.Severity())
}

func TestParseRelativeWindow(t *testing.T) {
	now := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		input    string
		expected time.Time
		wantErr  bool
	}{
		{"30m", now.Add(-30 * time.Minute), false},
		{"2h", now.Add(-2 * time.Hour), false},
		{"1d", now.Add(-24 * time.Hour), false},
		{"7d", now.Add(-7 * 24 * time.Hour), false},
		{"0m", time.Time{}, true},
		{"-5m", time.Time{}, true},
		{"10x", time.Time{}, true},
		{"m", time.Time{}, true},
		{"", time.Time{}, true},
	}

	for _, tt := range tests {
		got, err := ParseRelativeWindow(tt.input, now)
		if tt.wantErr {
			assert.Error(t, err, "input %q", tt.input)
			continue
		}
		require.NoError(t, err, "input %q", tt.input)
		assert.Equal(t, tt.expected, got)
	}
}

func TestResolveSince(t *testing.T) {
	now := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)

	absolute, err := ResolveSince("2026-08-01T09:30:00Z", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 8, 1, 9, 30, 0, 0, time.UTC), absolute)

	relative, err := ResolveSince("45m", now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(-45*time.Minute), relative)

	_, err = ResolveSince("yesterday", now)
	assert.Error(t, err)
}

func TestRecordFieldLookup(t *testing.T) {
	record := &LogRecord{
		Level:   LevelError,
		Channel: "payments",
		Message: "charge failed",
		UserID:  "user-9",
		Context: map[string]interface{}{
			"order": map[string]interface{}{"id": "ord-77"},
			"host":  "web-2",
		},
		Extra: map[string]interface{}{"build": "abc123"},
	}

	v, ok := record.Field("level")
	require.True(t, ok)
	assert.Equal(t, "error", v)

	v, ok = record.Field("context.order.id")
	require.True(t, ok)
	assert.Equal(t, "ord-77", v)

	// Bare names search context first, then extra.
	v, ok = record.Field("host")
	require.True(t, ok)
	assert.Equal(t, "web-2", v)

	v, ok = record.Field("build")
	require.True(t, ok)
	assert.Equal(t, "abc123", v)

	_, ok = record.Field("missing")
	assert.False(t, ok)

	_, ok = record.Field("context.order.missing")
	assert.False(t, ok)
}

func TestRecordFilterMatches(t *testing.T) {
	created := time.Date(2026, 8, 15, 10, 0, 0, 0, time.UTC)
	record := &LogRecord{
		ID:          12,
		Level:       LevelError,
		Channel:     "payments",
		Message:     "Gateway Timeout",
		UserID:      "user-9",
		Environment: "production",
		CreatedAt:   created,
	}

	assert.True(t, (&RecordFilter{}).Matches(record))
	assert.True(t, (&RecordFilter{Levels: []Level{LevelError, LevelCritical}}).Matches(record))
	assert.False(t, (&RecordFilter{Levels: []Level{LevelInfo}}).Matches(record))
	assert.True(t, (&RecordFilter{Channel: "payments"}).Matches(record))
	assert.False(t, (&RecordFilter{Channel: "billing"}).Matches(record))

	// Search is case-insensitive.
	assert.True(t, (&RecordFilter{Search: "gateway timeout"}).Matches(record))
	assert.False(t, (&RecordFilter{Search: "refund"}).Matches(record))

	since := created.Add(-time.Hour)
	until := created.Add(time.Hour)
	assert.True(t, (&RecordFilter{Since: &since, Until: &until}).Matches(record))

	late := created.Add(time.Minute)
	assert.False(t, (&RecordFilter{Since: &late}).Matches(record))

	assert.True(t, (&RecordFilter{AfterID: 11}).Matches(record))
	assert.False(t, (&RecordFilter{AfterID: 12}).Matches(record))
}

func TestChannelSettingDefaults(t *testing.T) {
	setting := NewChannelSetting("Webhook")

	assert.Equal(t, "webhook", setting.Channel)
	assert.True(t, setting.Enabled)
	assert.True(t, setting.AllowsLevel(LevelError))
	assert.True(t, setting.AllowsLevel(LevelEmergency))
	assert.False(t, setting.AllowsLevel(LevelInfo))
	assert.True(t, setting.AllowsEnvironment("production"))
	assert.False(t, setting.AllowsEnvironment("staging"))
}

func TestChannelSettingRateLimited(t *testing.T) {
	setting := NewChannelSetting("webhook")
	now := time.Now()

	// Never notified: not limited.
	assert.False(t, setting.RateLimited(now))

	recent := now.Add(-30 * time.Second)
	setting.LastNotificationAt = &recent
	assert.True(t, setting.RateLimited(now))

	old := now.Add(-2 * time.Minute)
	setting.LastNotificationAt = &old
	assert.False(t, setting.RateLimited(now))

	setting.RateLimit.Enabled = false
	setting.LastNotificationAt = &recent
	assert.False(t, setting.RateLimited(now))
}

func TestChannelSettingResetCounters(t *testing.T) {
	setting := NewChannelSetting("webhook")
	now := time.Now()
	setting.NotificationCount = 5
	setting.FailureCount = 2
	setting.LastNotificationAt = &now
	setting.LastError = "smtp refused"

	setting.ResetCounters()

	assert.Zero(t, setting.NotificationCount)
	assert.Zero(t, setting.FailureCount)
	assert.Nil(t, setting.LastNotificationAt)
	assert.Empty(t, setting.LastError)
}
