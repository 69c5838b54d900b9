package models

import (
	"strings"
	"time"
)

// Condition operators supported by channel delivery conditions.
const (
	OpEquals      = "equals"
	OpNotEquals   = "not_equals"
	OpContains    = "contains"
	OpNotContains = "not_contains"
	OpStartsWith  = "starts_with"
	OpEndsWith    = "ends_with"
	OpRegex       = "regex"
)

// Condition is a single field predicate gating channel delivery
type Condition struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
}

// DeliveryConditions restrict when a channel fires
type DeliveryConditions struct {
	Levels       []Level     `json:"levels,omitempty"`
	Environments []string    `json:"environments,omitempty"`
	Custom       []Condition `json:"custom,omitempty"`
}

// RateLimit is a single-token limiter: a channel delivers at most once
// per window, measured from the last successful notification.
type RateLimit struct {
	Enabled       bool `json:"enabled"`
	MaxPerWindow  int  `json:"max_per_window"`
	WindowMinutes int  `json:"window_minutes"`
}

// Window returns the limiter window as a duration.
func (r *RateLimit) Window() time.Duration {
	if r.WindowMinutes <= 0 {
		return time.Minute
	}
	return time.Duration(r.WindowMinutes) * time.Minute
}

// ChannelSetting holds per-channel configuration and delivery state
type ChannelSetting struct {
	Channel            string                 `json:"channel" db:"channel"`
	Enabled            bool                   `json:"enabled" db:"enabled"`
	Settings           map[string]interface{} `json:"settings,omitempty" db:"settings"`
	Conditions         DeliveryConditions     `json:"conditions" db:"conditions"`
	RateLimit          RateLimit              `json:"rate_limit" db:"rate_limit"`
	NotificationCount  int64                  `json:"notification_count" db:"notification_count"`
	FailureCount       int64                  `json:"failure_count" db:"failure_count"`
	LastNotificationAt *time.Time             `json:"last_notification_at,omitempty" db:"last_notification_at"`
	LastFailureAt      *time.Time             `json:"last_failure_at,omitempty" db:"last_failure_at"`
	LastError          string                 `json:"last_error,omitempty" db:"last_error"`
}

// NewChannelSetting creates a setting with the documented defaults:
// notifications fire for error and above, in production only.
func NewChannelSetting(channel string) *ChannelSetting {
	return &ChannelSetting{
		Channel: strings.ToLower(channel),
		Enabled: true,
		Conditions: DeliveryConditions{
			Levels:       append([]Level(nil), DefaultNotificationLevels...),
			Environments: []string{"production"},
		},
		RateLimit: RateLimit{
			Enabled:       true,
			MaxPerWindow:  1,
			WindowMinutes: 1,
		},
	}
}

// AllowsLevel reports whether the setting's level condition admits the
// given level. An empty level set falls back to the defaults.
func (c *ChannelSetting) AllowsLevel(level Level) bool {
	levels := c.Conditions.Levels
	if len(levels) == 0 {
		levels = DefaultNotificationLevels
	}
	for _, l := range levels {
		if l == level {
			return true
		}
	}
	return false
}

// AllowsEnvironment reports whether the setting's environment condition
// admits the given environment. An empty set means production only.
func (c *ChannelSetting) AllowsEnvironment(env string) bool {
	envs := c.Conditions.Environments
	if len(envs) == 0 {
		envs = []string{"production"}
	}
	for _, e := range envs {
		if e == env {
			return true
		}
	}
	return false
}

// RateLimited reports whether delivery should be skipped because the
// window has not elapsed since the last successful notification.
func (c *ChannelSetting) RateLimited(now time.Time) bool {
	if !c.RateLimit.Enabled || c.LastNotificationAt == nil {
		return false
	}
	return now.Sub(*c.LastNotificationAt) < c.RateLimit.Window()
}

// ResetCounters clears delivery state; used by the administrative API.
func (c *ChannelSetting) ResetCounters() {
	c.NotificationCount = 0
	c.FailureCount = 0
	c.LastNotificationAt = nil
	c.LastFailureAt = nil
	c.LastError = ""
}
