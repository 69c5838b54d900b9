// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	App           AppConfig          `mapstructure:"app"`
	Storage       StorageConfig      `mapstructure:"storage"`
	Pipeline      PipelineConfig     `mapstructure:"pipeline"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Stream        StreamConfig       `mapstructure:"stream"`
	Server        ServerConfig       `mapstructure:"server"`
	Logging       LoggingConfig      `mapstructure:"logging"`
}

// AppConfig contains application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
}

// StorageConfig contains database configuration
type StorageConfig struct {
	Type             string        `mapstructure:"type"` // sqlite, postgres
	ConnectionString string        `mapstructure:"connection_string"`
	MaxConnections   int           `mapstructure:"max_connections"`
	MaxIdleTime      time.Duration `mapstructure:"max_idle_time"`
	RetentionDays    int           `mapstructure:"retention_days"`
	CleanupInterval  time.Duration `mapstructure:"cleanup_interval"`
}

// PipelineConfig contains ingestion pipeline configuration
type PipelineConfig struct {
	DedupCapacity        int      `mapstructure:"dedup_capacity"`
	AllowedEnvironments  []string `mapstructure:"allowed_environments"`
	RateLimitEnabled     bool     `mapstructure:"rate_limit_enabled"`
	RateLimitPerMinute   int      `mapstructure:"rate_limit_per_minute"`
	DefaultEnvironment   string   `mapstructure:"default_environment"`
	InternalChannel      string   `mapstructure:"internal_channel"`
	InternalNamePatterns []string `mapstructure:"internal_name_patterns"`
}

// NotificationConfig contains notification system configuration
type NotificationConfig struct {
	Enabled             bool          `mapstructure:"enabled"`
	NotificationTimeout time.Duration `mapstructure:"notification_timeout"`
	Email               EmailConfig   `mapstructure:"email"`
	Webhook             WebhookConfig `mapstructure:"webhook"`
	Chat                ChatConfig    `mapstructure:"chat"`
}

// EmailConfig contains mail channel configuration
type EmailConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	SMTPHost  string `mapstructure:"smtp_host"`
	SMTPPort  int    `mapstructure:"smtp_port"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	FromEmail string `mapstructure:"from_email"`
	FromName  string `mapstructure:"from_name"`
	Recipient string `mapstructure:"recipient"`
}

// WebhookConfig contains generic webhook channel configuration
type WebhookConfig struct {
	Enabled bool              `mapstructure:"enabled"`
	URL     string            `mapstructure:"url"`
	Method  string            `mapstructure:"method"`
	Headers map[string]string `mapstructure:"headers"`
}

// ChatConfig contains chat webhook channel configuration
type ChatConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	WebhookURL string `mapstructure:"webhook_url"`
	Username   string `mapstructure:"username"`
}

// StreamConfig contains live stream configuration
type StreamConfig struct {
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	StatsInterval     time.Duration `mapstructure:"stats_interval"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	MaxSessionTime    time.Duration `mapstructure:"max_session_time"`
	ReplayLimit       int           `mapstructure:"replay_limit"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port          int           `mapstructure:"port"`
	Host          string        `mapstructure:"host"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	APIKey        string        `mapstructure:"api_key"`
	EnableMetrics bool          `mapstructure:"enable_metrics"`
	EnableHealth  bool          `mapstructure:"enable_health"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json, text
	Output string `mapstructure:"output"` // stdout, file
	File   string `mapstructure:"file"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigType("yaml")

	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("config")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./internal/config")
	}

	// Set environment variable prefix
	viper.SetEnvPrefix("LOGWARD")
	viper.AutomaticEnv()

	// Set defaults
	setDefaults()

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			fmt.Println("Config file not found, using defaults and environment variables")
		} else {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Override with environment variables if present
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Storage.ConnectionString = dbURL
	}
	if env := os.Getenv("APP_ENV"); env != "" {
		config.App.Environment = env
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// App defaults
	viper.SetDefault("app.name", "logward")
	viper.SetDefault("app.version", "1.0.0")
	viper.SetDefault("app.environment", "production")
	viper.SetDefault("app.debug", false)

	// Storage defaults
	viper.SetDefault("storage.type", "sqlite")
	viper.SetDefault("storage.connection_string", "./data/logward.db")
	viper.SetDefault("storage.max_connections", 25)
	viper.SetDefault("storage.max_idle_time", "15m")
	viper.SetDefault("storage.retention_days", 30)
	viper.SetDefault("storage.cleanup_interval", "24h")

	// Pipeline defaults
	viper.SetDefault("pipeline.dedup_capacity", 100)
	viper.SetDefault("pipeline.allowed_environments", []string{})
	viper.SetDefault("pipeline.rate_limit_enabled", true)
	viper.SetDefault("pipeline.rate_limit_per_minute", 300)
	viper.SetDefault("pipeline.default_environment", "production")
	viper.SetDefault("pipeline.internal_channel", "logward")

	// Notification defaults
	viper.SetDefault("notifications.enabled", true)
	viper.SetDefault("notifications.notification_timeout", "30s")
	viper.SetDefault("notifications.email.enabled", false)
	viper.SetDefault("notifications.email.smtp_port", 587)
	viper.SetDefault("notifications.webhook.enabled", false)
	viper.SetDefault("notifications.webhook.method", "POST")
	viper.SetDefault("notifications.chat.enabled", false)

	// Stream defaults
	viper.SetDefault("stream.heartbeat_interval", "30s")
	viper.SetDefault("stream.stats_interval", "120s")
	viper.SetDefault("stream.poll_interval", "2s")
	viper.SetDefault("stream.max_session_time", "1h")
	viper.SetDefault("stream.replay_limit", 50)

	// Server defaults
	viper.SetDefault("server.port", 8081)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.read_timeout", "10s")
	viper.SetDefault("server.write_timeout", "0s")
	viper.SetDefault("server.enable_metrics", true)
	viper.SetDefault("server.enable_health", true)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output", "stdout")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Storage.ConnectionString == "" {
		return fmt.Errorf("storage connection string is required")
	}
	if c.Storage.RetentionDays <= 0 {
		return fmt.Errorf("storage retention days must be positive")
	}
	if c.Pipeline.DedupCapacity <= 0 {
		return fmt.Errorf("pipeline dedup capacity must be positive")
	}
	if c.Stream.PollInterval <= 0 {
		return fmt.Errorf("stream poll interval must be positive")
	}
	if c.Stream.HeartbeatInterval <= 0 {
		return fmt.Errorf("stream heartbeat interval must be positive")
	}
	return nil
}
