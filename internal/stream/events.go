// File: internal/stream/events.go
package stream

import (
	"time"

	"github.com/logward/logward/internal/models"
	"github.com/logward/logward/internal/storage"
)

// EventType identifies a stream event
type EventType string

const (
	TypeConnected  EventType = "connected"
	TypeLog        EventType = "log"
	TypeHeartbeat  EventType = "heartbeat"
	TypeStatistics EventType = "statistics"
	TypeStatus     EventType = "status"
	TypeError      EventType = "error"
	TypeDisconnect EventType = "disconnect"
)

// Event is the typed envelope emitted to stream subscribers
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	// Log payload
	Record *LogPayload `json:"record,omitempty"`

	// Statistics payload
	Stats *storage.StorageStats `json:"stats,omitempty"`

	// Heartbeat / status metadata
	SubscriberID string `json:"subscriber_id,omitempty"`
	Cursor       int64  `json:"cursor,omitempty"`
	Uptime       string `json:"uptime,omitempty"`

	// Human-readable detail for status/error/disconnect events
	Message string `json:"message,omitempty"`
}

// LogPayload is the LogRecord projection carried by log events
type LogPayload struct {
	ID            int64                  `json:"id"`
	Level         models.Level           `json:"level"`
	Message       string                 `json:"message"`
	Channel       string                 `json:"channel"`
	Timestamp     time.Time              `json:"timestamp"`
	Context       map[string]interface{} `json:"context,omitempty"`
	UserID        string                 `json:"user_id,omitempty"`
	Environment   string                 `json:"environment"`
	URL           string                 `json:"url,omitempty"`
	IPAddress     string                 `json:"ip_address,omitempty"`
	ExecutionTime float64                `json:"execution_time,omitempty"`
	MemoryUsage   int64                  `json:"memory_usage,omitempty"`
}

// NewLogEvent builds a log event from a stored record
func NewLogEvent(record *models.LogRecord) Event {
	return Event{
		Type:      TypeLog,
		Timestamp: time.Now().UTC(),
		Record: &LogPayload{
			ID:            record.ID,
			Level:         record.Level,
			Message:       record.Message,
			Channel:       record.Channel,
			Timestamp:     record.CreatedAt,
			Context:       record.Context,
			UserID:        record.UserID,
			Environment:   record.Environment,
			URL:           record.URL,
			IPAddress:     record.IPAddress,
			ExecutionTime: record.ExecutionTime,
			MemoryUsage:   record.MemoryUsage,
		},
	}
}
