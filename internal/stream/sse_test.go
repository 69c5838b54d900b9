// File: internal/stream/sse_test.go
package stream

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logward/logward/internal/models"
)

func TestSSESinkHeaders(t *testing.T) {
	rec := httptest.NewRecorder()

	_, err := NewSSESink(rec)
	require.NoError(t, err)

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
}

func TestSSESinkFrameFormat(t *testing.T) {
	rec := httptest.NewRecorder()
	sink, err := NewSSESink(rec)
	require.NoError(t, err)

	event := NewLogEvent(&models.LogRecord{
		ID:        7,
		Level:     models.LevelError,
		Channel:   "app",
		Message:   "streamed event",
		CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, sink.Send(event))

	body := rec.Body.String()
	require.True(t, strings.HasPrefix(body, "data: "))
	require.True(t, strings.HasSuffix(body, "\n\n"))

	var decoded Event
	payload := strings.TrimSuffix(strings.TrimPrefix(body, "data: "), "\n\n")
	require.NoError(t, json.Unmarshal([]byte(payload), &decoded))
	assert.Equal(t, TypeLog, decoded.Type)
	require.NotNil(t, decoded.Record)
	assert.Equal(t, int64(7), decoded.Record.ID)
	assert.Equal(t, "streamed event", decoded.Record.Message)
}

func TestNewLogEventProjection(t *testing.T) {
	record := &models.LogRecord{
		ID:            3,
		Level:         models.LevelWarning,
		Channel:       "jobs",
		Message:       "queue backlog",
		Environment:   "production",
		UserID:        "user-1",
		Context:       map[string]interface{}{"queue": "emails"},
		ExecutionTime: 1.5,
		CreatedAt:     time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC),
	}

	event := NewLogEvent(record)

	assert.Equal(t, TypeLog, event.Type)
	require.NotNil(t, event.Record)
	assert.Equal(t, int64(3), event.Record.ID)
	assert.Equal(t, models.LevelWarning, event.Record.Level)
	assert.Equal(t, "jobs", event.Record.Channel)
	assert.Equal(t, record.CreatedAt, event.Record.Timestamp)
	assert.Equal(t, "emails", event.Record.Context["queue"])
}
