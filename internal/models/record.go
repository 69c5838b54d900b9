package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultChannel is the source tag assigned to records that arrive
// without one.
const DefaultChannel = "default"

// LogRecord represents a single persisted log occurrence
type LogRecord struct {
	ID            int64                  `json:"id" db:"id"`
	Level         Level                  `json:"level" db:"level"`
	Channel       string                 `json:"channel" db:"channel"`
	Message       string                 `json:"message" db:"message"`
	Context       map[string]interface{} `json:"context,omitempty" db:"context"`
	Extra         map[string]interface{} `json:"extra,omitempty" db:"extra"`
	Environment   string                 `json:"environment" db:"environment"`
	UserID        string                 `json:"user_id,omitempty" db:"user_id"`
	SessionID     string                 `json:"session_id,omitempty" db:"session_id"`
	RequestID     string                 `json:"request_id,omitempty" db:"request_id"`
	IPAddress     string                 `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent     string                 `json:"user_agent,omitempty" db:"user_agent"`
	URL           string                 `json:"url,omitempty" db:"url"`
	Method        string                 `json:"method,omitempty" db:"method"`
	ExecutionTime float64                `json:"execution_time,omitempty" db:"execution_time"`
	MemoryUsage   int64                  `json:"memory_usage,omitempty" db:"memory_usage"`
	FilePath      string                 `json:"file_path,omitempty" db:"file_path"`
	LineNumber    int                    `json:"line_number,omitempty" db:"line_number"`
	StackTrace    string                 `json:"stack_trace,omitempty" db:"stack_trace"`
	Tags          []string               `json:"tags,omitempty" db:"tags"`
	CreatedAt     time.Time              `json:"created_at" db:"created_at"`
}

// Field returns a record field by name for condition evaluation.
// Known schema fields resolve directly; dotted paths descend into the
// context map first, then extra (e.g. "context.order.id").
func (r *LogRecord) Field(path string) (interface{}, bool) {
	switch path {
	case "level":
		return string(r.Level), true
	case "channel":
		return r.Channel, true
	case "message":
		return r.Message, true
	case "environment":
		return r.Environment, true
	case "user_id":
		return r.UserID, true
	case "session_id":
		return r.SessionID, true
	case "request_id":
		return r.RequestID, true
	case "ip_address":
		return r.IPAddress, true
	case "user_agent":
		return r.UserAgent, true
	case "url":
		return r.URL, true
	case "method":
		return r.Method, true
	case "file_path":
		return r.FilePath, true
	}

	parts := strings.Split(path, ".")
	if parts[0] == "context" {
		return lookupPath(r.Context, parts[1:])
	}
	if parts[0] == "extra" {
		return lookupPath(r.Extra, parts[1:])
	}
	if v, ok := lookupPath(r.Context, parts); ok {
		return v, true
	}
	return lookupPath(r.Extra, parts)
}

func lookupPath(m map[string]interface{}, parts []string) (interface{}, bool) {
	if len(parts) == 0 || m == nil {
		return nil, false
	}
	v, ok := m[parts[0]]
	if !ok {
		return nil, false
	}
	if len(parts) == 1 {
		return v, true
	}
	nested, ok := v.(map[string]interface{})
	if !ok {
		return nil, false
	}
	return lookupPath(nested, parts[1:])
}

// RecordFilter describes a query over stored records
type RecordFilter struct {
	Levels      []Level    `json:"levels,omitempty"`
	Channel     string     `json:"channel,omitempty"`
	Search      string     `json:"search,omitempty"`
	UserID      string     `json:"user_id,omitempty"`
	Environment string     `json:"environment,omitempty"`
	Since       *time.Time `json:"since,omitempty"`
	Until       *time.Time `json:"until,omitempty"`
	AfterID     int64      `json:"after_id,omitempty"`
	Limit       int        `json:"limit,omitempty"`
	Offset      int        `json:"offset,omitempty"`

	// AscendingByID orders results by id ascending instead of the
	// default created_at descending. Cursor queries (AfterID > 0)
	// always order by id ascending.
	AscendingByID bool `json:"-"`
}

// Matches reports whether a record satisfies the filter dimensions.
// Used by the stream broker to pre-check replayed records in tests and
// by in-memory stores.
func (f *RecordFilter) Matches(r *LogRecord) bool {
	if len(f.Levels) > 0 {
		found := false
		for _, l := range f.Levels {
			if r.Level == l {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Channel != "" && r.Channel != f.Channel {
		return false
	}
	if f.UserID != "" && r.UserID != f.UserID {
		return false
	}
	if f.Environment != "" && r.Environment != f.Environment {
		return false
	}
	if f.Search != "" && !strings.Contains(strings.ToLower(r.Message), strings.ToLower(f.Search)) {
		return false
	}
	if f.Since != nil && r.CreatedAt.Before(*f.Since) {
		return false
	}
	if f.Until != nil && r.CreatedAt.After(*f.Until) {
		return false
	}
	if f.AfterID > 0 && r.ID <= f.AfterID {
		return false
	}
	return true
}

// ParseRelativeWindow resolves a relative time string such as "30m",
// "2h" or "1d" to an absolute lower bound relative to now.
func ParseRelativeWindow(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return time.Time{}, fmt.Errorf("invalid relative window %q", s)
	}

	unit := s[len(s)-1]
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n <= 0 {
		return time.Time{}, fmt.Errorf("invalid relative window %q", s)
	}

	switch unit {
	case 'm':
		return now.Add(-time.Duration(n) * time.Minute), nil
	case 'h':
		return now.Add(-time.Duration(n) * time.Hour), nil
	case 'd':
		return now.Add(-time.Duration(n) * 24 * time.Hour), nil
	default:
		return time.Time{}, fmt.Errorf("invalid relative window unit %q", s)
	}
}

// ResolveSince interprets a since parameter that may be either an
// absolute RFC3339 timestamp or a relative window.
func ResolveSince(s string, now time.Time) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return ParseRelativeWindow(s, now)
}
