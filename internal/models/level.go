package models

import "strings"

// Level is a log severity. Levels are ordered by descending urgency:
// emergency is the most severe, debug the least.
type Level string

const (
	LevelEmergency Level = "emergency"
	LevelAlert     Level = "alert"
	LevelCritical  Level = "critical"
	LevelError     Level = "error"
	LevelWarning   Level = "warning"
	LevelNotice    Level = "notice"
	LevelInfo      Level = "info"
	LevelDebug     Level = "debug"
)

var levelSeverity = map[Level]int{
	LevelEmergency: 0,
	LevelAlert:     1,
	LevelCritical:  2,
	LevelError:     3,
	LevelWarning:   4,
	LevelNotice:    5,
	LevelInfo:      6,
	LevelDebug:     7,
}

// AllLevels lists every valid level, most urgent first.
var AllLevels = []Level{
	LevelEmergency, LevelAlert, LevelCritical, LevelError,
	LevelWarning, LevelNotice, LevelInfo, LevelDebug,
}

// DefaultNotificationLevels are the levels that trigger notification
// delivery when a channel has no explicit level condition.
var DefaultNotificationLevels = []Level{
	LevelError, LevelCritical, LevelEmergency, LevelAlert,
}

// ParseLevel parses a level string, case-insensitively.
func ParseLevel(s string) (Level, bool) {
	l := Level(strings.ToLower(strings.TrimSpace(s)))
	_, ok := levelSeverity[l]
	return l, ok
}

// IsValid reports whether the level is one of the eight known severities.
func (l Level) IsValid() bool {
	_, ok := levelSeverity[l]
	return ok
}

// Severity returns the urgency rank of the level (0 = emergency, 7 = debug).
// Unknown levels rank after debug.
func (l Level) Severity() int {
	if rank, ok := levelSeverity[l]; ok {
		return rank
	}
	return len(levelSeverity)
}

func (l Level) String() string {
	return string(l)
}
