// File: internal/notify/conditions.go
package notify

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/logward/logward/internal/models"
)

// EvaluateCondition evaluates a single custom condition against a
// record. Field values resolve through the record's typed accessor,
// with dotted-path lookup into context/extra for unknown fields.
// An unknown operator passes, so a misconfigured condition cannot
// silence a channel entirely.
func EvaluateCondition(cond models.Condition, record *models.LogRecord) bool {
	raw, ok := record.Field(cond.Field)
	if !ok {
		return false
	}
	value := stringify(raw)

	switch cond.Operator {
	case models.OpEquals:
		return value == cond.Value
	case models.OpNotEquals:
		return value != cond.Value
	case models.OpContains:
		return strings.Contains(value, cond.Value)
	case models.OpNotContains:
		return !strings.Contains(value, cond.Value)
	case models.OpStartsWith:
		return strings.HasPrefix(value, cond.Value)
	case models.OpEndsWith:
		return strings.HasSuffix(value, cond.Value)
	case models.OpRegex:
		re, err := regexp.Compile(cond.Value)
		if err != nil {
			return false
		}
		return re.MatchString(value)
	default:
		return true
	}
}

// EvaluateConditions evaluates all custom conditions; all must pass
func EvaluateConditions(conds []models.Condition, record *models.LogRecord) bool {
	for _, cond := range conds {
		if !EvaluateCondition(cond, record) {
			return false
		}
	}
	return true
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}
