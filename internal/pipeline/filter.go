// File: internal/pipeline/filter.go
package pipeline

import (
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/logward/logward/internal/models"
	"github.com/logward/logward/pkg/utils"
)

// Filter rejection reasons
const (
	FilterEnvironment = "environment"
	FilterRateLimit   = "rate_limit"
	FilterPredicate   = "predicate"
)

// PredicateFunc is a user-supplied acceptance predicate. Returning an
// error is treated as acceptance (fail-open): a broken custom filter
// must not be able to block all logging.
type PredicateFunc func(record *models.LogRecord) (bool, error)

// namedPredicate pairs a predicate with its registration name for logs
type namedPredicate struct {
	name string
	fn   PredicateFunc
}

// FilterChain accepts or rejects an event before any side effect
// occurs. Checks run in a fixed order: environment allow-list, rate
// limiter, then user predicates in registration order; the first hard
// rejection short-circuits.
type FilterChain struct {
	mu         sync.RWMutex
	allowedEnv map[string]struct{}
	limiter    *rate.Limiter
	predicates []namedPredicate
	logger     *logrus.Entry
}

// FilterChainConfig configures the built-in checks
type FilterChainConfig struct {
	// AllowedEnvironments is the environment allow-list; empty allows
	// every environment.
	AllowedEnvironments []string

	// RateLimitPerMinute caps pipeline throughput; 0 disables the
	// limiter.
	RateLimitPerMinute int
}

// NewFilterChain creates a filter chain
func NewFilterChain(cfg FilterChainConfig) *FilterChain {
	fc := &FilterChain{
		logger: utils.GetLogger().WithField("component", "filter_chain"),
	}

	if len(cfg.AllowedEnvironments) > 0 {
		fc.allowedEnv = make(map[string]struct{}, len(cfg.AllowedEnvironments))
		for _, env := range cfg.AllowedEnvironments {
			fc.allowedEnv[env] = struct{}{}
		}
	}

	if cfg.RateLimitPerMinute > 0 {
		perSecond := rate.Limit(float64(cfg.RateLimitPerMinute) / 60.0)
		fc.limiter = rate.NewLimiter(perSecond, cfg.RateLimitPerMinute)
	}

	return fc
}

// AddPredicate registers a user-supplied predicate under a name.
func (fc *FilterChain) AddPredicate(name string, fn PredicateFunc) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.predicates = append(fc.predicates, namedPredicate{name: name, fn: fn})
}

// ShouldProcess reports whether the event passes every filter. On
// rejection, reason names the check that fired.
func (fc *FilterChain) ShouldProcess(record *models.LogRecord) (bool, string) {
	fc.mu.RLock()
	defer fc.mu.RUnlock()

	if fc.allowedEnv != nil {
		if _, ok := fc.allowedEnv[record.Environment]; !ok {
			return false, FilterEnvironment
		}
	}

	if fc.limiter != nil && !fc.limiter.Allow() {
		return false, FilterRateLimit
	}

	for _, p := range fc.predicates {
		ok, err := p.fn(record)
		if err != nil {
			// Fail-open: a throwing predicate counts as passed.
			fc.logger.WithFields(logrus.Fields{
				"predicate": p.name,
				"error":     err.Error(),
			}).Warn("Filter predicate failed, treating as passed")
			continue
		}
		if !ok {
			return false, FilterPredicate + ":" + p.name
		}
	}

	return true, ""
}
