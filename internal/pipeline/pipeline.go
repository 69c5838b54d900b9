// File: internal/pipeline/pipeline.go
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/logward/logward/internal/metrics"
	"github.com/logward/logward/internal/models"
	"github.com/logward/logward/internal/notify"
	"github.com/logward/logward/internal/storage"
	"github.com/logward/logward/pkg/utils"
)

// IngestResult reports what happened to a submitted event. Ingestion
// is fire-and-forget: the pipeline never returns an error to the
// caller that produced the event.
type IngestResult struct {
	Accepted   bool                             `json:"accepted"`
	Reason     string                           `json:"reason,omitempty"`
	RecordID   int64                            `json:"record_id,omitempty"`
	Stored     bool                             `json:"stored"`
	Deliveries map[string]notify.DeliveryResult `json:"deliveries,omitempty"`
}

// PipelineStats provides ingestion statistics
type PipelineStats struct {
	TotalReceived     int64 `json:"total_received"`
	TotalAccepted     int64 `json:"total_accepted"`
	TotalDeduplicated int64 `json:"total_deduplicated"`
	TotalReentrant    int64 `json:"total_reentrant"`
	TotalInternal     int64 `json:"total_internal"`
	TotalFiltered     int64 `json:"total_filtered"`
	TotalStored       int64 `json:"total_stored"`
	StoreFailures     int64 `json:"store_failures"`
}

// PipelineHealth provides health information
type PipelineHealth struct {
	Healthy        bool `json:"healthy"`
	StorageHealthy bool `json:"storage_healthy"`
}

// Config holds pipeline configuration
type Config struct {
	DefaultEnvironment string
}

// Pipeline is the ingestion path: guard, filter chain, then fan-out to
// storage and notification channels.
type Pipeline struct {
	guard      *DeduplicationGuard
	filters    *FilterChain
	store      storage.Store
	dispatcher *notify.Dispatcher
	logger     *logrus.Entry

	defaultEnvironment string

	mu    sync.Mutex
	stats PipelineStats

	metricsManager *metrics.Manager
}

// New creates a pipeline
func New(guard *DeduplicationGuard, filters *FilterChain, store storage.Store, dispatcher *notify.Dispatcher, cfg Config) *Pipeline {
	env := cfg.DefaultEnvironment
	if env == "" {
		env = "production"
	}
	return &Pipeline{
		guard:              guard,
		filters:            filters,
		store:              store,
		dispatcher:         dispatcher,
		logger:             utils.GetLogger().WithField("component", "pipeline"),
		defaultEnvironment: env,
	}
}

// SetMetricsManager attaches a metrics manager
func (p *Pipeline) SetMetricsManager(mm *metrics.Manager) {
	p.metricsManager = mm
}

// Guard exposes the deduplication guard, for administrative reset.
func (p *Pipeline) Guard() *DeduplicationGuard {
	return p.guard
}

// Ingest runs a raw event through the pipeline. Storage failures are
// logged to the operational logger (never back through this pipeline)
// and do not stop notification dispatch.
func (p *Pipeline) Ingest(ctx context.Context, record *models.LogRecord) *IngestResult {
	start := time.Now()

	p.mu.Lock()
	p.stats.TotalReceived++
	p.mu.Unlock()

	p.normalize(record)

	proceed, reason, done := p.guard.Begin(record)
	if !proceed {
		p.recordGuardReject(reason)
		return &IngestResult{Accepted: false, Reason: reason}
	}
	defer done()

	if ok, filterReason := p.filters.ShouldProcess(record); !ok {
		p.mu.Lock()
		p.stats.TotalFiltered++
		p.mu.Unlock()
		if p.metricsManager != nil {
			p.metricsManager.GetPrometheusMetrics().RecordFiltered(filterReason)
		}
		return &IngestResult{Accepted: false, Reason: filterReason}
	}

	result := &IngestResult{Accepted: true}

	p.mu.Lock()
	p.stats.TotalAccepted++
	p.mu.Unlock()

	id, err := p.store.Append(ctx, record)
	if err != nil {
		// Fallback sink: the operational logger, outside this pipeline.
		p.logger.WithFields(logrus.Fields{
			"channel": record.Channel,
			"level":   string(record.Level),
			"error":   err.Error(),
		}).Error("Failed to store log record")

		p.mu.Lock()
		p.stats.StoreFailures++
		p.mu.Unlock()
	} else {
		result.Stored = true
		result.RecordID = id

		p.mu.Lock()
		p.stats.TotalStored++
		p.mu.Unlock()

		if p.metricsManager != nil {
			p.metricsManager.GetPrometheusMetrics().RecordsStoredTotal.Inc()
		}
	}

	if p.dispatcher != nil {
		result.Deliveries = p.dispatcher.Dispatch(ctx, record)
	}

	if p.metricsManager != nil {
		pm := p.metricsManager.GetPrometheusMetrics()
		pm.RecordIngested(string(record.Level), record.Channel)
		pm.IngestDuration.Observe(time.Since(start).Seconds())
	}

	return result
}

// normalize fills record defaults before processing
func (p *Pipeline) normalize(record *models.LogRecord) {
	if record.Channel == "" {
		record.Channel = models.DefaultChannel
	}
	if !record.Level.IsValid() {
		record.Level = models.LevelInfo
	}
	if record.Environment == "" {
		record.Environment = p.defaultEnvironment
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
}

func (p *Pipeline) recordGuardReject(reason string) {
	p.mu.Lock()
	switch reason {
	case GuardReentrant:
		p.stats.TotalReentrant++
	case GuardInternal:
		p.stats.TotalInternal++
	case GuardDuplicate:
		p.stats.TotalDeduplicated++
	}
	p.mu.Unlock()

	if p.metricsManager == nil {
		return
	}
	pm := p.metricsManager.GetPrometheusMetrics()
	switch reason {
	case GuardReentrant:
		pm.ReentrantDropsTotal.Inc()
	case GuardDuplicate:
		pm.RecordsDeduplicatedTotal.Inc()
	}
}

// GetStats returns pipeline statistics
func (p *Pipeline) GetStats() *PipelineStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	stats := p.stats
	return &stats
}

// GetHealth returns pipeline health
func (p *Pipeline) GetHealth() *PipelineHealth {
	storageHealthy := p.store.Ping() == nil
	return &PipelineHealth{
		Healthy:        storageHealthy,
		StorageHealthy: storageHealthy,
	}
}
