// File: internal/stream/broker.go
package stream

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/logward/logward/internal/metrics"
	"github.com/logward/logward/internal/models"
	"github.com/logward/logward/internal/storage"
	"github.com/logward/logward/pkg/utils"
)

// Sink is the transport half of a subscriber connection. A Send error
// means the transport is broken and the session must close.
type Sink interface {
	Send(event Event) error
}

// SubscribeOptions are the per-connection filters and flags
type SubscribeOptions struct {
	Levels        []models.Level
	Channel       string
	Search        string
	UserID        string
	Environment   string
	Since         string // absolute RFC3339 or relative ("30m", "2h", "1d")
	IncludeRecent bool
}

// BrokerConfig holds stream broker configuration
type BrokerConfig struct {
	HeartbeatInterval time.Duration
	StatsInterval     time.Duration
	PollInterval      time.Duration
	MaxSessionTime    time.Duration
	ReplayLimit       int
	PollBatchSize     int
}

// BrokerStats provides broker statistics
type BrokerStats struct {
	ActiveSubscribers int   `json:"active_subscribers"`
	TotalSessions     int64 `json:"total_sessions"`
}

// Broker manages live subscribers. Each subscriber runs a blocking
// poll loop over the persistence store using a monotonic id cursor;
// there is no push path from ingestion into active streams, so
// stream visibility lags ingestion by at most one poll interval.
type Broker struct {
	store  storage.Store
	config BrokerConfig
	logger *logrus.Entry

	mu            sync.Mutex
	active        int
	totalSessions int64

	metricsManager *metrics.Manager
}

// NewBroker creates a stream broker
func NewBroker(store storage.Store, config BrokerConfig) *Broker {
	if config.HeartbeatInterval <= 0 {
		config.HeartbeatInterval = 30 * time.Second
	}
	if config.StatsInterval <= 0 {
		config.StatsInterval = 120 * time.Second
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 2 * time.Second
	}
	if config.MaxSessionTime <= 0 {
		config.MaxSessionTime = time.Hour
	}
	if config.ReplayLimit <= 0 {
		config.ReplayLimit = 50
	}
	if config.PollBatchSize <= 0 {
		config.PollBatchSize = 200
	}

	return &Broker{
		store:  store,
		config: config,
		logger: utils.GetLogger().WithField("component", "broker"),
	}
}

// SetMetricsManager attaches a metrics manager
func (b *Broker) SetMetricsManager(mm *metrics.Manager) {
	b.metricsManager = mm
}

// GetStats returns broker statistics
func (b *Broker) GetStats() *BrokerStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return &BrokerStats{
		ActiveSubscribers: b.active,
		TotalSessions:     b.totalSessions,
	}
}

// Subscribe runs a subscriber session: optional replay of recent
// matching records, then a live poll loop with heartbeats and periodic
// statistics, until the context is cancelled, the session hits its
// maximum duration, or the sink breaks.
func (b *Broker) Subscribe(ctx context.Context, sink Sink, opts SubscribeOptions) error {
	subscriberID := utils.NewSubscriberID()
	start := time.Now()

	b.subscriberStarted()
	defer b.subscriberFinished(start)

	log := b.logger.WithField("subscriber_id", subscriberID)
	log.Info("Stream subscriber connected")

	filter, err := b.buildFilter(opts)
	if err != nil {
		b.emit(sink, Event{
			Type:      TypeError,
			Timestamp: time.Now().UTC(),
			Message:   err.Error(),
		})
		return err
	}

	if err := b.emit(sink, Event{
		Type:         TypeConnected,
		Timestamp:    time.Now().UTC(),
		SubscriberID: subscriberID,
	}); err != nil {
		return err
	}

	cursor, err := b.replay(ctx, sink, filter, opts.IncludeRecent)
	if err != nil {
		log.WithField("error", err.Error()).Info("Stream subscriber closed during replay")
		return err
	}

	err = b.live(ctx, sink, log, filter, subscriberID, cursor, start)
	log.WithFields(logrus.Fields{
		"duration": time.Since(start).String(),
	}).Info("Stream subscriber disconnected")
	return err
}

// buildFilter resolves the connection options into a record filter.
func (b *Broker) buildFilter(opts SubscribeOptions) (models.RecordFilter, error) {
	filter := models.RecordFilter{
		Levels:      opts.Levels,
		Channel:     opts.Channel,
		Search:      opts.Search,
		UserID:      opts.UserID,
		Environment: opts.Environment,
	}

	if opts.Since != "" {
		since, err := models.ResolveSince(opts.Since, time.Now().UTC())
		if err != nil {
			return filter, utils.NewAppError(utils.ErrCodeValidation, "Invalid since parameter", err.Error())
		}
		filter.Since = &since
	}

	return filter, nil
}

// replay emits the most recent matching records oldest-first and
// returns the starting cursor: the max id emitted, or the store's
// current max id when nothing was replayed.
func (b *Broker) replay(ctx context.Context, sink Sink, filter models.RecordFilter, includeRecent bool) (int64, error) {
	cursor, err := b.currentMaxID(ctx)
	if err != nil {
		b.logger.WithField("error", err.Error()).Warn("Failed to resolve stream cursor, starting at zero")
		cursor = 0
	}

	if !includeRecent {
		return cursor, nil
	}

	recentFilter := filter
	recentFilter.Limit = b.config.ReplayLimit

	records, err := b.store.QueryRecords(ctx, recentFilter)
	if err != nil {
		// Degraded start: skip replay, stream from the current cursor.
		b.logger.WithField("error", err.Error()).Warn("Replay query failed, skipping replay")
		return cursor, nil
	}

	// Listing order is newest-first; emit oldest-first.
	for i := len(records) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return cursor, err
		}
		record := records[i]
		if err := b.emit(sink, NewLogEvent(record)); err != nil {
			return cursor, err
		}
		if record.ID > cursor {
			cursor = record.ID
		}
	}

	return cursor, nil
}

// live is the subscriber poll loop
func (b *Broker) live(ctx context.Context, sink Sink, log *logrus.Entry, filter models.RecordFilter, subscriberID string, cursor int64, start time.Time) error {
	deadline := start.Add(b.config.MaxSessionTime)
	lastHeartbeat := start
	lastStats := start

	for {
		if err := ctx.Err(); err != nil {
			b.emit(sink, Event{
				Type:      TypeDisconnect,
				Timestamp: time.Now().UTC(),
				Message:   "client disconnected",
			})
			return nil
		}

		now := time.Now()
		if now.After(deadline) {
			b.emit(sink, Event{
				Type:      TypeDisconnect,
				Timestamp: now.UTC(),
				Message:   "maximum session duration reached",
			})
			return nil
		}

		if now.Sub(lastHeartbeat) >= b.config.HeartbeatInterval {
			lastHeartbeat = now
			if err := b.emit(sink, Event{
				Type:         TypeHeartbeat,
				Timestamp:    now.UTC(),
				SubscriberID: subscriberID,
				Cursor:       cursor,
				Uptime:       now.Sub(start).Truncate(time.Second).String(),
			}); err != nil {
				return err
			}
		}

		next, err := b.pollOnce(ctx, sink, filter, cursor)
		if err != nil {
			if isTransportError(err) {
				return err
			}
			// Query failures are transient: log and keep the session.
			log.WithField("error", err.Error()).Warn("Stream poll query failed")
		} else {
			cursor = next
		}

		if now.Sub(lastStats) >= b.config.StatsInterval {
			lastStats = now
			if stats, err := b.store.GetStats(ctx); err == nil {
				if err := b.emit(sink, Event{
					Type:      TypeStatistics,
					Timestamp: now.UTC(),
					Stats:     stats,
				}); err != nil {
					return err
				}
			}
		}

		select {
		case <-ctx.Done():
			// Loop once more to emit the disconnect event.
		case <-time.After(b.config.PollInterval):
		}
	}
}

// pollOnce queries records past the cursor and emits them in ascending
// id order, returning the advanced cursor.
func (b *Broker) pollOnce(ctx context.Context, sink Sink, filter models.RecordFilter, cursor int64) (int64, error) {
	pollFilter := filter
	pollFilter.AfterID = cursor
	pollFilter.Limit = b.config.PollBatchSize

	records, err := b.store.QueryRecords(ctx, pollFilter)
	if err != nil {
		return cursor, err
	}

	for _, record := range records {
		if err := b.emit(sink, NewLogEvent(record)); err != nil {
			return cursor, &transportError{err}
		}
		if record.ID > cursor {
			cursor = record.ID
		}
	}

	return cursor, nil
}

func (b *Broker) currentMaxID(ctx context.Context) (int64, error) {
	stats, err := b.store.GetStats(ctx)
	if err != nil {
		return 0, err
	}
	return stats.LatestID, nil
}

func (b *Broker) emit(sink Sink, event Event) error {
	err := sink.Send(event)
	if err == nil && b.metricsManager != nil {
		b.metricsManager.GetPrometheusMetrics().RecordStreamEvent(string(event.Type))
	}
	return err
}

func (b *Broker) subscriberStarted() {
	b.mu.Lock()
	b.active++
	b.totalSessions++
	b.mu.Unlock()

	if b.metricsManager != nil {
		pm := b.metricsManager.GetPrometheusMetrics()
		pm.StreamSubscribers.Inc()
		pm.StreamSessionsTotal.Inc()
	}
}

func (b *Broker) subscriberFinished(start time.Time) {
	b.mu.Lock()
	b.active--
	b.mu.Unlock()

	if b.metricsManager != nil {
		pm := b.metricsManager.GetPrometheusMetrics()
		pm.StreamSubscribers.Dec()
		pm.StreamSessionDuration.Observe(time.Since(start).Seconds())
	}
}

// transportError marks a sink write failure, which must terminate the
// session, unlike a transient query failure.
type transportError struct {
	err error
}

func (e *transportError) Error() string { return e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

func isTransportError(err error) bool {
	_, ok := err.(*transportError)
	return ok
}
