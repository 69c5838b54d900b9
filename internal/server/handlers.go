// File: internal/server/handlers.go
package server

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/logward/logward/internal/models"
	"github.com/logward/logward/internal/stream"
)

const (
	defaultPageSize = 50
	maxPageSize     = 1000
)

// handleIngestLog accepts a log record and hands it to the pipeline.
// Ingestion is fire and forget: a rejected record still gets a 202,
// the outcome is reported in the body.
func (s *Server) handleIngestLog(w http.ResponseWriter, r *http.Request) {
	var record models.LogRecord
	if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	if record.Message == "" {
		s.writeError(w, http.StatusBadRequest, "Message is required")
		return
	}

	result := s.pipeline.Ingest(r.Context(), &record)
	s.writeJSON(w, http.StatusAccepted, result)
}

// handleListLogs returns stored records with filters and pagination
func (s *Server) handleListLogs(w http.ResponseWriter, r *http.Request) {
	filter, err := parseRecordFilter(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid query parameters", err.Error())
		return
	}

	records, err := s.store.QueryRecords(r.Context(), filter)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to query records", err.Error())
		return
	}

	total, err := s.store.CountRecords(r.Context(), filter)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to count records", err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"records": records,
		"total":   total,
		"limit":   filter.Limit,
		"offset":  filter.Offset,
	})
}

// handleGetLog returns a single record by id
func (s *Server) handleGetLog(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid record id")
		return
	}

	record, err := s.store.GetRecord(r.Context(), id)
	if err != nil || record == nil {
		s.writeError(w, http.StatusNotFound, "Record not found")
		return
	}

	s.writeJSON(w, http.StatusOK, record)
}

// handleExportLogs streams matching records as NDJSON or CSV
func (s *Server) handleExportLogs(w http.ResponseWriter, r *http.Request) {
	filter, err := parseRecordFilter(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid query parameters", err.Error())
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "ndjson"
	}

	records, err := s.store.QueryRecords(r.Context(), filter)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to query records", err.Error())
		return
	}

	timestamp := time.Now().UTC().Format("20060102-150405")

	switch format {
	case "ndjson":
		w.Header().Set("Content-Type", "application/x-ndjson")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=logs-%s.ndjson", timestamp))
		encoder := json.NewEncoder(w)
		for _, record := range records {
			if err := encoder.Encode(record); err != nil {
				return
			}
		}

	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=logs-%s.csv", timestamp))
		writer := csv.NewWriter(w)
		writer.Write([]string{"id", "level", "message", "channel", "context", "created_at"})
		for _, record := range records {
			contextJSON := ""
			if len(record.Context) > 0 {
				if raw, err := json.Marshal(record.Context); err == nil {
					contextJSON = string(raw)
				}
			}
			writer.Write([]string{
				strconv.FormatInt(record.ID, 10),
				string(record.Level),
				record.Message,
				record.Channel,
				contextJSON,
				record.CreatedAt.Format(time.RFC3339),
			})
		}
		writer.Flush()

	default:
		s.writeError(w, http.StatusBadRequest, "Unsupported export format", format)
	}
}

// handleLogStats returns storage statistics
func (s *Server) handleLogStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.GetStats(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to get statistics", err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, stats)
}

// handleStreamLogs upgrades the request to a Server-Sent Events
// session backed by the stream broker.
func (s *Server) handleStreamLogs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	opts := stream.SubscribeOptions{
		Channel:       query.Get("channel"),
		Search:        query.Get("search"),
		UserID:        query.Get("user_id"),
		Environment:   query.Get("environment"),
		Since:         query.Get("since"),
		IncludeRecent: query.Get("include_recent") == "true",
	}

	if raw := query.Get("level"); raw != "" {
		levels, err := parseLevels(raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "Invalid level parameter", err.Error())
			return
		}
		opts.Levels = levels
	}

	sink, err := stream.NewSSESink(w)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}

	// Blocks for the lifetime of the subscription.
	s.broker.Subscribe(r.Context(), sink, opts)
}

// handleListChannels returns all channels with their settings
func (s *Server) handleListChannels(w http.ResponseWriter, r *http.Request) {
	type channelView struct {
		Name         string                   `json:"name"`
		Available    bool                     `json:"available"`
		Requirements []notifyFieldRequirement `json:"requirements,omitempty"`
		Setting      interface{}              `json:"setting"`
	}

	channels := make([]channelView, 0)
	for _, ch := range s.registry.All() {
		setting, _ := s.dispatcher.GetSetting(ch.Name())
		reqs := make([]notifyFieldRequirement, 0)
		for _, req := range ch.ConfigurationRequirements() {
			reqs = append(reqs, notifyFieldRequirement{
				Name:        req.Name,
				Type:        req.Type,
				Required:    req.Required,
				Description: req.Description,
			})
		}
		channels = append(channels, channelView{
			Name:         ch.Name(),
			Available:    ch.IsEnabled(),
			Requirements: reqs,
			Setting:      setting,
		})
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{"channels": channels})
}

type notifyFieldRequirement struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Required    bool   `json:"required"`
	Description string `json:"description"`
}

// handleGetChannel returns one channel's delivery settings
func (s *Server) handleGetChannel(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	if _, ok := s.registry.Get(name); !ok {
		s.writeError(w, http.StatusNotFound, "Unknown channel", name)
		return
	}

	setting, _ := s.dispatcher.GetSetting(name)
	s.writeJSON(w, http.StatusOK, setting)
}

// handleUpdateChannel replaces a channel's delivery settings. Counters
// are preserved across updates.
func (s *Server) handleUpdateChannel(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	if _, ok := s.registry.Get(name); !ok {
		s.writeError(w, http.StatusNotFound, "Unknown channel", name)
		return
	}

	var setting models.ChannelSetting
	if err := json.NewDecoder(r.Body).Decode(&setting); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	setting.Channel = name

	for _, level := range setting.Conditions.Levels {
		if !level.IsValid() {
			s.writeError(w, http.StatusBadRequest, "Invalid notification level", string(level))
			return
		}
	}

	if err := s.dispatcher.UpdateSetting(&setting); err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to update channel", err.Error())
		return
	}

	updated, _ := s.dispatcher.GetSetting(name)
	s.writeJSON(w, http.StatusOK, updated)
}

// handleResetChannel restores a channel's default settings
func (s *Server) handleResetChannel(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	if _, ok := s.registry.Get(name); !ok {
		s.writeError(w, http.StatusNotFound, "Unknown channel", name)
		return
	}

	if err := s.dispatcher.ResetSetting(name); err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to reset channel", err.Error())
		return
	}

	setting, _ := s.dispatcher.GetSetting(name)
	s.writeJSON(w, http.StatusOK, setting)
}

// handleTestChannel verifies a channel's connectivity
func (s *Server) handleTestChannel(w http.ResponseWriter, r *http.Request) {
	var request struct {
		Channel string `json:"channel"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	ch, ok := s.registry.Get(request.Channel)
	if !ok {
		s.writeError(w, http.StatusNotFound, "Unknown channel", request.Channel)
		return
	}

	result := ch.TestConnection(r.Context())
	status := http.StatusOK
	if !result.Success {
		status = http.StatusBadGateway
	}
	s.writeJSON(w, status, result)
}

// handlePurge deletes records older than the requested cutoff
func (s *Server) handlePurge(w http.ResponseWriter, r *http.Request) {
	var request struct {
		OlderThanDays int      `json:"older_than_days"`
		Levels        []string `json:"levels,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	if request.OlderThanDays < 1 {
		s.writeError(w, http.StatusBadRequest, "older_than_days must be at least 1")
		return
	}

	var levels []models.Level
	for _, raw := range request.Levels {
		level, ok := models.ParseLevel(raw)
		if !ok {
			s.writeError(w, http.StatusBadRequest, "Invalid level", raw)
			return
		}
		levels = append(levels, level)
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -request.OlderThanDays)
	deleted, err := s.store.PurgeOlderThan(r.Context(), cutoff, levels)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Purge failed", err.Error())
		return
	}

	s.logger.WithFields(logrus.Fields{
		"deleted": deleted,
		"cutoff":  cutoff.Format(time.RFC3339),
	}).Info("Purged log records")
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"deleted": deleted,
		"cutoff":  cutoff,
	})
}

// handleSystemStats aggregates statistics across components
func (s *Server) handleSystemStats(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"pipeline":      s.pipeline.GetStats(),
		"notifications": s.dispatcher.GetStats(),
		"stream":        s.broker.GetStats(),
		"uptime":        time.Since(s.startTime).String(),
		"timestamp":     time.Now().UTC(),
	}

	if stats, err := s.store.GetStats(r.Context()); err == nil {
		response["storage"] = stats
	}

	s.writeJSON(w, http.StatusOK, response)
}

// handleHealth returns basic health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	code := http.StatusOK
	if err := s.store.Ping(); err != nil {
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	s.writeJSON(w, code, map[string]interface{}{
		"status":    status,
		"version":   s.version,
		"uptime":    time.Since(s.startTime).String(),
		"timestamp": time.Now().UTC(),
	})
}

// handleDetailedHealth returns per-component health
func (s *Server) handleDetailedHealth(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	storageHealth := s.store.GetHealth()
	pipelineHealth := s.pipeline.GetHealth()

	memoryPressure := false
	if s.metricsManager != nil {
		memoryPressure = s.metricsManager.MemoryPressure()
	}

	healthy := storageHealth.Healthy && pipelineHealth.Healthy && !memoryPressure
	code := http.StatusOK
	if !healthy {
		code = http.StatusServiceUnavailable
	}

	s.writeJSON(w, code, map[string]interface{}{
		"healthy":         healthy,
		"storage":         storageHealth,
		"pipeline":        pipelineHealth,
		"stream":          s.broker.GetStats(),
		"memory_pressure": memoryPressure,
		"goroutines":      runtime.NumGoroutine(),
		"heap_bytes":      memStats.HeapAlloc,
		"version":         s.version,
		"uptime":          time.Since(s.startTime).String(),
		"timestamp":       time.Now().UTC(),
	})
}

// parseRecordFilter builds a record filter from query parameters
func parseRecordFilter(r *http.Request) (models.RecordFilter, error) {
	query := r.URL.Query()
	filter := models.RecordFilter{
		Channel:     query.Get("channel"),
		Search:      query.Get("search"),
		UserID:      query.Get("user_id"),
		Environment: query.Get("environment"),
		Limit:       defaultPageSize,
	}

	if raw := query.Get("level"); raw != "" {
		levels, err := parseLevels(raw)
		if err != nil {
			return filter, err
		}
		filter.Levels = levels
	}

	now := time.Now().UTC()
	if raw := query.Get("since"); raw != "" {
		since, err := models.ResolveSince(raw, now)
		if err != nil {
			return filter, err
		}
		filter.Since = &since
	}
	if raw := query.Get("until"); raw != "" {
		until, err := models.ResolveSince(raw, now)
		if err != nil {
			return filter, err
		}
		filter.Until = &until
	}

	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return filter, fmt.Errorf("invalid limit %q", raw)
		}
		if limit > maxPageSize {
			limit = maxPageSize
		}
		filter.Limit = limit
	}
	if raw := query.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return filter, fmt.Errorf("invalid offset %q", raw)
		}
		filter.Offset = offset
	}

	if query.Get("order") == "asc" {
		filter.AscendingByID = true
	}

	return filter, nil
}

// parseLevels parses a comma separated level list
func parseLevels(raw string) ([]models.Level, error) {
	var levels []models.Level
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		level, ok := models.ParseLevel(part)
		if !ok {
			return nil, fmt.Errorf("unknown level %q", part)
		}
		levels = append(levels, level)
	}
	return levels, nil
}
