// File: internal/stream/sse.go
package stream

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/logward/logward/pkg/utils"
)

// SSESink writes events to an HTTP response as Server-Sent Events.
type SSESink struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewSSESink prepares the response for event streaming. The response
// writer must support flushing; buffered writers cannot carry a live
// stream.
func NewSSESink(w http.ResponseWriter) (*SSESink, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, utils.NewAppError(utils.ErrCodeInternal, "Streaming unsupported", "response writer does not implement http.Flusher")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &SSESink{w: w, flusher: flusher}, nil
}

// Send serializes the event as a single SSE data frame and flushes it
func (s *SSESink) Send(event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeInternal, "Failed to encode stream event", err.Error())
	}

	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
