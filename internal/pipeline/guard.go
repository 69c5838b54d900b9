// File: internal/pipeline/guard.go
package pipeline

import (
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/logward/logward/internal/models"
)

// DefaultDedupCapacity is the bounded size of the fingerprint ring.
const DefaultDedupCapacity = 100

// InternalChannel is the channel name the pipeline reserves for its
// own operational records. Events tagged with it are never reprocessed,
// which breaks the self-logging feedback loop.
const InternalChannel = "logward"

// defaultInternalPatterns match messages produced by the pipeline's own
// components. A content-based loop breaker independent of the
// fingerprint cache.
var defaultInternalPatterns = []string{
	"logward.pipeline",
	"logward.dispatcher",
	"logward.broker",
}

// Guard decision reasons
const (
	GuardReentrant = "reentrant"
	GuardInternal  = "internal"
	GuardDuplicate = "duplicate"
)

// DeduplicationGuard suppresses duplicate events and events generated
// while another event is being processed. All state is process-wide
// and mutex-guarded; this is the one place in the pipeline requiring
// true mutual exclusion.
type DeduplicationGuard struct {
	mu sync.Mutex

	capacity int
	ring     []uint64
	seen     map[uint64]struct{}

	reentrant bool

	internalChannel  string
	internalPatterns []string
}

// NewDeduplicationGuard creates a guard with the given ring capacity.
func NewDeduplicationGuard(capacity int) *DeduplicationGuard {
	if capacity <= 0 {
		capacity = DefaultDedupCapacity
	}
	return &DeduplicationGuard{
		capacity:         capacity,
		ring:             make([]uint64, 0, capacity),
		seen:             make(map[uint64]struct{}, capacity),
		internalChannel:  InternalChannel,
		internalPatterns: defaultInternalPatterns,
	}
}

// SetInternalChannel overrides the reserved internal channel name.
func (g *DeduplicationGuard) SetInternalChannel(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if name != "" {
		g.internalChannel = strings.ToLower(name)
	}
}

// SetInternalPatterns overrides the internal message patterns.
func (g *DeduplicationGuard) SetInternalPatterns(patterns []string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(patterns) > 0 {
		g.internalPatterns = patterns
	}
}

// Begin decides whether an event may enter the pipeline. On acceptance
// it sets the reentrancy flag and returns done, which the caller must
// invoke (deferred) when processing finishes; done always clears the
// flag, so a downstream failure cannot leave the pipeline wedged.
// On rejection done is nil and reason names the rule that fired.
func (g *DeduplicationGuard) Begin(record *models.LogRecord) (proceed bool, reason string, done func()) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.reentrant {
		return false, GuardReentrant, nil
	}

	if g.isInternal(record) {
		return false, GuardInternal, nil
	}

	fp := fingerprint(record)
	if _, dup := g.seen[fp]; dup {
		return false, GuardDuplicate, nil
	}
	g.insert(fp)

	g.reentrant = true
	return true, "", func() {
		g.mu.Lock()
		g.reentrant = false
		g.mu.Unlock()
	}
}

// isInternal reports whether the record was produced by the pipeline
// itself. Caller holds the mutex.
func (g *DeduplicationGuard) isInternal(record *models.LogRecord) bool {
	if strings.ToLower(record.Channel) == g.internalChannel {
		return true
	}
	for _, pattern := range g.internalPatterns {
		if strings.Contains(record.Message, pattern) {
			return true
		}
	}
	return false
}

// insert adds a fingerprint, evicting the oldest when at capacity.
// Caller holds the mutex.
func (g *DeduplicationGuard) insert(fp uint64) {
	if len(g.ring) >= g.capacity {
		oldest := g.ring[0]
		g.ring = g.ring[1:]
		delete(g.seen, oldest)
	}
	g.ring = append(g.ring, fp)
	g.seen[fp] = struct{}{}
}

// Reset clears the ring and the reentrancy flag. Test hook only.
func (g *DeduplicationGuard) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ring = g.ring[:0]
	g.seen = make(map[uint64]struct{}, g.capacity)
	g.reentrant = false
}

// fingerprint hashes (message, level, channel, minute bucket) so the
// same logical event observed twice within a minute maps to one entry.
func fingerprint(record *models.LogRecord) uint64 {
	ts := record.CreatedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	minute := ts.Unix() / 60

	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%s|%s|%d", record.Message, record.Level, record.Channel, minute)
	return h.Sum64()
}
