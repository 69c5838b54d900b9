// File: internal/notify/channel.go
package notify

import (
	"context"
	"strings"
	"sync"

	"github.com/logward/logward/internal/models"
	"github.com/logward/logward/pkg/utils"
)

// Channel is a pluggable notification delivery backend
type Channel interface {
	// Name returns the unique channel name (lower-cased)
	Name() string

	// IsEnabled reports whether the channel is configured for delivery
	IsEnabled() bool

	// Send delivers a notification for the given record
	Send(ctx context.Context, record *models.LogRecord) error

	// ValidateConfiguration checks the channel configuration
	ValidateConfiguration() error

	// ConfigurationRequirements describes the fields the channel needs
	ConfigurationRequirements() []FieldRequirement

	// TestConnection performs a live delivery test
	TestConnection(ctx context.Context) TestResult
}

// FieldRequirement describes a single configuration field
type FieldRequirement struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Required    bool   `json:"required"`
	Description string `json:"description"`
}

// TestResult is the outcome of a channel connection test
type TestResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Registry holds the set of known channels, keyed by lower-cased name
type Registry struct {
	mu       sync.RWMutex
	channels map[string]Channel
}

// NewRegistry creates an empty channel registry
func NewRegistry() *Registry {
	return &Registry{
		channels: make(map[string]Channel),
	}
}

// Register adds a channel; duplicate names are rejected
func (r *Registry) Register(ch Channel) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := strings.ToLower(ch.Name())
	if name == "" {
		return utils.NewAppError(utils.ErrCodeValidation, "Channel name is required", "")
	}
	if _, exists := r.channels[name]; exists {
		return utils.NewAppError(utils.ErrCodeValidation, "Channel already registered", name)
	}

	r.channels[name] = ch
	return nil
}

// Get returns a channel by name
func (r *Registry) Get(name string) (Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ch, ok := r.channels[strings.ToLower(name)]
	return ch, ok
}

// All returns all registered channels
func (r *Registry) All() []Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()

	channels := make([]Channel, 0, len(r.channels))
	for _, ch := range r.channels {
		channels = append(channels, ch)
	}
	return channels
}
