package provider

import (
	"context"
	"fmt"

	"bloodagent/internal/config"
	"bloodagent/internal/domain"
	"bloodagent/internal/port"
)

// Role of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a chat exchange.
type Message struct {
	Role    Role
	Content string
}

// Request is the vendor-neutral shape of a single completion call.
type Request struct {
	System   string
	Messages []Message
	// Image, when set, is attached to the first user message.
	Image *domain.Image
	// Schema, when set, asks backends with native structured output to enforce it.
	Schema *port.Schema
}

// Capabilities describes what a backend supports natively.
type Capabilities struct {
	NativeStructured bool
	// PDFInput is true when vision requests may carry application/pdf pages.
	PDFInput         bool
}

// Backend maps a Request onto one vendor's native API.
// Implementations classify failures as *RateLimitError, *ProviderUnavailableError
// or *MalformedResponseError.
type Backend interface {
	Name() string
	Capabilities() Capabilities
	Chat(ctx context.Context, req Request) (string, error)
}

// BackendFactory builds a Backend for a resolved model config.
type BackendFactory func(model domain.ModelConfig, cfg *config.ProviderConfig) (Backend, error)

// registry of backend factories, populated by init() in each backend package.
var backends = map[domain.Provider]BackendFactory{}

// RegisterBackend registers a backend factory for a provider.
func RegisterBackend(p domain.Provider, factory BackendFactory) {
	backends[p] = factory
}

// NewClient builds the Client for a resolved model config using the registered backend.
func NewClient(model domain.ModelConfig, cfg *config.ProviderConfig) (*Client, error) {
	factory, ok := backends[model.Provider]
	if !ok {
		return nil, &config.ConfigurationError{Field: "provider", Reason: fmt.Sprintf("no backend registered for %s", model.Provider)}
	}
	b, err := factory(model, cfg)
	if err != nil {
		return nil, fmt.Errorf("building %s backend: %w", model.Provider, err)
	}
	return NewClientWithBackend(b, RetryPolicyFromConfig(cfg)), nil
}
