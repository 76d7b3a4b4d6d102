// Package providers defines the outbound AI provider boundary. Real
// provider SDK adapters are external collaborators; the gateway only
// needs a dispatch interface that the content filter sits in front of.
package providers

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Message is one turn of a chat conversation
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is a provider-agnostic chat completion request
type ChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

// ChatResponse is a provider-agnostic chat completion response
type ChatResponse struct {
	Content  string `json:"content"`
	Model    string `json:"model"`
	Provider string `json:"provider"`
}

// Provider is implemented by AI provider adapters
type Provider interface {
	Name() string
	ChatCompletion(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
	IsAvailable(ctx context.Context) bool
}

// Registry manages provider instances
type Registry struct {
	providers map[string]Provider
	order     []string
	logger    *zap.Logger
}

// NewRegistry creates a new provider registry
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		providers: make(map[string]Provider),
		logger:    logger,
	}
}

// Register registers a provider with the registry
func (r *Registry) Register(provider Provider) {
	if _, exists := r.providers[provider.Name()]; !exists {
		r.order = append(r.order, provider.Name())
	}
	r.providers[provider.Name()] = provider
	r.logger.Info("provider registered", zap.String("provider", provider.Name()))
}

// Get retrieves a provider by name
func (r *Registry) Get(name string) (Provider, bool) {
	provider, ok := r.providers[name]
	return provider, ok
}

// Default returns the first registered provider
func (r *Registry) Default() (Provider, error) {
	if len(r.order) == 0 {
		return nil, fmt.Errorf("no providers registered")
	}
	return r.providers[r.order[0]], nil
}

// List returns all registered provider names in registration order
func (r *Registry) List() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Count returns the number of registered providers
func (r *Registry) Count() int {
	return len(r.providers)
}

// EchoProvider answers with the request content. Used in development
// and tests where no real provider is configured.
type EchoProvider struct{}

// Name returns the provider name
func (EchoProvider) Name() string {
	return "echo"
}

// ChatCompletion echoes the last message back
func (EchoProvider) ChatCompletion(_ context.Context, req *ChatRequest) (*ChatResponse, error) {
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("chat request has no messages")
	}
	return &ChatResponse{
		Content:  req.Messages[len(req.Messages)-1].Content,
		Model:    req.Model,
		Provider: "echo",
	}, nil
}

// IsAvailable always reports true
func (EchoProvider) IsAvailable(context.Context) bool {
	return true
}
