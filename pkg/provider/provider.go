// Package provider holds the per-protocol request shaping and response
// extraction strategies used to talk to remote text-generation endpoints.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/pario-ai/oracle/pkg/models"
)

// userAgent is sent on every provider request.
const userAgent = "curl/8.7.1"

// Result is what a provider strategy extracts from one completion response.
type Result struct {
	Thinking *string
	Value    string
	Params   models.SampleParams
	Usage    *models.Usage
	Raw      json.RawMessage
}

// Provider performs one blocking completion exchange against an endpoint.
type Provider interface {
	Complete(ctx context.Context, ep models.Endpoint, req models.WorkRequest) (*Result, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, ep models.Endpoint, req models.WorkRequest) (*Result, error)

// Complete implements Provider.
func (f ProviderFunc) Complete(ctx context.Context, ep models.Endpoint, req models.WorkRequest) (*Result, error) {
	return f(ctx, ep, req)
}

type options struct {
	httpClient *http.Client
	timeout    time.Duration
}

// Option configures the built-in strategies.
type Option func(*options)

// WithHTTPClient sets the HTTP client used for provider calls.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// WithTimeout bounds each provider exchange.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// Registry maps protocols to strategies.
type Registry struct {
	mu        sync.RWMutex
	providers map[models.Protocol]Provider
}

// NewRegistry returns a Registry with the built-in strategies registered.
func NewRegistry(opts ...Option) *Registry {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{Timeout: o.timeout}
	}

	chat := NewOpenAI(o.httpClient)
	r := &Registry{providers: make(map[models.Protocol]Provider)}
	r.Register(models.ProtocolDeepSeek, chat)
	r.Register(models.ProtocolOpenAICompatible, chat)
	r.Register(models.ProtocolOpenRouter, chat)
	r.Register(models.ProtocolGemini, NewGemini(o.httpClient))
	return r
}

// Register installs p for protocol, replacing any previous strategy.
func (r *Registry) Register(protocol models.Protocol, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[protocol] = p
}

// Lookup returns the strategy for protocol.
func (r *Registry) Lookup(protocol models.Protocol) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[protocol]
	if !ok {
		return nil, fmt.Errorf("no provider registered for protocol %q", protocol)
	}
	return p, nil
}
