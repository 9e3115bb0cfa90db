// Package client wraps an http.RoundTripper with rate limiting, per-key
// circuit breaking and a typed provider error.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sawpanic/gemscan/internal/net/circuit"
	"github.com/sawpanic/gemscan/internal/net/ratelimit"
)

// DefaultUserAgent identifies gemscan to providers.
const DefaultUserAgent = "gemscan/1.0 (+free-tier; sequential)"

// Error types carried by ProviderError.
const (
	TypeRateLimit = "rate_limit"
	TypeCircuit   = "circuit"
	TypeTransport = "transport"
	TypeHTTP      = "http_error"
	TypeDecode    = "decode"
)

type breakerKey struct{}

// WithBreakerKey scopes the circuit breaker used for requests made with ctx.
// Requests without a key share the breaker of their host.
func WithBreakerKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, breakerKey{}, key)
}

func breakerKeyFrom(req *http.Request) string {
	if key, ok := req.Context().Value(breakerKey{}).(string); ok && key != "" {
		return key
	}
	return req.URL.Host
}

// Config configures a Wrapper.
type Config struct {
	Provider    string
	UserAgent   string
	RateLimiter *ratelimit.Limiter
	Breakers    *circuit.Manager
}

// Wrapper is an http.RoundTripper applying the configured middleware.
type Wrapper struct {
	config    Config
	transport http.RoundTripper
}

// NewWrapper wraps transport, or http.DefaultTransport when nil.
func NewWrapper(config Config, transport http.RoundTripper) *Wrapper {
	if transport == nil {
		transport = http.DefaultTransport
	}
	if config.UserAgent == "" {
		config.UserAgent = DefaultUserAgent
	}
	return &Wrapper{config: config, transport: transport}
}

// New returns an http.Client using a Wrapper and the given per-request timeout.
func New(config Config, timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: NewWrapper(config, nil),
		Timeout:   timeout,
	}
}

// RoundTrip implements http.RoundTripper. Responses with status >= 400 are
// closed and reported as a ProviderError of TypeHTTP.
func (w *Wrapper) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", w.config.UserAgent)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	if w.config.RateLimiter != nil {
		if err := w.config.RateLimiter.Wait(req.Context(), req.URL.Host); err != nil {
			return nil, w.fail(TypeRateLimit, 0, fmt.Errorf("rate limit wait failed: %w", err))
		}
	}

	do := func() (interface{}, error) {
		resp, err := w.transport.RoundTrip(req)
		if err != nil {
			return nil, w.fail(TypeTransport, 0, err)
		}
		if resp.StatusCode >= 400 {
			io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
			resp.Body.Close()
			return nil, w.fail(TypeHTTP, resp.StatusCode, fmt.Errorf("HTTP %d error", resp.StatusCode))
		}
		return resp, nil
	}

	if w.config.Breakers == nil {
		resp, err := do()
		if err != nil {
			return nil, err
		}
		return resp.(*http.Response), nil
	}

	resp, err := w.config.Breakers.Execute(breakerKeyFrom(req), do)
	if err != nil {
		if errors.Is(err, circuit.ErrOpen) {
			return nil, w.fail(TypeCircuit, 0, err)
		}
		return nil, err
	}
	return resp.(*http.Response), nil
}

func (w *Wrapper) fail(typ string, status int, err error) *ProviderError {
	return &ProviderError{Provider: w.config.Provider, Type: typ, StatusCode: status, Err: err}
}

// ProviderError is a provider fault with its classification.
type ProviderError struct {
	Provider   string `json:"provider"`
	Type       string `json:"type"`
	StatusCode int    `json:"status_code,omitempty"`
	Err        error  `json:"-"`
}

// NewDecodeError classifies a response body that could not be decoded.
func NewDecodeError(provider string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Type: TypeDecode, Err: err}
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider %s %s error (HTTP %d): %v", e.Provider, e.Type, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("provider %s %s error: %v", e.Provider, e.Type, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsRateLimited returns true if the error is due to rate limiting
func (e *ProviderError) IsRateLimited() bool {
	return e.Type == TypeRateLimit || e.StatusCode == http.StatusTooManyRequests
}

// TypeOf classifies any error returned by a wrapped client. Errors that did
// not come through a Wrapper, such as client timeouts, count as transport.
func TypeOf(err error) string {
	var pe *ProviderError
	if errors.As(err, &pe) {
		if pe.IsRateLimited() {
			return TypeRateLimit
		}
		return pe.Type
	}
	return TypeTransport
}
