package provider

import (
	"context"
	"strings"
	"time"

	"bloodagent/internal/domain"
	"bloodagent/internal/port"
)

// Client implements port.ProviderClient over a single Backend. It is safe for
// concurrent use; throttling observed by one caller pauses the others.
type Client struct {
	backend Backend
	policy  RetryPolicy
	circuit *circuitState
	schemas *schemaCache
	sleep   func(ctx context.Context, d time.Duration) error
	now     func() time.Time
}

var _ port.ProviderClient = (*Client)(nil)

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithClock replaces the time source and sleeper (for testing).
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) ClientOption {
	return func(c *Client) {
		c.now = now
		c.sleep = sleep
	}
}

// NewClientWithBackend wraps a backend with retry and structured-output handling.
func NewClientWithBackend(b Backend, policy RetryPolicy, opts ...ClientOption) *Client {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	c := &Client{
		backend: b,
		policy:  policy,
		circuit: &circuitState{},
		schemas: newSchemaCache(),
		sleep:   sleepContext,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Provider returns the backend name.
func (c *Client) Provider() string {
	return c.backend.Name()
}

// AcceptsPDF reports whether vision calls may send PDF pages as-is.
func (c *Client) AcceptsPDF() bool {
	return c.backend.Capabilities().PDFInput
}

// CompleteText runs prompt as the instruction over text.
func (c *Client) CompleteText(ctx context.Context, prompt, text string) (string, error) {
	out, _, err := c.call(ctx, Request{
		System:   prompt,
		Messages: []Message{{Role: RoleUser, Content: text}},
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// CompleteVision runs prompt against a single page image.
func (c *Client) CompleteVision(ctx context.Context, prompt string, image domain.Image) (string, error) {
	out, _, err := c.call(ctx, Request{
		Messages: []Message{{Role: RoleUser, Content: prompt}},
		Image:    &image,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}
