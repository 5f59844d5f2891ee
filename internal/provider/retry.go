package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"bloodagent/internal/config"
)

// RetryPolicy bounds the exponential backoff applied to rate-limited calls.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// RetryPolicyFromConfig derives the policy from provider settings.
// MaxRetries counts retries, so the attempt budget is one more.
func RetryPolicyFromConfig(cfg *config.ProviderConfig) RetryPolicy {
	p := RetryPolicy{MaxAttempts: cfg.MaxRetries + 1, BaseDelay: cfg.BackoffBase, MaxDelay: cfg.BackoffMax}
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = time.Second
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	return p
}

// Delay returns the wait before the attempt after the given one (1-based).
// A server hint shorter than the cap takes precedence over the schedule.
func (p RetryPolicy) Delay(attempt int, hint time.Duration) time.Duration {
	if hint > 0 && hint <= p.MaxDelay {
		return hint
	}
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	return d
}

// circuitState pauses every caller sharing a backend until a throttle window passes.
type circuitState struct {
	mu      sync.RWMutex
	resetAt time.Time // zero value = closed (healthy)
}

func (c *circuitState) waitFor(now time.Time) time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.resetAt.IsZero() || !now.Before(c.resetAt) {
		return 0
	}
	return c.resetAt.Sub(now)
}

func (c *circuitState) open(resetAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if resetAt.After(c.resetAt) {
		c.resetAt = resetAt
	}
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// call runs one backend request, retrying only rate-limit failures.
// It returns the number of attempts made.
func (c *Client) call(ctx context.Context, req Request) (string, int, error) {
	name := c.backend.Name()
	for attempt := 1; ; attempt++ {
		if wait := c.circuit.waitFor(c.now()); wait > 0 {
			slog.Debug("provider.call.throttled", "provider", name, "wait", wait)
			if err := c.sleep(ctx, wait); err != nil {
				return "", attempt - 1, fmt.Errorf("waiting for %s throttle window: %w", name, err)
			}
		}

		text, err := c.backend.Chat(ctx, req)
		if err == nil {
			return text, attempt, nil
		}

		var rlErr *RateLimitError
		if !errors.As(err, &rlErr) {
			return "", attempt, err
		}
		if attempt >= c.policy.MaxAttempts {
			rlErr.Attempts = attempt
			slog.Warn("provider.call.rate_limit_exhausted", "provider", name, "attempts", attempt)
			return "", attempt, rlErr
		}

		delay := c.policy.Delay(attempt, rlErr.RetryAfter)
		c.circuit.open(c.now().Add(delay))
		slog.Info("provider.call.rate_limited", "provider", name, "attempt", attempt, "delay", delay)
		if err := c.sleep(ctx, delay); err != nil {
			return "", attempt, fmt.Errorf("backing off %s: %w", name, err)
		}
	}
}
