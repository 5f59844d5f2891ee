package provider

import (
	"fmt"
	"strconv"
	"time"
	"unicode/utf8"

	"bloodagent/internal/domain"
)

// RateLimitError indicates a provider throttled the request (HTTP 429 or overload).
type RateLimitError struct {
	Err        error
	RetryAfter time.Duration
	Provider   string
	// Attempts is set when the client gives up after bounded retries.
	Attempts int
}

func (e *RateLimitError) Error() string {
	if e.Attempts > 0 {
		return fmt.Sprintf("%s rate limited after %d attempts: %v", e.Provider, e.Attempts, e.Err)
	}
	return fmt.Sprintf("%s rate limited (retry after %s): %v", e.Provider, e.RetryAfter, e.Err)
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}

// Kind classifies the error for pipeline results.
func (e *RateLimitError) Kind() domain.ErrorKind {
	return domain.ErrorKindRateLimited
}

// NewRateLimitError creates a RateLimitError. A zero retryAfterSecs leaves the
// wait to the client's backoff schedule.
func NewRateLimitError(provider string, err error, retryAfterSecs int) *RateLimitError {
	if retryAfterSecs < 0 {
		retryAfterSecs = 0
	}
	return &RateLimitError{
		Err:        err,
		RetryAfter: time.Duration(retryAfterSecs) * time.Second,
		Provider:   provider,
	}
}

// ParseRetryAfterHeader parses a Retry-After header value into seconds.
// Returns 0 if the value is empty or not a valid integer.
func ParseRetryAfterHeader(val string) int {
	if val == "" {
		return 0
	}
	secs, err := strconv.Atoi(val)
	if err != nil {
		return 0
	}
	return secs
}

// ProviderUnavailableError covers connection, auth and other non-throttling failures.
// It is never retried by the client.
type ProviderUnavailableError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *ProviderUnavailableError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s unavailable (status %d): %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s unavailable: %v", e.Provider, e.Err)
}

func (e *ProviderUnavailableError) Unwrap() error {
	return e.Err
}

// Kind classifies the error for pipeline results.
func (e *ProviderUnavailableError) Kind() domain.ErrorKind {
	return domain.ErrorKindProviderUnavailable
}

// MalformedResponseError reports a completion that could not be used, after the
// corrective retry when one applies.
type MalformedResponseError struct {
	Provider string
	Raw      string
	Attempts int
	Err      error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("%s returned a malformed response after %d attempt(s): %v (raw: %s)",
		e.Provider, e.Attempts, e.Err, Truncate(e.Raw, 200))
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

// Kind classifies the error for pipeline results.
func (e *MalformedResponseError) Kind() domain.ErrorKind {
	return domain.ErrorKindMalformedResponse
}

// Truncate shortens s to maxLen bytes for logs and error messages.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:runeCut(s, maxLen)] + "..."
}

// runeCut backs n off to the start of the rune it falls in.
func runeCut(s string, n int) int {
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return n
}
