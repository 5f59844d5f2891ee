package claude

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"bloodagent/internal/config"
	"bloodagent/internal/domain"
	"bloodagent/internal/provider"
)

const (
	apiURL     = "https://api.anthropic.com/v1/messages"
	apiVersion = "2023-06-01"
	name       = "anthropic"

	// statusOverloaded is returned by the Messages API when capacity is exhausted.
	statusOverloaded = 529
)

func init() {
	provider.RegisterBackend(domain.ProviderAnthropic, New)
}

// Backend implements provider.Backend using the Anthropic Messages API.
type Backend struct {
	apiKey    string
	model     string
	maxTokens int
	endpoint  string
	client    *http.Client
}

// New creates a Claude backend for a resolved model config. A configured
// base URL replaces the public endpoint.
func New(model domain.ModelConfig, cfg *config.ProviderConfig) (provider.Backend, error) {
	endpoint := apiURL
	if model.BaseURL != "" {
		endpoint = model.BaseURL + "/v1/messages"
	}
	return newBackend(model, cfg, endpoint), nil
}

// NewWithEndpoint creates a backend pointing at a custom API endpoint (for testing).
func NewWithEndpoint(model domain.ModelConfig, cfg *config.ProviderConfig, endpoint string) *Backend {
	return newBackend(model, cfg, endpoint)
}

func newBackend(model domain.ModelConfig, cfg *config.ProviderConfig, endpoint string) *Backend {
	m := model.Model
	if m == "" {
		m = config.DefaultModels[domain.ProviderAnthropic]
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 8192
	}
	return &Backend{
		apiKey:    model.APIKey,
		model:     m,
		maxTokens: maxTokens,
		endpoint:  endpoint,
		client:    &http.Client{Timeout: timeout},
	}
}

func (b *Backend) Name() string { return name }

// Capabilities reports no native structured output; the client embeds the schema instead.
func (b *Backend) Capabilities() provider.Capabilities {
	return provider.Capabilities{PDFInput: true}
}

func (b *Backend) Chat(ctx context.Context, req provider.Request) (string, error) {
	messages, err := buildMessages(req)
	if err != nil {
		return "", fmt.Errorf("building messages: %w", err)
	}

	reqBody := map[string]interface{}{
		"model":       b.model,
		"max_tokens":  b.maxTokens,
		"temperature": 0,
		"messages":    messages,
	}
	if req.System != "" {
		reqBody["system"] = req.System
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", b.apiKey)
	httpReq.Header.Set("anthropic-version", apiVersion)

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return "", &provider.ProviderUnavailableError{Provider: name, Err: fmt.Errorf("calling anthropic API: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &provider.ProviderUnavailableError{Provider: name, StatusCode: resp.StatusCode, Err: fmt.Errorf("reading response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		baseErr := fmt.Errorf("anthropic API error (status %d): %s", resp.StatusCode, provider.Truncate(string(respBody), 500))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == statusOverloaded {
			retryAfter := provider.ParseRetryAfterHeader(resp.Header.Get("Retry-After"))
			return "", provider.NewRateLimitError(name, baseErr, retryAfter)
		}
		return "", &provider.ProviderUnavailableError{Provider: name, StatusCode: resp.StatusCode, Err: baseErr}
	}

	return parseResponse(respBody)
}

func buildMessages(req provider.Request) ([]map[string]interface{}, error) {
	messages := make([]map[string]interface{}, 0, len(req.Messages))
	imageAttached := false
	for _, m := range req.Messages {
		var blocks []map[string]interface{}
		if m.Role == provider.RoleUser && req.Image != nil && !imageAttached {
			block, err := mediaBlock(*req.Image)
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, block)
			imageAttached = true
		}
		blocks = append(blocks, map[string]interface{}{
			"type": "text",
			"text": m.Content,
		})
		messages = append(messages, map[string]interface{}{
			"role":    string(m.Role),
			"content": blocks,
		})
	}
	return messages, nil
}

func mediaBlock(img domain.Image) (map[string]interface{}, error) {
	encoded := base64.StdEncoding.EncodeToString(img.Data)
	switch img.MediaType {
	case "application/pdf":
		return map[string]interface{}{
			"type": "document",
			"source": map[string]interface{}{
				"type":       "base64",
				"media_type": "application/pdf",
				"data":       encoded,
			},
		}, nil
	case "image/jpeg", "image/png", "image/gif", "image/webp":
		return map[string]interface{}{
			"type": "image",
			"source": map[string]interface{}{
				"type":       "base64",
				"media_type": img.MediaType,
				"data":       encoded,
			},
		}, nil
	default:
		return nil, fmt.Errorf("unsupported content type for vision: %s", img.MediaType)
	}
}

// apiResponse models the Anthropic Messages API response.
type apiResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

func parseResponse(body []byte) (string, error) {
	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", &provider.MalformedResponseError{Provider: name, Raw: string(body), Attempts: 1, Err: fmt.Errorf("unmarshaling response: %w", err)}
	}

	var sb strings.Builder
	for _, c := range resp.Content {
		if c.Type == "text" {
			sb.WriteString(c.Text)
		}
	}
	text := sb.String()

	if resp.StopReason == "max_tokens" {
		return "", &provider.MalformedResponseError{
			Provider: name, Raw: text, Attempts: 1,
			Err: errors.New("output truncated (stop_reason: max_tokens)"),
		}
	}
	if strings.TrimSpace(text) == "" {
		return "", &provider.MalformedResponseError{Provider: name, Attempts: 1, Err: errors.New("empty response from API")}
	}
	return text, nil
}
