package gemini

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
	apiBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"
	name       = "gemini"
)

func init() {
	provider.RegisterBackend(domain.ProviderGemini, New)
}

// Backend implements provider.Backend using Google's Gemini API.
type Backend struct {
	apiKey    string
	model     string
	maxTokens int
	endpoint  string
	client    *http.Client
}

// New creates a Gemini backend for a resolved model config.
func New(model domain.ModelConfig, cfg *config.ProviderConfig) (provider.Backend, error) {
	base := apiBaseURL
	if model.BaseURL != "" {
		base = model.BaseURL
	}
	return newBackend(model, cfg, base, ""), nil
}

// NewWithEndpoint creates a backend pointing at a custom API endpoint (for testing).
func NewWithEndpoint(model domain.ModelConfig, cfg *config.ProviderConfig, endpoint string) *Backend {
	return newBackend(model, cfg, "", endpoint)
}

func newBackend(model domain.ModelConfig, cfg *config.ProviderConfig, base, endpoint string) *Backend {
	m := model.Model
	if m == "" {
		m = config.DefaultModels[domain.ProviderGemini]
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 8192
	}
	if endpoint == "" {
		endpoint = fmt.Sprintf("%s/%s:generateContent", base, m)
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

// Capabilities reports native JSON mode. The schema itself travels in the
// system instruction because generateContent accepts only an OpenAPI subset.
func (b *Backend) Capabilities() provider.Capabilities {
	return provider.Capabilities{NativeStructured: true, PDFInput: true}
}

func (b *Backend) Chat(ctx context.Context, req provider.Request) (string, error) {
	contents, err := buildContents(req)
	if err != nil {
		return "", fmt.Errorf("building contents: %w", err)
	}

	genCfg := map[string]interface{}{
		"temperature":     0,
		"maxOutputTokens": b.maxTokens,
	}
	system := req.System
	if req.Schema != nil {
		genCfg["responseMimeType"] = "application/json"
		schemaJSON, _ := json.Marshal(req.Schema.Definition)
		system = strings.TrimSpace(system + "\n" + string(schemaJSON))
	}

	reqBody := map[string]interface{}{
		"contents":         contents,
		"generationConfig": genCfg,
	}
	if system != "" {
		reqBody["systemInstruction"] = map[string]interface{}{
			"parts": []map[string]interface{}{{"text": system}},
		}
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
	httpReq.Header.Set("x-goog-api-key", b.apiKey)

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return "", &provider.ProviderUnavailableError{Provider: name, Err: fmt.Errorf("calling gemini API: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &provider.ProviderUnavailableError{Provider: name, StatusCode: resp.StatusCode, Err: fmt.Errorf("reading response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		baseErr := fmt.Errorf("gemini API error (status %d): %s", resp.StatusCode, provider.Truncate(string(respBody), 500))
		if resp.StatusCode == http.StatusTooManyRequests {
			retryAfter := provider.ParseRetryAfterHeader(resp.Header.Get("Retry-After"))
			return "", provider.NewRateLimitError(name, baseErr, retryAfter)
		}
		return "", &provider.ProviderUnavailableError{Provider: name, StatusCode: resp.StatusCode, Err: baseErr}
	}

	return parseResponse(respBody)
}

// Gemini names the assistant role "model".
func geminiRole(r provider.Role) string {
	if r == provider.RoleAssistant {
		return "model"
	}
	return "user"
}

func buildContents(req provider.Request) ([]map[string]interface{}, error) {
	contents := make([]map[string]interface{}, 0, len(req.Messages))
	imageAttached := false
	for _, m := range req.Messages {
		var parts []map[string]interface{}
		if m.Role == provider.RoleUser && req.Image != nil && !imageAttached {
			mimeType, err := toGeminiMimeType(req.Image.MediaType)
			if err != nil {
				return nil, err
			}
			parts = append(parts, map[string]interface{}{
				"inline_data": map[string]interface{}{
					"mime_type": mimeType,
					"data":      base64.StdEncoding.EncodeToString(req.Image.Data),
				},
			})
			imageAttached = true
		}
		parts = append(parts, map[string]interface{}{"text": m.Content})
		contents = append(contents, map[string]interface{}{
			"role":  geminiRole(m.Role),
			"parts": parts,
		})
	}
	return contents, nil
}

func toGeminiMimeType(contentType string) (string, error) {
	switch contentType {
	case "application/pdf", "image/jpeg", "image/png", "image/webp":
		return contentType, nil
	default:
		return "", fmt.Errorf("unsupported content type for vision: %s", contentType)
	}
}

// geminiResponse models the Gemini API response.
type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
}

func parseResponse(body []byte) (string, error) {
	var resp geminiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", &provider.MalformedResponseError{Provider: name, Raw: string(body), Attempts: 1, Err: fmt.Errorf("unmarshaling response: %w", err)}
	}
	if len(resp.Candidates) == 0 {
		return "", &provider.MalformedResponseError{Provider: name, Attempts: 1, Err: errors.New("empty response from API: no candidates")}
	}

	cand := resp.Candidates[0]
	var sb strings.Builder
	for _, p := range cand.Content.Parts {
		sb.WriteString(p.Text)
	}
	text := sb.String()

	if cand.FinishReason == "MAX_TOKENS" {
		return "", &provider.MalformedResponseError{
			Provider: name, Raw: text, Attempts: 1,
			Err: errors.New("output truncated (finishReason: MAX_TOKENS)"),
		}
	}
	if strings.TrimSpace(text) == "" {
		return "", &provider.MalformedResponseError{Provider: name, Attempts: 1, Err: errors.New("empty response from API: no parts")}
	}
	return text, nil
}
