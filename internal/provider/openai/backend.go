// Package openai implements the OpenAI chat completions backend. The same
// backend serves self-hosted OpenAI-compatible servers such as Ollama.
package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"bloodagent/internal/config"
	"bloodagent/internal/domain"
	"bloodagent/internal/provider"
)

// ollamaPlaceholderKey is sent when a self-hosted server needs no credential;
// the SDK would otherwise fall back to the process environment.
const ollamaPlaceholderKey = "ollama"

func init() {
	provider.RegisterBackend(domain.ProviderOpenAI, New)
	provider.RegisterBackend(domain.ProviderOllama, New)
}

// Backend implements provider.Backend using the OpenAI Go SDK.
type Backend struct {
	client    oai.Client
	name      string
	model     string
	maxTokens int
	native    bool
}

// New creates a backend for a resolved model config.
func New(model domain.ModelConfig, cfg *config.ProviderConfig) (provider.Backend, error) {
	return newBackend(model, cfg, model.BaseURL), nil
}

// NewWithEndpoint creates a backend pointing at a custom base URL (for testing).
func NewWithEndpoint(model domain.ModelConfig, cfg *config.ProviderConfig, endpoint string) *Backend {
	return newBackend(model, cfg, endpoint)
}

func newBackend(model domain.ModelConfig, cfg *config.ProviderConfig, endpoint string) *Backend {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 8192
	}
	apiKey := model.APIKey
	if apiKey == "" {
		apiKey = ollamaPlaceholderKey
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
		option.WithHTTPClient(&http.Client{Timeout: timeout}),
	}
	if endpoint != "" {
		if !strings.HasSuffix(endpoint, "/") {
			endpoint += "/"
		}
		opts = append(opts, option.WithBaseURL(endpoint))
	}

	return &Backend{
		client:    oai.NewClient(opts...),
		name:      string(model.Provider),
		model:     model.Model,
		maxTokens: maxTokens,
		// Self-hosted servers accept response_format inconsistently, so only
		// the hosted API gets schema enforcement.
		native: model.Provider == domain.ProviderOpenAI,
	}
}

func (b *Backend) Name() string { return b.name }

func (b *Backend) Capabilities() provider.Capabilities {
	// Self-hosted OpenAI-compatible servers take images only.
	return provider.Capabilities{NativeStructured: b.native, PDFInput: b.native}
}

func (b *Backend) Chat(ctx context.Context, req provider.Request) (string, error) {
	msgs, err := toChatMessages(req)
	if err != nil {
		return "", err
	}

	params := oai.ChatCompletionNewParams{
		Model:       shared.ChatModel(b.model),
		Messages:    msgs,
		Temperature: oai.Opt(0.0),
		MaxTokens:   oai.Opt(int64(b.maxTokens)),
	}
	if req.Schema != nil && b.native {
		params.ResponseFormat = oai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &oai.ResponseFormatJSONSchemaParam{
				JSONSchema: oai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   req.Schema.Name,
					Schema: req.Schema.Definition,
					Strict: oai.Bool(true),
				},
			},
		}
	}

	resp, err := b.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", b.classify(err)
	}

	if len(resp.Choices) == 0 {
		return "", &provider.MalformedResponseError{Provider: b.name, Attempts: 1, Err: errors.New("empty response: no choices")}
	}
	choice := resp.Choices[0]
	if choice.FinishReason == "length" {
		return "", &provider.MalformedResponseError{
			Provider: b.name, Raw: choice.Message.Content, Attempts: 1,
			Err: errors.New("output truncated (finish_reason: length)"),
		}
	}
	if strings.TrimSpace(choice.Message.Content) == "" {
		return "", &provider.MalformedResponseError{Provider: b.name, Attempts: 1, Err: errors.New("empty completion")}
	}
	return choice.Message.Content, nil
}

func (b *Backend) classify(err error) error {
	var apiErr *oai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests {
			retryAfter := 0
			if apiErr.Response != nil {
				retryAfter = provider.ParseRetryAfterHeader(apiErr.Response.Header.Get("Retry-After"))
			}
			return provider.NewRateLimitError(b.name, err, retryAfter)
		}
		return &provider.ProviderUnavailableError{Provider: b.name, StatusCode: apiErr.StatusCode, Err: err}
	}
	return &provider.ProviderUnavailableError{Provider: b.name, Err: fmt.Errorf("calling %s API: %w", b.name, err)}
}

func toChatMessages(req provider.Request) ([]oai.ChatCompletionMessageParamUnion, error) {
	msgs := make([]oai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.System != "" {
		msgs = append(msgs, oai.SystemMessage(req.System))
	}

	imageAttached := false
	for _, m := range req.Messages {
		switch m.Role {
		case provider.RoleAssistant:
			msgs = append(msgs, oai.AssistantMessage(m.Content))
		default:
			if req.Image == nil || imageAttached {
				msgs = append(msgs, oai.UserMessage(m.Content))
				continue
			}
			part, err := imagePart(*req.Image)
			if err != nil {
				return nil, err
			}
			imageAttached = true
			msgs = append(msgs, oai.ChatCompletionMessageParamUnion{
				OfUser: &oai.ChatCompletionUserMessageParam{
					Content: oai.ChatCompletionUserMessageParamContentUnion{
						OfArrayOfContentParts: []oai.ChatCompletionContentPartUnionParam{
							part,
							{OfText: &oai.ChatCompletionContentPartTextParam{Text: m.Content}},
						},
					},
				},
			})
		}
	}
	return msgs, nil
}

func imagePart(img domain.Image) (oai.ChatCompletionContentPartUnionParam, error) {
	dataURI := fmt.Sprintf("data:%s;base64,%s", img.MediaType, base64.StdEncoding.EncodeToString(img.Data))
	switch img.MediaType {
	case "application/pdf":
		return oai.FileContentPart(oai.ChatCompletionContentPartFileFileParam{
			FileData: oai.String(dataURI),
			Filename: oai.String("page.pdf"),
		}), nil
	case "image/jpeg", "image/png", "image/gif", "image/webp":
		return oai.ImageContentPart(oai.ChatCompletionContentPartImageImageURLParam{URL: dataURI}), nil
	default:
		return oai.ChatCompletionContentPartUnionParam{}, fmt.Errorf("unsupported content type for vision: %s", img.MediaType)
	}
}
