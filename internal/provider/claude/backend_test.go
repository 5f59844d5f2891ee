package claude_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bloodagent/internal/config"
	"bloodagent/internal/domain"
	"bloodagent/internal/port"
	"bloodagent/internal/provider"
	"bloodagent/internal/provider/claude"
)

func newTestBackend(serverURL string) *claude.Backend {
	model := domain.ModelConfig{Provider: domain.ProviderAnthropic, Model: "claude-sonnet-4-20250514", APIKey: "test-api-key"}
	return claude.NewWithEndpoint(model, &config.ProviderConfig{TimeoutSecs: 30, MaxTokens: 4096}, serverURL)
}

func textResponse(text, stop string) map[string]interface{} {
	return map[string]interface{}{
		"content":     []map[string]interface{}{{"type": "text", "text": text}},
		"stop_reason": stop,
	}
}

func TestBackend_Chat_TextWithSystem(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-api-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var reqBody map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&reqBody))
		assert.Equal(t, "claude-sonnet-4-20250514", reqBody["model"])
		assert.Equal(t, float64(4096), reqBody["max_tokens"])
		assert.Equal(t, "replace identifiers", reqBody["system"])

		messages := reqBody["messages"].([]interface{})
		require.Len(t, messages, 1)
		msg := messages[0].(map[string]interface{})
		assert.Equal(t, "user", msg["role"])
		content := msg["content"].([]interface{})
		require.Len(t, content, 1)
		assert.Equal(t, "text", content[0].(map[string]interface{})["type"])

		_ = json.NewEncoder(w).Encode(textResponse("Patient: [NAME]", "end_turn"))
	}))
	defer server.Close()

	out, err := newTestBackend(server.URL).Chat(context.Background(), provider.Request{
		System:   "replace identifiers",
		Messages: []provider.Message{{Role: provider.RoleUser, Content: "Patient: Jane Doe"}},
	})

	require.NoError(t, err)
	assert.Equal(t, "Patient: [NAME]", out)
}

func TestBackend_Chat_PDFPageAsDocumentBlock(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var reqBody map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&reqBody))

		msg := reqBody["messages"].([]interface{})[0].(map[string]interface{})
		content := msg["content"].([]interface{})
		require.Len(t, content, 2)
		assert.Equal(t, "document", content[0].(map[string]interface{})["type"])
		assert.Equal(t, "text", content[1].(map[string]interface{})["type"])
		_, hasSystem := reqBody["system"]
		assert.False(t, hasSystem)

		_ = json.NewEncoder(w).Encode(textResponse("Glucose 5.4 mmol/L", "end_turn"))
	}))
	defer server.Close()

	out, err := newTestBackend(server.URL).Chat(context.Background(), provider.Request{
		Messages: []provider.Message{{Role: provider.RoleUser, Content: "ocr"}},
		Image:    &domain.Image{Data: []byte("%PDF-1.4"), MediaType: "application/pdf"},
	})

	require.NoError(t, err)
	assert.Equal(t, "Glucose 5.4 mmol/L", out)
}

func TestBackend_Chat_CorrectiveTurnsKeepRoles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var reqBody map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&reqBody))
		messages := reqBody["messages"].([]interface{})
		require.Len(t, messages, 3)
		assert.Equal(t, "assistant", messages[1].(map[string]interface{})["role"])
		_ = json.NewEncoder(w).Encode(textResponse(`{"ok":true}`, "end_turn"))
	}))
	defer server.Close()

	_, err := newTestBackend(server.URL).Chat(context.Background(), provider.Request{
		Messages: []provider.Message{
			{Role: provider.RoleUser, Content: "convert"},
			{Role: provider.RoleAssistant, Content: "oops"},
			{Role: provider.RoleUser, Content: "fix it"},
		},
	})
	require.NoError(t, err)
}

func TestBackend_Chat_RateLimitAndOverload(t *testing.T) {
	for _, status := range []int{http.StatusTooManyRequests, 529} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", "4")
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"type":"error"}`))
		}))

		_, err := newTestBackend(server.URL).Chat(context.Background(), provider.Request{
			Messages: []provider.Message{{Role: provider.RoleUser, Content: "x"}},
		})
		server.Close()

		var rlErr *provider.RateLimitError
		require.True(t, errors.As(err, &rlErr), "status %d", status)
		assert.Equal(t, 4*time.Second, rlErr.RetryAfter)
	}
}

func TestBackend_Chat_ServerErrorIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal"}`))
	}))
	defer server.Close()

	_, err := newTestBackend(server.URL).Chat(context.Background(), provider.Request{
		Messages: []provider.Message{{Role: provider.RoleUser, Content: "x"}},
	})

	assert.Equal(t, domain.ErrorKindProviderUnavailable, domain.KindOf(err))
	assert.Contains(t, err.Error(), "500")
}

func TestBackend_Chat_EmptyOrGarbledBodyIsMalformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty body", ""},
		{"not json", "<html>gateway</html>"},
		{"no text content", `{"content":[],"stop_reason":"end_turn"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := newTestBackend(server.URL).Chat(context.Background(), provider.Request{
				Messages: []provider.Message{{Role: provider.RoleUser, Content: "x"}},
			})

			var mErr *provider.MalformedResponseError
			assert.True(t, errors.As(err, &mErr), "got %v", err)
			assert.Equal(t, domain.ErrorKindMalformedResponse, domain.KindOf(err))
		})
	}
}

func TestBackend_Chat_MaxTokensIsMalformed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(textResponse(`{"analytes": [`, "max_tokens"))
	}))
	defer server.Close()

	_, err := newTestBackend(server.URL).Chat(context.Background(), provider.Request{
		Messages: []provider.Message{{Role: provider.RoleUser, Content: "x"}},
	})

	assert.Equal(t, domain.ErrorKindMalformedResponse, domain.KindOf(err))
}

func TestBackend_StructuredThroughClientDegrades(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		var reqBody map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&reqBody))
		assert.Contains(t, reqBody["system"], "validates against this JSON schema")
		_ = json.NewEncoder(w).Encode(textResponse("```json\n{\"panel_name\":\"CBC\"}\n```", "end_turn"))
	}))
	defer server.Close()

	client := provider.NewClientWithBackend(newTestBackend(server.URL), provider.RetryPolicy{MaxAttempts: 1})
	schema := port.Schema{Name: "panel", Definition: map[string]any{
		"type":     "object",
		"required": []any{"panel_name"},
	}}

	out, err := client.CompleteStructured(context.Background(), "convert", schema)

	require.NoError(t, err)
	assert.False(t, out.Native)
	assert.JSONEq(t, `{"panel_name":"CBC"}`, string(out.Value))
	assert.Equal(t, 1, calls)
}
