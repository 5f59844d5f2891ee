package config_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bloodagent/internal/config"
	"bloodagent/internal/domain"
)

func TestResolveModelConfig_Defaults(t *testing.T) {
	env := config.ModelLayer{Name: "environment", ProviderKeys: map[domain.Provider]string{domain.ProviderOpenAI: "sk-env"}}

	cfg, err := config.ResolveModelConfig(env, config.DefaultModelLayer())

	require.NoError(t, err)
	assert.Equal(t, domain.ProviderOpenAI, cfg.Provider)
	assert.Equal(t, "gpt-4o", cfg.Model)
	assert.Equal(t, "sk-env", cfg.APIKey)
	assert.Empty(t, cfg.BaseURL)
}

func TestResolveModelConfig_PrecedencePerField(t *testing.T) {
	explicit := config.ModelLayer{Name: "explicit", Model: "gpt-4o-mini"}
	cli := config.ModelLayer{Name: "cli", Provider: "anthropic", Model: "claude-cli"}
	env := config.ModelLayer{
		Name:         "environment",
		Provider:     "openai",
		BaseURL:      "https://proxy.internal/",
		ProviderKeys: map[domain.Provider]string{domain.ProviderAnthropic: "sk-ant"},
	}

	cfg, err := config.ResolveModelConfig(explicit, cli, env, config.DefaultModelLayer())

	require.NoError(t, err)
	assert.Equal(t, domain.ProviderAnthropic, cfg.Provider, "cli provider beats env")
	assert.Equal(t, "gpt-4o-mini", cfg.Model, "explicit model beats cli")
	assert.Equal(t, "https://proxy.internal", cfg.BaseURL)
	assert.Equal(t, "sk-ant", cfg.APIKey, "key picked for the resolved provider")
}

func TestResolveModelConfig_ProviderDefaultModel(t *testing.T) {
	cli := config.ModelLayer{Provider: "gemini", APIKey: "g-key"}

	cfg, err := config.ResolveModelConfig(cli, config.DefaultModelLayer())

	require.NoError(t, err)
	assert.Equal(t, "gemini-2.0-flash", cfg.Model)
}

func TestResolveModelConfig_SelfHostedWithoutBaseURL(t *testing.T) {
	cli := config.ModelLayer{Provider: "ollama", Model: "llama3.2-vision"}

	_, err := config.ResolveModelConfig(cli, config.DefaultModelLayer())

	var cfgErr *config.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "base_url", cfgErr.Field)
	assert.Equal(t, domain.ErrorKindConfiguration, domain.KindOf(err))
}

func TestResolveModelConfig_SelfHostedNeedsNoKey(t *testing.T) {
	cli := config.ModelLayer{Provider: "ollama", BaseURL: "http://localhost:11434/v1"}

	cfg, err := config.ResolveModelConfig(cli, config.DefaultModelLayer())

	require.NoError(t, err)
	assert.Equal(t, domain.ProviderOllama, cfg.Provider)
	assert.Equal(t, "llama3.2-vision", cfg.Model)
	assert.Empty(t, cfg.APIKey)
}

func TestResolveModelConfig_Errors(t *testing.T) {
	tests := []struct {
		name  string
		layer config.ModelLayer
		field string
	}{
		{"missing credential", config.ModelLayer{Provider: "anthropic"}, "api_key"},
		{"unknown provider", config.ModelLayer{Provider: "mystery", APIKey: "k"}, "provider"},
		{"relative base url", config.ModelLayer{Provider: "ollama", BaseURL: "localhost:11434"}, "base_url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.ResolveModelConfig(tt.layer, config.DefaultModelLayer())
			var cfgErr *config.ConfigurationError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestResolveModelConfig_UntrustedBaseURLKeepsServerKey(t *testing.T) {
	env := config.ModelLayer{Name: "environment", Provider: "openai", ProviderKeys: map[domain.Provider]string{domain.ProviderOpenAI: "sk-server"}}

	t.Run("base_url override gets no env key", func(t *testing.T) {
		req := config.ModelLayer{Name: "request", BaseURL: "https://collector.example.net", Untrusted: true}

		cfg, err := config.ResolveModelConfig(req, env, config.DefaultModelLayer())

		var cfgErr *config.ConfigurationError
		require.True(t, errors.As(err, &cfgErr))
		assert.Equal(t, "api_key", cfgErr.Field)
		assert.Empty(t, cfg.APIKey)
	})

	t.Run("model-only override keeps env key", func(t *testing.T) {
		req := config.ModelLayer{Name: "request", Model: "gpt-4o-mini", Untrusted: true}

		cfg, err := config.ResolveModelConfig(req, env, config.DefaultModelLayer())

		require.NoError(t, err)
		assert.Equal(t, "sk-server", cfg.APIKey)
	})

	t.Run("trusted base_url still uses env key", func(t *testing.T) {
		cli := config.ModelLayer{Name: "cli", BaseURL: "https://proxy.internal"}

		cfg, err := config.ResolveModelConfig(cli, env, config.DefaultModelLayer())

		require.NoError(t, err)
		assert.Equal(t, "sk-server", cfg.APIKey)
	})
}

func TestResolveModelConfig_NoProviderAnywhere(t *testing.T) {
	_, err := config.ResolveModelConfig(config.ModelLayer{APIKey: "k"})
	assert.Error(t, err)
}

func TestModelEnvConfig_Layer(t *testing.T) {
	env := config.ModelEnvConfig{Provider: "openai", OpenAIAPIKey: "sk-1", AnthropicAPIKey: ""}

	layer := env.Layer()

	assert.Equal(t, "openai", layer.Provider)
	assert.Equal(t, "sk-1", layer.ProviderKeys[domain.ProviderOpenAI])
	_, ok := layer.ProviderKeys[domain.ProviderAnthropic]
	assert.False(t, ok)
}
