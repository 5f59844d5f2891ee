package config

import (
	"fmt"
	"net/url"
	"strings"

	"bloodagent/internal/domain"
)

// DefaultModels is the built-in model per provider, used when no layer names one.
var DefaultModels = map[domain.Provider]string{
	domain.ProviderOpenAI:    "gpt-4o",
	domain.ProviderAnthropic: "claude-sonnet-4-20250514",
	domain.ProviderGemini:    "gemini-2.0-flash",
	domain.ProviderOllama:    "llama3.2-vision",
}

// ConfigurationError reports an unusable model or application configuration.
// It is raised before any document enters the pipeline.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// Kind classifies the error for pipeline results.
func (e *ConfigurationError) Kind() domain.ErrorKind {
	return domain.ErrorKindConfiguration
}

// ModelLayer is one source of ModelConfig values. Empty fields are unset.
type ModelLayer struct {
	Name         string
	Provider     string
	Model        string
	BaseURL      string
	APIKey       string
	ProviderKeys map[domain.Provider]string

	// Untrusted marks caller-supplied values. A base_url from an untrusted
	// layer is never paired with a credential from a lower layer.
	Untrusted bool
}

// DefaultModelLayer returns the built-in defaults, the lowest precedence layer.
func DefaultModelLayer() ModelLayer {
	return ModelLayer{Name: "defaults", Provider: string(domain.ProviderOpenAI)}
}

// ResolveModelConfig merges layers given from highest to lowest precedence.
// For each field the first layer that sets it wins. No network I/O is performed.
func ResolveModelConfig(layers ...ModelLayer) (domain.ModelConfig, error) {
	var cfg domain.ModelConfig

	provider := firstSet(layers, func(l ModelLayer) string { return l.Provider })
	if provider == "" {
		return cfg, &ConfigurationError{Field: "provider", Reason: "no layer defines a provider"}
	}
	cfg.Provider = domain.Provider(strings.ToLower(provider))
	if !domain.KnownProviders[cfg.Provider] {
		return cfg, &ConfigurationError{Field: "provider", Reason: fmt.Sprintf("unknown provider %q", provider)}
	}

	cfg.Model = firstSet(layers, func(l ModelLayer) string { return l.Model })
	if cfg.Model == "" {
		cfg.Model = DefaultModels[cfg.Provider]
	}

	cfg.BaseURL = strings.TrimRight(firstSet(layers, func(l ModelLayer) string { return l.BaseURL }), "/")
	if cfg.BaseURL == "" && cfg.Provider.RequiresBaseURL() {
		return cfg, &ConfigurationError{Field: "base_url", Reason: fmt.Sprintf("provider %s requires a base_url", cfg.Provider)}
	}
	if cfg.BaseURL != "" {
		u, err := url.Parse(cfg.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return cfg, &ConfigurationError{Field: "base_url", Reason: fmt.Sprintf("%q is not an absolute http(s) URL", cfg.BaseURL)}
		}
	}

	keyLayers := layers
	if i := firstSetIndex(layers, func(l ModelLayer) string { return l.BaseURL }); i >= 0 && layers[i].Untrusted {
		keyLayers = layers[:i+1]
	}
	cfg.APIKey = firstSet(keyLayers, func(l ModelLayer) string {
		if l.APIKey != "" {
			return l.APIKey
		}
		return l.ProviderKeys[cfg.Provider]
	})
	if cfg.APIKey == "" && cfg.Provider.RequiresAPIKey() {
		if len(keyLayers) < len(layers) {
			return cfg, &ConfigurationError{Field: "api_key", Reason: fmt.Sprintf("a %s base_url override must bring its own credential", cfg.Provider)}
		}
		return cfg, &ConfigurationError{Field: "api_key", Reason: fmt.Sprintf("provider %s has no usable credential", cfg.Provider)}
	}

	return cfg, nil
}

func firstSet(layers []ModelLayer, get func(ModelLayer) string) string {
	if i := firstSetIndex(layers, get); i >= 0 {
		return strings.TrimSpace(get(layers[i]))
	}
	return ""
}

func firstSetIndex(layers []ModelLayer, get func(ModelLayer) string) int {
	for i, l := range layers {
		if strings.TrimSpace(get(l)) != "" {
			return i
		}
	}
	return -1
}
