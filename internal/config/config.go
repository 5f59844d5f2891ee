package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"bloodagent/internal/domain"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	DB        DBConfig
	S3        S3Config
	Log       LogConfig
	CORS      CORSConfig
	Model     ModelEnvConfig
	Provider  ProviderConfig
	Pipeline  PipelineConfig
	Anonymize AnonymizeConfig
	LOINC     LOINCConfig
}

// ModelEnvConfig holds the model selection read from the environment.
// Empty fields mean "not set by the environment".
type ModelEnvConfig struct {
	Provider        string `mapstructure:"provider"`
	Name            string `mapstructure:"name"`
	BaseURL         string `mapstructure:"base_url"`
	APIKey          string `mapstructure:"api_key"`
	OpenAIAPIKey    string `mapstructure:"openai_api_key"`
	AnthropicAPIKey string `mapstructure:"anthropic_api_key"`
	GeminiAPIKey    string `mapstructure:"gemini_api_key"`
	OllamaAPIKey    string `mapstructure:"ollama_api_key"`
}

// Layer converts the environment values into a ModelConfig resolution layer.
func (m *ModelEnvConfig) Layer() ModelLayer {
	keys := map[domain.Provider]string{}
	for p, k := range map[domain.Provider]string{
		domain.ProviderOpenAI:    m.OpenAIAPIKey,
		domain.ProviderAnthropic: m.AnthropicAPIKey,
		domain.ProviderGemini:    m.GeminiAPIKey,
		domain.ProviderOllama:    m.OllamaAPIKey,
	} {
		if k != "" {
			keys[p] = k
		}
	}
	return ModelLayer{
		Name:         "environment",
		Provider:     m.Provider,
		Model:        m.Name,
		BaseURL:      m.BaseURL,
		APIKey:       m.APIKey,
		ProviderKeys: keys,
	}
}

// ProviderConfig holds transport and retry settings shared by every model backend.
type ProviderConfig struct {
	MaxRetries  int           `mapstructure:"max_retries"`
	BackoffBase time.Duration `mapstructure:"backoff_base"`
	BackoffMax  time.Duration `mapstructure:"backoff_max"`
	TimeoutSecs int           `mapstructure:"timeout_secs"`
	MaxTokens   int           `mapstructure:"max_tokens"`
}

// PipelineConfig holds batch processing settings.
type PipelineConfig struct {
	Concurrency   int           `mapstructure:"concurrency"`
	StageTimeout  time.Duration `mapstructure:"stage_timeout"`
	PDFRenderer   string        `mapstructure:"pdf_renderer"`
	PdftoppmPath  string        `mapstructure:"pdftoppm_path"`
	RenderDPI     int           `mapstructure:"render_dpi"`
	DefaultPrompt string        `mapstructure:"default_prompt"`
	// Language is the default report language hint, e.g. "mkd+eng".
	Language      string        `mapstructure:"language"`
}

// AnonymizeConfig holds the local identifier detector settings.
type AnonymizeConfig struct {
	// Names are exact personal names that must never survive anonymization.
	Names []string `mapstructure:"names"`
	// Patterns are extra detectors in "CLASS=regexp" form, e.g. "MRN=\bHOSP-\d{6}\b".
	Patterns []string `mapstructure:"patterns"`
}

// LOINCConfig holds reference table settings.
type LOINCConfig struct {
	// Source is one of builtin, file or db.
	Source         string  `mapstructure:"source"`
	TablePath      string  `mapstructure:"table_path"`
	FuzzyThreshold float64 `mapstructure:"fuzzy_threshold"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Environment  string        `mapstructure:"environment"`
	MaxUploadMB  int64         `mapstructure:"max_upload_mb"`
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxOpen  int    `mapstructure:"max_open"`
	MaxIdle  int    `mapstructure:"max_idle"`
}

// DSN returns the PostgreSQL connection string.
func (d *DBConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// S3Config holds object storage settings for result artifacts.
type S3Config struct {
	Enabled       bool   `mapstructure:"enabled"`
	Region        string `mapstructure:"region"`
	Endpoint      string `mapstructure:"endpoint"`
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
	SilverBucket  string `mapstructure:"silver_bucket"`
	PresignExpiry int64  `mapstructure:"presign_expiry"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from environment variables with the BLOODAGENT_ prefix.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BLOODAGENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Server defaults
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.max_upload_mb", 25)

	// DB defaults
	v.SetDefault("db.enabled", false)
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "bloodagent")
	v.SetDefault("db.password", "bloodagent_secret")
	v.SetDefault("db.name", "bloodagent_db")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_open", 10)
	v.SetDefault("db.max_idle", 5)

	// S3 defaults (MinIO-compatible when endpoint is set)
	v.SetDefault("s3.enabled", false)
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.silver_bucket", "silver")
	v.SetDefault("s3.presign_expiry", 3600)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("cors.allowed_origins", "http://localhost:3000,http://127.0.0.1:3000")

	// Provider transport defaults
	v.SetDefault("provider.max_retries", 4)
	v.SetDefault("provider.backoff_base", "1s")
	v.SetDefault("provider.backoff_max", "30s")
	v.SetDefault("provider.timeout_secs", 120)
	v.SetDefault("provider.max_tokens", 8192)

	// Pipeline defaults
	v.SetDefault("pipeline.concurrency", 3)
	v.SetDefault("pipeline.stage_timeout", "5m")
	v.SetDefault("pipeline.pdf_renderer", "split")
	v.SetDefault("pipeline.pdftoppm_path", "pdftoppm")
	v.SetDefault("pipeline.render_dpi", 200)
	v.SetDefault("pipeline.default_prompt", "Process this document")
	v.SetDefault("pipeline.language", "")

	v.SetDefault("anonymize.names", "")
	v.SetDefault("anonymize.patterns", "")

	v.SetDefault("loinc.source", "builtin")
	v.SetDefault("loinc.table_path", "")
	v.SetDefault("loinc.fuzzy_threshold", 0.80)

	// Bind environment variables explicitly for nested keys
	envBindings := map[string]string{
		"server.port":             "BLOODAGENT_SERVER_PORT",
		"server.read_timeout":     "BLOODAGENT_SERVER_READ_TIMEOUT",
		"server.write_timeout":    "BLOODAGENT_SERVER_WRITE_TIMEOUT",
		"server.environment":      "BLOODAGENT_SERVER_ENVIRONMENT",
		"server.max_upload_mb":    "BLOODAGENT_SERVER_MAX_UPLOAD_MB",
		"db.enabled":              "BLOODAGENT_DB_ENABLED",
		"db.host":                 "BLOODAGENT_DB_HOST",
		"db.port":                 "BLOODAGENT_DB_PORT",
		"db.user":                 "BLOODAGENT_DB_USER",
		"db.password":             "BLOODAGENT_DB_PASSWORD",
		"db.name":                 "BLOODAGENT_DB_NAME",
		"db.sslmode":              "BLOODAGENT_DB_SSLMODE",
		"db.max_open":             "BLOODAGENT_DB_MAX_OPEN",
		"db.max_idle":             "BLOODAGENT_DB_MAX_IDLE",
		"s3.enabled":              "BLOODAGENT_S3_ENABLED",
		"s3.region":               "BLOODAGENT_S3_REGION",
		"s3.endpoint":             "BLOODAGENT_S3_ENDPOINT",
		"s3.access_key":           "BLOODAGENT_S3_ACCESS_KEY",
		"s3.secret_key":           "BLOODAGENT_S3_SECRET_KEY",
		"s3.silver_bucket":        "BLOODAGENT_S3_SILVER_BUCKET",
		"s3.presign_expiry":       "BLOODAGENT_S3_PRESIGN_EXPIRY",
		"log.level":               "BLOODAGENT_LOG_LEVEL",
		"log.format":              "BLOODAGENT_LOG_FORMAT",
		"cors.allowed_origins":    "BLOODAGENT_CORS_ALLOWED_ORIGINS",
		"provider.max_retries":    "BLOODAGENT_PROVIDER_MAX_RETRIES",
		"provider.backoff_base":   "BLOODAGENT_PROVIDER_BACKOFF_BASE",
		"provider.backoff_max":    "BLOODAGENT_PROVIDER_BACKOFF_MAX",
		"provider.timeout_secs":   "BLOODAGENT_PROVIDER_TIMEOUT_SECS",
		"provider.max_tokens":     "BLOODAGENT_PROVIDER_MAX_TOKENS",
		"pipeline.concurrency":    "BLOODAGENT_PIPELINE_CONCURRENCY",
		"pipeline.stage_timeout":  "BLOODAGENT_PIPELINE_STAGE_TIMEOUT",
		"pipeline.pdf_renderer":   "BLOODAGENT_PIPELINE_PDF_RENDERER",
		"pipeline.pdftoppm_path":  "BLOODAGENT_PIPELINE_PDFTOPPM_PATH",
		"pipeline.render_dpi":     "BLOODAGENT_PIPELINE_RENDER_DPI",
		"pipeline.default_prompt": "BLOODAGENT_PIPELINE_DEFAULT_PROMPT",
		"pipeline.language":       "BLOODAGENT_PIPELINE_LANGUAGE",
		"anonymize.names":         "BLOODAGENT_ANONYMIZE_NAMES",
		"anonymize.patterns":      "BLOODAGENT_ANONYMIZE_PATTERNS",
		"loinc.source":            "BLOODAGENT_LOINC_SOURCE",
		"loinc.table_path":        "BLOODAGENT_LOINC_TABLE_PATH",
		"loinc.fuzzy_threshold":   "BLOODAGENT_LOINC_FUZZY_THRESHOLD",
		"model.provider":          "BLOODAGENT_MODEL_PROVIDER",
		"model.name":              "BLOODAGENT_MODEL_NAME",
		"model.base_url":          "BLOODAGENT_MODEL_BASE_URL",
		"model.api_key":           "BLOODAGENT_MODEL_API_KEY",
		"model.openai_api_key":    "BLOODAGENT_MODEL_OPENAI_API_KEY",
		"model.anthropic_api_key": "BLOODAGENT_MODEL_ANTHROPIC_API_KEY",
		"model.gemini_api_key":    "BLOODAGENT_MODEL_GEMINI_API_KEY",
		"model.ollama_api_key":    "BLOODAGENT_MODEL_OLLAMA_API_KEY",
	}
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	// Vendor-standard variable names are honoured when the prefixed ones are absent.
	vendorBindings := map[string]string{
		"model.provider":          "MODEL_PROVIDER",
		"model.name":              "MODEL_NAME",
		"model.base_url":          "MODEL_BASE_URL",
		"model.openai_api_key":    "OPENAI_API_KEY",
		"model.anthropic_api_key": "ANTHROPIC_API_KEY",
		"model.gemini_api_key":    "GEMINI_API_KEY",
		"model.ollama_api_key":    "OLLAMA_API_KEY",
	}
	for key, env := range vendorBindings {
		_ = v.BindEnv(key, envBindings[key], env)
	}

	cfg := &Config{}

	serverPort := v.GetString("server.port")
	if port := os.Getenv("PORT"); port != "" && os.Getenv("BLOODAGENT_SERVER_PORT") == "" {
		serverPort = ":" + port
	}

	cfg.Server = ServerConfig{
		Port:         serverPort,
		ReadTimeout:  v.GetDuration("server.read_timeout"),
		WriteTimeout: v.GetDuration("server.write_timeout"),
		Environment:  v.GetString("server.environment"),
		MaxUploadMB:  v.GetInt64("server.max_upload_mb"),
	}
	cfg.DB = DBConfig{
		Enabled:  v.GetBool("db.enabled"),
		Host:     v.GetString("db.host"),
		Port:     v.GetInt("db.port"),
		User:     v.GetString("db.user"),
		Password: v.GetString("db.password"),
		Name:     v.GetString("db.name"),
		SSLMode:  v.GetString("db.sslmode"),
		MaxOpen:  v.GetInt("db.max_open"),
		MaxIdle:  v.GetInt("db.max_idle"),
	}
	cfg.S3 = S3Config{
		Enabled:       v.GetBool("s3.enabled"),
		Region:        v.GetString("s3.region"),
		Endpoint:      v.GetString("s3.endpoint"),
		AccessKey:     v.GetString("s3.access_key"),
		SecretKey:     v.GetString("s3.secret_key"),
		SilverBucket:  v.GetString("s3.silver_bucket"),
		PresignExpiry: v.GetInt64("s3.presign_expiry"),
	}
	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}
	cfg.CORS = CORSConfig{AllowedOrigins: splitList(v.GetString("cors.allowed_origins"), ",")}

	cfg.Model = ModelEnvConfig{
		Provider:        v.GetString("model.provider"),
		Name:            v.GetString("model.name"),
		BaseURL:         v.GetString("model.base_url"),
		APIKey:          v.GetString("model.api_key"),
		OpenAIAPIKey:    v.GetString("model.openai_api_key"),
		AnthropicAPIKey: v.GetString("model.anthropic_api_key"),
		GeminiAPIKey:    v.GetString("model.gemini_api_key"),
		OllamaAPIKey:    v.GetString("model.ollama_api_key"),
	}
	cfg.Provider = ProviderConfig{
		MaxRetries:  v.GetInt("provider.max_retries"),
		BackoffBase: v.GetDuration("provider.backoff_base"),
		BackoffMax:  v.GetDuration("provider.backoff_max"),
		TimeoutSecs: v.GetInt("provider.timeout_secs"),
		MaxTokens:   v.GetInt("provider.max_tokens"),
	}
	cfg.Pipeline = PipelineConfig{
		Concurrency:   v.GetInt("pipeline.concurrency"),
		StageTimeout:  v.GetDuration("pipeline.stage_timeout"),
		PDFRenderer:   v.GetString("pipeline.pdf_renderer"),
		PdftoppmPath:  v.GetString("pipeline.pdftoppm_path"),
		RenderDPI:     v.GetInt("pipeline.render_dpi"),
		DefaultPrompt: v.GetString("pipeline.default_prompt"),
		Language:      v.GetString("pipeline.language"),
	}
	cfg.Anonymize = AnonymizeConfig{
		Names:    splitList(v.GetString("anonymize.names"), ","),
		Patterns: splitList(v.GetString("anonymize.patterns"), ";;"),
	}
	cfg.LOINC = LOINCConfig{
		Source:         v.GetString("loinc.source"),
		TablePath:      v.GetString("loinc.table_path"),
		FuzzyThreshold: v.GetFloat64("loinc.fuzzy_threshold"),
	}

	if cfg.Pipeline.Concurrency < 1 {
		return nil, &ConfigurationError{Field: "pipeline.concurrency", Reason: "must be at least 1"}
	}
	if cfg.LOINC.FuzzyThreshold <= 0 || cfg.LOINC.FuzzyThreshold > 1 {
		return nil, &ConfigurationError{Field: "loinc.fuzzy_threshold", Reason: "must be in (0, 1]"}
	}

	return cfg, nil
}

func splitList(raw, sep string) []string {
	var out []string
	for _, item := range strings.Split(raw, sep) {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
