// Package config provides application configuration management with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (./config.yaml or ~/.finsight/config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - AI: provider, generation model, embedder model and dimensions
//   - Storage: PostgreSQL connection (see storage.go)
//   - Quota: per-session and per-IP daily query limits
//   - Server: listen address, CORS, proxy trust, per-IP burst limiting
//   - Retention: cleanup schedule for quota counters and idle sessions
//   - Tracing: OTLP trace export (see tracing.go)
//
// Sensitive values (passwords, API keys) are never logged; Config masks them
// in MarshalJSON and String. Validation lives in validation.go and returns
// sentinel errors checkable with errors.Is().
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required provider API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidProvider indicates the AI provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidModelName indicates the model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidEmbedderDimension indicates the embedder dimension does not
	// match the vector columns in the database schema.
	ErrInvalidEmbedderDimension = errors.New("incompatible embedder dimension")

	// ErrInvalidQuotaLimit indicates a daily quota limit is out of range.
	ErrInvalidQuotaLimit = errors.New("invalid quota limit")

	// ErrInvalidTopK indicates the retrieval top-k value is out of range.
	ErrInvalidTopK = errors.New("invalid top-k")

	// ErrInvalidRetention indicates a retention period is out of range.
	ErrInvalidRetention = errors.New("invalid retention")

	// ErrInvalidServerPort indicates the HTTP listen port is out of range.
	ErrInvalidServerPort = errors.New("invalid server port")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresPassword indicates the PostgreSQL password is invalid.
	ErrInvalidPostgresPassword = errors.New("invalid PostgreSQL password")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")
)

const (
	// DefaultModelName is the generation model used for classification,
	// SQL generation and answer synthesis.
	DefaultModelName = "gpt-4o-mini"

	// DefaultEmbedderModel is the embedding model for vector search.
	DefaultEmbedderModel = "text-embedding-3-small"

	// DefaultEmbedderDimensions matches the vector(1536) columns in the
	// document chunk tables. Changing this requires re-embedding the corpus.
	DefaultEmbedderDimensions = 1536

	// DefaultSessionDailyLimit is the per-session query quota per UTC day.
	DefaultSessionDailyLimit = 30

	// DefaultIPDailyLimit is the per-IP query quota per UTC day. It is an
	// abuse backstop across sessions, deliberately much higher than the
	// session limit.
	DefaultIPDailyLimit = 1000
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderOpenAI   = "openai"
	ProviderGemini   = "gemini"
	ProviderGoogleAI = "googleai"
)

// Config stores application configuration.
// SECURITY: Sensitive fields are explicitly masked in MarshalJSON().
// When adding new sensitive fields (passwords, API keys, tokens), update MarshalJSON.
type Config struct {
	// AI provider and model configuration
	Provider           string `mapstructure:"provider" json:"provider"`     // "openai" (default) or "gemini"
	ModelName          string `mapstructure:"model_name" json:"model_name"` // e.g. "gpt-4o-mini"
	EmbedderModel      string `mapstructure:"embedder_model" json:"embedder_model"`
	EmbedderDimensions int    `mapstructure:"embedder_dimensions" json:"embedder_dimensions"`

	// Retrieval configuration
	TopK int `mapstructure:"top_k" json:"top_k"` // chunks per corpus before merge

	// Quota configuration (counted per UTC day)
	SessionDailyLimit int `mapstructure:"session_daily_limit" json:"session_daily_limit"`
	IPDailyLimit      int `mapstructure:"ip_daily_limit" json:"ip_daily_limit"`

	// Storage configuration (see storage.go for documentation)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// HTTP server configuration
	ServerHost  string   `mapstructure:"server_host" json:"server_host"`
	ServerPort  int      `mapstructure:"server_port" json:"server_port"`
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`
	TrustProxy  bool     `mapstructure:"trust_proxy" json:"trust_proxy"` // Trust X-Real-IP/X-Forwarded-For (set true behind reverse proxy)
	RateBurst   int      `mapstructure:"rate_burst" json:"rate_burst"`   // Per-IP token bucket burst (0 = default)

	// Retention configuration (see cmd cleanup and the cron scheduler)
	QuotaRetentionDays   int    `mapstructure:"quota_retention_days" json:"quota_retention_days"`
	SessionRetentionDays int    `mapstructure:"session_retention_days" json:"session_retention_days"`
	CleanupSchedule      string `mapstructure:"cleanup_schedule" json:"cleanup_schedule"` // cron expression, empty disables

	// Tracing configuration (see tracing.go for type definition)
	Tracing TracingConfig `mapstructure:"tracing" json:"tracing"`
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	// Configuration directory: ~/.finsight/
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".finsight")

	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".") // Also support current directory

	setDefaults()
	bindEnvVariables()

	// Read configuration file (if exists)
	if err := viper.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."},
			"config_name", "config.yaml")
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL overrides the individual postgres_* settings
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	// AI defaults
	viper.SetDefault("provider", ProviderOpenAI)
	viper.SetDefault("model_name", DefaultModelName)
	viper.SetDefault("embedder_model", DefaultEmbedderModel)
	viper.SetDefault("embedder_dimensions", DefaultEmbedderDimensions)

	// Retrieval defaults
	viper.SetDefault("top_k", 5)

	// Quota defaults
	viper.SetDefault("session_daily_limit", DefaultSessionDailyLimit)
	viper.SetDefault("ip_daily_limit", DefaultIPDailyLimit)

	// PostgreSQL defaults (matching docker-compose.yml)
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "finsight")
	viper.SetDefault("postgres_password", "finsight_dev_password")
	viper.SetDefault("postgres_db_name", "finsight")
	viper.SetDefault("postgres_ssl_mode", "disable")

	// Server defaults
	viper.SetDefault("server_host", "0.0.0.0")
	viper.SetDefault("server_port", 8080)
	viper.SetDefault("cors_origins", []string{"http://localhost:5173"})
	viper.SetDefault("trust_proxy", false)
	viper.SetDefault("rate_burst", 0)

	// Retention defaults: quota counters are only needed for the current day,
	// 90 days keeps usage history for abuse review; sessions idle for 180
	// days are dropped together with their quota rows.
	viper.SetDefault("quota_retention_days", 90)
	viper.SetDefault("session_retention_days", 180)
	viper.SetDefault("cleanup_schedule", "0 4 * * *")

	// Tracing defaults
	viper.SetDefault("tracing.endpoint", "localhost:4318")
	viper.SetDefault("tracing.environment", "dev")
	viper.SetDefault("tracing.service_name", "finsight")
}

// bindEnvVariables binds environment variable overrides explicitly.
// Provider API keys are NOT bound here: OPENAI_API_KEY and GEMINI_API_KEY are
// read directly by the Genkit plugins; Validate() only checks their presence.
func bindEnvVariables() {
	// Hardcoded keys cannot fail to bind; a panic here is a bug, not a
	// runtime error.
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("provider", "FINSIGHT_PROVIDER")
	mustBind("model_name", "FINSIGHT_MODEL_NAME")
	mustBind("embedder_model", "FINSIGHT_EMBEDDER_MODEL")

	mustBind("server_host", "FINSIGHT_SERVER_HOST")
	mustBind("server_port", "FINSIGHT_SERVER_PORT")
	mustBind("cors_origins", "FINSIGHT_CORS_ORIGINS")
	mustBind("trust_proxy", "FINSIGHT_TRUST_PROXY")

	mustBind("session_daily_limit", "FINSIGHT_SESSION_DAILY_LIMIT")
	mustBind("ip_daily_limit", "FINSIGHT_IP_DAILY_LIMIT")

	mustBind("tracing.endpoint", "FINSIGHT_OTLP_ENDPOINT")
	mustBind("tracing.environment", "FINSIGHT_ENVIRONMENT")
}

// maskedValue is the placeholder for masked sensitive data.
// Full-width blocks (U+2588) avoid accidental substring matches against the
// real secret.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging.
// Secrets of 8 characters or fewer are fully masked; longer secrets keep the
// first and last 2 characters for debug utility. This defends against
// accidental logging, not against compromised logs.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
// When adding new sensitive fields, update this method.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// FullModelName returns the provider-qualified model name for Genkit.
// Examples: "openai/gpt-4o-mini", "googleai/gemini-2.5-flash".
// If ModelName already contains a "/", it is returned as-is.
func (c *Config) FullModelName() string {
	if strings.Contains(c.ModelName, "/") {
		return c.ModelName
	}
	switch c.Provider {
	case ProviderGemini, ProviderGoogleAI:
		return ProviderGoogleAI + "/" + c.ModelName
	default:
		return ProviderOpenAI + "/" + c.ModelName
	}
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
