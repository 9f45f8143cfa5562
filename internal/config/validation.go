package config

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	// 1. Provider and API key validation. The keys themselves are read by
	// the Genkit plugins; only their presence is checked here (fail-fast).
	switch c.Provider {
	case ProviderOpenAI, "":
		if os.Getenv("OPENAI_API_KEY") == "" {
			return fmt.Errorf("%w: OPENAI_API_KEY environment variable is required", ErrMissingAPIKey)
		}
	case ProviderGemini, ProviderGoogleAI:
		if os.Getenv("GEMINI_API_KEY") == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY environment variable is required", ErrMissingAPIKey)
		}
	default:
		return fmt.Errorf("%w: %q is not supported (use openai or gemini)", ErrInvalidProvider, c.Provider)
	}

	// 2. Model configuration
	if c.ModelName == "" {
		return fmt.Errorf("%w: model_name cannot be empty", ErrInvalidModelName)
	}
	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder_model cannot be empty", ErrInvalidEmbedderModel)
	}

	// The pgvector columns are declared vector(1536); a mismatched embedder
	// dimension fails at insert time with a confusing error, so reject early.
	if c.EmbedderDimensions != DefaultEmbedderDimensions {
		return fmt.Errorf("%w: schema requires %d dimensions, got %d",
			ErrInvalidEmbedderDimension, DefaultEmbedderDimensions, c.EmbedderDimensions)
	}

	// 3. Retrieval configuration
	if c.TopK < 1 || c.TopK > 10 {
		return fmt.Errorf("%w: must be between 1 and 10, got %d", ErrInvalidTopK, c.TopK)
	}

	// 4. Quota configuration. The IP limit backstops many sessions behind
	// one address, so it must not be lower than the session limit.
	if c.SessionDailyLimit < 1 {
		return fmt.Errorf("%w: session_daily_limit must be at least 1, got %d",
			ErrInvalidQuotaLimit, c.SessionDailyLimit)
	}
	if c.IPDailyLimit < c.SessionDailyLimit {
		return fmt.Errorf("%w: ip_daily_limit (%d) must be >= session_daily_limit (%d)",
			ErrInvalidQuotaLimit, c.IPDailyLimit, c.SessionDailyLimit)
	}

	// 5. Retention configuration
	if c.QuotaRetentionDays < 1 {
		return fmt.Errorf("%w: quota_retention_days must be at least 1, got %d",
			ErrInvalidRetention, c.QuotaRetentionDays)
	}
	if c.SessionRetentionDays < 1 {
		return fmt.Errorf("%w: session_retention_days must be at least 1, got %d",
			ErrInvalidRetention, c.SessionRetentionDays)
	}

	// 6. Server configuration
	if c.ServerPort < 1 || c.ServerPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidServerPort, c.ServerPort)
	}

	// 7. PostgreSQL configuration
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}
	if c.PostgresPassword == "" {
		return fmt.Errorf("%w: postgres_password must be set", ErrInvalidPostgresPassword)
	}
	if c.PostgresPassword == "finsight_dev_password" {
		slog.Warn("using default development password for PostgreSQL",
			"warning", "change postgres_password for production deployments")
	}
	if len(c.PostgresPassword) < 8 {
		return fmt.Errorf("%w: postgres_password must be at least 8 characters (got %d)",
			ErrInvalidPostgresPassword, len(c.PostgresPassword))
	}

	// Modern SSL modes only; allow/prefer are deprecated (MITM vulnerable).
	validSSLModes := []string{"disable", "require", "verify-ca", "verify-full"}
	if !slices.Contains(validSSLModes, c.PostgresSSLMode) {
		return fmt.Errorf("%w: %q is not valid, must be one of: %v",
			ErrInvalidPostgresSSLMode, c.PostgresSSLMode, validSSLModes)
	}

	return nil
}
