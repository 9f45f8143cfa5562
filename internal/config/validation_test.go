package config

import (
	"errors"
	"testing"
)

// validConfig returns a configuration that passes Validate().
func validConfig() *Config {
	return &Config{
		Provider:             ProviderOpenAI,
		ModelName:            DefaultModelName,
		EmbedderModel:        DefaultEmbedderModel,
		EmbedderDimensions:   DefaultEmbedderDimensions,
		TopK:                 5,
		SessionDailyLimit:    30,
		IPDailyLimit:         1000,
		QuotaRetentionDays:   90,
		SessionRetentionDays: 180,
		ServerPort:           8080,
		PostgresHost:         "localhost",
		PostgresPort:         5432,
		PostgresUser:         "finsight",
		PostgresPassword:     "perfectly-fine-password",
		PostgresDBName:       "finsight",
		PostgresSSLMode:      "disable",
	}
}

func TestValidateSuccess(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	if err := validConfig().Validate(); err != nil {
		t.Fatalf("Validate() failed on valid config: %v", err)
	}
}

func TestValidateNilConfig(t *testing.T) {
	var cfg *Config
	if err := cfg.Validate(); !errors.Is(err, ErrConfigNil) {
		t.Errorf("expected ErrConfigNil, got %v", err)
	}
}

func TestValidateMissingAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	if err := validConfig().Validate(); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestValidateGeminiAPIKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")

	cfg := validConfig()
	cfg.Provider = ProviderGemini
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() failed for gemini provider: %v", err)
	}
}

func TestValidateFieldErrors(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:    "unknown provider",
			mutate:  func(c *Config) { c.Provider = "anthropic" },
			wantErr: ErrInvalidProvider,
		},
		{
			name:    "empty model",
			mutate:  func(c *Config) { c.ModelName = "" },
			wantErr: ErrInvalidModelName,
		},
		{
			name:    "empty embedder",
			mutate:  func(c *Config) { c.EmbedderModel = "" },
			wantErr: ErrInvalidEmbedderModel,
		},
		{
			name:    "wrong dimensions",
			mutate:  func(c *Config) { c.EmbedderDimensions = 768 },
			wantErr: ErrInvalidEmbedderDimension,
		},
		{
			name:    "top_k too large",
			mutate:  func(c *Config) { c.TopK = 50 },
			wantErr: ErrInvalidTopK,
		},
		{
			name:    "top_k zero",
			mutate:  func(c *Config) { c.TopK = 0 },
			wantErr: ErrInvalidTopK,
		},
		{
			name:    "session limit zero",
			mutate:  func(c *Config) { c.SessionDailyLimit = 0 },
			wantErr: ErrInvalidQuotaLimit,
		},
		{
			name:    "ip limit below session limit",
			mutate:  func(c *Config) { c.IPDailyLimit = 10 },
			wantErr: ErrInvalidQuotaLimit,
		},
		{
			name:    "quota retention zero",
			mutate:  func(c *Config) { c.QuotaRetentionDays = 0 },
			wantErr: ErrInvalidRetention,
		},
		{
			name:    "server port out of range",
			mutate:  func(c *Config) { c.ServerPort = 70000 },
			wantErr: ErrInvalidServerPort,
		},
		{
			name:    "empty postgres host",
			mutate:  func(c *Config) { c.PostgresHost = "" },
			wantErr: ErrInvalidPostgresHost,
		},
		{
			name:    "postgres port out of range",
			mutate:  func(c *Config) { c.PostgresPort = 0 },
			wantErr: ErrInvalidPostgresPort,
		},
		{
			name:    "empty db name",
			mutate:  func(c *Config) { c.PostgresDBName = "" },
			wantErr: ErrInvalidPostgresDBName,
		},
		{
			name:    "short password",
			mutate:  func(c *Config) { c.PostgresPassword = "short" },
			wantErr: ErrInvalidPostgresPassword,
		},
		{
			name:    "deprecated ssl mode",
			mutate:  func(c *Config) { c.PostgresSSLMode = "prefer" },
			wantErr: ErrInvalidPostgresSSLMode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}
