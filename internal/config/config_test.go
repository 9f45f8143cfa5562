package config

import (
	"os"
	"strings"
	"testing"

	"github.com/spf13/viper"
)

// setTestEnv points HOME at a temp dir (no config.yaml = pure defaults) and
// provides the API key Validate() requires.
func setTestEnv(t *testing.T) {
	t.Helper()

	viper.Reset()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("OPENAI_API_KEY", "sk-test-key")
	t.Setenv("DATABASE_URL", "")
	_ = os.Unsetenv("DATABASE_URL")
}

func TestLoadDefaults(t *testing.T) {
	setTestEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Provider != ProviderOpenAI {
		t.Errorf("expected default provider %q, got %q", ProviderOpenAI, cfg.Provider)
	}
	if cfg.ModelName != DefaultModelName {
		t.Errorf("expected default model %q, got %q", DefaultModelName, cfg.ModelName)
	}
	if cfg.EmbedderModel != DefaultEmbedderModel {
		t.Errorf("expected default embedder %q, got %q", DefaultEmbedderModel, cfg.EmbedderModel)
	}
	if cfg.EmbedderDimensions != DefaultEmbedderDimensions {
		t.Errorf("expected %d dimensions, got %d", DefaultEmbedderDimensions, cfg.EmbedderDimensions)
	}
	if cfg.SessionDailyLimit != DefaultSessionDailyLimit {
		t.Errorf("expected session limit %d, got %d", DefaultSessionDailyLimit, cfg.SessionDailyLimit)
	}
	if cfg.IPDailyLimit != DefaultIPDailyLimit {
		t.Errorf("expected IP limit %d, got %d", DefaultIPDailyLimit, cfg.IPDailyLimit)
	}
	if cfg.TopK != 5 {
		t.Errorf("expected default top_k 5, got %d", cfg.TopK)
	}
	if cfg.ServerPort != 8080 {
		t.Errorf("expected default server port 8080, got %d", cfg.ServerPort)
	}
	if cfg.CleanupSchedule != "0 4 * * *" {
		t.Errorf("expected default cleanup schedule, got %q", cfg.CleanupSchedule)
	}
}

func TestEnvironmentVariableOverride(t *testing.T) {
	setTestEnv(t)
	t.Setenv("FINSIGHT_MODEL_NAME", "gpt-4o")
	t.Setenv("FINSIGHT_SESSION_DAILY_LIMIT", "50")
	t.Setenv("FINSIGHT_TRUST_PROXY", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.ModelName != "gpt-4o" {
		t.Errorf("expected env override model 'gpt-4o', got %q", cfg.ModelName)
	}
	if cfg.SessionDailyLimit != 50 {
		t.Errorf("expected env override session limit 50, got %d", cfg.SessionDailyLimit)
	}
	if !cfg.TrustProxy {
		t.Error("expected trust_proxy override to true")
	}
}

func TestMaskSecret(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "empty", input: "", want: ""},
		{name: "short fully masked", input: "secret", want: maskedValue},
		{name: "exactly eight fully masked", input: "12345678", want: maskedValue},
		{name: "long keeps edges", input: "my_long_secret_key_123", want: "my<" + maskedValue + ">23"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := maskSecret(tt.input); got != tt.want {
				t.Errorf("maskSecret(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestConfig_MarshalJSON_MasksPassword(t *testing.T) {
	cfg := Config{PostgresPassword: "super_secret_password"}

	data, err := cfg.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON() failed: %v", err)
	}

	out := string(data)
	if strings.Contains(out, "super_secret_password") {
		t.Error("password leaked in JSON output")
	}
	if !strings.Contains(out, maskedValue) {
		t.Error("expected masked placeholder in JSON output")
	}
}

func TestConfig_String_MasksPassword(t *testing.T) {
	cfg := Config{PostgresPassword: "another_secret_pw"}
	if strings.Contains(cfg.String(), "another_secret_pw") {
		t.Error("password leaked in String() output")
	}
}

func TestFullModelName(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		model    string
		want     string
	}{
		{name: "openai", provider: ProviderOpenAI, model: "gpt-4o-mini", want: "openai/gpt-4o-mini"},
		{name: "gemini maps to googleai", provider: ProviderGemini, model: "gemini-2.5-flash", want: "googleai/gemini-2.5-flash"},
		{name: "already qualified", provider: ProviderOpenAI, model: "openai/gpt-4o", want: "openai/gpt-4o"},
		{name: "empty provider defaults openai", provider: "", model: "gpt-4o-mini", want: "openai/gpt-4o-mini"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Provider: tt.provider, ModelName: tt.model}
			if got := cfg.FullModelName(); got != tt.want {
				t.Errorf("FullModelName() = %q, want %q", got, tt.want)
			}
		})
	}
}
