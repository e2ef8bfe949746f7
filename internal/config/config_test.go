package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	cfg := Config{
		Credentials: CredentialsConfig{
			GoogleAPIKey: "g",
			GroqAPIKey:   "q",
			TavilyAPIKey: "t",
			OpenAIAPIKey: "o",
		},
	}
	cfg.applyDefaults()
	return cfg
}

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	t.Setenv("TEST_OPENAI_KEY", "from-env")

	yamlContent := `
app:
  name: "support"
data:
  dir: "` + tmpDir + `"
retriever:
  top_k: 3
approvals:
  required: true
  ttl: 5m
credentials:
  google_api_key: "g"
  groq_api_key: "q"
  tavily_api_key: "t"
  openai_api_key: "${TEST_OPENAI_KEY}"
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0o644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "support", cfg.App.Name)
	assert.Equal(t, "from-env", cfg.Credentials.OpenAIAPIKey)
	assert.Equal(t, 3, cfg.Retriever.TopK)
	assert.True(t, cfg.Approvals.Required)
	assert.Equal(t, 5*time.Minute, cfg.Approvals.TTL)
	assert.Equal(t, filepath.Join(tmpDir, "travel2.sqlite"), cfg.Data.WorkingPath())
	assert.Equal(t, filepath.Join(tmpDir, "travel2.backup.sqlite"), cfg.Data.SnapshotPath())
}

func TestLoadConfig_MissingCredentials(t *testing.T) {
	for _, name := range RequiredCredentials {
		t.Setenv(name, "")
	}

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("app:\n  name: x\n"), 0o644))

	_, err := Load(configPath)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestCredentialsFromEnvironment(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "g")
	t.Setenv("GROQ_API_KEY", "q")
	t.Setenv("TAVILY_API_KEY", "t")
	t.Setenv("OPENAI_API_KEY", "o")

	cfg := &Config{}
	cfg.applyDefaults()
	assert.Empty(t, cfg.MissingCredentials())
	assert.NoError(t, cfg.Validate())
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "missing tavily key",
			mutate:  func(c *Config) { c.Credentials.TavilyAPIKey = " " },
			wantErr: true,
		},
		{
			name:    "same working and snapshot file",
			mutate:  func(c *Config) { c.Data.SnapshotFile = c.Data.WorkingFile },
			wantErr: true,
		},
		{
			name:    "unknown provider",
			mutate:  func(c *Config) { c.Retriever.Provider = "chroma" },
			wantErr: true,
		},
		{
			name:    "zero top_k",
			mutate:  func(c *Config) { c.Retriever.TopK = 0 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	if cfg.Data.SnapshotURL != DefaultSnapshotURL {
		t.Errorf("expected default snapshot url, got %s", cfg.Data.SnapshotURL)
	}
	if cfg.Data.ReferenceTable != "flights" || cfg.Data.ReferenceColumn != "actual_departure" {
		t.Errorf("unexpected reference %s.%s", cfg.Data.ReferenceTable, cfg.Data.ReferenceColumn)
	}
	if len(cfg.Data.ShiftColumns["flights"]) != 4 {
		t.Errorf("expected 4 flight shift columns, got %v", cfg.Data.ShiftColumns["flights"])
	}
	if cfg.Retriever.Model != "text-embedding-3-small" {
		t.Errorf("expected openai default model, got %s", cfg.Retriever.Model)
	}
	if cfg.Retriever.TopK != 2 {
		t.Errorf("expected default top_k 2, got %d", cfg.Retriever.TopK)
	}
	if cfg.API.HTTP.Port != 8080 {
		t.Errorf("expected default http port 8080, got %d", cfg.API.HTTP.Port)
	}
}

func TestApplyDefaults_GeminiModel(t *testing.T) {
	cfg := &Config{Retriever: RetrieverConfig{Provider: "gemini"}}
	cfg.applyDefaults()
	assert.Equal(t, "text-embedding-004", cfg.Retriever.Model)
}

func TestCredentialsHelp(t *testing.T) {
	help := CredentialsHelp()
	for _, name := range RequiredCredentials {
		assert.Contains(t, help, name+"=")
	}
}
