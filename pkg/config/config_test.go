package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	// Create temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configData := `
embedding:
  provider: "openai"
  base_url: "http://192.168.2.120:9997/v1"
  model: "bge-m3"
  api_key: "sk-test"
  rate_limit: 4

llm:
  provider: "openai"
  base_url: "http://192.168.2.120:8207/v1"
  model: "Qwen3-32B"
  max_tokens: 1000
  temperature: 0.5

index:
  backend: "sqlite"
  path: "/tmp/vector_db"
  collection: "resume_collection"
  purge_mode: "disabled"

extraction:
  min_chars: 80

retrieval:
  top_k: 3

server:
  ingest_root: "/srv/resumes"
  allowed_origins:
    - "https://hr.example.com"

log:
  json: true
`
	err := os.WriteFile(configPath, []byte(configData), 0644)
	require.NoError(t, err)

	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, "openai", config.Embedding.Provider)
	assert.Equal(t, "http://192.168.2.120:9997/v1", config.Embedding.BaseURL)
	assert.Equal(t, 4.0, config.Embedding.RateLimit)
	assert.Equal(t, "Qwen3-32B", config.LLM.Model)
	assert.Equal(t, 1000, config.LLM.MaxTokens)
	assert.Equal(t, "/tmp/vector_db", config.Index.Path)
	assert.Equal(t, "disabled", config.Index.PurgeMode)
	assert.Equal(t, 80, config.Extraction.MinChars)
	assert.Equal(t, 3, config.Retrieval.TopK)
	assert.True(t, config.Log.JSON)
	assert.Equal(t, "/srv/resumes", config.Server.IngestRoot)
	assert.Equal(t, []string{"https://hr.example.com"}, config.Server.AllowedOrigins)

	// defaults fill the rest
	assert.Equal(t, "default_tenant", config.Index.Tenant)
	assert.Equal(t, "default_database", config.Index.Database)
	assert.Equal(t, 2, config.Extraction.MinKeywords)
	assert.Empty(t, config.Validate())
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestConfigValidation(t *testing.T) {
	valid := &Config{}
	applyDefaults(valid)

	invalid := &Config{}
	applyDefaults(invalid)
	invalid.Embedding.Provider = "xinference"
	invalid.LLM.MaxTokens = 10000
	invalid.LLM.Temperature = 3.0
	invalid.Index.Backend = "pgvector"
	invalid.Index.PurgeMode = "delete"

	tests := []struct {
		name          string
		config        *Config
		expectedErrs  int
		errorMessages []string
	}{
		{
			name:         "defaults are valid",
			config:       valid,
			expectedErrs: 0,
		},
		{
			name:         "invalid config",
			config:       invalid,
			expectedErrs: 5,
			errorMessages: []string{
				"embedding.provider: unknown embedding provider",
				"llm.max_tokens: max_tokens must be between 1 and 8192",
				"llm.temperature: temperature must be between 0 and 2",
				"index.url: database URL is required",
				"index.purge_mode: purge_mode must be rebuild or disabled",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errors := tt.config.Validate()
			assert.Len(t, errors, tt.expectedErrs)

			for i, msg := range tt.errorMessages {
				assert.Contains(t, errors[i].Error(), msg)
			}
		})
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("OLLAMA_BASE_URL", "http://env-ollama:11434")
	t.Setenv("DATABASE_URL", "postgres://env-db:5432/test")
	t.Setenv("SCREENER_INDEX_PATH", "/srv/index")
	t.Setenv("GEMINI_API_KEY", "gm-key")
	t.Setenv("SCREENER_INGEST_ROOT", "/srv/inbox")

	config := &Config{}
	config.Embedding.Provider = "gemini"
	mergeWithEnv(config)

	assert.Empty(t, config.Embedding.BaseURL)
	assert.Equal(t, "gm-key", config.Embedding.APIKey)
	assert.Equal(t, "http://env-ollama:11434", config.LLM.BaseURL)
	assert.Equal(t, "postgres://env-db:5432/test", config.Index.URL)
	assert.Equal(t, "/srv/index", config.Index.Path)
	assert.Equal(t, "/srv/inbox", config.Server.IngestRoot)
}
