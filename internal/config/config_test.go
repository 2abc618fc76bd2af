package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, "auth:\n  secret: s3cret\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, 3, cfg.Pipeline.RenderMaxAttempts)
	assert.Equal(t, time.Second, cfg.Pipeline.RenderDelay)
	assert.Equal(t, DefaultBusinessRequirements, cfg.Pipeline.BusinessRequirements)
	assert.True(t, cfg.LLM.Stream)
	assert.Equal(t, 4096, cfg.LLM.MaxTokens)
	assert.Equal(t, "sqlite", cfg.Storage.Type)
	assert.Equal(t, []string{"{input}", "{output}"}, cfg.Renderer.Args)
	assert.Equal(t, 30*time.Minute, cfg.Auth.AccessTokenTTL)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
auth:
  secret: s3cret
pipeline:
  render_max_attempts: 5
  render_delay: 250ms
storage:
  type: memory
llm:
  model: local-model
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Pipeline.RenderMaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.Pipeline.RenderDelay)
	assert.Equal(t, "memory", cfg.Storage.Type)
	assert.Equal(t, "local-model", cfg.LLM.Model)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, "storage:\n  type: memory\n")
	t.Setenv("BPMN_AUTH_SECRET", "from-env")
	t.Setenv("BPMN_LLM_MAX_TOKENS", "128")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Auth.Secret)
	assert.Equal(t, 128, cfg.LLM.MaxTokens)
}

func TestLoad_LegacyLLMVariables(t *testing.T) {
	path := writeConfig(t, "auth:\n  secret: s3cret\n")
	t.Setenv("CHUTES_API_KEY", "cpk_test")
	t.Setenv("CHUTES_API_URL", "http://localhost:1111/v1/chat/completions")
	t.Setenv("MODEL_ID", "deepseek-ai/deepseek-llm-7b-chat")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "cpk_test", cfg.LLM.APIKey)
	assert.Equal(t, "http://localhost:1111/v1/chat/completions", cfg.LLM.BaseURL)
	assert.Equal(t, "deepseek-ai/deepseek-llm-7b-chat", cfg.LLM.Model)
}

func TestLoad_LegacyVariablesDoNotOverrideFile(t *testing.T) {
	path := writeConfig(t, "auth:\n  secret: s3cret\nllm:\n  model: pinned\n")
	t.Setenv("MODEL_ID", "other")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "pinned", cfg.LLM.Model)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"missing secret", "storage:\n  type: memory\n", "auth.secret"},
		{"zero attempts", "auth:\n  secret: x\npipeline:\n  render_max_attempts: 0\n", "render_max_attempts"},
		{"bad storage", "auth:\n  secret: x\nstorage:\n  type: mongo\n", "unsupported storage type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
