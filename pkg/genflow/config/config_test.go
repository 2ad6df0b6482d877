package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/flowmarket/genflow/pkg/genflow/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Accessors(t *testing.T) {
	cfg := config.New(map[string]any{
		"name":    "genflow",
		"count":   3,
		"ratio":   0.7,
		"enabled": true,
		"wait":    "45s",
		"seconds": 30,
	})

	assert.Equal(t, "genflow", cfg.String("name", "fallback"))
	assert.Equal(t, "fallback", cfg.String("missing", "fallback"))
	assert.Equal(t, 3, cfg.Int("count", 0))
	assert.Equal(t, 0.7, cfg.Float("ratio", 0))
	assert.True(t, cfg.Bool("enabled", false))
	assert.Equal(t, 45*time.Second, cfg.Duration("wait", 0))
	assert.Equal(t, 30*time.Second, cfg.Duration("seconds", 0))
	assert.True(t, cfg.Has("name"))
	assert.False(t, cfg.Has("missing"))
}

func TestConfig_WrongTypesFallBack(t *testing.T) {
	cfg := config.New(map[string]any{
		"name":  42,
		"count": "three",
		"wait":  "not a duration",
	})

	assert.Equal(t, "fallback", cfg.String("name", "fallback"))
	assert.Equal(t, 7, cfg.Int("count", 7))
	assert.Equal(t, time.Minute, cfg.Duration("wait", time.Minute))
}

func TestFromYAML(t *testing.T) {
	cfg, err := config.FromYAML([]byte(`
addr: ":8080"
azure:
  endpoint: https://myresource.openai.azure.com
  deployment: gpt-4o
generation:
  max_retries: 1
  timeout: 30s
  temperature: 0.5
`))
	require.NoError(t, err)

	svc := config.ServiceFromConfig(cfg)
	assert.Equal(t, ":8080", svc.Addr)
	assert.Equal(t, "https://myresource.openai.azure.com", svc.Azure.Endpoint)
	assert.Equal(t, "gpt-4o", svc.Azure.Deployment)
	assert.Equal(t, 1, svc.Generation.MaxRetries)
	assert.Equal(t, 30*time.Second, svc.Generation.Timeout)
	assert.Equal(t, 0.5, svc.Generation.Temperature)
	// Untouched settings keep their defaults.
	assert.Equal(t, config.DefaultCost, svc.Generation.Cost)
	assert.Equal(t, config.DefaultMaxTokens, svc.Generation.MaxTokens)
	assert.Equal(t, "./genflow.db", svc.SQLitePath)
}

func TestFromYAML_Invalid(t *testing.T) {
	_, err := config.FromYAML([]byte("{invalid: [yaml"))
	assert.Error(t, err)
}

func TestFromJSON(t *testing.T) {
	cfg, err := config.FromJSON([]byte(`{"addr": ":9000", "database_url": "postgres://localhost/genflow"}`))
	require.NoError(t, err)

	svc := config.ServiceFromConfig(cfg)
	assert.Equal(t, ":9000", svc.Addr)
	assert.Equal(t, "postgres://localhost/genflow", svc.DatabaseURL)
}

func TestFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "genflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte("addr: \":7070\"\n"), 0o644))

	cfg, err := config.FromFile(path)
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.String("addr", ""))
}

func TestFromFile_UnsupportedExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "genflow.toml")
	require.NoError(t, os.WriteFile(path, []byte("addr = \":7070\"\n"), 0o644))

	_, err := config.FromFile(path)
	assert.Error(t, err)
}

func TestFromEnv(t *testing.T) {
	t.Setenv(config.EnvAzureEndpoint, "https://myresource.openai.azure.com")
	t.Setenv(config.EnvAzureAPIKey, "secret")
	t.Setenv(config.EnvAzureDeployment, "gpt-4o")
	t.Setenv(config.EnvPort, "5005")
	t.Setenv(config.EnvDatabaseURL, "postgres://localhost/genflow")

	svc, err := config.FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":5005", svc.Addr)
	assert.Equal(t, "https://myresource.openai.azure.com", svc.Azure.Endpoint)
	assert.Equal(t, "secret", svc.Azure.APIKey)
	assert.Equal(t, "gpt-4o", svc.Azure.Deployment)
	assert.Equal(t, "postgres://localhost/genflow", svc.DatabaseURL)
	assert.Equal(t, config.DefaultMaxRetries, svc.Generation.MaxRetries)
}

func TestFromEnv_MissingRequired(t *testing.T) {
	t.Setenv(config.EnvAzureEndpoint, "")
	t.Setenv(config.EnvAzureAPIKey, "secret")
	t.Setenv(config.EnvAzureDeployment, "gpt-4o")

	_, err := config.FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), config.EnvAzureEndpoint)
}

func TestFromEnv_InvalidPort(t *testing.T) {
	t.Setenv(config.EnvAzureEndpoint, "https://myresource.openai.azure.com")
	t.Setenv(config.EnvAzureAPIKey, "secret")
	t.Setenv(config.EnvAzureDeployment, "gpt-4o")
	t.Setenv(config.EnvPort, "not-a-port")

	_, err := config.FromEnv()
	assert.Error(t, err)
}
