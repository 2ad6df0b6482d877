package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Azure holds the Azure OpenAI connection settings.
type Azure struct {
	Endpoint   string
	APIKey     string
	Deployment string
	APIVersion string
}

// Generation tunes the workflow generation pipeline.
type Generation struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int

	// Cost is the credit amount charged per successful generation.
	// Must match the boundary layer's pre-check constant.
	Cost int

	// Timeout bounds each provider call.
	Timeout time.Duration

	// Temperature and MaxTokens are passed through to the provider.
	Temperature float64
	MaxTokens   int
}

// Service is the assembled configuration for the genflow service.
type Service struct {
	// Addr is the HTTP listen address, e.g. ":4000".
	Addr string

	// DatabaseURL is the PostgreSQL DSN. When empty the service
	// falls back to the embedded SQLite store at SQLitePath.
	DatabaseURL string

	// SQLitePath is the SQLite database file path.
	SQLitePath string

	Azure      Azure
	Generation Generation
}

// Generation defaults.
const (
	DefaultMaxRetries  = 2
	DefaultCost        = 5
	DefaultTimeout     = 60 * time.Second
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 4000
)

// Environment variable names shared with the wider platform.
const (
	EnvAzureEndpoint   = "AZURE_OPENAI_ENDPOINT"
	EnvAzureAPIKey     = "AZURE_OPENAI_API_KEY"
	EnvAzureDeployment = "AZURE_OPENAI_DEPLOYMENT_NAME"
	EnvAzureAPIVersion = "AZURE_OPENAI_API_VERSION"
	EnvDatabaseURL     = "DATABASE_URL"
	EnvPort            = "PORT"
	EnvSQLitePath      = "GENFLOW_SQLITE_PATH"
)

// FromEnv assembles a Service configuration from the process
// environment. The Azure endpoint, key, and deployment name are
// required; everything else has defaults.
func FromEnv() (Service, error) {
	var missing []string
	for _, key := range []string{EnvAzureEndpoint, EnvAzureAPIKey, EnvAzureDeployment} {
		if os.Getenv(key) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return Service{}, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	port := 4000
	if p := os.Getenv(EnvPort); p != "" {
		parsed, err := strconv.Atoi(p)
		if err != nil {
			return Service{}, fmt.Errorf("invalid %s: %q", EnvPort, p)
		}
		port = parsed
	}

	sqlitePath := os.Getenv(EnvSQLitePath)
	if sqlitePath == "" {
		sqlitePath = "./genflow.db"
	}

	svc := Service{
		Addr:        fmt.Sprintf(":%d", port),
		DatabaseURL: os.Getenv(EnvDatabaseURL),
		SQLitePath:  sqlitePath,
		Azure: Azure{
			Endpoint:   os.Getenv(EnvAzureEndpoint),
			APIKey:     os.Getenv(EnvAzureAPIKey),
			Deployment: os.Getenv(EnvAzureDeployment),
			APIVersion: os.Getenv(EnvAzureAPIVersion),
		},
		Generation: defaultGeneration(),
	}
	return svc, nil
}

// ServiceFromConfig assembles a Service from a loaded Config map.
// Keys use dotted paths flattened one level per section, e.g.:
//
//	addr: ":4000"
//	database_url: "postgres://..."
//	azure:
//	  endpoint: https://myresource.openai.azure.com
//	  api_key: "..."
//	  deployment: gpt-4o
//	generation:
//	  max_retries: 2
//	  timeout: 60s
func ServiceFromConfig(cfg Config) Service {
	azure := section(cfg, "azure")
	gen := section(cfg, "generation")

	g := defaultGeneration()
	g.MaxRetries = gen.Int("max_retries", g.MaxRetries)
	g.Cost = gen.Int("cost", g.Cost)
	g.Timeout = gen.Duration("timeout", g.Timeout)
	g.Temperature = gen.Float("temperature", g.Temperature)
	g.MaxTokens = gen.Int("max_tokens", g.MaxTokens)

	return Service{
		Addr:        cfg.String("addr", ":4000"),
		DatabaseURL: cfg.String("database_url", ""),
		SQLitePath:  cfg.String("sqlite_path", "./genflow.db"),
		Azure: Azure{
			Endpoint:   azure.String("endpoint", ""),
			APIKey:     azure.String("api_key", ""),
			Deployment: azure.String("deployment", ""),
			APIVersion: azure.String("api_version", ""),
		},
		Generation: g,
	}
}

// defaultGeneration returns the default pipeline tuning.
func defaultGeneration() Generation {
	return Generation{
		MaxRetries:  DefaultMaxRetries,
		Cost:        DefaultCost,
		Timeout:     DefaultTimeout,
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
	}
}

// section returns the nested map at key as a Config, or an empty
// Config if the key is absent or not a map.
func section(cfg Config, key string) Config {
	if m, ok := cfg.Raw()[key].(map[string]any); ok {
		return New(m)
	}
	return New(nil)
}
