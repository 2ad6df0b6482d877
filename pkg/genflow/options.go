package genflow

import (
	"log/slog"
	"time"

	"github.com/flowmarket/genflow/pkg/genflow/observability"
)

// GenerationCost is the default credit amount charged per successful
// generation or regeneration. The HTTP boundary's pre-check must use
// the same value as the debit; read it through Generator.Cost.
const GenerationCost = 5

// DefaultMaxRetries is the default number of retries after the first
// attempt (3 total attempts).
const DefaultMaxRetries = 2

// genConfig holds configuration for a Generator.
type genConfig struct {
	maxRetries   int
	cost         int
	timeout      time.Duration
	model        string
	systemPrompt string
	temperature  float64
	maxTokens    int
	logger       *slog.Logger
	metrics      observability.MetricsRecorder
	spans        observability.SpanManager
}

// defaultGenConfig returns the default generator configuration.
func defaultGenConfig() genConfig {
	return genConfig{
		maxRetries:   DefaultMaxRetries,
		cost:         GenerationCost,
		timeout:      60 * time.Second,
		systemPrompt: SystemPrompt,
		temperature:  0.7,
		maxTokens:    4000,
		metrics:      observability.NoopMetrics{},
		spans:        observability.NoopSpanManager{},
	}
}

// Option configures a Generator.
type Option func(*genConfig)

// WithMaxRetries sets the number of retries after the first attempt.
// Default: 2 (3 total attempts). Negative values are ignored.
func WithMaxRetries(n int) Option {
	return func(c *genConfig) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// WithCost sets the credit amount charged per successful generation.
// Default: GenerationCost.
func WithCost(cost int) Option {
	return func(c *genConfig) {
		if cost > 0 {
			c.cost = cost
		}
	}
}

// WithTimeout bounds each provider call. A provider call exceeding the
// timeout counts as a transient failure against the retry budget.
// Default: 60s. A zero duration disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(c *genConfig) {
		if d >= 0 {
			c.timeout = d
		}
	}
}

// WithModel overrides the provider's default model or deployment for
// completion requests.
func WithModel(model string) Option {
	return func(c *genConfig) { c.model = model }
}

// WithSystemPrompt overrides the fixed system instruction.
// Useful for experiments; the default pins the schema the validator
// enforces.
func WithSystemPrompt(prompt string) Option {
	return func(c *genConfig) { c.systemPrompt = prompt }
}

// WithTemperature sets the sampling temperature. Default: 0.7.
func WithTemperature(t float64) Option {
	return func(c *genConfig) { c.temperature = t }
}

// WithMaxTokens caps the completion length. Default: 4000.
func WithMaxTokens(n int) Option {
	return func(c *genConfig) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

// WithLogger attaches a structured logger. Default: no logging.
func WithLogger(logger *slog.Logger) Option {
	return func(c *genConfig) { c.logger = logger }
}

// WithMetrics attaches a metrics recorder. Default: no-op.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(c *genConfig) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithSpans attaches a span manager. Default: no-op.
func WithSpans(s observability.SpanManager) Option {
	return func(c *genConfig) {
		if s != nil {
			c.spans = s
		}
	}
}
