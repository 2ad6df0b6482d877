// Package observability provides production observability for the
// generation pipeline: structured logging, metrics, and tracing.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds generation context to a logger.
// Returns a new logger with user_id, conversation_id, and attempt fields.
//
// Example:
//
//	enriched := EnrichLogger(logger, "user-1", "conv-9", 1)
//	enriched.Info("calling provider") // includes user_id, conversation_id, attempt
func EnrichLogger(logger *slog.Logger, userID, conversationID string, attempt int) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("user_id", userID),
		slog.String("conversation_id", conversationID),
		slog.Int("attempt", attempt),
	)
}

// LogGenerationStart logs the start of a generation call.
func LogGenerationStart(logger *slog.Logger, userID string, historyLen int) {
	if logger == nil {
		return
	}
	logger.Info("generation starting",
		slog.String("user_id", userID),
		slog.Int("history_messages", historyLen),
	)
}

// LogGenerationSuccess logs a successful generation with its cost.
func LogGenerationSuccess(logger *slog.Logger, conversationID string, attempts, nodeCount, creditsRemaining int, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Info("generation succeeded",
		slog.String("conversation_id", conversationID),
		slog.Int("attempts", attempts),
		slog.Int("nodes", nodeCount),
		slog.Int("credits_remaining", creditsRemaining),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogGenerationInvalid logs a generation that exhausted retries on
// invalid output (soft failure, no debit).
func LogGenerationInvalid(logger *slog.Logger, userID string, attempts int, validationErrors []string) {
	if logger == nil {
		return
	}
	logger.Warn("generation invalid after retries",
		slog.String("user_id", userID),
		slog.Int("attempts", attempts),
		slog.Any("validation_errors", validationErrors),
	)
}

// LogGenerationError logs a hard generation failure.
func LogGenerationError(logger *slog.Logger, userID string, err error, attempts int, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Error("generation failed",
		slog.String("user_id", userID),
		slog.String("error", err.Error()),
		slog.Int("attempts", attempts),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogProviderCall logs one completion call to the model provider.
func LogProviderCall(logger *slog.Logger, deployment string, messages int, durationMs float64, err error) {
	if logger == nil {
		return
	}
	if err != nil {
		logger.Warn("provider call failed",
			slog.String("deployment", deployment),
			slog.Int("messages", messages),
			slog.Float64("duration_ms", durationMs),
			slog.String("error", err.Error()),
		)
		return
	}
	logger.Debug("provider call completed",
		slog.String("deployment", deployment),
		slog.Int("messages", messages),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogDebit logs a credit debit.
func LogDebit(logger *slog.Logger, userID string, amount, remaining int) {
	if logger == nil {
		return
	}
	logger.Info("credits debited",
		slog.String("user_id", userID),
		slog.Int("amount", amount),
		slog.Int("remaining", remaining),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
//
// Example:
//
//	done := TimedOperation()
//	// ... do work ...
//	durationMs := done()
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Milliseconds())
	}
}
