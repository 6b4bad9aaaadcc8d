package logger

import (
	"log/slog"
	"os"

	"github.com/jwebster45206/narrative-engine/internal/config"
)

// serviceName tags every record so aggregated output from multiple
// services stays attributable.
const serviceName = "narrative-engine"

// Setup builds the process logger and installs it as the slog default.
// Production emits JSON for log aggregation; any other environment
// gets human-readable text.
func Setup(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	switch cfg.Environment {
	case "production":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	log := slog.New(handler).With("service", serviceName)
	slog.SetDefault(log)

	return log
}

// WithSession scopes a logger to one session's records.
func WithSession(log *slog.Logger, sessionID string) *slog.Logger {
	return log.With("session_id", sessionID)
}
