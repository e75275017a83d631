package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

func NewJSONLogger(service, level string) *slog.Logger {
	return New(os.Stdout, service, level)
}

// New builds a JSON logger tagged with the service name. Redacted or raw
// document text must never be passed as an attribute.
func New(w io.Writer, service, level string) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: parseLevel(level),
	})
	return slog.New(handler).With("service", service)
}

// ForJob scopes a logger to one intake job.
func ForJob(logger *slog.Logger, jobID, batchID string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	if batchID == "" {
		return logger.With("job_id", jobID)
	}
	return logger.With("job_id", jobID, "batch_id", batchID)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
