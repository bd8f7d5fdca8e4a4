package logger

import (
	"context"

	"github.com/rs/zerolog"
)

// LogRequest logs one HTTP exchange made on behalf of a persona
func LogRequest(l Logger, method, url, persona string, statusCode int, durationMs float64) {
	fields := map[string]interface{}{
		"method":      method,
		"url":         url,
		"persona":     persona,
		"status_code": statusCode,
		"duration_ms": durationMs,
	}

	switch {
	case statusCode >= 200 && statusCode < 300:
		l.DebugWithFields("HTTP request completed", fields)
	case statusCode >= 400 && statusCode < 500:
		l.WarnWithFields("HTTP request rejected", fields)
	case statusCode >= 500:
		l.ErrorWithFields("HTTP request server error", fields)
	default:
		l.DebugWithFields("HTTP request", fields)
	}
}

// LogCandidate logs a media URL discovered by an extraction heuristic
func LogCandidate(l Logger, heuristic, url, format string) {
	l.InfoWithFields("Candidate found", map[string]interface{}{
		"heuristic": heuristic,
		"url":       url,
		"format":    format,
	})
}

// LogDownload logs the outcome of a single candidate download
func LogDownload(l Logger, url, destination, transport string, bytes int64, err error) {
	fields := map[string]interface{}{
		"url":         url,
		"destination": destination,
		"transport":   transport,
		"bytes":       bytes,
	}

	if err != nil {
		l.WithError(err).WarnWithFields("Download attempt failed", fields)
		return
	}
	l.InfoWithFields("Download completed", fields)
}

// NewNopLogger creates a no-operation logger
func NewNopLogger() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) Fatal(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) FatalWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) GetZerolog() *zerolog.Logger                               { return nil }
