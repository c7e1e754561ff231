// Package logging provides the append-only JSONL structured logger
// described in spec §4.4, built on log/slog the way the teacher's
// cmd/main.go configures its JSON handler. Every record is redacted
// before either sink (stdout, the JSONL file) ever sees it.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// redactedFieldSubstrings: any attribute whose key contains one of
// these (case-insensitive) is replaced with "[REDACTED]" (spec §4.4).
var redactedFieldSubstrings = []string{"auth_token", "password", "secret", "api_key", "token"}

func isRedacted(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range redactedFieldSubstrings {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

func redactAttr(groups []string, a slog.Attr) slog.Attr {
	if isRedacted(a.Key) {
		a.Value = slog.StringValue("[REDACTED]")
	}
	return a
}

// Logger wraps an *slog.Logger bound to one component name and one
// JSONL sink. Components receive a *Logger by constructor injection,
// never a package-level global.
type Logger struct {
	*slog.Logger
	file *os.File
}

// New opens (creating if absent) the JSONL log file at path,
// line-flushing every record, and returns a Logger tagged with
// component. Logs are also mirrored to stdout so an operator attached
// to the process sees the same structured stream.
func New(component string, path string) (*Logger, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	var w io.Writer = f
	if path != os.DevNull {
		w = io.MultiWriter(os.Stdout, f)
	}
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       slog.LevelInfo,
		ReplaceAttr: redactAttr,
	})
	return &Logger{
		Logger: slog.New(handler).With("component", component),
		file:   f,
	}, nil
}

// Close releases the underlying file handle.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// Event logs a structured occurrence at info level with a stable
// "event" field, the unit other components grep the JSONL log for.
func (l *Logger) Event(event string, args ...any) {
	l.Logger.Info(event, append([]any{"event", event}, args...)...)
}

// WarnEvent logs at warn level with the same "event" field convention
// (used for the duplicate-report case in spec §8 S6).
func (l *Logger) WarnEvent(event string, args ...any) {
	l.Logger.Warn(event, append([]any{"event", event}, args...)...)
}
