package logger

import (
	"io"
	"log/slog"
	"os"
	"time"
)

// NewSlogLogger creates a standalone logger writing JSON records to writer.
// A nil writer logs to stdout; a nil timezone uses UTC.
// Tests typically use NewSlogLogger(io.Discard, LogLevelError, time.UTC).
func NewSlogLogger(writer io.Writer, level LogLevel, timezone *time.Location) Logger {
	if writer == nil {
		writer = os.Stdout
	}
	if timezone == nil {
		timezone = time.UTC
	}

	slogLevel := parseLogLevel(string(level))
	return &moduleLogger{
		logger:   slog.New(newJSONHandler(writer, slogLevel, timezone)),
		level:    slogLevel,
		timezone: timezone,
	}
}

// NewConsoleLogger creates a console logger for bootstrap code that runs
// before the central logger is configured.
func NewConsoleLogger(module string, level LogLevel) Logger {
	slogLevel := parseLogLevel(string(level))
	return &moduleLogger{
		module:   module,
		logger:   slog.New(newTextHandler(os.Stdout, slogLevel)),
		level:    slogLevel,
		timezone: time.Local,
	}
}

// NewTextLogger creates a console-format logger writing to w.
func NewTextLogger(w io.Writer, level LogLevel) Logger {
	slogLevel := parseLogLevel(string(level))
	return &moduleLogger{
		logger:   slog.New(newTextHandler(w, slogLevel)),
		level:    slogLevel,
		timezone: time.Local,
	}
}
