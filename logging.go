// logging.go: pluggable logging for the extension runtime
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goextensions

import (
	"sync"
)

// Logger defines the pluggable logging interface for the go-extensions
// library.
//
// The interface carries no external dependencies so hosts can adapt any
// logging framework (zap, logrus, zerolog, slog) with a thin wrapper.
// Structured key-value pairs travel in args; With returns a logger with
// persistent context.
type Logger interface {
	// Debug logs a debug message with optional key-value pairs
	Debug(msg string, args ...any)

	// Info logs an info message with optional key-value pairs
	Info(msg string, args ...any)

	// Warn logs a warning message with optional key-value pairs
	Warn(msg string, args ...any)

	// Error logs an error message with optional key-value pairs
	Error(msg string, args ...any)

	// With returns a new logger with persistent context key-value pairs
	With(args ...any) Logger
}

// NoOpLogger discards all log messages. It is the default when a host does
// not supply a logger.
type NoOpLogger struct{}

// NewNoOpLogger creates a new no-operation logger.
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

// Debug implements Logger interface (no-op)
func (n *NoOpLogger) Debug(msg string, args ...any) {}

// Info implements Logger interface (no-op)
func (n *NoOpLogger) Info(msg string, args ...any) {}

// Warn implements Logger interface (no-op)
func (n *NoOpLogger) Warn(msg string, args ...any) {}

// Error implements Logger interface (no-op)
func (n *NoOpLogger) Error(msg string, args ...any) {}

// With implements Logger interface (no-op)
func (n *NoOpLogger) With(args ...any) Logger {
	return n
}

// DefaultLogger returns the logger used when none is configured.
func DefaultLogger() Logger {
	return NewNoOpLogger()
}

// TestLogger captures log messages for assertions in tests.
type TestLogger struct {
	mu       sync.RWMutex
	Messages []TestLogMessage
}

// TestLogMessage represents a captured log message.
type TestLogMessage struct {
	Level   string
	Message string
	Args    []any
}

// NewTestLogger creates a new test logger.
func NewTestLogger() *TestLogger {
	return &TestLogger{
		Messages: make([]TestLogMessage, 0),
	}
}

func (t *TestLogger) record(level, msg string, args []any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Messages = append(t.Messages, TestLogMessage{
		Level:   level,
		Message: msg,
		Args:    args,
	})
}

// Debug implements Logger interface (captures message)
func (t *TestLogger) Debug(msg string, args ...any) {
	t.record("DEBUG", msg, args)
}

// Info implements Logger interface (captures message)
func (t *TestLogger) Info(msg string, args ...any) {
	t.record("INFO", msg, args)
}

// Warn implements Logger interface (captures message)
func (t *TestLogger) Warn(msg string, args ...any) {
	t.record("WARN", msg, args)
}

// Error implements Logger interface (captures message)
func (t *TestLogger) Error(msg string, args ...any) {
	t.record("ERROR", msg, args)
}

// With implements Logger interface (returns a copy, context chaining is not
// needed for assertions)
func (t *TestLogger) With(args ...any) Logger {
	t.mu.RLock()
	messages := make([]TestLogMessage, len(t.Messages))
	copy(messages, t.Messages)
	t.mu.RUnlock()

	return &TestLogger{Messages: messages}
}

// HasMessage checks if the logger captured a message with the given level
// and exact text.
func (t *TestLogger) HasMessage(level, message string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, msg := range t.Messages {
		if msg.Level == level && msg.Message == message {
			return true
		}
	}
	return false
}

// Clear removes all captured messages.
func (t *TestLogger) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Messages = t.Messages[:0]
}
