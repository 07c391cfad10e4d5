// Package testutil provides shared fixtures and fakes for ExportReady tests.
package testutil

import (
	"strings"
	"sync"

	"github.com/turtacn/ExportReady-Intelligence/internal/infrastructure/monitoring/logging"
)

// MockLogger implements logging.Logger and records every entry. Loggers
// derived through With or Named share the parent's buffer.
type MockLogger struct {
	buf    *logBuffer
	name   string
	fields []logging.Field
}

type logBuffer struct {
	mu       sync.Mutex
	messages []LogMessage
}

// LogMessage is a single captured entry.
type LogMessage struct {
	Level   string
	Logger  string
	Message string
	Fields  []logging.Field
}

// Field returns the value of the named field and whether it was present.
func (m LogMessage) Field(key string) (interface{}, bool) {
	for _, f := range m.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// NewMockLogger creates an empty MockLogger.
func NewMockLogger() *MockLogger {
	return &MockLogger{buf: &logBuffer{}}
}

func (m *MockLogger) log(level, msg string, fields []logging.Field) {
	all := make([]logging.Field, 0, len(m.fields)+len(fields))
	all = append(all, m.fields...)
	all = append(all, fields...)

	m.buf.mu.Lock()
	defer m.buf.mu.Unlock()
	m.buf.messages = append(m.buf.messages, LogMessage{
		Level:   level,
		Logger:  m.name,
		Message: msg,
		Fields:  all,
	})
}

func (m *MockLogger) Debug(msg string, fields ...logging.Field) { m.log("debug", msg, fields) }
func (m *MockLogger) Info(msg string, fields ...logging.Field)  { m.log("info", msg, fields) }
func (m *MockLogger) Warn(msg string, fields ...logging.Field)  { m.log("warn", msg, fields) }
func (m *MockLogger) Error(msg string, fields ...logging.Field) { m.log("error", msg, fields) }
func (m *MockLogger) Fatal(msg string, fields ...logging.Field) { m.log("fatal", msg, fields) }

func (m *MockLogger) With(fields ...logging.Field) logging.Logger {
	child := &MockLogger{buf: m.buf, name: m.name}
	child.fields = append(append([]logging.Field(nil), m.fields...), fields...)
	return child
}

func (m *MockLogger) Named(name string) logging.Logger {
	full := name
	if m.name != "" {
		full = m.name + "." + name
	}
	return &MockLogger{buf: m.buf, name: full, fields: m.fields}
}

// GetMessages returns a copy of all captured entries.
func (m *MockLogger) GetMessages() []LogMessage {
	m.buf.mu.Lock()
	defer m.buf.mu.Unlock()
	out := make([]LogMessage, len(m.buf.messages))
	copy(out, m.buf.messages)
	return out
}

// Clear drops all captured entries.
func (m *MockLogger) Clear() {
	m.buf.mu.Lock()
	defer m.buf.mu.Unlock()
	m.buf.messages = m.buf.messages[:0]
}

// HasMessage reports whether an entry with level and exact msg was logged.
func (m *MockLogger) HasMessage(level, msg string) bool {
	for _, l := range m.GetMessages() {
		if l.Level == level && l.Message == msg {
			return true
		}
	}
	return false
}

// Count returns the number of entries at level.
func (m *MockLogger) Count(level string) int {
	n := 0
	for _, l := range m.GetMessages() {
		if l.Level == level {
			n++
		}
	}
	return n
}

// Find returns the entries at level whose message contains substr.
func (m *MockLogger) Find(level, substr string) []LogMessage {
	var out []LogMessage
	for _, l := range m.GetMessages() {
		if l.Level == level && strings.Contains(l.Message, substr) {
			out = append(out, l)
		}
	}
	return out
}
