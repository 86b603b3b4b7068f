package utils

import (
	"encoding/json"
	"log"
	"os"
	"time"
)

// LogLevel represents different log levels
type LogLevel string

const (
	INFO  LogLevel = "INFO"
	WARN  LogLevel = "WARN"
	ERROR LogLevel = "ERROR"
)

// LogEntry represents a structured log entry
type LogEntry struct {
	Timestamp time.Time   `json:"timestamp"`
	Level     LogLevel    `json:"level"`
	Component string      `json:"component,omitempty"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// Logger provides structured JSON logging for the API layer. The services
// keep using plain log.Printf progress lines.
type Logger struct {
	component string
	logger    *log.Logger
}

// NewLogger creates a logger tagged with a component name.
func NewLogger(component string) *Logger {
	return &Logger{
		component: component,
		logger:    log.New(os.Stdout, "", 0),
	}
}

// Info logs an info message
func (l *Logger) Info(message string, data ...interface{}) {
	l.output(l.entry(INFO, message, data...))
}

// Warn logs a warning message
func (l *Logger) Warn(message string, data ...interface{}) {
	l.output(l.entry(WARN, message, data...))
}

// Error logs an error with its message
func (l *Logger) Error(message string, err error, data ...interface{}) {
	entry := l.entry(ERROR, message, data...)
	if err != nil {
		entry.Error = err.Error()
	}
	l.output(entry)
}

func (l *Logger) entry(level LogLevel, message string, data ...interface{}) LogEntry {
	entry := LogEntry{
		Timestamp: time.Now(),
		Level:     level,
		Component: l.component,
		Message:   message,
	}
	if len(data) > 0 {
		entry.Data = data[0]
	}
	return entry
}

func (l *Logger) output(entry LogEntry) {
	jsonBytes, err := json.Marshal(entry)
	if err != nil {
		log.Printf("Error marshaling log entry: %v", err)
		return
	}
	l.logger.Println(string(jsonBytes))
}
