package server

import (
	"fmt"
	"log"
	"time"
)

// Field represents a structured log field
type Field struct {
	Key   string
	Value interface{}
}

// Logger is the interface for custom logging implementations
type Logger interface {
	// Debug logs a debug message with optional fields
	Debug(msg string, fields ...Field)

	// Info logs an info message with optional fields
	Info(msg string, fields ...Field)

	// Error logs an error message with optional fields
	Error(msg string, fields ...Field)
}

// MetricsCollector is the interface for metrics collection
type MetricsCollector interface {
	// RecordConnection records an accepted connection
	RecordConnection()

	// RecordCommand records a processed command with its duration
	RecordCommand(cmd string, duration time.Duration)

	// RecordError records an error reply
	RecordError()
}

// StdLogger is a Logger implementation over the standard log package
type StdLogger struct{}

// Debug implements Logger
func (l *StdLogger) Debug(msg string, fields ...Field) {
	l.logWithFields("DEBUG", msg, fields...)
}

// Info implements Logger
func (l *StdLogger) Info(msg string, fields ...Field) {
	l.logWithFields("INFO", msg, fields...)
}

// Error implements Logger
func (l *StdLogger) Error(msg string, fields ...Field) {
	l.logWithFields("ERROR", msg, fields...)
}

func (l *StdLogger) logWithFields(level, msg string, fields ...Field) {
	if len(fields) == 0 {
		log.Printf("[%s] %s", level, msg)
		return
	}

	line := fmt.Sprintf("[%s] %s", level, msg)
	for _, f := range fields {
		line += fmt.Sprintf(" %s=%v", f.Key, f.Value)
	}
	log.Print(line)
}

// noopLogger discards all log output
type noopLogger struct{}

func (noopLogger) Debug(string, ...Field) {}
func (noopLogger) Info(string, ...Field)  {}
func (noopLogger) Error(string, ...Field) {}

// NewStdLogger returns a Logger writing through the standard log package
func NewStdLogger() *StdLogger {
	return &StdLogger{}
}

// noopMetrics discards all metrics
type noopMetrics struct{}

func (noopMetrics) RecordConnection()                   {}
func (noopMetrics) RecordCommand(string, time.Duration) {}
func (noopMetrics) RecordError()                        {}
