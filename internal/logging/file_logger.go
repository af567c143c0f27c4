package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileLogger appends JSON-encoded entries to a run log on disk. Sync runs
// can be long; the log rolls over once to <path>.old when it grows past
// MaxBytes so a scheduled run never fills the disk with its own history.
//
// Loggers derived via WithTraceID share the same underlying file, so the
// per-run and the root logger interleave safely.
type FileLogger struct {
	sink    *fileSink
	traceID string
}

// fileSink is the state shared by a FileLogger and everything derived
// from it.
type fileSink struct {
	mu      sync.Mutex
	out     *os.File
	path    string
	level   LogLevel
	redact  bool
	maxSize int64
	written int64
}

// FileLoggerConfig configures a file logger.
type FileLoggerConfig struct {
	// Path of the log file. Parent directories are created as needed.
	Path  string
	Level LogLevel
	// MaxBytes caps the file size before rollover; zero disables rollover.
	MaxBytes int64
	// RedactSensitive strips credentials from messages and string fields
	// before they reach disk.
	RedactSensitive bool
}

// NewFileLogger opens (or creates) the log file for appending.
func NewFileLogger(config FileLoggerConfig) (*FileLogger, error) {
	if err := os.MkdirAll(filepath.Dir(config.Path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	out, err := os.OpenFile(config.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	var written int64
	if info, err := out.Stat(); err == nil {
		written = info.Size()
	}

	return &FileLogger{
		sink: &fileSink{
			out:     out,
			path:    config.Path,
			level:   config.Level,
			redact:  config.RedactSensitive,
			maxSize: config.MaxBytes,
			written: written,
		},
	}, nil
}

func (l *FileLogger) emit(level LogLevel, msg string, fields ...Field) {
	s := l.sink
	s.mu.Lock()
	defer s.mu.Unlock()

	if level < s.level || s.out == nil {
		return
	}

	if s.redact {
		msg = redactSensitiveData(msg)
	}

	entry := LogEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level.String(),
		Message:   msg,
		TraceID:   l.traceID,
	}

	if len(fields) > 0 {
		entry.Fields = make(map[string]interface{}, len(fields))
		for _, f := range fields {
			value := f.Value
			if str, ok := value.(string); ok && s.redact {
				value = redactSensitiveData(str)
			}
			entry.Fields[f.Key] = value
		}
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return
	}
	line = append(line, '\n')

	if s.maxSize > 0 && s.written+int64(len(line)) > s.maxSize {
		if err := s.rollOver(); err != nil {
			return
		}
	}

	if n, err := s.out.Write(line); err == nil {
		s.written += int64(n)
	}
}

// rollOver moves the current file aside as <path>.old, replacing any earlier
// rollover, and reopens a fresh file at the configured path. Caller holds
// the lock.
func (s *fileSink) rollOver() error {
	if err := s.out.Close(); err != nil {
		return err
	}

	if err := os.Rename(s.path, s.path+".old"); err != nil {
		return err
	}

	out, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}

	s.out = out
	s.written = 0
	return nil
}

func (l *FileLogger) Debug(msg string, fields ...Field) {
	l.emit(DEBUG, msg, fields...)
}

func (l *FileLogger) Info(msg string, fields ...Field) {
	l.emit(INFO, msg, fields...)
}

func (l *FileLogger) Warn(msg string, fields ...Field) {
	l.emit(WARN, msg, fields...)
}

func (l *FileLogger) Error(msg string, fields ...Field) {
	l.emit(ERROR, msg, fields...)
}

// WithTraceID returns a logger that stamps every entry with the given run
// identifier. The returned logger writes to the same file.
func (l *FileLogger) WithTraceID(traceID string) Logger {
	return &FileLogger{sink: l.sink, traceID: traceID}
}

// WithContext picks the run identifier out of ctx, if one was attached.
func (l *FileLogger) WithContext(ctx context.Context) Logger {
	if traceID := TraceIDFromContext(ctx); traceID != "" {
		return l.WithTraceID(traceID)
	}
	return l
}

// SetLevel changes the threshold for this logger and everything derived
// from it.
func (l *FileLogger) SetLevel(level LogLevel) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.level = level
}

// Close flushes and closes the underlying file.
func (l *FileLogger) Close() error {
	s := l.sink
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.out == nil {
		return nil
	}
	err := s.out.Close()
	s.out = nil
	return err
}
