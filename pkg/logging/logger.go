package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

// LogLevel represents different logging levels
type LogLevel int

const (
	LevelTrace LogLevel = iota - 1
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

// ParseLevel maps a config string to a LogLevel. Unknown values map to info.
func ParseLevel(s string) LogLevel {
	return levelFromString(strings.ToUpper(strings.TrimSpace(s)))
}

func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case LevelTrace:
		return slog.LevelDebug - 4
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	case LevelFatal:
		return slog.LevelError + 4
	default:
		return slog.LevelInfo
	}
}

// Context keys recognised by WithContext loggers.
type ctxKey string

const (
	RunIDKey     ctxKey = "run_id"
	RequestIDKey ctxKey = "request_id"
)

// LogConfig holds logging configuration
type LogConfig struct {
	Level       LogLevel `json:"level"`
	Format      string   `json:"format"` // "json" or "text"
	Output      string   `json:"output"` // "stdout", "stderr", "discard" or file path
	FilePath    string   `json:"file_path"`
	EnableAsync bool     `json:"enable_async"`
	AsyncBuffer int      `json:"async_buffer"`
}

// Logger provides structured logging with context support
type Logger struct {
	config  LogConfig
	slogger *slog.Logger
	file    *os.File
	asyncCh chan LogEntry
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.RWMutex
	closed  bool
}

// LogEntry represents a structured log entry
type LogEntry struct {
	Timestamp time.Time
	Level     LogLevel
	Message   string
	Component string
	RunID     string
	RequestID string
	Error     string
	Caller    string
	Fields    []Field
}

// DefaultLogConfig returns sensible default logging configuration
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:       LevelInfo,
		Format:      "json",
		Output:      "stdout",
		EnableAsync: false,
		AsyncBuffer: 1000,
	}
}

// NewLogger creates a new structured logger
func NewLogger(config LogConfig) (*Logger, error) {
	logger := &Logger{config: config}

	var writer io.Writer
	switch config.Output {
	case "", "stdout":
		writer = os.Stdout
	case "stderr":
		writer = os.Stderr
	case "discard":
		writer = io.Discard
	default:
		if config.FilePath == "" {
			config.FilePath = config.Output
			logger.config.FilePath = config.Output
		}
		if err := logger.setupFileLogging(); err != nil {
			return nil, fmt.Errorf("failed to setup file logging: %w", err)
		}
		writer = logger.file
	}

	opts := &slog.HandlerOptions{Level: config.Level.slogLevel()}

	var handler slog.Handler
	if config.Format == "json" {
		handler = slog.NewJSONHandler(writer, opts)
	} else {
		handler = slog.NewTextHandler(writer, opts)
	}
	logger.slogger = slog.New(handler)

	if config.EnableAsync {
		buf := config.AsyncBuffer
		if buf <= 0 {
			buf = 1000
		}
		logger.asyncCh = make(chan LogEntry, buf)
		logger.wg.Add(1)
		go logger.asyncWorker()
	}

	return logger, nil
}

// Nop returns a logger that discards everything. Handy in tests.
func Nop() *Logger {
	l, _ := NewLogger(LogConfig{Level: LevelFatal + 1, Output: "discard", Format: "text"})
	return l
}

func (l *Logger) setupFileLogging() error {
	dir := filepath.Dir(l.config.FilePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	file, err := os.OpenFile(l.config.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	l.file = file
	return nil
}

// asyncWorker drains the channel until it is closed.
func (l *Logger) asyncWorker() {
	defer l.wg.Done()
	for entry := range l.asyncCh {
		l.writeEntry(entry)
	}
}

func (l *Logger) writeEntry(entry LogEntry) {
	attrs := make([]slog.Attr, 0, len(entry.Fields)+5)
	if entry.Component != "" {
		attrs = append(attrs, slog.String("component", entry.Component))
	}
	if entry.RunID != "" {
		attrs = append(attrs, slog.String("run_id", entry.RunID))
	}
	if entry.RequestID != "" {
		attrs = append(attrs, slog.String("request_id", entry.RequestID))
	}
	if entry.Error != "" {
		attrs = append(attrs, slog.String("error", entry.Error))
	}
	if entry.Caller != "" {
		attrs = append(attrs, slog.String("caller", entry.Caller))
	}
	for _, f := range entry.Fields {
		attrs = append(attrs, slog.Any(f.Key, f.Value))
	}
	l.slogger.LogAttrs(context.Background(), entry.Level.slogLevel(), entry.Message, attrs...)
}

// Close flushes pending async entries and releases the log file. Safe to call twice.
func (l *Logger) Close() error {
	var err error
	l.once.Do(func() {
		l.mu.Lock()
		l.closed = true
		if l.asyncCh != nil {
			close(l.asyncCh)
		}
		l.mu.Unlock()
		l.wg.Wait()
		if l.file != nil {
			err = l.file.Close()
		}
	})
	return err
}

// WithContext returns a logger that picks run and request ids out of ctx.
func (l *Logger) WithContext(ctx context.Context) *ContextLogger {
	return &ContextLogger{logger: l, ctx: ctx}
}

// WithComponent returns a logger with component information
func (l *Logger) WithComponent(component string) *ComponentLogger {
	return &ComponentLogger{logger: l, component: component}
}

// ContextLogger provides context-aware logging
type ContextLogger struct {
	logger    *Logger
	ctx       context.Context
	component string
}

// ComponentLogger provides component-specific logging
type ComponentLogger struct {
	logger    *Logger
	component string
	fields    []Field
}

// With returns a copy carrying extra fields on every entry.
func (cl *ComponentLogger) With(fields ...Field) *ComponentLogger {
	if cl == nil {
		return nil
	}
	merged := make([]Field, 0, len(cl.fields)+len(fields))
	merged = append(merged, cl.fields...)
	merged = append(merged, fields...)
	return &ComponentLogger{logger: cl.logger, component: cl.component, fields: merged}
}

// WithContext binds ctx so run/request ids are attached.
func (cl *ComponentLogger) WithContext(ctx context.Context) *ContextLogger {
	return &ContextLogger{logger: cl.logger, ctx: ctx, component: cl.component}
}

func (l *Logger) Debug(msg string, fields ...Field) { l.log(context.Background(), LevelDebug, "", msg, "", fields) }
func (l *Logger) Info(msg string, fields ...Field)  { l.log(context.Background(), LevelInfo, "", msg, "", fields) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.log(context.Background(), LevelWarn, "", msg, "", fields) }
func (l *Logger) Error(msg string, err error, fields ...Field) {
	l.log(context.Background(), LevelError, "", msg, errString(err), fields)
}

func (cl *ComponentLogger) Trace(msg string, fields ...Field) { cl.emit(LevelTrace, msg, nil, fields) }
func (cl *ComponentLogger) Debug(msg string, fields ...Field) { cl.emit(LevelDebug, msg, nil, fields) }
func (cl *ComponentLogger) Info(msg string, fields ...Field)  { cl.emit(LevelInfo, msg, nil, fields) }
func (cl *ComponentLogger) Warn(msg string, fields ...Field)  { cl.emit(LevelWarn, msg, nil, fields) }
func (cl *ComponentLogger) Error(msg string, err error, fields ...Field) {
	cl.emit(LevelError, msg, err, fields)
}

func (cl *ComponentLogger) emit(level LogLevel, msg string, err error, fields []Field) {
	if cl == nil {
		return
	}
	if len(cl.fields) > 0 {
		fields = append(append([]Field{}, cl.fields...), fields...)
	}
	cl.logger.log(context.Background(), level, cl.component, msg, errString(err), fields)
}

func (cl *ContextLogger) Debug(msg string, fields ...Field) {
	cl.logger.log(cl.ctx, LevelDebug, cl.component, msg, "", fields)
}
func (cl *ContextLogger) Info(msg string, fields ...Field) {
	cl.logger.log(cl.ctx, LevelInfo, cl.component, msg, "", fields)
}
func (cl *ContextLogger) Warn(msg string, fields ...Field) {
	cl.logger.log(cl.ctx, LevelWarn, cl.component, msg, "", fields)
}
func (cl *ContextLogger) Error(msg string, err error, fields ...Field) {
	cl.logger.log(cl.ctx, LevelError, cl.component, msg, errString(err), fields)
}

func (l *Logger) log(ctx context.Context, level LogLevel, component, msg, errorStr string, fields []Field) {
	if l == nil || level < l.config.Level {
		return
	}

	entry := LogEntry{
		Timestamp: time.Now(),
		Level:     level,
		Message:   msg,
		Component: component,
		Error:     errorStr,
		Fields:    fields,
	}
	if id, ok := ctx.Value(RunIDKey).(string); ok {
		entry.RunID = id
	}
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		entry.RequestID = id
	}
	if level >= LevelWarn {
		if _, file, line, ok := runtime.Caller(3); ok {
			entry.Caller = fmt.Sprintf("%s:%d", filepath.Base(file), line)
		}
	}

	if l.asyncCh != nil {
		l.mu.RLock()
		defer l.mu.RUnlock()
		if l.closed {
			l.writeEntry(entry)
			return
		}
		select {
		case l.asyncCh <- entry:
		default:
			// Buffer full, write synchronously.
			l.writeEntry(entry)
		}
		return
	}
	l.writeEntry(entry)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// Field represents a structured log field
type Field struct {
	Key   string
	Value any
}

func String(key, value string) Field               { return Field{Key: key, Value: value} }
func Int(key string, value int) Field               { return Field{Key: key, Value: value} }
func Int64(key string, value int64) Field           { return Field{Key: key, Value: value} }
func Float64(key string, value float64) Field       { return Field{Key: key, Value: value} }
func Bool(key string, value bool) Field             { return Field{Key: key, Value: value} }
func Duration(key string, value time.Duration) Field { return Field{Key: key, Value: value} }
func Time(key string, value time.Time) Field        { return Field{Key: key, Value: value} }
func Strings(key string, value []string) Field      { return Field{Key: key, Value: value} }
func Any(key string, value any) Field               { return Field{Key: key, Value: value} }

func Error(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: ""}
	}
	return Field{Key: "error", Value: err.Error()}
}

func levelFromString(level string) LogLevel {
	switch level {
	case "TRACE":
		return LevelTrace
	case "DEBUG":
		return LevelDebug
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	case "FATAL":
		return LevelFatal
	default:
		return LevelInfo
	}
}
