package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"
)

// Level represents logging severity using slog levels
type Level slog.Level

const (
	DebugLevel Level = Level(slog.LevelDebug)
	InfoLevel  Level = Level(slog.LevelInfo)
	WarnLevel  Level = Level(slog.LevelWarn)
	ErrorLevel Level = Level(slog.LevelError)
	FatalLevel Level = Level(slog.LevelError + 4)
)

const timeFormat = "2006-01-02T15:04:05.000-07:00"

// Config mirrors the [logging] section of the application config
type Config struct {
	Enabled         bool   `toml:"enabled"`
	Directory       string `toml:"directory"`
	FilenamePattern string `toml:"filename_pattern"`
	Level           string `toml:"level"`
	MaxFiles        int    `toml:"max_files"`
	MaxSizeMB       int    `toml:"max_size_mb"`
	ConsoleOutput   bool   `toml:"console_output"`
}

// EnhancedLogger wraps slog.Logger with file output and rotation.
// It is its own io.Writer so rotation can swap the underlying file.
type EnhancedLogger struct {
	*slog.Logger
	config   Config
	file     *os.File
	fileName string
	fileSize int64
	mu       sync.Mutex
	out      io.Writer
}

var (
	globalLogger *EnhancedLogger
	globalMu     sync.Mutex
)

// Initialize replaces the global logger
func Initialize(config Config) error {
	l, err := NewEnhancedLogger(config)
	if err != nil {
		return err
	}

	globalMu.Lock()
	old := globalLogger
	globalLogger = l
	globalMu.Unlock()

	if old != nil {
		old.Close()
	}
	return nil
}

// Get returns the global logger, falling back to a console logger
func Get() *EnhancedLogger {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalLogger == nil {
		globalLogger = &EnhancedLogger{
			Logger: slog.New(newHandler(os.Stdout, slog.LevelInfo)),
			out:    os.Stdout,
		}
	}
	return globalLogger
}

// NewEnhancedLogger creates a logger writing to the console, a log file, or both
func NewEnhancedLogger(config Config) (*EnhancedLogger, error) {
	if config.Enabled && config.FilenamePattern != "" {
		if err := ValidateFilenamePattern(config.FilenamePattern); err != nil {
			return nil, fmt.Errorf("invalid filename pattern: %w", err)
		}
	}

	l := &EnhancedLogger{config: config}

	if config.Enabled {
		if err := os.MkdirAll(expandLogDirectory(config.Directory), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		if err := l.openLogFile(); err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
	}
	l.resetWriters()
	l.Logger = slog.New(newHandler(l, parseLogLevel(config.Level)))

	l.Debug("Logger initialized",
		slog.String("log_file", l.fileName),
		slog.String("level", config.Level),
		slog.Bool("console", config.ConsoleOutput))

	return l, nil
}

func newHandler(w io.Writer, level slog.Level) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			switch a.Key {
			case slog.TimeKey:
				return slog.String(slog.TimeKey, a.Value.Time().Format(timeFormat))
			case slog.SourceKey:
				if src, ok := a.Value.Any().(*slog.Source); ok {
					return slog.String(slog.SourceKey, fmt.Sprintf("%s:%d", filepath.Base(src.File), src.Line))
				}
			}
			return a
		},
	})
}

// resetWriters rebuilds the fan-out writer (caller must hold mutex or own l)
func (l *EnhancedLogger) resetWriters() {
	var writers []io.Writer
	if l.config.ConsoleOutput {
		writers = append(writers, os.Stdout)
	}
	if l.file != nil {
		writers = append(writers, l.file)
	}
	if len(writers) == 0 {
		writers = append(writers, os.Stdout)
	}
	l.out = io.MultiWriter(writers...)
}

// openLogFile opens the file named by the current pattern (caller must hold mutex)
func (l *EnhancedLogger) openLogFile() error {
	path := filepath.Join(expandLogDirectory(l.config.Directory), generateLogFilename(l.config.FilenamePattern))

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return err
	}

	l.file = file
	l.fileName = path
	l.fileSize = info.Size()
	return nil
}

// expandLogDirectory resolves the log directory with per-platform defaults
func expandLogDirectory(dir string) string {
	if dir == "" || dir == "logs" || strings.HasPrefix(dir, "./") || filepath.IsAbs(dir) {
		if dir == "" {
			return "logs"
		}
		return dir
	}

	switch runtime.GOOS {
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "Skycast", dir)
		}
	case "darwin", "linux":
		if home := os.Getenv("HOME"); home != "" {
			return filepath.Join(home, ".skycast", dir)
		}
	}
	return dir
}

// generateLogFilename substitutes date tokens in the pattern
func generateLogFilename(pattern string) string {
	if pattern == "" {
		pattern = "skycast-YYYYMMDD.log"
	}

	now := time.Now()
	replacer := strings.NewReplacer(
		"YYYY", fmt.Sprintf("%04d", now.Year()),
		"YY", fmt.Sprintf("%02d", now.Year()%100),
		"MM", fmt.Sprintf("%02d", now.Month()),
		"DD", fmt.Sprintf("%02d", now.Day()),
		"HH", fmt.Sprintf("%02d", now.Hour()),
	)
	return replacer.Replace(pattern)
}

// parseLogLevel converts a config string to slog.Level, defaulting to info
func parseLogLevel(level string) slog.Level {
	lvl, err := ParseLevel(level)
	if err != nil || lvl == FatalLevel {
		return slog.LevelInfo
	}
	return slog.Level(lvl)
}

// rotateIfNeeded rotates on size or date change (caller must hold mutex)
func (l *EnhancedLogger) rotateIfNeeded() error {
	if l.file == nil || !l.config.Enabled {
		return nil
	}

	maxSize := int64(l.config.MaxSizeMB) * 1024 * 1024
	dateChanged := filepath.Base(l.fileName) != generateLogFilename(l.config.FilenamePattern)
	if (maxSize > 0 && l.fileSize >= maxSize) || dateChanged {
		return l.rotate()
	}
	return nil
}

// rotate archives the current file and opens a fresh one (caller must hold mutex)
func (l *EnhancedLogger) rotate() error {
	l.file.Close()
	l.file = nil

	if info, err := os.Stat(l.fileName); err == nil && info.Size() > 0 {
		ext := filepath.Ext(l.fileName)
		archived := fmt.Sprintf("%s-%s%s", strings.TrimSuffix(l.fileName, ext), time.Now().Format("20060102-150405.000"), ext)
		if err := os.Rename(l.fileName, archived); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to archive log file: %v\n", err)
		}
	}

	if err := l.openLogFile(); err != nil {
		return err
	}
	l.resetWriters()

	if l.config.MaxFiles > 0 {
		go l.cleanOldFiles(filepath.Dir(l.fileName))
	}
	return nil
}

// cleanOldFiles keeps the newest MaxFiles log files matching the pattern
func (l *EnhancedLogger) cleanOldFiles(dir string) {
	glob := strings.NewReplacer("YYYY", "*", "YY", "*", "MM", "*", "DD", "*", "HH", "*").
		Replace(l.config.FilenamePattern)
	ext := filepath.Ext(glob)
	// archives carry a timestamp before the extension
	glob = strings.TrimSuffix(glob, ext) + "*" + ext

	matches, err := filepath.Glob(filepath.Join(dir, glob))
	if err != nil || len(matches) <= l.config.MaxFiles {
		return
	}

	type entry struct {
		path    string
		modTime time.Time
	}
	entries := make([]entry, 0, len(matches))
	for _, m := range matches {
		if info, err := os.Stat(m); err == nil {
			entries = append(entries, entry{path: m, modTime: info.ModTime()})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].modTime.After(entries[j].modTime)
	})

	for _, e := range entries[min(l.config.MaxFiles, len(entries)):] {
		os.Remove(e.path)
	}
}

// Write implements io.Writer with a rotation check after each record
func (l *EnhancedLogger) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	n, err := l.out.Write(p)
	if err != nil {
		return n, err
	}
	l.fileSize += int64(n)

	if err := l.rotateIfNeeded(); err != nil {
		fmt.Fprintf(os.Stderr, "Log rotation error: %v\n", err)
	}
	return n, nil
}

// Close closes the log file
func (l *EnhancedLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	l.resetWriters()
	return err
}

// Package-level printf helpers on the global logger

func Debug(format string, args ...interface{}) {
	Get().Debug(fmt.Sprintf(format, args...))
}

func Info(format string, args ...interface{}) {
	Get().Info(fmt.Sprintf(format, args...))
}

func Warn(format string, args ...interface{}) {
	Get().Warn(fmt.Sprintf(format, args...))
}

func Error(format string, args ...interface{}) {
	Get().Error(fmt.Sprintf(format, args...))
}

// Fatal logs at error level and exits
func Fatal(format string, args ...interface{}) {
	Get().Error(fmt.Sprintf(format, args...))
	os.Exit(1)
}

// LogAPIRequest logs an outbound API request. Only non-sensitive headers are kept.
func LogAPIRequest(method, url string, headers map[string]string) {
	fields := []any{
		"method", method,
		"url", url,
		"type", "api_request",
	}
	if ua := headers["User-Agent"]; ua != "" {
		fields = append(fields, "user_agent", ua)
	}

	Get().LogAttrs(context.Background(), slog.LevelDebug, "API request started", slog.Group("request", fields...))
}

// LogAPIResponse logs an outbound API response; level follows the status class
func LogAPIResponse(method, url string, statusCode int, duration string, bodySize int) {
	level := slog.LevelInfo
	switch {
	case statusCode >= 500:
		level = slog.LevelError
	case statusCode >= 400:
		level = slog.LevelWarn
	}

	Get().LogAttrs(context.Background(), level, "API request completed",
		slog.Group("request",
			"method", method,
			"url", url,
			"status_code", statusCode,
			"duration", duration,
			"body_size", bodySize,
			"type", "api_response",
		),
	)
}

// LogHTTPRequest logs a served inbound request
func LogHTTPRequest(method, path string, status int, duration time.Duration, bytes int, remote string) {
	level := slog.LevelInfo
	if status >= 500 {
		level = slog.LevelError
	}

	Get().LogAttrs(context.Background(), level, "HTTP request served",
		slog.Group("http",
			"method", method,
			"path", path,
			"status", status,
			"duration", duration,
			"bytes", bytes,
			"remote", remote,
			"type", "http_request",
		),
	)
}

// LogOperationStart logs the beginning of an operation and returns its completion func
func LogOperationStart(operation string, details map[string]any) func(error) {
	start := time.Now()

	attrs := []slog.Attr{
		slog.String("operation", operation),
		slog.String("type", "operation_start"),
	}
	if len(details) > 0 {
		detailAttrs := make([]any, 0, len(details)*2)
		for k, v := range details {
			detailAttrs = append(detailAttrs, k, v)
		}
		attrs = append(attrs, slog.Group("details", detailAttrs...))
	}
	Get().LogAttrs(context.Background(), slog.LevelDebug, "Operation started", attrs...)

	return func(err error) {
		level := slog.LevelInfo
		message := "Operation completed"
		done := []slog.Attr{
			slog.String("operation", operation),
			slog.String("type", "operation_complete"),
			slog.Duration("duration", time.Since(start)),
			slog.Bool("success", err == nil),
		}
		if err != nil {
			level = slog.LevelError
			message = "Operation failed"
			done = append(done, slog.String("error", err.Error()))
		}
		Get().LogAttrs(context.Background(), level, message, done...)
	}
}

// LogWithFields logs a message with arbitrary structured fields
func LogWithFields(level Level, message string, fields map[string]any) {
	slogLevel := slog.Level(level)
	if level == FatalLevel {
		slogLevel = slog.LevelError
	}

	attrs := make([]slog.Attr, 0, len(fields))
	for k, v := range fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	Get().LogAttrs(context.Background(), slogLevel, message, attrs...)

	if level == FatalLevel {
		os.Exit(1)
	}
}

// ParseLevel converts a string to a log level
func ParseLevel(levelStr string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(levelStr)) {
	case "debug":
		return DebugLevel, nil
	case "info", "":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	case "fatal":
		return FatalLevel, nil
	default:
		return InfoLevel, fmt.Errorf("unknown log level: %s", levelStr)
	}
}
