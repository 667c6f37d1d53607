package errorutil

import (
	"fmt"
	"log/slog"
	"time"
)

func toAny(attrs []slog.Attr) []any {
	out := make([]any, len(attrs))
	for i, attr := range attrs {
		out[i] = attr
	}
	return out
}

// LogAndWrap logs an error with structured context and returns it wrapped
// with the operation name
func LogAndWrap(logger *slog.Logger, operation string, err error, attrs ...slog.Attr) error {
	if logger == nil || err == nil {
		return err
	}

	logAttrs := append([]slog.Attr{slog.String("error", err.Error())}, attrs...)
	logger.Error(operation+" failed", toAny(logAttrs)...)
	return fmt.Errorf("%s: %w", operation, err)
}

// LogWarning logs a recoverable error without wrapping it
func LogWarning(logger *slog.Logger, operation string, err error, attrs ...slog.Attr) {
	if logger == nil || err == nil {
		return
	}

	logAttrs := append([]slog.Attr{slog.String("error", err.Error())}, attrs...)
	logger.Warn("Non-fatal error in "+operation, toAny(logAttrs)...)
}

// LogAndReturn logs an error and returns it unchanged
func LogAndReturn(logger *slog.Logger, operation string, err error, attrs ...slog.Attr) error {
	if logger == nil || err == nil {
		return err
	}

	logAttrs := append([]slog.Attr{slog.String("error", err.Error())}, attrs...)
	logger.Error(operation+" failed", toAny(logAttrs)...)
	return err
}

// ExecuteWithLogging runs fn with start/completion logging and timing
func ExecuteWithLogging(logger *slog.Logger, operation string, fn func() error, attrs ...slog.Attr) error {
	if logger == nil {
		return fn()
	}

	start := time.Now()
	logger.Debug("Starting "+operation, toAny(attrs)...)

	err := fn()

	done := append(append([]slog.Attr{}, attrs...), slog.Duration("duration", time.Since(start)))
	if err != nil {
		done = append(done, slog.String("error", err.Error()))
		logger.Error("Failed "+operation, toAny(done)...)
		return fmt.Errorf("%s: %w", operation, err)
	}

	logger.Debug("Completed "+operation, toAny(done)...)
	return nil
}

// Common context helpers for frequently used attributes

// WeatherContext creates context attributes for forecast operations
func WeatherContext(latitude, longitude float64) []slog.Attr {
	return []slog.Attr{
		slog.Float64("latitude", latitude),
		slog.Float64("longitude", longitude),
	}
}

// SearchContext creates context attributes for city searches
func SearchContext(query string, limit int) []slog.Attr {
	return []slog.Attr{
		slog.String("query", query),
		slog.Int("limit", limit),
	}
}

// CatalogContext creates context attributes for catalog sources
func CatalogContext(source string) []slog.Attr {
	if source == "" {
		return nil
	}
	return []slog.Attr{slog.String("source", source)}
}

// ConfigContext creates context attributes for configuration operations
func ConfigContext(configFile string) []slog.Attr {
	if configFile == "" {
		return nil
	}
	return []slog.Attr{slog.String("config_file", configFile)}
}

// FileContext creates context attributes for file operations
func FileContext(filePath string) []slog.Attr {
	if filePath == "" {
		return nil
	}
	return []slog.Attr{slog.String("file_path", filePath)}
}

// URLContext creates context attributes for URL/API operations
func URLContext(url string) []slog.Attr {
	if url == "" {
		return nil
	}
	return []slog.Attr{slog.String("url", url)}
}

// APIContext creates context attributes for API operations
func APIContext(provider, model string) []slog.Attr {
	attrs := make([]slog.Attr, 0, 2)
	if provider != "" {
		attrs = append(attrs, slog.String("api_provider", provider))
	}
	if model != "" {
		attrs = append(attrs, slog.String("model", model))
	}
	return attrs
}
