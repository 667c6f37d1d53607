package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"skycast/api"
	"skycast/city"
	"skycast/config"
	"skycast/internal/errorutil"
	"skycast/internal/logger"
	"skycast/web"
)

func main() {
	// Define command-line flags
	configPath := flag.String("config", getDefaultConfigPath(), "Path to TOML configuration file")
	logLevel := flag.String("log-level", "", "Override the configured log level (debug, info, warn, error)")
	envFile := flag.String("env-file", ".env", "Optional dotenv file with secrets such as ANTHROPIC_API_KEY")
	generateConfig := flag.Bool("generate-config", false, "Generate a sample configuration file and exit")
	flag.Parse()

	// Handle config generation
	if *generateConfig {
		err := errorutil.ExecuteWithLogging(logger.Get().Logger, "generate sample config", func() error {
			return config.GenerateSampleConfig(*configPath)
		}, errorutil.ConfigContext(*configPath)...)
		if err != nil {
			logger.Fatal("Failed to generate sample config: %v", err)
		}
		logger.Info("Sample configuration file created at: %s", *configPath)
		logger.Info("Set ANTHROPIC_API_KEY (or apis.anthropic) to enable AI summaries")
		return
	}

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		errorutil.LogWarning(logger.Get().Logger, "load env file", err, errorutil.FileContext(*envFile)...)
	}

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		var configNotFound *config.ConfigNotFoundError
		if errors.As(err, &configNotFound) {
			logger.Fatal("%v", err)
		} else {
			logger.Fatal("%v", errorutil.LogAndWrap(logger.Get().Logger, "load configuration", err,
				errorutil.ConfigContext(*configPath)...))
		}
	}
	cfg.ApplyEnvOverrides()

	if *logLevel != "" {
		if _, err := logger.ParseLevel(*logLevel); err != nil {
			logger.Warn("Invalid log level: %s, keeping %s", *logLevel, cfg.Logging.Level)
		} else {
			cfg.Logging.Level = *logLevel
		}
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		logger.Fatal("Configuration validation failed: %v", err)
	}

	if err := logger.Initialize(logger.Config(cfg.Logging)); err != nil {
		logger.Fatal("Failed to initialize logging: %v", err)
	}
	defer logger.Get().Close()

	logger.Info("Skycast - city search and forecast summaries")
	logger.Debug("Configuration loaded and validated from: %s", *configPath)

	catalog := city.NewCatalog(catalogSources(cfg.Catalog)...)

	weather := api.NewWeatherClient(api.WeatherConfig{
		BaseURL:      cfg.Weather.BaseURL,
		ForecastDays: cfg.Weather.ForecastDays,
		Timeout:      cfg.Weather.Timeout(),
		MaxRetries:   cfg.Weather.MaxRetries,
	})

	summarizer := api.NewSummarizer(api.ClaudeConfig{
		APIKey:      cfg.APIs.Anthropic,
		Model:       cfg.Claude.Model,
		MaxTokens:   cfg.Claude.MaxTokens,
		Temperature: *cfg.Claude.Temperature,
		Timeout:     cfg.Claude.Timeout(),
		MaxRetries:  cfg.Claude.MaxRetries,
		BaseDelay:   time.Duration(cfg.Claude.BaseDelayMs) * time.Millisecond,
		MaxDelay:    time.Duration(cfg.Claude.MaxDelayMs) * time.Millisecond,
		RateLimit:   cfg.Claude.RateLimit,
		BaseURL:     cfg.Claude.BaseURL,
	})
	if !summarizer.Configured() {
		logger.Warn("No Anthropic API key configured; AI summaries are disabled")
	}

	srv, err := web.NewServer(web.Dependencies{
		Cities:     city.NewSearcher(catalog),
		Weather:    weather,
		Summarizer: summarizer,
		Catalog:    catalog,
	}, web.Options{VisitorName: cfg.Server.VisitorName})
	if err != nil {
		logger.Fatal("Failed to build web server: %v", err)
	}

	httpServer := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           srv.Router(),
		ReadHeaderTimeout: cfg.Server.ReadTimeout(),
		ReadTimeout:       cfg.Server.ReadTimeout(),
		WriteTimeout:      cfg.Server.WriteTimeout(),
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Listening on %s", cfg.Server.Address)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server failed: %v", err)
		}
	}()

	sig := <-stop
	logger.Info("Received %s, shutting down", sig)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout())
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("Graceful shutdown failed: %v", err)
	}
	logger.Info("Shutdown complete")
}

// catalogSources builds the ordered fallback chain: an on-disk file or the
// bundled catalog first, then the remote copy unless disabled
func catalogSources(cfg config.Catalog) []city.Source {
	var sources []city.Source
	if cfg.Path != "" {
		sources = append(sources, city.NewFileSource(cfg.Path))
	} else {
		sources = append(sources, city.DefaultBundledSource())
	}

	if !cfg.DisableFallback {
		sources = append(sources, city.NewRemoteSource(cfg.FallbackURL, city.RemoteOptions{
			ConnectTimeout: cfg.ConnectTimeout(),
			RequestTimeout: cfg.RequestTimeout(),
		}))
	}
	return sources
}

// getDefaultConfigPath returns a cross-platform default config path
func getDefaultConfigPath() string {
	// Try to use config.toml in the current directory
	return filepath.Clean("config.toml")
}
