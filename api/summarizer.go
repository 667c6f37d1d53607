package api

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/goccy/go-json"

	"skycast/internal/errorutil"
	"skycast/internal/logger"
	"skycast/internal/metrics"
)

const (
	// Default values for Claude API
	defaultModel         = "claude-3-5-haiku-latest"
	defaultMaxTokens     = 512
	defaultTemperature   = 0.7
	defaultClaudeTimeout = 30 * time.Second

	// Retry configuration
	defaultMaxRetries   = 3
	defaultBaseDelay    = 1 * time.Second
	defaultMaxDelay     = 30 * time.Second
	defaultJitterFactor = 0.1

	// Rate limiting
	defaultRateLimit = 50 // requests per minute
)

// Fixed texts returned in place of a summary
const (
	SummaryUnconfigured  = "AI summary unavailable: missing Anthropic API key."
	summaryFailurePrefix = "AI summary unavailable at the moment. Reason: "
)

// ClaudeConfig contains configuration for the summarizer
type ClaudeConfig struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64 // negative uses the default
	Timeout     time.Duration
	MaxRetries  int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	RateLimit   int    // requests per minute
	BaseURL     string // empty uses the SDK default
}

// ClaudeAPIError represents errors from the Claude API
type ClaudeAPIError struct {
	Type       string `json:"type"`
	Message    string `json:"message"`
	StatusCode int
	Retryable  bool
}

func (e *ClaudeAPIError) Error() string {
	return fmt.Sprintf("Claude API error (status %d, type %s): %s", e.StatusCode, e.Type, e.Message)
}

// IsRetryable returns true if this error indicates a retryable condition
func (e *ClaudeAPIError) IsRetryable() bool {
	return e.Retryable
}

// Summarizer turns a forecast report into a short plain-text summary using
// the Anthropic Messages API. It never returns an error to callers: failures
// become a readable sentence.
type Summarizer struct {
	client      anthropic.Client
	config      ClaudeConfig
	rateLimiter *RateLimiter
	configured  bool
}

// NewSummarizer creates a summarizer. A blank API key yields an unconfigured
// summarizer that answers every request with SummaryUnconfigured.
func NewSummarizer(config ClaudeConfig) *Summarizer {
	config.APIKey = strings.TrimSpace(config.APIKey)
	if strings.TrimSpace(config.Model) == "" {
		config.Model = defaultModel
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = defaultMaxTokens
	}
	if config.Temperature < 0 {
		config.Temperature = defaultTemperature
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultClaudeTimeout
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = defaultMaxRetries
	}
	if config.BaseDelay <= 0 {
		config.BaseDelay = defaultBaseDelay
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = defaultMaxDelay
	}
	if config.RateLimit <= 0 {
		config.RateLimit = defaultRateLimit
	}

	s := &Summarizer{
		config:      config,
		rateLimiter: NewRateLimiter(config.RateLimit, time.Minute),
		configured:  config.APIKey != "",
	}
	if !s.configured {
		return s
	}

	// retries are handled here, not by the SDK
	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		option.WithMaxRetries(0),
	}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(config.BaseURL, "/")+"/"))
	}
	s.client = anthropic.NewClient(opts...)
	return s
}

// Configured reports whether an API key is present
func (s *Summarizer) Configured() bool {
	return s.configured
}

// Model returns the configured model name
func (s *Summarizer) Model() string {
	return s.config.Model
}

// Summarize returns a plain-text summary of report for city (or "the provided
// coordinates") in timezone (or "auto")
func (s *Summarizer) Summarize(ctx context.Context, report *ForecastReport, timezone, city string) string {
	if !s.configured {
		metrics.SummariesTotal.WithLabelValues("unconfigured").Inc()
		return SummaryUnconfigured
	}

	complete := logger.LogOperationStart("ai_summary", map[string]any{
		"model":       s.config.Model,
		"max_tokens":  s.config.MaxTokens,
		"max_retries": s.config.MaxRetries,
		"city":        city,
	})

	reportJSON, err := json.Marshal(report)
	if err != nil {
		reportJSON = []byte("{}")
	}

	messageReq := anthropic.MessageNewParams{
		Model:       anthropic.Model(s.config.Model),
		MaxTokens:   int64(s.config.MaxTokens),
		Temperature: anthropic.Float(s.config.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewTextBlock(buildPrompt(string(reportJSON), timezone, city)),
			),
		},
	}

	resp, err := s.executeWithRetry(ctx, messageReq)
	if err == nil {
		var text string
		text, err = firstText(resp)
		if err == nil {
			metrics.SummariesTotal.WithLabelValues("success").Inc()
			complete(nil)
			return text
		}
	}

	metrics.SummariesTotal.WithLabelValues("failure").Inc()
	complete(err)
	return summaryFailurePrefix + failureReason(err)
}

// buildPrompt assembles the instruction and the report JSON
func buildPrompt(reportJSON, timezone, city string) string {
	location := strings.TrimSpace(city)
	if location == "" {
		location = "the provided coordinates"
	}
	tz := strings.TrimSpace(timezone)
	if tz == "" {
		tz = "auto"
	}

	var b strings.Builder
	b.WriteString("You are an assistant that summarizes short-term weather forecasts for lay people.\n")
	b.WriteString("Given the JSON weather report from Open-Meteo (hourly arrays for the next ~72 hours) and context, provide:\n")
	fmt.Fprintf(&b, "1) A concise overview of the upcoming weather for the next 1-3 days in %s (timezone: %s).\n", location, tz)
	b.WriteString("2) Practical tips.\n")
	b.WriteString("3) 3-5 activity suggestions suited to the conditions (indoor/outdoor).\n")
	b.WriteString("Be specific about temperature ranges, precipitation likelihood, wind, and humidity.\n")
	b.WriteString("Keep it under 180 words, use short paragraphs and bullet points.\n\n")
	b.WriteString("Weather JSON:\n")
	b.WriteString(reportJSON)
	b.WriteString("\n\nRespond in plain text (no JSON).")
	return b.String()
}

func firstText(resp *anthropic.Message) (string, error) {
	if resp == nil || len(resp.Content) == 0 {
		return "", fmt.Errorf("empty response from Claude API")
	}
	for _, block := range resp.Content {
		if block.Type == "text" && strings.TrimSpace(block.Text) != "" {
			return strings.TrimSpace(block.Text), nil
		}
	}
	return "", fmt.Errorf("no text content in Claude API response")
}

// failureReason prefers the upstream message over the wrapped error chain
func failureReason(err error) string {
	var claudeErr *ClaudeAPIError
	if errors.As(err, &claudeErr) {
		return claudeErr.Message
	}
	return err.Error()
}

// executeWithRetry executes a Claude API request with retry logic and rate limiting
func (s *Summarizer) executeWithRetry(ctx context.Context, messageReq anthropic.MessageNewParams) (*anthropic.Message, error) {
	var lastErr *ClaudeAPIError

	for attempt := 0; attempt <= s.config.MaxRetries; attempt++ {
		if err := s.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter cancelled: %w", err)
		}

		if attempt > 0 {
			logger.LogWithFields(logger.InfoLevel, "Retrying Claude API request", map[string]any{
				"attempt":      attempt + 1,
				"max_attempts": s.config.MaxRetries + 1,
			})
		}

		reqCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
		resp, err := s.client.Messages.New(reqCtx, messageReq)
		cancel()

		if err == nil {
			if attempt > 0 {
				logger.LogWithFields(logger.InfoLevel, "Claude API request succeeded after retries", map[string]any{
					"successful_attempt": attempt + 1,
				})
			}
			return resp, nil
		}

		lastErr = parseClaudeError(err)
		if !lastErr.IsRetryable() {
			errorutil.LogWarning(logger.Get().Logger, "claude request", err,
				errorutil.APIContext("anthropic", s.config.Model)...)
			return nil, lastErr
		}
		if attempt == s.config.MaxRetries {
			break
		}

		delay := s.calculateRetryDelay(attempt)
		logger.LogWithFields(logger.WarnLevel, "Claude API request failed, retrying", map[string]any{
			"error":        err.Error(),
			"attempt":      attempt + 1,
			"next_attempt": attempt + 2,
			"delay_ms":     delay.Milliseconds(),
		})

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
	}

	logger.LogWithFields(logger.ErrorLevel, "Claude API request failed after all retries", map[string]any{
		"total_attempts": s.config.MaxRetries + 1,
		"final_error":    lastErr.Error(),
	})
	return nil, fmt.Errorf("Claude API request failed after %d attempts: %w", s.config.MaxRetries+1, lastErr)
}

// calculateRetryDelay computes exponential backoff with jitter
func (s *Summarizer) calculateRetryDelay(attempt int) time.Duration {
	delay := time.Duration(float64(s.config.BaseDelay) * math.Pow(2, float64(attempt)))
	if delay > s.config.MaxDelay {
		delay = s.config.MaxDelay
	}

	jitter := time.Duration(float64(delay) * defaultJitterFactor * (rand.Float64() - 0.5) * 2)
	delay += jitter
	if delay < 0 {
		delay = s.config.BaseDelay
	}
	return delay
}

// parseClaudeError converts SDK, context and transport errors into a
// ClaudeAPIError with retry information
func parseClaudeError(err error) *ClaudeAPIError {
	if err == nil {
		return &ClaudeAPIError{Type: "unknown", Message: "unknown error"}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &ClaudeAPIError{Type: "timeout", Message: "request timeout", Retryable: true}
	}
	if errors.Is(err, context.Canceled) {
		return &ClaudeAPIError{Type: "cancelled", Message: "request cancelled"}
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.StatusCode, apiErr.Error())
	}

	errStr := strings.ToLower(err.Error())
	if strings.Contains(errStr, "connection") || strings.Contains(errStr, "network") ||
		strings.Contains(errStr, "timeout") || strings.Contains(errStr, "dns") {
		return &ClaudeAPIError{Type: "network_error", Message: "network or connection error", Retryable: true}
	}

	return &ClaudeAPIError{Type: "api_error", Message: err.Error()}
}

// classifyStatus maps an HTTP status to an error type. raw is the SDK error
// text, which ends with the JSON error body when the API sent one.
func classifyStatus(status int, raw string) *ClaudeAPIError {
	e := &ClaudeAPIError{StatusCode: status, Retryable: errorutil.IsRetryableStatus(status)}

	switch {
	case status == 429:
		e.Type, e.Message = "rate_limit_error", "API rate limit exceeded"
	case status == 529:
		e.Type, e.Message = "overloaded_error", "API is temporarily overloaded"
	case status >= 500:
		e.Type, e.Message = "server_error", "server error"
	case status == 401 || status == 403:
		e.Type, e.Message = "authentication_error", "invalid API key or unauthorized"
	case status == 400:
		e.Type, e.Message = "invalid_request_error", "invalid request"
	default:
		e.Type, e.Message = "api_error", fmt.Sprintf("unexpected status %d", status)
	}

	if i := strings.IndexByte(raw, '{'); i >= 0 {
		var body struct {
			Error struct {
				Type    string `json:"type"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal([]byte(raw[i:]), &body) == nil && body.Error.Message != "" {
			e.Message = body.Error.Message
			if body.Error.Type != "" {
				e.Type = body.Error.Type
			}
		}
	}
	return e
}
