package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

const messageResponse = `{
  "id": "msg_01",
  "type": "message",
  "role": "assistant",
  "model": "claude-3-5-haiku-latest",
  "content": [{"type": "text", "text": "  Mild and dry through Tuesday.\n- Pack a light jacket.  "}],
  "stop_reason": "end_turn",
  "stop_sequence": null,
  "usage": {"input_tokens": 120, "output_tokens": 20}
}`

func sampleReport() *ForecastReport {
	return &ForecastReport{
		Latitude:  40.7128,
		Longitude: -74.006,
		Timezone:  "America/New_York",
		Hourly: &HourlySeries{
			Time:               []string{"2023-01-01T00:00", "2023-01-01T01:00"},
			Temperature2m:      []float64{20.5, 21.0},
			Precipitation:      []float64{0.0, 0.0},
			WindSpeed10m:       []float64{5.0, 5.5},
			RelativeHumidity2m: []float64{65.0, 70.0},
		},
	}
}

// newTestSummarizer points a summarizer at handler with fast retries
func newTestSummarizer(t *testing.T, handler http.HandlerFunc, retries int) *Summarizer {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewSummarizer(ClaudeConfig{
		APIKey:     "sk-ant-test-key",
		BaseURL:    server.URL,
		MaxRetries: retries,
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
		Timeout:    5 * time.Second,
	})
}

func writeAPIError(w http.ResponseWriter, status int, errType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"type":"error","error":{"type":%q,"message":%q}}`, errType, message)
}

func TestSummarizerUnconfigured(t *testing.T) {
	s := NewSummarizer(ClaudeConfig{APIKey: "   "})

	if s.Configured() {
		t.Error("Blank key should leave the summarizer unconfigured")
	}
	if s.Model() != defaultModel {
		t.Errorf("Expected default model %s, got %s", defaultModel, s.Model())
	}

	got := s.Summarize(context.Background(), sampleReport(), "UTC", "Test City")
	if got != "AI summary unavailable: missing Anthropic API key." {
		t.Errorf("Unexpected unconfigured summary: %q", got)
	}
}

func TestSummarizerDefaults(t *testing.T) {
	s := NewSummarizer(ClaudeConfig{APIKey: "sk-ant-test-key", MaxRetries: -1, Temperature: -1})

	if !s.Configured() {
		t.Error("Expected summarizer to be configured")
	}
	if s.config.MaxRetries != defaultMaxRetries {
		t.Errorf("Expected MaxRetries %d, got %d", defaultMaxRetries, s.config.MaxRetries)
	}
	if s.config.Temperature != defaultTemperature {
		t.Errorf("Expected Temperature %v, got %v", defaultTemperature, s.config.Temperature)
	}
	if s.config.BaseDelay != defaultBaseDelay {
		t.Errorf("Expected BaseDelay %v, got %v", defaultBaseDelay, s.config.BaseDelay)
	}
	if s.config.MaxDelay != defaultMaxDelay {
		t.Errorf("Expected MaxDelay %v, got %v", defaultMaxDelay, s.config.MaxDelay)
	}
	if s.config.RateLimit != defaultRateLimit {
		t.Errorf("Expected RateLimit %d, got %d", defaultRateLimit, s.config.RateLimit)
	}
	if s.rateLimiter == nil {
		t.Error("Expected rate limiter to be initialized")
	}
}

func TestSummarizerKeepsZeroTemperature(t *testing.T) {
	s := NewSummarizer(ClaudeConfig{APIKey: "sk-ant-test-key", Temperature: 0})
	if s.config.Temperature != 0 {
		t.Errorf("Explicit zero temperature replaced with %v", s.config.Temperature)
	}
}

func TestSummarize(t *testing.T) {
	var body string
	s := newTestSummarizer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if key := r.Header.Get("X-Api-Key"); key != "sk-ant-test-key" {
			t.Errorf("Unexpected API key header %q", key)
		}
		raw, _ := io.ReadAll(r.Body)
		body = string(raw)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(messageResponse))
	}, 0)

	got := s.Summarize(context.Background(), sampleReport(), "America/New_York", "New York")
	if got != "Mild and dry through Tuesday.\n- Pack a light jacket." {
		t.Errorf("Unexpected summary: %q", got)
	}

	for _, want := range []string{
		`"model":"claude-3-5-haiku-latest"`,
		"in New York (timezone: America/New_York)",
		"temperature_2m",
		"Respond in plain text",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("Request body missing %q", want)
		}
	}
}

func TestSummarizeFailures(t *testing.T) {
	tests := []struct {
		name      string
		retries   int
		handler   func(call int32, w http.ResponseWriter)
		wantCalls int32
		want      string
	}{
		{
			name:    "bad request is not retried",
			retries: 3,
			handler: func(call int32, w http.ResponseWriter) {
				writeAPIError(w, 400, "invalid_request_error", "max_tokens: field required")
			},
			wantCalls: 1,
			want:      "AI summary unavailable at the moment. Reason: max_tokens: field required",
		},
		{
			name:    "overloaded until retries run out",
			retries: 2,
			handler: func(call int32, w http.ResponseWriter) {
				writeAPIError(w, 529, "overloaded_error", "Overloaded")
			},
			wantCalls: 3,
			want:      "AI summary unavailable at the moment. Reason: Overloaded",
		},
		{
			name:    "empty content",
			retries: 0,
			handler: func(call int32, w http.ResponseWriter) {
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(`{"id":"msg_02","type":"message","role":"assistant","model":"m","content":[],"stop_reason":"end_turn","usage":{"input_tokens":1,"output_tokens":0}}`))
			},
			wantCalls: 1,
			want:      "AI summary unavailable at the moment. Reason: empty response from Claude API",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			s := newTestSummarizer(t, func(w http.ResponseWriter, r *http.Request) {
				tt.handler(calls.Add(1), w)
			}, tt.retries)

			got := s.Summarize(context.Background(), sampleReport(), "", "")
			if got != tt.want {
				t.Errorf("Summary = %q, want %q", got, tt.want)
			}
			if calls.Load() != tt.wantCalls {
				t.Errorf("Expected %d calls, got %d", tt.wantCalls, calls.Load())
			}
		})
	}
}

func TestSummarizeRecoversAfterServerError(t *testing.T) {
	var calls atomic.Int32
	s := newTestSummarizer(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			writeAPIError(w, 500, "api_error", "Internal server error")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(messageResponse))
	}, 2)

	got := s.Summarize(context.Background(), sampleReport(), "UTC", "Zagreb")
	if !strings.HasPrefix(got, "Mild and dry") {
		t.Errorf("Expected summary after retry, got %q", got)
	}
	if calls.Load() != 2 {
		t.Errorf("Expected 2 calls, got %d", calls.Load())
	}
}

func TestBuildPrompt(t *testing.T) {
	tests := []struct {
		name     string
		timezone string
		city     string
		want     string
	}{
		{"city and timezone", "Europe/Zagreb", "Zagreb", "next 1-3 days in Zagreb (timezone: Europe/Zagreb)."},
		{"defaults", "", "", "next 1-3 days in the provided coordinates (timezone: auto)."},
		{"blank city", "UTC", "   ", "in the provided coordinates (timezone: UTC)."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prompt := buildPrompt(`{"latitude":1}`, tt.timezone, tt.city)
			if !strings.Contains(prompt, tt.want) {
				t.Errorf("Prompt missing %q:\n%s", tt.want, prompt)
			}
			if !strings.Contains(prompt, "Weather JSON:\n{\"latitude\":1}\n\n") {
				t.Error("Prompt does not embed the report JSON")
			}
			if !strings.Contains(prompt, "under 180 words") {
				t.Error("Prompt missing length limit")
			}
		})
	}
}

func TestParseClaudeError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		expectType string
		retryable  bool
	}{
		{"timeout", context.DeadlineExceeded, "timeout", true},
		{"wrapped timeout", fmt.Errorf("post: %w", context.DeadlineExceeded), "timeout", true},
		{"cancelled", context.Canceled, "cancelled", false},
		{"network", errors.New("dial tcp: connection refused"), "network_error", true},
		{"unknown", errors.New("some other error"), "api_error", false},
		{"nil", nil, "unknown", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claudeErr := parseClaudeError(tt.err)
			if claudeErr.Type != tt.expectType {
				t.Errorf("Expected error type %q, got %q", tt.expectType, claudeErr.Type)
			}
			if claudeErr.IsRetryable() != tt.retryable {
				t.Errorf("Expected retryable %v, got %v", tt.retryable, claudeErr.IsRetryable())
			}
		})
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status     int
		raw        string
		expectType string
		message    string
		retryable  bool
	}{
		{429, "", "rate_limit_error", "API rate limit exceeded", true},
		{529, "", "overloaded_error", "API is temporarily overloaded", true},
		{503, "", "server_error", "server error", true},
		{401, "", "authentication_error", "invalid API key or unauthorized", false},
		{400, "", "invalid_request_error", "invalid request", false},
		{404, `POST "https://api.anthropic.com/v1/messages": 404 Not Found {"type":"error","error":{"type":"not_found_error","message":"model: nope"}}`,
			"not_found_error", "model: nope", false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			e := classifyStatus(tt.status, tt.raw)
			if e.Type != tt.expectType || e.Message != tt.message || e.Retryable != tt.retryable {
				t.Errorf("classifyStatus(%d) = %+v, want type=%s message=%q retryable=%v",
					tt.status, e, tt.expectType, tt.message, tt.retryable)
			}
		})
	}
}

func TestCalculateRetryDelay(t *testing.T) {
	s := &Summarizer{
		config: ClaudeConfig{
			BaseDelay: 100 * time.Millisecond,
			MaxDelay:  5 * time.Second,
		},
	}

	tests := []struct {
		attempt     int
		expectedMin time.Duration
		expectedMax time.Duration
	}{
		// ±10% jitter
		{0, 90 * time.Millisecond, 110 * time.Millisecond},
		{1, 180 * time.Millisecond, 220 * time.Millisecond},
		{2, 360 * time.Millisecond, 440 * time.Millisecond},
		{3, 720 * time.Millisecond, 880 * time.Millisecond},
		{10, 4500 * time.Millisecond, 5500 * time.Millisecond}, // capped
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d", tt.attempt), func(t *testing.T) {
			delay := s.calculateRetryDelay(tt.attempt)
			if delay < tt.expectedMin || delay > tt.expectedMax {
				t.Errorf("Attempt %d: expected delay between %v and %v, got %v",
					tt.attempt, tt.expectedMin, tt.expectedMax, delay)
			}
		})
	}
}
