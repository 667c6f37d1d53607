package api

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"

	"skycast/internal/errorutil"
	"skycast/internal/logger"
	"skycast/internal/metrics"
)

const (
	// Open-Meteo API base URL and endpoint
	openMeteoBaseURL = "https://api.open-meteo.com"
	forecastEndpoint = "/v1/forecast"

	// Hourly variables requested for every forecast
	hourlyVariables = "temperature_2m,precipitation,wind_speed_10m,relative_humidity_2m"

	defaultWeatherTimeout = 15 * time.Second
	defaultForecastDays   = 3

	// User-Agent for API requests
	userAgent = "Skycast/1.0"
)

// ErrEmptyForecast is returned when Open-Meteo answers without hourly data
var ErrEmptyForecast = errors.New("weather API returned no hourly data")

// WeatherConfig contains configuration for the Open-Meteo client
type WeatherConfig struct {
	BaseURL      string
	ForecastDays int
	Timeout      time.Duration
	MaxRetries   int
}

// WeatherClient handles Open-Meteo forecast requests. Open-Meteo needs no
// API key.
type WeatherClient struct {
	client       *resty.Client
	baseURL      string
	forecastDays int
	timeout      time.Duration
}

// NewWeatherClient creates a new Open-Meteo API client
func NewWeatherClient(config WeatherConfig) *WeatherClient {
	if strings.TrimSpace(config.BaseURL) == "" {
		config.BaseURL = openMeteoBaseURL
	}
	if config.ForecastDays <= 0 {
		config.ForecastDays = defaultForecastDays
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultWeatherTimeout
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	baseURL := strings.TrimRight(config.BaseURL, "/")

	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "application/json").
		SetTimeout(config.Timeout).
		SetJSONMarshaler(json.Marshal).
		SetJSONUnmarshaler(json.Unmarshal).
		SetRetryCount(config.MaxRetries).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			if err != nil {
				return !errors.Is(err, context.Canceled)
			}
			return resp != nil && errorutil.IsRetryableStatus(resp.StatusCode())
		})

	client.OnBeforeRequest(func(c *resty.Client, req *resty.Request) error {
		headers := make(map[string]string)
		for key, values := range req.Header {
			if len(values) > 0 {
				headers[key] = values[0]
			}
		}
		logger.LogAPIRequest(req.Method, req.URL, headers)
		return nil
	})

	client.OnAfterResponse(func(c *resty.Client, resp *resty.Response) error {
		logger.LogAPIResponse(resp.Request.Method, resp.Request.URL, resp.StatusCode(),
			resp.Time().String(), len(resp.Body()))
		return nil
	})

	return &WeatherClient{
		client:       client,
		baseURL:      baseURL,
		forecastDays: config.ForecastDays,
		timeout:      config.Timeout,
	}
}

// ForecastReport is the Open-Meteo forecast payload. Field names follow
// Open-Meteo so the same JSON travels from the API to the browser and back
// into the summary endpoint.
type ForecastReport struct {
	Latitude             float64           `json:"latitude"`
	Longitude            float64           `json:"longitude"`
	Timezone             string            `json:"timezone,omitempty"`
	TimezoneAbbreviation string            `json:"timezone_abbreviation,omitempty"`
	UTCOffsetSeconds     int               `json:"utc_offset_seconds,omitempty"`
	Elevation            float64           `json:"elevation,omitempty"`
	HourlyUnits          map[string]string `json:"hourly_units,omitempty"`
	Hourly               *HourlySeries     `json:"hourly"`
}

// HourlySeries holds parallel arrays indexed by Time
type HourlySeries struct {
	Time               []string  `json:"time"`
	Temperature2m      []float64 `json:"temperature_2m"`
	Precipitation      []float64 `json:"precipitation"`
	WindSpeed10m       []float64 `json:"wind_speed_10m"`
	RelativeHumidity2m []float64 `json:"relative_humidity_2m"`
}

// DayOutlook aggregates one calendar day of hourly values
type DayOutlook struct {
	Date               string
	TempMin            float64
	TempMax            float64
	PrecipitationTotal float64
	MaxWindSpeed       float64
	AvgHumidity        float64
	Hours              int
}

// Days groups the hourly series by local date (the "YYYY-MM-DD" prefix of
// each timestamp), in the order the dates appear
func (r *ForecastReport) Days() []DayOutlook {
	if r == nil || r.Hourly == nil {
		return nil
	}
	h := r.Hourly

	var days []DayOutlook
	index := make(map[string]int)
	humiditySum := make(map[string]float64)

	for i, ts := range h.Time {
		date := ts
		if t := strings.IndexByte(ts, 'T'); t >= 0 {
			date = ts[:t]
		}

		pos, ok := index[date]
		if !ok {
			pos = len(days)
			index[date] = pos
			days = append(days, DayOutlook{
				Date:    date,
				TempMin: math.Inf(1),
				TempMax: math.Inf(-1),
			})
		}
		d := &days[pos]
		d.Hours++

		if i < len(h.Temperature2m) {
			d.TempMin = math.Min(d.TempMin, h.Temperature2m[i])
			d.TempMax = math.Max(d.TempMax, h.Temperature2m[i])
		}
		if i < len(h.Precipitation) {
			d.PrecipitationTotal += h.Precipitation[i]
		}
		if i < len(h.WindSpeed10m) {
			d.MaxWindSpeed = math.Max(d.MaxWindSpeed, h.WindSpeed10m[i])
		}
		if i < len(h.RelativeHumidity2m) {
			humiditySum[date] += h.RelativeHumidity2m[i]
		}
	}

	for i := range days {
		d := &days[i]
		if math.IsInf(d.TempMin, 1) {
			d.TempMin, d.TempMax = 0, 0
		}
		d.AvgHumidity = humiditySum[d.Date] / float64(d.Hours)
		d.PrecipitationTotal = math.Round(d.PrecipitationTotal*10) / 10
	}
	return days
}

// OpenMeteoAPIError represents an error response from Open-Meteo
type OpenMeteoAPIError struct {
	StatusCode int
	Reason     string
}

func (e *OpenMeteoAPIError) Error() string {
	return fmt.Sprintf("Open-Meteo API error (status %d): %s", e.StatusCode, e.Reason)
}

// IsRetryable reports whether the request may succeed if repeated
func (e *OpenMeteoAPIError) IsRetryable() bool {
	return errorutil.IsRetryableStatus(e.StatusCode)
}

// parseOpenMeteoError builds an error from a non-2xx response. Open-Meteo
// reports problems as {"error": true, "reason": "..."}.
func parseOpenMeteoError(resp *resty.Response) error {
	var body struct {
		Error  bool   `json:"error"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(resp.Body(), &body); err == nil && body.Reason != "" {
		return &OpenMeteoAPIError{StatusCode: resp.StatusCode(), Reason: body.Reason}
	}

	switch resp.StatusCode() {
	case 400:
		return &OpenMeteoAPIError{StatusCode: 400, Reason: "Invalid request parameters."}
	case 429:
		return &OpenMeteoAPIError{StatusCode: 429, Reason: "API rate limit exceeded. Please try again later."}
	default:
		return &OpenMeteoAPIError{
			StatusCode: resp.StatusCode(),
			Reason:     fmt.Sprintf("API request failed with status %d", resp.StatusCode()),
		}
	}
}

// FetchForecast fetches the hourly forecast for a coordinate
func (w *WeatherClient) FetchForecast(ctx context.Context, latitude, longitude float64) (*ForecastReport, error) {
	if verr := errorutil.ValidateCoordinate("latitude", latitude, true); verr != nil {
		metrics.WeatherRequestsTotal.WithLabelValues("invalid").Inc()
		return nil, verr
	}
	if verr := errorutil.ValidateCoordinate("longitude", longitude, false); verr != nil {
		metrics.WeatherRequestsTotal.WithLabelValues("invalid").Inc()
		return nil, verr
	}

	start := time.Now()
	complete := logger.LogOperationStart("weather_forecast", map[string]any{
		"latitude":      latitude,
		"longitude":     longitude,
		"forecast_days": w.forecastDays,
	})

	report, err := w.fetch(ctx, latitude, longitude)
	metrics.WeatherDurationMs.Observe(float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.WeatherRequestsTotal.WithLabelValues("error").Inc()
		complete(err)
		return nil, err
	}

	metrics.WeatherRequestsTotal.WithLabelValues("success").Inc()
	complete(nil)
	return report, nil
}

func (w *WeatherClient) fetch(ctx context.Context, latitude, longitude float64) (*ForecastReport, error) {
	resp, err := w.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"latitude":      strconv.FormatFloat(latitude, 'f', -1, 64),
			"longitude":     strconv.FormatFloat(longitude, 'f', -1, 64),
			"hourly":        hourlyVariables,
			"forecast_days": strconv.Itoa(w.forecastDays),
			"timezone":      "auto",
		}).
		Get(forecastEndpoint)
	if err != nil {
		netErr := errorutil.NewNetworkError("forecast request", w.baseURL+forecastEndpoint, err).WithTimeout(w.timeout)
		return nil, errorutil.LogNetworkError(logger.Get().Logger, netErr)
	}

	if !resp.IsSuccess() {
		return nil, errorutil.LogAndReturn(logger.Get().Logger, "forecast request", parseOpenMeteoError(resp),
			errorutil.URLContext(w.baseURL+forecastEndpoint)...)
	}

	body := resp.Body()
	if len(body) == 0 {
		return nil, fmt.Errorf("empty response from weather API")
	}

	var report ForecastReport
	if err := json.Unmarshal(body, &report); err != nil {
		return nil, fmt.Errorf("failed to parse weather response: %w", err)
	}
	if report.Hourly == nil {
		return nil, ErrEmptyForecast
	}
	return &report, nil
}
