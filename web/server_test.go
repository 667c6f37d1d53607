package web

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"skycast/api"
)

type fakeSearcher struct {
	query   string
	limit   int
	calls   int
	results []string
	panics  bool
}

func (f *fakeSearcher) Search(query string, limit int) []string {
	if f.panics {
		panic("search exploded")
	}
	f.calls++
	f.query, f.limit = query, limit
	return f.results
}

type fakeWeather struct {
	report *api.ForecastReport
	err    error
	calls  int
}

func (f *fakeWeather) FetchForecast(ctx context.Context, lat, lon float64) (*api.ForecastReport, error) {
	f.calls++
	return f.report, f.err
}

type fakeSummarizer struct {
	timezone, city string
	report         *api.ForecastReport
}

func (f *fakeSummarizer) Summarize(ctx context.Context, report *api.ForecastReport, timezone, city string) string {
	f.report, f.timezone, f.city = report, timezone, city
	return "Sunny with a chance of tests."
}

func (f *fakeSummarizer) Configured() bool { return true }
func (f *fakeSummarizer) Model() string { return "claude-test" }

type fakeCatalog struct{}

func (fakeCatalog) Loaded() bool { return true }
func (fakeCatalog) Size() int { return 42 }

type fixture struct {
	searcher   *fakeSearcher
	weather    *fakeWeather
	summarizer *fakeSummarizer
	server     *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		searcher:   &fakeSearcher{results: []string{"Zagreb HR (45.815,15.9819)"}},
		weather:    &fakeWeather{report: sampleReport()},
		summarizer: &fakeSummarizer{},
	}

	srv, err := NewServer(Dependencies{
		Cities:     f.searcher,
		Weather:    f.weather,
		Summarizer: f.summarizer,
		Catalog:    fakeCatalog{},
	}, Options{
		VisitorName: "Ana",
		Now:         func() time.Time { return time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}

	f.server = httptest.NewServer(srv.Router())
	t.Cleanup(f.server.Close)
	return f
}

func sampleReport() *api.ForecastReport {
	return &api.ForecastReport{
		Latitude:  45.815,
		Longitude: 15.9819,
		Timezone:  "Europe/Zagreb",
		Hourly: &api.HourlySeries{
			Time:               []string{"2024-03-05T00:00", "2024-03-05T12:00"},
			Temperature2m:      []float64{4.0, 12.5},
			Precipitation:      []float64{0.0, 0.3},
			WindSpeed10m:       []float64{6.0, 11.0},
			RelativeHumidity2m: []float64{85, 55},
		},
	}
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func TestHome(t *testing.T) {
	f := newFixture(t)

	status, body := get(t, f.server.URL+"/")
	if status != http.StatusOK {
		t.Fatalf("Expected 200, got %d", status)
	}
	if !strings.Contains(body, "Welcome to Skycast, Ana! Today is 2024-03-05.") {
		t.Errorf("Home page missing greeting:\n%s", body)
	}
}

func TestCitySearch(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantLimit  int
		wantQuery  string
	}{
		{"default limit", "?q=zag", http.StatusOK, 10, "zag"},
		{"explicit limit", "?q=zag&limit=5", http.StatusOK, 5, "zag"},
		{"limit clamped high", "?q=zag&limit=500", http.StatusOK, 50, "zag"},
		{"limit clamped low", "?q=zag&limit=0", http.StatusOK, 1, "zag"},
		{"negative limit", "?q=zag&limit=-3", http.StatusOK, 1, "zag"},
		{"missing query", "", http.StatusOK, 10, ""},
		{"non-integer limit", "?q=zag&limit=ten", http.StatusBadRequest, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			status, body := get(t, f.server.URL+"/api/cities/search"+tt.query)
			if status != tt.wantStatus {
				t.Fatalf("Expected status %d, got %d (%s)", tt.wantStatus, status, body)
			}
			if tt.wantStatus != http.StatusOK {
				if f.searcher.calls != 0 {
					t.Error("Searcher should not be called for a bad request")
				}
				return
			}

			if f.searcher.limit != tt.wantLimit {
				t.Errorf("Expected limit %d, got %d", tt.wantLimit, f.searcher.limit)
			}
			if f.searcher.query != tt.wantQuery {
				t.Errorf("Expected query %q, got %q", tt.wantQuery, f.searcher.query)
			}

			var got []string
			if err := json.Unmarshal([]byte(body), &got); err != nil {
				t.Fatalf("Response is not a JSON array: %v (%s)", err, body)
			}
			if len(got) != 1 || got[0] != "Zagreb HR (45.815,15.9819)" {
				t.Errorf("Unexpected results %v", got)
			}
		})
	}
}

func TestCitySearchEmptyResultIsArray(t *testing.T) {
	f := newFixture(t)
	f.searcher.results = nil

	status, body := get(t, f.server.URL+"/api/cities/search?q=nowhere")
	if status != http.StatusOK {
		t.Fatalf("Expected 200, got %d", status)
	}
	if strings.TrimSpace(body) != "[]" {
		t.Errorf("Expected [], got %s", body)
	}
}

func TestReport(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		fetchErr   error
		wantStatus int
		wantBody   []string
		wantFetch  bool
	}{
		{
			name:       "success",
			query:      "?lat=45.815&lon=15.9819&city=Zagreb",
			wantStatus: http.StatusOK,
			wantBody:   []string{"Zagreb", "45.815, 15.9819", "Europe/Zagreb", "2024-03-05", "12.5", "Summarize this forecast"},
			wantFetch:  true,
		},
		{
			name:       "non-numeric latitude",
			query:      "?lat=north&lon=15",
			wantStatus: http.StatusBadRequest,
			wantBody:   []string{"must be decimal numbers"},
		},
		{
			name:       "missing longitude",
			query:      "?lat=45",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "out of range",
			query:      "?lat=95&lon=15",
			wantStatus: http.StatusOK,
			wantBody:   []string{"Invalid coordinates."},
		},
		{
			name:       "upstream failure",
			query:      "?lat=45.815&lon=15.9819&city=Zagreb",
			fetchErr:   errors.New("boom"),
			wantStatus: http.StatusOK,
			wantBody:   []string{"Failed to fetch weather data. Please try again later.", "Zagreb"},
			wantFetch:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.weather.err = tt.fetchErr

			status, body := get(t, f.server.URL+"/report"+tt.query)
			if status != tt.wantStatus {
				t.Fatalf("Expected status %d, got %d", tt.wantStatus, status)
			}
			for _, want := range tt.wantBody {
				if !strings.Contains(body, want) {
					t.Errorf("Report page missing %q", want)
				}
			}
			if (f.weather.calls > 0) != tt.wantFetch {
				t.Errorf("Expected fetch=%v, got %d calls", tt.wantFetch, f.weather.calls)
			}
		})
	}
}

func TestAISummary(t *testing.T) {
	f := newFixture(t)

	payload, _ := json.Marshal(sampleReport())
	resp, err := http.Post(f.server.URL+"/api/ai-summary?timezone=Europe/Zagreb&city=Zagreb",
		"application/json", strings.NewReader(string(payload)))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	var got summaryResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	want := summaryResponse{Summary: "Sunny with a chance of tests.", Model: "claude-test", Configured: true}
	if got != want {
		t.Errorf("Response = %+v, want %+v", got, want)
	}

	if f.summarizer.timezone != "Europe/Zagreb" || f.summarizer.city != "Zagreb" {
		t.Errorf("Context not forwarded: timezone=%q city=%q", f.summarizer.timezone, f.summarizer.city)
	}
	if f.summarizer.report == nil || f.summarizer.report.Hourly == nil || len(f.summarizer.report.Hourly.Time) != 2 {
		t.Errorf("Report not forwarded intact: %+v", f.summarizer.report)
	}
}

func TestAISummaryBadBody(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Post(f.server.URL+"/api/ai-summary", "application/json", strings.NewReader("{not json"))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", resp.StatusCode)
	}

	var got summaryError
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if got.Summary != "AI summary failed." || got.Error == "" {
		t.Errorf("Unexpected error response %+v", got)
	}
	if f.summarizer.report != nil {
		t.Error("Summarizer should not be called for an undecodable body")
	}
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t)

	status, body := get(t, f.server.URL+"/healthz")
	if status != http.StatusOK {
		t.Fatalf("Expected 200, got %d", status)
	}
	var health healthResponse
	if err := json.Unmarshal([]byte(body), &health); err != nil {
		t.Fatalf("Failed to decode health: %v", err)
	}
	if !health.CatalogLoaded || health.CatalogCities != 42 {
		t.Errorf("Unexpected health %+v", health)
	}

	status, body = get(t, f.server.URL+"/metrics")
	if status != http.StatusOK {
		t.Fatalf("Expected 200, got %d", status)
	}
	if !strings.Contains(body, `skycast_http_requests_total{code="200",route="/healthz"}`) {
		t.Error("Metrics missing request counter for /healthz")
	}
}

func TestPanicRecovery(t *testing.T) {
	f := newFixture(t)
	f.searcher.panics = true

	status, _ := get(t, f.server.URL+"/api/cities/search?q=zag")
	if status != http.StatusInternalServerError {
		t.Errorf("Expected 500 after panic, got %d", status)
	}
}
