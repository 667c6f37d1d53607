package web

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"skycast/api"
	"skycast/internal/errorutil"
	"skycast/internal/logger"
	"skycast/internal/metrics"
)

const (
	defaultSearchLimit = 10
	minSearchLimit     = 1
	maxSearchLimit     = 50

	maxSummaryBodyBytes = 2 << 20

	msgInvalidCoordinates = "Invalid coordinates."
	msgWeatherFailed      = "Failed to fetch weather data. Please try again later."
	msgSummaryFailed      = "AI summary failed."
)

type homePage struct {
	Message string
	Today   string
}

type reportPage struct {
	City       string
	HasCoords  bool
	Lat        float64
	Lon        float64
	Timezone   string
	Error      string
	Report     *api.ForecastReport
	ReportJSON string
	Days       []api.DayOutlook
}

type summaryResponse struct {
	Summary    string `json:"summary"`
	Model      string `json:"model"`
	Configured bool   `json:"configured"`
}

type summaryError struct {
	Summary string `json:"summary"`
	Error   string `json:"error"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type healthResponse struct {
	Status        string `json:"status"`
	CatalogLoaded bool   `json:"catalog_loaded"`
	CatalogCities int    `json:"catalog_cities"`
}

// GET /
func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	today := s.now().Format(time.DateOnly)
	s.render(w, http.StatusOK, "index.html", homePage{
		Message: fmt.Sprintf("Welcome to Skycast, %s! Today is %s.", s.visitorName, today),
		Today:   today,
	})
}

// GET /report?lat=&lon=&city=
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := reportPage{City: strings.TrimSpace(q.Get("city"))}

	lat, latErr := errorutil.ParseCoordinate("lat", q.Get("lat"), true)
	lon, lonErr := errorutil.ParseCoordinate("lon", q.Get("lon"), false)
	if isNumberError(latErr) || isNumberError(lonErr) {
		page.Error = "Latitude and longitude must be decimal numbers."
		s.render(w, http.StatusBadRequest, "report.html", page)
		return
	}
	if latErr != nil || lonErr != nil {
		page.Error = msgInvalidCoordinates
		s.render(w, http.StatusOK, "report.html", page)
		return
	}
	page.HasCoords, page.Lat, page.Lon = true, lat, lon

	report, err := s.deps.Weather.FetchForecast(r.Context(), lat, lon)
	if err != nil {
		errorutil.LogWarning(logger.Get().Logger, "report page forecast", err,
			errorutil.WeatherContext(lat, lon)...)
		page.Error = msgWeatherFailed
		s.render(w, http.StatusOK, "report.html", page)
		return
	}

	reportJSON, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		reportJSON = []byte("{}")
	}

	page.Timezone = report.Timezone
	page.Report = report
	page.ReportJSON = string(reportJSON)
	page.Days = report.Days()
	s.render(w, http.StatusOK, "report.html", page)
}

func isNumberError(verr *errorutil.ValidationError) bool {
	return verr != nil && verr.Rule == "number"
}

// GET /api/cities/search?q=&limit=
func (s *Server) handleCitySearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := defaultSearchLimit
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			errorutil.LogWarning(logger.Get().Logger, "city search", err,
				errorutil.SearchContext(q.Get("q"), limit)...)
			writeJSON(w, http.StatusBadRequest, errorResponse{
				Error:   "invalid limit",
				Message: "limit must be an integer",
			})
			return
		}
		limit = n
	}
	limit = max(minSearchLimit, min(limit, maxSearchLimit))

	start := time.Now()
	results := s.deps.Cities.Search(q.Get("q"), limit)
	metrics.SearchRequestsTotal.Inc()
	metrics.SearchDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000)

	if len(results) == 0 {
		metrics.SearchEmptyResultsTotal.Inc()
		results = []string{}
	}
	writeJSON(w, http.StatusOK, results)
}

// POST /api/ai-summary?timezone=&city=
func (s *Server) handleAISummary(w http.ResponseWriter, r *http.Request) {
	var report api.ForecastReport
	body := http.MaxBytesReader(w, r.Body, maxSummaryBodyBytes)
	if err := json.NewDecoder(body).Decode(&report); err != nil {
		logger.Warn("Rejected AI summary request: %v", err)
		writeJSON(w, http.StatusBadRequest, summaryError{
			Summary: msgSummaryFailed,
			Error:   err.Error(),
		})
		return
	}

	q := r.URL.Query()
	text := s.deps.Summarizer.Summarize(r.Context(), &report, q.Get("timezone"), q.Get("city"))
	writeJSON(w, http.StatusOK, summaryResponse{
		Summary:    text,
		Model:      s.deps.Summarizer.Model(),
		Configured: s.deps.Summarizer.Configured(),
	})
}

// GET /healthz
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	if s.deps.Catalog != nil {
		resp.CatalogLoaded = s.deps.Catalog.Loaded()
		resp.CatalogCities = s.deps.Catalog.Size()
	}
	writeJSON(w, http.StatusOK, resp)
}
