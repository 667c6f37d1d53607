package web

import (
	"bytes"
	"context"
	"embed"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"

	"skycast/api"
	"skycast/internal/logger"
	"skycast/internal/metrics"
)

//go:embed templates/*.html
var templateFS embed.FS

const defaultVisitorName = "Traveler"

// CitySearcher ranks city suggestions for a query
type CitySearcher interface {
	Search(query string, limit int) []string
}

// ForecastFetcher retrieves the hourly forecast for a coordinate
type ForecastFetcher interface {
	FetchForecast(ctx context.Context, latitude, longitude float64) (*api.ForecastReport, error)
}

// ForecastSummarizer turns a forecast into prose. Summarize never fails; it
// degrades to an explanatory sentence.
type ForecastSummarizer interface {
	Summarize(ctx context.Context, report *api.ForecastReport, timezone, city string) string
	Configured() bool
	Model() string
}

// CatalogStatus reports the city catalog load state for health checks
type CatalogStatus interface {
	Loaded() bool
	Size() int
}

// Dependencies are the collaborators the handlers call into
type Dependencies struct {
	Cities     CitySearcher
	Weather    ForecastFetcher
	Summarizer ForecastSummarizer
	Catalog    CatalogStatus
}

// Options tunes presentation details
type Options struct {
	VisitorName string
	Now         func() time.Time
}

// Server holds the router and the rendered page templates
type Server struct {
	deps        Dependencies
	router      chi.Router
	pages       *template.Template
	visitorName string
	now         func() time.Time
}

// NewServer wires routes and parses the embedded templates
func NewServer(deps Dependencies, opts Options) (*Server, error) {
	pages, err := template.New("pages").Funcs(template.FuncMap{
		"coord": formatCoordinate,
		"fixed": func(v float64) string { return strconv.FormatFloat(v, 'f', 1, 64) },
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	if opts.VisitorName == "" {
		opts.VisitorName = defaultVisitorName
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Server{
		deps:        deps,
		pages:       pages,
		visitorName: opts.VisitorName,
		now:         opts.Now,
	}
	s.routes()
	return s, nil
}

// Router returns the HTTP handler for all routes
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(accessLog)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleHome)
	r.Get("/report", s.handleReport)
	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/cities/search", s.handleCitySearch)
		r.Post("/ai-summary", s.handleAISummary)
	})

	s.router = r
}

// accessLog records every request once the route has been resolved, so the
// metric label is the route pattern rather than the raw path
func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}

		metrics.HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
		logger.LogHTTPRequest(r.Method, r.URL.Path, status, time.Since(start), ww.BytesWritten(), r.RemoteAddr)
	})
}

// render executes a page into a buffer first so a template error never
// leaves a half-written response
func (s *Server) render(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.pages.ExecuteTemplate(&buf, name, data); err != nil {
		logger.Error("Failed to render %s: %v", name, err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		logger.Error("Failed to encode JSON response: %v", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

func formatCoordinate(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
