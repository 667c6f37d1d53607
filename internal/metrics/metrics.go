package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SearchRequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "skycast_city_search_requests_total",
		Help: "Total number of city search requests",
	})
	SearchEmptyResultsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "skycast_city_search_empty_results_total",
		Help: "Total number of city searches that returned no suggestions",
	})
	SearchDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "skycast_city_search_duration_ms",
		Help:    "City search duration in milliseconds",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 20, 50, 100, 500},
	})
	CatalogCities = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "skycast_city_catalog_size",
		Help: "Number of cities in the loaded catalog",
	})
	CatalogLoadDurationMs = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "skycast_city_catalog_load_duration_ms",
		Help: "Time spent loading the city catalog in milliseconds",
	})
	CatalogSourceFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "skycast_city_catalog_source_failures_total",
		Help: "Catalog sources that produced no data",
	}, []string{"source"})
	WeatherRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "skycast_weather_requests_total",
		Help: "Forecast requests to the weather API by outcome",
	}, []string{"outcome"})
	WeatherDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "skycast_weather_duration_ms",
		Help:    "Forecast request duration in milliseconds",
		Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000, 10000},
	})
	SummariesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "skycast_ai_summaries_total",
		Help: "AI summary requests by outcome",
	}, []string{"outcome"})
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "skycast_http_requests_total",
		Help: "HTTP requests by route and status code",
	}, []string{"route", "code"})
)

func init() {
	prometheus.MustRegister(SearchRequestsTotal)
	prometheus.MustRegister(SearchEmptyResultsTotal)
	prometheus.MustRegister(SearchDurationMs)
	prometheus.MustRegister(CatalogCities)
	prometheus.MustRegister(CatalogLoadDurationMs)
	prometheus.MustRegister(CatalogSourceFailuresTotal)
	prometheus.MustRegister(WeatherRequestsTotal)
	prometheus.MustRegister(WeatherDurationMs)
	prometheus.MustRegister(SummariesTotal)
	prometheus.MustRegister(HTTPRequestsTotal)
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
