package city

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"skycast/internal/errorutil"
	"skycast/internal/logger"
	"skycast/internal/metrics"
)

// ErrCatalogUnavailable is logged when every source came back empty.
var ErrCatalogUnavailable = errors.New("no city catalog source produced data")

// Catalog is the process-wide, lazily loaded set of cities. The first call
// to Cities runs the sources in order; concurrent first callers block on that
// single load and all see the same snapshot.
type Catalog struct {
	sources []Source

	once   sync.Once
	cities []City
	loaded atomic.Bool
}

// NewCatalog creates a catalog that will try sources in order.
func NewCatalog(sources ...Source) *Catalog {
	return &Catalog{sources: sources}
}

// Cities returns the catalog snapshot, loading it on first use. The returned
// slice is shared and must not be modified.
func (c *Catalog) Cities() []City {
	c.once.Do(c.load)
	return c.cities
}

// Loaded reports whether the load has completed, successfully or not.
func (c *Catalog) Loaded() bool {
	return c.loaded.Load()
}

// Size returns the number of cities, or 0 before the first load.
func (c *Catalog) Size() int {
	if !c.Loaded() {
		return 0
	}
	return len(c.cities)
}

func (c *Catalog) load() {
	defer c.loaded.Store(true)

	start := time.Now()
	complete := logger.LogOperationStart("city_catalog_load", map[string]any{
		"sources": len(c.sources),
	})

	ctx := context.Background()
	for _, src := range c.sources {
		cities, err := src.Load(ctx)
		if err != nil {
			metrics.CatalogSourceFailuresTotal.WithLabelValues(src.Name()).Inc()
			errorutil.LogWarning(logger.Get().Logger, "city catalog source", err,
				errorutil.CatalogContext(src.Name())...)
			continue
		}
		if len(cities) == 0 {
			metrics.CatalogSourceFailuresTotal.WithLabelValues(src.Name()).Inc()
			logger.Warn("City catalog source %s returned no cities", src.Name())
			continue
		}

		c.cities = cities
		metrics.CatalogCities.Set(float64(len(cities)))
		metrics.CatalogLoadDurationMs.Set(float64(time.Since(start).Milliseconds()))
		logger.LogWithFields(logger.InfoLevel, "City catalog loaded", map[string]any{
			"source": src.Name(),
			"cities": len(cities),
		})
		complete(nil)
		return
	}

	c.cities = []City{}
	metrics.CatalogCities.Set(0)
	metrics.CatalogLoadDurationMs.Set(float64(time.Since(start).Milliseconds()))
	complete(ErrCatalogUnavailable)
}
