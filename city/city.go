package city

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// City is one place in the catalog. Every field is optional; a nil pointer
// means the source record did not carry the value.
type City struct {
	Name    *string
	Country *string // ISO 3166 alpha-2 code
	Lat     *float64
	Lon     *float64
	State   *string // searchable, never displayed
}

// cityRecord mirrors the on-disk JSON shape. Longitude appears as either
// "lon" or "lng" depending on the dataset.
type cityRecord struct {
	Name    *string  `json:"name"`
	Country *string  `json:"country"`
	Lat     *float64 `json:"lat"`
	Lon     *float64 `json:"lon"`
	Lng     *float64 `json:"lng"`
	State   *string  `json:"state"`
}

// UnmarshalJSON decodes a catalog entry, folding the "lng" alias into Lon.
// Unknown keys are ignored.
func (c *City) UnmarshalJSON(data []byte) error {
	var rec cityRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}

	lon := rec.Lon
	if lon == nil {
		lon = rec.Lng
	}

	*c = City{
		Name:    rec.Name,
		Country: rec.Country,
		Lat:     rec.Lat,
		Lon:     lon,
		State:   rec.State,
	}
	return nil
}

// Suggestion renders the city as "<name> <country> (<lat>,<lon>)" with
// absent fields left blank and the result trimmed.
func (c City) Suggestion() string {
	if c.isBlank() {
		return ""
	}
	s := fmt.Sprintf("%s %s (%s,%s)", stringOrEmpty(c.Name), stringOrEmpty(c.Country),
		formatCoordinate(c.Lat), formatCoordinate(c.Lon))
	return strings.TrimSpace(s)
}

func (c City) isBlank() bool {
	return c.Name == nil && c.Country == nil && c.Lat == nil && c.Lon == nil && c.State == nil
}

// lowerName returns the case-folded name and whether the name is present.
func (c City) lowerName() (string, bool) {
	if c.Name == nil {
		return "", false
	}
	return strings.ToLower(*c.Name), true
}

func (c City) lowerState() (string, bool) {
	if c.State == nil {
		return "", false
	}
	return strings.ToLower(*c.State), true
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// formatCoordinate rounds half-up to six decimals and prints the shortest
// representation, so 40.712800 renders as 40.7128. Whole numbers carry no
// fractional part: 10.0 renders as "10", never "10.0". The autocomplete page
// parses either form.
func formatCoordinate(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(roundCoordinate(*v), 'f', -1, 64)
}

func roundCoordinate(v float64) float64 {
	return math.Floor(v*1e6+0.5) / 1e6
}
