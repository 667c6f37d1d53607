package city

import (
	"fmt"
	"reflect"
	"testing"
)

// staticCatalog serves a fixed snapshot and counts reads
type staticCatalog struct {
	cities []City
	reads  int
}

func (s *staticCatalog) Cities() []City {
	s.reads++
	return s.cities
}

func named(name, country string, lat, lon float64) City {
	return City{Name: str(name), Country: str(country), Lat: num(lat), Lon: num(lon)}
}

func TestSearchBlankQuery(t *testing.T) {
	catalog := &staticCatalog{cities: []City{named("Oslo", "NO", 59.9139, 10.7522)}}
	s := NewSearcher(catalog)

	for _, q := range []string{"", "   ", "\t\n"} {
		for _, limit := range []int{1, 10, 50} {
			if got := s.Search(q, limit); len(got) != 0 {
				t.Errorf("Search(%q, %d) = %v, want empty", q, limit, got)
			}
		}
	}
	if catalog.reads != 0 {
		t.Errorf("Blank queries should not touch the catalog, got %d reads", catalog.reads)
	}
}

func TestSearchOrdering(t *testing.T) {
	tests := []struct {
		name   string
		cities []City
		query  string
		want   []string
	}{
		{
			name:   "shorter prefix match first",
			cities: []City{{Name: str("New York")}, {Name: str("Newark")}},
			query:  "new",
			want:   []string{"Newark  (,)", "New York  (,)"},
		},
		{
			name:   "prefix beats substring",
			cities: []City{named("New York", "US", 40.7128, -74.006), named("York", "GB", 53.959965, -1.087298)},
			query:  "york",
			want:   []string{"York GB (53.959965,-1.087298)", "New York US (40.7128,-74.006)"},
		},
		{
			name:   "equal length sorts by code point",
			cities: []City{{Name: str("Bern")}, {Name: str("Baku")}, {Name: str("Bonn")}},
			query:  "b",
			want:   []string{"Baku  (,)", "Bern  (,)", "Bonn  (,)"},
		},
		{
			name:   "case insensitive",
			cities: []City{{Name: str("Zürich"), Country: str("CH")}},
			query:  "ZÜR",
			want:   []string{"Zürich CH (,)"},
		},
		{
			name: "state matches but is not displayed",
			cities: []City{
				{Name: str("Albany"), Country: str("US"), State: str("New York")},
				{Name: str("Buffalo"), Country: str("US"), State: str("NY")},
			},
			query: "new york",
			want:  []string{"Albany US (,)"},
		},
		{
			name: "absent name sorts last",
			cities: []City{
				{Country: str("US"), State: str("Texas")},
				{Name: str("Dallas"), Country: str("US"), State: str("Texas")},
				{Name: str("Texarkana"), Country: str("US")},
			},
			query: "tex",
			want:  []string{"Texarkana US (,)", "Dallas US (,)", "US (,)"},
		},
		{
			name:   "query is literal text",
			cities: []City{{Name: str("St. Louis")}, {Name: str("Stalowa Wola")}},
			query:  "st.",
			want:   []string{"St. Louis  (,)"},
		},
		{
			name: "identical suggestions collapse",
			cities: []City{
				named("Springfield", "US", 39.7817, -89.6501),
				named("Springfield", "US", 39.78170001, -89.65010002),
				named("Springfield", "US", 37.2089572, -93.2922989),
			},
			query: "spring",
			want:  []string{"Springfield US (39.7817,-89.6501)", "Springfield US (37.208957,-93.292299)"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSearcher(&staticCatalog{cities: tt.cities})
			got := s.Search(tt.query, 10)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Search(%q) = %q, want %q", tt.query, got, tt.want)
			}
		})
	}
}

func TestSearchSpecialCharacters(t *testing.T) {
	s := NewSearcher(&staticCatalog{cities: []City{
		named("New York", "US", 40.7128, -74.006),
		named("Zagreb", "HR", 45.815, 15.9819),
	}})

	for _, q := range []string{`.*+?^${}()|[]\`, "[", "(", "*", `\d+`} {
		got := s.Search(q, 10)
		if got == nil || len(got) != 0 {
			t.Errorf("Search(%q) = %v, want empty slice", q, got)
		}
	}
}

func TestSearchLimit(t *testing.T) {
	var cities []City
	for i := 0; i < 30; i++ {
		cities = append(cities, named(fmt.Sprintf("Port %02d", i), "XX", float64(i), float64(i)))
	}
	s := NewSearcher(&staticCatalog{cities: cities})

	prev := 0
	for limit := 1; limit <= 40; limit++ {
		got := s.Search("port", limit)
		if len(got) > limit {
			t.Fatalf("limit %d returned %d results", limit, len(got))
		}
		if len(got) < prev {
			t.Fatalf("limit %d returned fewer results (%d) than limit %d (%d)", limit, len(got), limit-1, prev)
		}
		prev = len(got)
	}
	if prev != 30 {
		t.Errorf("Expected all 30 matches at a large limit, got %d", prev)
	}

	first := s.Search("port", 5)
	second := s.Search("port", 5)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Repeated searches differ: %v vs %v", first, second)
	}
	if first[0] != "Port 00 XX (0,0)" {
		t.Errorf("Unexpected first result %q", first[0])
	}

	if got := s.Search("port", 0); len(got) != 0 {
		t.Errorf("Non-positive limit should return nothing, got %v", got)
	}
}

func TestSearchScanCap(t *testing.T) {
	// 100 weak matches fill the scan window for small limits, hiding the
	// prefix match that follows them
	var cities []City
	for i := 0; i < 100; i++ {
		cities = append(cities, City{Name: str(fmt.Sprintf("Oldtown %02d", i))})
	}
	cities = append(cities, City{Name: str("Town")})
	s := NewSearcher(&staticCatalog{cities: cities})

	got := s.Search("town", 1)
	if len(got) != 1 || got[0] != "Oldtown 00  (,)" {
		t.Errorf("Search with limit 1 = %v, want [Oldtown 00  (,)]", got)
	}

	got = s.Search("town", 11)
	if len(got) == 0 || got[0] != "Town  (,)" {
		t.Errorf("Search with limit 11 should reach the prefix match, got %v", got)
	}
}

func TestSearchEmptyCatalog(t *testing.T) {
	s := NewSearcher(&staticCatalog{})
	if got := s.Search("anything", 10); got == nil || len(got) != 0 {
		t.Errorf("Expected empty slice, got %v", got)
	}
}
