package city

import (
	"math"
	"slices"
	"strings"
	"unicode/utf8"
)

// minScanLimit and scanFactor bound how many matches are ranked: the first
// max(limit, minScanLimit)*scanFactor matches in catalog order. A strong match
// late in a very large catalog can fall outside the window.
const (
	minScanLimit = 10
	scanFactor   = 10
)

// Provider supplies the catalog snapshot to search over.
type Provider interface {
	Cities() []City
}

// Searcher ranks catalog entries against free-text queries.
type Searcher struct {
	catalog Provider
}

// NewSearcher creates a searcher over catalog.
func NewSearcher(catalog Provider) *Searcher {
	return &Searcher{catalog: catalog}
}

// candidate caches the folded name so sorting does not re-lower it.
type candidate struct {
	city    City
	name    string
	hasName bool
}

// Search returns up to limit suggestion strings for query. Matching is a
// case-insensitive literal substring test on name or state; prefix matches on
// the name rank first, then shorter names, then names in code-point order.
func (s *Searcher) Search(query string, limit int) []string {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" || limit <= 0 {
		return []string{}
	}

	all := s.catalog.Cities()
	if len(all) == 0 {
		return []string{}
	}

	scanCap := max(limit, minScanLimit) * scanFactor
	matched := make([]candidate, 0, min(scanCap, len(all)))
	for _, c := range all {
		if len(matched) >= scanCap {
			break
		}
		name, hasName := c.lowerName()
		state, hasState := c.lowerState()
		if (hasName && strings.Contains(name, q)) || (hasState && strings.Contains(state, q)) {
			matched = append(matched, candidate{city: c, name: name, hasName: hasName})
		}
	}

	slices.SortStableFunc(matched, func(a, b candidate) int {
		return compareCandidates(a, b, q)
	})

	results := make([]string, 0, min(limit, len(matched)))
	seen := make(map[string]struct{}, len(matched))
	for _, m := range matched {
		if len(results) == limit {
			break
		}
		suggestion := m.city.Suggestion()
		if _, dup := seen[suggestion]; dup {
			continue
		}
		seen[suggestion] = struct{}{}
		results = append(results, suggestion)
	}
	return results
}

func compareCandidates(a, b candidate, q string) int {
	ap, bp := a.hasPrefix(q), b.hasPrefix(q)
	if ap != bp {
		if ap {
			return -1
		}
		return 1
	}

	if al, bl := a.nameLength(), b.nameLength(); al != bl {
		if al < bl {
			return -1
		}
		return 1
	}

	switch {
	case !a.hasName && !b.hasName:
		return 0
	case !a.hasName:
		return 1
	case !b.hasName:
		return -1
	}
	return strings.Compare(a.name, b.name)
}

func (c candidate) hasPrefix(q string) bool {
	return c.hasName && strings.HasPrefix(c.name, q)
}

// nameLength counts runes; an absent name sorts as the longest.
func (c candidate) nameLength() int {
	if !c.hasName {
		return math.MaxInt
	}
	return utf8.RuneCountInString(c.name)
}
