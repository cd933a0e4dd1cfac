// Package transform turns staged scrape output into canonical records: alias
// standardization, currency normalization, enrichment, and idempotent upserts.
package transform

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/fundtrace/fundtrace/internal/common"
)

// UnknownStatus is the canonical value for statuses outside the alias map.
const UnknownStatus = "Unknown"

var spaceRe = regexp.MustCompile(`\s+`)

// cleanSpace collapses runs of whitespace and trims.
func cleanSpace(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

// Standardizer maps raw source vocabulary onto the canonical one via
// alias files. Alias keys are matched lowercased.
type Standardizer struct {
	statuses  map[string]string
	countries map[string]string
	sectors   map[string]string
}

// NewStandardizer loads the three alias maps from the reference files.
func NewStandardizer(cfg *common.ReferenceConfig) (*Standardizer, error) {
	statuses, err := loadAliasFile(cfg.StatusesFile)
	if err != nil {
		return nil, err
	}
	countries, err := loadAliasFile(cfg.CountriesFile)
	if err != nil {
		return nil, err
	}
	sectors, err := loadAliasFile(cfg.SectorsFile)
	if err != nil {
		return nil, err
	}
	return &Standardizer{statuses: statuses, countries: countries, sectors: sectors}, nil
}

// NewStandardizerFromMaps builds a standardizer from in-memory alias maps.
func NewStandardizerFromMaps(statuses, countries, sectors map[string]string) *Standardizer {
	return &Standardizer{
		statuses:  lowerKeys(statuses),
		countries: lowerKeys(countries),
		sectors:   lowerKeys(sectors),
	}
}

func loadAliasFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read alias file %s: %w", path, err)
	}
	var aliases map[string]string
	if err := json.Unmarshal(data, &aliases); err != nil {
		return nil, fmt.Errorf("failed to parse alias file %s: %w", path, err)
	}
	return lowerKeys(aliases), nil
}

func lowerKeys(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[strings.ToLower(cleanSpace(k))] = v
	}
	return out
}

// Status maps a raw status onto the canonical set. Anything outside the alias
// map, including empty, becomes UnknownStatus.
func (s *Standardizer) Status(raw string) string {
	if canonical, ok := s.statuses[strings.ToLower(cleanSpace(raw))]; ok {
		return canonical
	}
	return UnknownStatus
}

// Countries standardizes a delimited country list: exploded, lowercased,
// alias-mapped, deduplicated, ordered, and comma-joined.
func (s *Standardizer) Countries(raw string) string {
	return mapList(raw, s.countries)
}

// Sectors standardizes a delimited sector list the same way.
func (s *Standardizer) Sectors(raw string) string {
	return mapList(raw, s.sectors)
}

// CountryNames returns the canonical country list as a slice.
func (s *Standardizer) CountryNames(raw string) []string {
	joined := mapList(raw, s.countries)
	if joined == "" {
		return nil
	}
	return strings.Split(joined, ", ")
}

// SectorNames returns the canonical sector list as a slice.
func (s *Standardizer) SectorNames(raw string) []string {
	joined := mapList(raw, s.sectors)
	if joined == "" {
		return nil
	}
	return strings.Split(joined, ", ")
}

var listSplitRe = regexp.MustCompile(`[,;/]`)

func mapList(raw string, aliases map[string]string) string {
	seen := make(map[string]bool)
	var out []string
	for _, part := range listSplitRe.Split(raw, -1) {
		cleaned := cleanSpace(part)
		if cleaned == "" {
			continue
		}
		canonical, ok := aliases[strings.ToLower(cleaned)]
		if !ok {
			// Values outside the alias map pass through cleaned.
			canonical = cleaned
		}
		if !seen[canonical] {
			seen[canonical] = true
			out = append(out, canonical)
		}
	}
	sort.Strings(out)
	return strings.Join(out, ", ")
}

var yearRe = regexp.MustCompile(`\b(19|20)\d{2}\b`)

// yearOf extracts the four-digit year from a raw date string, trying the
// candidates in order. Returns 0 when none carries a year.
func yearOf(candidates ...string) int {
	for _, c := range candidates {
		if match := yearRe.FindString(c); match != "" {
			var year int
			fmt.Sscanf(match, "%d", &year)
			return year
		}
	}
	return 0
}
