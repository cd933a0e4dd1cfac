package app

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/fundtrace/fundtrace/internal/common"
	"github.com/fundtrace/fundtrace/internal/models"
	"github.com/fundtrace/fundtrace/internal/normalize"
	storage "github.com/fundtrace/fundtrace/internal/storage/badger"
)

// seedReference loads the reference files and seeds the store tables. It runs
// on every start; existing rows keep their ids.
func seedReference(ctx context.Context, store *storage.Store, cfg *common.ReferenceConfig, countryISO map[string]string) error {
	banks, err := loadBanks(cfg.BanksFile)
	if err != nil {
		return err
	}
	if err := store.SeedBanks(ctx, banks); err != nil {
		return err
	}

	countries := make([]models.Country, 0, len(countryISO))
	for name, iso2 := range countryISO {
		countries = append(countries, models.Country{Name: name, ISO2: iso2})
	}
	sort.Slice(countries, func(i, j int) bool { return countries[i].Name < countries[j].Name })
	if err := store.SeedCountries(ctx, countries); err != nil {
		return err
	}

	sectors, err := loadCanonicalSectors(cfg.SectorsFile)
	if err != nil {
		return err
	}
	return store.SeedSectors(ctx, sectors)
}

// loadBanks reads the bank reference file.
func loadBanks(path string) ([]models.Bank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read banks file: %w", err)
	}
	var banks []models.Bank
	if err := json.Unmarshal(data, &banks); err != nil {
		return nil, fmt.Errorf("failed to parse banks file: %w", err)
	}
	return banks, nil
}

// loadCanonicalSectors derives the sector reference rows from the distinct
// canonical values of the sector alias map.
func loadCanonicalSectors(path string) ([]models.Sector, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sectors file: %w", err)
	}
	var aliases map[string]string
	if err := json.Unmarshal(data, &aliases); err != nil {
		return nil, fmt.Errorf("failed to parse sectors file: %w", err)
	}

	seen := make(map[string]bool)
	var sectors []models.Sector
	for _, canonical := range aliases {
		if !seen[canonical] {
			seen[canonical] = true
			sectors = append(sectors, models.Sector{Name: canonical})
		}
	}
	sort.Slice(sectors, func(i, j int) bool { return sectors[i].Name < sectors[j].Name })
	return sectors, nil
}

// loadCurrencyCodes reads the ISO currency code list.
func loadCurrencyCodes(path string) (map[string]bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open currency codes file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	out := make(map[string]bool)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read currency codes file: %w", err)
		}
		if len(record) == 0 {
			continue
		}
		code := strings.ToUpper(strings.TrimSpace(record[0]))
		if code == "" || code == "CODE" {
			continue
		}
		out[code] = true
	}
	return out, nil
}

// loadCountryISO is a thin wrapper so all reference loading lives here.
func loadCountryISO(cfg *common.ReferenceConfig) (map[string]string, error) {
	return normalize.LoadCountryISO(cfg.CountryISOFile)
}
