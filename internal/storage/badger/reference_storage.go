package badger

import (
	"context"
	"errors"
	"fmt"

	"github.com/timshannon/badgerhold/v4"

	"github.com/fundtrace/fundtrace/internal/models"
)

// SeedBanks inserts missing bank rows. Existing rows (matched on
// abbreviation) are left untouched so ids stay stable across restarts.
func (s *Store) SeedBanks(ctx context.Context, banks []models.Bank) error {
	for _, bank := range banks {
		var existing []*models.Bank
		if err := s.store.Find(&existing, badgerhold.Where("Abbreviation").Eq(bank.Abbreviation)); err != nil {
			return fmt.Errorf("failed to look up bank %s: %w", bank.Abbreviation, err)
		}
		if len(existing) > 0 {
			continue
		}
		id, err := nextID(s.refSeq)
		if err != nil {
			return err
		}
		bank.ID = id
		if err := s.store.Insert(id, &bank); err != nil && !errors.Is(err, badgerhold.ErrUniqueExists) {
			return fmt.Errorf("failed to seed bank %s: %w", bank.Abbreviation, err)
		}
	}
	return nil
}

// SeedCountries inserts missing country rows, matched on canonical name.
func (s *Store) SeedCountries(ctx context.Context, countries []models.Country) error {
	for _, country := range countries {
		var existing []*models.Country
		if err := s.store.Find(&existing, badgerhold.Where("Name").Eq(country.Name)); err != nil {
			return fmt.Errorf("failed to look up country %s: %w", country.Name, err)
		}
		if len(existing) > 0 {
			continue
		}
		id, err := nextID(s.refSeq)
		if err != nil {
			return err
		}
		country.ID = id
		if err := s.store.Insert(id, &country); err != nil && !errors.Is(err, badgerhold.ErrUniqueExists) {
			return fmt.Errorf("failed to seed country %s: %w", country.Name, err)
		}
	}
	return nil
}

// SeedSectors inserts missing sector rows, matched on canonical name.
func (s *Store) SeedSectors(ctx context.Context, sectors []models.Sector) error {
	for _, sector := range sectors {
		var existing []*models.Sector
		if err := s.store.Find(&existing, badgerhold.Where("Name").Eq(sector.Name)); err != nil {
			return fmt.Errorf("failed to look up sector %s: %w", sector.Name, err)
		}
		if len(existing) > 0 {
			continue
		}
		id, err := nextID(s.refSeq)
		if err != nil {
			return err
		}
		sector.ID = id
		if err := s.store.Insert(id, &sector); err != nil && !errors.Is(err, badgerhold.ErrUniqueExists) {
			return fmt.Errorf("failed to seed sector %s: %w", sector.Name, err)
		}
	}
	return nil
}

// GetBanks returns all bank reference rows.
func (s *Store) GetBanks(ctx context.Context) ([]*models.Bank, error) {
	var banks []*models.Bank
	if err := s.store.Find(&banks, badgerhold.Where(badgerhold.Key).Ge(uint64(0)).SortBy("Abbreviation")); err != nil {
		return nil, fmt.Errorf("failed to fetch banks: %w", err)
	}
	return banks, nil
}

// GetCountries returns all country reference rows.
func (s *Store) GetCountries(ctx context.Context) ([]*models.Country, error) {
	var countries []*models.Country
	if err := s.store.Find(&countries, badgerhold.Where(badgerhold.Key).Ge(uint64(0)).SortBy("Name")); err != nil {
		return nil, fmt.Errorf("failed to fetch countries: %w", err)
	}
	return countries, nil
}

// GetSectors returns all sector reference rows.
func (s *Store) GetSectors(ctx context.Context) ([]*models.Sector, error) {
	var sectors []*models.Sector
	if err := s.store.Find(&sectors, badgerhold.Where(badgerhold.Key).Ge(uint64(0)).SortBy("Name")); err != nil {
		return nil, fmt.Errorf("failed to fetch sectors: %w", err)
	}
	return sectors, nil
}
