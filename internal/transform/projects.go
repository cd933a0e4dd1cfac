package transform

import (
	"context"
	"errors"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/fundtrace/fundtrace/internal/interfaces"
	"github.com/fundtrace/fundtrace/internal/models"
	"github.com/fundtrace/fundtrace/internal/normalize"
)

// ProjectTransformer drains staged project rows into canonical records.
type ProjectTransformer struct {
	store      interfaces.Store
	std        *Standardizer
	rates      *normalize.Table
	countryISO map[string]string // canonical country name -> ISO2
	currencies map[string]bool   // known ISO currency codes; empty disables the check
	logger     arbor.ILogger
	batchSize  int
}

// NewProjectTransformer wires the development-projects transform.
func NewProjectTransformer(store interfaces.Store, std *Standardizer, rates *normalize.Table, countryISO map[string]string, currencies map[string]bool, batchSize int, logger arbor.ILogger) *ProjectTransformer {
	if batchSize <= 0 {
		batchSize = 5000
	}
	return &ProjectTransformer{
		store:      store,
		std:        std,
		rates:      rates,
		countryISO: countryISO,
		currencies: currencies,
		logger:     logger,
		batchSize:  batchSize,
	}
}

// Run processes staged rows in batches until the staging table is drained.
// Every write is an upsert or a pair-keyed insert, so replaying a partially
// processed run converges to the same canonical state.
func (t *ProjectTransformer) Run(ctx context.Context) error {
	banks, err := t.store.GetBanks(ctx)
	if err != nil {
		return err
	}
	bankIDs := make(map[string]uint64, len(banks))
	for _, bank := range banks {
		bankIDs[bank.Abbreviation] = bank.ID
	}

	countries, err := t.store.GetCountries(ctx)
	if err != nil {
		return err
	}
	countryIDs := make(map[string]uint64, len(countries))
	for _, c := range countries {
		countryIDs[c.Name] = c.ID
	}

	sectors, err := t.store.GetSectors(ctx)
	if err != nil {
		return err
	}
	sectorIDs := make(map[string]uint64, len(sectors))
	for _, s := range sectors {
		sectorIDs[s.Name] = s.ID
	}

	for {
		staged, err := t.store.GetStagedProjects(ctx, t.batchSize)
		if err != nil {
			return err
		}
		if len(staged) == 0 {
			return nil
		}

		merged := mergeStagedProjects(staged)

		var (
			projects      []*models.Project
			countryAssocs []models.ProjectCountry
			sectorAssocs  []models.ProjectSector
		)
		for _, row := range merged {
			project := t.toCanonical(row)
			projects = append(projects, project)

			for _, name := range t.std.CountryNames(row.Countries) {
				if id, ok := countryIDs[name]; ok {
					countryAssocs = append(countryAssocs, models.ProjectCountry{ProjectKey: project.Key, CountryID: id})
				}
			}
			for _, name := range t.std.SectorNames(row.Sectors) {
				if id, ok := sectorIDs[name]; ok {
					sectorAssocs = append(sectorAssocs, models.ProjectSector{ProjectKey: project.Key, SectorID: id})
				}
			}

			if id, ok := bankIDs[row.Source]; ok {
				project.BankID = id
			}
		}

		if err := t.store.BulkUpsertProjects(ctx, projects); err != nil {
			return err
		}
		if err := t.store.BulkInsertProjectCountries(ctx, countryAssocs); err != nil {
			return err
		}
		if err := t.store.BulkInsertProjectSectors(ctx, sectorAssocs); err != nil {
			return err
		}

		ids := make([]uint64, 0, len(staged))
		for _, row := range staged {
			ids = append(ids, row.ID)
		}
		if err := t.store.DeleteStagedProjects(ctx, ids); err != nil {
			return err
		}

		t.logger.Info().
			Int("staged", len(staged)).
			Int("projects", len(projects)).
			Msg("Project batch transformed")
	}
}

// mergeStagedProjects reconciles partial rows for the same (source, url):
// later non-empty fields fill gaps left by earlier partials.
func mergeStagedProjects(staged []*models.StagedProject) []*models.StagedProject {
	byKey := make(map[string]*models.StagedProject)
	var order []string

	for _, row := range staged {
		key := models.ProjectKey(row.Source, row.URL)
		base, ok := byKey[key]
		if !ok {
			clone := *row
			byKey[key] = &clone
			order = append(order, key)
			continue
		}
		fillString(&base.Number, row.Number)
		fillString(&base.Name, row.Name)
		fillString(&base.Status, row.Status)
		fillString(&base.ApprovalDate, row.ApprovalDate)
		fillString(&base.SigningDate, row.SigningDate)
		fillString(&base.EffectiveDate, row.EffectiveDate)
		fillString(&base.DisclosureDate, row.DisclosureDate)
		fillString(&base.PlannedCloseDate, row.PlannedCloseDate)
		fillString(&base.ActualCloseDate, row.ActualCloseDate)
		fillString(&base.FinanceTypes, row.FinanceTypes)
		fillString(&base.Sectors, row.Sectors)
		fillString(&base.Countries, row.Countries)
		fillString(&base.Affiliates, row.Affiliates)
		fillString(&base.TotalAmountCurrency, row.TotalAmountCurrency)
		if base.TotalAmount == nil {
			base.TotalAmount = row.TotalAmount
		}
	}

	out := make([]*models.StagedProject, 0, len(order))
	for _, key := range order {
		out = append(out, byKey[key])
	}
	return out
}

func fillString(dst *string, src string) {
	if *dst == "" && src != "" {
		*dst = src
	}
}

func (t *ProjectTransformer) toCanonical(row *models.StagedProject) *models.Project {
	project := &models.Project{
		Key:                 models.ProjectKey(row.Source, row.URL),
		Source:              row.Source,
		Number:              cleanSpace(row.Number),
		Name:                cleanSpace(row.Name),
		Status:              t.std.Status(row.Status),
		ApprovalDate:        cleanSpace(row.ApprovalDate),
		SigningDate:         cleanSpace(row.SigningDate),
		EffectiveDate:       cleanSpace(row.EffectiveDate),
		DisclosureDate:      cleanSpace(row.DisclosureDate),
		PlannedCloseDate:    cleanSpace(row.PlannedCloseDate),
		ActualCloseDate:     cleanSpace(row.ActualCloseDate),
		FinanceTypes:        cleanSpace(row.FinanceTypes),
		Sectors:             t.std.Sectors(row.Sectors),
		Countries:           t.std.Countries(row.Countries),
		Affiliates:          cleanSpace(row.Affiliates),
		TotalAmount:         row.TotalAmount,
		TotalAmountCurrency: cleanSpace(row.TotalAmountCurrency),
		URL:                 row.URL,
		UpdatedAt:           time.Now().UTC(),
	}

	project.TotalAmountUSD = t.normalizeAmount(row, project)
	return project
}

// normalizeAmount converts the raw amount to reference-year USD. A missing
// table entry leaves the value null and logs at warn; the row still lands.
func (t *ProjectTransformer) normalizeAmount(row *models.StagedProject, project *models.Project) *float64 {
	if row.TotalAmount == nil || project.TotalAmountCurrency == "" {
		return nil
	}
	if len(t.currencies) > 0 && !t.currencies[project.TotalAmountCurrency] {
		t.logger.Warn().Str("project", project.Key).Str("currency", project.TotalAmountCurrency).Msg("Unknown currency code, amount left unnormalized")
		return nil
	}

	year := yearOf(row.ApprovalDate, row.SigningDate, row.EffectiveDate)
	if year == 0 {
		t.logger.Warn().Str("project", project.Key).Msg("No dated field carries a year, amount left unnormalized")
		return nil
	}

	names := t.std.CountryNames(row.Countries)
	if len(names) == 0 {
		return nil
	}
	iso2, ok := t.countryISO[names[0]]
	if !ok {
		t.logger.Warn().Str("project", project.Key).Str("country", names[0]).Msg("No ISO code for country, amount left unnormalized")
		return nil
	}

	usd, err := t.rates.Normalize(year, iso2, project.TotalAmountCurrency, *row.TotalAmount)
	if err != nil {
		var missing *normalize.MissingRateError
		if errors.As(err, &missing) {
			t.logger.Warn().
				Str("project", project.Key).
				Int("year", missing.Year).
				Str("currency", missing.Currency).
				Str("table", missing.Table).
				Msg("Missing rate observation, amount left unnormalized")
			return nil
		}
		t.logger.Warn().Err(err).Str("project", project.Key).Msg("Amount normalization failed")
		return nil
	}
	return &usd
}
