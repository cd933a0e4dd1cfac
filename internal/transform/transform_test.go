package transform

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fundtrace/fundtrace/internal/common"
	"github.com/fundtrace/fundtrace/internal/interfaces"
	"github.com/fundtrace/fundtrace/internal/models"
	"github.com/fundtrace/fundtrace/internal/normalize"
	"github.com/fundtrace/fundtrace/internal/stockmeta"
)

func testStandardizer() *Standardizer {
	return NewStandardizerFromMaps(
		map[string]string{
			"board approved, pending signing": "Pending",
			"dropped":                         "Cancelled",
			"active":                          "Active",
			"laufend":                         "Active",
		},
		map[string]string{
			"kosovo*":       "Kosovo",
			"indien":        "India",
			"india":         "India",
			"ruanda":        "Rwanda",
			"united states": "United States",
		},
		map[string]string{
			"wasser":    "Water",
			"water":     "Water",
			"transport": "Transport",
		},
	)
}

func TestStatusStandardization(t *testing.T) {
	std := testStandardizer()

	assert.Equal(t, "Pending", std.Status("board approved, pending signing"))
	assert.Equal(t, "Pending", std.Status("  Board  Approved,  Pending Signing "))
	assert.Equal(t, "Cancelled", std.Status("Dropped"))
	assert.Equal(t, "Unknown", std.Status("in tendering phase"))
	assert.Equal(t, "Unknown", std.Status(""))
}

func TestCountryStandardization(t *testing.T) {
	std := testStandardizer()

	assert.Equal(t, "India, Kosovo", std.Countries("kosovo*,indien"))
	assert.Equal(t, "India", std.Countries("Indien; India"))
	// Unmapped values pass through cleaned.
	assert.Equal(t, "Atlantis, Rwanda", std.Countries("ruanda, Atlantis"))
	assert.Equal(t, "", std.Countries(""))
}

// transformStore is an in-memory store for transform runs.
type transformStore struct {
	interfaces.Store

	staged      []*models.StagedProject
	stagedInv   []*models.StagedInvestment
	banks       []*models.Bank
	countries   []*models.Country
	sectors     []*models.Sector
	projects    map[string]*models.Project
	companies   map[string]*models.Company
	forms       map[string]*models.FormSubmission
	investments map[string]*models.Investment
	countryRows []models.ProjectCountry
	sectorRows  []models.ProjectSector
	jobs        map[uint64]*models.Job
}

func newTransformStore() *transformStore {
	return &transformStore{
		projects:    make(map[string]*models.Project),
		companies:   make(map[string]*models.Company),
		forms:       make(map[string]*models.FormSubmission),
		investments: make(map[string]*models.Investment),
		jobs:        make(map[uint64]*models.Job),
	}
}

func (s *transformStore) GetBanks(ctx context.Context) ([]*models.Bank, error) {
	return s.banks, nil
}

func (s *transformStore) GetCountries(ctx context.Context) ([]*models.Country, error) {
	return s.countries, nil
}

func (s *transformStore) GetSectors(ctx context.Context) ([]*models.Sector, error) {
	return s.sectors, nil
}

func (s *transformStore) GetStagedProjects(ctx context.Context, limit int) ([]*models.StagedProject, error) {
	if limit > len(s.staged) {
		limit = len(s.staged)
	}
	return s.staged[:limit], nil
}

func (s *transformStore) DeleteStagedProjects(ctx context.Context, ids []uint64) error {
	drop := make(map[uint64]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	var keep []*models.StagedProject
	for _, row := range s.staged {
		if !drop[row.ID] {
			keep = append(keep, row)
		}
	}
	s.staged = keep
	return nil
}

func (s *transformStore) BulkUpsertProjects(ctx context.Context, rows []*models.Project) error {
	for _, row := range rows {
		s.projects[row.Key] = row
	}
	return nil
}

func (s *transformStore) BulkInsertProjectCountries(ctx context.Context, rows []models.ProjectCountry) error {
	s.countryRows = append(s.countryRows, rows...)
	return nil
}

func (s *transformStore) BulkInsertProjectSectors(ctx context.Context, rows []models.ProjectSector) error {
	s.sectorRows = append(s.sectorRows, rows...)
	return nil
}

func (s *transformStore) GetStagedInvestments(ctx context.Context, limit int) ([]*models.StagedInvestment, error) {
	if limit > len(s.stagedInv) {
		limit = len(s.stagedInv)
	}
	return s.stagedInv[:limit], nil
}

func (s *transformStore) DeleteStagedInvestments(ctx context.Context, ids []uint64) error {
	drop := make(map[uint64]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	var keep []*models.StagedInvestment
	for _, row := range s.stagedInv {
		if !drop[row.ID] {
			keep = append(keep, row)
		}
	}
	s.stagedInv = keep
	return nil
}

func (s *transformStore) BulkUpsertCompanies(ctx context.Context, rows []*models.Company) error {
	for _, row := range rows {
		s.companies[row.CIK] = row
	}
	return nil
}

func (s *transformStore) BulkUpsertForms(ctx context.Context, rows []*models.FormSubmission) error {
	for _, row := range rows {
		s.forms[row.Key] = row
	}
	return nil
}

func (s *transformStore) BulkUpsertInvestments(ctx context.Context, rows []*models.Investment) error {
	for _, row := range rows {
		s.investments[row.Key] = row
	}
	return nil
}

func fixtureRates() *normalize.Table {
	table := normalize.NewTable(2017)
	table.AddRate(1994, "US", "USD", 1.0)
	table.AddRate(1994, "IN", "USD", 1.0)
	table.AddDeflator(1994, 65.5654)
	return table
}

func TestProjectTransformMergesAndNormalizes(t *testing.T) {
	store := newTransformStore()
	store.banks = []*models.Bank{{ID: 2, Name: "Asian Development Bank", Abbreviation: "adb"}}
	store.countries = []*models.Country{{ID: 10, Name: "India", ISO2: "IN"}, {ID: 11, Name: "Kosovo", ISO2: "XK"}}
	store.sectors = []*models.Sector{{ID: 20, Name: "Water"}}

	amount := 50.0
	url := "https://example.org/p/1"
	store.staged = []*models.StagedProject{
		// Listing partial.
		{ID: 1, Source: "adb", Name: " Rural  Water ", Status: "board approved, pending signing", Countries: "kosovo*,indien", URL: url, TaskID: "t1"},
		// Detail partial for the same URL.
		{ID: 2, Source: "adb", Sectors: "wasser", ApprovalDate: "12 Jun 1994", TotalAmount: &amount, TotalAmountCurrency: "USD", Countries: "united states", URL: url, TaskID: "t2"},
	}

	countryISO := map[string]string{"India": "IN", "Kosovo": "XK", "United States": "US"}
	tr := NewProjectTransformer(store, testStandardizer(), fixtureRates(), countryISO, map[string]bool{"USD": true}, 100, common.GetLogger())
	require.NoError(t, tr.Run(context.Background()))

	require.Len(t, store.projects, 1)
	project := store.projects[models.ProjectKey("adb", url)]
	require.NotNil(t, project)

	assert.Equal(t, "Rural Water", project.Name)
	assert.Equal(t, "Pending", project.Status)
	// The first partial won the countries column.
	assert.Equal(t, "India, Kosovo", project.Countries)
	assert.Equal(t, "Water", project.Sectors)
	assert.Equal(t, uint64(2), project.BankID)

	// 50 USD observed in 1994 against a 65.5654 deflator.
	require.NotNil(t, project.TotalAmountUSD)
	assert.Equal(t, 76.26, *project.TotalAmountUSD)

	assert.Len(t, store.countryRows, 2)
	assert.Len(t, store.sectorRows, 1)

	// Staged rows are gone; a second run is a no-op.
	assert.Empty(t, store.staged)
	require.NoError(t, tr.Run(context.Background()))
	assert.Len(t, store.projects, 1)
}

func TestProjectTransformMissingRateLeavesAmountNull(t *testing.T) {
	store := newTransformStore()
	amount := 10.0
	store.staged = []*models.StagedProject{
		{ID: 1, Source: "eib", Countries: "india", ApprovalDate: "1985-03-01", TotalAmount: &amount, TotalAmountCurrency: "EUR", URL: "https://example.org/p/9"},
	}

	tr := NewProjectTransformer(store, testStandardizer(), fixtureRates(), map[string]string{"India": "IN"}, map[string]bool{"EUR": true, "USD": true}, 100, common.GetLogger())
	require.NoError(t, tr.Run(context.Background()))

	project := store.projects[models.ProjectKey("eib", "https://example.org/p/9")]
	require.NotNil(t, project)
	assert.Nil(t, project.TotalAmountUSD)
	require.NotNil(t, project.TotalAmount)
	assert.Equal(t, amount, *project.TotalAmount)
}

// fakeLookup serves metadata for known CUSIPs and counts calls.
type fakeLookup struct {
	calls int
	meta  map[string]*stockmeta.SecurityMeta
}

func (f *fakeLookup) LookupCUSIP(ctx context.Context, cusip string) (*stockmeta.SecurityMeta, error) {
	f.calls++
	if meta, ok := f.meta[cusip]; ok {
		return meta, nil
	}
	return nil, errors.New("unknown cusip")
}

func TestFilingTransformEnrichesAndDedupes(t *testing.T) {
	store := newTransformStore()
	value := 1000.0
	store.stagedInv = []*models.StagedInvestment{
		{ID: 1, CIK: "102909", CompanyName: "VANGUARD GROUP INC", Accession: "acc-1", FormType: "13F-HR", CUSIP: "037833100", Issuer: "APPLE INC", Value: &value},
		// Same (form, cusip, manager): collapses to one investment.
		{ID: 2, CIK: "102909", CompanyName: "VANGUARD GROUP INC", Accession: "acc-1", FormType: "13F-HR", CUSIP: "037833100", Issuer: "APPLE INC", Value: &value},
		{ID: 3, CIK: "102909", CompanyName: "VANGUARD GROUP INC", Accession: "acc-1", FormType: "13F-HR", CUSIP: "BADCUSIP1", Issuer: "MYSTERY CO"},
	}

	lookup := &fakeLookup{meta: map[string]*stockmeta.SecurityMeta{
		"037833100": {MarketSector: "Technology", Ticker: "AAPL", Exchange: "NASDAQ", SecurityType: "Common Stock"},
	}}

	tr := NewFilingTransformer(store, lookup, 100, common.GetLogger())
	require.NoError(t, tr.Run(context.Background()))

	assert.Len(t, store.companies, 1)
	assert.Len(t, store.forms, 1)
	require.Len(t, store.investments, 2)

	formKey := models.FormKey("102909", "acc-1")
	apple := store.investments[models.InvestmentKey(formKey, "037833100", "")]
	require.NotNil(t, apple)
	assert.Equal(t, "AAPL", apple.Ticker)
	assert.Equal(t, "Technology", apple.MarketSector)

	mystery := store.investments[models.InvestmentKey(formKey, "BADCUSIP1", "")]
	require.NotNil(t, mystery)
	assert.Empty(t, mystery.Ticker)

	// The duplicate CUSIP hit the cache, the failed one was cached as absent.
	assert.Equal(t, 2, lookup.calls)
	assert.Empty(t, store.stagedInv)
}
