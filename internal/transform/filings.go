package transform

import (
	"context"

	"github.com/ternarybob/arbor"

	"github.com/fundtrace/fundtrace/internal/interfaces"
	"github.com/fundtrace/fundtrace/internal/models"
	"github.com/fundtrace/fundtrace/internal/stockmeta"
)

// CUSIPLookup is the slice of the stock-metadata client this transform needs.
type CUSIPLookup interface {
	LookupCUSIP(ctx context.Context, cusip string) (*stockmeta.SecurityMeta, error)
}

// FilingTransformer drains staged holdings rows into companies, form
// submissions, and enriched investments.
type FilingTransformer struct {
	store     interfaces.Store
	meta      CUSIPLookup
	logger    arbor.ILogger
	batchSize int
}

// NewFilingTransformer wires the regulatory-filings transform.
func NewFilingTransformer(store interfaces.Store, meta CUSIPLookup, batchSize int, logger arbor.ILogger) *FilingTransformer {
	if batchSize <= 0 {
		batchSize = 5000
	}
	return &FilingTransformer{store: store, meta: meta, logger: logger, batchSize: batchSize}
}

// Run processes staged rows in batches until drained. The CUSIP metadata
// cache spans batches so each security is looked up at most once per run.
func (t *FilingTransformer) Run(ctx context.Context) error {
	metaCache := make(map[string]*stockmeta.SecurityMeta)

	for {
		staged, err := t.store.GetStagedInvestments(ctx, t.batchSize)
		if err != nil {
			return err
		}
		if len(staged) == 0 {
			return nil
		}

		companies := make(map[string]*models.Company)
		forms := make(map[string]*models.FormSubmission)
		investments := make(map[string]*models.Investment)

		for _, row := range staged {
			if row.CIK != "" {
				companies[row.CIK] = &models.Company{CIK: row.CIK, Name: cleanSpace(row.CompanyName)}
			}

			formKey := models.FormKey(row.CIK, row.Accession)
			forms[formKey] = &models.FormSubmission{
				Key:            formKey,
				CIK:            row.CIK,
				Accession:      row.Accession,
				FormType:       row.FormType,
				FiledAt:        row.FiledAt,
				PeriodOfReport: row.PeriodOfReport,
			}

			// Duplicate (form, cusip, manager) rows collapse; last one wins.
			invKey := models.InvestmentKey(formKey, row.CUSIP, row.Manager)
			investment := &models.Investment{
				Key:          invKey,
				FormKey:      formKey,
				CUSIP:        row.CUSIP,
				Manager:      cleanSpace(row.Manager),
				Issuer:       cleanSpace(row.Issuer),
				TitleOfClass: cleanSpace(row.TitleOfClass),
				Value:        row.Value,
				Shares:       row.Shares,
				SharesType:   row.SharesType,
			}
			t.enrich(ctx, investment, metaCache)
			investments[invKey] = investment
		}

		if err := t.store.BulkUpsertCompanies(ctx, mapValues(companies)); err != nil {
			return err
		}
		if err := t.store.BulkUpsertForms(ctx, mapValues(forms)); err != nil {
			return err
		}
		if err := t.store.BulkUpsertInvestments(ctx, mapValues(investments)); err != nil {
			return err
		}

		ids := make([]uint64, 0, len(staged))
		for _, row := range staged {
			ids = append(ids, row.ID)
		}
		if err := t.store.DeleteStagedInvestments(ctx, ids); err != nil {
			return err
		}

		t.logger.Info().
			Int("staged", len(staged)).
			Int("companies", len(companies)).
			Int("forms", len(forms)).
			Int("investments", len(investments)).
			Msg("Filing batch transformed")
	}
}

// enrich fills security metadata from the cache or the service. A lookup
// failure leaves the enrichment columns empty; the row still lands.
func (t *FilingTransformer) enrich(ctx context.Context, inv *models.Investment, cache map[string]*stockmeta.SecurityMeta) {
	if inv.CUSIP == "" || t.meta == nil {
		return
	}

	meta, ok := cache[inv.CUSIP]
	if !ok {
		var err error
		meta, err = t.meta.LookupCUSIP(ctx, inv.CUSIP)
		if err != nil {
			t.logger.Warn().Err(err).Str("cusip", inv.CUSIP).Msg("CUSIP enrichment failed")
			cache[inv.CUSIP] = nil
			return
		}
		cache[inv.CUSIP] = meta
	}
	if meta == nil {
		return
	}

	inv.MarketSector = meta.MarketSector
	inv.Ticker = meta.Ticker
	inv.Exchange = meta.Exchange
	inv.SecurityType = meta.SecurityType
}

func mapValues[V any](m map[string]V) []V {
	out := make([]V, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}
