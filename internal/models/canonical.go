package models

import (
	"fmt"
	"time"
)

// Project is the canonical, normalized project record.
// Uniqueness key: (source, url). Upsert updates all mutable columns.
type Project struct {
	Key                 string    `json:"-"` // source|url, the store key
	Source              string    `json:"source"`
	Number              string    `json:"number"`
	Name                string    `json:"name"`
	Status              string    `json:"status"`
	ApprovalDate        string    `json:"approval_date"`
	SigningDate         string    `json:"signing_date"`
	EffectiveDate       string    `json:"effective_date"`
	DisclosureDate      string    `json:"disclosure_date"`
	PlannedCloseDate    string    `json:"planned_close_date"`
	ActualCloseDate     string    `json:"actual_close_date"`
	FinanceTypes        string    `json:"finance_types"`
	Sectors             string    `json:"sectors"`   // Canonical names, ordered, comma-joined
	Countries           string    `json:"countries"` // Canonical names, ordered, comma-joined
	Affiliates          string    `json:"affiliates"`
	BankID              uint64    `json:"bank_id"`
	TotalAmount         *float64  `json:"total_amount"`
	TotalAmountCurrency string    `json:"total_amount_currency"`
	TotalAmountUSD      *float64  `json:"total_amount_usd"` // Reference-year USD, 2 decimals
	URL                 string    `json:"url"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// ProjectKey builds the canonical uniqueness key.
func ProjectKey(source, url string) string {
	return source + "|" + url
}

// ProjectCountry associates a canonical project with a reference country.
type ProjectCountry struct {
	ProjectKey string `json:"project_key"`
	CountryID  uint64 `json:"country_id"`
}

// ProjectSector associates a canonical project with a reference sector.
type ProjectSector struct {
	ProjectKey string `json:"project_key"`
	SectorID   uint64 `json:"sector_id"`
}

// Company is a filing company keyed by CIK.
type Company struct {
	CIK  string `json:"cik"`
	Name string `json:"name"`
}

// FormSubmission is one regulatory form filing, keyed by (cik, accession).
type FormSubmission struct {
	Key            string `json:"-"` // cik|accession
	CIK            string `json:"cik"`
	Accession      string `json:"accession"`
	FormType       string `json:"form_type"`
	FiledAt        string `json:"filed_at"`
	PeriodOfReport string `json:"period_of_report"`
}

// FormKey builds the form uniqueness key.
func FormKey(cik, accession string) string {
	return cik + "|" + accession
}

// Investment is one canonical holdings row, keyed by (form, cusip, manager).
type Investment struct {
	Key          string   `json:"-"` // formKey|cusip|manager
	FormKey      string   `json:"form_key"`
	CUSIP        string   `json:"cusip"`
	Manager      string   `json:"manager"`
	Issuer       string   `json:"issuer"`
	TitleOfClass string   `json:"title_of_class"`
	Value        *float64 `json:"value"`
	Shares       *float64 `json:"shares"`
	SharesType   string   `json:"shares_type"`
	MarketSector string   `json:"market_sector"`
	Ticker       string   `json:"ticker"`
	Exchange     string   `json:"exchange"`
	SecurityType string   `json:"security_type"`
}

// InvestmentKey builds the investment uniqueness key.
func InvestmentKey(formKey, cusip, manager string) string {
	return fmt.Sprintf("%s|%s|%s", formKey, cusip, manager)
}
