package models

import "time"

// StagedProject is a raw or partial project record extracted by a workflow.
// Two or more partials may exist for the same URL (a result-page stage and a
// later project-page stage); the transform stage reconciles them. Date fields
// stay as raw strings until the transform stage parses them.
type StagedProject struct {
	ID                  uint64    `badgerhold:"key"`
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
	AppraisalDate       string    `json:"appraisal_date"`
	LastUpdateDate      string    `json:"last_update_date"`
	FinanceTypes        string    `json:"finance_types"`
	Sectors             string    `json:"sectors"`
	Countries           string    `json:"countries"`
	Affiliates          string    `json:"affiliates"`
	TotalAmount         *float64  `json:"total_amount"`
	TotalAmountCurrency string    `json:"total_amount_currency"`
	TotalAmountUSD      *float64  `json:"total_amount_usd"`
	URL                 string    `json:"url"`
	TaskID              string    `json:"task_id" badgerhold:"index"`
	CreatedAt           time.Time `json:"created_at"`
}

// StagedInvestment is one raw holdings row extracted from a regulatory filing.
// Company and form columns repeat per row; the transform stage splits them out.
type StagedInvestment struct {
	ID             uint64    `badgerhold:"key"`
	CIK            string    `json:"cik"`
	CompanyName    string    `json:"company_name"`
	Accession      string    `json:"accession"`
	FormType       string    `json:"form_type"`
	FiledAt        string    `json:"filed_at"`
	PeriodOfReport string    `json:"period_of_report"`
	Issuer         string    `json:"issuer"`
	TitleOfClass   string    `json:"title_of_class"`
	CUSIP          string    `json:"cusip"`
	Value          *float64  `json:"value"`
	Shares         *float64  `json:"shares"`
	SharesType     string    `json:"shares_type"`
	Discretion     string    `json:"investment_discretion"`
	Manager        string    `json:"manager"`
	VotingSole     *float64  `json:"voting_authority_sole"`
	VotingShared   *float64  `json:"voting_authority_shared"`
	VotingNone     *float64  `json:"voting_authority_none"`
	URL            string    `json:"url"`
	TaskID         string    `json:"task_id" badgerhold:"index"`
	CreatedAt      time.Time `json:"created_at"`
}
