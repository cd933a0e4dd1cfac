package sources

import (
	"context"
	"fmt"

	"github.com/fundtrace/fundtrace/internal/models"
	"github.com/fundtrace/fundtrace/internal/workflow"
)

// Proparco (French DFI): a paginated disclosure API. The listing stages a
// partial row per entry and emits detail follow-ups; the transform stage
// merges the two partials per project on URL.

const (
	proparcoSource  = "proparco"
	proparcoBaseURL = "https://www.proparco.fr"
	proparcoAPIPath = proparcoBaseURL + "/api/projects?page=%d"
)

func registerProparco(r *workflow.Registry) {
	r.AddSource(proparcoSource, models.JobTypeDevelopmentProjects, models.WorkflowResultsPageMulti)
	r.Register(proparcoSource, models.WorkflowResultsPageMulti, func() workflow.Scraper { return &proparcoResults{} })
	r.Register(proparcoSource, models.WorkflowProjectPagePartial, func() workflow.Scraper { return &proparcoProject{} })
}

type proparcoListResponse struct {
	Pages    int                   `json:"pages"`
	Projects []proparcoListProject `json:"projects"`
}

type proparcoListProject struct {
	Reference string   `json:"reference"`
	Title     string   `json:"title"`
	Status    string   `json:"status"`
	Country   string   `json:"country"`
	Amount    *float64 `json:"amount"`
	Currency  string   `json:"currency"`
	DetailURL string   `json:"url"`
}

type proparcoResults struct{}

func (w *proparcoResults) Type() models.WorkflowType { return models.WorkflowResultsPageMulti }

func (w *proparcoResults) Scrape(ctx context.Context, deps workflow.Deps, in workflow.Input) (*workflow.Output, error) {
	out := &workflow.Output{}

	for page := 1; ; page++ {
		var resp proparcoListResponse
		if err := deps.Fetcher.GetJSON(ctx, fmt.Sprintf(proparcoAPIPath, page), &resp); err != nil {
			return nil, err
		}

		var urls []string
		for _, p := range resp.Projects {
			detail := absoluteURL(proparcoBaseURL, p.DetailURL)
			out.Projects = append(out.Projects, &models.StagedProject{
				Source:              proparcoSource,
				Number:              p.Reference,
				Name:                cleanText(p.Title),
				Status:              p.Status,
				Countries:           p.Country,
				TotalAmount:         p.Amount,
				TotalAmountCurrency: p.Currency,
				URL:                 detail,
				TaskID:              in.TaskID,
			})
			urls = append(urls, detail)
		}
		out.Next = append(out.Next, followUps(in.JobID, proparcoSource, models.WorkflowProjectPagePartial, urls)...)

		if page >= resp.Pages || len(resp.Projects) == 0 {
			break
		}
	}

	return out, nil
}

type proparcoDetailResponse struct {
	Reference    string `json:"reference"`
	Sector       string `json:"sector"`
	SigningDate  string `json:"signingDate"`
	ApprovalDate string `json:"approvalDate"`
	Client       string `json:"client"`
	FinanceType  string `json:"financingTool"`
}

type proparcoProject struct{}

func (w *proparcoProject) Type() models.WorkflowType { return models.WorkflowProjectPagePartial }

func (w *proparcoProject) Scrape(ctx context.Context, deps workflow.Deps, in workflow.Input) (*workflow.Output, error) {
	var resp proparcoDetailResponse
	if err := deps.Fetcher.GetJSON(ctx, in.URL, &resp); err != nil {
		return nil, err
	}

	row := &models.StagedProject{
		Source:       proparcoSource,
		Number:       resp.Reference,
		Sectors:      resp.Sector,
		SigningDate:  resp.SigningDate,
		ApprovalDate: resp.ApprovalDate,
		Affiliates:   cleanText(resp.Client),
		FinanceTypes: resp.FinanceType,
		URL:          in.URL,
		TaskID:       in.TaskID,
	}

	return &workflow.Output{Projects: []*models.StagedProject{row}}, nil
}
