package sources

import (
	"context"
	"fmt"

	"github.com/fundtrace/fundtrace/internal/models"
	"github.com/fundtrace/fundtrace/internal/workflow"
)

// International Finance Corporation: a paginated disclosure API. The
// results-page-multi step stages partial rows straight off the listing and
// emits project-page-partial follow-ups that fill in the remaining columns.
// Two staged partials per project are reconciled by the transform stage.

const (
	ifcSource  = "ifc"
	ifcBaseURL = "https://disclosures.ifc.org"
	ifcAPIPath = ifcBaseURL + "/api/projects?offset=%d&limit=%d"

	ifcPageSize = 100
)

func registerIFC(r *workflow.Registry) {
	r.AddSource(ifcSource, models.JobTypeDevelopmentProjects, models.WorkflowResultsPageMulti)
	r.Register(ifcSource, models.WorkflowResultsPageMulti, func() workflow.Scraper { return &ifcResults{} })
	r.Register(ifcSource, models.WorkflowProjectPagePartial, func() workflow.Scraper { return &ifcProject{} })
}

type ifcListResponse struct {
	Total    int              `json:"total"`
	Projects []ifcListProject `json:"projects"`
}

type ifcListProject struct {
	ProjectNumber  string   `json:"projectNumber"`
	Name           string   `json:"name"`
	Status         string   `json:"status"`
	Country        string   `json:"country"`
	DisclosureDate string   `json:"disclosureDate"`
	Amount         *float64 `json:"investmentAmount"`
	Currency       string   `json:"currency"`
	DetailURL      string   `json:"url"`
}

type ifcResults struct{}

func (w *ifcResults) Type() models.WorkflowType { return models.WorkflowResultsPageMulti }

// Scrape walks every page of the API in one run, staging a partial row per
// listing entry and a detail follow-up per project.
func (w *ifcResults) Scrape(ctx context.Context, deps workflow.Deps, in workflow.Input) (*workflow.Output, error) {
	out := &workflow.Output{}

	offset := 0
	for {
		var resp ifcListResponse
		if err := deps.Fetcher.GetJSON(ctx, fmt.Sprintf(ifcAPIPath, offset, ifcPageSize), &resp); err != nil {
			return nil, err
		}

		var urls []string
		for _, p := range resp.Projects {
			detail := absoluteURL(ifcBaseURL, p.DetailURL)
			out.Projects = append(out.Projects, &models.StagedProject{
				Source:              ifcSource,
				Number:              p.ProjectNumber,
				Name:                cleanText(p.Name),
				Status:              p.Status,
				Countries:           p.Country,
				DisclosureDate:      p.DisclosureDate,
				TotalAmount:         p.Amount,
				TotalAmountCurrency: p.Currency,
				URL:                 detail,
				TaskID:              in.TaskID,
			})
			urls = append(urls, detail)
		}
		out.Next = append(out.Next, followUps(in.JobID, ifcSource, models.WorkflowProjectPagePartial, urls)...)

		offset += ifcPageSize
		if offset >= resp.Total || len(resp.Projects) == 0 {
			break
		}
	}

	return out, nil
}

type ifcDetailResponse struct {
	ProjectNumber string `json:"projectNumber"`
	Sector        string `json:"sector"`
	ApprovalDate  string `json:"boardApprovalDate"`
	SigningDate   string `json:"signingDate"`
	FinanceType   string `json:"productLine"`
	Affiliates    string `json:"companyName"`
}

type ifcProject struct{}

func (w *ifcProject) Type() models.WorkflowType { return models.WorkflowProjectPagePartial }

// Scrape stages the detail-only columns for one project. Terminal; the
// transform stage merges this partial with the listing partial on URL.
func (w *ifcProject) Scrape(ctx context.Context, deps workflow.Deps, in workflow.Input) (*workflow.Output, error) {
	var resp ifcDetailResponse
	if err := deps.Fetcher.GetJSON(ctx, in.URL, &resp); err != nil {
		return nil, err
	}

	row := &models.StagedProject{
		Source:       ifcSource,
		Number:       resp.ProjectNumber,
		Sectors:      resp.Sector,
		ApprovalDate: resp.ApprovalDate,
		SigningDate:  resp.SigningDate,
		FinanceTypes: resp.FinanceType,
		Affiliates:   cleanText(resp.Affiliates),
		URL:          in.URL,
		TaskID:       in.TaskID,
	}

	return &workflow.Output{Projects: []*models.StagedProject{row}}, nil
}
