package sources

import (
	"context"
	"fmt"

	"github.com/fundtrace/fundtrace/internal/models"
	"github.com/fundtrace/fundtrace/internal/workflow"
)

// Asian Infrastructure Investment Bank: a paginated JSON listing API. The
// listing carries a summary per project; the detail endpoint completes it.

const (
	aiibSource   = "aiib"
	aiibBaseURL  = "https://www.aiib.org"
	aiibListPath = aiibBaseURL + "/api/projects/list?page=%d"
)

func registerAIIB(r *workflow.Registry) {
	r.AddSource(aiibSource, models.JobTypeDevelopmentProjects, models.WorkflowResultsPageMulti)
	r.Register(aiibSource, models.WorkflowResultsPageMulti, func() workflow.Scraper { return &aiibResults{} })
	r.Register(aiibSource, models.WorkflowProjectPagePartial, func() workflow.Scraper { return &aiibProject{} })
}

type aiibListResponse struct {
	TotalPages int `json:"totalPages"`
	Items      []struct {
		Code     string `json:"code"`
		Name     string `json:"name"`
		Status   string `json:"status"`
		Member   string `json:"member"`
		Approved string `json:"approvalDate"`
		URL      string `json:"detailUrl"`
	} `json:"items"`
}

type aiibResults struct{}

func (w *aiibResults) Type() models.WorkflowType { return models.WorkflowResultsPageMulti }

func (w *aiibResults) Scrape(ctx context.Context, deps workflow.Deps, in workflow.Input) (*workflow.Output, error) {
	out := &workflow.Output{}

	for page := 1; ; page++ {
		var resp aiibListResponse
		if err := deps.Fetcher.GetJSON(ctx, fmt.Sprintf(aiibListPath, page), &resp); err != nil {
			return nil, err
		}

		var urls []string
		for _, item := range resp.Items {
			detail := absoluteURL(aiibBaseURL, item.URL)
			out.Projects = append(out.Projects, &models.StagedProject{
				Source:       aiibSource,
				Number:       item.Code,
				Name:         cleanText(item.Name),
				Status:       item.Status,
				Countries:    item.Member,
				ApprovalDate: item.Approved,
				URL:          detail,
				TaskID:       in.TaskID,
			})
			urls = append(urls, detail)
		}
		out.Next = append(out.Next, followUps(in.JobID, aiibSource, models.WorkflowProjectPagePartial, urls)...)

		if page >= resp.TotalPages || len(resp.Items) == 0 {
			break
		}
	}

	return out, nil
}

type aiibDetailResponse struct {
	Code     string   `json:"code"`
	Sector   string   `json:"sector"`
	Loan     *float64 `json:"loanAmount"`
	Currency string   `json:"currency"`
	Signed   string   `json:"signingDate"`
	Borrower string   `json:"borrower"`
}

type aiibProject struct{}

func (w *aiibProject) Type() models.WorkflowType { return models.WorkflowProjectPagePartial }

func (w *aiibProject) Scrape(ctx context.Context, deps workflow.Deps, in workflow.Input) (*workflow.Output, error) {
	var resp aiibDetailResponse
	if err := deps.Fetcher.GetJSON(ctx, in.URL, &resp); err != nil {
		return nil, err
	}

	row := &models.StagedProject{
		Source:              aiibSource,
		Number:              resp.Code,
		Sectors:             resp.Sector,
		SigningDate:         resp.Signed,
		Affiliates:          cleanText(resp.Borrower),
		TotalAmount:         resp.Loan,
		TotalAmountCurrency: resp.Currency,
		URL:                 in.URL,
		TaskID:              in.TaskID,
	}

	return &workflow.Output{Projects: []*models.StagedProject{row}}, nil
}
