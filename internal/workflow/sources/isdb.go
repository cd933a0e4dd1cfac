package sources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fundtrace/fundtrace/internal/models"
	"github.com/fundtrace/fundtrace/internal/workflow"
)

// Islamic Development Bank: the open-data portal serves the project list as
// one JSON download. Terminal.

const (
	isdbSource  = "isdb"
	isdbDataURL = "https://opendata.isdb.org/api/projects.json"
)

func registerISDB(r *workflow.Registry) {
	r.AddSource(isdbSource, models.JobTypeDevelopmentProjects, models.WorkflowDownload)
	r.Register(isdbSource, models.WorkflowDownload, func() workflow.Scraper { return &isdbDownload{} })
}

type isdbRecord struct {
	Code         string   `json:"project_code"`
	Title        string   `json:"title"`
	Status       string   `json:"status"`
	Country      string   `json:"member_country"`
	Sector       string   `json:"sector"`
	ApprovalDate string   `json:"approval_date"`
	Mode         string   `json:"mode_of_financing"`
	Amount       *float64 `json:"approved_amount"`
	Currency     string   `json:"currency"`
	URL          string   `json:"project_url"`
}

type isdbDownload struct{}

func (w *isdbDownload) Type() models.WorkflowType { return models.WorkflowDownload }

func (w *isdbDownload) Scrape(ctx context.Context, deps workflow.Deps, in workflow.Input) (*workflow.Output, error) {
	url := in.URL
	if url == "" {
		url = isdbDataURL
	}

	body, err := deps.Fetcher.Download(ctx, url)
	if err != nil {
		return nil, err
	}

	var records []isdbRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("failed to decode dataset: %w", err)
	}

	out := &workflow.Output{}
	for _, rec := range records {
		out.Projects = append(out.Projects, &models.StagedProject{
			Source:              isdbSource,
			Number:              rec.Code,
			Name:                cleanText(rec.Title),
			Status:              rec.Status,
			Countries:           rec.Country,
			Sectors:             rec.Sector,
			ApprovalDate:        rec.ApprovalDate,
			FinanceTypes:        rec.Mode,
			TotalAmount:         rec.Amount,
			TotalAmountCurrency: rec.Currency,
			URL:                 rec.URL,
			TaskID:              in.TaskID,
		})
	}

	return out, nil
}
