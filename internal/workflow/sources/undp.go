package sources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fundtrace/fundtrace/internal/models"
	"github.com/fundtrace/fundtrace/internal/workflow"
)

// United Nations Development Programme: the transparency API serves the full
// project list as one JSON download. Terminal.

const (
	undpSource  = "undp"
	undpDataURL = "https://api.open.undp.org/api/projects/full.json"
)

func registerUNDP(r *workflow.Registry) {
	r.AddSource(undpSource, models.JobTypeDevelopmentProjects, models.WorkflowDownload)
	r.Register(undpSource, models.WorkflowDownload, func() workflow.Scraper { return &undpDownload{} })
}

type undpRecord struct {
	ProjectID string   `json:"project_id"`
	Title     string   `json:"project_title"`
	Status    string   `json:"status"`
	Country   string   `json:"country"`
	Sector    string   `json:"sector"`
	StartDate string   `json:"start_date"`
	EndDate   string   `json:"end_date"`
	Budget    *float64 `json:"budget"`
	URL       string   `json:"project_url"`
}

type undpDownload struct{}

func (w *undpDownload) Type() models.WorkflowType { return models.WorkflowDownload }

func (w *undpDownload) Scrape(ctx context.Context, deps workflow.Deps, in workflow.Input) (*workflow.Output, error) {
	url := in.URL
	if url == "" {
		url = undpDataURL
	}

	body, err := deps.Fetcher.Download(ctx, url)
	if err != nil {
		return nil, err
	}

	var records []undpRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("failed to decode dataset: %w", err)
	}

	out := &workflow.Output{}
	for _, rec := range records {
		out.Projects = append(out.Projects, &models.StagedProject{
			Source:              undpSource,
			Number:              rec.ProjectID,
			Name:                cleanText(rec.Title),
			Status:              rec.Status,
			Countries:           rec.Country,
			Sectors:             rec.Sector,
			EffectiveDate:       rec.StartDate,
			PlannedCloseDate:    rec.EndDate,
			TotalAmount:         rec.Budget,
			TotalAmountCurrency: "USD",
			URL:                 rec.URL,
			TaskID:              in.TaskID,
		})
	}

	return out, nil
}
