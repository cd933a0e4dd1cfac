package sources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fundtrace/fundtrace/internal/models"
	"github.com/fundtrace/fundtrace/internal/workflow"
)

// KfW Development Bank publishes its whole project portfolio as one JSON
// dataset. A single download workflow stages every record. Terminal.

const (
	kfwSource  = "kfw"
	kfwDataURL = "https://www.kfw-entwicklungsbank.de/ipfz/api/projects.json"
)

func registerKFW(r *workflow.Registry) {
	r.AddSource(kfwSource, models.JobTypeDevelopmentProjects, models.WorkflowDownload)
	r.Register(kfwSource, models.WorkflowDownload, func() workflow.Scraper { return &kfwDownload{} })
}

type kfwRecord struct {
	ProjectNumber string   `json:"projektnummer"`
	Title         string   `json:"titel"`
	Status        string   `json:"status"`
	Country       string   `json:"land"`
	Sector        string   `json:"sektor"`
	Commitment    *float64 `json:"zusagebetrag"`
	Currency      string   `json:"waehrung"`
	CommitmentAt  string   `json:"zusagedatum"`
	DetailURL     string   `json:"url"`
}

type kfwDownload struct{}

func (w *kfwDownload) Type() models.WorkflowType { return models.WorkflowDownload }

func (w *kfwDownload) Scrape(ctx context.Context, deps workflow.Deps, in workflow.Input) (*workflow.Output, error) {
	url := in.URL
	if url == "" {
		url = kfwDataURL
	}

	body, err := deps.Fetcher.Download(ctx, url)
	if err != nil {
		return nil, err
	}

	var records []kfwRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("failed to decode dataset: %w", err)
	}

	out := &workflow.Output{}
	for _, rec := range records {
		out.Projects = append(out.Projects, &models.StagedProject{
			Source:              kfwSource,
			Number:              rec.ProjectNumber,
			Name:                cleanText(rec.Title),
			Status:              rec.Status,
			Countries:           rec.Country,
			Sectors:             rec.Sector,
			ApprovalDate:        rec.CommitmentAt,
			TotalAmount:         rec.Commitment,
			TotalAmountCurrency: rec.Currency,
			URL:                 rec.DetailURL,
			TaskID:              in.TaskID,
		})
	}

	return out, nil
}
