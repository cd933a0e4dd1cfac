package sources

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/fundtrace/fundtrace/internal/models"
	"github.com/fundtrace/fundtrace/internal/workflow"
)

// U.S. International Development Finance Corporation: one CSV export of all
// active projects. The column set differs from the AfDB/IDB shape, so it gets
// its own parse. Terminal.

const (
	dfcSource  = "dfc"
	dfcDataURL = "https://www.dfc.gov/sites/default/files/media/documents/active-projects.csv"
)

func registerDFC(r *workflow.Registry) {
	r.AddSource(dfcSource, models.JobTypeDevelopmentProjects, models.WorkflowDownload)
	r.Register(dfcSource, models.WorkflowDownload, func() workflow.Scraper { return &dfcDownload{} })
}

type dfcDownload struct{}

func (w *dfcDownload) Type() models.WorkflowType { return models.WorkflowDownload }

func (w *dfcDownload) Scrape(ctx context.Context, deps workflow.Deps, in workflow.Input) (*workflow.Output, error) {
	url := in.URL
	if url == "" {
		url = dfcDataURL
	}

	body, err := deps.Fetcher.Download(ctx, url)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(bytes.NewReader(body))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[cleanText(name)] = i
	}
	cell := func(record []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(record) {
			return ""
		}
		return cleanText(record[i])
	}

	out := &workflow.Output{}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record: %w", err)
		}
		out.Projects = append(out.Projects, &models.StagedProject{
			Source:              dfcSource,
			Number:              cell(record, "Project Number"),
			Name:                cell(record, "Project Name"),
			Status:              cell(record, "Project Status"),
			Countries:           cell(record, "Country"),
			Sectors:             cell(record, "NAICS Sector"),
			ApprovalDate:        cell(record, "Board Approval Date"),
			SigningDate:         cell(record, "Commitment Date"),
			FinanceTypes:        cell(record, "Project Type"),
			Affiliates:          cell(record, "Project Sponsor"),
			TotalAmount:         parseAmount(cell(record, "Committed Amount")),
			TotalAmountCurrency: "USD",
			URL:                 cell(record, "Project Profile URL"),
			TaskID:              in.TaskID,
		})
	}

	return out, nil
}
