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

// African Development Bank: one CSV export of the active portfolio. Terminal.

const (
	afdbSource  = "afdb"
	afdbDataURL = "https://projectsportal.afdb.org/dataportal/VProject/exportProjectList?format=csv"
)

func registerAFDB(r *workflow.Registry) {
	r.AddSource(afdbSource, models.JobTypeDevelopmentProjects, models.WorkflowDownload)
	r.Register(afdbSource, models.WorkflowDownload, func() workflow.Scraper { return &afdbDownload{} })
}

type afdbDownload struct{}

func (w *afdbDownload) Type() models.WorkflowType { return models.WorkflowDownload }

func (w *afdbDownload) Scrape(ctx context.Context, deps workflow.Deps, in workflow.Input) (*workflow.Output, error) {
	url := in.URL
	if url == "" {
		url = afdbDataURL
	}

	body, err := deps.Fetcher.Download(ctx, url)
	if err != nil {
		return nil, err
	}

	rows, err := parseProjectCSV(bytes.NewReader(body), afdbSource, in.TaskID)
	if err != nil {
		return nil, err
	}
	return &workflow.Output{Projects: rows}, nil
}

// parseProjectCSV reads a header-keyed project CSV into staged rows. Shared
// with the IDB source, whose archive wraps the same shape of file.
func parseProjectCSV(r io.Reader, source, taskID string) ([]*models.StagedProject, error) {
	reader := csv.NewReader(r)
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

	var rows []*models.StagedProject
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record: %w", err)
		}
		rows = append(rows, &models.StagedProject{
			Source:              source,
			Number:              cell(record, "Project Code"),
			Name:                cell(record, "Project Name"),
			Status:              cell(record, "Status"),
			Countries:           cell(record, "Country"),
			Sectors:             cell(record, "Sector"),
			ApprovalDate:        cell(record, "Approval Date"),
			SigningDate:         cell(record, "Signature Date"),
			PlannedCloseDate:    cell(record, "Planned Completion Date"),
			FinanceTypes:        cell(record, "Financing Instrument"),
			TotalAmount:         parseAmount(cell(record, "Commitment")),
			TotalAmountCurrency: cell(record, "Currency"),
			URL:                 cell(record, "Project URL"),
			TaskID:              taskID,
		})
	}
	return rows, nil
}
