package sources

import (
	"bytes"
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/fundtrace/fundtrace/internal/models"
	"github.com/fundtrace/fundtrace/internal/workflow"
)

// World Bank: the projects API exposes the full portfolio as an XLSX export.
// One download workflow parses the sheet into staged rows. Terminal.

const (
	wbSource  = "wb"
	wbDataURL = "https://search.worldbank.org/api/v3/projects/all.xlsx"
)

func registerWorldBank(r *workflow.Registry) {
	r.AddSource(wbSource, models.JobTypeDevelopmentProjects, models.WorkflowDownload)
	r.Register(wbSource, models.WorkflowDownload, func() workflow.Scraper { return &wbDownload{} })
}

type wbDownload struct{}

func (w *wbDownload) Type() models.WorkflowType { return models.WorkflowDownload }

func (w *wbDownload) Scrape(ctx context.Context, deps workflow.Deps, in workflow.Input) (*workflow.Output, error) {
	url := in.URL
	if url == "" {
		url = wbDataURL
	}

	body, err := deps.Fetcher.Download(ctx, url)
	if err != nil {
		return nil, err
	}

	book, err := excelize.OpenReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer book.Close()

	sheet := book.GetSheetName(0)
	rows, err := book.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}
	if len(rows) < 2 {
		return &workflow.Output{}, nil
	}

	// The export's first row is the header; column order is stable.
	col := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		col[cleanText(name)] = i
	}
	cell := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return cleanText(row[i])
	}

	out := &workflow.Output{}
	for _, row := range rows[1:] {
		if len(row) == 0 {
			continue
		}
		out.Projects = append(out.Projects, &models.StagedProject{
			Source:              wbSource,
			Number:              cell(row, "Project ID"),
			Name:                cell(row, "Project Name"),
			Status:              cell(row, "Project Status"),
			Countries:           cell(row, "Country"),
			Sectors:             cell(row, "Sector"),
			ApprovalDate:        cell(row, "Board Approval Date"),
			PlannedCloseDate:    cell(row, "Closing Date"),
			FinanceTypes:        cell(row, "Lending Instrument"),
			TotalAmount:         parseAmount(cell(row, "Total Amount")),
			TotalAmountCurrency: "USD",
			URL:                 cell(row, "Project URL"),
			TaskID:              in.TaskID,
		})
	}

	return out, nil
}
