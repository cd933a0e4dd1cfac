package sources

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/fundtrace/fundtrace/internal/models"
	"github.com/fundtrace/fundtrace/internal/workflow"
)

// Inter-American Development Bank ships its portfolio export as a ZIP
// archive wrapping one CSV. Terminal.

const (
	idbSource  = "idb"
	idbDataURL = "https://www.iadb.org/en/projects/export.zip"
)

func registerIDB(r *workflow.Registry) {
	r.AddSource(idbSource, models.JobTypeDevelopmentProjects, models.WorkflowDownload)
	r.Register(idbSource, models.WorkflowDownload, func() workflow.Scraper { return &idbDownload{} })
}

type idbDownload struct{}

func (w *idbDownload) Type() models.WorkflowType { return models.WorkflowDownload }

func (w *idbDownload) Scrape(ctx context.Context, deps workflow.Deps, in workflow.Input) (*workflow.Output, error) {
	url := in.URL
	if url == "" {
		url = idbDataURL
	}

	body, err := deps.Fetcher.Download(ctx, url)
	if err != nil {
		return nil, err
	}

	archive, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}

	for _, file := range archive.File {
		if !strings.HasSuffix(strings.ToLower(file.Name), ".csv") {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", file.Name, err)
		}
		rows, err := parseProjectCSV(rc, idbSource, in.TaskID)
		rc.Close()
		if err != nil {
			return nil, err
		}
		return &workflow.Output{Projects: rows}, nil
	}

	return nil, fmt.Errorf("archive contains no CSV file")
}
