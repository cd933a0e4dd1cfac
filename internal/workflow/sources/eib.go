package sources

import (
	"context"
	"encoding/xml"
	"fmt"

	"github.com/fundtrace/fundtrace/internal/models"
	"github.com/fundtrace/fundtrace/internal/workflow"
)

// European Investment Bank: the financed-projects feed is one XML document.
// Terminal.

const (
	eibSource  = "eib"
	eibDataURL = "https://www.eib.org/en/projects/loans/export.xml"
)

func registerEIB(r *workflow.Registry) {
	r.AddSource(eibSource, models.JobTypeDevelopmentProjects, models.WorkflowDownload)
	r.Register(eibSource, models.WorkflowDownload, func() workflow.Scraper { return &eibDownload{} })
}

type eibFeed struct {
	XMLName  xml.Name     `xml:"projects"`
	Projects []eibProject `xml:"project"`
}

type eibProject struct {
	Reference     string   `xml:"reference"`
	Title         string   `xml:"title"`
	Status        string   `xml:"status"`
	Country       string   `xml:"country"`
	Sector        string   `xml:"sector"`
	SignatureDate string   `xml:"signatureDate"`
	Amount        *float64 `xml:"signedAmount"`
	Currency      string   `xml:"currency"`
	URL           string   `xml:"url"`
}

type eibDownload struct{}

func (w *eibDownload) Type() models.WorkflowType { return models.WorkflowDownload }

func (w *eibDownload) Scrape(ctx context.Context, deps workflow.Deps, in workflow.Input) (*workflow.Output, error) {
	url := in.URL
	if url == "" {
		url = eibDataURL
	}

	body, err := deps.Fetcher.Download(ctx, url)
	if err != nil {
		return nil, err
	}

	var feed eibFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("failed to decode feed: %w", err)
	}

	out := &workflow.Output{}
	for _, p := range feed.Projects {
		out.Projects = append(out.Projects, &models.StagedProject{
			Source:              eibSource,
			Number:              p.Reference,
			Name:                cleanText(p.Title),
			Status:              p.Status,
			Countries:           p.Country,
			Sectors:             p.Sector,
			SigningDate:         p.SignatureDate,
			TotalAmount:         p.Amount,
			TotalAmountCurrency: p.Currency,
			URL:                 p.URL,
			TaskID:              in.TaskID,
		})
	}

	return out, nil
}
