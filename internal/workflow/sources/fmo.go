package sources

import (
	"bytes"
	"context"
	"fmt"

	"github.com/PuerkitoBio/goquery"

	"github.com/fundtrace/fundtrace/internal/models"
	"github.com/fundtrace/fundtrace/internal/workflow"
)

// FMO (Dutch entrepreneurial development bank): the world-map project list is
// paginated HTML, so the results page re-enqueues itself for the next page
// alongside the project follow-ups.

const (
	fmoSource  = "fmo"
	fmoBaseURL = "https://www.fmo.nl"
	fmoListURL = fmoBaseURL + "/worldmap"
)

func registerFMO(r *workflow.Registry) {
	r.AddSource(fmoSource, models.JobTypeDevelopmentProjects, models.WorkflowResultsPage)
	r.Register(fmoSource, models.WorkflowResultsPage, func() workflow.Scraper { return &fmoResults{} })
	r.Register(fmoSource, models.WorkflowProjectPage, func() workflow.Scraper { return &fmoProject{} })
}

type fmoResults struct{}

func (w *fmoResults) Type() models.WorkflowType { return models.WorkflowResultsPage }

func (w *fmoResults) Scrape(ctx context.Context, deps workflow.Deps, in workflow.Input) (*workflow.Output, error) {
	url := in.URL
	if url == "" {
		url = fmoListURL
	}

	body, err := deps.Fetcher.Get(ctx, url)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse results page: %w", err)
	}

	var projectURLs []string
	doc.Find("ul.project-list a.project-link").Each(func(_ int, sel *goquery.Selection) {
		if href, ok := sel.Attr("href"); ok {
			projectURLs = append(projectURLs, absoluteURL(fmoBaseURL, href))
		}
	})

	next := followUps(in.JobID, fmoSource, models.WorkflowProjectPage, projectURLs)
	if href, ok := doc.Find("a.pager-next").Attr("href"); ok {
		next = append(next, models.NewTask(in.JobID, fmoSource, models.WorkflowResultsPage, absoluteURL(fmoBaseURL, href)))
	}

	return &workflow.Output{Next: next}, nil
}

type fmoProject struct{}

func (w *fmoProject) Type() models.WorkflowType { return models.WorkflowProjectPage }

func (w *fmoProject) Scrape(ctx context.Context, deps workflow.Deps, in workflow.Input) (*workflow.Output, error) {
	body, err := deps.Fetcher.Get(ctx, in.URL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse project page: %w", err)
	}

	row := &models.StagedProject{
		Source: fmoSource,
		Name:   cleanText(doc.Find("h1").First().Text()),
		URL:    in.URL,
		TaskID: in.TaskID,
	}

	doc.Find("div.project-details dl div").Each(func(_ int, sel *goquery.Selection) {
		label := cleanText(sel.Find("dt").Text())
		value := cleanText(sel.Find("dd").Text())
		switch label {
		case "Project number":
			row.Number = value
		case "Status":
			row.Status = value
		case "Country":
			row.Countries = value
		case "Sector":
			row.Sectors = value
		case "Signing date":
			row.SigningDate = value
		case "End date":
			row.PlannedCloseDate = value
		case "Client":
			row.Affiliates = value
		case "Total FMO financing":
			row.TotalAmount = parseAmount(value)
			row.TotalAmountCurrency = "EUR"
		}
	})

	return &workflow.Output{Projects: []*models.StagedProject{row}}, nil
}
