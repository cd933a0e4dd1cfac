package sources

import (
	"bytes"
	"context"
	"fmt"

	"github.com/PuerkitoBio/goquery"

	"github.com/fundtrace/fundtrace/internal/models"
	"github.com/fundtrace/fundtrace/internal/workflow"
)

// European Bank for Reconstruction and Development: the project summary list
// is plain HTML with a "next" link, so the results page re-enqueues itself
// for the following page alongside the project follow-ups.

const (
	ebrdSource  = "ebrd"
	ebrdBaseURL = "https://www.ebrd.com"
	ebrdListURL = ebrdBaseURL + "/work-with-us/project-finance/project-summary-documents.html"
)

func registerEBRD(r *workflow.Registry) {
	r.AddSource(ebrdSource, models.JobTypeDevelopmentProjects, models.WorkflowResultsPage)
	r.Register(ebrdSource, models.WorkflowResultsPage, func() workflow.Scraper { return &ebrdResults{} })
	r.Register(ebrdSource, models.WorkflowProjectPage, func() workflow.Scraper { return &ebrdProject{} })
}

type ebrdResults struct{}

func (w *ebrdResults) Type() models.WorkflowType { return models.WorkflowResultsPage }

func (w *ebrdResults) Scrape(ctx context.Context, deps workflow.Deps, in workflow.Input) (*workflow.Output, error) {
	url := in.URL
	if url == "" {
		url = ebrdListURL
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
	doc.Find("table.psd-list td.title a").Each(func(_ int, sel *goquery.Selection) {
		if href, ok := sel.Attr("href"); ok {
			projectURLs = append(projectURLs, absoluteURL(ebrdBaseURL, href))
		}
	})

	next := followUps(in.JobID, ebrdSource, models.WorkflowProjectPage, projectURLs)
	if href, ok := doc.Find("a.pagination-next").Attr("href"); ok {
		next = append(next, models.NewTask(in.JobID, ebrdSource, models.WorkflowResultsPage, absoluteURL(ebrdBaseURL, href)))
	}

	return &workflow.Output{Next: next}, nil
}

type ebrdProject struct{}

func (w *ebrdProject) Type() models.WorkflowType { return models.WorkflowProjectPage }

func (w *ebrdProject) Scrape(ctx context.Context, deps workflow.Deps, in workflow.Input) (*workflow.Output, error) {
	body, err := deps.Fetcher.Get(ctx, in.URL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse project page: %w", err)
	}

	row := &models.StagedProject{
		Source: ebrdSource,
		Name:   cleanText(doc.Find("h1").First().Text()),
		URL:    in.URL,
		TaskID: in.TaskID,
	}

	doc.Find("dl.project-facts div").Each(func(_ int, sel *goquery.Selection) {
		label := cleanText(sel.Find("dt").Text())
		value := cleanText(sel.Find("dd").Text())
		switch label {
		case "Project number":
			row.Number = value
		case "Status":
			row.Status = value
		case "Location":
			row.Countries = value
		case "Sector":
			row.Sectors = value
		case "PSD disclosed":
			row.DisclosureDate = value
		case "Board date":
			row.ApprovalDate = value
		case "Financing type":
			row.FinanceTypes = value
		case "Client":
			row.Affiliates = value
		case "Total project value":
			row.TotalAmount = parseAmount(value)
			row.TotalAmountCurrency = "EUR"
		}
	})

	return &workflow.Output{Projects: []*models.StagedProject{row}}, nil
}
