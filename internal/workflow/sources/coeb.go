package sources

import (
	"bytes"
	"context"
	"fmt"

	"github.com/PuerkitoBio/goquery"

	"github.com/fundtrace/fundtrace/internal/models"
	"github.com/fundtrace/fundtrace/internal/workflow"
)

// Council of Europe Development Bank: the seed step enumerates the per-country
// portfolio pages, each one lists approved projects, and the project page is
// scraped into one staged row.

const (
	coebSource  = "coeb"
	coebBaseURL = "https://coebank.org"
	coebListURL = coebBaseURL + "/en/project-financing/countries"
)

func registerCOEB(r *workflow.Registry) {
	r.AddSource(coebSource, models.JobTypeDevelopmentProjects, models.WorkflowSeedURLs)
	r.Register(coebSource, models.WorkflowSeedURLs, func() workflow.Scraper { return &coebSeed{} })
	r.Register(coebSource, models.WorkflowResultsPage, func() workflow.Scraper { return &coebResults{} })
	r.Register(coebSource, models.WorkflowProjectPage, func() workflow.Scraper { return &coebProject{} })
}

type coebSeed struct{}

func (w *coebSeed) Type() models.WorkflowType { return models.WorkflowSeedURLs }

func (w *coebSeed) Scrape(ctx context.Context, deps workflow.Deps, in workflow.Input) (*workflow.Output, error) {
	body, err := deps.Fetcher.Get(ctx, coebListURL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse country index: %w", err)
	}

	var urls []string
	doc.Find("ul.country-list a").Each(func(_ int, sel *goquery.Selection) {
		if href, ok := sel.Attr("href"); ok {
			urls = append(urls, absoluteURL(coebBaseURL, href))
		}
	})

	return &workflow.Output{
		Next: followUps(in.JobID, coebSource, models.WorkflowResultsPage, urls),
	}, nil
}

type coebResults struct{}

func (w *coebResults) Type() models.WorkflowType { return models.WorkflowResultsPage }

func (w *coebResults) Scrape(ctx context.Context, deps workflow.Deps, in workflow.Input) (*workflow.Output, error) {
	body, err := deps.Fetcher.Get(ctx, in.URL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse country page: %w", err)
	}

	var urls []string
	doc.Find("div.project-teaser a.title").Each(func(_ int, sel *goquery.Selection) {
		if href, ok := sel.Attr("href"); ok {
			urls = append(urls, absoluteURL(coebBaseURL, href))
		}
	})

	return &workflow.Output{
		Next: followUps(in.JobID, coebSource, models.WorkflowProjectPage, urls),
	}, nil
}

type coebProject struct{}

func (w *coebProject) Type() models.WorkflowType { return models.WorkflowProjectPage }

func (w *coebProject) Scrape(ctx context.Context, deps workflow.Deps, in workflow.Input) (*workflow.Output, error) {
	body, err := deps.Fetcher.Get(ctx, in.URL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse project page: %w", err)
	}

	row := &models.StagedProject{
		Source: coebSource,
		Name:   cleanText(doc.Find("h1").First().Text()),
		URL:    in.URL,
		TaskID: in.TaskID,
	}

	doc.Find("table.project-summary tr").Each(func(_ int, sel *goquery.Selection) {
		label := cleanText(sel.Find("th").Text())
		value := cleanText(sel.Find("td").Text())
		switch label {
		case "Reference":
			row.Number = value
		case "Status":
			row.Status = value
		case "Country":
			row.Countries = value
		case "Sector of action":
			row.Sectors = value
		case "Approved":
			row.ApprovalDate = value
		case "Borrower":
			row.Affiliates = value
		case "Approved amount":
			row.TotalAmount = parseAmount(value)
			row.TotalAmountCurrency = "EUR"
		}
	})

	return &workflow.Output{Projects: []*models.StagedProject{row}}, nil
}
