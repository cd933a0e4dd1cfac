package sources

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/fundtrace/fundtrace/internal/models"
	"github.com/fundtrace/fundtrace/internal/workflow"
)

// Multilateral Investment Guarantee Agency: the project search is rendered
// client-side, so both steps go through the headless browser.

const (
	migaSource  = "miga"
	migaBaseURL = "https://www.miga.org"
	migaListURL = migaBaseURL + "/projects"
)

func registerMIGA(r *workflow.Registry) {
	r.AddSource(migaSource, models.JobTypeDevelopmentProjects, models.WorkflowResultsPage)
	r.Register(migaSource, models.WorkflowResultsPage, func() workflow.Scraper { return &migaResults{} })
	r.Register(migaSource, models.WorkflowProjectPage, func() workflow.Scraper { return &migaProject{} })
}

type migaResults struct{}

func (w *migaResults) Type() models.WorkflowType { return models.WorkflowResultsPage }

func (w *migaResults) Scrape(ctx context.Context, deps workflow.Deps, in workflow.Input) (*workflow.Output, error) {
	url := in.URL
	if url == "" {
		url = migaListURL
	}

	html, err := deps.Fetcher.RenderedHTML(ctx, url)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse rendered listing: %w", err)
	}

	var projectURLs []string
	doc.Find("div.project-card a[href*='/projects/']").Each(func(_ int, sel *goquery.Selection) {
		if href, ok := sel.Attr("href"); ok {
			projectURLs = append(projectURLs, absoluteURL(migaBaseURL, href))
		}
	})

	next := followUps(in.JobID, migaSource, models.WorkflowProjectPage, projectURLs)
	if href, ok := doc.Find("li.pager-next a").Attr("href"); ok {
		next = append(next, models.NewTask(in.JobID, migaSource, models.WorkflowResultsPage, absoluteURL(migaBaseURL, href)))
	}

	return &workflow.Output{Next: next}, nil
}

type migaProject struct{}

func (w *migaProject) Type() models.WorkflowType { return models.WorkflowProjectPage }

func (w *migaProject) Scrape(ctx context.Context, deps workflow.Deps, in workflow.Input) (*workflow.Output, error) {
	html, err := deps.Fetcher.RenderedHTML(ctx, in.URL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse rendered project page: %w", err)
	}

	row := &models.StagedProject{
		Source: migaSource,
		Name:   cleanText(doc.Find("h1.project-title").Text()),
		URL:    in.URL,
		TaskID: in.TaskID,
	}

	doc.Find("div.project-meta div.field").Each(func(_ int, sel *goquery.Selection) {
		label := cleanText(sel.Find("div.label").Text())
		value := cleanText(sel.Find("div.value").Text())
		switch label {
		case "Project ID":
			row.Number = value
		case "Status":
			row.Status = value
		case "Host Country":
			row.Countries = value
		case "Sector":
			row.Sectors = value
		case "Fiscal Year":
			row.ApprovalDate = value
		case "Gross Exposure":
			row.TotalAmount = parseAmount(value)
			row.TotalAmountCurrency = "USD"
		case "Guarantee Holder":
			row.Affiliates = value
		}
	})

	return &workflow.Output{Projects: []*models.StagedProject{row}}, nil
}
