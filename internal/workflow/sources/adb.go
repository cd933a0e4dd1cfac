package sources

import (
	"bytes"
	"context"
	"fmt"

	"github.com/PuerkitoBio/goquery"

	"github.com/fundtrace/fundtrace/internal/models"
	"github.com/fundtrace/fundtrace/internal/workflow"
)

// Asian Development Bank: a three-step HTML chain. The seed step enumerates
// the paginated project listing, each results page yields project links, and
// the project page is scraped into one staged row.

const (
	adbSource   = "adb"
	adbBaseURL  = "https://www.adb.org"
	adbListPath = adbBaseURL + "/projects?page=%d"
)

func registerADB(r *workflow.Registry) {
	r.AddSource(adbSource, models.JobTypeDevelopmentProjects, models.WorkflowSeedURLs)
	r.Register(adbSource, models.WorkflowSeedURLs, func() workflow.Scraper { return &adbSeed{} })
	r.Register(adbSource, models.WorkflowResultsPage, func() workflow.Scraper { return &adbResults{} })
	r.Register(adbSource, models.WorkflowProjectPage, func() workflow.Scraper { return &adbProject{} })
}

type adbSeed struct{}

func (w *adbSeed) Type() models.WorkflowType { return models.WorkflowSeedURLs }

// Scrape reads the page count off the first listing page and emits one
// results-page task per page.
func (w *adbSeed) Scrape(ctx context.Context, deps workflow.Deps, in workflow.Input) (*workflow.Output, error) {
	body, err := deps.Fetcher.Get(ctx, fmt.Sprintf(adbListPath, 0))
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse listing page: %w", err)
	}

	pages := 1
	doc.Find("ul.pagination li a[data-page]").Each(func(_ int, sel *goquery.Selection) {
		if p, ok := sel.Attr("data-page"); ok {
			var n int
			if _, err := fmt.Sscanf(p, "%d", &n); err == nil && n+1 > pages {
				pages = n + 1
			}
		}
	})

	urls := make([]string, 0, pages)
	for page := 0; page < pages; page++ {
		urls = append(urls, fmt.Sprintf(adbListPath, page))
	}

	return &workflow.Output{
		Next: followUps(in.JobID, adbSource, models.WorkflowResultsPage, urls),
	}, nil
}

type adbResults struct{}

func (w *adbResults) Type() models.WorkflowType { return models.WorkflowResultsPage }

// Scrape extracts the project detail links from one listing page.
func (w *adbResults) Scrape(ctx context.Context, deps workflow.Deps, in workflow.Input) (*workflow.Output, error) {
	body, err := deps.Fetcher.Get(ctx, in.URL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse results page: %w", err)
	}

	var urls []string
	doc.Find("div.item-title a[href^='/projects/']").Each(func(_ int, sel *goquery.Selection) {
		if href, ok := sel.Attr("href"); ok {
			urls = append(urls, absoluteURL(adbBaseURL, href))
		}
	})

	return &workflow.Output{
		Next: followUps(in.JobID, adbSource, models.WorkflowProjectPage, urls),
	}, nil
}

type adbProject struct{}

func (w *adbProject) Type() models.WorkflowType { return models.WorkflowProjectPage }

// Scrape reads one project detail page into a staged row. Terminal.
func (w *adbProject) Scrape(ctx context.Context, deps workflow.Deps, in workflow.Input) (*workflow.Output, error) {
	body, err := deps.Fetcher.Get(ctx, in.URL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse project page: %w", err)
	}

	row := &models.StagedProject{
		Source: adbSource,
		Name:   cleanText(doc.Find("h1.page-title").Text()),
		URL:    in.URL,
		TaskID: in.TaskID,
	}

	// Detail tables carry label/value pairs.
	doc.Find("table.project-details tr").Each(func(_ int, sel *goquery.Selection) {
		label := cleanText(sel.Find("th").Text())
		value := cleanText(sel.Find("td").Text())
		switch label {
		case "Project Number":
			row.Number = value
		case "Status":
			row.Status = value
		case "Approval Date":
			row.ApprovalDate = value
		case "Signing Date":
			row.SigningDate = value
		case "Closing Date":
			row.PlannedCloseDate = value
		case "Last Update":
			row.LastUpdateDate = value
		case "Sector":
			row.Sectors = value
		case "Country / Economy":
			row.Countries = value
		case "Modality":
			row.FinanceTypes = value
		case "Amount":
			row.TotalAmount = parseAmount(value)
			row.TotalAmountCurrency = "USD"
		}
	})

	return &workflow.Output{Projects: []*models.StagedProject{row}}, nil
}
