package sources

import (
	"bytes"
	"context"
	"fmt"

	"github.com/PuerkitoBio/goquery"

	"github.com/fundtrace/fundtrace/internal/models"
	"github.com/fundtrace/fundtrace/internal/workflow"
)

// Nordic Investment Bank: the seed step enumerates the yearly loan archives,
// each archive page lists agreed loans, and the loan page is scraped into one
// staged row.

const (
	nibSource  = "nib"
	nibBaseURL = "https://www.nib.int"
	nibListURL = nibBaseURL + "/loans/agreed-loans"
)

func registerNIB(r *workflow.Registry) {
	r.AddSource(nibSource, models.JobTypeDevelopmentProjects, models.WorkflowSeedURLs)
	r.Register(nibSource, models.WorkflowSeedURLs, func() workflow.Scraper { return &nibSeed{} })
	r.Register(nibSource, models.WorkflowResultsPage, func() workflow.Scraper { return &nibResults{} })
	r.Register(nibSource, models.WorkflowProjectPage, func() workflow.Scraper { return &nibProject{} })
}

type nibSeed struct{}

func (w *nibSeed) Type() models.WorkflowType { return models.WorkflowSeedURLs }

func (w *nibSeed) Scrape(ctx context.Context, deps workflow.Deps, in workflow.Input) (*workflow.Output, error) {
	body, err := deps.Fetcher.Get(ctx, nibListURL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse archive index: %w", err)
	}

	var urls []string
	doc.Find("nav.year-filter a").Each(func(_ int, sel *goquery.Selection) {
		if href, ok := sel.Attr("href"); ok {
			urls = append(urls, absoluteURL(nibBaseURL, href))
		}
	})

	return &workflow.Output{
		Next: followUps(in.JobID, nibSource, models.WorkflowResultsPage, urls),
	}, nil
}

type nibResults struct{}

func (w *nibResults) Type() models.WorkflowType { return models.WorkflowResultsPage }

func (w *nibResults) Scrape(ctx context.Context, deps workflow.Deps, in workflow.Input) (*workflow.Output, error) {
	body, err := deps.Fetcher.Get(ctx, in.URL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse results page: %w", err)
	}

	var urls []string
	doc.Find("table.loans-list td.borrower a").Each(func(_ int, sel *goquery.Selection) {
		if href, ok := sel.Attr("href"); ok {
			urls = append(urls, absoluteURL(nibBaseURL, href))
		}
	})

	return &workflow.Output{
		Next: followUps(in.JobID, nibSource, models.WorkflowProjectPage, urls),
	}, nil
}

type nibProject struct{}

func (w *nibProject) Type() models.WorkflowType { return models.WorkflowProjectPage }

func (w *nibProject) Scrape(ctx context.Context, deps workflow.Deps, in workflow.Input) (*workflow.Output, error) {
	body, err := deps.Fetcher.Get(ctx, in.URL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse loan page: %w", err)
	}

	row := &models.StagedProject{
		Source: nibSource,
		Name:   cleanText(doc.Find("h1").First().Text()),
		URL:    in.URL,
		TaskID: in.TaskID,
	}

	doc.Find("table.loan-facts tr").Each(func(_ int, sel *goquery.Selection) {
		label := cleanText(sel.Find("th").Text())
		value := cleanText(sel.Find("td").Text())
		switch label {
		case "Reference":
			row.Number = value
		case "Country":
			row.Countries = value
		case "Sector":
			row.Sectors = value
		case "Signed":
			row.SigningDate = value
		case "Maturity":
			row.PlannedCloseDate = value
		case "Borrower":
			row.Affiliates = value
		case "Amount":
			row.TotalAmount = parseAmount(value)
			row.TotalAmountCurrency = "EUR"
		}
	})

	// Agreed loans have no explicit status column.
	row.Status = "Signed"

	return &workflow.Output{Projects: []*models.StagedProject{row}}, nil
}
