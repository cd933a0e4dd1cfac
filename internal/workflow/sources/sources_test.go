package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fundtrace/fundtrace/internal/models"
	"github.com/fundtrace/fundtrace/internal/workflow"
)

// cannedFetcher serves fixed bodies by URL.
type cannedFetcher struct {
	responses map[string][]byte
}

func (f *cannedFetcher) Get(ctx context.Context, url string) ([]byte, error) {
	body, ok := f.responses[url]
	if !ok {
		return nil, fmt.Errorf("no canned response for %s", url)
	}
	return body, nil
}

func (f *cannedFetcher) GetJSON(ctx context.Context, url string, v any) error {
	body, err := f.Get(ctx, url)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, v)
}

func (f *cannedFetcher) Download(ctx context.Context, url string) ([]byte, error) {
	return f.Get(ctx, url)
}

func (f *cannedFetcher) RenderedHTML(ctx context.Context, url string) (string, error) {
	body, err := f.Get(ctx, url)
	return string(body), err
}

func depsWith(f *cannedFetcher) workflow.Deps {
	return workflow.Deps{Fetcher: f}
}

func TestRegisterAllStartersResolve(t *testing.T) {
	reg := workflow.NewRegistry()
	RegisterAll(reg)

	sources := reg.Sources()
	assert.GreaterOrEqual(t, len(sources), 18)

	for _, source := range sources {
		starter, err := reg.Starter(source)
		require.NoError(t, err, source)

		scraper, err := reg.Resolve(source, starter)
		require.NoError(t, err, source)
		require.NotNil(t, scraper)
	}

	jobType, err := reg.JobType("edgar")
	require.NoError(t, err)
	assert.Equal(t, models.JobTypeRegulatoryFilings, jobType)
}

func TestFilingHistoryRoutesPerEntry(t *testing.T) {
	history := `{
		"cik": "102909",
		"name": "VANGUARD GROUP INC",
		"filings": {
			"recent": {
				"accessionNumber": ["0000102909-23-000123", "0000102909-22-000456", "0000102909-10-000789"],
				"form": ["13F-HR", "13F-HR", "13F-HR"],
				"filingDate": ["2023-02-14", "2022-02-11", "2010-02-16"]
			},
			"files": [
				{"name": "CIK0000102909-submissions-001.json"},
				{"name": "CIK0000102909-submissions-002.json"},
				{"name": "CIK0000102909-submissions-003.json"}
			]
		}
	}`
	url := fmt.Sprintf(edgarSubmissionsURL, uint64(102909))
	fetcher := &cannedFetcher{responses: map[string][]byte{url: []byte(history)}}

	scraper := &edgarHistory{}
	out, err := scraper.Scrape(context.Background(), depsWith(fetcher), workflow.Input{JobID: 11, URL: url})
	require.NoError(t, err)

	// Two XML-era filings plus three archive files; the 2010 filing predates
	// XML information tables and is dropped from the direct route.
	require.Len(t, out.Next, 5)

	counts := map[models.WorkflowType]int{}
	for _, task := range out.Next {
		counts[task.WorkflowType]++
		assert.Equal(t, uint64(11), task.JobID)
		assert.Equal(t, edgarSource, task.Source)
	}
	assert.Equal(t, 2, counts[models.WorkflowFilingScrape])
	assert.Equal(t, 3, counts[models.WorkflowFilingArchive])
}

func TestDFCDownloadStagesRecords(t *testing.T) {
	csvBody := "Project Number,Project Name,Project Status,Country,NAICS Sector,Board Approval Date,Committed Amount,Project Profile URL\n" +
		"9000001,Solar Expansion,Active,Kenya,Energy,2021-06-30,\"25,000,000\",https://www.dfc.gov/projects/9000001\n" +
		"9000002,Port Upgrade,Committed,Vietnam,Transport,2022-03-15,,https://www.dfc.gov/projects/9000002\n"

	fetcher := &cannedFetcher{responses: map[string][]byte{
		dfcDataURL: []byte(csvBody),
	}}

	w := &dfcDownload{}
	out, err := w.Scrape(context.Background(), depsWith(fetcher), workflow.Input{JobID: 1, TaskID: "t1"})
	require.NoError(t, err)
	require.Len(t, out.Projects, 2)
	assert.Empty(t, out.Next)

	first := out.Projects[0]
	assert.Equal(t, dfcSource, first.Source)
	assert.Equal(t, "9000001", first.Number)
	assert.Equal(t, "Solar Expansion", first.Name)
	assert.Equal(t, "Kenya", first.Countries)
	assert.Equal(t, "USD", first.TotalAmountCurrency)
	require.NotNil(t, first.TotalAmount)
	assert.Equal(t, 25000000.0, *first.TotalAmount)

	// Missing amount stays null rather than zero.
	assert.Nil(t, out.Projects[1].TotalAmount)
}

func TestFilingScrapeParsesHoldings(t *testing.T) {
	folder := "https://www.sec.gov/Archives/edgar/data/102909/000010290923000123/"
	index := `{"directory":{"item":[{"name":"primary_doc.xml"},{"name":"infotable.xml"}]}}`
	primary := `<edgarSubmission>
		<headerData>
			<submissionType>13F-HR</submissionType>
			<filerInfo><periodOfReport>12-31-2022</periodOfReport></filerInfo>
		</headerData>
		<formData>
			<coverPage><filingManager><name>VANGUARD GROUP INC</name></filingManager></coverPage>
			<signatureBlock><signatureDate>02-14-2023</signatureDate></signatureBlock>
		</formData>
	</edgarSubmission>`
	table := `<informationTable>
		<infoTable>
			<nameOfIssuer>APPLE INC</nameOfIssuer>
			<titleOfClass>COM</titleOfClass>
			<cusip>037833100</cusip>
			<value>1,234,567</value>
			<shrsOrPrnAmt><sshPrnamt>9,876</sshPrnamt><sshPrnamtType>SH</sshPrnamtType></shrsOrPrnAmt>
			<investmentDiscretion>SOLE</investmentDiscretion>
			<votingAuthority><Sole>9876</Sole><Shared>0</Shared><None>0</None></votingAuthority>
		</infoTable>
		<infoTable>
			<nameOfIssuer>ACME CORP</nameOfIssuer>
			<titleOfClass>COM</titleOfClass>
			<cusip>00081t108</cusip>
			<value>500</value>
			<shrsOrPrnAmt><sshPrnamt></sshPrnamt><sshPrnamtType>SH</sshPrnamtType></shrsOrPrnAmt>
			<investmentDiscretion>SHARED</investmentDiscretion>
			<votingAuthority><Sole></Sole><Shared>12</Shared><None>0</None></votingAuthority>
		</infoTable>
	</informationTable>`

	fetcher := &cannedFetcher{responses: map[string][]byte{
		folder + "index.json":      []byte(index),
		folder + "primary_doc.xml": []byte(primary),
		folder + "infotable.xml":   []byte(table),
	}}

	scraper := &edgarScrape{}
	out, err := scraper.Scrape(context.Background(), depsWith(fetcher), workflow.Input{JobID: 11, TaskID: "t9", URL: folder})
	require.NoError(t, err)
	require.Len(t, out.Investments, 2)

	first := out.Investments[0]
	assert.Equal(t, "102909", first.CIK)
	assert.Equal(t, "VANGUARD GROUP INC", first.CompanyName)
	assert.Equal(t, "0000102909-23-000123", first.Accession)
	assert.Equal(t, "13F-HR", first.FormType)
	assert.Equal(t, "12-31-2022", first.PeriodOfReport)
	assert.Equal(t, "037833100", first.CUSIP)
	require.NotNil(t, first.Value)
	assert.Equal(t, 1234567.0, *first.Value)
	require.NotNil(t, first.Shares)
	assert.Equal(t, 9876.0, *first.Shares)

	// Dirty cells: empty shares and voting stay nil, CUSIP is upcased.
	second := out.Investments[1]
	assert.Equal(t, "00081T108", second.CUSIP)
	assert.Nil(t, second.Shares)
	assert.Nil(t, second.VotingSole)
}

func TestKFWDownloadStagesRecords(t *testing.T) {
	amount := 12500000.0
	records := []kfwRecord{
		{ProjectNumber: "20123", Title: " Wasserversorgung  Kigali ", Status: "laufend", Country: "Ruanda", Sector: "Wasser", Commitment: &amount, Currency: "EUR", CommitmentAt: "2019-06-12", DetailURL: "https://example.org/kfw/20123"},
		{ProjectNumber: "20456", Title: "Solarprogramm", Status: "abgeschlossen", Country: "Indien", Sector: "Energie", Currency: "EUR", DetailURL: "https://example.org/kfw/20456"},
	}
	body, err := json.Marshal(records)
	require.NoError(t, err)

	fetcher := &cannedFetcher{responses: map[string][]byte{kfwDataURL: body}}
	scraper := &kfwDownload{}

	out, err := scraper.Scrape(context.Background(), depsWith(fetcher), workflow.Input{JobID: 2, TaskID: "t1"})
	require.NoError(t, err)
	require.Len(t, out.Projects, 2)
	assert.Empty(t, out.Next)

	first := out.Projects[0]
	assert.Equal(t, "kfw", first.Source)
	assert.Equal(t, "Wasserversorgung Kigali", first.Name)
	assert.Equal(t, "Ruanda", first.Countries)
	require.NotNil(t, first.TotalAmount)
	assert.Equal(t, amount, *first.TotalAmount)
	assert.Equal(t, "EUR", first.TotalAmountCurrency)

	assert.Nil(t, out.Projects[1].TotalAmount)
}

func TestADBResultsPageExtractsLinks(t *testing.T) {
	html := `<html><body>
		<div class="item-title"><a href="/projects/53300-001/main">Rural Roads</a></div>
		<div class="item-title"><a href="/projects/50102-002/main">Water Supply</a></div>
		<div class="item-title"><a href="/projects/53300-001/main">Rural Roads (again)</a></div>
	</body></html>`

	url := "https://www.adb.org/projects?page=3"
	fetcher := &cannedFetcher{responses: map[string][]byte{url: []byte(html)}}

	scraper := &adbResults{}
	out, err := scraper.Scrape(context.Background(), depsWith(fetcher), workflow.Input{JobID: 4, URL: url})
	require.NoError(t, err)

	// The duplicate link collapses within the batch.
	require.Len(t, out.Next, 2)
	assert.Equal(t, "https://www.adb.org/projects/53300-001/main", out.Next[0].URL)
	assert.Equal(t, models.WorkflowProjectPage, out.Next[0].WorkflowType)
}

func TestAccessionFromFolder(t *testing.T) {
	assert.Equal(t, "0000102909-23-000123",
		accessionFromFolder("https://www.sec.gov/Archives/edgar/data/102909/000010290923000123/"))
}
