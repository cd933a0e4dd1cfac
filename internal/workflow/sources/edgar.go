package sources

import (
	"context"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"github.com/fundtrace/fundtrace/internal/models"
	"github.com/fundtrace/fundtrace/internal/workflow"
)

// EDGAR institutional-holdings chain. The seed step emits one filing-history
// task per tracked manager. The history step routes per entry at runtime:
// filings from 2013 onward carry XML information tables and go straight to
// filing-scrape; older filings live in paginated archive index files, each of
// which becomes a filing-archive task. The scrape step is terminal and parses
// one filing folder into staged holdings rows.

const (
	edgarSource = "edgar"

	edgarSubmissionsURL = "https://data.sec.gov/submissions/CIK%010d.json"
	edgarArchiveURL     = "https://data.sec.gov/submissions/%s"
	edgarFolderURL      = "https://www.sec.gov/Archives/edgar/data/%d/%s/"

	// Information tables are XML only from this filing year onward.
	edgarXMLCutoff = "2013-01-01"
)

// trackedManagers is the fixed set of filer CIKs this pipeline follows.
var trackedManagers = []uint64{
	102909,  // Vanguard Group
	93751,   // State Street
	1364742, // BlackRock
	1067983, // Berkshire Hathaway
	1167483, // Tiger Global
}

func registerEdgar(r *workflow.Registry) {
	r.AddSource(edgarSource, models.JobTypeRegulatoryFilings, models.WorkflowSeedURLs)
	r.Register(edgarSource, models.WorkflowSeedURLs, func() workflow.Scraper { return &edgarSeed{} })
	r.Register(edgarSource, models.WorkflowFilingHistory, func() workflow.Scraper { return &edgarHistory{} })
	r.Register(edgarSource, models.WorkflowFilingArchive, func() workflow.Scraper { return &edgarArchive{} })
	r.Register(edgarSource, models.WorkflowFilingScrape, func() workflow.Scraper { return &edgarScrape{} })
}

type edgarSeed struct{}

func (w *edgarSeed) Type() models.WorkflowType { return models.WorkflowSeedURLs }

func (w *edgarSeed) Scrape(ctx context.Context, deps workflow.Deps, in workflow.Input) (*workflow.Output, error) {
	urls := make([]string, 0, len(trackedManagers))
	for _, cik := range trackedManagers {
		urls = append(urls, fmt.Sprintf(edgarSubmissionsURL, cik))
	}
	return &workflow.Output{
		Next: followUps(in.JobID, edgarSource, models.WorkflowFilingHistory, urls),
	}, nil
}

// filingIndex is the columnar filing list shared by the recent block of a
// submission history and the archived index files.
type filingIndex struct {
	AccessionNumber []string `json:"accessionNumber"`
	Form            []string `json:"form"`
	FilingDate      []string `json:"filingDate"`
}

type submissionHistory struct {
	CIK     string `json:"cik"`
	Name    string `json:"name"`
	Filings struct {
		Recent filingIndex `json:"recent"`
		Files  []struct {
			Name string `json:"name"`
		} `json:"files"`
	} `json:"filings"`
}

// isHoldingsForm matches the quarterly holdings report forms.
func isHoldingsForm(form string) bool {
	return strings.HasPrefix(form, "13F-HR")
}

// scrapeFolderTasks converts a filing index into filing-scrape tasks for the
// XML-era holdings filings.
func scrapeFolderTasks(jobID uint64, cik uint64, idx filingIndex) []*models.Task {
	var urls []string
	for i, accession := range idx.AccessionNumber {
		if i >= len(idx.Form) || i >= len(idx.FilingDate) {
			break
		}
		if !isHoldingsForm(idx.Form[i]) || idx.FilingDate[i] < edgarXMLCutoff {
			continue
		}
		folder := strings.ReplaceAll(accession, "-", "")
		urls = append(urls, fmt.Sprintf(edgarFolderURL, cik, folder))
	}
	return followUps(jobID, edgarSource, models.WorkflowFilingScrape, urls)
}

// cikFromURL pulls the numeric CIK out of a submissions or archive URL.
func cikFromURL(url string) (uint64, error) {
	start := strings.Index(url, "CIK")
	if start >= 0 {
		digits := strings.TrimLeft(strings.TrimSuffix(url[start+3:], ".json"), "0")
		if i := strings.IndexAny(digits, "-."); i >= 0 {
			digits = digits[:i]
		}
		return strconv.ParseUint(digits, 10, 64)
	}
	if i := strings.Index(url, "/data/"); i >= 0 {
		rest := url[i+len("/data/"):]
		if j := strings.Index(rest, "/"); j >= 0 {
			return strconv.ParseUint(rest[:j], 10, 64)
		}
	}
	return 0, fmt.Errorf("no CIK in url %s", url)
}

type edgarHistory struct{}

// Type reports dynamic because follow-up types are chosen per entry.
func (w *edgarHistory) Type() models.WorkflowType { return models.WorkflowDynamic }

func (w *edgarHistory) Scrape(ctx context.Context, deps workflow.Deps, in workflow.Input) (*workflow.Output, error) {
	var history submissionHistory
	if err := deps.Fetcher.GetJSON(ctx, in.URL, &history); err != nil {
		return nil, err
	}

	cik, err := cikFromURL(in.URL)
	if err != nil {
		return nil, err
	}

	next := scrapeFolderTasks(in.JobID, cik, history.Filings.Recent)

	var archives []string
	for _, file := range history.Filings.Files {
		archives = append(archives, fmt.Sprintf(edgarArchiveURL, file.Name))
	}
	next = append(next, followUps(in.JobID, edgarSource, models.WorkflowFilingArchive, archives)...)

	return &workflow.Output{Next: next}, nil
}

type edgarArchive struct{}

func (w *edgarArchive) Type() models.WorkflowType { return models.WorkflowFilingArchive }

func (w *edgarArchive) Scrape(ctx context.Context, deps workflow.Deps, in workflow.Input) (*workflow.Output, error) {
	var idx filingIndex
	if err := deps.Fetcher.GetJSON(ctx, in.URL, &idx); err != nil {
		return nil, err
	}

	cik, err := cikFromURL(in.URL)
	if err != nil {
		return nil, err
	}

	return &workflow.Output{Next: scrapeFolderTasks(in.JobID, cik, idx)}, nil
}

// folderIndex is the directory listing of one filing folder.
type folderIndex struct {
	Directory struct {
		Item []struct {
			Name string `json:"name"`
		} `json:"item"`
	} `json:"directory"`
}

// primaryDoc is the cover-page metadata of a holdings filing.
type primaryDoc struct {
	XMLName    xml.Name `xml:"edgarSubmission"`
	HeaderData struct {
		SubmissionType string `xml:"submissionType"`
		FilerInfo      struct {
			PeriodOfReport string `xml:"periodOfReport"`
		} `xml:"filerInfo"`
	} `xml:"headerData"`
	FormData struct {
		CoverPage struct {
			FilingManager struct {
				Name string `xml:"name"`
			} `xml:"filingManager"`
		} `xml:"coverPage"`
		SignatureBlock struct {
			SignatureDate string `xml:"signatureDate"`
		} `xml:"signatureBlock"`
	} `xml:"formData"`
}

// informationTable is the holdings table of a filing.
type informationTable struct {
	XMLName xml.Name `xml:"informationTable"`
	Rows    []struct {
		NameOfIssuer string `xml:"nameOfIssuer"`
		TitleOfClass string `xml:"titleOfClass"`
		CUSIP        string `xml:"cusip"`
		Value        string `xml:"value"`
		SharesOrPrn  struct {
			Amount string `xml:"sshPrnamt"`
			Type   string `xml:"sshPrnamtType"`
		} `xml:"shrsOrPrnAmt"`
		Discretion   string `xml:"investmentDiscretion"`
		OtherManager string `xml:"otherManager"`
		Voting       struct {
			Sole   string `xml:"Sole"`
			Shared string `xml:"Shared"`
			None   string `xml:"None"`
		} `xml:"votingAuthority"`
	} `xml:"infoTable"`
}

type edgarScrape struct{}

func (w *edgarScrape) Type() models.WorkflowType { return models.WorkflowFilingScrape }

// Scrape parses one filing folder: the cover page for metadata, then the
// information table into staged holdings rows. Terminal.
func (w *edgarScrape) Scrape(ctx context.Context, deps workflow.Deps, in workflow.Input) (*workflow.Output, error) {
	var index folderIndex
	if err := deps.Fetcher.GetJSON(ctx, in.URL+"index.json", &index); err != nil {
		return nil, err
	}

	var primaryName, tableName string
	for _, item := range index.Directory.Item {
		name := strings.ToLower(item.Name)
		switch {
		case name == "primary_doc.xml":
			primaryName = item.Name
		case strings.HasSuffix(name, ".xml") && strings.Contains(name, "table"):
			tableName = item.Name
		}
	}
	if primaryName == "" || tableName == "" {
		return nil, fmt.Errorf("filing folder %s has no parseable documents", in.URL)
	}

	primaryBody, err := deps.Fetcher.Get(ctx, in.URL+primaryName)
	if err != nil {
		return nil, err
	}
	var doc primaryDoc
	if err := xml.Unmarshal(primaryBody, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse cover page: %w", err)
	}

	tableBody, err := deps.Fetcher.Get(ctx, in.URL+tableName)
	if err != nil {
		return nil, err
	}
	var table informationTable
	if err := xml.Unmarshal(tableBody, &table); err != nil {
		return nil, fmt.Errorf("failed to parse information table: %w", err)
	}

	cik, err := cikFromURL(in.URL)
	if err != nil {
		return nil, err
	}
	accession := accessionFromFolder(in.URL)

	out := &workflow.Output{}
	for _, row := range table.Rows {
		out.Investments = append(out.Investments, &models.StagedInvestment{
			CIK:            strconv.FormatUint(cik, 10),
			CompanyName:    cleanText(doc.FormData.CoverPage.FilingManager.Name),
			Accession:      accession,
			FormType:       doc.HeaderData.SubmissionType,
			FiledAt:        doc.FormData.SignatureBlock.SignatureDate,
			PeriodOfReport: doc.HeaderData.FilerInfo.PeriodOfReport,
			Issuer:         cleanText(row.NameOfIssuer),
			TitleOfClass:   cleanText(row.TitleOfClass),
			CUSIP:          strings.ToUpper(strings.TrimSpace(row.CUSIP)),
			Value:          parseNumeric(row.Value),
			Shares:         parseNumeric(row.SharesOrPrn.Amount),
			SharesType:     row.SharesOrPrn.Type,
			Discretion:     row.Discretion,
			Manager:        cleanText(row.OtherManager),
			VotingSole:     parseNumeric(row.Voting.Sole),
			VotingShared:   parseNumeric(row.Voting.Shared),
			VotingNone:     parseNumeric(row.Voting.None),
			URL:            in.URL,
			TaskID:         in.TaskID,
		})
	}

	return out, nil
}

// accessionFromFolder recovers the dashed accession number from the folder
// path segment.
func accessionFromFolder(url string) string {
	trimmed := strings.TrimRight(url, "/")
	seg := trimmed[strings.LastIndex(trimmed, "/")+1:]
	if len(seg) != 18 {
		return seg
	}
	return seg[:10] + "-" + seg[10:12] + "-" + seg[12:]
}

// parseNumeric reads a numeric cell that may carry thousands separators or be
// empty. Empty and unparseable cells stay nil.
func parseNumeric(s string) *float64 {
	cleaned := strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if cleaned == "" {
		return nil
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil
	}
	return &v
}
