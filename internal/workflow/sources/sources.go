// Package sources holds the concrete scraping workflows, one file per data
// source. Each source declares its starter workflow and registers a factory
// per workflow type; the chains fan out through the shared engine.
package sources

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/fundtrace/fundtrace/internal/models"
	"github.com/fundtrace/fundtrace/internal/workflow"
)

// RegisterAll declares every source and binds its workflows.
func RegisterAll(r *workflow.Registry) {
	registerADB(r)
	registerIFC(r)
	registerKFW(r)
	registerWorldBank(r)
	registerAFDB(r)
	registerIDB(r)
	registerEIB(r)
	registerEBRD(r)
	registerAIIB(r)
	registerMIGA(r)
	registerUNDP(r)
	registerNIB(r)
	registerFMO(r)
	registerProparco(r)
	registerDFC(r)
	registerISDB(r)
	registerCOEB(r)
	registerEdgar(r)
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// cleanText collapses runs of whitespace and trims the result.
func cleanText(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// parseAmount extracts a numeric amount from a display string such as
// "USD 12,500,000" or "12.5". Returns nil when no number is present.
func parseAmount(s string) *float64 {
	cleaned := strings.NewReplacer(",", "", "$", "", "€", "").Replace(strings.TrimSpace(s))
	fields := strings.Fields(cleaned)
	for _, field := range fields {
		v, err := strconv.ParseFloat(field, 64)
		if err == nil {
			return &v
		}
	}
	return nil
}

// floatPtr returns a pointer to v.
func floatPtr(v float64) *float64 { return &v }

// absoluteURL resolves href against a base when href is site-relative.
func absoluteURL(base, href string) string {
	if href == "" || strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(href, "/")
}

// followUps builds follow-up tasks of one workflow type for a URL list,
// dropping duplicates within the batch.
func followUps(jobID uint64, source string, workflowType models.WorkflowType, urls []string) []*models.Task {
	seen := make(map[string]bool, len(urls))
	tasks := make([]*models.Task, 0, len(urls))
	for _, u := range urls {
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		tasks = append(tasks, models.NewTask(jobID, source, workflowType, u))
	}
	return tasks
}
