package models

import (
	"fmt"
	"time"
)

// WorkflowType identifies one concrete workflow plus its routing role.
// The set is closed; registry lookups outside it fail loudly.
type WorkflowType string

const (
	WorkflowSeedURLs           WorkflowType = "seed-urls"
	WorkflowResultsPage        WorkflowType = "results-page"
	WorkflowResultsPageMulti   WorkflowType = "results-page-multi"
	WorkflowProjectPage        WorkflowType = "project-page"
	WorkflowProjectPagePartial WorkflowType = "project-page-partial"
	WorkflowDownload           WorkflowType = "download"
	WorkflowFilingHistory      WorkflowType = "filing-history"
	WorkflowFilingArchive      WorkflowType = "filing-archive"
	WorkflowFilingScrape       WorkflowType = "filing-scrape"

	// WorkflowDynamic marks workflows that choose the follow-up type per task
	// at runtime (the filing-history case).
	WorkflowDynamic WorkflowType = "dynamic"

	// WorkflowNone is the next-workflow sentinel for terminal workflows.
	WorkflowNone WorkflowType = "none"
)

// TaskStatus represents the lifecycle state of a task.
type TaskStatus string

const (
	TaskNotStarted TaskStatus = "NotStarted"
	TaskInProgress TaskStatus = "InProgress"
	TaskCompleted  TaskStatus = "Completed"
	TaskError      TaskStatus = "Error"
)

// Task is one unit of scraping work within a job.
// (job_id, source, workflow_type, url) is unique; the ID is the composite key,
// which is what makes bulk insertion conflict-ignore by construction.
type Task struct {
	ID               string       `json:"id"`
	JobID            uint64       `json:"job_id" badgerhold:"index"`
	Source           string       `json:"source"`
	WorkflowType     WorkflowType `json:"workflow_type"`
	URL              string       `json:"url"` // Empty for starter tasks
	Status           TaskStatus   `json:"status"`
	ProcessingStart  time.Time    `json:"processing_start_utc"`
	ProcessingEnd    time.Time    `json:"processing_end_utc"`
	ScrapingStart    time.Time    `json:"scraping_start_utc"`
	ScrapingEnd      time.Time    `json:"scraping_end_utc"`
	LastFailedAt     time.Time    `json:"last_failed_at_utc"`
	LastErrorMessage string       `json:"last_error_message"`
	RetryCount       int          `json:"retry_count"`
	CreatedAt        time.Time    `json:"created_at"`
}

// TaskID builds the deterministic composite task key.
func TaskID(jobID uint64, source string, workflowType WorkflowType, url string) string {
	return fmt.Sprintf("%d|%s|%s|%s", jobID, source, workflowType, url)
}

// NewTask constructs a not-started task with its composite ID set.
func NewTask(jobID uint64, source string, workflowType WorkflowType, url string) *Task {
	return &Task{
		ID:           TaskID(jobID, source, workflowType, url),
		JobID:        jobID,
		Source:       source,
		WorkflowType: workflowType,
		URL:          url,
		Status:       TaskNotStarted,
		CreatedAt:    time.Now().UTC(),
	}
}

// TaskUpdate carries a partial task update written back by a workflow run.
// Nil time pointers and empty strings are left untouched.
type TaskUpdate struct {
	ID               string
	Status           TaskStatus
	ProcessingStart  *time.Time
	ProcessingEnd    *time.Time
	ScrapingStart    *time.Time
	ScrapingEnd      *time.Time
	LastFailedAt     *time.Time
	LastErrorMessage string
	RetryCount       *int
}
