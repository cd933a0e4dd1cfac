package models

import "time"

// Stage represents the state of one processing stage of a job.
// Stages advance monotonically: NotStarted -> InProgress -> Completed or Error.
type Stage string

const (
	StageNotStarted Stage = "NotStarted"
	StageInProgress Stage = "InProgress"
	StageCompleted  Stage = "Completed"
	StageError      Stage = "Error"
)

// CanAdvanceTo reports whether moving from s to next keeps the stage monotonic.
func (s Stage) CanAdvanceTo(next Stage) bool {
	order := map[Stage]int{
		StageNotStarted: 0,
		StageInProgress: 1,
		StageCompleted:  2,
		StageError:      2,
	}
	return order[next] >= order[s]
}

// JobType distinguishes the two pipeline families.
type JobType string

const (
	JobTypeDevelopmentProjects JobType = "development-projects"
	JobTypeRegulatoryFilings   JobType = "regulatory-filings"
)

// Job is one invocation of the pipeline, created by an external trigger.
// It spans both the data-collection stage and the transform stage.
type Job struct {
	ID             uint64    `json:"id" badgerhold:"index"`
	InvocationID   string    `json:"invocation_id"` // Externally supplied; unique, used as store key
	JobType        JobType   `json:"job_type"`
	DataLoadStage  Stage     `json:"data_load_stage"`
	DataLoadStart  time.Time `json:"data_load_start_utc"`
	DataLoadEnd    time.Time `json:"data_load_end_utc"`
	DataCleanStage Stage     `json:"data_clean_stage"`
	DataCleanStart time.Time `json:"data_clean_start_utc"`
	DataCleanEnd   time.Time `json:"data_clean_end_utc"`
	CreatedAt      time.Time `json:"created_at"`
}

// JobUpdate carries a partial job update. Zero-valued fields are left untouched.
type JobUpdate struct {
	ID             uint64
	DataLoadStage  Stage
	DataLoadStart  *time.Time
	DataLoadEnd    *time.Time
	DataCleanStage Stage
	DataCleanStart *time.Time
	DataCleanEnd   *time.Time
}
