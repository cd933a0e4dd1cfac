package models

import (
	"encoding/json"
	"errors"
	"time"
)

// ErrNoMessage is returned when a bus pull finds the subscription empty.
var ErrNoMessage = errors.New("no messages in queue")

// AuditTimeFormat is the wire format of AuditMessage.TimeCompleted.
const AuditTimeFormat = "2006_01_02_15_04_05"

// TaskMessage is the bus envelope for one scraping task.
type TaskMessage struct {
	ID           string       `json:"id"` // Task id
	JobID        uint64       `json:"job_id"`
	Source       string       `json:"source"`
	WorkflowType WorkflowType `json:"workflow_type"`
	URL          string       `json:"url"`
}

// TaskMessageFromTask builds the envelope for a task row.
func TaskMessageFromTask(t *Task) TaskMessage {
	return TaskMessage{
		ID:           t.ID,
		JobID:        t.JobID,
		Source:       t.Source,
		WorkflowType: t.WorkflowType,
		URL:          t.URL,
	}
}

// AuditMessage signals the transform stage that a job's collection finished.
type AuditMessage struct {
	JobID         uint64 `json:"job_id"`
	TimeCompleted string `json:"time_completed_utc"` // AuditTimeFormat
}

// NewAuditMessage stamps the completion time in the wire format.
func NewAuditMessage(jobID uint64, completed time.Time) AuditMessage {
	return AuditMessage{
		JobID:         jobID,
		TimeCompleted: completed.UTC().Format(AuditTimeFormat),
	}
}

// DecodeTaskMessage parses a task envelope.
func DecodeTaskMessage(data []byte) (*TaskMessage, error) {
	var msg TaskMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// DecodeAuditMessage parses an audit envelope.
func DecodeAuditMessage(data []byte) (*AuditMessage, error) {
	var msg AuditMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
