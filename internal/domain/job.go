package domain

import (
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// JobStatus is the status persisted on a job run row.
// Values include JobStatusRunning, JobStatusSuccess, JobStatusPartialFailure and JobStatusFailed.
type JobStatus string

const (
	JobStatusRunning        JobStatus = "running"
	JobStatusSuccess        JobStatus = "success"
	JobStatusPartialFailure JobStatus = "partial_failure"
	JobStatusFailed         JobStatus = "failed"
)

// RunState is a state of the load orchestrator state machine.
type RunState string

const (
	StateInitialized        RunState = "INITIALIZED"
	StateExtracting         RunState = "EXTRACTING"
	StateCleaning           RunState = "CLEANING"
	StateLoading            RunState = "LOADING"
	StateSucceeded          RunState = "SUCCEEDED"
	StatePartiallySucceeded RunState = "PARTIALLY_SUCCEEDED"
	StateFailed             RunState = "FAILED"
)

// Terminal reports whether no further transition is possible.
func (s RunState) Terminal() bool {
	return s == StateSucceeded || s == StatePartiallySucceeded || s == StateFailed
}

// JobStatus maps a state onto the persisted job status.
func (s RunState) JobStatus() JobStatus {
	switch s {
	case StateSucceeded:
		return JobStatusSuccess
	case StatePartiallySucceeded:
		return JobStatusPartialFailure
	case StateFailed:
		return JobStatusFailed
	default:
		return JobStatusRunning
	}
}

// JobRun is a row of etl_log, one per pipeline invocation.
type JobRun struct {
	ID               string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	JobName          string         `gorm:"type:varchar(128);not null" json:"job_name"`
	JobType          string         `gorm:"type:varchar(32);not null;index" json:"job_type"`
	StartTime        time.Time      `gorm:"not null;index" json:"start_time"`
	EndTime          *time.Time     `json:"end_time,omitempty"`
	Status           JobStatus      `gorm:"type:varchar(16);not null;default:running;index" json:"status"`
	RecordsProcessed int64          `gorm:"default:0" json:"records_processed"`
	RecordsInserted  int64          `gorm:"default:0" json:"records_inserted"`
	RecordsUpdated   int64          `gorm:"default:0" json:"records_updated"`
	RecordsFailed    int64          `gorm:"default:0" json:"records_failed"`
	ErrorMessage     string         `gorm:"type:text" json:"error_message,omitempty"`
	Details          datatypes.JSON `json:"details,omitempty"`
}

// TableName returns the database table name for JobRun.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (JobRun) TableName() string {
	return "etl_log"
}

// TableCounts are load outcomes for one fact table.
type TableCounts struct {
	Inserted int64 `json:"inserted"`
	Skipped  int64 `json:"skipped"`
	Failed   int64 `json:"failed"`
}

// JobResult is the end-of-run summary returned to callers.
type JobResult struct {
	RunID     string                    `json:"run_id"`
	State     RunState                  `json:"state"`
	Status    JobStatus                 `json:"status"`
	Source    DataSource                `json:"source"`
	FellBack  bool                      `json:"fell_back_to_synthetic,omitempty"`
	Processed int64                     `json:"records_processed"`
	Inserted  int64                     `json:"records_inserted"`
	Updated   int64                     `json:"records_updated"`
	Skipped   int64                     `json:"records_skipped"`
	Failed    int64                     `json:"records_failed"`
	Tables    map[FactKind]*TableCounts `json:"tables"`
	Rejects   map[string]int64          `json:"rejects_by_reason,omitempty"`
	States    []RunState                `json:"states"`
	StartTime time.Time                 `json:"start_time"`
	EndTime   time.Time                 `json:"end_time"`
	Error     string                    `json:"error,omitempty"`
}

// NewJobResult returns an empty result with per-table counters allocated.
func NewJobResult(runID string, source DataSource) *JobResult {
	tables := make(map[FactKind]*TableCounts, len(FactKinds))
	for _, k := range FactKinds {
		tables[k] = &TableCounts{}
	}
	return &JobResult{
		RunID:   runID,
		State:   StateInitialized,
		Status:  JobStatusRunning,
		Source:  source,
		Tables:  tables,
		Rejects: make(map[string]int64),
		States:  []RunState{StateInitialized},
	}
}

// Succeeded reports whether the run ended in SUCCEEDED or PARTIALLY_SUCCEEDED.
func (r *JobResult) Succeeded() bool {
	return r.State == StateSucceeded || r.State == StatePartiallySucceeded
}

// Summary renders the counts by outcome on one line.
func (r *JobResult) Summary() string {
	return fmt.Sprintf("run %s %s: processed=%d inserted=%d skipped=%d failed=%d duration=%s",
		r.RunID, r.State, r.Processed, r.Inserted, r.Skipped, r.Failed,
		r.EndTime.Sub(r.StartTime).Round(time.Millisecond))
}
