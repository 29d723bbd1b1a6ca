// Package model contains domain models passed between layers.
package model

import (
	"time"

	"github.com/okian/racetier/internal/domain/integrity"
	"github.com/okian/racetier/internal/domain/rating"
)

// AuditJob is one corpus submitted for asynchronous validation.
type AuditJob struct {
	RunID          string              // assigned by the service
	IdempotencyKey string              // client supplied, may be empty
	Records        []rating.RaceRating // the corpus to validate
	SubmittedAt    time.Time
}

// RunStatus is the lifecycle state of an audit run.
type RunStatus string

// Run states. A run only moves forward: queued, running, then done or failed.
const (
	RunQueued  RunStatus = "queued"
	RunRunning RunStatus = "running"
	RunDone    RunStatus = "done"
	RunFailed  RunStatus = "failed"
)

// Terminal reports whether the run will not change again.
func (s RunStatus) Terminal() bool {
	return s == RunDone || s == RunFailed
}

// AuditRun is the state of an audit job as seen by clients.
type AuditRun struct {
	ID          string            `json:"run_id"`
	Status      RunStatus         `json:"status"`
	Records     int               `json:"records"`
	Passed      *bool             `json:"passed,omitempty"`
	Report      *integrity.Report `json:"report,omitempty"`
	Error       string            `json:"error,omitempty"`
	SubmittedAt time.Time         `json:"submitted_at"`
	StartedAt   *time.Time        `json:"started_at,omitempty"`
	FinishedAt  *time.Time        `json:"finished_at,omitempty"`
}

// NewAuditRun returns the queued run of job.
func NewAuditRun(job AuditJob) AuditRun {
	return AuditRun{
		ID:          job.RunID,
		Status:      RunQueued,
		Records:     len(job.Records),
		SubmittedAt: job.SubmittedAt,
	}
}

// Start marks the run as running.
func (r *AuditRun) Start(at time.Time) {
	r.Status = RunRunning
	r.StartedAt = &at
}

// Finish stores the report, or the error that prevented one, and marks the
// run terminal.
func (r *AuditRun) Finish(at time.Time, report integrity.Report, err error) {
	r.FinishedAt = &at
	if err != nil {
		r.Status = RunFailed
		r.Error = err.Error()
		return
	}
	passed := report.Passed()
	r.Status = RunDone
	r.Report = &report
	r.Passed = &passed
}

// Classified is the outcome of classifying a single record. Classification
// is nil when the record cannot be scored.
type Classified struct {
	Classification *rating.Classification `json:"classification,omitempty" yaml:"classification,omitempty"`
	Violations     []integrity.Violation  `json:"violations" yaml:"violations"`
}

// Submission acknowledges an asynchronous audit.
type Submission struct {
	RunID     string `json:"run_id"`
	Duplicate bool   `json:"duplicate"`
}
