package domain

import (
	"errors"
	"time"
)

type DocumentStatus string

const (
	DocumentIndexed DocumentStatus = "indexed"
	DocumentFailed  DocumentStatus = "failed"
	DocumentSkipped DocumentStatus = "skipped"
)

// DocumentResult is the per-document outcome of an ingestion batch.
type DocumentResult struct {
	Source  string         `json:"source"`
	Status  DocumentStatus `json:"status"`
	Records int            `json:"records"`
	Error   string         `json:"error,omitempty"`

	Err error `json:"-"`
}

// IngestionReport aggregates the document results of one stored object.
type IngestionReport struct {
	Location ObjectLocation   `json:"location"`
	Results  []DocumentResult `json:"results"`
}

func (r IngestionReport) Records() int {
	total := 0
	for _, res := range r.Results {
		total += res.Records
	}
	return total
}

func (r IngestionReport) Failed() int {
	failed := 0
	for _, res := range r.Results {
		if res.Status == DocumentFailed {
			failed++
		}
	}
	return failed
}

func (r IngestionReport) Indexed() int {
	indexed := 0
	for _, res := range r.Results {
		if res.Status == DocumentIndexed {
			indexed++
		}
	}
	return indexed
}

// Err joins the errors of every failed document, nil when none failed.
func (r IngestionReport) Err() error {
	var errs []error
	for _, res := range r.Results {
		if res.Status != DocumentFailed {
			continue
		}
		if res.Err != nil {
			errs = append(errs, res.Err)
			continue
		}
		errs = append(errs, errors.New(res.Source+": "+res.Error))
	}
	return errors.Join(errs...)
}

type RunStatus string

const (
	RunQueued    RunStatus = "queued"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunPartial   RunStatus = "partial"
	RunFailed    RunStatus = "failed"
)

// RunStatusFor derives the terminal status of a run from its report.
func RunStatusFor(report IngestionReport) RunStatus {
	failed := report.Failed()
	switch {
	case failed == 0:
		return RunCompleted
	case report.Indexed() > 0:
		return RunPartial
	default:
		return RunFailed
	}
}

// IngestionRequest is the queue message that starts an ingestion run.
type IngestionRequest struct {
	RunID  string `json:"run_id"`
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

func (r IngestionRequest) Location() ObjectLocation {
	return ObjectLocation{Bucket: r.Bucket, Key: r.Key}
}

type IngestionRun struct {
	ID        string           `json:"id"`
	Bucket    string           `json:"bucket"`
	Key       string           `json:"key"`
	Status    RunStatus        `json:"status"`
	Error     string           `json:"error,omitempty"`
	Records   int              `json:"records"`
	Documents []DocumentResult `json:"documents"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}
