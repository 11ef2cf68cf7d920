// Package metrics keeps in-memory statistics about pipeline runs for the
// serve command. Nothing here holds document content.
package metrics

import "time"

// RunOutcome is the result class of one run.
type RunOutcome string

const (
	OutcomeSuccess RunOutcome = "success"
	OutcomeFailure RunOutcome = "failure"
)

// RunRecord is the retained view of a single run.
type RunRecord struct {
	RequestID     string        `json:"request_id"`
	StartedAt     time.Time     `json:"started_at"`
	Duration      time.Duration `json:"duration_ns"`
	Outcome       RunOutcome    `json:"outcome"`
	ErrorCategory string        `json:"error_category,omitempty"`
	Pages         int           `json:"pages"`
	Redactions    int           `json:"redactions"`
	Degraded      bool          `json:"degraded"`
}

// CategoryMetrics aggregates failures of one category.
type CategoryMetrics struct {
	Count int64 `json:"count"`
}

// Snapshot is a point-in-time copy of the store's aggregates.
type Snapshot struct {
	TotalRuns       int64                       `json:"total_runs"`
	TotalSuccess    int64                       `json:"total_success"`
	TotalFailures   int64                       `json:"total_failures"`
	SuccessRate     float64                     `json:"success_rate"`
	AvgDuration     time.Duration               `json:"avg_duration_ns"`
	MaxDuration     time.Duration               `json:"max_duration_ns"`
	TotalPages      int64                       `json:"total_pages"`
	TotalRedactions int64                       `json:"total_redactions"`
	DegradedRuns    int64                       `json:"degraded_runs"`
	Failures        map[string]*CategoryMetrics `json:"failures"`
	Uptime          string                      `json:"uptime"`
	Recent          []RunRecord                 `json:"recent"`
}
