package model

import "time"

// Concurrency bounds for batch execution. Requested values outside the range
// are silently clamped, never rejected.
const (
	MinBulkConcurrency = 1
	MaxBulkConcurrency = 10
)

// ClampConcurrency corrects a requested concurrency into [1, 10].
func ClampConcurrency(n int) int {
	if n < MinBulkConcurrency {
		return MinBulkConcurrency
	}
	if n > MaxBulkConcurrency {
		return MaxBulkConcurrency
	}
	return n
}

// BulkScanConfig is the input to one batch. RawTargets may be freeform text
// (newline/comma delimited) or an explicit list; both are parsed with the same
// validator.
type BulkScanConfig struct {
	// RawTargets is delimited freeform target text. Used when Targets is empty.
	RawTargets string `json:"raw_targets,omitempty" yaml:"raw_targets"`

	// Targets is an explicit target list.
	Targets []string `json:"targets,omitempty" yaml:"targets"`

	// Concurrency is the requested bound on simultaneously running items.
	// 1 means strictly sequential execution.
	Concurrency int `json:"concurrency" yaml:"concurrency"`

	// ScanOptions are the per-target scan options. The target field is
	// substituted per queue item; everything else is copied as-is.
	ScanOptions ScanConfig `json:"scan_options" yaml:"scan_options"`
}

// QueueItemStatus is the lifecycle of one batch entry. An item transitions
// pending -> running -> {completed, failed} exactly once; items never started
// because of a batch cancellation go pending -> cancelled.
type QueueItemStatus string

const (
	ItemPending   QueueItemStatus = "pending"
	ItemRunning   QueueItemStatus = "running"
	ItemCompleted QueueItemStatus = "completed"
	ItemFailed    QueueItemStatus = "failed"
	ItemCancelled QueueItemStatus = "cancelled"
)

// Terminal reports whether the status is final.
func (s QueueItemStatus) Terminal() bool {
	return s == ItemCompleted || s == ItemFailed || s == ItemCancelled
}

// ScanQueueItem is the batch's per-target bookkeeping record wrapping one run.
// It is created when the batch starts, mutated only by the worker processing
// it, and never deleted, only marked terminal.
type ScanQueueItem struct {
	Index  int             `json:"index"`
	Target string          `json:"target"`
	Status QueueItemStatus `json:"status"`

	// Config is the ScanConfig derived for this target.
	Config ScanConfig `json:"config"`

	// RunID is the pipeline run processing this item, once started.
	RunID string `json:"run_id,omitempty"`

	Vulnerabilities []Vulnerability `json:"vulnerabilities,omitempty"`
	Error           string          `json:"error,omitempty"`
	Progress        int             `json:"progress"`

	StartedAt *time.Time `json:"started_at,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// Clone returns a deep copy safe to hand to observers.
func (q *ScanQueueItem) Clone() ScanQueueItem {
	out := *q
	if q.StartedAt != nil {
		t := *q.StartedAt
		out.StartedAt = &t
	}
	if q.EndedAt != nil {
		t := *q.EndedAt
		out.EndedAt = &t
	}
	out.Vulnerabilities = append([]Vulnerability(nil), q.Vulnerabilities...)
	return out
}

// BulkSummary is the terminal report of one batch.
type BulkSummary struct {
	BulkID string `json:"bulk_id"`

	Total     int `json:"total"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`

	// Vulnerabilities is the union, in discovery order, of all per-item sets.
	Vulnerabilities []Vulnerability `json:"vulnerabilities,omitempty"`

	SeverityCounts map[Severity]int `json:"severity_counts,omitempty"`

	Duration time.Duration `json:"duration"`

	Items []ScanQueueItem `json:"items"`
}
