package model

import "time"

// ScanEventKind is the closed set of notifications a single pipeline run
// emits. The presentation layer switches over this set exhaustively instead of
// subscribing to arbitrary string-keyed events.
type ScanEventKind string

const (
	EventStarted         ScanEventKind = "started"
	EventProgress        ScanEventKind = "progress"
	EventVulnerabilities ScanEventKind = "vulnerabilities"
	EventWarning         ScanEventKind = "warning"
	EventError           ScanEventKind = "error"
	EventCompleted       ScanEventKind = "completed"
)

// ScanEvent is one notification from a pipeline run. Fields beyond RunID and
// Kind are populated per kind: Progress carries phase/progress/message,
// Vulnerabilities carries findings, Warning/Error carry Err, Completed carries
// Success and the accumulated errors.
type ScanEvent struct {
	RunID string        `json:"run_id"`
	Kind  ScanEventKind `json:"kind"`
	Time  time.Time     `json:"time"`

	Phase    Phase  `json:"phase,omitempty"`
	Progress int    `json:"progress,omitempty"`
	Message  string `json:"message,omitempty"`

	Vulnerabilities []Vulnerability `json:"vulnerabilities,omitempty"`

	Err *ScanError `json:"error,omitempty"`

	Success bool        `json:"success,omitempty"`
	Errors  []ScanError `json:"errors,omitempty"`
}

// BulkEventKind is the closed set of batch-granularity notifications.
type BulkEventKind string

const (
	EventBulkStarted     BulkEventKind = "bulk_started"
	EventBulkProgress    BulkEventKind = "bulk_progress"
	EventTargetStarted   BulkEventKind = "target_started"
	EventTargetProgress  BulkEventKind = "target_progress"
	EventTargetCompleted BulkEventKind = "target_completed"
	EventTargetFailed    BulkEventKind = "target_failed"
	EventBulkPaused      BulkEventKind = "bulk_paused"
	EventBulkResumed     BulkEventKind = "bulk_resumed"
	EventBulkCancelled   BulkEventKind = "bulk_cancelled"
	EventBulkCompleted   BulkEventKind = "bulk_completed"
)

// BulkEvent is one notification from the batch scheduler.
type BulkEvent struct {
	BulkID string        `json:"bulk_id"`
	Kind   BulkEventKind `json:"kind"`
	Time   time.Time     `json:"time"`

	// Target-scoped fields.
	Index  int    `json:"index,omitempty"`
	Target string `json:"target,omitempty"`

	// Progress is the item progress for target events and the aggregate
	// completed/total percentage for bulk_progress.
	Progress int    `json:"progress,omitempty"`
	Error    string `json:"error,omitempty"`

	// Running severity tallies over the aggregate vulnerability set.
	CriticalCount int `json:"critical_count,omitempty"`
	HighCount     int `json:"high_count,omitempty"`

	// Summary is set on bulk_completed.
	Summary *BulkSummary `json:"summary,omitempty"`
}
