package model

import "errors"

// Sentinel errors rejected synchronously at the call that triggered them.
// They never enter the queue or the error list of a run.
var (
	// ErrAlreadyRunning is returned when a start is requested while a run or
	// batch is still active on the same instance.
	ErrAlreadyRunning = errors.New("scan already running")

	// ErrNoValidTargets is returned when batch input parses to zero usable
	// targets.
	ErrNoValidTargets = errors.New("no valid targets in input")

	// ErrCapabilityUnavailable is returned when an injected tool capability is
	// absent at the point it is needed.
	ErrCapabilityUnavailable = errors.New("tool capability unavailable")
)
