// Package bulk turns a list of targets into a work queue of pipeline runs,
// executes it with bounded concurrency, aggregates per-target results, and
// exposes pause/resume/cancel at the batch level.
package bulk

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sentinelscan/sentinelscan/internal/logging"
	"github.com/sentinelscan/sentinelscan/internal/model"
	"github.com/sentinelscan/sentinelscan/internal/orchestrator"
	"github.com/sentinelscan/sentinelscan/internal/targets"
)

const defaultEventBuffer = 256

// Config holds the scheduler's own knobs.
type Config struct {
	// Orchestrator is forwarded to every per-item pipeline run.
	Orchestrator orchestrator.Config

	// EventBuffer sizes the bulk event channel; sends never block.
	EventBuffer int
}

// Scheduler executes one batch. Construct one per batch; a second
// StartBulkScan on the same instance is rejected with ErrAlreadyRunning.
//
// One item's failure never halts the batch: it is recorded on that item and
// the scheduler proceeds to the next pending item.
type Scheduler struct {
	cfg     Config
	factory orchestrator.ToolsetFactory
	logger  logging.Logger

	mu          sync.Mutex
	started     bool
	bulkID      string
	concurrency int
	items       []*model.ScanQueueItem
	aggregate   []model.Vulnerability
	startedAt   time.Time
	cancel      context.CancelFunc
	runs        map[int]*orchestrator.Orchestrator
	summary     *model.BulkSummary

	gate         *gate
	events       chan model.BulkEvent
	eventsClosed bool
	done         chan struct{}
}

// NewScheduler creates a batch scheduler. The factory supplies each queue
// item its own isolated toolset; sharing one browser/proxy across concurrent
// items is not supported.
func NewScheduler(factory orchestrator.ToolsetFactory, logger logging.Logger, cfg Config) *Scheduler {
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = defaultEventBuffer
	}
	return &Scheduler{
		cfg:     cfg,
		factory: factory,
		logger:  logger,
		runs:    make(map[int]*orchestrator.Orchestrator),
		gate:    newGate(),
		events:  make(chan model.BulkEvent, cfg.EventBuffer),
		done:    make(chan struct{}),
	}
}

// StartBulkScan validates the target list, builds the queue and begins
// processing in the background. It fails fast with ErrNoValidTargets when the
// input parses to zero usable targets.
func (s *Scheduler) StartBulkScan(ctx context.Context, cfg model.BulkScanConfig) (string, error) {
	var accepted, rejected []string
	if len(cfg.Targets) > 0 {
		accepted, rejected = targets.ParseList(cfg.Targets)
	} else {
		accepted, rejected = targets.Parse(cfg.RawTargets)
	}
	for _, r := range rejected {
		s.logger.Warn("dropping unparseable target", logging.Field{Key: "entry", Value: r})
	}
	if len(accepted) == 0 {
		return "", model.ErrNoValidTargets
	}

	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return "", model.ErrAlreadyRunning
	}
	s.started = true
	s.bulkID = uuid.New().String()
	s.concurrency = model.ClampConcurrency(cfg.Concurrency)
	s.startedAt = time.Now().UTC()

	for i, target := range accepted {
		itemCfg := cfg.ScanOptions
		itemCfg.Target = target
		s.items = append(s.items, &model.ScanQueueItem{
			Index:  i,
			Target: target,
			Status: model.ItemPending,
			Config: itemCfg,
		})
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	bulkID := s.bulkID
	total := len(s.items)
	concurrency := s.concurrency
	s.mu.Unlock()

	s.logger.Info("bulk scan starting",
		logging.Field{Key: "bulk_id", Value: bulkID},
		logging.Field{Key: "targets", Value: total},
		logging.Field{Key: "concurrency", Value: concurrency})

	s.emit(model.BulkEvent{BulkID: bulkID, Kind: model.EventBulkStarted, Progress: 0})

	go s.run(runCtx)

	return bulkID, nil
}

// PauseBulkScan freezes admission of new queue items. In-flight items finish;
// no new items are dequeued until resume. Pausing twice is the same as once.
func (s *Scheduler) PauseBulkScan() {
	if s.gate.pause() {
		s.logger.Info("bulk scan paused", logging.Field{Key: "bulk_id", Value: s.id()})
		s.emit(model.BulkEvent{BulkID: s.id(), Kind: model.EventBulkPaused})
	}
}

// ResumeBulkScan reopens admission. Resume when not paused is a no-op.
func (s *Scheduler) ResumeBulkScan() {
	if s.gate.resume() {
		s.logger.Info("bulk scan resumed", logging.Field{Key: "bulk_id", Value: s.id()})
		s.emit(model.BulkEvent{BulkID: s.id(), Kind: model.EventBulkResumed})
	}
}

// CancelBulkScan cancels the batch: in-flight runs are cancelled, in-flight
// items settle per their run outcome, and still-pending items are marked
// cancelled without being started.
func (s *Scheduler) CancelBulkScan() {
	s.mu.Lock()
	cancel := s.cancel
	runs := make([]*orchestrator.Orchestrator, 0, len(s.runs))
	for _, o := range s.runs {
		runs = append(runs, o)
	}
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	for _, o := range runs {
		o.Cancel()
	}
	s.emit(model.BulkEvent{BulkID: s.id(), Kind: model.EventBulkCancelled})
}

// QueueStatus returns a copy of every queue item.
func (s *Scheduler) QueueStatus() []model.ScanQueueItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.ScanQueueItem, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, item.Clone())
	}
	return out
}

// AggregateVulnerabilities returns the union, in discovery order, of all
// per-item vulnerability sets collected so far.
func (s *Scheduler) AggregateVulnerabilities() []model.Vulnerability {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Vulnerability(nil), s.aggregate...)
}

// ExportResults serializes the batch outcome (or a mid-run snapshot) to JSON.
func (s *Scheduler) ExportResults() ([]byte, error) {
	summary := s.Summary()
	out, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export bulk results: %w", err)
	}
	return out, nil
}

// Summary builds the batch summary from current state. After Done it is the
// final terminal summary.
func (s *Scheduler) Summary() *model.BulkSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.summary != nil {
		return s.summary
	}
	return s.buildSummaryLocked()
}

// Events is the batch notification stream, closed after the terminal
// bulk_completed event.
func (s *Scheduler) Events() <-chan model.BulkEvent {
	return s.events
}

// Done is closed once the batch has reached its terminal summary.
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

// run processes the queue in fixed-size chunks of the effective concurrency.
// Item start order follows queue index order; completion order within a chunk
// is unconstrained.
func (s *Scheduler) run(ctx context.Context) {
	defer s.finalize()

	s.mu.Lock()
	items := s.items
	concurrency := s.concurrency
	s.mu.Unlock()

	for start := 0; start < len(items); start += concurrency {
		// The pause gate blocks here without busy polling; cancellation
		// unblocks it immediately.
		if err := s.gate.wait(ctx); err != nil {
			return
		}
		if ctx.Err() != nil {
			return
		}

		end := start + concurrency
		if end > len(items) {
			end = len(items)
		}
		chunk := items[start:end]

		if concurrency == 1 {
			s.runItem(ctx, chunk[0])
		} else {
			var wg sync.WaitGroup
			for _, item := range chunk {
				wg.Add(1)
				go func(item *model.ScanQueueItem) {
					defer wg.Done()
					s.runItem(ctx, item)
				}(item)
			}
			wg.Wait()
		}

		s.emitAggregateProgress()
	}
}

// runItem executes one queue item via one pipeline run. The item transitions
// pending -> running -> terminal exactly once.
func (s *Scheduler) runItem(ctx context.Context, item *model.ScanQueueItem) {
	now := time.Now().UTC()
	s.mu.Lock()
	item.Status = model.ItemRunning
	item.StartedAt = &now
	s.mu.Unlock()

	s.emit(model.BulkEvent{
		BulkID: s.id(),
		Kind:   model.EventTargetStarted,
		Index:  item.Index,
		Target: item.Target,
	})

	tools, err := s.factory.NewToolset(ctx)
	if err != nil {
		s.failItem(item, fmt.Errorf("build toolset: %w", err))
		return
	}

	orch := orchestrator.New(tools, s.logger.With(logging.Field{Key: "target", Value: item.Target}), s.cfg.Orchestrator)

	runID, err := orch.Start(ctx, item.Config)
	if err != nil {
		s.failItem(item, err)
		return
	}

	s.mu.Lock()
	item.RunID = runID
	s.runs[item.Index] = orch
	s.mu.Unlock()

	// Relay per-run progress up to the batch stream while the run executes.
	relayed := make(chan struct{})
	go func() {
		defer close(relayed)
		for ev := range orch.Events() {
			if ev.Kind != model.EventProgress {
				continue
			}
			s.mu.Lock()
			if ev.Progress > item.Progress {
				item.Progress = ev.Progress
			}
			progress := item.Progress
			s.mu.Unlock()
			s.emit(model.BulkEvent{
				BulkID:   s.id(),
				Kind:     model.EventTargetProgress,
				Index:    item.Index,
				Target:   item.Target,
				Progress: progress,
			})
		}
	}()

	<-orch.Done()
	<-relayed

	state := orch.State()
	ended := time.Now().UTC()

	s.mu.Lock()
	delete(s.runs, item.Index)
	item.EndedAt = &ended
	item.Progress = state.Progress
	item.Vulnerabilities = append([]model.Vulnerability(nil), state.Vulnerabilities...)
	s.aggregate = append(s.aggregate, state.Vulnerabilities...)

	kind := model.EventTargetCompleted
	switch state.Phase {
	case model.PhaseCompleted:
		item.Status = model.ItemCompleted
	case model.PhaseCancelled:
		item.Status = model.ItemCancelled
		item.Error = "cancelled"
		kind = model.EventTargetFailed
	default:
		item.Status = model.ItemFailed
		item.Error = firstFatal(state.Errors)
		kind = model.EventTargetFailed
	}
	errMsg := item.Error
	s.mu.Unlock()

	s.emit(model.BulkEvent{
		BulkID:   s.id(),
		Kind:     kind,
		Index:    item.Index,
		Target:   item.Target,
		Progress: 100,
		Error:    errMsg,
	})
}

func (s *Scheduler) failItem(item *model.ScanQueueItem, err error) {
	now := time.Now().UTC()
	s.mu.Lock()
	item.Status = model.ItemFailed
	item.Error = err.Error()
	item.EndedAt = &now
	s.mu.Unlock()

	s.logger.Error("queue item failed to start",
		logging.Field{Key: "bulk_id", Value: s.id()},
		logging.Field{Key: "target", Value: item.Target},
		logging.Field{Key: "error", Value: err.Error()})

	s.emit(model.BulkEvent{
		BulkID: s.id(),
		Kind:   model.EventTargetFailed,
		Index:  item.Index,
		Target: item.Target,
		Error:  err.Error(),
	})
}

// finalize marks never-started items cancelled, freezes the terminal summary
// and emits bulk_completed. The caller always receives a terminal event, even
// on failure or cancellation.
func (s *Scheduler) finalize() {
	now := time.Now().UTC()

	s.mu.Lock()
	for _, item := range s.items {
		if item.Status == model.ItemPending {
			item.Status = model.ItemCancelled
			item.EndedAt = &now
		}
	}
	s.summary = s.buildSummaryLocked()
	summary := s.summary
	bulkID := s.bulkID
	s.mu.Unlock()

	s.logger.Info("bulk scan finished",
		logging.Field{Key: "bulk_id", Value: bulkID},
		logging.Field{Key: "completed", Value: summary.Completed},
		logging.Field{Key: "failed", Value: summary.Failed},
		logging.Field{Key: "cancelled", Value: summary.Cancelled},
		logging.Field{Key: "vulnerabilities", Value: len(summary.Vulnerabilities)})

	s.emit(model.BulkEvent{
		BulkID:   bulkID,
		Kind:     model.EventBulkCompleted,
		Progress: 100,
		Summary:  summary,
	})

	s.mu.Lock()
	s.eventsClosed = true
	s.mu.Unlock()
	close(s.events)
	close(s.done)
}

// buildSummaryLocked snapshots the batch. Callers hold s.mu.
func (s *Scheduler) buildSummaryLocked() *model.BulkSummary {
	summary := &model.BulkSummary{
		BulkID:          s.bulkID,
		Total:           len(s.items),
		Vulnerabilities: append([]model.Vulnerability(nil), s.aggregate...),
		SeverityCounts:  model.CountBySeverity(s.aggregate),
		Duration:        time.Since(s.startedAt),
	}
	for _, item := range s.items {
		summary.Items = append(summary.Items, item.Clone())
		switch item.Status {
		case model.ItemCompleted:
			summary.Completed++
		case model.ItemFailed:
			summary.Failed++
		case model.ItemCancelled:
			summary.Cancelled++
		}
	}
	return summary
}

// emitAggregateProgress publishes the processed share of the queue and the
// running critical/high tallies over the aggregate vulnerability set.
func (s *Scheduler) emitAggregateProgress() {
	s.mu.Lock()
	terminal := 0
	for _, item := range s.items {
		if item.Status.Terminal() {
			terminal++
		}
	}
	total := len(s.items)
	counts := model.CountBySeverity(s.aggregate)
	bulkID := s.bulkID
	s.mu.Unlock()

	progress := 0
	if total > 0 {
		progress = terminal * 100 / total
	}

	s.emit(model.BulkEvent{
		BulkID:        bulkID,
		Kind:          model.EventBulkProgress,
		Progress:      progress,
		CriticalCount: counts[model.SeverityCritical],
		HighCount:     counts[model.SeverityHigh],
	})
}

func (s *Scheduler) id() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bulkID
}

func firstFatal(errs []model.ScanError) string {
	for _, e := range errs {
		if !e.Recoverable {
			return e.Message
		}
	}
	if len(errs) > 0 {
		return errs[len(errs)-1].Message
	}
	return "scan failed"
}

// emit delivers a bulk event without blocking; events beyond the buffer are
// dropped, and events after the terminal summary are discarded. Terminal
// results are always available through Summary.
func (s *Scheduler) emit(ev model.BulkEvent) {
	ev.Time = time.Now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.eventsClosed {
		return
	}
	select {
	case s.events <- ev:
	default:
	}
}
