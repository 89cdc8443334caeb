// Package history archives terminal scan runs in SQLite and answers
// queries over past runs, including run-to-run diffs.
package history

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/sentinelscan/sentinelscan/internal/logging"
	"github.com/sentinelscan/sentinelscan/internal/model"
)

//go:embed schema.sql
var schemaFS embed.FS

var (
	ErrRunNotFound    = errors.New("run not found")
	ErrRunNotTerminal = errors.New("run has not reached a terminal state")
)

// Archive is the durable store of finished runs. Only terminal records are
// accepted; in-flight state stays with the controller that owns it.
type Archive struct {
	db     *sql.DB
	logger logging.Logger
}

// New opens (creating if needed) the archive database under dir.
func New(dir string, logger logging.Logger) (*Archive, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, "history.db"))
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Archive{
		db:     db,
		logger: logger.With(logging.Field{Key: "component", Value: "history"}),
	}, nil
}

func applySchema(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("set pragma %q: %w", pragma, err)
		}
	}

	schemaSQL, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("read schema.sql: %w", err)
	}
	if _, err := db.Exec(string(schemaSQL)); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (a *Archive) Close() error {
	return a.db.Close()
}

// ArchiveRun stores one terminal run record. Re-archiving the same run ID
// replaces the previous record.
func (a *Archive) ArchiveRun(ctx context.Context, run *model.ScanState) error {
	if run == nil {
		return fmt.Errorf("nil run record")
	}
	if !run.Phase.Terminal() {
		return fmt.Errorf("archive run %s in phase %s: %w", run.ID, run.Phase, ErrRunNotTerminal)
	}

	record, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal run record: %w", err)
	}

	var endedAt any
	if run.EndedAt != nil {
		endedAt = run.EndedAt.UTC().Format(time.RFC3339Nano)
	}

	_, err = a.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs
		(id, target, status, progress, urls_discovered, finding_count, started_at, ended_at, record)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Target, string(run.Phase), run.Progress, run.URLsDiscovered,
		len(run.Vulnerabilities), run.StartedAt.UTC().Format(time.RFC3339Nano), endedAt,
		string(record))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	a.logger.Info("run archived",
		logging.Field{Key: "run_id", Value: run.ID},
		logging.Field{Key: "status", Value: string(run.Phase)})
	return nil
}

// RunSummary is one row of the archive listing.
type RunSummary struct {
	ID           string      `json:"id"`
	Target       string      `json:"target"`
	Status       model.Phase `json:"status"`
	FindingCount int         `json:"finding_count"`
	StartedAt    time.Time   `json:"started_at"`
	EndedAt      *time.Time  `json:"ended_at,omitempty"`
}

// ListRuns returns archived runs newest first. target filters when non-empty;
// limit <= 0 means no limit.
func (a *Archive) ListRuns(ctx context.Context, target string, limit int) ([]RunSummary, error) {
	query := `SELECT id, target, status, finding_count, started_at, ended_at FROM runs`
	args := []any{}
	if target != "" {
		query += ` WHERE target = ?`
		args = append(args, target)
	}
	query += ` ORDER BY started_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var s RunSummary
		var status, startedAt string
		var endedAt sql.NullString
		if err := rows.Scan(&s.ID, &s.Target, &status, &s.FindingCount, &startedAt, &endedAt); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		s.Status = model.Phase(status)
		if s.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		if endedAt.Valid {
			t, err := time.Parse(time.RFC3339Nano, endedAt.String)
			if err != nil {
				return nil, fmt.Errorf("parse ended_at: %w", err)
			}
			s.EndedAt = &t
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetRun loads one archived run record in full.
func (a *Archive) GetRun(ctx context.Context, runID string) (*model.ScanState, error) {
	var record string
	err := a.db.QueryRowContext(ctx, `SELECT record FROM runs WHERE id = ?`, runID).Scan(&record)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", runID, ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load run: %w", err)
	}

	var run model.ScanState
	if err := json.Unmarshal([]byte(record), &run); err != nil {
		return nil, fmt.Errorf("decode run record: %w", err)
	}
	return &run, nil
}

// RunDiff is the change set between two archived runs of (usually) the same
// target.
type RunDiff struct {
	BaseID string `json:"base_id"`
	HeadID string `json:"head_id"`

	// NewFindings are present in head but not base; ResolvedFindings the
	// reverse. Identity is the finding's tool plus tool-native ID.
	NewFindings      []model.Vulnerability `json:"new_findings"`
	ResolvedFindings []model.Vulnerability `json:"resolved_findings"`

	// RecordDiff is a human-readable unified diff of the two JSON records.
	RecordDiff string `json:"record_diff,omitempty"`
}

// DiffRuns compares two archived runs.
func (a *Archive) DiffRuns(ctx context.Context, baseID, headID string) (*RunDiff, error) {
	base, err := a.GetRun(ctx, baseID)
	if err != nil {
		return nil, err
	}
	head, err := a.GetRun(ctx, headID)
	if err != nil {
		return nil, err
	}

	diff := &RunDiff{BaseID: baseID, HeadID: headID}

	baseKeys := findingKeys(base.Vulnerabilities)
	headKeys := findingKeys(head.Vulnerabilities)
	for _, v := range head.Vulnerabilities {
		if _, ok := baseKeys[findingKey(v)]; !ok {
			diff.NewFindings = append(diff.NewFindings, v)
		}
	}
	for _, v := range base.Vulnerabilities {
		if _, ok := headKeys[findingKey(v)]; !ok {
			diff.ResolvedFindings = append(diff.ResolvedFindings, v)
		}
	}

	diff.RecordDiff = recordDiff(base, head)
	return diff, nil
}

func findingKey(v model.Vulnerability) string {
	return v.Tool + "/" + v.ID
}

func findingKeys(vulns []model.Vulnerability) map[string]struct{} {
	keys := make(map[string]struct{}, len(vulns))
	for _, v := range vulns {
		keys[findingKey(v)] = struct{}{}
	}
	return keys
}

// recordDiff renders a character-level diff of the two indented JSON records.
func recordDiff(base, head *model.ScanState) string {
	baseJSON, err := json.MarshalIndent(base, "", "  ")
	if err != nil {
		return ""
	}
	headJSON, err := json.MarshalIndent(head, "", "  ")
	if err != nil {
		return ""
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(string(baseJSON), string(headJSON), false)
	diffs = dmp.DiffCleanupSemantic(diffs)
	return dmp.DiffPrettyText(diffs)
}
