package runstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"debatelens/internal/debate"
)

// Status captures the outcome of a stage execution.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	// StatusPartial marks a run that finished with recorded item failures.
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
)

// Run is one ledger row.
type Run struct {
	ID           string
	Stage        string
	Source       string
	WorkDir      string
	Status       Status
	ErrorMessage string
	StartedAt    time.Time
	FinishedAt   time.Time
	FailureCount int
}

// Duration returns the elapsed time, or zero while still running.
func (r Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() || r.StartedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// timeLayout is fixed-width so text ordering matches chronological ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const runColumns = `r.id, r.stage, r.source, r.work_dir, r.status, r.error_message, r.started_at, r.finished_at,
    (SELECT COUNT(1) FROM run_failures f WHERE f.run_id = r.id)`

// Begin records the start of a stage execution and returns its run.
func (s *Store) Begin(ctx context.Context, stage, source, workDir string) (*Run, error) {
	run := &Run{
		ID:        uuid.NewString(),
		Stage:     stage,
		Source:    source,
		WorkDir:   workDir,
		Status:    StatusRunning,
		StartedAt: time.Now().UTC(),
	}
	err := s.exec(ctx,
		`INSERT INTO runs (id, stage, source, work_dir, status, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.Stage, nullableString(run.Source), run.WorkDir, run.Status, run.StartedAt.Format(timeLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// Finish stores the final status of a run.
func (s *Store) Finish(ctx context.Context, id string, status Status, errMsg string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("run id is empty")
	}
	finished := time.Now().UTC().Format(timeLayout)
	return s.exec(ctx,
		`UPDATE runs SET status = ?, error_message = ?, finished_at = ? WHERE id = ?`,
		status, nullableString(errMsg), finished, id,
	)
}

// RecordFailures appends item failures to a run.
func (s *Store) RecordFailures(ctx context.Context, id string, failures []debate.Failure) error {
	if len(failures) == 0 {
		return nil
	}
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()
		for _, f := range failures {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO run_failures (run_id, stage, item, message) VALUES (?, ?, ?, ?)`,
				id, f.Stage, f.Item, f.Error,
			); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}

// Get returns a run by id, or nil when it does not exist.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs r WHERE r.id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// List returns the most recent runs first. A limit <= 0 returns all runs.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs r ORDER BY r.started_at DESC, r.rowid DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// Failures returns the recorded failures for a run in insertion order.
func (s *Store) Failures(ctx context.Context, id string) ([]debate.Failure, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT stage, item, message FROM run_failures WHERE run_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("list failures: %w", err)
	}
	defer rows.Close()

	var failures []debate.Failure
	for rows.Next() {
		var f debate.Failure
		if err := rows.Scan(&f.Stage, &f.Item, &f.Error); err != nil {
			return nil, fmt.Errorf("scan failure: %w", err)
		}
		failures = append(failures, f)
	}
	return failures, rows.Err()
}

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		run         Run
		source      sql.NullString
		status      string
		errMsg      sql.NullString
		startedRaw  string
		finishedRaw sql.NullString
	)
	if err := scanner.Scan(
		&run.ID,
		&run.Stage,
		&source,
		&run.WorkDir,
		&status,
		&errMsg,
		&startedRaw,
		&finishedRaw,
		&run.FailureCount,
	); err != nil {
		return nil, err
	}
	run.Source = source.String
	run.Status = Status(status)
	run.ErrorMessage = errMsg.String
	if started, err := time.Parse(timeLayout, startedRaw); err == nil {
		run.StartedAt = started
	}
	if finishedRaw.Valid {
		if finished, err := time.Parse(timeLayout, finishedRaw.String); err == nil {
			run.FinishedAt = finished
		}
	}
	return &run, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
