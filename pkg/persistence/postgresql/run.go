package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/dukex/operand/pkg/models"
	"github.com/dukex/operand/pkg/persistence"
)

// runData is the JSONB blob portion of a run row. Status, times and
// description live in structured columns because the poller and the API
// filter on them.
type runData struct {
	Steps       map[string]*models.StepExecutionState `json:"steps"`
	Variables   map[string]any                        `json:"variables,omitempty"`
	InputValues map[string]any                        `json:"input_values,omitempty"`
	UserLogs    []models.UserLogEntry                 `json:"user_logs,omitempty"`
}

// RunRepository handles run-related database operations. Merging writes
// (SaveStep, SavePartial) hold a row lock for the read-merge-write, so
// concurrent writers serialize per run instead of clobbering each other.
type RunRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewRunRepository creates a new run repository.
func NewRunRepository(db *sql.DB, logger *slog.Logger) *RunRepository {
	return &RunRepository{db: db, logger: logger}
}

const runColumns = "id, workflow_id, workspace_id, status, start_time, end_time, description, data"

func (rr *RunRepository) GetByID(ctx context.Context, id string) (*models.WorkflowRun, error) {
	row := rr.db.QueryRowContext(ctx,
		"SELECT "+runColumns+" FROM runs WHERE id = $1", id)

	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewRunError("GetByID", id, persistence.ErrRunNotFound)
		}

		return nil, err
	}

	return run, nil
}

func (rr *RunRepository) GetByWorkspace(ctx context.Context, workspaceID string) ([]*models.WorkflowRun, error) {
	rows, err := rr.db.QueryContext(ctx,
		"SELECT "+runColumns+" FROM runs WHERE workspace_id = $1 ORDER BY start_time DESC", workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs for workspace %s: %w", workspaceID, err)
	}
	defer rows.Close()

	return collectRuns(rows)
}

func (rr *RunRepository) Create(ctx context.Context, run *models.WorkflowRun) error {
	if run.Steps == nil {
		run.Steps = make(map[string]*models.StepExecutionState)
	}

	data, err := marshalRunData(run)
	if err != nil {
		return persistence.NewRunError("Create", run.ID, err)
	}

	_, err = rr.db.ExecContext(ctx, `
		INSERT INTO runs (id, workflow_id, workspace_id, status, start_time, end_time, description, data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		run.ID, run.WorkflowID, run.WorkspaceID, string(run.Status),
		run.StartTime, run.EndTime, run.Description, data)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return persistence.NewRunError("Create", run.ID, persistence.ErrRunAlreadyExists)
		}

		return persistence.NewRunError("Create", run.ID, err)
	}

	return nil
}

// SaveStep merges a single step's state into the run document.
func (rr *RunRepository) SaveStep(ctx context.Context, runID string, step *models.StepExecutionState) error {
	return rr.merge(ctx, "SaveStep", runID, func(run *models.WorkflowRun) {
		run.Steps[step.StepID] = step
	})
}

// SavePartial merges the non-nil patch fields into the run document.
func (rr *RunRepository) SavePartial(ctx context.Context, runID string, patch *persistence.RunPatch) error {
	return rr.merge(ctx, "SavePartial", runID, func(run *models.WorkflowRun) {
		if patch.Status != nil {
			run.Status = *patch.Status
		}

		if patch.EndTime != nil {
			run.EndTime = patch.EndTime
		}

		if patch.Description != nil {
			run.Description = *patch.Description
		}

		for stepID, step := range patch.Steps {
			run.Steps[stepID] = step
		}

		if patch.UserLogs != nil {
			run.UserLogs = patch.UserLogs
		}
	})
}

// ListActive returns runs with status running or paused, ordered
// running-first then by oldest start time.
func (rr *RunRepository) ListActive(ctx context.Context) ([]*models.WorkflowRun, error) {
	rows, err := rr.db.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		WHERE status IN ('running', 'paused')
		ORDER BY CASE status WHEN 'running' THEN 0 ELSE 1 END, start_time ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query active runs: %w", err)
	}
	defer rows.Close()

	return collectRuns(rows)
}

// merge runs one read-merge-write cycle against a row-locked run.
func (rr *RunRepository) merge(ctx context.Context, op, runID string, apply func(*models.WorkflowRun)) error {
	tx, err := rr.db.BeginTx(ctx, nil)
	if err != nil {
		return persistence.NewRunError(op, runID, err)
	}

	row := tx.QueryRowContext(ctx,
		"SELECT "+runColumns+" FROM runs WHERE id = $1 FOR UPDATE", runID)

	run, err := scanRun(row)
	if err != nil {
		_ = tx.Rollback()

		if errors.Is(err, sql.ErrNoRows) {
			return persistence.NewRunError(op, runID, persistence.ErrRunNotFound)
		}

		return persistence.NewRunError(op, runID, err)
	}

	apply(run)

	data, err := marshalRunData(run)
	if err != nil {
		_ = tx.Rollback()

		return persistence.NewRunError(op, runID, err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE runs
		SET status = $2, end_time = $3, description = $4, data = $5
		WHERE id = $1`,
		runID, string(run.Status), run.EndTime, run.Description, data)
	if err != nil {
		_ = tx.Rollback()

		return persistence.NewRunError(op, runID, err)
	}

	if err := tx.Commit(); err != nil {
		return persistence.NewRunError(op, runID, err)
	}

	return nil
}

func marshalRunData(run *models.WorkflowRun) ([]byte, error) {
	data, err := json.Marshal(runData{
		Steps:       run.Steps,
		Variables:   run.Variables,
		InputValues: run.InputValues,
		UserLogs:    run.UserLogs,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal run data: %w", err)
	}

	return data, nil
}

func scanRun(row rowScanner) (*models.WorkflowRun, error) {
	var (
		run     models.WorkflowRun
		status  string
		endTime sql.NullTime
		blob    []byte
	)

	err := row.Scan(&run.ID, &run.WorkflowID, &run.WorkspaceID, &status,
		&run.StartTime, &endTime, &run.Description, &blob)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}

		return nil, fmt.Errorf("failed to scan run row: %w", err)
	}

	run.Status = models.RunStatus(status)

	if endTime.Valid {
		run.EndTime = &endTime.Time
	}

	var data runData
	if err := json.Unmarshal(blob, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run %s data: %w", run.ID, err)
	}

	run.Steps = data.Steps
	if run.Steps == nil {
		run.Steps = make(map[string]*models.StepExecutionState)
	}

	run.Variables = data.Variables
	run.InputValues = data.InputValues
	run.UserLogs = data.UserLogs

	return &run, nil
}

func collectRuns(rows *sql.Rows) ([]*models.WorkflowRun, error) {
	var runs []*models.WorkflowRun

	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}

		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}

	return runs, nil
}
