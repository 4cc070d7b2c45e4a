package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/operand/pkg/models"
	"github.com/dukex/operand/pkg/persistence"
)

// workflowData is the JSONB blob portion of a workflow row: everything the
// engine reads as a unit and never queries by.
type workflowData struct {
	Nodes  []*models.WorkflowNode `json:"nodes"`
	Edges  []*models.Edge         `json:"edges"`
	Inputs []models.WorkflowInput `json:"inputs,omitempty"`
}

// WorkflowRepository handles workflow-related database operations.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(db *sql.DB, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

func (wr *WorkflowRepository) GetAll(ctx context.Context) ([]*models.Workflow, error) {
	rows, err := wr.db.QueryContext(ctx, `
		SELECT id, name, description, data, created_at, updated_at
		FROM workflows
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}
	defer rows.Close()

	var workflows []*models.Workflow

	for rows.Next() {
		workflow, err := scanWorkflow(rows)
		if err != nil {
			return nil, err
		}

		workflows = append(workflows, workflow)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate workflows: %w", err)
	}

	return workflows, nil
}

func (wr *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	row := wr.db.QueryRowContext(ctx, `
		SELECT id, name, description, data, created_at, updated_at
		FROM workflows
		WHERE id = $1`, id)

	workflow, err := scanWorkflow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
		}

		return nil, err
	}

	return workflow, nil
}

func (wr *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	now := time.Now().UTC()
	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	data, err := json.Marshal(workflowData{
		Nodes:  workflow.Nodes,
		Edges:  workflow.Edges,
		Inputs: workflow.Inputs,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal workflow %s data: %w", workflow.ID, err)
	}

	_, err = wr.db.ExecContext(ctx, `
		INSERT INTO workflows (id, name, description, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			data = EXCLUDED.data,
			updated_at = EXCLUDED.updated_at`,
		workflow.ID, workflow.Name, workflow.Description, data, workflow.CreatedAt, workflow.UpdatedAt)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	return nil
}

func (wr *WorkflowRepository) Delete(ctx context.Context, id string) error {
	_, err := wr.db.ExecContext(ctx, "DELETE FROM workflows WHERE id = $1", id)
	if err != nil {
		return persistence.NewWorkflowError("Delete", id, err)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkflow(row rowScanner) (*models.Workflow, error) {
	var (
		workflow models.Workflow
		blob     []byte
	)

	err := row.Scan(&workflow.ID, &workflow.Name, &workflow.Description, &blob,
		&workflow.CreatedAt, &workflow.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}

		return nil, fmt.Errorf("failed to scan workflow row: %w", err)
	}

	var data workflowData
	if err := json.Unmarshal(blob, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow %s data: %w", workflow.ID, err)
	}

	workflow.Nodes = data.Nodes
	workflow.Edges = data.Edges
	workflow.Inputs = data.Inputs

	return &workflow, nil
}
