package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/operand/pkg/models"
	"github.com/dukex/operand/pkg/persistence"
)

// WorkspaceRepository handles workspace-related database operations.
type WorkspaceRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewWorkspaceRepository creates a new workspace repository.
func NewWorkspaceRepository(db *sql.DB, logger *slog.Logger) *WorkspaceRepository {
	return &WorkspaceRepository{db: db, logger: logger}
}

func (wr *WorkspaceRepository) GetAll(ctx context.Context) ([]*models.Workspace, error) {
	rows, err := wr.db.QueryContext(ctx, `
		SELECT id, name, working_directory, created_at
		FROM workspaces
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query workspaces: %w", err)
	}
	defer rows.Close()

	var workspaces []*models.Workspace

	for rows.Next() {
		var workspace models.Workspace

		err := rows.Scan(&workspace.ID, &workspace.Name, &workspace.WorkingDirectory, &workspace.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workspace row: %w", err)
		}

		workspaces = append(workspaces, &workspace)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate workspaces: %w", err)
	}

	return workspaces, nil
}

func (wr *WorkspaceRepository) GetByID(ctx context.Context, id string) (*models.Workspace, error) {
	var workspace models.Workspace

	err := wr.db.QueryRowContext(ctx, `
		SELECT id, name, working_directory, created_at
		FROM workspaces
		WHERE id = $1`, id).
		Scan(&workspace.ID, &workspace.Name, &workspace.WorkingDirectory, &workspace.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrWorkspaceNotFound
		}

		return nil, fmt.Errorf("failed to query workspace %s: %w", id, err)
	}

	return &workspace, nil
}

func (wr *WorkspaceRepository) Save(ctx context.Context, workspace *models.Workspace) error {
	if workspace.CreatedAt.IsZero() {
		workspace.CreatedAt = time.Now().UTC()
	}

	_, err := wr.db.ExecContext(ctx, `
		INSERT INTO workspaces (id, name, working_directory, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			working_directory = EXCLUDED.working_directory`,
		workspace.ID, workspace.Name, workspace.WorkingDirectory, workspace.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save workspace %s: %w", workspace.ID, err)
	}

	return nil
}

func (wr *WorkspaceRepository) Delete(ctx context.Context, id string) error {
	_, err := wr.db.ExecContext(ctx, "DELETE FROM workspaces WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete workspace %s: %w", id, err)
	}

	return nil
}
