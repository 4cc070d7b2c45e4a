package file

import (
	"context"
	"time"

	"github.com/dukex/operand/pkg/models"
	"github.com/dukex/operand/pkg/persistence"
)

const workspacesDir = "workspaces"

// WorkspaceRepository handles workspace-related file operations.
type WorkspaceRepository struct {
	root string
}

// NewWorkspaceRepository creates a new workspace repository.
func NewWorkspaceRepository(root string) *WorkspaceRepository {
	return &WorkspaceRepository{root: root}
}

func (wr *WorkspaceRepository) GetAll(ctx context.Context) ([]*models.Workspace, error) {
	ids, err := listDocumentIDs(wr.root, workspacesDir)
	if err != nil {
		return nil, err
	}

	workspaces := make([]*models.Workspace, 0, len(ids))

	for _, id := range ids {
		workspace, err := wr.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		workspaces = append(workspaces, workspace)
	}

	return workspaces, nil
}

func (wr *WorkspaceRepository) GetByID(_ context.Context, id string) (*models.Workspace, error) {
	var workspace models.Workspace
	if err := readDocument(wr.root, workspacesDir, id, &workspace, persistence.ErrWorkspaceNotFound); err != nil {
		return nil, err
	}

	return &workspace, nil
}

func (wr *WorkspaceRepository) Save(_ context.Context, workspace *models.Workspace) error {
	if workspace.CreatedAt.IsZero() {
		workspace.CreatedAt = time.Now().UTC()
	}

	return writeDocument(wr.root, workspacesDir, workspace.ID, workspace)
}

func (wr *WorkspaceRepository) Delete(_ context.Context, id string) error {
	return deleteDocument(wr.root, workspacesDir, id)
}
