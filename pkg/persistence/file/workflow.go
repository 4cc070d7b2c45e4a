package file

import (
	"context"
	"time"

	"github.com/dukex/operand/pkg/models"
	"github.com/dukex/operand/pkg/persistence"
)

const workflowsDir = "workflows"

// WorkflowRepository handles workflow-related file operations.
type WorkflowRepository struct {
	root string
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(root string) *WorkflowRepository {
	return &WorkflowRepository{root: root}
}

// GetAll loads every stored workflow.
func (wr *WorkflowRepository) GetAll(ctx context.Context) ([]*models.Workflow, error) {
	ids, err := listDocumentIDs(wr.root, workflowsDir)
	if err != nil {
		return nil, err
	}

	workflows := make([]*models.Workflow, 0, len(ids))

	for _, id := range ids {
		workflow, err := wr.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		workflows = append(workflows, workflow)
	}

	return workflows, nil
}

// GetByID retrieves a workflow by its ID from the file system.
func (wr *WorkflowRepository) GetByID(_ context.Context, id string) (*models.Workflow, error) {
	var workflow models.Workflow
	if err := readDocument(wr.root, workflowsDir, id, &workflow,
		persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)); err != nil {
		return nil, err
	}

	return &workflow, nil
}

// Save stores a workflow, stamping CreatedAt on first save.
func (wr *WorkflowRepository) Save(_ context.Context, workflow *models.Workflow) error {
	now := time.Now().UTC()
	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	return writeDocument(wr.root, workflowsDir, workflow.ID, workflow)
}

// Delete removes a workflow by its ID.
func (wr *WorkflowRepository) Delete(_ context.Context, id string) error {
	return deleteDocument(wr.root, workflowsDir, id)
}
