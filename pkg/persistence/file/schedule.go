package file

import (
	"context"
	"time"

	"github.com/dukex/operand/pkg/models"
	"github.com/dukex/operand/pkg/persistence"
)

const schedulesDir = "schedules"

// ScheduleRepository handles schedule-related file operations.
type ScheduleRepository struct {
	root string
}

// NewScheduleRepository creates a new schedule repository.
func NewScheduleRepository(root string) *ScheduleRepository {
	return &ScheduleRepository{root: root}
}

func (sr *ScheduleRepository) GetAll(ctx context.Context) ([]*models.Schedule, error) {
	ids, err := listDocumentIDs(sr.root, schedulesDir)
	if err != nil {
		return nil, err
	}

	schedules := make([]*models.Schedule, 0, len(ids))

	for _, id := range ids {
		schedule, err := sr.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		schedules = append(schedules, schedule)
	}

	return schedules, nil
}

func (sr *ScheduleRepository) GetByID(_ context.Context, id string) (*models.Schedule, error) {
	var schedule models.Schedule
	if err := readDocument(sr.root, schedulesDir, id, &schedule, persistence.ErrScheduleNotFound); err != nil {
		return nil, err
	}

	return &schedule, nil
}

func (sr *ScheduleRepository) Save(_ context.Context, schedule *models.Schedule) error {
	if schedule.CreatedAt.IsZero() {
		schedule.CreatedAt = time.Now().UTC()
	}

	schedule.UpdatedAt = time.Now().UTC()

	return writeDocument(sr.root, schedulesDir, schedule.ID, schedule)
}

func (sr *ScheduleRepository) Delete(_ context.Context, id string) error {
	return deleteDocument(sr.root, schedulesDir, id)
}

// ListDue returns active schedules whose NextDueAt is at or before now.
func (sr *ScheduleRepository) ListDue(ctx context.Context, now time.Time) ([]*models.Schedule, error) {
	schedules, err := sr.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	var due []*models.Schedule

	for _, schedule := range schedules {
		if schedule.IsDue(now) {
			due = append(due, schedule)
		}
	}

	return due, nil
}
