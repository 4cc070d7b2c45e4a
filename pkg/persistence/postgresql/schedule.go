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

// ScheduleRepository handles schedule-related database operations.
type ScheduleRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewScheduleRepository creates a new schedule repository.
func NewScheduleRepository(db *sql.DB, logger *slog.Logger) *ScheduleRepository {
	return &ScheduleRepository{db: db, logger: logger}
}

const scheduleColumns = "id, workflow_id, workspace_id, cron_expression, input_values, next_due_at, active, created_at, updated_at"

func (sr *ScheduleRepository) GetAll(ctx context.Context) ([]*models.Schedule, error) {
	rows, err := sr.db.QueryContext(ctx,
		"SELECT "+scheduleColumns+" FROM schedules ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to query schedules: %w", err)
	}
	defer rows.Close()

	return collectSchedules(rows)
}

func (sr *ScheduleRepository) GetByID(ctx context.Context, id string) (*models.Schedule, error) {
	row := sr.db.QueryRowContext(ctx,
		"SELECT "+scheduleColumns+" FROM schedules WHERE id = $1", id)

	schedule, err := scanSchedule(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrScheduleNotFound
		}

		return nil, err
	}

	return schedule, nil
}

func (sr *ScheduleRepository) Save(ctx context.Context, schedule *models.Schedule) error {
	now := time.Now().UTC()
	if schedule.CreatedAt.IsZero() {
		schedule.CreatedAt = now
	}

	schedule.UpdatedAt = now

	inputValues, err := json.Marshal(schedule.InputValues)
	if err != nil {
		return fmt.Errorf("failed to marshal schedule %s input values: %w", schedule.ID, err)
	}

	_, err = sr.db.ExecContext(ctx, `
		INSERT INTO schedules (id, workflow_id, workspace_id, cron_expression, input_values, next_due_at, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			workflow_id = EXCLUDED.workflow_id,
			workspace_id = EXCLUDED.workspace_id,
			cron_expression = EXCLUDED.cron_expression,
			input_values = EXCLUDED.input_values,
			next_due_at = EXCLUDED.next_due_at,
			active = EXCLUDED.active,
			updated_at = EXCLUDED.updated_at`,
		schedule.ID, schedule.WorkflowID, schedule.WorkspaceID, schedule.CronExpression,
		inputValues, schedule.NextDueAt, schedule.Active, schedule.CreatedAt, schedule.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save schedule %s: %w", schedule.ID, err)
	}

	return nil
}

func (sr *ScheduleRepository) Delete(ctx context.Context, id string) error {
	_, err := sr.db.ExecContext(ctx, "DELETE FROM schedules WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete schedule %s: %w", id, err)
	}

	return nil
}

// ListDue returns active schedules whose NextDueAt is at or before now.
func (sr *ScheduleRepository) ListDue(ctx context.Context, now time.Time) ([]*models.Schedule, error) {
	rows, err := sr.db.QueryContext(ctx,
		"SELECT "+scheduleColumns+" FROM schedules WHERE active AND next_due_at <= $1 ORDER BY next_due_at ASC", now)
	if err != nil {
		return nil, fmt.Errorf("failed to query due schedules: %w", err)
	}
	defer rows.Close()

	return collectSchedules(rows)
}

func scanSchedule(row rowScanner) (*models.Schedule, error) {
	var (
		schedule    models.Schedule
		inputValues []byte
	)

	err := row.Scan(&schedule.ID, &schedule.WorkflowID, &schedule.WorkspaceID,
		&schedule.CronExpression, &inputValues, &schedule.NextDueAt,
		&schedule.Active, &schedule.CreatedAt, &schedule.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}

		return nil, fmt.Errorf("failed to scan schedule row: %w", err)
	}

	if err := json.Unmarshal(inputValues, &schedule.InputValues); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schedule %s input values: %w", schedule.ID, err)
	}

	return &schedule, nil
}

func collectSchedules(rows *sql.Rows) ([]*models.Schedule, error) {
	var schedules []*models.Schedule

	for rows.Next() {
		schedule, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}

		schedules = append(schedules, schedule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate schedules: %w", err)
	}

	return schedules, nil
}
