package models

import (
	"errors"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrInvalidSchedule is returned when schedule validation fails.
var ErrInvalidSchedule = errors.New("invalid schedule configuration")

// Schedule launches a workflow on a recurring cron expression. The runner
// daemon polls for due schedules, creates a run, and advances NextDueAt, so
// no per-schedule timers are needed.
type Schedule struct {
	// ID uniquely identifies this schedule entry
	ID string `json:"id" validate:"required"`

	// WorkflowID is the workflow launched when the schedule fires
	WorkflowID string `json:"workflow_id" validate:"required"`

	// WorkspaceID is the workspace new runs execute against
	WorkspaceID string `json:"workspace_id" validate:"required"`

	// CronExpression uses the standard 5-field format
	// (minute hour day month weekday)
	CronExpression string `json:"cron_expression" validate:"required"`

	// InputValues are passed as the run-level inputs of each launched run
	InputValues map[string]any `json:"input_values,omitempty"`

	// NextDueAt is the precomputed next execution time, enabling efficient
	// "due now" queries without parsing cron expressions on every poll
	NextDueAt time.Time `json:"next_due_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Active indicates if this schedule is processed by the poller
	Active bool `json:"active"`
}

// NewSchedule creates a Schedule with its first execution time calculated.
func NewSchedule(id, workflowID, workspaceID, cronExpression string) (*Schedule, error) {
	now := time.Now().UTC()
	schedule := &Schedule{
		ID:             id,
		WorkflowID:     workflowID,
		WorkspaceID:    workspaceID,
		CronExpression: cronExpression,
		CreatedAt:      now,
		UpdatedAt:      now,
		Active:         true,
	}

	if err := schedule.calculateNextDueAt(now); err != nil {
		return nil, err
	}

	return schedule, nil
}

// UpdateNextDueAt advances the next execution time from now.
func (s *Schedule) UpdateNextDueAt() error {
	return s.calculateNextDueAt(time.Now().UTC())
}

func (s *Schedule) calculateNextDueAt(referenceTime time.Time) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

	cronSchedule, err := parser.Parse(s.CronExpression)
	if err != nil {
		return err
	}

	s.NextDueAt = cronSchedule.Next(referenceTime)
	s.UpdatedAt = time.Now().UTC()

	return nil
}

// IsDue checks if this schedule should fire at the given time.
func (s *Schedule) IsDue(now time.Time) bool {
	return s.Active && !s.NextDueAt.After(now)
}

// Validate checks required fields and the cron expression format.
func (s *Schedule) Validate() error {
	if s.ID == "" || s.WorkflowID == "" || s.WorkspaceID == "" || s.CronExpression == "" {
		return ErrInvalidSchedule
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	_, err := parser.Parse(s.CronExpression)

	return err
}
