// Package runner contains the poller daemon that drives active runs and
// fires due schedules. One poll cycle scans persistence for runs with status
// running or paused and admits them to the driver under a concurrency cap;
// paused runs only make progress because this loop keeps re-driving them.
package runner

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dukex/operand/pkg/eventbus"
	"github.com/dukex/operand/pkg/events"
	"github.com/dukex/operand/pkg/models"
	"github.com/dukex/operand/pkg/persistence"
	"github.com/dukex/operand/pkg/workflow"
)

const (
	defaultPollInterval  = 1 * time.Second
	defaultMaxConcurrent = 4
)

// Config tunes the poll loop.
type Config struct {
	RunnerID      string
	PollInterval  time.Duration
	MaxConcurrent int
}

// Runner is the long-lived poller process.
type Runner struct {
	config      Config
	persistence persistence.Persistence
	driver      *workflow.Driver
	manager     *workflow.Manager
	locker      RunLocker
	eventBus    eventbus.EventPublisher
	logger      *slog.Logger

	mu       sync.Mutex
	inFlight map[string]bool
	wg       sync.WaitGroup
}

func New(
	config Config,
	persistence persistence.Persistence,
	driver *workflow.Driver,
	manager *workflow.Manager,
	locker RunLocker,
	eventBus eventbus.EventPublisher,
	logger *slog.Logger,
) *Runner {
	if config.PollInterval <= 0 {
		config.PollInterval = defaultPollInterval
	}

	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = defaultMaxConcurrent
	}

	if locker == nil {
		locker = NoopLocker{}
	}

	return &Runner{
		config:      config,
		persistence: persistence,
		driver:      driver,
		manager:     manager,
		locker:      locker,
		eventBus:    eventBus,
		logger:      logger.With("module", "runner", "runner_id", config.RunnerID),
		inFlight:    make(map[string]bool),
	}
}

// Start runs the poll loop until the context is cancelled, then waits for
// in-flight runs to settle.
func (r *Runner) Start(ctx context.Context) error {
	r.logger.InfoContext(ctx, "Runner started",
		"poll_interval", r.config.PollInterval.String(),
		"max_concurrent", r.config.MaxConcurrent)

	ticker := time.NewTicker(r.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Runner stopping, waiting for in-flight runs")
			r.wg.Wait()

			return nil
		case <-ticker.C:
			r.fireDueSchedules(ctx)
			r.pollOnce(ctx)
		}
	}
}

// pollOnce admits active runs up to the concurrency cap. Persistence returns
// them in priority order (running before paused, then oldest start), so
// admission is just a prefix scan that skips runs already in flight.
func (r *Runner) pollOnce(ctx context.Context) {
	active, err := r.persistence.RunRepository().ListActive(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to list active runs", "error", err)

		return
	}

	for _, run := range active {
		if !r.admit(run.ID) {
			continue
		}

		claimed, err := r.locker.Acquire(ctx, run.ID)
		if err != nil {
			r.logger.ErrorContext(ctx, "Failed to claim run", "run_id", run.ID, "error", err)
			r.done(run.ID)

			continue
		}

		if !claimed {
			r.done(run.ID)

			continue
		}

		r.wg.Add(1)

		go r.processRun(ctx, run.ID)
	}
}

// admit marks a run as in flight if capacity allows and it is not being
// driven already.
func (r *Runner) admit(runID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.inFlight[runID] || len(r.inFlight) >= r.config.MaxConcurrent {
		return false
	}

	r.inFlight[runID] = true

	return true
}

func (r *Runner) done(runID string) {
	r.mu.Lock()
	delete(r.inFlight, runID)
	r.mu.Unlock()
}

func (r *Runner) processRun(ctx context.Context, runID string) {
	defer r.wg.Done()
	defer r.done(runID)

	defer func() {
		if err := r.locker.Release(ctx, runID); err != nil {
			r.logger.ErrorContext(ctx, "Failed to release run claim", "run_id", runID, "error", err)
		}
	}()

	if err := r.driver.ProcessRun(ctx, runID); err != nil {
		r.logger.ErrorContext(ctx, "Failed to process run", "run_id", runID, "error", err)
	}
}

// fireDueSchedules launches a run for every schedule whose next execution
// time has passed, then advances the schedule. A schedule whose workflow
// disappeared is deactivated instead of erroring every second.
func (r *Runner) fireDueSchedules(ctx context.Context) {
	now := time.Now().UTC()

	due, err := r.persistence.ScheduleRepository().ListDue(ctx, now)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to list due schedules", "error", err)

		return
	}

	for _, schedule := range due {
		r.fireSchedule(ctx, schedule)
	}
}

func (r *Runner) fireSchedule(ctx context.Context, schedule *models.Schedule) {
	logger := r.logger.With("schedule_id", schedule.ID, "workflow_id", schedule.WorkflowID)

	run, err := r.manager.LaunchRun(ctx, schedule.WorkflowID, schedule.WorkspaceID, schedule.InputValues)

	switch {
	case persistence.IsNotFound(err):
		logger.WarnContext(ctx, "Schedule target missing, deactivating", "error", err)

		schedule.Active = false
	case err != nil:
		logger.ErrorContext(ctx, "Failed to launch scheduled run", "error", err)

		return
	default:
		logger.InfoContext(ctx, "Fired schedule", "run_id", run.ID)
		r.publishScheduleFired(ctx, schedule)
	}

	if err := schedule.UpdateNextDueAt(); err != nil {
		logger.ErrorContext(ctx, "Failed to advance schedule", "error", err)

		schedule.Active = false
	}

	if err := r.persistence.ScheduleRepository().Save(ctx, schedule); err != nil {
		logger.ErrorContext(ctx, "Failed to save schedule", "error", err)
	}
}

func (r *Runner) publishScheduleFired(ctx context.Context, schedule *models.Schedule) {
	if r.eventBus == nil {
		return
	}

	base := events.NewBaseEvent(events.ScheduleFiredEvent, schedule.WorkflowID)
	base.WorkspaceID = schedule.WorkspaceID
	base.RunnerID = r.config.RunnerID

	event := events.ScheduleFired{
		BaseEvent:  base,
		ScheduleID: schedule.ID,
		FiredAt:    time.Now().UTC(),
	}

	if err := r.eventBus.Publish(ctx, schedule.ID, event); err != nil {
		r.logger.WarnContext(ctx, "Failed to publish schedule event", "error", err)
	}
}
