package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/carebook/routesheet/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Lifecycle governs the task state machine. All mutations go through its
// guarded transitions; the store's conditional updates resolve races between
// concurrent actors (e.g. a user completing while the sweeper marks missed).
type Lifecycle struct {
	tasks    TaskStore
	recorder DiaryRecorder
	notifier *Notifier
	clock    Clock
	logger   *zap.Logger
}

// NewLifecycle creates a lifecycle service. recorder and notifier may be nil
// when the corresponding side effects are not wired (e.g. in the worker's
// sweep-only mode).
func NewLifecycle(tasks TaskStore, recorder DiaryRecorder, notifier *Notifier, clock Clock, logger *zap.Logger) *Lifecycle {
	if clock == nil {
		clock = SystemClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Lifecycle{
		tasks:    tasks,
		recorder: recorder,
		notifier: notifier,
		clock:    clock,
		logger:   logger,
	}
}

// CreateInput holds the fields of an ad-hoc task.
type CreateInput struct {
	PatientID       uuid.UUID
	Title           string
	StartAt         time.Time
	EndAt           time.Time
	AssignedTo      *uuid.UUID
	Priority        int
	RelatedDiaryKey *string
}

// CompleteInput holds the optional completion payload.
type CompleteInput struct {
	Comment     *string
	Photos      []string
	Value       models.DiaryValue
	CompletedAt *time.Time
}

// UpdateInput holds partial field edits for a pending task. Nil fields are
// left unchanged.
type UpdateInput struct {
	Title      *string
	StartAt    *time.Time
	EndAt      *time.Time
	AssignedTo *uuid.UUID
	Priority   *int
}

// CreateAdHoc creates a one-off pending task not backed by a template.
func (l *Lifecycle) CreateAdHoc(ctx context.Context, in CreateInput) (*models.Task, error) {
	if in.Title == "" {
		return nil, &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if !in.EndAt.After(in.StartAt) {
		return nil, &ValidationError{Field: "end_at", Reason: "must be after start_at"}
	}
	if in.Priority < 0 || in.Priority > 10 {
		return nil, &ValidationError{Field: "priority", Reason: "must be between 0 and 10"}
	}

	task := &models.Task{
		ID:              uuid.New(),
		PatientID:       in.PatientID,
		Title:           in.Title,
		StartAt:         in.StartAt,
		EndAt:           in.EndAt,
		AssignedTo:      in.AssignedTo,
		Status:          models.TaskStatusPending,
		Priority:        in.Priority,
		RelatedDiaryKey: in.RelatedDiaryKey,
	}
	if err := l.tasks.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	return task, nil
}

// Complete transitions a pending task to completed, optionally recording a
// diary entry when the task carries a diary key and a value was supplied.
func (l *Lifecycle) Complete(ctx context.Context, taskID uuid.UUID, actor *models.User, in CompleteInput) (*models.Task, error) {
	task, err := l.pendingTask(ctx, taskID, "complete")
	if err != nil {
		return nil, err
	}

	completedAt := l.clock.Now()
	if in.CompletedAt != nil {
		completedAt = *in.CompletedAt
	}

	task.Status = models.TaskStatusCompleted
	task.CompletedAt = &completedAt
	task.CompletedBy = &actor.ID
	task.Comment = in.Comment
	if len(in.Photos) > 0 {
		task.Photos = in.Photos
	}

	if err := l.commit(ctx, task, "complete"); err != nil {
		return nil, err
	}

	if l.recorder != nil && len(in.Value) > 0 {
		if err := l.recorder.RecordCompletion(ctx, task, actor.ID, in.Value); err != nil {
			// The completed task is canonical; the diary entry is best-effort.
			l.logger.Warn("diary_bridge_failed",
				zap.String("task_id", task.ID.String()),
				zap.Error(err),
			)
		}
	}
	if l.notifier != nil {
		l.notifier.NotifyStatusChange(ctx, task, actor)
	}

	return task, nil
}

// Miss transitions a pending task to missed. The reason is mandatory and is
// stored in the comment field alongside the same audit fields completion uses.
func (l *Lifecycle) Miss(ctx context.Context, taskID uuid.UUID, actor *models.User, reason string) (*models.Task, error) {
	if reason == "" {
		return nil, &ValidationError{Field: "reason", Reason: "must not be empty"}
	}

	task, err := l.pendingTask(ctx, taskID, "miss")
	if err != nil {
		return nil, err
	}

	now := l.clock.Now()
	task.Status = models.TaskStatusMissed
	task.CompletedAt = &now
	task.CompletedBy = &actor.ID
	task.Comment = &reason

	if err := l.commit(ctx, task, "miss"); err != nil {
		return nil, err
	}

	if l.notifier != nil {
		l.notifier.NotifyStatusChange(ctx, task, actor)
	}

	return task, nil
}

// Reschedule moves a pending task to a new time slot. The first reschedule
// snapshots the original timing; later reschedules leave the snapshot alone
// so it always reflects the first-ever scheduled time.
func (l *Lifecycle) Reschedule(ctx context.Context, taskID uuid.UUID, actor *models.User, newStart, newEnd time.Time, reason string) (*models.Task, error) {
	if reason == "" {
		return nil, &ValidationError{Field: "reason", Reason: "must not be empty"}
	}
	if !newEnd.After(newStart) {
		return nil, &ValidationError{Field: "end_at", Reason: "must be after start_at"}
	}

	task, err := l.pendingTask(ctx, taskID, "reschedule")
	if err != nil {
		return nil, err
	}

	if !task.IsRescheduled() {
		origStart := task.StartAt
		origEnd := task.EndAt
		task.OriginalStartAt = &origStart
		task.OriginalEndAt = &origEnd
	}

	now := l.clock.Now()
	task.StartAt = newStart
	task.EndAt = newEnd
	task.RescheduleReason = &reason
	task.RescheduledBy = &actor.ID
	task.RescheduledAt = &now

	if err := l.commit(ctx, task, "reschedule"); err != nil {
		return nil, err
	}
	return task, nil
}

// Cancel transitions a pending task to cancelled. No notifications are sent.
func (l *Lifecycle) Cancel(ctx context.Context, taskID uuid.UUID, actor *models.User) (*models.Task, error) {
	task, err := l.pendingTask(ctx, taskID, "cancel")
	if err != nil {
		return nil, err
	}

	task.Status = models.TaskStatusCancelled
	if err := l.commit(ctx, task, "cancel"); err != nil {
		return nil, err
	}
	return task, nil
}

// Update applies plain field edits to a pending task.
func (l *Lifecycle) Update(ctx context.Context, taskID uuid.UUID, in UpdateInput) (*models.Task, error) {
	task, err := l.pendingTask(ctx, taskID, "update")
	if err != nil {
		return nil, err
	}

	if in.Title != nil {
		if *in.Title == "" {
			return nil, &ValidationError{Field: "title", Reason: "must not be empty"}
		}
		task.Title = *in.Title
	}
	if in.StartAt != nil {
		task.StartAt = *in.StartAt
	}
	if in.EndAt != nil {
		task.EndAt = *in.EndAt
	}
	if !task.EndAt.After(task.StartAt) {
		return nil, &ValidationError{Field: "end_at", Reason: "must be after start_at"}
	}
	if in.AssignedTo != nil {
		task.AssignedTo = in.AssignedTo
	}
	if in.Priority != nil {
		if *in.Priority < 0 || *in.Priority > 10 {
			return nil, &ValidationError{Field: "priority", Reason: "must be between 0 and 10"}
		}
		task.Priority = *in.Priority
	}

	if err := l.commit(ctx, task, "update"); err != nil {
		return nil, err
	}
	return task, nil
}

// Delete removes a task. Allowed only while pending or cancelled; completed
// and missed tasks are historical records and stay.
func (l *Lifecycle) Delete(ctx context.Context, taskID uuid.UUID) error {
	deleted, err := l.tasks.DeleteIfDeletable(ctx, taskID)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if deleted {
		return nil
	}

	// Distinguish a missing task from a non-deletable one.
	task, err := l.tasks.GetByID(ctx, taskID)
	if err != nil {
		return ErrNotFound
	}
	return &StateConflictError{Action: "delete", Status: task.Status}
}

// pendingTask loads a task and guards that it is still pending.
func (l *Lifecycle) pendingTask(ctx context.Context, taskID uuid.UUID, action string) (*models.Task, error) {
	task, err := l.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, ErrNotFound
	}
	if task.Status != models.TaskStatusPending {
		return nil, &StateConflictError{Action: action, Status: task.Status}
	}
	return task, nil
}

// commit persists a transition conditionally on the row still being pending.
// Losing the conditional update means a concurrent transition won; the caller
// observes a state conflict and may re-fetch.
func (l *Lifecycle) commit(ctx context.Context, task *models.Task, action string) error {
	updated, err := l.tasks.UpdateIfPending(ctx, task)
	if err != nil {
		return fmt.Errorf("failed to %s task: %w", action, err)
	}
	if !updated {
		status := models.TaskStatus("unknown")
		if current, err := l.tasks.GetByID(ctx, task.ID); err == nil {
			status = current.Status
		}
		return &StateConflictError{Action: action, Status: status}
	}
	return nil
}
