package queue

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/carebook/routesheet/internal/models"
	"github.com/carebook/routesheet/internal/services/tasks"
)

// DiaryJobRecorder implements tasks.DiaryRecorder by enqueueing a diary
// entry job. Recording happens on the worker, so diary failures never roll
// back the completed task.
type DiaryJobRecorder struct {
	queue JobQueue
}

// NewDiaryJobRecorder creates a queue-backed diary recorder.
func NewDiaryJobRecorder(q JobQueue) *DiaryJobRecorder {
	return &DiaryJobRecorder{queue: q}
}

// RecordCompletion enqueues a diary entry job for the completed task.
func (r *DiaryJobRecorder) RecordCompletion(ctx context.Context, task *models.Task, actorID uuid.UUID, value models.DiaryValue) error {
	if task.RelatedDiaryKey == nil || len(value) == 0 {
		return nil
	}
	job := NewTaskJob(JobTypeDiaryEntry, task.ID, actorID)
	job.PatientID = &task.PatientID
	job.Metadata["value"] = map[string]any(value)
	if err := r.queue.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("enqueue diary entry job: %w", err)
	}
	return nil
}

// NotificationJobDispatcher implements tasks.NotificationDispatcher by
// enqueueing one delivery job per routed notification.
type NotificationJobDispatcher struct {
	queue JobQueue
}

// NewNotificationJobDispatcher creates a queue-backed notification dispatcher.
func NewNotificationJobDispatcher(q JobQueue) *NotificationJobDispatcher {
	return &NotificationJobDispatcher{queue: q}
}

// Dispatch enqueues a notification job per routed notification.
func (d *NotificationJobDispatcher) Dispatch(ctx context.Context, notifications []tasks.Notification) error {
	for _, n := range notifications {
		job := NewJob(JobTypeNotification)
		job.TaskID = &n.TaskID
		job.PatientID = &n.PatientID
		job.Metadata["recipient_id"] = n.RecipientID.String()
		job.Metadata["kind"] = string(n.Kind)
		job.Metadata["status"] = string(n.Status)
		if err := d.queue.Enqueue(ctx, job); err != nil {
			return fmt.Errorf("enqueue notification job: %w", err)
		}
	}
	return nil
}

var (
	_ tasks.DiaryRecorder          = (*DiaryJobRecorder)(nil)
	_ tasks.NotificationDispatcher = (*NotificationJobDispatcher)(nil)
)
