package tasks

import (
	"context"
	"time"

	"github.com/carebook/routesheet/internal/models"
	"github.com/google/uuid"
)

// TaskStore is the task persistence the engine runs against. Implementations
// must enforce uniqueness on (patient_id, template_id, start_at) and make
// status transitions conditional on the current status.
type TaskStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error)

	// Create inserts an ad-hoc task unconditionally.
	Create(ctx context.Context, task *models.Task) error

	// CreateIfAbsent inserts a generated task unless its
	// (patient, template, start_at) slot is already occupied. Returns false
	// without error when the slot exists; concurrent generator runs resolve
	// through the uniqueness constraint, not the read-before-write check.
	CreateIfAbsent(ctx context.Context, task *models.Task) (bool, error)

	// UpdateIfPending persists the task's mutable fields only if the stored
	// row is still pending. Returns false when the conditional update loses,
	// in which case the caller surfaces a state conflict.
	UpdateIfPending(ctx context.Context, task *models.Task) (bool, error)

	// DeleteIfDeletable removes the task only while pending or cancelled.
	DeleteIfDeletable(ctx context.Context, id uuid.UUID) (bool, error)

	// MarkOverdueMissed bulk-transitions pending tasks whose end_at is before
	// cutoff to missed with the given comment, stamped at now and leaving
	// completed_by unset.
	MarkOverdueMissed(ctx context.Context, cutoff, now time.Time, comment string) (int64, error)

	// ListOverduePending returns pending tasks whose end_at is before cutoff.
	ListOverduePending(ctx context.Context, cutoff time.Time) ([]*models.Task, error)

	// DeleteFuturePending removes pending tasks generated from a template
	// that start after the given instant. Historical tasks are preserved.
	DeleteFuturePending(ctx context.Context, templateID uuid.UUID, after time.Time) (int64, error)
}

// TemplateStore is the template persistence the generator reads.
type TemplateStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.TaskTemplate, error)
	ListActiveByPatient(ctx context.Context, patientID uuid.UUID) ([]*models.TaskTemplate, error)
	ListPatientsWithActiveTemplates(ctx context.Context) ([]uuid.UUID, error)
}

// PatientDirectory resolves the relationships the notification router needs.
type PatientDirectory interface {
	GetPatient(ctx context.Context, id uuid.UUID) (*models.Patient, error)
	GetOrganization(ctx context.Context, id uuid.UUID) (*models.Organization, error)
}

// DiaryStore accepts entry-creation requests from the diary bridge.
type DiaryStore interface {
	GetOrCreateForPatient(ctx context.Context, patientID uuid.UUID) (*models.Diary, error)
	CreateEntry(ctx context.Context, entry *models.DiaryEntry) error
}

// DiaryRecorder handles the diary side effect of a completion. The queue
// implementation enqueues a job so diary-store failures never roll back the
// completed task.
type DiaryRecorder interface {
	RecordCompletion(ctx context.Context, task *models.Task, actorID uuid.UUID, value models.DiaryValue) error
}

// NotificationDispatcher hands routed notifications to external delivery.
type NotificationDispatcher interface {
	Dispatch(ctx context.Context, notifications []Notification) error
}
