package workers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/carebook/routesheet/internal/models"
	"github.com/carebook/routesheet/internal/queue"
	"github.com/carebook/routesheet/internal/services/tasks"
)

// TaskLoader resolves a task for job processing.
type TaskLoader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error)
}

// Dispatcher processes route-sheet jobs from the queue: generation, the
// overdue sweep, diary recording and notification delivery.
type Dispatcher struct {
	generator   *tasks.Generator
	sweeper     *tasks.Sweeper
	bridge      *tasks.DiaryBridge
	taskRepo    TaskLoader
	sender      NotificationSender
	horizonDays int
}

// NewDispatcher creates a new job dispatcher.
func NewDispatcher(
	generator *tasks.Generator,
	sweeper *tasks.Sweeper,
	bridge *tasks.DiaryBridge,
	taskRepo TaskLoader,
	sender NotificationSender,
	horizonDays int,
) *Dispatcher {
	if horizonDays <= 0 {
		horizonDays = tasks.DefaultHorizonDays
	}
	return &Dispatcher{
		generator:   generator,
		sweeper:     sweeper,
		bridge:      bridge,
		taskRepo:    taskRepo,
		sender:      sender,
		horizonDays: horizonDays,
	}
}

// ProcessJob processes a job based on its type
func (d *Dispatcher) ProcessJob(ctx context.Context, msg *queue.Message) error {
	job := msg.Job

	// Check if job should be processed now (respect NotBefore)
	if !job.ShouldProcess() {
		log.Printf("Job %s not ready yet (NotBefore: %v), skipping", job.ID, job.NotBefore)
		if ackErr := msg.Ack(); ackErr != nil {
			log.Printf("Failed to ack job for later processing: %v", ackErr)
		}
		return nil
	}

	var err error
	switch job.Type {
	case queue.JobTypeGeneratePatient:
		err = d.processGeneratePatient(ctx, job)
	case queue.JobTypeGenerateAll:
		err = d.processGenerateAll(ctx, job)
	case queue.JobTypeSweepOverdue:
		err = d.processSweep(ctx, job)
	case queue.JobTypeDiaryEntry:
		err = d.processDiaryEntry(ctx, job)
	case queue.JobTypeNotification:
		err = d.processNotification(ctx, job)
	default:
		if nackErr := msg.Nack(false); nackErr != nil { // Unknown job type, send to DLQ
			log.Printf("Failed to nack unknown job type: %v", nackErr)
		}
		return fmt.Errorf("unknown job type: %s", job.Type)
	}

	if err != nil {
		return d.handleJobError(msg, job, err)
	}
	if ackErr := msg.Ack(); ackErr != nil {
		return fmt.Errorf("failed to ack job: %w", ackErr)
	}
	return nil
}

func (d *Dispatcher) processGeneratePatient(ctx context.Context, job *queue.Job) error {
	if job.PatientID == nil {
		return fmt.Errorf("patient_id is required for generation job")
	}
	created, err := d.generator.GenerateForPatient(ctx, *job.PatientID, d.horizonDays)
	if err != nil {
		return fmt.Errorf("generate for patient: %w", err)
	}
	log.Printf("Generated %d task(s) for patient %s", created, *job.PatientID)
	return nil
}

func (d *Dispatcher) processGenerateAll(ctx context.Context, _ *queue.Job) error {
	created, err := d.generator.GenerateForAllPatients(ctx, d.horizonDays)
	if err != nil {
		// Per-patient failures are contained; created counts the healthy ones
		log.Printf("Generation completed with errors (created %d): %v", created, err)
		return err
	}
	log.Printf("Generated %d task(s) across all patients", created)
	return nil
}

func (d *Dispatcher) processSweep(ctx context.Context, _ *queue.Job) error {
	missed, err := d.sweeper.Sweep(ctx)
	if err != nil {
		return fmt.Errorf("sweep overdue: %w", err)
	}
	if missed > 0 {
		log.Printf("Swept %d overdue task(s) to missed", missed)
	}
	return nil
}

func (d *Dispatcher) processDiaryEntry(ctx context.Context, job *queue.Job) error {
	if job.TaskID == nil || job.ActorID == nil {
		return fmt.Errorf("task_id and actor_id are required for diary entry job")
	}
	task, err := d.taskRepo.GetByID(ctx, *job.TaskID)
	if errors.Is(err, sql.ErrNoRows) {
		// Task deleted since completion; nothing to record
		log.Printf("Task %s gone, skipping diary entry", *job.TaskID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load task: %w", err)
	}
	value, _ := job.Metadata["value"].(map[string]any)
	if err := d.bridge.RecordCompletion(ctx, task, *job.ActorID, models.DiaryValue(value)); err != nil {
		return fmt.Errorf("record diary entry: %w", err)
	}
	return nil
}

func (d *Dispatcher) processNotification(ctx context.Context, job *queue.Job) error {
	if job.TaskID == nil || job.PatientID == nil {
		return fmt.Errorf("task_id and patient_id are required for notification job")
	}
	recipientRaw, _ := job.Metadata["recipient_id"].(string)
	recipientID, err := uuid.Parse(recipientRaw)
	if err != nil {
		return fmt.Errorf("invalid recipient_id: %w", err)
	}
	kind, _ := job.Metadata["kind"].(string)
	status, _ := job.Metadata["status"].(string)

	n := tasks.Notification{
		RecipientID: recipientID,
		Kind:        tasks.NotificationKind(kind),
		TaskID:      *job.TaskID,
		PatientID:   *job.PatientID,
		Status:      models.TaskStatus(status),
	}
	if err := d.sender.Send(ctx, n); err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	return nil
}

// handleJobError retries a failed job with requeue until MaxRetries, then
// dead-letters it.
func (d *Dispatcher) handleJobError(msg *queue.Message, job *queue.Job, err error) error {
	if job.CanRetry() {
		job.IncrementRetry()
		log.Printf("Job %s (%s) failed (attempt %d/%d): %v, will retry", job.ID, job.Type, job.RetryCount, job.MaxRetries, err)
		if nackErr := msg.Nack(true); nackErr != nil {
			log.Printf("Failed to nack job: %v", nackErr)
		}
		return fmt.Errorf("job failed (will retry): %w", err)
	}

	log.Printf("Job %s (%s) failed after %d retries: %v, sending to DLQ", job.ID, job.Type, job.MaxRetries, err)
	if nackErr := msg.Nack(false); nackErr != nil {
		log.Printf("Failed to nack job to DLQ: %v", nackErr)
	}
	return fmt.Errorf("job failed (max retries): %w", err)
}
