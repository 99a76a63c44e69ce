package queue

import (
	"time"

	"github.com/google/uuid"
)

// JobType represents the type of job
type JobType string

const (
	// JobTypeGeneratePatient materializes tasks for one patient's horizon
	JobTypeGeneratePatient JobType = "generate_patient"
	// JobTypeGenerateAll materializes tasks for every patient with active templates
	JobTypeGenerateAll JobType = "generate_all"
	// JobTypeSweepOverdue transitions overdue pending tasks to missed
	JobTypeSweepOverdue JobType = "sweep_overdue"
	// JobTypeDiaryEntry records a diary entry for a completed task
	JobTypeDiaryEntry JobType = "diary_entry"
	// JobTypeNotification delivers routed notifications
	JobTypeNotification JobType = "notification"
)

// Job represents a job in the queue
type Job struct {
	ID         uuid.UUID      `json:"id"`
	Type       JobType        `json:"type"`
	PatientID  *uuid.UUID     `json:"patient_id,omitempty"`  // For generate_patient jobs
	TaskID     *uuid.UUID     `json:"task_id,omitempty"`     // For diary_entry and notification jobs
	ActorID    *uuid.UUID     `json:"actor_id,omitempty"`    // User whose action produced the job
	NotBefore  *time.Time     `json:"not_before,omitempty"`  // Earliest time to process job (nil = immediate)
	NotAfter   *time.Time     `json:"not_after,omitempty"`   // Latest time to process job (nil = no expiration)
	Metadata   map[string]any `json:"metadata,omitempty"`    // Job-specific data
	CreatedAt  time.Time      `json:"created_at"`
	RetryCount int            `json:"retry_count"`
	MaxRetries int            `json:"max_retries"`
}

// NewJob creates a new job
func NewJob(jobType JobType) *Job {
	return &Job{
		ID:         uuid.New(),
		Type:       jobType,
		Metadata:   make(map[string]any),
		CreatedAt:  time.Now(),
		RetryCount: 0,
		MaxRetries: 3,
	}
}

// NewPatientJob creates a job scoped to one patient
func NewPatientJob(jobType JobType, patientID uuid.UUID) *Job {
	j := NewJob(jobType)
	j.PatientID = &patientID
	return j
}

// NewTaskJob creates a job scoped to one task and the acting user
func NewTaskJob(jobType JobType, taskID, actorID uuid.UUID) *Job {
	j := NewJob(jobType)
	j.TaskID = &taskID
	j.ActorID = &actorID
	return j
}

// ShouldProcess checks if the job should be processed now
func (j *Job) ShouldProcess() bool {
	now := time.Now()

	// Check NotBefore
	if j.NotBefore != nil && now.Before(*j.NotBefore) {
		return false
	}

	// Check NotAfter
	if j.NotAfter != nil && now.After(*j.NotAfter) {
		return false
	}

	return true
}

// IsExpired checks if the job has expired
func (j *Job) IsExpired() bool {
	if j.NotAfter == nil {
		return false
	}

	return time.Now().After(*j.NotAfter)
}

// CanRetry checks if the job can be retried
func (j *Job) CanRetry() bool {
	return j.RetryCount < j.MaxRetries
}

// IncrementRetry increments the retry count
func (j *Job) IncrementRetry() {
	j.RetryCount++
}
