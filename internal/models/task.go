package models

import (
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the status of a task. Pending is the only mutable
// state; completed, missed and cancelled are terminal.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusMissed    TaskStatus = "missed"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// Task is one concrete scheduled occurrence, either generated from a
// template (TemplateID set) or created ad hoc (TemplateID nil).
type Task struct {
	ID              uuid.UUID  `json:"id"`
	PatientID       uuid.UUID  `json:"patient_id"`
	TemplateID      *uuid.UUID `json:"template_id,omitempty"`
	AssignedTo      *uuid.UUID `json:"assigned_to,omitempty"`
	Title           string     `json:"title"`
	StartAt         time.Time  `json:"start_at"`
	EndAt           time.Time  `json:"end_at"`
	OriginalStartAt *time.Time `json:"original_start_at,omitempty"`
	OriginalEndAt   *time.Time `json:"original_end_at,omitempty"`
	Status          TaskStatus `json:"status"`
	Priority        int        `json:"priority"`

	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CompletedBy *uuid.UUID `json:"completed_by,omitempty"`
	Comment     *string    `json:"comment,omitempty"`
	Photos      []string   `json:"photos,omitempty"`

	RescheduleReason *string    `json:"reschedule_reason,omitempty"`
	RescheduledBy    *uuid.UUID `json:"rescheduled_by,omitempty"`
	RescheduledAt    *time.Time `json:"rescheduled_at,omitempty"`

	RelatedDiaryKey *string `json:"related_diary_key,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsRescheduled reports whether the task has ever been rescheduled. The
// original timing is snapshotted on the first reschedule only.
func (t *Task) IsRescheduled() bool {
	return t.OriginalStartAt != nil
}

// IsOverdue reports whether the task is past its end time and still pending.
// This is a display property with no grace period; the sweeper applies its
// own grace before transitioning.
func (t *Task) IsOverdue(now time.Time) bool {
	return t.Status == TaskStatusPending && t.EndAt.Before(now)
}

// IsTerminal reports whether the task status admits no further transitions.
func (t *Task) IsTerminal() bool {
	return t.Status != TaskStatusPending
}
