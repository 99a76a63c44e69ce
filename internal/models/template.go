package models

import (
	"time"

	"github.com/google/uuid"
)

// TimeRange is one daily slot of a task template. Start and End are
// times-of-day in "HH:MM" (24h). AssignedTo and Priority, when set, override
// the template defaults for tasks generated from this slot.
type TimeRange struct {
	Start      string     `json:"start"`
	End        string     `json:"end"`
	AssignedTo *uuid.UUID `json:"assigned_to,omitempty"`
	Priority   *int       `json:"priority,omitempty"`
}

// TaskTemplate is a recurring care-plan rule. DaysOfWeek holds weekdays
// 0=Sunday..6=Saturday; nil means every day. EndDate nil means open-ended.
type TaskTemplate struct {
	ID              uuid.UUID   `json:"id"`
	PatientID       uuid.UUID   `json:"patient_id"`
	CreatorID       uuid.UUID   `json:"creator_id"`
	AssignedTo      *uuid.UUID  `json:"assigned_to,omitempty"`
	Title           string      `json:"title"`
	DaysOfWeek      []int       `json:"days_of_week,omitempty"`
	TimeRanges      []TimeRange `json:"time_ranges"`
	StartDate       time.Time   `json:"start_date"`
	EndDate         *time.Time  `json:"end_date,omitempty"`
	IsActive        bool        `json:"is_active"`
	RelatedDiaryKey *string     `json:"related_diary_key,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// OccursOn reports whether the template recurs on the given weekday
// (0=Sunday..6=Saturday). A nil DaysOfWeek means every day.
func (t *TaskTemplate) OccursOn(weekday int) bool {
	if t.DaysOfWeek == nil {
		return true
	}
	for _, d := range t.DaysOfWeek {
		if d == weekday {
			return true
		}
	}
	return false
}
