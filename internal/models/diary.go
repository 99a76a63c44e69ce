package models

import (
	"time"

	"github.com/google/uuid"
)

// DiaryEntryType classifies a diary entry.
type DiaryEntryType string

const (
	DiaryEntryTypePhysical DiaryEntryType = "physical"
	DiaryEntryTypeCare     DiaryEntryType = "care"
)

// physicalKeys is the fixed set of physical measurement keys. Any other key
// is treated as a care observation.
var physicalKeys = map[string]struct{}{
	"temperature":    {},
	"blood_pressure": {},
	"pulse":          {},
	"weight":         {},
	"height":         {},
	"blood_sugar":    {},
	"saturation":     {},
	"breathing_rate": {},
	"pain_level":     {},
}

// DiaryEntryTypeForKey returns the entry type for a diary key.
func DiaryEntryTypeForKey(key string) DiaryEntryType {
	if _, ok := physicalKeys[key]; ok {
		return DiaryEntryTypePhysical
	}
	return DiaryEntryTypeCare
}

// DiaryValue is the schema-less measurement payload of a diary entry. The
// set of measurable keys is open-ended, so the value is stored verbatim.
type DiaryValue map[string]any

// Diary is a patient's observation log.
type Diary struct {
	ID        uuid.UUID `json:"id"`
	PatientID uuid.UUID `json:"patient_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DiaryEntry is an immutable observation record.
type DiaryEntry struct {
	ID         uuid.UUID      `json:"id"`
	DiaryID    uuid.UUID      `json:"diary_id"`
	AuthorID   uuid.UUID      `json:"author_id"`
	Type       DiaryEntryType `json:"type"`
	Key        string         `json:"key"`
	Value      DiaryValue     `json:"value"`
	Notes      *string        `json:"notes,omitempty"`
	RecordedAt time.Time      `json:"recorded_at"`
	CreatedAt  time.Time      `json:"created_at"`
}
