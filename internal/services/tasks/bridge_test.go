package tasks

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/carebook/routesheet/internal/models"
	"github.com/google/uuid"
)

func completedTask(key string) *models.Task {
	completedAt := time.Date(2024, time.June, 10, 9, 15, 0, 0, time.UTC)
	task := &models.Task{
		ID:          uuid.New(),
		PatientID:   uuid.New(),
		Title:       "Measure temperature",
		Status:      models.TaskStatusCompleted,
		CompletedAt: &completedAt,
	}
	if key != "" {
		task.RelatedDiaryKey = &key
	}
	return task
}

func TestDiaryBridge_CreatesPhysicalEntry(t *testing.T) {
	t.Parallel()

	diaries := newMemDiaryStore()
	bridge := NewDiaryBridge(diaries)
	task := completedTask("temperature")
	actorID := uuid.New()

	err := bridge.RecordCompletion(context.Background(), task, actorID, models.DiaryValue{"celsius": 37.2})
	if err != nil {
		t.Fatalf("RecordCompletion returned error: %v", err)
	}

	if len(diaries.entries) != 1 {
		t.Fatalf("Expected exactly 1 diary entry, got %d", len(diaries.entries))
	}
	entry := diaries.entries[0]
	if entry.Type != models.DiaryEntryTypePhysical {
		t.Errorf("Entry type = %q, want physical", entry.Type)
	}
	if entry.Key != "temperature" {
		t.Errorf("Entry key = %q, want temperature", entry.Key)
	}
	if !entry.RecordedAt.Equal(*task.CompletedAt) {
		t.Errorf("RecordedAt = %v, want the task's completion time %v", entry.RecordedAt, task.CompletedAt)
	}
	if entry.AuthorID != actorID {
		t.Errorf("Entry should be attributed to the completing user")
	}
	if entry.Notes == nil || !strings.Contains(*entry.Notes, task.Title) {
		t.Errorf("Entry notes should reference the source task title")
	}
}

func TestDiaryBridge_RedeliveredCompletionIsNotDuplicated(t *testing.T) {
	t.Parallel()

	diaries := newMemDiaryStore()
	bridge := NewDiaryBridge(diaries)
	task := completedTask("temperature")
	actorID := uuid.New()
	value := models.DiaryValue{"celsius": 37.2}

	for i := 0; i < 2; i++ {
		if err := bridge.RecordCompletion(context.Background(), task, actorID, value); err != nil {
			t.Fatalf("RecordCompletion run %d returned error: %v", i+1, err)
		}
	}

	if len(diaries.entries) != 1 {
		t.Fatalf("One completion produced %d diary entries, want 1", len(diaries.entries))
	}
}

func TestDiaryBridge_CareKeyClassification(t *testing.T) {
	t.Parallel()

	diaries := newMemDiaryStore()
	bridge := NewDiaryBridge(diaries)
	task := completedTask("mood")

	err := bridge.RecordCompletion(context.Background(), task, uuid.New(), models.DiaryValue{"state": "calm"})
	if err != nil {
		t.Fatalf("RecordCompletion returned error: %v", err)
	}
	if len(diaries.entries) != 1 || diaries.entries[0].Type != models.DiaryEntryTypeCare {
		t.Errorf("Non-physical key should produce a care entry")
	}
}

func TestDiaryBridge_NoOps(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		key   string
		value models.DiaryValue
	}{
		{name: "no diary key", key: "", value: models.DiaryValue{"celsius": 37.0}},
		{name: "no value", key: "temperature", value: nil},
		{name: "empty value", key: "temperature", value: models.DiaryValue{}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			diaries := newMemDiaryStore()
			bridge := NewDiaryBridge(diaries)
			task := completedTask(tt.key)

			if err := bridge.RecordCompletion(context.Background(), task, uuid.New(), tt.value); err != nil {
				t.Fatalf("RecordCompletion returned error: %v", err)
			}
			if len(diaries.entries) != 0 {
				t.Errorf("Expected no diary entries, got %d", len(diaries.entries))
			}
		})
	}
}

func TestDiaryEntryTypeForKey(t *testing.T) {
	t.Parallel()

	physical := []string{"temperature", "blood_pressure", "pulse", "weight", "height",
		"blood_sugar", "saturation", "breathing_rate", "pain_level"}
	for _, key := range physical {
		if models.DiaryEntryTypeForKey(key) != models.DiaryEntryTypePhysical {
			t.Errorf("Key %q should classify as physical", key)
		}
	}
	for _, key := range []string{"mood", "feeding", "hygiene", ""} {
		if models.DiaryEntryTypeForKey(key) != models.DiaryEntryTypeCare {
			t.Errorf("Key %q should classify as care", key)
		}
	}
}
