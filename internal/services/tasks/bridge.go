package tasks

import (
	"context"
	"fmt"

	"github.com/carebook/routesheet/internal/models"
	"github.com/google/uuid"
)

// diaryEntryNamespace makes the entry ID a pure function of the task ID.
// A task completes at most once, so one completion maps to one entry even
// when the diary job is redelivered.
var diaryEntryNamespace = uuid.MustParse("9d2f6c1e-4b8a-4f3d-a7c5-0e6b2d8f1a43")

// DiaryBridge creates a diary entry when a task tied to a diary key
// completes with a measurement value. It is invoked exactly once per
// completion transition.
type DiaryBridge struct {
	diaries DiaryStore
}

// NewDiaryBridge creates a diary bridge.
func NewDiaryBridge(diaries DiaryStore) *DiaryBridge {
	return &DiaryBridge{diaries: diaries}
}

// RecordCompletion creates one diary entry for a completed task. No-op when
// the task has no related diary key or no value was supplied. The entry is
// timestamped at the task's completion time and attributed to the
// completing user.
func (b *DiaryBridge) RecordCompletion(ctx context.Context, task *models.Task, actorID uuid.UUID, value models.DiaryValue) error {
	if task.RelatedDiaryKey == nil || *task.RelatedDiaryKey == "" || len(value) == 0 {
		return nil
	}
	if task.CompletedAt == nil {
		return fmt.Errorf("task %s has no completion time", task.ID)
	}

	diary, err := b.diaries.GetOrCreateForPatient(ctx, task.PatientID)
	if err != nil {
		return fmt.Errorf("failed to resolve diary for patient %s: %w", task.PatientID, err)
	}

	key := *task.RelatedDiaryKey
	notes := "Created from task: " + task.Title
	entry := &models.DiaryEntry{
		ID:         uuid.NewSHA1(diaryEntryNamespace, task.ID[:]),
		DiaryID:    diary.ID,
		AuthorID:   actorID,
		Type:       models.DiaryEntryTypeForKey(key),
		Key:        key,
		Value:      value,
		Notes:      &notes,
		RecordedAt: *task.CompletedAt,
	}

	if err := b.diaries.CreateEntry(ctx, entry); err != nil {
		return fmt.Errorf("failed to create diary entry: %w", err)
	}
	return nil
}
