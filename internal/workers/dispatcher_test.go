package workers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/carebook/routesheet/internal/models"
	"github.com/carebook/routesheet/internal/queue"
	"github.com/carebook/routesheet/internal/services/tasks"
)

type mockTaskLoader struct {
	getByIDFunc func(ctx context.Context, id uuid.UUID) (*models.Task, error)
}

func (m *mockTaskLoader) GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	if m.getByIDFunc != nil {
		return m.getByIDFunc(ctx, id)
	}
	return nil, fmt.Errorf("get task: %w", sql.ErrNoRows)
}

type mockDiaryStore struct {
	mu      sync.Mutex
	entries []*models.DiaryEntry
}

func (m *mockDiaryStore) GetOrCreateForPatient(_ context.Context, patientID uuid.UUID) (*models.Diary, error) {
	return &models.Diary{ID: uuid.New(), PatientID: patientID}, nil
}

func (m *mockDiaryStore) CreateEntry(_ context.Context, e *models.DiaryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

type mockSender struct {
	mu   sync.Mutex
	sent []tasks.Notification
	err  error
}

func (m *mockSender) Send(_ context.Context, n tasks.Notification) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, n)
	return nil
}

type mockJobQueue struct {
	mu       sync.Mutex
	enqueued []*queue.Job
	err      error
}

func (m *mockJobQueue) Enqueue(_ context.Context, job *queue.Job) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enqueued = append(m.enqueued, job)
	return nil
}

func (m *mockJobQueue) Dequeue(context.Context) (*queue.Message, error) { return nil, nil }
func (m *mockJobQueue) Consume(context.Context, int) (<-chan *queue.Message, <-chan error, error) {
	return nil, nil, errors.New("not implemented")
}
func (m *mockJobQueue) Close() error                      { return nil }
func (m *mockJobQueue) HealthCheck(context.Context) error { return nil }

func strPtr(s string) *string { return &s }

func TestDispatcher_ProcessDiaryEntry(t *testing.T) {
	t.Parallel()

	taskID := uuid.New()
	actorID := uuid.New()
	patientID := uuid.New()
	completedAt := time.Now().Add(-time.Minute)

	diaries := &mockDiaryStore{}
	loader := &mockTaskLoader{
		getByIDFunc: func(_ context.Context, id uuid.UUID) (*models.Task, error) {
			return &models.Task{
				ID:              id,
				PatientID:       patientID,
				Title:           "Measure temperature",
				Status:          models.TaskStatusCompleted,
				CompletedAt:     &completedAt,
				RelatedDiaryKey: strPtr("temperature"),
			}, nil
		},
	}

	d := NewDispatcher(nil, nil, tasks.NewDiaryBridge(diaries), loader, &mockSender{}, 0)

	job := queue.NewTaskJob(queue.JobTypeDiaryEntry, taskID, actorID)
	job.Metadata["value"] = map[string]any{"temperature": 37.2}

	if err := d.processDiaryEntry(context.Background(), job); err != nil {
		t.Fatalf("processDiaryEntry: %v", err)
	}

	if len(diaries.entries) != 1 {
		t.Fatalf("expected 1 diary entry, got %d", len(diaries.entries))
	}
	entry := diaries.entries[0]
	if entry.Key != "temperature" {
		t.Errorf("expected key temperature, got %s", entry.Key)
	}
	if entry.AuthorID != actorID {
		t.Errorf("expected author %s, got %s", actorID, entry.AuthorID)
	}
}

func TestDispatcher_ProcessDiaryEntry_TaskGone(t *testing.T) {
	t.Parallel()

	diaries := &mockDiaryStore{}
	loader := &mockTaskLoader{} // returns nil task
	d := NewDispatcher(nil, nil, tasks.NewDiaryBridge(diaries), loader, &mockSender{}, 0)

	job := queue.NewTaskJob(queue.JobTypeDiaryEntry, uuid.New(), uuid.New())
	job.Metadata["value"] = map[string]any{"pulse": 72}

	if err := d.processDiaryEntry(context.Background(), job); err != nil {
		t.Fatalf("expected deleted task to be skipped, got %v", err)
	}
	if len(diaries.entries) != 0 {
		t.Errorf("expected no diary entries, got %d", len(diaries.entries))
	}
}

func TestDispatcher_ProcessDiaryEntry_MissingIDs(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(nil, nil, tasks.NewDiaryBridge(&mockDiaryStore{}), &mockTaskLoader{}, &mockSender{}, 0)

	job := queue.NewJob(queue.JobTypeDiaryEntry)
	if err := d.processDiaryEntry(context.Background(), job); err == nil {
		t.Error("expected error for job without task_id and actor_id")
	}
}

func TestDispatcher_ProcessNotification(t *testing.T) {
	t.Parallel()

	taskID := uuid.New()
	patientID := uuid.New()
	recipientID := uuid.New()

	sender := &mockSender{}
	d := NewDispatcher(nil, nil, nil, &mockTaskLoader{}, sender, 0)

	job := queue.NewJob(queue.JobTypeNotification)
	job.TaskID = &taskID
	job.PatientID = &patientID
	job.Metadata["recipient_id"] = recipientID.String()
	job.Metadata["kind"] = string(tasks.NotificationTaskMissed)
	job.Metadata["status"] = string(models.TaskStatusMissed)

	if err := d.processNotification(context.Background(), job); err != nil {
		t.Fatalf("processNotification: %v", err)
	}

	if len(sender.sent) != 1 {
		t.Fatalf("expected 1 notification sent, got %d", len(sender.sent))
	}
	n := sender.sent[0]
	if n.RecipientID != recipientID {
		t.Errorf("expected recipient %s, got %s", recipientID, n.RecipientID)
	}
	if n.Kind != tasks.NotificationTaskMissed {
		t.Errorf("expected kind %s, got %s", tasks.NotificationTaskMissed, n.Kind)
	}
	if n.Status != models.TaskStatusMissed {
		t.Errorf("expected status missed, got %s", n.Status)
	}
}

func TestDispatcher_ProcessNotification_BadRecipient(t *testing.T) {
	t.Parallel()

	taskID := uuid.New()
	patientID := uuid.New()

	d := NewDispatcher(nil, nil, nil, &mockTaskLoader{}, &mockSender{}, 0)

	job := queue.NewJob(queue.JobTypeNotification)
	job.TaskID = &taskID
	job.PatientID = &patientID
	job.Metadata["recipient_id"] = "not-a-uuid"

	if err := d.processNotification(context.Background(), job); err == nil {
		t.Error("expected error for invalid recipient_id")
	}
}

func TestDispatcher_ProcessGeneratePatient_MissingPatient(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(nil, nil, nil, &mockTaskLoader{}, &mockSender{}, 0)

	job := queue.NewJob(queue.JobTypeGeneratePatient)
	if err := d.processGeneratePatient(context.Background(), job); err == nil {
		t.Error("expected error for generation job without patient_id")
	}
}

func TestScheduler_TriggerEnqueues(t *testing.T) {
	t.Parallel()

	q := &mockJobQueue{}
	s := NewScheduler(q, nil, nil, SchedulerConfig{})

	s.trigger("sweep", queue.JobTypeSweepOverdue, time.Minute)

	if len(q.enqueued) != 1 {
		t.Fatalf("expected 1 job enqueued, got %d", len(q.enqueued))
	}
	if q.enqueued[0].Type != queue.JobTypeSweepOverdue {
		t.Errorf("expected sweep job, got %s", q.enqueued[0].Type)
	}
}

func TestScheduler_TriggerEnqueueFailure(t *testing.T) {
	t.Parallel()

	q := &mockJobQueue{err: errors.New("broker down")}
	s := NewScheduler(q, nil, nil, SchedulerConfig{})

	// Must not panic; failure is logged and the next tick retries.
	s.trigger("generate", queue.JobTypeGenerateAll, time.Minute)

	if len(q.enqueued) != 0 {
		t.Errorf("expected no jobs enqueued, got %d", len(q.enqueued))
	}
}
