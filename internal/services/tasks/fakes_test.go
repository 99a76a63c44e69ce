package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/carebook/routesheet/internal/models"
	"github.com/google/uuid"
)

// fakeClock returns a fixed instant.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

// memTaskStore is an in-memory TaskStore mirroring the database semantics:
// slot uniqueness on (patient, template, start_at) and conditional updates.
type memTaskStore struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*models.Task
}

func newMemTaskStore() *memTaskStore {
	return &memTaskStore{tasks: make(map[uuid.UUID]*models.Task)}
}

func (s *memTaskStore) GetByID(_ context.Context, id uuid.UUID) (*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task not found")
	}
	copied := *task
	return &copied, nil
}

func (s *memTaskStore) Create(_ context.Context, task *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *task
	s.tasks[task.ID] = &copied
	return nil
}

func (s *memTaskStore) CreateIfAbsent(_ context.Context, task *models.Task) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.tasks {
		if existing.PatientID == task.PatientID &&
			existing.TemplateID != nil && task.TemplateID != nil &&
			*existing.TemplateID == *task.TemplateID &&
			existing.StartAt.Equal(task.StartAt) {
			return false, nil
		}
	}
	copied := *task
	s.tasks[task.ID] = &copied
	return true, nil
}

func (s *memTaskStore) UpdateIfPending(_ context.Context, task *models.Task) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.tasks[task.ID]
	if !ok {
		return false, fmt.Errorf("task not found")
	}
	if current.Status != models.TaskStatusPending {
		return false, nil
	}
	copied := *task
	s.tasks[task.ID] = &copied
	return true, nil
}

func (s *memTaskStore) DeleteIfDeletable(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return false, nil
	}
	if task.Status != models.TaskStatusPending && task.Status != models.TaskStatusCancelled {
		return false, nil
	}
	delete(s.tasks, id)
	return true, nil
}

func (s *memTaskStore) MarkOverdueMissed(_ context.Context, cutoff, now time.Time, comment string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for _, task := range s.tasks {
		if task.Status == models.TaskStatusPending && task.EndAt.Before(cutoff) {
			task.Status = models.TaskStatusMissed
			stamped := now
			task.CompletedAt = &stamped
			c := comment
			task.Comment = &c
			count++
		}
	}
	return count, nil
}

func (s *memTaskStore) ListOverduePending(_ context.Context, cutoff time.Time) ([]*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []*models.Task
	for _, task := range s.tasks {
		if task.Status == models.TaskStatusPending && task.EndAt.Before(cutoff) {
			copied := *task
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (s *memTaskStore) DeleteFuturePending(_ context.Context, templateID uuid.UUID, after time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for id, task := range s.tasks {
		if task.TemplateID != nil && *task.TemplateID == templateID &&
			task.Status == models.TaskStatusPending && task.StartAt.After(after) {
			delete(s.tasks, id)
			count++
		}
	}
	return count, nil
}

func (s *memTaskStore) all() []*models.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []*models.Task
	for _, task := range s.tasks {
		copied := *task
		result = append(result, &copied)
	}
	return result
}

// memTemplateStore is an in-memory TemplateStore.
type memTemplateStore struct {
	templates []*models.TaskTemplate
}

func (s *memTemplateStore) GetByID(_ context.Context, id uuid.UUID) (*models.TaskTemplate, error) {
	for _, tpl := range s.templates {
		if tpl.ID == id {
			return tpl, nil
		}
	}
	return nil, fmt.Errorf("template not found")
}

func (s *memTemplateStore) ListActiveByPatient(_ context.Context, patientID uuid.UUID) ([]*models.TaskTemplate, error) {
	var result []*models.TaskTemplate
	for _, tpl := range s.templates {
		if tpl.PatientID == patientID && tpl.IsActive {
			result = append(result, tpl)
		}
	}
	return result, nil
}

func (s *memTemplateStore) ListPatientsWithActiveTemplates(_ context.Context) ([]uuid.UUID, error) {
	seen := map[uuid.UUID]struct{}{}
	var result []uuid.UUID
	for _, tpl := range s.templates {
		if !tpl.IsActive {
			continue
		}
		if _, ok := seen[tpl.PatientID]; ok {
			continue
		}
		seen[tpl.PatientID] = struct{}{}
		result = append(result, tpl.PatientID)
	}
	return result, nil
}

// failingTemplateStore fails ListActiveByPatient for one patient, for batch
// error-containment tests.
type failingTemplateStore struct {
	memTemplateStore
	failFor uuid.UUID
}

func (s *failingTemplateStore) ListActiveByPatient(ctx context.Context, patientID uuid.UUID) ([]*models.TaskTemplate, error) {
	if patientID == s.failFor {
		return nil, fmt.Errorf("simulated store failure")
	}
	return s.memTemplateStore.ListActiveByPatient(ctx, patientID)
}

// memDirectory is an in-memory PatientDirectory.
type memDirectory struct {
	patients []*models.Patient
	orgs     []*models.Organization
}

func (d *memDirectory) GetPatient(_ context.Context, id uuid.UUID) (*models.Patient, error) {
	for _, p := range d.patients {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, fmt.Errorf("patient not found")
}

func (d *memDirectory) GetOrganization(_ context.Context, id uuid.UUID) (*models.Organization, error) {
	for _, o := range d.orgs {
		if o.ID == id {
			return o, nil
		}
	}
	return nil, fmt.Errorf("organization not found")
}

// memDiaryStore is an in-memory DiaryStore.
type memDiaryStore struct {
	diaries map[uuid.UUID]*models.Diary
	entries []*models.DiaryEntry
	fail    bool
}

func newMemDiaryStore() *memDiaryStore {
	return &memDiaryStore{diaries: make(map[uuid.UUID]*models.Diary)}
}

func (s *memDiaryStore) GetOrCreateForPatient(_ context.Context, patientID uuid.UUID) (*models.Diary, error) {
	if s.fail {
		return nil, fmt.Errorf("diary store unavailable")
	}
	if diary, ok := s.diaries[patientID]; ok {
		return diary, nil
	}
	diary := &models.Diary{ID: uuid.New(), PatientID: patientID}
	s.diaries[patientID] = diary
	return diary, nil
}

func (s *memDiaryStore) CreateEntry(_ context.Context, entry *models.DiaryEntry) error {
	if s.fail {
		return fmt.Errorf("diary store unavailable")
	}
	// Same contract as the SQL repository: duplicate ids are ignored.
	for _, existing := range s.entries {
		if existing.ID == entry.ID {
			return nil
		}
	}
	s.entries = append(s.entries, entry)
	return nil
}

// captureDispatcher records dispatched notifications.
type captureDispatcher struct {
	dispatched []Notification
}

func (d *captureDispatcher) Dispatch(_ context.Context, notifications []Notification) error {
	d.dispatched = append(d.dispatched, notifications...)
	return nil
}
