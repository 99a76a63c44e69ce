package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/carebook/routesheet/internal/models"
)

// TaskRepository handles task persistence.
type TaskRepository struct {
	db *DB
}

// NewTaskRepository creates a new task repository.
func NewTaskRepository(db *DB) *TaskRepository {
	return &TaskRepository{db: db}
}

const taskColumns = `
	id, patient_id, template_id, assigned_to, title,
	start_at, end_at, original_start_at, original_end_at,
	status, priority,
	completed_at, completed_by, comment, photos,
	reschedule_reason, rescheduled_by, rescheduled_at,
	related_diary_key, created_at, updated_at
`

func scanTask(row interface{ Scan(...any) error }) (*models.Task, error) {
	t := &models.Task{}
	err := row.Scan(
		&t.ID,
		&t.PatientID,
		&t.TemplateID,
		&t.AssignedTo,
		&t.Title,
		&t.StartAt,
		&t.EndAt,
		&t.OriginalStartAt,
		&t.OriginalEndAt,
		&t.Status,
		&t.Priority,
		&t.CompletedAt,
		&t.CompletedBy,
		&t.Comment,
		pq.Array(&t.Photos),
		&t.RescheduleReason,
		&t.RescheduledBy,
		&t.RescheduledAt,
		&t.RelatedDiaryKey,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// GetByID retrieves a task by ID. Wraps sql.ErrNoRows when missing.
func (r *TaskRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+taskColumns+` FROM tasks WHERE id = $1
	`, id)
	t, err := scanTask(row)
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// Create inserts a task unconditionally.
func (r *TaskRepository) Create(ctx context.Context, t *models.Task) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
		        $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
	`, taskArgs(t)...)
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// CreateIfAbsent inserts a generated task unless its slot is taken. The
// partial unique index on (patient_id, template_id, start_at) arbitrates
// concurrent generator runs.
func (r *TaskRepository) CreateIfAbsent(ctx context.Context, t *models.Task) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
		        $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		ON CONFLICT (patient_id, template_id, start_at) WHERE template_id IS NOT NULL
		DO NOTHING
	`, taskArgs(t)...)
	if err != nil {
		return false, fmt.Errorf("create task if absent: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("create task if absent: %w", err)
	}
	return n == 1, nil
}

func taskArgs(t *models.Task) []any {
	return []any{
		t.ID, t.PatientID, t.TemplateID, t.AssignedTo, t.Title,
		t.StartAt, t.EndAt, t.OriginalStartAt, t.OriginalEndAt,
		t.Status, t.Priority,
		t.CompletedAt, t.CompletedBy, t.Comment, pq.Array(t.Photos),
		t.RescheduleReason, t.RescheduledBy, t.RescheduledAt,
		t.RelatedDiaryKey, t.CreatedAt, t.UpdatedAt,
	}
}

// UpdateIfPending persists the task's mutable fields only while the stored
// row is still pending. Returns false when the conditional update loses.
func (r *TaskRepository) UpdateIfPending(ctx context.Context, t *models.Task) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE tasks SET
			assigned_to = $2,
			title = $3,
			start_at = $4,
			end_at = $5,
			original_start_at = $6,
			original_end_at = $7,
			status = $8,
			priority = $9,
			completed_at = $10,
			completed_by = $11,
			comment = $12,
			photos = $13,
			reschedule_reason = $14,
			rescheduled_by = $15,
			rescheduled_at = $16,
			updated_at = $17
		WHERE id = $1 AND status = 'pending'
	`, t.ID, t.AssignedTo, t.Title, t.StartAt, t.EndAt,
		t.OriginalStartAt, t.OriginalEndAt, t.Status, t.Priority,
		t.CompletedAt, t.CompletedBy, t.Comment, pq.Array(t.Photos),
		t.RescheduleReason, t.RescheduledBy, t.RescheduledAt, t.UpdatedAt)
	if err != nil {
		return false, fmt.Errorf("update task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update task: %w", err)
	}
	return n == 1, nil
}

// DeleteIfDeletable removes the task only while pending or cancelled.
func (r *TaskRepository) DeleteIfDeletable(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM tasks WHERE id = $1 AND status IN ('pending', 'cancelled')
	`, id)
	if err != nil {
		return false, fmt.Errorf("delete task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete task: %w", err)
	}
	return n == 1, nil
}

// MarkOverdueMissed bulk-transitions pending tasks past the cutoff to missed,
// stamping completed_at and updated_at with the caller's now. completed_by
// stays NULL so automatic misses are distinguishable from caregiver-reported
// ones.
func (r *TaskRepository) MarkOverdueMissed(ctx context.Context, cutoff, now time.Time, comment string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE tasks SET
			status = 'missed',
			completed_at = $2,
			comment = $3,
			updated_at = $2
		WHERE status = 'pending' AND end_at < $1
	`, cutoff, now, comment)
	if err != nil {
		return 0, fmt.Errorf("mark overdue missed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark overdue missed: %w", err)
	}
	return n, nil
}

// ListOverduePending returns pending tasks whose end_at is before cutoff.
func (r *TaskRepository) ListOverduePending(ctx context.Context, cutoff time.Time) ([]*models.Task, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE status = 'pending' AND end_at < $1
		ORDER BY end_at ASC
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list overdue tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return collectTasks(rows)
}

// DeleteFuturePending removes pending tasks generated from a template that
// start after the given instant. Completed, missed and cancelled history
// stays behind.
func (r *TaskRepository) DeleteFuturePending(ctx context.Context, templateID uuid.UUID, after time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM tasks
		WHERE template_id = $1 AND status = 'pending' AND start_at > $2
	`, templateID, after)
	if err != nil {
		return 0, fmt.Errorf("delete future pending tasks: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete future pending tasks: %w", err)
	}
	return n, nil
}

// ListByPatientAndRange returns a patient's tasks with start_at inside
// [from, to), ordered for route-sheet display.
func (r *TaskRepository) ListByPatientAndRange(ctx context.Context, patientID uuid.UUID, from, to time.Time) ([]*models.Task, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE patient_id = $1 AND start_at >= $2 AND start_at < $3
		ORDER BY start_at ASC, priority DESC
	`, patientID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list tasks by patient: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return collectTasks(rows)
}

// ListByAssigneeAndRange returns tasks assigned to a user with start_at
// inside [from, to).
func (r *TaskRepository) ListByAssigneeAndRange(ctx context.Context, assigneeID uuid.UUID, from, to time.Time) ([]*models.Task, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE assigned_to = $1 AND start_at >= $2 AND start_at < $3
		ORDER BY start_at ASC
	`, assigneeID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list tasks by assignee: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return collectTasks(rows)
}

// CountOverlappingPending returns, per user, the number of pending tasks
// overlapping [start, end). Users without overlapping tasks are absent from
// the map.
func (r *TaskRepository) CountOverlappingPending(ctx context.Context, userIDs []uuid.UUID, start, end time.Time) (map[uuid.UUID]int, error) {
	if len(userIDs) == 0 {
		return map[uuid.UUID]int{}, nil
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT assigned_to, COUNT(*) FROM tasks
		WHERE assigned_to = ANY($1)
		  AND status = 'pending'
		  AND start_at < $3 AND end_at > $2
		GROUP BY assigned_to
	`, pq.Array(userIDs), start, end)
	if err != nil {
		return nil, fmt.Errorf("count overlapping tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[uuid.UUID]int)
	for rows.Next() {
		var id uuid.UUID
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("count overlapping tasks: %w", err)
		}
		counts[id] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("count overlapping tasks: %w", err)
	}
	return counts, nil
}

func collectTasks(rows *sql.Rows) ([]*models.Task, error) {
	var out []*models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return out, nil
}
