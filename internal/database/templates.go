package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/carebook/routesheet/internal/models"
)

// TemplateRepository handles task template persistence.
type TemplateRepository struct {
	db *DB
}

// NewTemplateRepository creates a new template repository.
func NewTemplateRepository(db *DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

const templateColumns = `
	id, patient_id, creator_id, assigned_to, title,
	days_of_week, time_ranges, start_date, end_date,
	is_active, related_diary_key, created_at, updated_at
`

func scanTemplate(row interface{ Scan(...any) error }) (*models.TaskTemplate, error) {
	t := &models.TaskTemplate{}
	var days, ranges []byte
	err := row.Scan(
		&t.ID,
		&t.PatientID,
		&t.CreatorID,
		&t.AssignedTo,
		&t.Title,
		&days,
		&ranges,
		&t.StartDate,
		&t.EndDate,
		&t.IsActive,
		&t.RelatedDiaryKey,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	// days_of_week NULL means every day; keep the slice nil.
	if days != nil {
		if err := json.Unmarshal(days, &t.DaysOfWeek); err != nil {
			return nil, fmt.Errorf("unmarshal days_of_week: %w", err)
		}
	}
	if ranges != nil {
		if err := json.Unmarshal(ranges, &t.TimeRanges); err != nil {
			return nil, fmt.Errorf("unmarshal time_ranges: %w", err)
		}
	}
	return t, nil
}

func templateArgs(t *models.TaskTemplate) ([]any, error) {
	var days []byte
	if t.DaysOfWeek != nil {
		b, err := json.Marshal(t.DaysOfWeek)
		if err != nil {
			return nil, fmt.Errorf("marshal days_of_week: %w", err)
		}
		days = b
	}
	ranges, err := json.Marshal(t.TimeRanges)
	if err != nil {
		return nil, fmt.Errorf("marshal time_ranges: %w", err)
	}
	return []any{
		t.ID, t.PatientID, t.CreatorID, t.AssignedTo, t.Title,
		days, ranges, t.StartDate, t.EndDate,
		t.IsActive, t.RelatedDiaryKey, t.CreatedAt, t.UpdatedAt,
	}, nil
}

// GetByID retrieves a template by ID. Returns nil if not found.
func (r *TemplateRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.TaskTemplate, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+templateColumns+` FROM task_templates WHERE id = $1
	`, id)
	t, err := scanTemplate(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	return t, nil
}

// Create inserts a new template.
func (r *TemplateRepository) Create(ctx context.Context, t *models.TaskTemplate) error {
	args, err := templateArgs(t)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO task_templates (`+templateColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, args...)
	if err != nil {
		return fmt.Errorf("create template: %w", err)
	}
	return nil
}

// Update persists the template's mutable fields.
func (r *TemplateRepository) Update(ctx context.Context, t *models.TaskTemplate) error {
	args, err := templateArgs(t)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE task_templates SET
			assigned_to = $4,
			title = $5,
			days_of_week = $6,
			time_ranges = $7,
			start_date = $8,
			end_date = $9,
			is_active = $10,
			related_diary_key = $11,
			updated_at = $13
		WHERE id = $1
	`, args...)
	if err != nil {
		return fmt.Errorf("update template: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update template: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a template. Generated tasks keep their template_id and are
// handled separately by the generator's cleanup.
func (r *TemplateRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM task_templates WHERE id = $1
	`, id)
	if err != nil {
		return false, fmt.Errorf("delete template: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete template: %w", err)
	}
	return n == 1, nil
}

// ListByPatient returns all templates for a patient, newest first.
func (r *TemplateRepository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*models.TaskTemplate, error) {
	return r.listByPatient(ctx, patientID, false)
}

// ListActiveByPatient returns the patient's active templates.
func (r *TemplateRepository) ListActiveByPatient(ctx context.Context, patientID uuid.UUID) ([]*models.TaskTemplate, error) {
	return r.listByPatient(ctx, patientID, true)
}

func (r *TemplateRepository) listByPatient(ctx context.Context, patientID uuid.UUID, activeOnly bool) ([]*models.TaskTemplate, error) {
	query := `SELECT ` + templateColumns + ` FROM task_templates WHERE patient_id = $1`
	if activeOnly {
		query += ` AND is_active = true`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, patientID)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*models.TaskTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate templates: %w", err)
	}
	return out, nil
}

// ListPatientsWithActiveTemplates returns the distinct patients that have at
// least one active template whose window could still produce tasks.
func (r *TemplateRepository) ListPatientsWithActiveTemplates(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT patient_id FROM task_templates
		WHERE is_active = true AND (end_date IS NULL OR end_date >= $1)
	`, time.Now().Truncate(24*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("list patients with templates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan patient id: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate patient ids: %w", err)
	}
	return out, nil
}
