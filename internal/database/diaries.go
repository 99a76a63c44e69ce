package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/carebook/routesheet/internal/models"
)

// DiaryRepository handles diary and diary entry persistence.
type DiaryRepository struct {
	db *DB
}

// NewDiaryRepository creates a new diary repository.
func NewDiaryRepository(db *DB) *DiaryRepository {
	return &DiaryRepository{db: db}
}

// GetOrCreateForPatient returns the patient's diary, creating it on first
// use. The unique index on patient_id makes concurrent first writes converge
// on one row.
func (r *DiaryRepository) GetOrCreateForPatient(ctx context.Context, patientID uuid.UUID) (*models.Diary, error) {
	now := time.Now()
	d := &models.Diary{}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO diaries (id, patient_id, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (patient_id) DO UPDATE SET updated_at = diaries.updated_at
		RETURNING id, patient_id, created_at, updated_at
	`, uuid.New(), patientID, now).Scan(&d.ID, &d.PatientID, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get or create diary: %w", err)
	}
	return d, nil
}

// CreateEntry inserts a diary entry. Entries are immutable once written;
// an insert with an already-stored id is ignored, so callers that derive
// the id from the source task can safely run again on redelivery.
func (r *DiaryRepository) CreateEntry(ctx context.Context, e *models.DiaryEntry) error {
	value, err := json.Marshal(e.Value)
	if err != nil {
		return fmt.Errorf("marshal diary value: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO diary_entries (id, diary_id, author_id, type, key, value, notes, recorded_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`, e.ID, e.DiaryID, e.AuthorID, e.Type, e.Key, value, e.Notes, e.RecordedAt, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("create diary entry: %w", err)
	}
	return nil
}

// ListEntries returns a diary's entries, newest first.
func (r *DiaryRepository) ListEntries(ctx context.Context, diaryID uuid.UUID, limit int) ([]*models.DiaryEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, diary_id, author_id, type, key, value, notes, recorded_at, created_at
		FROM diary_entries
		WHERE diary_id = $1
		ORDER BY recorded_at DESC
		LIMIT $2
	`, diaryID, limit)
	if err != nil {
		return nil, fmt.Errorf("list diary entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*models.DiaryEntry
	for rows.Next() {
		e := &models.DiaryEntry{}
		var value []byte
		if err := rows.Scan(&e.ID, &e.DiaryID, &e.AuthorID, &e.Type, &e.Key, &value, &e.Notes, &e.RecordedAt, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan diary entry: %w", err)
		}
		if value != nil {
			if err := json.Unmarshal(value, &e.Value); err != nil {
				return nil, fmt.Errorf("unmarshal diary value: %w", err)
			}
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate diary entries: %w", err)
	}
	return out, nil
}
