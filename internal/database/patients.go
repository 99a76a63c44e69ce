package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/carebook/routesheet/internal/models"
)

// PatientRepository handles patient persistence.
type PatientRepository struct {
	db *DB
}

// NewPatientRepository creates a new patient repository.
func NewPatientRepository(db *DB) *PatientRepository {
	return &PatientRepository{db: db}
}

const patientColumns = `id, name, owner_id, creator_id, organization_id, created_at, updated_at`

func scanPatient(row interface{ Scan(...any) error }) (*models.Patient, error) {
	p := &models.Patient{}
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.OwnerID,
		&p.CreatorID,
		&p.OrganizationID,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// GetPatient retrieves a patient by ID. Wraps sql.ErrNoRows when missing.
func (r *PatientRepository) GetPatient(ctx context.Context, id uuid.UUID) (*models.Patient, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+patientColumns+` FROM patients WHERE id = $1
	`, id)
	p, err := scanPatient(row)
	if err != nil {
		return nil, fmt.Errorf("get patient: %w", err)
	}
	return p, nil
}

// GetOrganization retrieves an organization by ID. Wraps sql.ErrNoRows when
// missing.
func (r *PatientRepository) GetOrganization(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, type, owner_id, created_at, updated_at
		FROM organizations WHERE id = $1
	`, id)
	o := &models.Organization{}
	err := row.Scan(&o.ID, &o.Name, &o.Type, &o.OwnerID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get organization: %w", err)
	}
	return o, nil
}

// IsUserAssignedToPatient reports whether the user has any task or active
// template assignment for the patient.
func (r *PatientRepository) IsUserAssignedToPatient(ctx context.Context, userID, patientID uuid.UUID) (bool, error) {
	var assigned bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM tasks WHERE patient_id = $2 AND assigned_to = $1
			UNION ALL
			SELECT 1 FROM task_templates WHERE patient_id = $2 AND assigned_to = $1 AND is_active = true
		)
	`, userID, patientID).Scan(&assigned)
	if err != nil {
		return false, fmt.Errorf("check caregiver assignment: %w", err)
	}
	return assigned, nil
}
