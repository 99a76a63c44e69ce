package access

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/carebook/routesheet/internal/models"
)

// OrganizationGetter resolves organizations for membership checks.
type OrganizationGetter interface {
	GetOrganization(ctx context.Context, id uuid.UUID) (*models.Organization, error)
}

// AssignmentChecker resolves whether a user has task or template assignments
// for a patient.
type AssignmentChecker interface {
	IsUserAssignedToPatient(ctx context.Context, userID, patientID uuid.UUID) (bool, error)
}

// Checker decides which patients a user may act on.
type Checker struct {
	orgs        OrganizationGetter
	assignments AssignmentChecker
}

// NewChecker creates a new access checker.
func NewChecker(orgs OrganizationGetter, assignments AssignmentChecker) *Checker {
	return &Checker{orgs: orgs, assignments: assignments}
}

// CanAccessPatient reports whether the user may view and act on the
// patient's route sheet.
//
// Clients see only patients they own. Private caregivers see only assigned
// patients. Organization staff see patients of their own organization:
// owners and admins see all of them, boarding-house staff see all of them,
// agency staff see only assigned ones.
func (c *Checker) CanAccessPatient(ctx context.Context, user *models.User, patient *models.Patient) (bool, error) {
	if user == nil || patient == nil {
		return false, nil
	}

	if user.IsClient() {
		return patient.OwnerID != nil && *patient.OwnerID == user.ID, nil
	}

	if user.IsPrivateCaregiver() {
		return c.assignments.IsUserAssignedToPatient(ctx, user.ID, patient.ID)
	}

	if user.OrganizationID == nil {
		return false, nil
	}

	org, err := c.orgs.GetOrganization(ctx, *user.OrganizationID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load organization: %w", err)
	}

	if patient.OrganizationID == nil || *patient.OrganizationID != org.ID {
		return false, nil
	}

	if user.HasAnyRole(models.RoleOwner, models.RoleAdmin) {
		return true, nil
	}

	if org.IsBoardingHouse() {
		return true, nil
	}

	if org.IsAgency() {
		return c.assignments.IsUserAssignedToPatient(ctx, user.ID, patient.ID)
	}

	return false, nil
}
