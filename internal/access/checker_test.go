package access

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/carebook/routesheet/internal/models"
)

type mockOrgGetter struct {
	orgs map[uuid.UUID]*models.Organization
}

func (m *mockOrgGetter) GetOrganization(_ context.Context, id uuid.UUID) (*models.Organization, error) {
	return m.orgs[id], nil
}

type mockAssignments struct {
	assigned map[uuid.UUID]bool // keyed by user ID
}

func (m *mockAssignments) IsUserAssignedToPatient(_ context.Context, userID, _ uuid.UUID) (bool, error) {
	return m.assigned[userID], nil
}

func uuidPtr(id uuid.UUID) *uuid.UUID { return &id }

func TestChecker_CanAccessPatient(t *testing.T) {
	t.Parallel()

	clientID := uuid.New()
	caregiverID := uuid.New()
	adminID := uuid.New()
	staffID := uuid.New()
	outsiderID := uuid.New()

	boardingHouseID := uuid.New()
	agencyID := uuid.New()

	orgs := &mockOrgGetter{orgs: map[uuid.UUID]*models.Organization{
		boardingHouseID: {ID: boardingHouseID, Type: models.OrganizationTypeBoardingHouse, OwnerID: uuid.New()},
		agencyID:        {ID: agencyID, Type: models.OrganizationTypeAgency, OwnerID: uuid.New()},
	}}

	ownPatient := &models.Patient{ID: uuid.New(), OwnerID: uuidPtr(clientID)}
	bhPatient := &models.Patient{ID: uuid.New(), OrganizationID: uuidPtr(boardingHouseID)}
	agencyPatient := &models.Patient{ID: uuid.New(), OrganizationID: uuidPtr(agencyID)}

	tests := []struct {
		name     string
		user     *models.User
		patient  *models.Patient
		assigned bool
		want     bool
	}{
		{
			name:    "client accesses own patient",
			user:    &models.User{ID: clientID, Type: models.UserTypeClient},
			patient: ownPatient,
			want:    true,
		},
		{
			name:    "client denied for someone else's patient",
			user:    &models.User{ID: uuid.New(), Type: models.UserTypeClient},
			patient: ownPatient,
			want:    false,
		},
		{
			name:     "private caregiver with assignment",
			user:     &models.User{ID: caregiverID, Type: models.UserTypePrivateCaregiver},
			patient:  ownPatient,
			assigned: true,
			want:     true,
		},
		{
			name:    "private caregiver without assignment",
			user:    &models.User{ID: caregiverID, Type: models.UserTypePrivateCaregiver},
			patient: ownPatient,
			want:    false,
		},
		{
			name: "org admin sees all organization patients",
			user: &models.User{
				ID: adminID, Type: models.UserTypeOrganization,
				OrganizationID: uuidPtr(agencyID),
				Roles:          []models.Role{models.RoleAdmin},
			},
			patient: agencyPatient,
			want:    true,
		},
		{
			name: "boarding house staff see all organization patients",
			user: &models.User{
				ID: staffID, Type: models.UserTypeOrganization,
				OrganizationID: uuidPtr(boardingHouseID),
				Roles:          []models.Role{models.RoleCaregiver},
			},
			patient: bhPatient,
			want:    true,
		},
		{
			name: "agency caregiver needs assignment",
			user: &models.User{
				ID: staffID, Type: models.UserTypeOrganization,
				OrganizationID: uuidPtr(agencyID),
				Roles:          []models.Role{models.RoleCaregiver},
			},
			patient: agencyPatient,
			want:    false,
		},
		{
			name: "agency caregiver with assignment",
			user: &models.User{
				ID: staffID, Type: models.UserTypeOrganization,
				OrganizationID: uuidPtr(agencyID),
				Roles:          []models.Role{models.RoleCaregiver},
			},
			patient:  agencyPatient,
			assigned: true,
			want:     true,
		},
		{
			name: "staff denied for other organization's patient",
			user: &models.User{
				ID: staffID, Type: models.UserTypeOrganization,
				OrganizationID: uuidPtr(boardingHouseID),
				Roles:          []models.Role{models.RoleAdmin},
			},
			patient: agencyPatient,
			want:    false,
		},
		{
			name:    "user without organization denied",
			user:    &models.User{ID: outsiderID, Type: models.UserTypeOrganization},
			patient: bhPatient,
			want:    false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assignments := &mockAssignments{assigned: map[uuid.UUID]bool{tt.user.ID: tt.assigned}}
			checker := NewChecker(orgs, assignments)
			got, err := checker.CanAccessPatient(context.Background(), tt.user, tt.patient)
			if err != nil {
				t.Fatalf("CanAccessPatient: %v", err)
			}
			if got != tt.want {
				t.Errorf("CanAccessPatient() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestChecker_CanAccessPatient_NilInputs(t *testing.T) {
	t.Parallel()

	checker := NewChecker(&mockOrgGetter{}, &mockAssignments{})
	got, err := checker.CanAccessPatient(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("CanAccessPatient: %v", err)
	}
	if got {
		t.Error("expected nil inputs to be denied")
	}
}
