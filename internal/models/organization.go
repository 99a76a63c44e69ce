package models

import (
	"time"

	"github.com/google/uuid"
)

// OrganizationType distinguishes care agencies from boarding houses.
type OrganizationType string

const (
	OrganizationTypeAgency        OrganizationType = "agency"
	OrganizationTypeBoardingHouse OrganizationType = "boarding_house"
)

// Organization represents a care organization.
type Organization struct {
	ID        uuid.UUID        `json:"id"`
	Name      string           `json:"name"`
	Type      OrganizationType `json:"type"`
	OwnerID   uuid.UUID        `json:"owner_id"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// IsAgency reports whether the organization is a care agency.
func (o *Organization) IsAgency() bool {
	return o.Type == OrganizationTypeAgency
}

// IsBoardingHouse reports whether the organization is a boarding house.
func (o *Organization) IsBoardingHouse() bool {
	return o.Type == OrganizationTypeBoardingHouse
}
