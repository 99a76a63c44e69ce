package models

import (
	"time"

	"github.com/google/uuid"
)

// Patient represents a person under care. A patient belongs either to a
// client (OwnerID) or to an organization, never to both sides exclusively:
// an organization patient still records the client who created it.
type Patient struct {
	ID             uuid.UUID  `json:"id"`
	Name           string     `json:"name"`
	OwnerID        *uuid.UUID `json:"owner_id,omitempty"`
	CreatorID      uuid.UUID  `json:"creator_id"`
	OrganizationID *uuid.UUID `json:"organization_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
