package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/carebook/routesheet/internal/models"
)

// UserRepository handles user directory lookups. Identity itself lives with
// the external provider; this table mirrors it.
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new user repository.
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, phone, name, provider_id, type, organization_id, roles, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	u := &models.User{}
	var roles pq.StringArray
	err := row.Scan(
		&u.ID,
		&u.Phone,
		&u.Name,
		&u.ProviderID,
		&u.Type,
		&u.OrganizationID,
		&roles,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.Roles = make([]models.Role, 0, len(roles))
	for _, r := range roles {
		u.Roles = append(u.Roles, models.Role(r))
	}
	return u, nil
}

// GetByID retrieves a user by ID. Returns nil if not found.
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users WHERE id = $1
	`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// GetByProviderID retrieves a user by the external identity provider's
// subject. Returns nil if not found.
func (r *UserRepository) GetByProviderID(ctx context.Context, providerID string) (*models.User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users WHERE provider_id = $1
	`, providerID)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by provider id: %w", err)
	}
	return u, nil
}

// ListByOrganizationAndRoles returns organization members holding any of the
// given roles.
func (r *UserRepository) ListByOrganizationAndRoles(ctx context.Context, orgID uuid.UUID, roles ...models.Role) ([]*models.User, error) {
	names := make([]string, 0, len(roles))
	for _, role := range roles {
		names = append(names, string(role))
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE organization_id = $1 AND roles && $2
		ORDER BY name ASC
	`, orgID, pq.Array(names))
	if err != nil {
		return nil, fmt.Errorf("list users by organization: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return out, nil
}
