package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/urbanserve/identity/pkg/domain"
)

// RBACRepository handles the role/group/permission graph.
type RBACRepository struct {
	db *sql.DB
}

// NewRBACRepository creates a new RBAC repository.
func NewRBACRepository(db *sql.DB) *RBACRepository {
	return &RBACRepository{db: db}
}

// EffectiveRoles returns the roles whose assignment window covers now.
func (r *RBACRepository) EffectiveRoles(ctx context.Context, userID uuid.UUID) ([]domain.Role, error) {
	query := `
		SELECT r.id, r.name, r.description, r.created_at, r.updated_at
		FROM roles r
		JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = $1
		  AND ur.valid_from <= NOW()
		  AND (ur.valid_until IS NULL OR ur.valid_until > NOW())
		ORDER BY r.name
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []domain.Role
	for rows.Next() {
		var role domain.Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// EffectiveGroups returns the groups whose assignment window covers now.
func (r *RBACRepository) EffectiveGroups(ctx context.Context, userID uuid.UUID) ([]domain.Group, error) {
	query := `
		SELECT g.id, g.name, g.description, g.created_at, g.updated_at
		FROM groups g
		JOIN user_groups ug ON ug.group_id = g.id
		WHERE ug.user_id = $1
		  AND ug.valid_from <= NOW()
		  AND (ug.valid_until IS NULL OR ug.valid_until > NOW())
		ORDER BY g.name
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []domain.Group
	for rows.Next() {
		var group domain.Group
		if err := rows.Scan(&group.ID, &group.Name, &group.Description, &group.CreatedAt, &group.UpdatedAt); err != nil {
			return nil, err
		}
		groups = append(groups, group)
	}
	return groups, rows.Err()
}

// EffectivePermissions returns the de-duplicated union of permissions
// granted through currently effective role and group assignments.
func (r *RBACRepository) EffectivePermissions(ctx context.Context, userID uuid.UUID) ([]domain.Permission, error) {
	query := `
		SELECT p.id, p.name, p.description, p.created_at
		FROM permissions p
		JOIN role_permissions rp ON rp.permission_id = p.id
		JOIN user_roles ur ON ur.role_id = rp.role_id
		WHERE ur.user_id = $1
		  AND ur.valid_from <= NOW()
		  AND (ur.valid_until IS NULL OR ur.valid_until > NOW())
		UNION
		SELECT p.id, p.name, p.description, p.created_at
		FROM permissions p
		JOIN group_permissions gp ON gp.permission_id = p.id
		JOIN user_groups ug ON ug.group_id = gp.group_id
		WHERE ug.user_id = $1
		  AND ug.valid_from <= NOW()
		  AND (ug.valid_until IS NULL OR ug.valid_until > NOW())
		ORDER BY name
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var permissions []domain.Permission
	for rows.Next() {
		var perm domain.Permission
		if err := rows.Scan(&perm.ID, &perm.Name, &perm.Description, &perm.CreatedAt); err != nil {
			return nil, err
		}
		permissions = append(permissions, perm)
	}
	return permissions, rows.Err()
}

// GetRoleByName retrieves a role by name.
func (r *RBACRepository) GetRoleByName(ctx context.Context, name string) (*domain.Role, error) {
	query := `SELECT id, name, description, created_at, updated_at FROM roles WHERE name = $1`
	role := &domain.Role{}
	err := r.db.QueryRowContext(ctx, query, name).Scan(
		&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRoleNotFound
	}
	if err != nil {
		return nil, err
	}
	return role, nil
}

// AssignRole links a user to a role for the given window. A nil
// validUntil means the assignment does not expire.
func (r *RBACRepository) AssignRole(ctx context.Context, userID, roleID uuid.UUID, validFrom time.Time, validUntil *time.Time) error {
	query := `
		INSERT INTO user_roles (id, user_id, role_id, valid_from, valid_until, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`
	_, err := r.db.ExecContext(ctx, query, uuid.New(), userID, roleID, validFrom, validUntil)
	return err
}

// AssignGroup links a user to a group for the given window.
func (r *RBACRepository) AssignGroup(ctx context.Context, userID, groupID uuid.UUID, validFrom time.Time, validUntil *time.Time) error {
	query := `
		INSERT INTO user_groups (id, user_id, group_id, valid_from, valid_until, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`
	_, err := r.db.ExecContext(ctx, query, uuid.New(), userID, groupID, validFrom, validUntil)
	return err
}
