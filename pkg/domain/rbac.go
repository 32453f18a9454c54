package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role is a named bundle of permissions assignable to users.
type Role struct {
	ID          uuid.UUID
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Group is a named collection of users that can also carry permissions.
type Group struct {
	ID          uuid.UUID
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Permission is a single named capability, e.g. "orders.read".
type Permission struct {
	ID          uuid.UUID
	Name        string
	Description string
	CreatedAt   time.Time
}

// RoleAssignment links a user to a role for a bounded time window.
// A nil ValidUntil means the assignment does not expire.
type RoleAssignment struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	RoleID     uuid.UUID
	ValidFrom  time.Time
	ValidUntil *time.Time
	CreatedAt  time.Time
}

// IsEffective reports whether the assignment is valid at the given time.
func (a *RoleAssignment) IsEffective(at time.Time) bool {
	if at.Before(a.ValidFrom) {
		return false
	}
	return a.ValidUntil == nil || at.Before(*a.ValidUntil)
}

// GroupAssignment links a user to a group for a bounded time window.
type GroupAssignment struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	GroupID    uuid.UUID
	ValidFrom  time.Time
	ValidUntil *time.Time
	CreatedAt  time.Time
}

// IsEffective reports whether the assignment is valid at the given time.
func (a *GroupAssignment) IsEffective(at time.Time) bool {
	if at.Before(a.ValidFrom) {
		return false
	}
	return a.ValidUntil == nil || at.Before(*a.ValidUntil)
}

// AccessProfile is the resolved authorization view of a user: role and
// group names from currently effective assignments, plus the de-duplicated
// union of permissions granted through both.
type AccessProfile struct {
	Roles       []string
	Groups      []string
	Permissions []string
}
