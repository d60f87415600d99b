package model

import "time"

// Role is a user's authorization level.
type Role string

const (
	// RoleControlTower administers the portfolio and approves gate forms.
	RoleControlTower Role = "control_tower"
	// RoleSTO edits gate forms but cannot approve them.
	RoleSTO Role = "sto"
	// RoleSLT is view-only leadership.
	RoleSLT Role = "slt"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// IsValid checks whether the role is a known value.
func (r Role) IsValid() bool {
	switch r {
	case RoleControlTower, RoleSTO, RoleSLT:
		return true
	}
	return false
}

// IsEditor reports whether the role may author gate forms and statuses.
func (r Role) IsEditor() bool {
	return r == RoleControlTower || r == RoleSTO
}

// UserRole is the role assignment for one user.
type UserRole struct {
	UserID      string    `json:"userId"`
	Role        Role      `json:"role"`
	ValueStream string    `json:"valueStream,omitempty"`
	AssignedBy  string    `json:"assignedBy,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
