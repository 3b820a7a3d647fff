package domain

import (
	"strings"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// ParseRole accepts the bare role name as well as the "ROLE_" prefixed form.
func ParseRole(value string) (Role, bool) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	normalized = strings.TrimPrefix(normalized, "ROLE_")
	switch Role(normalized) {
	case RoleUser:
		return RoleUser, true
	case RoleAdmin:
		return RoleAdmin, true
	}
	return "", false
}

// Principal is the authenticated caller as supplied by the identity boundary.
type Principal struct {
	ID   uuid.UUID
	Role Role
}

func (p Principal) IsAnonymous() bool {
	return p.ID == uuid.Nil
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// User is the minimal owner record read from the externally managed user_account table.
type User struct {
	ID          uuid.UUID `db:"id" json:"id"`
	DisplayName string    `db:"display_name" json:"display_name"`
	Role        Role      `db:"role" json:"role"`
}
