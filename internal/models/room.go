package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Room is a named, role-gated channel. AllowedRoles is stored as a JSON
// array string and parsed at the boundary.
type Room struct {
	ID           int       `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Description  string    `db:"description" json:"description"`
	AllowedRoles string    `db:"allowed_roles" json:"-"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	CreatedBy    string    `db:"created_by" json:"created_by"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Roles decodes the stored allowed-role list, rejecting unknown roles.
func (r Room) Roles() ([]Role, error) {
	var raw []string
	if err := json.Unmarshal([]byte(r.AllowedRoles), &raw); err != nil {
		return nil, fmt.Errorf("room %s allowed_roles: %w", r.Name, err)
	}
	roles := make([]Role, 0, len(raw))
	for _, s := range raw {
		role, err := ParseRole(s)
		if err != nil {
			return nil, fmt.Errorf("room %s allowed_roles: %w", r.Name, err)
		}
		roles = append(roles, role)
	}
	return roles, nil
}

// Permits reports whether the role may post in this room. An unparsable
// role list denies everyone rather than failing open.
func (r Room) Permits(role Role) bool {
	roles, err := r.Roles()
	if err != nil {
		return false
	}
	for _, allowed := range roles {
		if allowed == role {
			return true
		}
	}
	return false
}

// EncodeRoles renders a role list in the stored JSON form.
func EncodeRoles(roles []Role) string {
	raw := make([]string, len(roles))
	for i, r := range roles {
		raw[i] = string(r)
	}
	b, _ := json.Marshal(raw)
	return string(b)
}
