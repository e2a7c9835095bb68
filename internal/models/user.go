package models

import (
	"github.com/golang-jwt/jwt/v5"
)

type UserRole string

const (
	RoleAdmin     UserRole = "admin"
	RoleLibrarian UserRole = "librarian"
	RoleMember    UserRole = "member"
)

// IsStaff reports whether the role may act on other members' records
func (r UserRole) IsStaff() bool {
	return r == RoleAdmin || r == RoleLibrarian
}

// Identity is the authenticated caller of a lifecycle operation
type Identity struct {
	UserID   int64    `json:"user_id"`
	Username string   `json:"username"`
	Role     UserRole `json:"role"`
}

// IsStaff reports whether the caller is an administrator or librarian
func (i Identity) IsStaff() bool {
	return i.Role.IsStaff()
}

// CanActFor reports whether the caller may act on records owned by userID
func (i Identity) CanActFor(userID int64) bool {
	return i.IsStaff() || i.UserID == userID
}

// SystemIdentity is used by background jobs such as the expiry sweep
var SystemIdentity = Identity{UserID: 0, Username: "system", Role: RoleAdmin}

type JWTClaims struct {
	UserID   int64    `json:"user_id"`
	Username string   `json:"username"`
	Role     UserRole `json:"role"`
	jwt.RegisteredClaims
}

// Identity converts verified claims into a caller identity
func (c *JWTClaims) Identity() Identity {
	return Identity{UserID: c.UserID, Username: c.Username, Role: c.Role}
}
