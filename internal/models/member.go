package models

// MemberStatus represents the standing of a library member
type MemberStatus string

const (
	MemberStatusActive    MemberStatus = "ACTIVE"
	MemberStatusSuspended MemberStatus = "SUSPENDED"
)

// DefaultMaxBooksAllowed applies when a member has no explicit limit
const DefaultMaxBooksAllowed = 5

// Member is the lending view of a user managed by the identity service
type Member struct {
	ID              int64        `json:"user_id" db:"user_id"`
	Username        string       `json:"username" db:"username"`
	Email           string       `json:"email" db:"email"`
	FirstName       string       `json:"first_name" db:"first_name"`
	LastName        string       `json:"last_name" db:"last_name"`
	MaxBooksAllowed int32        `json:"max_books_allowed" db:"max_books_allowed"`
	Status          MemberStatus `json:"status" db:"status"`
}

// FullName joins first and last name
func (m Member) FullName() string {
	switch {
	case m.FirstName == "":
		return m.LastName
	case m.LastName == "":
		return m.FirstName
	default:
		return m.FirstName + " " + m.LastName
	}
}
