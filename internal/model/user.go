package model

import "time"

// Role is the capability level of a user.  Only two values exist and
// they are compared by equality; there is no role hierarchy.
type Role string

const (
	RoleDeveloper Role = "developer" // authors and edits decisions
	RolePartner   Role = "partner"   // approves pending decisions
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleDeveloper || r == RolePartner
}

// User represents an application user record as stored in the
// `users` table.  Users are created out-of-band (see cmd/userctl);
// the service itself never registers or mutates them.
//
// Fields:
//  ID           – primary key identifier.
//  Email        – unique, lower-cased email address.
//  PasswordHash – bcrypt hashed password.
//  Role         – developer or partner.
//  CreatedAt    – timestamp of creation.
type User struct {
	ID           uint64    `json:"id"`    // users.id
	Email        string    `json:"email"` // users.email
	PasswordHash string    `json:"-"`     // users.password_hash
	Role         Role      `json:"role"`  // users.role
	CreatedAt    time.Time `json:"-"`     // users.created_at
}

// Session models an entry in the `sessions` table.  The token is an
// opaque random string handed to the client; it is stored as-is so a
// lookup is a single indexed equality match.
type Session struct {
	ID        uint64    // sessions.id
	UserID    uint64    // sessions.user_id
	Token     string    // sessions.session_token
	CreatedAt time.Time // sessions.created_at
}
