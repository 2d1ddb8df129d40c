package model

import "time"

// Role names stored in the users.role column and embedded in JWT claims.
const (
	RoleAdmin     = "ADMIN"
	RolePassenger = "PASSENGER"
)

// User represents an application user record as stored in the
// `users` table. Each field corresponds to a column in the
// database. The json tags are omitted here because these structs
// are primarily used internally by the repository layer; handlers
// may define separate response types with appropriate JSON tags.
//
// Fields:
//
//	ID           – primary key identifier of the user.
//	Email        – unique email address.
//	Username     – display name shown on passenger lists.
//	PasswordHash – bcrypt hashed password.
//	Role         – name of the role (ADMIN or PASSENGER).
//	Phone        – optional contact phone number.
//	OnCampus     – whether the user's last finalized trip ended at the
//	               configured campus location. Mutated only by schedule
//	               finalization.
//	IsActive     – whether the account is active.
//	CreatedAt    – timestamp of creation.
//	UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64    // users.id
	Email        string    // users.email
	Username     string    // users.username
	PasswordHash string    // users.password_hash
	Role         string    // users.role
	Phone        *string   // users.phone (nullable)
	OnCampus     bool      // users.on_campus
	IsActive     bool      // users.is_active
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}
