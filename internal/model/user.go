package model

import "time"

// Roles understood by the engine. USER owns and edits slots, ADMIN
// approves/rejects/refunds and runs provisioning, DEVELOPER is an
// ADMIN superset used by internal tooling.
const (
	RoleUser      = "USER"
	RoleAdmin     = "ADMIN"
	RoleDeveloper = "DEVELOPER"
)

// User represents an application user record as stored in the `users`
// table. The engine itself only consumes the (ID, Role) pair; the rest
// exists for the auth endpoints that issue tokens.
//
// Fields:
//
//	ID           – primary key identifier of the user.
//	Email        – unique email address.
//	PasswordHash – bcrypt hashed password.
//	Role         – role name (USER, ADMIN or DEVELOPER).
//	IsActive     – whether the account is active.
//	CreatedAt    – timestamp of creation.
//	UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64    // users.id
	Email        string    // users.email
	PasswordHash string    // users.password_hash
	Role         string    // users.role
	IsActive     bool      // users.is_active
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}

// IsAdmin reports whether the role carries administrator powers.
func IsAdmin(role string) bool { return role == RoleAdmin || role == RoleDeveloper }

// RefreshToken models an entry in the `refresh_tokens` table. Only the
// SHA-256 hash of the raw token is stored.
//
// Fields:
//
//	ID        – primary key identifier.
//	UserID    – owner of the token.
//	TokenHash – SHA-256 hex digest of the token value.
//	ExpiresAt – expiration timestamp of the token.
//	RevokedAt – when the token was revoked (null if still active).
//	CreatedAt – timestamp of creation.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    uint64     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}
