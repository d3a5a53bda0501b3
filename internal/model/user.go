package model

import (
	"strings"
	"time"
)

// Roles understood by the role middleware.
const (
	RoleDriver    = "DRIVER"
	RoleAreaOwner = "AREA_OWNER"
	RoleAdmin     = "ADMIN"
	RoleGuard     = "GUARD"
)

// NormalizeRole maps a stored or requested role onto a known one.  Unknown
// values become DRIVER.
func NormalizeRole(s string) string {
	switch r := strings.ToUpper(strings.TrimSpace(s)); r {
	case RoleAreaOwner, RoleAdmin, RoleGuard:
		return r
	}
	return RoleDriver
}

// OfficialRole accepts the roles that need an administrator's approval or
// an administrator to create them: AREA_OWNER and ADMIN.
func OfficialRole(s string) (string, bool) {
	switch r := strings.ToUpper(strings.TrimSpace(s)); r {
	case RoleAreaOwner, RoleAdmin:
		return r, true
	}
	return "", false
}

// User represents an application user record as stored in the
// `users` table. Each field corresponds to a column in the
// database.
//
// Fields:
//
//	ID           – primary key identifier of the user.
//	Name         – display name.
//	Email        – unique email address.
//	Phone        – contact number (optional).
//	PasswordHash – bcrypt hashed password.
//	Role         – DRIVER, AREA_OWNER, ADMIN or GUARD.
//	Lat, Lon     – last reported location, nil when never set.
//	IsActive     – false for officials awaiting approval and fired guards.
//	AreaID       – the area a guard works at.
type User struct {
	ID           uint64    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	Lat          *float64  `json:"lat,omitempty"`
	Lon          *float64  `json:"lon,omitempty"`
	IsActive     bool      `json:"isActive"`
	AreaID       *uint64   `json:"areaId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// RefreshToken models an entry in the `refresh_tokens` table.  The plain
// token is not stored; only its SHA-256 hash.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    uint64     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}
