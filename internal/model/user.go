package model

import "time"

// User is a wishlist owner account.
type User struct {
	ID           string
	Email        string // unique, stored lowercased
	PasswordHash string
	FullName     *string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RefreshToken is a stored owner session.  Only the SHA-256 hex digest of
// the token is kept; a non-nil RevokedAt means it has been used or revoked.
type RefreshToken struct {
	ID        uint64
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}
