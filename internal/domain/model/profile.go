package model

import "time"

// Profile mirrors the auth provider's profile record. It is the single source
// of truth for a user's role; an absent profile means a plain user.
type Profile struct {
	UserID      string
	DisplayName string
	Email       string
	Role        Role
	CreatedAt   time.Time
}
