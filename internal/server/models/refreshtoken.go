package models

import "time"

// RefreshToken is one outstanding device session. Token is unique across all
// rows; rotation replaces Token and ExpiresAt while ID stays stable.
type RefreshToken struct {
	ID        string
	UserID    string
	Token     string
	DeviceTag string
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Expired reports whether the token is no longer usable at now.
// A token is valid strictly before ExpiresAt.
func (t *RefreshToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
