// Package models defines client-side data models used by the mealkeeper CLI.
package models

import "time"

// User is an account as reported by the server.
type User struct {
	ID       string `json:"userId"`
	UserName string `json:"username"`
}

// DeviceSession is one device's refresh token as listed by /sessions. The
// token value itself never leaves the server.
type DeviceSession struct {
	ID        string    `json:"id"`
	DeviceTag string    `json:"deviceTag"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Expired reports whether the session can no longer be refreshed at now.
func (s DeviceSession) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
