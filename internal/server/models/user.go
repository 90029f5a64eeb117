// Package models holds the server-side records shared by repositories,
// services and the HTTP layer.
package models

import "time"

// User is a registered account. Only PasswordHash ever changes.
type User struct {
	ID           string
	UserName     string
	PasswordHash []byte
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
