package models

import "time"

// Principal is the identity carried by a verified access token.
type Principal struct {
	UserID    string
	UserName  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}
