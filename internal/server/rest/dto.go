package rest

import "time"

type credentialsRequest struct {
	UserName  string `json:"username"`
	Password  string `json:"password"`
	DeviceTag string `json:"deviceTag,omitempty"`
}

type refreshRequest struct {
	DeviceTag string `json:"deviceTag,omitempty"`
}

type logoutAllRequest struct {
	UserID string `json:"userId"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

type tokenResponse struct {
	AccessToken string `json:"accessToken"`
	// ExpiresIn is the access token lifetime in seconds.
	ExpiresIn int64  `json:"expiresIn"`
	UserID    string `json:"userId"`
	UserName  string `json:"username"`
}

type userResponse struct {
	UserID   string `json:"userId"`
	UserName string `json:"username"`
}

type sessionResponse struct {
	ID        string    `json:"id"`
	DeviceTag string    `json:"deviceTag"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type sessionsResponse struct {
	Sessions []sessionResponse `json:"sessions"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Message string `json:"message"`
}
