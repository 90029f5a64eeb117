package common

const (
	// AuthorizationHeaderName carries the access token as "Bearer <token>".
	AuthorizationHeaderName = "Authorization"

	// BearerPrefix precedes the access token in the Authorization header.
	BearerPrefix = "Bearer "

	// RefreshTokenCookieName is the HttpOnly cookie holding the refresh token.
	RefreshTokenCookieName = "refresh_token"

	// RefreshTokenSize is the number of random bytes behind a refresh token;
	// the hex form is twice as long.
	RefreshTokenSize = 64
)
