// Package client talks to the mealkeeper session API over HTTP.
//
// # Overview
//
// HTTPClient keeps the refresh token in a cookie jar, exactly as a browser
// would, and the access token in a session.State. Every authenticated call
// that comes back 401 is handed to a session.Gate, which runs at most one
// refresh for all concurrent callers, and is then replayed once with the
// token the Gate returns.
//
// # Error Handling
//
// Transport failures and 5xx responses match ErrUnavailable, 401 responses
// match ErrUnauthorized and 429 matches ErrRateLimited. When the server's
// message is one of the common sentinel errors the returned error matches it
// as well, so callers can test errors.Is(err, common.ErrTokenExpired).
// A failed refresh surfaces as session.ErrSessionExpired.
//
// Concurrency & Contexts
//
// HTTPClient is safe for concurrent use. All operations accept a
// context.Context; the per-request deadline comes from Config.RequestTimeout.
package client
