// Package cli provides the interactive mealkeeper command-line client.
//
// It wires configuration and the HTTP API client into a small REPL. Typical
// flow: log in, then call authenticated commands; an expired access token is
// refreshed transparently, and a failed refresh sends the user back to login.
//
// Key features:
//   - Register / Login / Logout / Logout on every device
//   - Show the current user and the list of device sessions
//   - Change password
//   - Fire concurrent requests ("burst") to watch refreshes being shared
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
