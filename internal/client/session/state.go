// Package session holds the client's view of who is logged in and
// coordinates access token refreshes between concurrent requests.
package session

import "sync"

// Session is the logged-in principal and its current access token.
type Session struct {
	AccessToken string
	UserID      string
	UserName    string
}

// State is the in-memory Session of one client process. It changes only on
// login, logout and when a refresh settles.
type State struct {
	mu      sync.RWMutex
	current Session
}

func NewState() *State {
	return &State{}
}

func (s *State) Get() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *State) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.AccessToken
}

func (s *State) LoggedIn() bool {
	return s.AccessToken() != ""
}

func (s *State) Set(sess Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = sess
}

func (s *State) Clear() {
	s.Set(Session{})
}
