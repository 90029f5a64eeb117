package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrSessionExpired is returned to every waiter when the refresh fails.
	// It wraps the refresh error.
	ErrSessionExpired = errors.New("session expired, please log in again")
	// ErrSessionClosed is returned to waiters released by Close.
	ErrSessionClosed = errors.New("session closed")
	// ErrTooManyWaiters is returned when the waiter queue is full.
	ErrTooManyWaiters = errors.New("too many requests waiting for token refresh")
)

// DefaultMaxWaiters bounds the queue when NewGate gets a non-positive limit.
const DefaultMaxWaiters = 64

// Phase is the Gate's state.
type Phase int

const (
	Idle Phase = iota
	Refreshing
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Refreshing:
		return "refreshing"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// RefreshFunc performs one refresh round trip and returns the new session.
type RefreshFunc func(ctx context.Context) (Session, error)

type result struct {
	token string
	err   error
}

// Gate makes sure that at most one refresh is outstanding, however many
// requests fail with an expired access token at the same time. Requests that
// fail while a refresh is running wait for it and are released in the order
// they arrived.
type Gate struct {
	state      *State
	refresh    RefreshFunc
	maxWaiters int

	mu        sync.Mutex
	phase     Phase
	waiters   []chan result
	cancel    context.CancelFunc
	closed    bool
	onExpired func(error)

	// refreshFor is the stale token the running refresh was started for.
	refreshFor string
	// expiredFor and expiredErr remember a failed refresh until the next
	// login, so late 401s for the same token do not refresh again.
	expiredFor string
	expiredErr error

	// releaseHook, when set, sees every waiter as it is released.
	releaseHook func(chan result)
}

func NewGate(state *State, refresh RefreshFunc, maxWaiters int) *Gate {
	if maxWaiters <= 0 {
		maxWaiters = DefaultMaxWaiters
	}
	return &Gate{state: state, refresh: refresh, maxWaiters: maxWaiters}
}

// OnExpired registers fn to run after a failed refresh has released its
// waiters. The CLI uses it to send the user back to the login prompt.
func (g *Gate) OnExpired(fn func(error)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onExpired = fn
}

func (g *Gate) Phase() Phase {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.phase
}

// Recover is called by a request whose access token staleToken was rejected.
// It returns the token to retry with, starting a refresh only when none is
// running and the session has not already moved past staleToken. A failed
// refresh is final for its token: until a new session is set, Recover with
// that token returns ErrSessionExpired at once.
//
// The refresh runs on the Gate's own context: a caller giving up through ctx
// does not abort it for the others.
func (g *Gate) Recover(ctx context.Context, staleToken string) (string, error) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return "", ErrSessionClosed
	}

	if g.phase == Idle {
		current := g.state.AccessToken()
		switch {
		case current != "":
			g.expiredFor, g.expiredErr = "", nil
			if current != staleToken {
				g.mu.Unlock()
				return current, nil
			}
		case staleToken != "" && staleToken == g.expiredFor:
			err := g.expiredErr
			g.mu.Unlock()
			return "", err
		}
	}

	if len(g.waiters) >= g.maxWaiters {
		g.mu.Unlock()
		return "", ErrTooManyWaiters
	}

	ch := make(chan result, 1)
	g.waiters = append(g.waiters, ch)

	if g.phase == Idle {
		g.phase = Refreshing
		g.refreshFor = staleToken
		refreshCtx, cancel := context.WithCancel(context.Background())
		g.cancel = cancel
		go g.run(refreshCtx)
	}
	g.mu.Unlock()

	select {
	case r := <-ch:
		return r.token, r.err
	case <-ctx.Done():
		g.forget(ch)
		return "", ctx.Err()
	}
}

func (g *Gate) run(ctx context.Context) {
	sess, err := g.refresh(ctx)
	g.settle(sess, err)
}

// settle publishes the refresh outcome. Session State is updated before any
// waiter runs again.
func (g *Gate) settle(sess Session, err error) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}

	waiters := g.waiters
	g.waiters = nil
	g.phase = Idle
	if g.cancel != nil {
		g.cancel()
		g.cancel = nil
	}

	var r result
	if err == nil {
		g.state.Set(sess)
		g.expiredFor, g.expiredErr = "", nil
		r = result{token: sess.AccessToken}
	} else {
		g.state.Clear()
		r = result{err: fmt.Errorf("%w: %w", ErrSessionExpired, err)}
		if g.refreshFor != "" {
			g.expiredFor, g.expiredErr = g.refreshFor, r.err
		}
	}
	g.refreshFor = ""
	onExpired := g.onExpired
	hook := g.releaseHook
	g.mu.Unlock()

	for _, ch := range waiters {
		ch <- r
		if hook != nil {
			hook(ch)
		}
	}

	if err != nil && onExpired != nil {
		onExpired(err)
	}
}

// forget drops a waiter whose caller stopped waiting.
func (g *Gate) forget(ch chan result) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, w := range g.waiters {
		if w == ch {
			g.waiters = append(g.waiters[:i], g.waiters[i+1:]...)
			return
		}
	}
}

// Close cancels a running refresh and releases every waiter with
// ErrSessionClosed. Later calls to Recover fail the same way.
func (g *Gate) Close() {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	g.closed = true
	waiters := g.waiters
	g.waiters = nil
	g.phase = Idle
	cancel := g.cancel
	g.cancel = nil
	g.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	for _, ch := range waiters {
		ch <- result{err: ErrSessionClosed}
	}
}

func (g *Gate) pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.waiters)
}
