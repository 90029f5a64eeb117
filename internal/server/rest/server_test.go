package rest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/mealkeeper/internal/common"
	"github.com/dmitrijs2005/mealkeeper/internal/logging"
	"github.com/dmitrijs2005/mealkeeper/internal/server/config"
	"github.com/dmitrijs2005/mealkeeper/internal/server/passwords"
	"github.com/dmitrijs2005/mealkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/mealkeeper/internal/server/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.EndpointAddr = "127.0.0.1:0"
	cfg.LoginRateLimit = 0
	return cfg
}

func newTestServer(t *testing.T) (*Server, *testClock) {
	t.Helper()
	cfg := testConfig()
	clock := &testClock{t: time.Now().Truncate(time.Second)}
	svc := services.NewAuthService(repomanager.NewMemoryRepositoryManager(), cfg, logging.Nop()).
		WithClock(clock.Now).
		WithHasher(passwords.NewHasher(bcrypt.MinCost))
	return NewServer(cfg, logging.Nop(), svc), clock
}

type reqOpt func(*http.Request)

func withBearer(token string) reqOpt {
	return func(r *http.Request) { r.Header.Set(common.AuthorizationHeaderName, common.BearerPrefix+token) }
}

func withCookie(value string) reqOpt {
	return func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: common.RefreshTokenCookieName, Value: value})
	}
}

func do(t *testing.T, s *Server, method, path, body string, opts ...reqOpt) *http.Response {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, o := range opts {
		o(req)
	}
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func refreshCookieOf(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == common.RefreshTokenCookieName {
			return c
		}
	}
	return nil
}

// login registers alice (once) and logs her in, returning the access token
// and refresh cookie value.
func login(t *testing.T, s *Server, device string) (string, string) {
	t.Helper()
	do(t, s, http.MethodPost, "/register", `{"username":"alice","password":"pw"}`)

	resp := do(t, s, http.MethodPost, "/login", `{"username":"alice","password":"pw","deviceTag":"`+device+`"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cookie := refreshCookieOf(resp)
	require.NotNil(t, cookie)
	body := decode[tokenResponse](t, resp)
	return body.AccessToken, cookie.Value
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	resp := do(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRegister(t *testing.T) {
	s, _ := newTestServer(t)

	resp := do(t, s, http.MethodPost, "/register", `{"username":"alice","password":"pw"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	body := decode[userResponse](t, resp)
	assert.Equal(t, "alice", body.UserName)
	assert.NotEmpty(t, body.UserID)

	resp = do(t, s, http.MethodPost, "/register", `{"username":"alice","password":"pw"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, common.ErrUserAlreadyExists.Error(), decode[errorResponse](t, resp).Message)

	resp = do(t, s, http.MethodPost, "/register", `{"username":"","password":"pw"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, s, http.MethodPost, "/register", `{not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLogin_SetsStrictHttpOnlyCookie(t *testing.T) {
	s, _ := newTestServer(t)
	do(t, s, http.MethodPost, "/register", `{"username":"alice","password":"pw"}`)

	resp := do(t, s, http.MethodPost, "/login", `{"username":"alice","password":"pw"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	cookie := refreshCookieOf(resp)
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
	assert.Equal(t, "/", cookie.Path)
	assert.Equal(t, int((7 * 24 * time.Hour).Seconds()), cookie.MaxAge)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), cookie.Value, "refresh token must not be in the body")

	var body tokenResponse
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.NotEmpty(t, body.AccessToken)
	assert.Equal(t, int64(900), body.ExpiresIn)
}

func TestLogin_SameErrorForUnknownUserAndWrongPassword(t *testing.T) {
	s, _ := newTestServer(t)
	do(t, s, http.MethodPost, "/register", `{"username":"alice","password":"pw"}`)

	wrong := do(t, s, http.MethodPost, "/login", `{"username":"alice","password":"nope"}`)
	unknown := do(t, s, http.MethodPost, "/login", `{"username":"bob","password":"pw"}`)

	assert.Equal(t, http.StatusUnauthorized, wrong.StatusCode)
	assert.Equal(t, wrong.StatusCode, unknown.StatusCode)
	assert.Equal(t, decode[errorResponse](t, wrong), decode[errorResponse](t, unknown))
}

func TestRefresh_RotatesCookie(t *testing.T) {
	s, _ := newTestServer(t)
	_, refresh := login(t, s, "laptop")

	resp := do(t, s, http.MethodPost, "/refresh-token", "", withCookie(refresh))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rotated := refreshCookieOf(resp)
	require.NotNil(t, rotated)
	assert.NotEqual(t, refresh, rotated.Value)

	resp = do(t, s, http.MethodPost, "/refresh-token", "", withCookie(refresh))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	cleared := refreshCookieOf(resp)
	require.NotNil(t, cleared, "a failed refresh clears the cookie")
	assert.Empty(t, cleared.Value)
	assert.Equal(t, common.ErrInvalidToken.Error(), decode[errorResponse](t, resp).Message)

	resp = do(t, s, http.MethodPost, "/refresh-token", `{"deviceTag":"phone"}`, withCookie(rotated.Value))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRefresh_MissingCookie(t *testing.T) {
	s, _ := newTestServer(t)
	resp := do(t, s, http.MethodPost, "/refresh-token", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRefresh_ExpiredToken(t *testing.T) {
	s, clock := newTestServer(t)
	_, refresh := login(t, s, "")

	clock.Advance(7 * 24 * time.Hour)
	resp := do(t, s, http.MethodPost, "/refresh-token", "", withCookie(refresh))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, common.ErrTokenExpired.Error(), decode[errorResponse](t, resp).Message)
}

// failingRefresh is an AuthService whose Refresh always fails with err.
type failingRefresh struct {
	AuthService
	err error
}

func (f failingRefresh) Refresh(context.Context, string, string) (*services.TokenPair, error) {
	return nil, f.err
}

func TestRefresh_CookieKeptOnInternalError(t *testing.T) {
	cfg := testConfig()
	s := NewServer(cfg, logging.Nop(), failingRefresh{err: common.ErrorInternal})

	resp := do(t, s, http.MethodPost, "/refresh-token", "", withCookie("still-valid"))
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Nil(t, refreshCookieOf(resp), "refresh cookie must survive a server-side failure")
}

func TestRefresh_CookieClearedWhenTokenRejected(t *testing.T) {
	for _, err := range []error{common.ErrInvalidToken, common.ErrTokenExpired, common.ErrNoTokenProvided} {
		t.Run(err.Error(), func(t *testing.T) {
			s := NewServer(testConfig(), logging.Nop(), failingRefresh{err: err})

			resp := do(t, s, http.MethodPost, "/refresh-token", "", withCookie("dead"))
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			cookie := refreshCookieOf(resp)
			require.NotNil(t, cookie)
			assert.Empty(t, cookie.Value)
		})
	}
}

func TestMe(t *testing.T) {
	s, clock := newTestServer(t)
	access, _ := login(t, s, "")

	resp := do(t, s, http.MethodGet, "/me", "", withBearer(access))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "alice", decode[userResponse](t, resp).UserName)

	resp = do(t, s, http.MethodGet, "/me", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, common.ErrNoTokenProvided.Error(), decode[errorResponse](t, resp).Message)

	resp = do(t, s, http.MethodGet, "/me", "", withBearer("garbage"))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	clock.Advance(15 * time.Minute)
	resp = do(t, s, http.MethodGet, "/me", "", withBearer(access))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "access token expires after 900 seconds")
}

func TestLogout(t *testing.T) {
	s, _ := newTestServer(t)
	access, laptop := login(t, s, "laptop")
	_, phone := login(t, s, "phone")

	resp := do(t, s, http.MethodPost, "/logout", "", withBearer(access))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "logout needs the refresh cookie")

	resp = do(t, s, http.MethodPost, "/logout", "", withBearer(access), withCookie(laptop))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, refreshCookieOf(resp).Value)

	resp = do(t, s, http.MethodPost, "/refresh-token", "", withCookie(laptop))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = do(t, s, http.MethodPost, "/refresh-token", "", withCookie(phone))
	assert.Equal(t, http.StatusOK, resp.StatusCode, "other device keeps working")
}

func TestLogoutAll(t *testing.T) {
	s, _ := newTestServer(t)
	access, laptop := login(t, s, "laptop")
	_, phone := login(t, s, "phone")

	me := decode[userResponse](t, do(t, s, http.MethodGet, "/me", "", withBearer(access)))

	resp := do(t, s, http.MethodPost, "/logout-all", `{"userId":"someone-else"}`, withBearer(access))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = do(t, s, http.MethodPost, "/logout-all", `{}`, withBearer(access))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, s, http.MethodPost, "/logout-all", `{"userId":"`+me.UserID+`"}`, withBearer(access))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	for _, tok := range []string{laptop, phone} {
		resp := do(t, s, http.MethodPost, "/refresh-token", "", withCookie(tok))
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}
}

func TestSessions(t *testing.T) {
	s, _ := newTestServer(t)
	access, refresh := login(t, s, "laptop")
	login(t, s, "phone")

	resp := do(t, s, http.MethodGet, "/sessions", "", withBearer(access))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), refresh)

	var body sessionsResponse
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Len(t, body.Sessions, 2)
}

func TestChangePassword(t *testing.T) {
	s, _ := newTestServer(t)
	access, refresh := login(t, s, "")

	resp := do(t, s, http.MethodPost, "/change-password", `{"oldPassword":"bad","newPassword":"pw2"}`, withBearer(access))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = do(t, s, http.MethodPost, "/change-password", `{"oldPassword":"pw","newPassword":"pw2"}`, withBearer(access))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, s, http.MethodPost, "/refresh-token", "", withCookie(refresh))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = do(t, s, http.MethodPost, "/login", `{"username":"alice","password":"pw2"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLoginRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.LoginRateLimit = 2
	svc := services.NewAuthService(repomanager.NewMemoryRepositoryManager(), cfg, logging.Nop()).
		WithHasher(passwords.NewHasher(bcrypt.MinCost))
	s := NewServer(cfg, logging.Nop(), svc)

	for i := 0; i < 2; i++ {
		resp := do(t, s, http.MethodPost, "/login", `{"username":"x","password":"y"}`)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}
	resp := do(t, s, http.MethodPost, "/login", `{"username":"x","password":"y"}`)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	s, _ := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case err := <-done:
		t.Fatalf("server exited too early: %v", err)
	case <-time.After(150 * time.Millisecond):
	}

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop within timeout after context cancel")
	}
}

func TestRun_ReturnsErrorOnBadAddress(t *testing.T) {
	cfg := testConfig()
	cfg.EndpointAddr = "127.0.0.1:99999"
	s := NewServer(cfg, logging.Nop(), nil)

	err := s.Run(context.Background())
	assert.Error(t, err)
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{common.ErrValidation, http.StatusBadRequest},
		{common.ErrInvalidCredentials, http.StatusUnauthorized},
		{common.ErrInvalidToken, http.StatusUnauthorized},
		{common.ErrTokenExpired, http.StatusUnauthorized},
		{common.ErrNoTokenProvided, http.StatusUnauthorized},
		{common.ErrForbidden, http.StatusForbidden},
		{common.ErrUserAlreadyExists, http.StatusConflict},
		{common.ErrorInternal, http.StatusInternalServerError},
		{io.EOF, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		code, _ := statusFor(tc.err)
		assert.Equal(t, tc.code, code, tc.err.Error())
	}
}
