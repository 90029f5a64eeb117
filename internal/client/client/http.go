package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/dmitrijs2005/mealkeeper/internal/client/config"
	"github.com/dmitrijs2005/mealkeeper/internal/client/models"
	"github.com/dmitrijs2005/mealkeeper/internal/client/session"
	"github.com/dmitrijs2005/mealkeeper/internal/common"
)

// Client is the API contract the CLI depends on.
type Client interface {
	Register(ctx context.Context, userName, password string) (*models.User, error)
	Login(ctx context.Context, userName, password string) (*session.Session, error)
	Refresh(ctx context.Context) error
	Logout(ctx context.Context) error
	LogoutAll(ctx context.Context) (int64, error)
	Me(ctx context.Context) (*models.User, error)
	Sessions(ctx context.Context) ([]models.DeviceSession, error)
	ChangePassword(ctx context.Context, oldPassword, newPassword string) error
	Ping(ctx context.Context) error
	Session() session.Session
	Close() error
}

type credentialsRequest struct {
	UserName  string `json:"username"`
	Password  string `json:"password"`
	DeviceTag string `json:"deviceTag,omitempty"`
}

type refreshRequest struct {
	DeviceTag string `json:"deviceTag,omitempty"`
}

type tokenResponse struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   int64  `json:"expiresIn"`
	UserID      string `json:"userId"`
	UserName    string `json:"username"`
}

func (r tokenResponse) session() session.Session {
	return session.Session{AccessToken: r.AccessToken, UserID: r.UserID, UserName: r.UserName}
}

type errorResponse struct {
	Message string `json:"message"`
}

// HTTPClient implements Client over the REST API.
type HTTPClient struct {
	baseURL   string
	http      *http.Client
	state     *session.State
	gate      *session.Gate
	deviceTag string
	refreshes atomic.Int64
}

var _ Client = (*HTTPClient)(nil)

func NewHTTPClient(cfg *config.Config) (*HTTPClient, error) {
	u, err := url.Parse(cfg.ServerURL)
	if err != nil {
		return nil, fmt.Errorf("server url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("server url %q: scheme and host are required", cfg.ServerURL)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	c := &HTTPClient{
		baseURL:   strings.TrimRight(cfg.ServerURL, "/"),
		http:      &http.Client{Jar: jar, Timeout: cfg.RequestTimeout},
		state:     session.NewState(),
		deviceTag: cfg.DeviceTag,
	}
	c.gate = session.NewGate(c.state, c.refresh, cfg.MaxWaiters)
	return c, nil
}

// OnExpired registers the callback run when a refresh fails and the user has
// to log in again.
func (c *HTTPClient) OnExpired(fn func(error)) {
	c.gate.OnExpired(fn)
}

func (c *HTTPClient) Session() session.Session {
	return c.state.Get()
}

// RefreshCount is the number of refresh round trips sent so far.
func (c *HTTPClient) RefreshCount() int64 {
	return c.refreshes.Load()
}

func (c *HTTPClient) Register(ctx context.Context, userName, password string) (*models.User, error) {
	var u models.User
	req := credentialsRequest{UserName: userName, Password: password}
	if _, err := c.send(ctx, http.MethodPost, "/register", "", req, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *HTTPClient) Login(ctx context.Context, userName, password string) (*session.Session, error) {
	var resp tokenResponse
	req := credentialsRequest{UserName: userName, Password: password, DeviceTag: c.deviceTag}
	if _, err := c.send(ctx, http.MethodPost, "/login", "", req, &resp); err != nil {
		return nil, err
	}
	s := resp.session()
	c.state.Set(s)
	return &s, nil
}

// Refresh forces a refresh through the Gate, so it joins one that is already
// running instead of racing it.
func (c *HTTPClient) Refresh(ctx context.Context) error {
	_, err := c.gate.Recover(ctx, c.state.AccessToken())
	return err
}

// refresh is the Gate's RefreshFunc. The refresh token travels in the cookie
// jar, never in the body.
func (c *HTTPClient) refresh(ctx context.Context) (session.Session, error) {
	c.refreshes.Add(1)
	var resp tokenResponse
	if _, err := c.send(ctx, http.MethodPost, "/refresh-token", "", refreshRequest{DeviceTag: c.deviceTag}, &resp); err != nil {
		return session.Session{}, err
	}
	return resp.session(), nil
}

// Logout ends this device's session. Local state is cleared even when the
// server call fails.
func (c *HTTPClient) Logout(ctx context.Context) error {
	defer c.state.Clear()
	return c.call(ctx, http.MethodPost, "/logout", nil, nil)
}

func (c *HTTPClient) LogoutAll(ctx context.Context) (int64, error) {
	userID := c.state.Get().UserID
	var resp struct {
		Revoked int64 `json:"revoked"`
	}
	err := c.call(ctx, http.MethodPost, "/logout-all", map[string]string{"userId": userID}, &resp)
	if err != nil {
		return 0, err
	}
	c.state.Clear()
	return resp.Revoked, nil
}

func (c *HTTPClient) Me(ctx context.Context) (*models.User, error) {
	var u models.User
	if err := c.call(ctx, http.MethodGet, "/me", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *HTTPClient) Sessions(ctx context.Context) ([]models.DeviceSession, error) {
	var resp struct {
		Sessions []models.DeviceSession `json:"sessions"`
	}
	if err := c.call(ctx, http.MethodGet, "/sessions", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Sessions, nil
}

// ChangePassword also revokes every refresh token of the user on the server,
// so the local session is dropped on success.
func (c *HTTPClient) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	req := map[string]string{"oldPassword": oldPassword, "newPassword": newPassword}
	if err := c.call(ctx, http.MethodPost, "/change-password", req, nil); err != nil {
		return err
	}
	c.state.Clear()
	return nil
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	var resp struct {
		Status string `json:"status"`
	}
	if _, err := c.send(ctx, http.MethodGet, "/health", "", nil, &resp); err != nil {
		return err
	}
	if resp.Status != "ok" {
		return ErrUnavailable
	}
	return nil
}

// Close releases requests waiting on a refresh and idle connections.
func (c *HTTPClient) Close() error {
	c.gate.Close()
	c.http.CloseIdleConnections()
	return nil
}

// call performs an authenticated request. A 401 is handed to the Gate and
// the request is replayed once with the token it returns; a second 401 is
// returned as is.
func (c *HTTPClient) call(ctx context.Context, method, path string, in, out any) error {
	token := c.state.AccessToken()
	if token == "" {
		return ErrNotLoggedIn
	}

	status, err := c.send(ctx, method, path, token, in, out)
	if status != http.StatusUnauthorized {
		return err
	}

	fresh, rerr := c.gate.Recover(ctx, token)
	if rerr != nil {
		return rerr
	}

	_, err = c.send(ctx, method, path, fresh, in, out)
	return err
}

// send performs one round trip. The status is zero when no response arrived.
func (c *HTTPClient) send(ctx context.Context, method, path, token string, in, out any) (int, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return 0, err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set(common.AuthorizationHeaderName, common.BearerPrefix+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e errorResponse
		if err := json.NewDecoder(resp.Body).Decode(&e); err != nil || e.Message == "" {
			e.Message = http.StatusText(resp.StatusCode)
		}
		return resp.StatusCode, mapStatus(resp.StatusCode, e.Message)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
			return resp.StatusCode, fmt.Errorf("decode %s response: %w", path, err)
		}
	}
	return resp.StatusCode, nil
}
