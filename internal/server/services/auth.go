// Package services contains server-side business logic. AuthService owns the
// refresh token lifecycle: login, rotation, revocation and the access tokens
// minted alongside.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/mealkeeper/internal/common"
	"github.com/dmitrijs2005/mealkeeper/internal/logging"
	"github.com/dmitrijs2005/mealkeeper/internal/server/auth"
	"github.com/dmitrijs2005/mealkeeper/internal/server/config"
	"github.com/dmitrijs2005/mealkeeper/internal/server/models"
	"github.com/dmitrijs2005/mealkeeper/internal/server/passwords"
	"github.com/dmitrijs2005/mealkeeper/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/mealkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/mealkeeper/internal/server/repositories/users"
)

// TokenPair is what login and refresh hand back to the transport layer.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	// ExpiresIn is the access token lifetime.
	ExpiresIn time.Duration
	// RefreshExpiresAt is when RefreshToken stops being accepted.
	RefreshExpiresAt time.Time
	UserID           string
	UserName         string
}

type AuthService struct {
	repos           repomanager.RepositoryManager
	verifier        *auth.Verifier
	hasher          *passwords.Hasher
	refreshValidity time.Duration
	now             func() time.Time
	log             logging.Logger
}

func NewAuthService(m repomanager.RepositoryManager, cfg *config.Config, log logging.Logger) *AuthService {
	return &AuthService{
		repos:           m,
		verifier:        auth.NewVerifier([]byte(cfg.SecretKey), cfg.AccessTokenValidityDuration),
		hasher:          passwords.NewHasher(0),
		refreshValidity: cfg.RefreshTokenValidityDuration,
		now:             time.Now,
		log:             log.With("module", "auth_service"),
	}
}

// WithClock replaces the time source for both refresh and access tokens.
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	s.now = now
	s.verifier.WithClock(now)
	return s
}

func (s *AuthService) WithHasher(h *passwords.Hasher) *AuthService {
	s.hasher = h
	return s
}

// Register creates a user. A taken username yields common.ErrUserAlreadyExists.
func (s *AuthService) Register(ctx context.Context, userName, password string) (*models.User, error) {
	userName = normalizeUserName(userName)
	if err := validateCredentials(userName, password); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, s.internal(ctx, "hash password", err)
	}

	u, err := s.repos.Users().Create(ctx, &models.User{UserName: userName, PasswordHash: hash})
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, common.ErrUserAlreadyExists
		}
		return nil, s.internal(ctx, "create user", err)
	}

	s.log.Info(ctx, "user registered", "user_id", u.ID)
	return u, nil
}

// Login checks credentials and opens a new device session. Unknown users and
// wrong passwords produce the same common.ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, userName, password, deviceTag string) (*TokenPair, error) {
	userName = normalizeUserName(userName)
	if userName == "" || password == "" {
		return nil, common.ErrValidation
	}

	user, err := s.repos.Users().GetUserByLogin(ctx, userName)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.hasher.CompareDummy(password)
			return nil, common.ErrInvalidCredentials
		}
		return nil, s.internal(ctx, "load user", err)
	}

	ok, err := s.hasher.Compare(user.PasswordHash, password)
	if err != nil {
		return nil, s.internal(ctx, "compare password", err)
	}
	if !ok {
		return nil, common.ErrInvalidCredentials
	}

	token, err := common.MakeRandHexString(common.RefreshTokenSize)
	if err != nil {
		return nil, s.internal(ctx, "generate refresh token", err)
	}

	now := s.now()
	rt := &models.RefreshToken{
		UserID:    user.ID,
		Token:     token,
		DeviceTag: deviceTag,
		ExpiresAt: now.Add(s.refreshValidity),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repos.RefreshTokens().Create(ctx, rt); err != nil {
		return nil, s.internal(ctx, "store refresh token", err)
	}

	s.log.Info(ctx, "login", "user_id", user.ID, "session_id", rt.ID, "device", deviceTag)
	return s.issue(ctx, user, rt)
}

// Refresh rotates oldToken. Only one of several concurrent calls presenting
// the same token succeeds; the rest get common.ErrInvalidToken, the same
// answer as for a token that was never issued.
func (s *AuthService) Refresh(ctx context.Context, oldToken, deviceTag string) (*TokenPair, error) {
	if oldToken == "" {
		return nil, common.ErrNoTokenProvided
	}

	tokens := s.repos.RefreshTokens()

	current, err := tokens.Find(ctx, oldToken)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidToken
		}
		return nil, s.internal(ctx, "find refresh token", err)
	}

	now := s.now()
	if current.Expired(now) {
		if err := tokens.Delete(ctx, oldToken); err != nil {
			s.log.Warn(ctx, "failed to delete expired refresh token", "session_id", current.ID, "error", err)
		}
		return nil, common.ErrTokenExpired
	}

	next, err := common.MakeRandHexString(common.RefreshTokenSize)
	if err != nil {
		return nil, s.internal(ctx, "generate refresh token", err)
	}

	rotated, err := tokens.Rotate(ctx, oldToken, next, deviceTag, now.Add(s.refreshValidity), now)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.log.Info(ctx, "refresh token already rotated", "session_id", current.ID, "user_id", current.UserID)
			return nil, common.ErrInvalidToken
		}
		return nil, s.internal(ctx, "rotate refresh token", err)
	}

	user, err := s.repos.Users().GetByID(ctx, rotated.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			_ = tokens.Delete(ctx, next)
			return nil, common.ErrInvalidToken
		}
		return nil, s.internal(ctx, "load user", err)
	}

	s.log.Debug(ctx, "refresh token rotated", "user_id", user.ID, "session_id", rotated.ID)
	return s.issue(ctx, user, rotated)
}

// Logout ends one device session. Unknown tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return common.ErrNoTokenProvided
	}
	if err := s.repos.RefreshTokens().Delete(ctx, token); err != nil {
		return s.internal(ctx, "delete refresh token", err)
	}
	return nil
}

// LogoutAll ends every session of userID. Callers may only revoke their own.
func (s *AuthService) LogoutAll(ctx context.Context, principal *models.Principal, userID string) (int64, error) {
	if userID == "" {
		return 0, common.ErrValidation
	}
	if principal == nil || principal.UserID != userID {
		return 0, common.ErrForbidden
	}

	n, err := s.repos.RefreshTokens().DeleteByUser(ctx, userID)
	if err != nil {
		return 0, s.internal(ctx, "delete user refresh tokens", err)
	}

	s.log.Info(ctx, "all sessions revoked", "user_id", userID, "count", n)
	return n, nil
}

// WhoAmI verifies an access token. It never touches storage.
func (s *AuthService) WhoAmI(ctx context.Context, accessToken string) (*models.Principal, error) {
	return s.verifier.Verify(accessToken)
}

// Sessions lists the caller's live device sessions, oldest first.
func (s *AuthService) Sessions(ctx context.Context, principal *models.Principal) ([]models.RefreshToken, error) {
	list, err := s.repos.RefreshTokens().ListByUser(ctx, principal.UserID, s.now())
	if err != nil {
		return nil, s.internal(ctx, "list sessions", err)
	}
	return list, nil
}

// ChangePassword replaces the caller's password and revokes every refresh
// token they hold, in one transaction where the backend allows it.
func (s *AuthService) ChangePassword(ctx context.Context, principal *models.Principal, oldPassword, newPassword string) error {
	if err := validateCredentials(principal.UserName, newPassword); err != nil {
		return err
	}

	user, err := s.repos.Users().GetByID(ctx, principal.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrInvalidToken
		}
		return s.internal(ctx, "load user", err)
	}

	ok, err := s.hasher.Compare(user.PasswordHash, oldPassword)
	if err != nil {
		return s.internal(ctx, "compare password", err)
	}
	if !ok {
		return common.ErrInvalidCredentials
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return s.internal(ctx, "hash password", err)
	}

	var revoked int64
	err = s.repos.WithTx(ctx, func(ctx context.Context, u users.Repository, rt refreshtokens.Repository) error {
		if err := u.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
			return err
		}
		n, err := rt.DeleteByUser(ctx, user.ID)
		revoked = n
		return err
	})
	if err != nil {
		return s.internal(ctx, "change password", err)
	}

	s.log.Info(ctx, "password changed", "user_id", user.ID, "revoked_sessions", revoked)
	return nil
}

// PurgeExpired drops refresh tokens whose expiry has passed.
func (s *AuthService) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.repos.RefreshTokens().PurgeExpired(ctx, s.now())
	if err != nil {
		return 0, s.internal(ctx, "purge expired refresh tokens", err)
	}
	if n > 0 {
		s.log.Info(ctx, "expired refresh tokens purged", "count", n)
	}
	return n, nil
}

func (s *AuthService) issue(ctx context.Context, user *models.User, rt *models.RefreshToken) (*TokenPair, error) {
	access, err := s.verifier.Issue(user.ID, user.UserName)
	if err != nil {
		return nil, s.internal(ctx, "sign access token", err)
	}
	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     rt.Token,
		ExpiresIn:        s.verifier.Validity(),
		RefreshExpiresAt: rt.ExpiresAt,
		UserID:           user.ID,
		UserName:         user.UserName,
	}, nil
}

// internal logs err and hides it behind common.ErrorInternal.
func (s *AuthService) internal(ctx context.Context, op string, err error) error {
	s.log.Error(ctx, op+" failed", "error", err)
	return fmt.Errorf("%w: %s", common.ErrorInternal, op)
}

// normalizeUserName is applied to every user name before it reaches a store.
func normalizeUserName(userName string) string {
	return strings.TrimSpace(userName)
}

func validateCredentials(userName, password string) error {
	if userName == "" || password == "" {
		return common.ErrValidation
	}
	if len(password) > passwords.MaxLength {
		return fmt.Errorf("%w: password longer than %d bytes", common.ErrValidation, passwords.MaxLength)
	}
	return nil
}
