// Package auth issues and verifies the short-lived HS256 access tokens.
// Verification is stateless and never touches storage.
package auth

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/mealkeeper/internal/common"
	"github.com/dmitrijs2005/mealkeeper/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the standard registered claims plus the user identity.
type Claims struct {
	jwt.RegisteredClaims
	UserID   string `json:"userId"`
	UserName string `json:"username"`
}

// GenerateToken signs an access token for the user valid from now until
// now+validity.
func GenerateToken(userID, userName string, secretKey []byte, validity time.Duration, now time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validity)),
		},
		UserID:   userID,
		UserName: userName,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}
	return tokenString, nil
}

// ParseToken verifies signature, algorithm and expiry at now. Any failure
// other than an empty input is reported as common.ErrInvalidToken.
func ParseToken(tokenString string, secretKey []byte, now time.Time) (*models.Principal, error) {
	if tokenString == "" {
		return nil, common.ErrNoTokenProvided
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) { return secretKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}
	if !token.Valid || claims.UserID == "" {
		return nil, common.ErrInvalidToken
	}

	p := &models.Principal{
		UserID:    claims.UserID,
		UserName:  claims.UserName,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		p.IssuedAt = claims.IssuedAt.Time
	}
	return p, nil
}

// Verifier binds the signing key, token lifetime and clock.
type Verifier struct {
	secretKey []byte
	validity  time.Duration
	now       func() time.Time
}

func NewVerifier(secretKey []byte, validity time.Duration) *Verifier {
	return &Verifier{secretKey: secretKey, validity: validity, now: time.Now}
}

// WithClock replaces the time source; used by tests.
func (v *Verifier) WithClock(now func() time.Time) *Verifier {
	v.now = now
	return v
}

// Validity is the lifetime of issued tokens.
func (v *Verifier) Validity() time.Duration { return v.validity }

func (v *Verifier) Issue(userID, userName string) (string, error) {
	return GenerateToken(userID, userName, v.secretKey, v.validity, v.now())
}

func (v *Verifier) Verify(token string) (*models.Principal, error) {
	return ParseToken(token, v.secretKey, v.now())
}
