// Package refreshtokens stores outstanding refresh tokens. It is the only
// place that decides which of two concurrent rotations of the same token
// wins: Rotate succeeds for exactly one caller per token value.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/mealkeeper/internal/server/models"
)

type Repository interface {
	// Create persists token and fills in its ID.
	Create(ctx context.Context, token *models.RefreshToken) error

	// Find returns the row for token, expired or not, or common.ErrorNotFound.
	Find(ctx context.Context, token string) (*models.RefreshToken, error)

	// Rotate replaces oldToken with newToken and moves its expiry to
	// expiresAt, provided oldToken still exists and has not expired at now.
	// A non-empty deviceTag overwrites the stored one. When the condition
	// does not hold (already rotated, revoked or expired) Rotate returns
	// common.ErrorNotFound and changes nothing.
	Rotate(ctx context.Context, oldToken, newToken, deviceTag string, expiresAt, now time.Time) (*models.RefreshToken, error)

	// Delete removes token. Deleting an absent token is not an error.
	Delete(ctx context.Context, token string) error

	// DeleteByUser removes every token of userID and reports how many were removed.
	DeleteByUser(ctx context.Context, userID string) (int64, error)

	// ListByUser returns the tokens of userID still valid at now, oldest first.
	ListByUser(ctx context.Context, userID string, now time.Time) ([]models.RefreshToken, error)

	// PurgeExpired removes every token with expiry at or before now.
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}
