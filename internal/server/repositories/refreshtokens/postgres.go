package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/mealkeeper/internal/common"
	"github.com/dmitrijs2005/mealkeeper/internal/dbx"
	"github.com/dmitrijs2005/mealkeeper/internal/server/models"
)

// PostgresRepository keeps refresh tokens in the refresh_tokens table over
// dbx.DBTX (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, token *models.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (user_id, token, device_tag, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query,
		token.UserID, token.Token, token.DeviceTag, token.ExpiresAt, token.CreatedAt, token.UpdatedAt,
	).Scan(&token.ID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Find(ctx context.Context, token string) (*models.RefreshToken, error) {
	query := `
		SELECT id, user_id, token, device_tag, expires_at, created_at, updated_at
		FROM refresh_tokens
		WHERE token = $1
	`
	rt, err := scanToken(r.db.QueryRowContext(ctx, query, token))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return rt, nil
}

// Rotate relies on row locking: a second UPDATE on the same row waits for
// the first to commit and then re-checks the WHERE clause against the new
// token value, so it matches nothing.
func (r *PostgresRepository) Rotate(ctx context.Context, oldToken, newToken, deviceTag string, expiresAt, now time.Time) (*models.RefreshToken, error) {
	query := `
		UPDATE refresh_tokens
		SET token = $2,
			expires_at = $3,
			device_tag = COALESCE(NULLIF($4, ''), device_tag),
			updated_at = $5
		WHERE token = $1 AND expires_at > $5
		RETURNING id, user_id, token, device_tag, expires_at, created_at, updated_at
	`
	rt, err := scanToken(r.db.QueryRowContext(ctx, query, oldToken, newToken, expiresAt, deviceTag, now))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return rt, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, token string) error {
	query := `
		DELETE FROM refresh_tokens
		WHERE token = $1
	`
	if _, err := r.db.ExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	query := `
		DELETE FROM refresh_tokens
		WHERE user_id = $1
	`
	return r.execCount(ctx, query, userID)
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string, now time.Time) ([]models.RefreshToken, error) {
	query := `
		SELECT id, user_id, token, device_tag, expires_at, created_at, updated_at
		FROM refresh_tokens
		WHERE user_id = $1 AND expires_at > $2
		ORDER BY created_at
	`
	rows, err := r.db.QueryContext(ctx, query, userID, now)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []models.RefreshToken
	for rows.Next() {
		rt, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, *rt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `
		DELETE FROM refresh_tokens
		WHERE expires_at <= $1
	`
	return r.execCount(ctx, query, now)
}

func (r *PostgresRepository) execCount(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanToken(s scanner) (*models.RefreshToken, error) {
	rt := &models.RefreshToken{}
	err := s.Scan(&rt.ID, &rt.UserID, &rt.Token, &rt.DeviceTag, &rt.ExpiresAt, &rt.CreatedAt, &rt.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return rt, nil
}
