package refreshtokens

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/mealkeeper/internal/common"
	"github.com/dmitrijs2005/mealkeeper/internal/server/models"
	"github.com/google/uuid"
)

// MemoryRepository is a process-local Token Store. Rotate is a
// compare-and-swap under one mutex.
type MemoryRepository struct {
	mu     sync.Mutex
	tokens map[string]*models.RefreshToken
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{tokens: make(map[string]*models.RefreshToken)}
}

func (r *MemoryRepository) Create(ctx context.Context, token *models.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tokens[token.Token]; exists {
		return common.ErrorAlreadyExists
	}
	token.ID = uuid.NewString()
	stored := *token
	r.tokens[token.Token] = &stored
	return nil
}

func (r *MemoryRepository) Find(ctx context.Context, token string) (*models.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rt, ok := r.tokens[token]
	if !ok {
		return nil, common.ErrorNotFound
	}
	out := *rt
	return &out, nil
}

func (r *MemoryRepository) Rotate(ctx context.Context, oldToken, newToken, deviceTag string, expiresAt, now time.Time) (*models.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rt, ok := r.tokens[oldToken]
	if !ok || rt.Expired(now) {
		return nil, common.ErrorNotFound
	}

	delete(r.tokens, oldToken)
	rt.Token = newToken
	rt.ExpiresAt = expiresAt
	rt.UpdatedAt = now
	if deviceTag != "" {
		rt.DeviceTag = deviceTag
	}
	r.tokens[newToken] = rt

	out := *rt
	return &out, nil
}

func (r *MemoryRepository) Delete(ctx context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.tokens, token)
	return nil
}

func (r *MemoryRepository) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	return r.deleteWhere(func(rt *models.RefreshToken) bool { return rt.UserID == userID }), nil
}

func (r *MemoryRepository) ListByUser(ctx context.Context, userID string, now time.Time) ([]models.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []models.RefreshToken
	for _, rt := range r.tokens {
		if rt.UserID == userID && !rt.Expired(now) {
			result = append(result, *rt)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (r *MemoryRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	return r.deleteWhere(func(rt *models.RefreshToken) bool { return rt.Expired(now) }), nil
}

func (r *MemoryRepository) deleteWhere(match func(*models.RefreshToken) bool) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for key, rt := range r.tokens {
		if match(rt) {
			delete(r.tokens, key)
			n++
		}
	}
	return n
}
