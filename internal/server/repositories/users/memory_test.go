package users

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/mealkeeper/internal/common"
	"github.com/dmitrijs2005/mealkeeper/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	u, err := repo.Create(ctx, &models.User{UserName: "alice", PasswordHash: []byte("h1")})
	require.NoError(t, err)
	require.NotEmpty(t, u.ID)

	_, err = repo.Create(ctx, &models.User{UserName: "alice", PasswordHash: []byte("h2")})
	assert.ErrorIs(t, err, common.ErrorAlreadyExists)

	byName, err := repo.GetUserByLogin(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byName.ID)

	require.NoError(t, repo.UpdatePasswordHash(ctx, u.ID, []byte("h3")))
	byID, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("h3"), byID.PasswordHash)

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrorNotFound)
	assert.ErrorIs(t, repo.UpdatePasswordHash(ctx, "missing", nil), common.ErrorNotFound)
}
