package repomanager

import (
	"context"

	"github.com/dmitrijs2005/mealkeeper/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/mealkeeper/internal/server/repositories/users"
)

// MemoryRepositoryManager keeps everything in process memory. WithTx gives
// no rollback: fn sees the live repositories.
type MemoryRepositoryManager struct {
	users  users.Repository
	tokens refreshtokens.Repository
}

func NewMemoryRepositoryManager() *MemoryRepositoryManager {
	return &MemoryRepositoryManager{
		users:  users.NewMemoryRepository(),
		tokens: refreshtokens.NewMemoryRepository(),
	}
}

// WithTokenStore routes refresh tokens to tokens instead of memory.
func (m *MemoryRepositoryManager) WithTokenStore(tokens refreshtokens.Repository) *MemoryRepositoryManager {
	m.tokens = tokens
	return m
}

func (m *MemoryRepositoryManager) Users() users.Repository                 { return m.users }
func (m *MemoryRepositoryManager) RefreshTokens() refreshtokens.Repository { return m.tokens }

func (m *MemoryRepositoryManager) WithTx(ctx context.Context, fn TxFunc) error {
	return fn(ctx, m.users, m.tokens)
}

func (m *MemoryRepositoryManager) RunMigrations(context.Context) error { return nil }
func (m *MemoryRepositoryManager) Close() error                        { return nil }
