// Package repomanager selects the storage backend for the server and hands
// out repositories, optionally scoped to one transaction.
package repomanager

import (
	"context"

	"github.com/dmitrijs2005/mealkeeper/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/mealkeeper/internal/server/repositories/users"
)

// TxFunc receives repositories that share the transaction opened by WithTx.
type TxFunc func(ctx context.Context, users users.Repository, tokens refreshtokens.Repository) error

type RepositoryManager interface {
	Users() users.Repository
	RefreshTokens() refreshtokens.Repository

	// WithTx runs fn inside a transaction where the backend supports one and
	// commits only if fn returns nil.
	WithTx(ctx context.Context, fn TxFunc) error

	RunMigrations(ctx context.Context) error
	Close() error
}
