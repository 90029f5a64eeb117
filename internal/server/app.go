// Package server wires configuration, storage, the auth service and the HTTP
// API together and runs them until a shutdown signal arrives.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrijs2005/mealkeeper/internal/logging"
	"github.com/dmitrijs2005/mealkeeper/internal/server/config"
	"github.com/dmitrijs2005/mealkeeper/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/mealkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/mealkeeper/internal/server/rest"
	"github.com/dmitrijs2005/mealkeeper/internal/server/services"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const redisKeyPrefix = "mk"

type App struct {
	config  *config.Config
	logger  logging.Logger
	repos   repomanager.RepositoryManager
	redis   *redis.Client
	service *services.AuthService
	http    *rest.Server
}

// NewApp opens storage, applies migrations and builds the HTTP server.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSON(os.Stdout, slog.LevelInfo)
	return newApp(ctx, c, logger)
}

func newApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	app := &App{config: c, logger: logger}

	if c.RedisURL != "" {
		rdb, err := openRedis(ctx, c.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("redis init error: %w", err)
		}
		app.redis = rdb
	}

	repos, err := app.openRepositories(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.repos = repos

	app.service = services.NewAuthService(repos, c, logger)
	app.http = rest.NewServer(c, logger, app.service)
	return app, nil
}

func openRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, err
	}
	return rdb, nil
}

func (app *App) openRepositories(ctx context.Context) (repomanager.RepositoryManager, error) {
	var tokens refreshtokens.Repository
	if app.redis != nil {
		tokens = refreshtokens.NewRedisRepository(app.redis, redisKeyPrefix)
	}

	switch app.config.StorageDriver {
	case config.StorageMemory:
		m := repomanager.NewMemoryRepositoryManager()
		if tokens != nil {
			m.WithTokenStore(tokens)
		}
		app.logger.Warn(ctx, "using in-memory storage, data is lost on restart")
		return m, nil

	case config.StoragePostgres:
		db, err := repomanager.OpenPostgres(ctx, app.config.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("db init error: %w", err)
		}
		m := repomanager.NewPostgresRepositoryManager(db)
		if tokens != nil {
			m.WithTokenStore(tokens)
		}
		if err := m.RunMigrations(ctx); err != nil {
			m.Close()
			return nil, fmt.Errorf("migrations error: %w", err)
		}
		return m, nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", app.config.StorageDriver)
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves HTTP and sweeps expired refresh tokens until ctx is cancelled
// or a termination signal arrives.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "storage", app.config.StorageDriver, "redis_tokens", app.redis != nil)

	app.initSignalHandler(cancelFunc)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.http.Run(ctx)
	})
	g.Go(func() error {
		app.runJanitor(ctx, app.config.PurgeInterval)
		return nil
	})

	err := g.Wait()
	app.logger.Info(context.Background(), "App stopped")
	return err
}

func (app *App) runJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := app.service.PurgeExpired(ctx); err != nil && !errors.Is(err, context.Canceled) {
				app.logger.Warn(ctx, "purge of expired refresh tokens failed", "error", err)
			}
		}
	}
}

// Close releases database and Redis connections.
func (app *App) Close() error {
	var errs []error
	if app.repos != nil {
		errs = append(errs, app.repos.Close())
	}
	if app.redis != nil {
		errs = append(errs, app.redis.Close())
	}
	return errors.Join(errs...)
}
