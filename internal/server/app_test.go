package server

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dmitrijs2005/mealkeeper/internal/logging"
	"github.com/dmitrijs2005/mealkeeper/internal/server/config"
	"github.com/dmitrijs2005/mealkeeper/internal/server/models"
	"github.com/dmitrijs2005/mealkeeper/internal/server/repositories/refreshtokens"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.StorageDriver = config.StorageMemory
	cfg.EndpointAddr = "127.0.0.1:0"
	return cfg
}

func TestNewApp_UnknownDriver(t *testing.T) {
	cfg := memoryConfig()
	cfg.StorageDriver = "cassandra"

	_, err := newApp(context.Background(), cfg, logging.Nop())
	assert.ErrorContains(t, err, "unknown storage driver")
}

func TestNewApp_BadRedisURL(t *testing.T) {
	cfg := memoryConfig()
	cfg.RedisURL = "not a url"

	_, err := newApp(context.Background(), cfg, logging.Nop())
	assert.ErrorContains(t, err, "redis init error")
}

func TestNewApp_RedisTokenStore(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := memoryConfig()
	cfg.RedisURL = "redis://" + mr.Addr()

	app, err := newApp(context.Background(), cfg, logging.Nop())
	require.NoError(t, err)
	defer app.Close()

	_, ok := app.repos.RefreshTokens().(*refreshtokens.RedisRepository)
	assert.True(t, ok, "refresh tokens should live in redis")
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	app, err := newApp(context.Background(), memoryConfig(), logging.Nop())
	require.NoError(t, err)
	defer app.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("app did not stop after cancel")
	}
}

func TestRunJanitor_PurgesExpiredTokens(t *testing.T) {
	app, err := newApp(context.Background(), memoryConfig(), logging.Nop())
	require.NoError(t, err)
	defer app.Close()

	now := time.Now()
	require.NoError(t, app.repos.RefreshTokens().Create(context.Background(), &models.RefreshToken{
		UserID: "u1", Token: "stale", ExpiresAt: now.Add(-time.Minute), CreatedAt: now, UpdatedAt: now,
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go app.runJanitor(ctx, 10*time.Millisecond)

	assert.Eventually(t, func() bool {
		_, err := app.repos.RefreshTokens().Find(context.Background(), "stale")
		return err != nil
	}, time.Second, 10*time.Millisecond)
}
