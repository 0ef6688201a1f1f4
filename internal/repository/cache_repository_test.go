package repository

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/community-class-api/pkg/breaker"
	appErrors "github.com/noah-isme/community-class-api/pkg/errors"
)

func TestCacheRepositoryWithoutClientMisses(t *testing.T) {
	repo := NewCacheRepository(nil, nil)
	var dest []string
	assert.ErrorIs(t, repo.Get(context.Background(), "k", &dest), appErrors.ErrCacheMiss)
	assert.NoError(t, repo.Set(context.Background(), "k", []string{"a"}, 0))
	assert.NoError(t, repo.DeleteByPattern(context.Background(), "k*"))
	assert.NoError(t, repo.Ping(context.Background()))
}

func TestCacheRepositoryOpensBreakerWhenRedisIsDown(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:       "redis.invalid:6379",
		MaxRetries: -1,
		Dialer: func(context.Context, string, string) (net.Conn, error) {
			return nil, errors.New("connection refused")
		},
	})
	repo := NewCacheRepository(client, nil)
	defer repo.Close()

	var dest []string
	for i := 0; i < 3; i++ {
		err := repo.Get(context.Background(), "catalog:classes", &dest)
		require.Error(t, err)
		assert.False(t, breaker.IsOpen(err))
	}
	err := repo.Get(context.Background(), "catalog:classes", &dest)
	assert.True(t, breaker.IsOpen(err))
}
