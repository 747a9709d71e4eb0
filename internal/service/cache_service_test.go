package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type failingCacheRepo struct{ stubCacheRepo }

func (f *failingCacheRepo) Get(context.Context, string, interface{}) error {
	return errors.New("redis down")
}

func TestCacheAsideLoadsOnceThenHits(t *testing.T) {
	repo := &stubCacheRepo{}
	cache := NewCacheService(repo, NewMetricsService(), time.Minute, zap.NewNop(), true)
	loads := 0
	load := func(context.Context) (int, error) {
		loads++
		return 7, nil
	}

	v, hit, err := cacheAside(context.Background(), cache, "k", 0, load)
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.False(t, hit)

	v, hit, err = cacheAside(context.Background(), cache, "k", 0, load)
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.True(t, hit)
	assert.Equal(t, 1, loads)
}

func TestCacheAsideDoesNotStoreLoadErrors(t *testing.T) {
	repo := &stubCacheRepo{}
	cache := NewCacheService(repo, nil, time.Minute, zap.NewNop(), true)

	_, _, err := cacheAside(context.Background(), cache, "k", 0, func(context.Context) (string, error) {
		return "", errors.New("db down")
	})

	require.Error(t, err)
	assert.False(t, repo.has("k"))
}

func TestCacheAsideFallsBackWhenCacheFails(t *testing.T) {
	cache := NewCacheService(&failingCacheRepo{}, nil, time.Minute, zap.NewNop(), true)

	v, hit, err := cacheAside(context.Background(), cache, "k", 0, func(context.Context) (string, error) {
		return "fresh", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "fresh", v)
	assert.False(t, hit)
}

func TestDisabledCacheAlwaysLoads(t *testing.T) {
	var cache *CacheService
	loads := 0
	for i := 0; i < 2; i++ {
		_, hit, err := cacheAside(context.Background(), cache, "k", 0, func(context.Context) (int, error) {
			loads++
			return 1, nil
		})
		require.NoError(t, err)
		assert.False(t, hit)
	}
	assert.Equal(t, 2, loads)
}
