package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/confhub-api/pkg/errors"
)

func TestCacheRepositoryGetHitAndMiss(t *testing.T) {
	client, mock := redismock.NewClientMock()
	repo := NewCacheRepository(client, "confhub:", nil)

	mock.ExpectGet("confhub:unread:u1").SetVal(`3`)
	var count int
	require.NoError(t, repo.Get(context.Background(), "unread:u1", &count))
	assert.Equal(t, 3, count)

	mock.ExpectGet("confhub:unread:u2").RedisNil()
	err := repo.Get(context.Background(), "unread:u2", &count)
	assert.ErrorIs(t, err, appErrors.ErrCacheMiss)

	mock.ExpectGet("confhub:unread:u3").SetErr(errors.New("conn reset"))
	err = repo.Get(context.Background(), "unread:u3", &count)
	require.Error(t, err)
	assert.NotErrorIs(t, err, appErrors.ErrCacheMiss)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCacheRepositorySetAndDelete(t *testing.T) {
	client, mock := redismock.NewClientMock()
	repo := NewCacheRepository(client, "confhub:", nil)

	mock.ExpectSet("confhub:unread:u1", []byte(`0`), time.Minute).SetVal("OK")
	require.NoError(t, repo.Set(context.Background(), "unread:u1", 0, time.Minute))

	mock.ExpectDel("confhub:dashboard:summary").SetVal(1)
	require.NoError(t, repo.Delete(context.Background(), "dashboard:summary"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCacheRepositoryNilClient(t *testing.T) {
	repo := NewCacheRepository(nil, "", nil)
	var v string
	assert.ErrorIs(t, repo.Get(context.Background(), "k", &v), appErrors.ErrCacheMiss)
	assert.NoError(t, repo.Set(context.Background(), "k", "v", time.Second))
	assert.NoError(t, repo.Delete(context.Background(), "k"))
	assert.NoError(t, repo.DeleteByPattern(context.Background(), "*"))
}
