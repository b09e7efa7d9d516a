package store

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"PSocial/module/chat/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingUsers struct {
	inner UserDirectory
	calls atomic.Int32
	asked [][]string
	err   error
}

func (c *countingUsers) FindUsers(ctx context.Context, userIDs []string) (map[string]model.UserProfile, error) {
	c.calls.Add(1)
	c.asked = append(c.asked, append([]string(nil), userIDs...))
	if c.err != nil {
		return nil, c.err
	}
	return c.inner.FindUsers(ctx, userIDs)
}

func newCache(t *testing.T) (*miniredis.Miniredis, *countingUsers, *CachedUsers) {
	t.Helper()
	s := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	inner := &countingUsers{inner: NewMemoryUsers(
		model.UserProfile{ID: "u1", Name: "Ann", Avatar: "a.png"},
		model.UserProfile{ID: "u2", Name: "Bob"},
	)}
	return s, inner, NewCachedUsers(inner, rdb, time.Minute)
}

func TestCachedUsersFillsThenHits(t *testing.T) {
	s, inner, c := newCache(t)
	ctx := context.Background()

	got, err := c.FindUsers(ctx, []string{"u1", "u2", "u9"})
	require.NoError(t, err)
	assert.Equal(t, "Ann", got["u1"].Name)
	assert.Equal(t, "Bob", got["u2"].Name)
	assert.NotContains(t, got, "u9")
	assert.True(t, s.Exists(profileKey("u1")))
	assert.Equal(t, time.Minute, s.TTL(profileKey("u1")))

	got, err = c.FindUsers(ctx, []string{"u1", "u2"})
	require.NoError(t, err)
	assert.Equal(t, "a.png", got["u1"].Avatar)
	assert.Equal(t, int32(1), inner.calls.Load())
}

func TestCachedUsersOnlyLoadsMisses(t *testing.T) {
	_, inner, c := newCache(t)
	ctx := context.Background()

	_, err := c.FindUsers(ctx, []string{"u1"})
	require.NoError(t, err)
	_, err = c.FindUsers(ctx, []string{"u1", "u2"})
	require.NoError(t, err)

	require.Len(t, inner.asked, 2)
	assert.Equal(t, []string{"u2"}, inner.asked[1])
}

func TestCachedUsersRedisDown(t *testing.T) {
	s, inner, c := newCache(t)
	s.Close()

	got, err := c.FindUsers(context.Background(), []string{"u1"})
	require.NoError(t, err)
	assert.Equal(t, "Ann", got["u1"].Name)
	assert.Equal(t, int32(1), inner.calls.Load())
}

func TestCachedUsersInnerError(t *testing.T) {
	_, inner, c := newCache(t)
	inner.err = errors.New("db down")

	_, err := c.FindUsers(context.Background(), []string{"u1"})
	assert.Error(t, err)
}
