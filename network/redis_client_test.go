package network_test

import (
	"testing"
	"time"

	"github.com/gtixt/integrity-beacon/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisClient(t *testing.T) *network.RedisClient {
	client := network.NewRedisClient(RedisTestServer.Addr(), "", 0)
	require.NotNil(t, client)
	return client
}

func TestRedisPing(t *testing.T) {
	client := newRedisClient(t)
	response, err := client.Ping()
	assert.Nil(t, err)
	assert.Equal(t, "PONG", response)
}

func TestLockAcquireAndRelease(t *testing.T) {
	client := newRedisClient(t)
	key := "test:lock:acquire"

	acquired, err := client.LockAcquire(key, "run-1", time.Minute)
	require.Nil(t, err)
	assert.True(t, acquired)

	owner, err := client.LockOwner(key)
	require.Nil(t, err)
	assert.Equal(t, "run-1", owner)

	// Second run can't take it.
	acquired, err = client.LockAcquire(key, "run-2", time.Minute)
	require.Nil(t, err)
	assert.False(t, acquired)

	// Second run can't release it either.
	released, err := client.LockRelease(key, "run-2")
	require.Nil(t, err)
	assert.False(t, released)

	released, err = client.LockRelease(key, "run-1")
	require.Nil(t, err)
	assert.True(t, released)

	owner, err = client.LockOwner(key)
	require.Nil(t, err)
	assert.Equal(t, "", owner)
}

func TestLockExpires(t *testing.T) {
	client := newRedisClient(t)
	key := "test:lock:expires"

	acquired, err := client.LockAcquire(key, "run-1", 5*time.Second)
	require.Nil(t, err)
	require.True(t, acquired)

	RedisTestServer.FastForward(6)

	acquired, err = client.LockAcquire(key, "run-2", 5*time.Second)
	require.Nil(t, err)
	assert.True(t, acquired)
}

func TestRedisRunGuard(t *testing.T) {
	guard := network.NewRedisRunGuard(newRedisClient(t), "test:lock:guard", time.Minute)

	ok, err := guard.Acquire("run-a")
	require.Nil(t, err)
	assert.True(t, ok)

	ok, err = guard.Acquire("run-b")
	require.Nil(t, err)
	assert.False(t, ok)

	require.Nil(t, guard.Release("run-a"))

	ok, err = guard.Acquire("run-b")
	require.Nil(t, err)
	assert.True(t, ok)
	require.Nil(t, guard.Release("run-b"))
}
