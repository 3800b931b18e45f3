package network

import (
	"fmt"
	"time"

	"github.com/go-redis/redis/v7"
)

// releaseScript deletes the lock only if the caller still owns it,
// so a run that outlived its TTL can't release someone else's lock.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

type RedisClient struct {
	client *redis.Client
}

func NewRedisClient(address, password string, db int) *RedisClient {
	return &RedisClient{
		client: redis.NewClient(&redis.Options{
			Addr:     address,
			Password: password,
			DB:       db,
		}),
	}
}

func (c *RedisClient) Ping() (string, error) {
	return c.client.Ping().Result()
}

// LockAcquire sets key to owner if no one holds it. The lock expires
// after ttl so a crashed process can't hold it forever. Returns true
// if owner now holds the lock.
func (c *RedisClient) LockAcquire(key, owner string, ttl time.Duration) (bool, error) {
	acquired, err := c.client.SetNX(key, owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("LockAcquire (%s, %s): %s", key, owner, err.Error())
	}
	return acquired, nil
}

// LockRelease deletes key if owner holds it. Returns true if the
// lock was released.
func (c *RedisClient) LockRelease(key, owner string) (bool, error) {
	deleted, err := releaseScript.Run(c.client, []string{key}, owner).Int()
	if err != nil {
		return false, fmt.Errorf("LockRelease (%s, %s): %s", key, owner, err.Error())
	}
	return deleted == 1, nil
}

// LockOwner returns the current holder of key, or an empty string
// if the lock is free.
func (c *RedisClient) LockOwner(key string) (string, error) {
	owner, err := c.client.Get(key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("LockOwner (%s): %s", key, err.Error())
	}
	return owner, nil
}

// Close closes the underlying connection pool.
func (c *RedisClient) Close() error {
	return c.client.Close()
}

// RedisRunGuard keeps verification runs in different processes from
// overlapping by holding a Redis lock for the duration of each run.
type RedisRunGuard struct {
	Client *RedisClient
	Key    string
	TTL    time.Duration
}

// NewRedisRunGuard returns a guard using the lock at key.
func NewRedisRunGuard(client *RedisClient, key string, ttl time.Duration) *RedisRunGuard {
	return &RedisRunGuard{
		Client: client,
		Key:    key,
		TTL:    ttl,
	}
}

// Acquire returns true if runID now holds the lock.
func (g *RedisRunGuard) Acquire(runID string) (bool, error) {
	return g.Client.LockAcquire(g.Key, runID, g.TTL)
}

// Release gives up the lock held by runID.
func (g *RedisRunGuard) Release(runID string) error {
	_, err := g.Client.LockRelease(g.Key, runID)
	return err
}
