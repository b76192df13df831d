package redis

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// Source is the durable store a Cache reads through to.
type Source interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Cache keeps recently read values in Redis in front of a slower Source.
// Writes go to the Source first and then refresh the cached copy.
type Cache struct {
	client *redis.Client
	source Source
	ttl    time.Duration
	prefix string
	sf     singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewCache(client *redis.Client, source Source, ttl time.Duration) *Cache {
	return &Cache{
		client: client,
		source: source,
		ttl:    ttl,
		prefix: "cache:",
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if v, err := c.client.Get(ctx, c.key(key)).Bytes(); err == nil {
		return v, true, nil
	}

	type loaded struct {
		value []byte
		ok    bool
	}
	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// Another caller may have filled it while we waited.
		if v, err := c.client.Get(ctx, c.key(key)).Bytes(); err == nil {
			return loaded{value: v, ok: true}, nil
		}
		v, ok, err := c.source.Get(ctx, key)
		if err != nil || !ok {
			return loaded{}, err
		}
		_ = c.client.Set(ctx, c.key(key), v, c.ttlWithJitter()).Err()
		return loaded{value: v, ok: true}, nil
	})
	if err != nil {
		return nil, false, err
	}
	l := result.(loaded)
	return l.value, l.ok, nil
}

func (c *Cache) Set(ctx context.Context, key string, value []byte) error {
	if err := c.source.Set(ctx, key, value); err != nil {
		return err
	}
	if err := c.client.Set(ctx, c.key(key), value, c.ttlWithJitter()).Err(); err != nil {
		// A stale copy must not outlive a failed refresh.
		return c.evict(ctx, key)
	}
	return nil
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.source.Delete(ctx, key); err != nil {
		return err
	}
	return c.evict(ctx, key)
}

func (c *Cache) evict(ctx context.Context, key string) error {
	err := c.client.Del(ctx, c.key(key)).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}

func (c *Cache) key(key string) string {
	return c.prefix + key
}

func (c *Cache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
