package lock

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Guard keeps two dispatch cycles from running at once. TryAcquire returns
// ok=false when another holder has it; release must be called when ok.
type Guard interface {
	TryAcquire(ctx context.Context) (release func(), ok bool, err error)
}

// LocalGuard is an in-process guard.
type LocalGuard struct {
	held atomic.Bool
}

func NewLocalGuard() *LocalGuard { return &LocalGuard{} }

func (g *LocalGuard) TryAcquire(context.Context) (func(), bool, error) {
	if !g.held.CompareAndSwap(false, true) {
		return nil, false, nil
	}
	return func() { g.held.Store(false) }, true, nil
}

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
    return redis.call("del", KEYS[1])
end
return 0
`)

// RedisGuard holds a SET NX key with a TTL so expiry frees a crashed
// holder's lock.
type RedisGuard struct {
	Client *redis.Client
	Key    string
	TTL    time.Duration
}

func NewRedisGuard(client *redis.Client, key string, ttl time.Duration) *RedisGuard {
	return &RedisGuard{Client: client, Key: key, TTL: ttl}
}

func (g *RedisGuard) TryAcquire(ctx context.Context) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := g.Client.SetNX(ctx, g.Key, token, g.TTL).Result()
	if err != nil {
		return nil, false, errors.Wrapf(err, "acquire %s", g.Key)
	}
	if !ok {
		return nil, false, nil
	}
	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, g.Client, []string{g.Key}, token).Err()
	}
	return release, true, nil
}

var (
	_ Guard = (*LocalGuard)(nil)
	_ Guard = (*RedisGuard)(nil)
)
