package leader

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

const DefaultLeaseKey = "auction_lifecycle_lease"

// RedisPassLease is a single-writer token: SET NX with a TTL, renewed by
// its holder and released only by its holder.
type RedisPassLease struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func NewRedisPassLease(client *redis.Client, key string, ttl time.Duration) *RedisPassLease {
	if key == "" {
		key = DefaultLeaseKey
	}
	return &RedisPassLease{
		client: client,
		key:    key,
		ttl:    ttl,
	}
}

// Acquire takes the lease, or renews it when holderID already holds it.
func (r *RedisPassLease) Acquire(ctx context.Context, holderID string) (bool, error) {
	luaScript := `
        local current = redis.call("GET", KEYS[1])
        if current == false then
            redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
            return 1
        elseif current == ARGV[1] then
            redis.call("PEXPIRE", KEYS[1], ARGV[2])
            return 1
        end
        return 0
    `

	result, err := r.client.Eval(ctx, luaScript, []string{r.key}, holderID, r.ttl.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return result == 1, nil
}

func (r *RedisPassLease) Holder(ctx context.Context) (string, error) {
	holder, err := r.client.Get(ctx, r.key).Result()
	if err == redis.Nil {
		return "", nil
	}
	return holder, err
}

func (r *RedisPassLease) Release(ctx context.Context, holderID string) error {
	// Use Lua script to ensure atomic release
	luaScript := `
        if redis.call("GET", KEYS[1]) == ARGV[1] then
            return redis.call("DEL", KEYS[1])
        else
            return 0
        end
    `

	_, err := r.client.Eval(ctx, luaScript, []string{r.key}, holderID).Result()
	return err
}
