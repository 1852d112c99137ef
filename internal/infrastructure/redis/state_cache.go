package redis

import (
	"context"
	"errors"
	"fmt"

	"auction-lifecycle/internal/domain"

	"github.com/go-redis/redis/v8"
)

var ErrStatusNotCached = errors.New("listing status not cached")

type RedisStateCache struct {
	client *redis.Client
}

func NewRedisStateCache(client *redis.Client) *RedisStateCache {
	return &RedisStateCache{client: client}
}

func (r *RedisStateCache) SetListingStatus(ctx context.Context, listingID int64, status domain.ListingStatus) error {
	key := fmt.Sprintf("listing:%d:status", listingID)
	return r.client.Set(ctx, key, status.String(), 0).Err()
}

func (r *RedisStateCache) GetListingStatus(ctx context.Context, listingID int64) (domain.ListingStatus, error) {
	key := fmt.Sprintf("listing:%d:status", listingID)

	result, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.ListingProgrammed, ErrStatusNotCached
		}
		return domain.ListingProgrammed, err
	}

	return domain.ParseListingStatus(result)
}
