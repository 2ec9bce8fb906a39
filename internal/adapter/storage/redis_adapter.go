package storage

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/storefront/internal/core/domain"
)

const (
	stockKeyPrefix    = "stock:"
	idempotencyKeyTTL = 24 * time.Hour
)

// reserveStockScript decrements every key by its quantity only when all of
// them hold enough stock. Missing keys count as zero.
var reserveStockScript = redis.NewScript(`
for i, key in ipairs(KEYS) do
	local current = tonumber(redis.call('GET', key) or '0')
	if current < tonumber(ARGV[i]) then
		return 0
	end
end

for i, key in ipairs(KEYS) do
	redis.call('DECRBY', key, ARGV[i])
end

return 1
`)

type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func (r *RedisAdapter) ReserveStock(ctx context.Context, items []domain.StockReservationItem) (bool, error) {
	keys := make([]string, len(items))
	args := make([]any, len(items))
	for i, item := range items {
		keys[i] = stockKeyPrefix + item.SkuCode
		args[i] = item.Quantity
	}

	result, err := reserveStockScript.Run(ctx, r.client, keys, args...).Int()
	if err != nil {
		return false, err
	}

	return result == 1, nil
}

func (r *RedisAdapter) ReleaseStock(ctx context.Context, items []domain.StockReservationItem) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, item := range items {
			pipe.IncrBy(ctx, stockKeyPrefix+item.SkuCode, int64(item.Quantity))
		}
		return nil
	})
	return err
}

func (r *RedisAdapter) SetStock(ctx context.Context, skuCode string, quantity int) error {
	return r.client.Set(ctx, stockKeyPrefix+skuCode, quantity, 0).Err()
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, 1, idempotencyKeyTTL).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func (r *RedisAdapter) ReleaseIdempotency(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}
