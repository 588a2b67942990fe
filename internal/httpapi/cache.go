package httpapi

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// StatsCache guarda as respostas de stats no Redis com TTL curto,
// pra aliviar o store em consultas frequentes.
type StatsCache struct{ R *redis.Client }

func NewStatsCache(r *redis.Client) *StatsCache { return &StatsCache{R: r} }

func statsKey(scope string) string { return "flip:stats:" + scope }

func (c *StatsCache) Get(ctx context.Context, scope string, dst any) (bool, error) {
	b, err := c.R.Get(ctx, statsKey(scope)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(b, dst)
}

func (c *StatsCache) Set(ctx context.Context, scope string, v any, ttl time.Duration) error {
	b, _ := json.Marshal(v)
	return c.R.Set(ctx, statsKey(scope), b, ttl).Err()
}
