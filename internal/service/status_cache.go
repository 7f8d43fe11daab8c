package service

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// StatusCache BOM派生状态的展示缓存。状态一律按读取时重算为准，
// 缓存只为列表页减负；物料启停时按涉及的BOM失效。
// rdb 为nil时所有方法退化为直通。
type StatusCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStatusCache(rdb *redis.Client) *StatusCache {
	return &StatusCache{rdb: rdb, ttl: 10 * time.Minute}
}

func statusKey(bomID int64) string {
	return fmt.Sprintf("mps:bom:status:%d", bomID)
}

func (c *StatusCache) Get(ctx context.Context, bomID int64) (string, bool) {
	if c == nil || c.rdb == nil {
		return "", false
	}
	val, err := c.rdb.Get(ctx, statusKey(bomID)).Result()
	if err != nil {
		return "", false
	}
	return val, true
}

func (c *StatusCache) Set(ctx context.Context, bomID int64, status string) {
	if c == nil || c.rdb == nil {
		return
	}
	c.rdb.Set(ctx, statusKey(bomID), status, c.ttl)
}

func (c *StatusCache) InvalidateBOMs(ctx context.Context, bomIDs []int64) {
	if c == nil || c.rdb == nil || len(bomIDs) == 0 {
		return
	}
	keys := make([]string, len(bomIDs))
	for i, id := range bomIDs {
		keys[i] = statusKey(id)
	}
	c.rdb.Del(ctx, keys...)
}
