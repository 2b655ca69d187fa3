// 包 cache：查询结果两级缓存（进程内 LRU + 可选 Redis）
package cache

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/mmcloughlin/geohash"
	"github.com/redis/go-redis/v9"

	"parking-api/internal/geo"
	"parking-api/internal/logger"
	"parking-api/internal/metrics"
)

const (
	TierLocal = "lru"
	TierRedis = "redis"
)

// keyPrefix 与 geohash 精度；5 位约 4.9km，同一街区的查询落在同一前缀下
const (
	keyPrefix     = "parking"
	hashPrecision = 5
)

// Results：按“数据指纹 + 操作 + 精确坐标”缓存已编码的响应
// 约束：指纹随数据内容变化，重载后旧键自然失效；rc 为 nil 时仅使用本地层
type Results struct {
	local *LRU
	rc    *redis.Client
	ttl   time.Duration
}

func NewResults(local *LRU, rc *redis.Client, ttl time.Duration) *Results {
	return &Results{local: local, rc: rc, ttl: ttl}
}

// Key 构造缓存键：parking:{geohash5}:{fingerprint}:{op}:{lat}:{lon}[:{radius}]
// 坐标按最短可逆格式输出，不做量化，保证命中结果与直接计算一致
func Key(fingerprint, op string, p geo.Point, radius float64) string {
	var b strings.Builder
	b.WriteString(keyPrefix)
	b.WriteByte(':')
	b.WriteString(geohash.EncodeWithPrecision(p.Lat, p.Lon, hashPrecision))
	b.WriteByte(':')
	b.WriteString(fingerprint)
	b.WriteByte(':')
	b.WriteString(op)
	b.WriteByte(':')
	b.WriteString(strconv.FormatFloat(p.Lat, 'g', -1, 64))
	b.WriteByte(':')
	b.WriteString(strconv.FormatFloat(p.Lon, 'g', -1, 64))
	if radius > 0 {
		b.WriteByte(':')
		b.WriteString(strconv.FormatFloat(radius, 'g', -1, 64))
	}
	return b.String()
}

// Get 先查本地，再查 Redis；Redis 命中回填本地
// Redis 故障视为未命中，只记录日志
func (c *Results) Get(ctx context.Context, key string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	if c.local != nil {
		if v, ok := c.local.Get(key); ok {
			metrics.CacheHitsTotal.WithLabelValues(TierLocal).Inc()
			return v, true
		}
		metrics.CacheMissesTotal.WithLabelValues(TierLocal).Inc()
	}
	if c.rc == nil {
		return nil, false
	}
	b, err := c.rc.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		metrics.CacheHitsTotal.WithLabelValues(TierRedis).Inc()
		if c.local != nil {
			c.local.Set(key, b)
		}
		return b, true
	case err != redis.Nil:
		logger.L().Warn("cache_redis_get_error", "key", key, "err", err)
	}
	metrics.CacheMissesTotal.WithLabelValues(TierRedis).Inc()
	return nil, false
}

func (c *Results) Set(ctx context.Context, key string, v []byte) {
	if c == nil {
		return
	}
	if c.local != nil {
		c.local.Set(key, v)
	}
	if c.rc != nil {
		if err := c.rc.Set(ctx, key, v, c.ttl).Err(); err != nil {
			logger.L().Warn("cache_redis_set_error", "key", key, "err", err)
		}
	}
}

// Purge 清空本地层；Redis 层依赖指纹换代与 TTL 过期
func (c *Results) Purge() {
	if c != nil && c.local != nil {
		c.local.Purge()
	}
}
