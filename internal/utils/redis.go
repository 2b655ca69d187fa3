package utils

import (
	"github.com/redis/go-redis/v9"

	"parking-api/internal/config"
	"parking-api/internal/logger"
)

// OpenRedis：REDIS_ENABLED 关闭时返回 nil，结果缓存退化为仅进程内
func OpenRedis(r config.Redis) *redis.Client {
	if !r.Enabled || r.Addr == "" {
		return nil
	}
	logger.L().Debug("redis_config", "addr", r.Addr, "db", r.DB)
	return redis.NewClient(&redis.Options{Addr: r.Addr, Password: r.Password, DB: r.DB})
}
