package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"crm-gateway-go/pkg/log"
)

var RDB *redis.Client

// InitRedis 初始化 Redis 客户端连接，目前只有限流中间件使用它
func InitRedis(addr, password string, db int) error {
	RDB = redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := RDB.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Info("Redis client connected successfully")
	return nil
}
