package database

import (
	"context"
	"sync"
	"time"

	"fiduciaire/pkg/config"
	"fiduciaire/pkg/queue"
)

var (
	redisQueueInstance *queue.RedisQueue
	redisQueueOnce     sync.Once
)

// GetRedisQueue returns the shared redis queue, or nil when REDIS_ENABLED is false.
func GetRedisQueue() *queue.RedisQueue {
	redisQueueOnce.Do(func() {
		cfg := config.GetConfig()
		if !cfg.Redis.Enabled {
			return
		}
		redisQueueInstance = queue.NewRedisQueue(&queue.Config{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
	})
	return redisQueueInstance
}

// PingRedis checks the shared queue within timeout. A disabled queue is not an error.
func PingRedis(timeout time.Duration) error {
	q := GetRedisQueue()
	if q == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return q.Ping(ctx)
}

// CloseRedisQueue closes the redis connection
func CloseRedisQueue() error {
	if redisQueueInstance != nil {
		return redisQueueInstance.Close()
	}
	return nil
}
