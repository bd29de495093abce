// File: utils/cache.go
package utils

import (
	"context"
	"log"
	"time"

	"notifyhub/config"

	"github.com/go-redis/redis/v8"
)

var (
	// CacheClient is the generic cache client.
	CacheClient *redis.Client
	// RealtimeClient is the dedicated client for the realtime pub/sub channel.
	RealtimeClient *redis.Client
)

// InitCache initializes the generic Redis cache client (using DB from AppConfig for general caching).
func InitCache() {
	CacheClient = redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisCacheDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := CacheClient.Ping(ctx).Result()
	if err != nil {
		log.Fatalf("Failed to connect to Redis (Cache): %v", err)
	}
}

// GetCacheClient returns the generic cache client.
func GetCacheClient() *redis.Client {
	if CacheClient == nil {
		InitCache()
	}
	return CacheClient
}

// InitRealtime initializes the Redis client backing the notification push channel.
func InitRealtime() {
	RealtimeClient = redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisRealtimeDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := RealtimeClient.Ping(ctx).Result()
	if err != nil {
		log.Fatalf("Failed to connect to Redis (Realtime): %v", err)
	}
}

// GetRealtimeClient returns the Redis client for the realtime channel.
func GetRealtimeClient() *redis.Client {
	if RealtimeClient == nil {
		InitRealtime()
	}
	return RealtimeClient
}

// InitRedis initializes all Redis clients used by the service.
func InitRedis() {
	InitCache()
	InitRealtime()
}
