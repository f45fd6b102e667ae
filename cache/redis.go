// Package cache holds the redis-backed product cache. Keys live under the
// storefront: namespace so the instance can be shared with other tools.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ProductTTL bounds how stale a cached product may get. Writes that change
// price or stock delete the entry instead of waiting for expiry.
const ProductTTL = 5 * time.Minute

func productKey(id string) string {
	return "storefront:product:" + id
}

func InitRedis(logger *zap.Logger) (*redis.Client, error) {
	host := getEnv("REDIS_HOST", "localhost")
	port := getEnv("REDIS_PORT", "6379")
	password := getEnv("REDIS_PASSWORD", "")

	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", host, port),
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Redis connection established")
	return rdb, nil
}

// GetProduct loads a cached product into dest. Returns redis.Nil on a miss.
func GetProduct(ctx context.Context, rdb *redis.Client, id string, dest any) error {
	data, err := rdb.Get(ctx, productKey(id)).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

func SetProduct(ctx context.Context, rdb *redis.Client, id string, product any) error {
	data, err := json.Marshal(product)
	if err != nil {
		return err
	}
	return rdb.Set(ctx, productKey(id), data, ProductTTL).Err()
}

// DeleteProduct drops a cached product, called after any write that changes
// its price or stock so listings never serve a stale counter.
func DeleteProduct(ctx context.Context, rdb *redis.Client, id string) error {
	return rdb.Del(ctx, productKey(id)).Err()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
