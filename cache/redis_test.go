package cache

import (
	"context"
	"errors"
	"testing"

	"storefront-svc/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupCacheTest(t *testing.T) *redis.Client {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return rdb
}

func TestProductCache_RoundTrip(t *testing.T) {
	rdb := setupCacheTest(t)
	ctx := context.Background()

	stored := models.Product{ID: "p1", Name: "Mug", Price: 199.99, Stock: 4}
	if err := SetProduct(ctx, rdb, "p1", stored); err != nil {
		t.Fatalf("SetProduct failed: %v", err)
	}

	// The entry lives under the storefront namespace with a bounded TTL.
	ttl, err := rdb.TTL(ctx, "storefront:product:p1").Result()
	if err != nil {
		t.Fatalf("TTL lookup failed: %v", err)
	}
	if ttl <= 0 || ttl > ProductTTL {
		t.Errorf("Expected TTL in (0, %v], got %v", ProductTTL, ttl)
	}

	var loaded models.Product
	if err := GetProduct(ctx, rdb, "p1", &loaded); err != nil {
		t.Fatalf("GetProduct failed: %v", err)
	}
	if loaded.Name != "Mug" || loaded.Price != 199.99 || loaded.Stock != 4 {
		t.Errorf("Unexpected cached product: %+v", loaded)
	}
}

func TestProductCache_MissReturnsNil(t *testing.T) {
	rdb := setupCacheTest(t)

	var loaded models.Product
	err := GetProduct(context.Background(), rdb, "missing", &loaded)
	if !errors.Is(err, redis.Nil) {
		t.Errorf("Expected redis.Nil on miss, got %v", err)
	}
}

func TestProductCache_Delete(t *testing.T) {
	rdb := setupCacheTest(t)
	ctx := context.Background()

	if err := SetProduct(ctx, rdb, "p1", models.Product{ID: "p1", Name: "Mug"}); err != nil {
		t.Fatalf("SetProduct failed: %v", err)
	}
	if err := DeleteProduct(ctx, rdb, "p1"); err != nil {
		t.Fatalf("DeleteProduct failed: %v", err)
	}

	var loaded models.Product
	if err := GetProduct(ctx, rdb, "p1", &loaded); !errors.Is(err, redis.Nil) {
		t.Errorf("Expected redis.Nil after delete, got %v", err)
	}
}
