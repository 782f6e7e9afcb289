package redisad_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	redisad "shop_reviews/internal/adapters/redis"
	"shop_reviews/internal/schema"
)

func newCache(t *testing.T) (*redisad.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := redisad.NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test")
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestCache_SetGetDel(t *testing.T) {
	c, mr := newCache(t)
	ctx := context.Background()

	var miss schema.Mapping
	ok, err := c.Get(ctx, "customer:1", &miss)
	if err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	in := schema.Mapping{"id": int64(1), "name": "Phil", "reviews": []schema.Mapping{}}
	if err := c.Set(ctx, "customer:1", in, 60); err != nil {
		t.Fatalf("set: %v", err)
	}
	if !mr.Exists("test:customer:1") {
		t.Fatalf("expected prefixed key in redis, have %v", mr.Keys())
	}
	if ttl := mr.TTL("test:customer:1"); ttl != 60*time.Second {
		t.Fatalf("ttl = %v", ttl)
	}

	var out schema.Mapping
	ok, err = c.Get(ctx, "customer:1", &out)
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if out["name"] != "Phil" || out["id"] != 1.0 {
		t.Fatalf("out = %v", out)
	}

	if err := c.Del(ctx, "customer:1"); err != nil {
		t.Fatalf("del: %v", err)
	}
	if mr.Exists("test:customer:1") {
		t.Fatalf("key survived Del")
	}
}

func TestCache_Expiry(t *testing.T) {
	c, mr := newCache(t)
	ctx := context.Background()
	if err := c.Set(ctx, "item:1", schema.Mapping{"id": 1}, 1); err != nil {
		t.Fatalf("set: %v", err)
	}
	mr.FastForward(2 * time.Second)
	var out schema.Mapping
	if ok, _ := c.Get(ctx, "item:1", &out); ok {
		t.Fatalf("expected expired entry")
	}
}

func TestCache_CorruptEntryIsMiss(t *testing.T) {
	c, mr := newCache(t)
	if err := mr.Set("test:review:1", "{not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	var out schema.Mapping
	ok, err := c.Get(context.Background(), "review:1", &out)
	if ok || err == nil {
		t.Fatalf("expected decode error miss, got ok=%v err=%v", ok, err)
	}
}

func TestCache_Ping(t *testing.T) {
	c, _ := newCache(t)
	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}
