package cache

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
)

type payload struct {
	Name  string   `json:"name"`
	Moves []string `json:"moves"`
}

func newTestCache(t *testing.T) (*CacheService, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(func() { mr.Close() })

	port, err := strconv.Atoi(mr.Port())
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	c, err := NewCacheService(CacheConfig{Host: mr.Host(), Port: port}, nil)
	if err != nil {
		t.Fatalf("NewCacheService: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestSetGetRoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	in := payload{Name: "game-7", Moves: []string{"e2e4", "e7e5"}}
	if err := c.Set(ctx, "k1", in, time.Hour); err != nil {
		t.Fatalf("Set: %v", err)
	}

	var out payload
	if err := c.Get(ctx, "k1", &out); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if out.Name != in.Name || len(out.Moves) != 2 || out.Moves[1] != "e7e5" {
		t.Fatalf("round trip mismatch: %+v", out)
	}
}

func TestGetMiss(t *testing.T) {
	c, _ := newTestCache(t)

	var out payload
	err := c.Get(context.Background(), "absent", &out)
	if !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("want ErrCacheMiss, got %v", err)
	}
	if out.Name != "" {
		t.Fatalf("miss mutated out: %+v", out)
	}
}

func TestSetAppliesTTL(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "k1", payload{Name: "x"}, time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if ttl := mr.TTL("k1"); ttl != time.Minute {
		t.Fatalf("ttl = %v, want 1m", ttl)
	}

	mr.FastForward(2 * time.Minute)
	var out payload
	if err := c.Get(ctx, "k1", &out); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expired key: want ErrCacheMiss, got %v", err)
	}
}

func TestDel(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "k1", payload{Name: "x"}, 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := c.Del(ctx, "k1"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	var out payload
	if err := c.Get(ctx, "k1", &out); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("after Del: want ErrCacheMiss, got %v", err)
	}
	if err := c.Del(ctx); err != nil {
		t.Fatalf("Del with no keys: %v", err)
	}
}

func TestNewCacheServiceRequiresHost(t *testing.T) {
	if _, err := NewCacheService(CacheConfig{}, nil); err == nil {
		t.Fatal("expected error for empty host")
	}
}
