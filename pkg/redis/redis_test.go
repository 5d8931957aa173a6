package redis

import (
	"context"
	"testing"
	"time"

	"github.com/wonny/stockgame/pkg/config"
)

func TestNewClient_Disabled(t *testing.T) {
	cfg := &config.Config{
		Redis: config.RedisConfig{Enabled: false},
	}

	client, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if client.Enabled() {
		t.Error("Expected client to be disabled")
	}

	if err := client.Close(); err != nil {
		t.Errorf("Close() on disabled client returned %v", err)
	}
}

func TestRateLimiter_Disabled(t *testing.T) {
	limiter := NewRateLimiter(Disabled(), "test")
	cfg := LLMRateLimit(30)

	allowed, remaining, err := limiter.Allow(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if !allowed {
		t.Error("Expected request to be allowed when Redis disabled")
	}
	if remaining != 30 {
		t.Errorf("Expected remaining = 30, got %d", remaining)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := limiter.Wait(ctx, cfg); err != nil {
		t.Errorf("Wait() error = %v", err)
	}
}

func TestCache_Disabled(t *testing.T) {
	cache := NewCache(Disabled(), "test")
	ctx := context.Background()

	var result string
	found, err := cache.Get(ctx, "key", &result)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if found {
		t.Error("Expected cache miss when Redis disabled")
	}

	if err := cache.Set(ctx, "key", "value", TTLShort); err != nil {
		t.Errorf("Set() error = %v", err)
	}
	if err := cache.Flush(ctx); err != nil {
		t.Errorf("Flush() error = %v", err)
	}
}

func TestCache_GetOrSetDisabledCallsFn(t *testing.T) {
	cache := NewCache(Disabled(), "test")

	calls := 0
	var got map[string]int
	err := cache.GetOrSet(context.Background(), CategoryCountsKey(), &got, TTLMedium, func() (interface{}, error) {
		calls++
		return map[string]int{"Tech": 3}, nil
	})
	if err != nil {
		t.Fatalf("GetOrSet() error = %v", err)
	}

	if calls != 1 {
		t.Errorf("Expected fn called once, got %d", calls)
	}
	if got["Tech"] != 3 {
		t.Errorf("Expected Tech=3, got %v", got)
	}
}

func TestCacheKeys(t *testing.T) {
	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"CategoryCountsKey", CategoryCountsKey(), "categories:counts"},
		{"StockListKey", StockListKey("Tech", 2, 50), "stocks:list:Tech:2:50"},
		{"StockListKey all", StockListKey("", 1, 20), "stocks:list:all:1:20"},
		{"StockKey", StockKey("AAPL"), "stocks:ticker:AAPL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("got %q, want %q", tt.got, tt.expected)
			}
		})
	}
}
