package careinfo

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/dukerupert/plantcare/internal/model"
)

func TestCacheKey(t *testing.T) {
	if got := cacheKey("  Ficus Lyrata "); got != "plantcare:care:ficus lyrata" {
		t.Errorf("cacheKey = %q", got)
	}
}

func TestRedisCache(t *testing.T) {
	uri := os.Getenv("PLANTCARE_TEST_REDIS_URI")
	if uri == "" {
		t.Skip("PLANTCARE_TEST_REDIS_URI not set")
	}

	ctx := context.Background()
	client, err := ConnectRedis(ctx, uri)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()

	species := "Test species " + time.Now().Format(time.RFC3339Nano)
	t.Cleanup(func() { client.Del(context.Background(), cacheKey(species)) })

	c := NewRedisCache(client, time.Minute)

	miss, err := c.Get(ctx, species)
	if err != nil {
		t.Fatalf("get miss: %v", err)
	}
	if miss != nil {
		t.Fatalf("expected miss, got %+v", miss)
	}

	want := &model.PlantCareInfo{Name: species, WateringDays: 5, Sunlight: "Shade"}
	if err := c.Set(ctx, species, want); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := c.Get(ctx, species)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.WateringDays != 5 || got.Sunlight != "Shade" {
		t.Errorf("got %+v", got)
	}

	ttl := client.TTL(ctx, cacheKey(species)).Val()
	if ttl <= 0 || ttl > time.Minute {
		t.Errorf("ttl = %v, want within 1m", ttl)
	}
}
