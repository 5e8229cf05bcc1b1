//go:build integration

package client

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/MyGameListPlaceholder/my-game-list-backend/internal/testutil"
	"github.com/MyGameListPlaceholder/my-game-list-backend/pkg/catalog"
)

// setupRedisContainer creates a Redis container for integration testing.
func setupRedisContainer(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := redisContainer.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := redisContainer.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		client.Close()
		redisContainer.Terminate(ctx)
	}

	return client, cleanup
}

func TestIntegration_SharedRateLimit(t *testing.T) {
	redisClient, cleanup := setupRedisContainer(t)
	defer cleanup()

	mock := testutil.NewMockIGDB()
	defer mock.Close()
	mock.SetResource("genres", testutil.GenerateGenres(5))

	newClient := func() *Client {
		cfg := DefaultConfig(testutil.MockClientID, testutil.MockClientSecret)
		cfg.TokenURL = mock.TokenURL()
		cfg.BaseURL = mock.BaseURL()
		cfg.Redis = redisClient

		c, err := New(context.Background(), cfg)
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		return c
	}

	a, b := newClient(), newClient()
	defer a.Close()
	defer b.Close()

	if !a.Limiter().Shared() {
		t.Fatal("limiter should be shared when Redis is configured")
	}

	// Each client alone fits its local burst; together they exceed the
	// shared ceiling and one of them must roll into the next window.
	start := time.Now()
	var wg sync.WaitGroup
	for _, c := range []*Client{a, b} {
		wg.Add(1)
		go func(c *Client) {
			defer wg.Done()
			if _, err := c.FetchAll(context.Background(), catalog.KindGenres, "fields name;"); err != nil {
				t.Errorf("FetchAll() error = %v", err)
			}
		}(c)
	}
	wg.Wait()

	if elapsed := time.Since(start); elapsed < 500*time.Millisecond {
		t.Errorf("8 calls across two clients took %v, want shared pacing", elapsed)
	}
	if got := mock.GetRequestCount(); got != 8 {
		t.Errorf("catalog requests = %d, want 8", got)
	}
}

func TestIntegration_MultiBatchWalk(t *testing.T) {
	redisClient, cleanup := setupRedisContainer(t)
	defer cleanup()

	mock := testutil.NewMockIGDB()
	defer mock.Close()
	mock.SetResource("games", testutil.GenerateGames(2100))

	cfg := DefaultConfig(testutil.MockClientID, testutil.MockClientSecret)
	cfg.TokenURL = mock.TokenURL()
	cfg.BaseURL = mock.BaseURL()
	cfg.Redis = redisClient

	c, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer c.Close()

	start := time.Now()
	objects, err := c.FetchAll(context.Background(), catalog.KindGames, "fields name;")
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}

	// Second batch starts at offset 500 and repeats 1500 items.
	if len(objects) != 3600 {
		t.Errorf("got %d records, want 3600", len(objects))
	}
	if elapsed := time.Since(start); elapsed < time.Second {
		t.Errorf("two batches took %v, want at least the 1s pace", elapsed)
	}
	if got := mock.GetRequestCount(); got != 8 {
		t.Errorf("catalog requests = %d, want 8", got)
	}
}
