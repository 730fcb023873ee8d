//go:build integration

package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedisContainer starts a disposable Redis for the budget hash.
func setupRedisContainer(t *testing.T) *redis.Client {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	t.Cleanup(func() {
		redisClient.Close()
		container.Terminate(context.Background())
	})

	return redisClient
}

// TestIntegration_BudgetSharedAcrossProcesses simulates two client
// processes sharing the budget hash: one observes the backend's headers,
// the other gates on the result.
func TestIntegration_BudgetSharedAcrossProcesses(t *testing.T) {
	redisClient := setupRedisContainer(t)
	ctx := context.Background()

	writer := NewTracker(redisClient, zerolog.Nop())
	reader := NewTracker(redisClient, zerolog.Nop())
	reader.throttle = 10 * time.Millisecond

	// Healthy headers observed by the writer
	if err := writer.UpdateFromHeaders(ctx, budgetHeaders(80, 60)); err != nil {
		t.Fatalf("UpdateFromHeaders failed: %v", err)
	}

	allowed, err := reader.ShouldAllowRequest(ctx)
	if err != nil {
		t.Fatalf("ShouldAllowRequest failed: %v", err)
	}
	if !allowed {
		t.Error("Healthy budget should allow requests in the second process")
	}

	// Budget collapses; the reader must start blocking
	if err := writer.UpdateFromHeaders(ctx, budgetHeaders(1, 60)); err != nil {
		t.Fatalf("UpdateFromHeaders failed: %v", err)
	}

	allowed, err = reader.ShouldAllowRequest(ctx)
	if err != nil {
		t.Fatalf("ShouldAllowRequest failed: %v", err)
	}
	if allowed {
		t.Error("Critical budget written by one process should block the other")
	}
}

// TestIntegration_WindowRolloverUnblocks verifies the self-healing
// behavior: an exhausted budget stops blocking once its window ends.
func TestIntegration_WindowRolloverUnblocks(t *testing.T) {
	redisClient := setupRedisContainer(t)
	ctx := context.Background()

	tracker := NewTracker(redisClient, zerolog.Nop())

	// Window of 1 second, budget exhausted
	if err := tracker.UpdateFromHeaders(ctx, budgetHeaders(0, 1)); err != nil {
		t.Fatalf("UpdateFromHeaders failed: %v", err)
	}

	allowed, err := tracker.ShouldAllowRequest(ctx)
	if err != nil {
		t.Fatalf("ShouldAllowRequest failed: %v", err)
	}
	if allowed {
		t.Fatal("Exhausted budget should block inside its window")
	}

	time.Sleep(1500 * time.Millisecond)

	allowed, err = tracker.ShouldAllowRequest(ctx)
	if err != nil {
		t.Fatalf("ShouldAllowRequest failed: %v", err)
	}
	if !allowed {
		t.Error("Requests should be allowed again after the window ends")
	}
}
