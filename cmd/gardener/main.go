// Command gardener runs the autonomous garden steward.
// It observes the garden, picks at most one intervention by rule,
// and acts via the admin API.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/talgya/mini-garden/internal/engine"
	"github.com/talgya/mini-garden/internal/gardener"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level:       slog.LevelInfo,
		ReplaceAttr: engine.ReplaceLevel,
	}))
	slog.SetDefault(logger)

	// Configuration from environment.
	apiURL := envOrDefault("GARDENSIM_API_URL", "http://localhost:8080")
	adminKey := os.Getenv("GARDENSIM_ADMIN_KEY")
	memoryPath := envOrDefault("GARDENER_MEMORY", "gardener_memory.json")
	intervalSec := envIntOrDefault("GARDENER_INTERVAL", 60)

	if adminKey == "" {
		slog.Error("GARDENSIM_ADMIN_KEY is required")
		os.Exit(1)
	}

	interval := time.Duration(intervalSec) * time.Second

	slog.Info("garden steward starting",
		"api_url", apiURL,
		"interval", interval,
		"memory", memoryPath,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	steward := &gardener.Steward{
		Observer: gardener.NewObserver(apiURL),
		Actor:    gardener.NewActor(apiURL, adminKey),
		Memory:   gardener.LoadMemory(memoryPath),
		Logger:   logger,
	}
	if last, ok := steward.Memory.Last(); ok {
		slog.Info("resuming from memory", "records", len(steward.Memory.Records), "last_action", last.Action)
	}

	// Wait for the garden API to be ready before the first cycle.
	slog.Info("waiting for garden API...")
	if !waitForAPI(ctx, steward.Observer) {
		slog.Error("garden API did not become ready")
		os.Exit(1)
	}

	// Run first cycle immediately.
	steward.RunCycle(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			steward.RunCycle(ctx)
		case <-ctx.Done():
			slog.Info("shutting down", "recent", steward.Memory.Summary(3, time.Now()))
			return
		}
	}
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envIntOrDefault(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return defaultVal
}

// waitForAPI polls the status endpoint with exponential backoff until it
// responds. Gives up after 5 minutes or when ctx is cancelled.
func waitForAPI(ctx context.Context, o *gardener.Observer) bool {
	backoff := 2 * time.Second
	maxBackoff := 30 * time.Second
	deadline := time.Now().Add(5 * time.Minute)

	for {
		if o.Ready(ctx) {
			slog.Info("garden API is ready")
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		slog.Info("garden API not ready, retrying...", "backoff", backoff)
		select {
		case <-ctx.Done():
			return false
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}
