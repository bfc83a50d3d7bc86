package testutil

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// NewMiniRedis starts an in-process Redis server and returns it with a
// client bound to it. Both are closed when the test finishes.
func NewMiniRedis(t testing.TB) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		if cerr := client.Close(); cerr != nil {
			t.Logf("warning: failed to close redis client: %v", cerr)
		}
		mr.Close()
	})
	return mr, client
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string { return &s }

// Float64Ptr returns a pointer to f.
func Float64Ptr(f float64) *float64 { return &f }

// TestTime returns a stable timestamp for deterministic tests.
func TestTime() time.Time {
	return time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
}
