package store

import (
	"context"
	"os"
	"testing"
)

func TestQueueDepth(t *testing.T) {
	var unset *Redis
	if _, err := unset.QueueDepth(context.Background(), "k"); err == nil {
		t.Fatal("expected error without a client")
	}

	addr := os.Getenv("ROLLCALL_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("ROLLCALL_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	r := NewRedis(addr)
	defer r.Close()

	key := "rollcall:test:depth"
	r.Client.Del(ctx, key)
	defer r.Client.Del(ctx, key)
	r.Client.LPush(ctx, key, "a", "b")

	n, err := r.QueueDepth(ctx, key)
	if err != nil || n != 2 {
		t.Fatalf("QueueDepth = %d, %v; want 2", n, err)
	}
}
