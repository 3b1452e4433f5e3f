package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestInMemoryRoundTrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewInMemory(4)
	msgs, err := q.Consume(ctx)
	if err != nil {
		t.Fatal(err)
	}

	want := Message{ID: "m1", Type: TypeScan, Body: json.RawMessage(`{"biometric_id":"7"}`)}
	if err := q.Publish(ctx, want); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case got := <-msgs:
		if got.ID != want.ID || got.Type != want.Type || string(got.Body) != string(want.Body) {
			t.Fatalf("got %+v, want %+v", got, want)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestInMemoryConsumeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	q := NewInMemory(1)
	msgs, _ := q.Consume(ctx)
	cancel()

	select {
	case _, ok := <-msgs:
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop")
	}
}

func TestInMemoryPublishHonoursContext(t *testing.T) {
	q := NewInMemory(0)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := q.Publish(ctx, Message{ID: "m1"}); err == nil {
		t.Fatal("expected publish to fail without a consumer")
	}
}
