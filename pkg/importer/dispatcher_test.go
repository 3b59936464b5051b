package importer

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bingefriend/episode-importer/pkg/queue"
)

func newTestQueue(t *testing.T, client *redis.Client) *queue.Queue {
	t.Helper()

	q, err := queue.New(client, queue.DefaultConfig("import-work"))
	if err != nil {
		t.Fatalf("queue.New failed: %v", err)
	}
	return q
}

// drainMessages dequeues and acknowledges up to n messages, returning them
// in delivery order.
func drainMessages(t *testing.T, q *queue.Queue, n int) []Message {
	t.Helper()

	ctx := context.Background()
	messages := make([]Message, 0, n)
	for i := 0; i < n; i++ {
		delivery, err := q.Dequeue(ctx, 200*time.Millisecond)
		if err != nil {
			t.Fatalf("Dequeue failed: %v", err)
		}
		if delivery == nil {
			break
		}
		msg, err := ParseMessage(delivery.Envelope.Body)
		if err != nil {
			t.Fatalf("ParseMessage failed: %v", err)
		}
		if err := delivery.Ack(ctx); err != nil {
			t.Fatalf("Ack failed: %v", err)
		}
		messages = append(messages, msg)
	}
	return messages
}

func TestNewDispatcher_NilQueue(t *testing.T) {
	if _, err := NewDispatcher(nil); err == nil {
		t.Error("Expected error for nil queue, got nil")
	}
}

func TestDispatcher_Dispatch_UnitsThenContinuation(t *testing.T) {
	client := setupTestRedis(t)
	q := newTestQueue(t, client)
	dispatcher, err := NewDispatcher(q)
	if err != nil {
		t.Fatalf("NewDispatcher failed: %v", err)
	}

	queued, err := dispatcher.Dispatch(context.Background(), "imp-1", []int{7, 8, 9}, true, 0, 3)
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if queued != 3 {
		t.Errorf("Expected 3 queued, got %d", queued)
	}

	messages := drainMessages(t, q, 4)
	if len(messages) != 4 {
		t.Fatalf("Expected 4 messages, got %d", len(messages))
	}

	for i, wantShow := range []int{7, 8, 9} {
		msg := messages[i]
		if msg.IsContinuation() {
			t.Fatalf("Message %d is a continuation, expected unit", i)
		}
		if msg.ShowID == nil || *msg.ShowID != wantShow {
			t.Errorf("Message %d: expected show %d, got %v", i, wantShow, msg.ShowID)
		}
		if msg.ImportID != "imp-1" {
			t.Errorf("Message %d: expected import id imp-1, got %q", i, msg.ImportID)
		}
	}

	cont := messages[3]
	if !cont.IsContinuation() {
		t.Fatal("Expected final message to be a continuation")
	}
	if cont.ImportID != "imp-1" || cont.BatchNumber != 1 || cont.BatchSize != 3 {
		t.Errorf("Unexpected continuation: %+v", cont)
	}
}

func TestDispatcher_Dispatch_NoContinuationWhenDone(t *testing.T) {
	client := setupTestRedis(t)
	q := newTestQueue(t, client)
	dispatcher, err := NewDispatcher(q)
	if err != nil {
		t.Fatalf("NewDispatcher failed: %v", err)
	}

	queued, err := dispatcher.Dispatch(context.Background(), "imp-1", []int{5}, false, 4, 2)
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if queued != 1 {
		t.Errorf("Expected 1 queued, got %d", queued)
	}

	messages := drainMessages(t, q, 2)
	if len(messages) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(messages))
	}
	if messages[0].IsContinuation() {
		t.Error("Expected a unit message, got a continuation")
	}
}

func TestDispatcher_Dispatch_BackendDown(t *testing.T) {
	client := setupTestRedis(t)
	q := newTestQueue(t, client)
	dispatcher, err := NewDispatcher(q)
	if err != nil {
		t.Fatalf("NewDispatcher failed: %v", err)
	}
	client.Close()

	// Unit enqueue failures are absorbed per identifier.
	queued, err := dispatcher.Dispatch(context.Background(), "imp-1", []int{1, 2}, false, 0, 2)
	if err != nil {
		t.Fatalf("Expected unit failures to be absorbed, got %v", err)
	}
	if queued != 0 {
		t.Errorf("Expected 0 queued, got %d", queued)
	}

	// A lost continuation would stall the import, so that failure surfaces.
	if _, err := dispatcher.Dispatch(context.Background(), "imp-1", []int{1, 2}, true, 0, 2); err == nil {
		t.Error("Expected continuation enqueue failure, got nil")
	}
}
