package queue

import (
	"context"
	"testing"
	"time"
)

func TestInMemoryQueue_PushPopOrder(t *testing.T) {
	q := NewInMemoryQueue()
	ctx := context.Background()

	for _, id := range []string{"1", "2", "3"} {
		if err := q.Push(ctx, &Task{ID: id, CreatedAt: time.Now()}); err != nil {
			t.Fatalf("push: %v", err)
		}
	}

	n, err := q.Size(ctx)
	if err != nil || n != 3 {
		t.Fatalf("size = %d, %v; want 3", n, err)
	}

	for _, want := range []string{"1", "2", "3"} {
		task, err := q.Pop(ctx)
		if err != nil {
			t.Fatalf("pop: %v", err)
		}
		if task.ID != want {
			t.Fatalf("pop order: got %s want %s", task.ID, want)
		}
	}
}

func TestInMemoryQueue_DrainsAfterClose(t *testing.T) {
	q := NewInMemoryQueue()
	ctx := context.Background()

	q.Push(ctx, &Task{ID: "a"})
	q.Close()

	if err := q.Push(ctx, &Task{ID: "b"}); err != ErrQueueClosed {
		t.Fatalf("push after close: got %v, want ErrQueueClosed", err)
	}

	task, err := q.Pop(ctx)
	if err != nil || task.ID != "a" {
		t.Fatalf("drain after close: task=%v err=%v", task, err)
	}

	if _, err := q.Pop(ctx); err != ErrQueueClosed {
		t.Fatalf("pop on empty closed queue: got %v, want ErrQueueClosed", err)
	}
}

func TestInMemoryQueue_PopUnblocksOnClose(t *testing.T) {
	q := NewInMemoryQueue()

	done := make(chan error, 1)
	go func() {
		_, err := q.Pop(context.Background())
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	q.Close()

	select {
	case err := <-done:
		if err != ErrQueueClosed {
			t.Fatalf("got %v, want ErrQueueClosed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Pop did not unblock on Close")
	}
}

func TestInMemoryQueue_PopHonorsContext(t *testing.T) {
	q := NewInMemoryQueue()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := q.Pop(ctx); err != context.DeadlineExceeded {
		t.Fatalf("got %v, want context.DeadlineExceeded", err)
	}
}

func TestInMemoryQueue_CancelledPopLeavesQueueUsable(t *testing.T) {
	q := NewInMemoryQueue()

	// Repeated pops with near-immediate deadlines must each return the
	// context error and leave the mutex in a sane state.
	for i := 0; i < 50; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
		_, err := q.Pop(ctx)
		cancel()
		if err != context.DeadlineExceeded {
			t.Fatalf("pop %d: got %v, want context.DeadlineExceeded", i, err)
		}
	}

	if err := q.Push(context.Background(), &Task{ID: "after"}); err != nil {
		t.Fatalf("push after cancelled pops: %v", err)
	}
	task, err := q.Pop(context.Background())
	if err != nil || task.ID != "after" {
		t.Fatalf("pop after cancelled pops: task=%v err=%v", task, err)
	}
}
