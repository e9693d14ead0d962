package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisQueue is a Redis-list-backed Queue for runs where the listing crawl
// and the enrichment phase live in different processes. Tasks are JSON
// payloads pushed with LPUSH and popped with BRPOP.
type RedisQueue struct {
	client *redis.Client
	key    string

	mu     sync.Mutex
	closed bool
}

func NewRedisQueue(ctx context.Context, addr, key string) (*RedisQueue, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return &RedisQueue{client: client, key: key}, nil
}

func (q *RedisQueue) Push(ctx context.Context, task *Task) error {
	if q.isClosed() {
		return ErrQueueClosed
	}
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("failed to push task: %w", err)
	}
	return nil
}

func (q *RedisQueue) Pop(ctx context.Context) (*Task, error) {
	for {
		if q.isClosed() {
			// Drain whatever is left without blocking.
			payload, err := q.client.RPop(ctx, q.key).Result()
			if errors.Is(err, redis.Nil) {
				return nil, ErrQueueClosed
			}
			if err != nil {
				return nil, fmt.Errorf("failed to pop task: %w", err)
			}
			return unmarshalTask([]byte(payload))
		}

		res, err := q.client.BRPop(ctx, time.Second, q.key).Result()
		if errors.Is(err, redis.Nil) {
			continue // poll again, the queue may close meanwhile
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("failed to pop task: %w", err)
		}
		// BRPop returns [key, value].
		return unmarshalTask([]byte(res[1]))
	}
}

func (q *RedisQueue) Size(ctx context.Context) (int, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read queue length: %w", err)
	}
	return int(n), nil
}

func (q *RedisQueue) Close() error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	return nil
}

// Shutdown closes the underlying client. Separate from Close so a closed
// queue can still be drained.
func (q *RedisQueue) Shutdown() error {
	return q.client.Close()
}

func (q *RedisQueue) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

func unmarshalTask(payload []byte) (*Task, error) {
	var task Task
	if err := json.Unmarshal(payload, &task); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task: %w", err)
	}
	return &task, nil
}
