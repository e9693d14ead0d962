package ratelimit

import (
	"context"
	"math/rand"
	"time"
)

// Limiter is a cooperative wait inserted before outbound requests.
type Limiter interface {
	Wait(ctx context.Context) error
}

// Jitter sleeps a duration drawn uniformly from [min, max] on every Wait.
// Randomized delays avoid the uniform request timing that anti-bot systems
// key on. Safe for concurrent use.
type Jitter struct {
	min time.Duration
	max time.Duration
}

func NewJitter(min, max time.Duration) *Jitter {
	if min < 0 {
		min = 0
	}
	if max < min {
		max = min
	}
	return &Jitter{min: min, max: max}
}

func (j *Jitter) Wait(ctx context.Context) error {
	delay := j.delay()
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (j *Jitter) delay() time.Duration {
	if j.max <= j.min {
		return j.min
	}
	return j.min + time.Duration(rand.Int63n(int64(j.max-j.min)))
}

// None is a no-op limiter for tests and for callers that pace themselves.
type None struct{}

func (None) Wait(ctx context.Context) error { return ctx.Err() }
