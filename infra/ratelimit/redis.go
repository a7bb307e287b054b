// Package ratelimit provides a fixed-window send limiter shared through
// Redis, for deployments where several processes send from one mailbox.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MarcinPiech/DHLAI/core/dispatch"
)

const defaultPrefix = "dhlai:ratelimit:"

// Counter increments the counter at key, expiring it after ttl.
type Counter interface {
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

type redisCounter struct {
	rdb redis.Cmdable
}

func (c redisCounter) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	var incr *redis.IntCmd
	_, err := c.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, key)
		p.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("ratelimit INCR %s: %w", key, err)
	}
	return incr.Val(), nil
}

type window struct {
	name  string
	limit int64
	size  time.Duration
}

// SharedLimiter is a fixed-window limiter whose counters live in Redis.
// Windows are aligned to the wall clock, so every process sharing the
// prefix counts against the same minute and hour.
type SharedLimiter struct {
	counter Counter
	prefix  string
	windows []window
	now     func() time.Time
	sleep   dispatch.SleepFunc
	onWait  func(time.Duration)
}

// NewSharedLimiter returns a limiter backed by rdb. An empty prefix uses
// the default namespace.
func NewSharedLimiter(rdb redis.Cmdable, prefix string, l dispatch.Limits) *SharedLimiter {
	return NewSharedLimiterWithCounter(redisCounter{rdb: rdb}, prefix, l, nil, nil)
}

// NewSharedLimiterWithCounter builds a limiter on any Counter. now and
// sleep may be nil.
func NewSharedLimiterWithCounter(c Counter, prefix string, l dispatch.Limits, now func() time.Time, sleep dispatch.SleepFunc) *SharedLimiter {
	if prefix == "" {
		prefix = defaultPrefix
	}
	if now == nil {
		now = time.Now
	}
	if sleep == nil {
		sleep = dispatch.Sleep
	}
	s := &SharedLimiter{counter: c, prefix: prefix, now: now, sleep: sleep}
	if l.PerMinute > 0 {
		s.windows = append(s.windows, window{name: "m", limit: int64(l.PerMinute), size: time.Minute})
	}
	if l.PerHour > 0 {
		s.windows = append(s.windows, window{name: "h", limit: int64(l.PerHour), size: time.Hour})
	}
	return s
}

// OnWait registers a callback invoked with every enforced pause.
func (s *SharedLimiter) OnWait(fn func(time.Duration)) { s.onWait = fn }

// Acquire counts one send in every window, sleeping until the next window
// when one is already full.
func (s *SharedLimiter) Acquire(ctx context.Context) error {
	for _, w := range s.windows {
		for {
			now := s.now()
			start := now.Truncate(w.size)
			key := fmt.Sprintf("%s%s:%d", s.prefix, w.name, start.Unix())
			n, err := s.counter.Incr(ctx, key, 2*w.size)
			if err != nil {
				return err
			}
			if n <= w.limit {
				break
			}
			wait := start.Add(w.size).Sub(now)
			if s.onWait != nil {
				s.onWait(wait)
			}
			if err := s.sleep(ctx, wait); err != nil {
				return err
			}
		}
	}
	return nil
}
