package dispatch

import (
	"context"
	"sync"
	"time"
)

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the SleepFunc backed by a real timer.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RateLimiter grants permission to send one message.
type RateLimiter interface {
	Acquire(ctx context.Context) error
}

// Limits are the message ceilings per window. A zero or negative limit
// disables its window.
type Limits struct {
	PerMinute int `json:"per_minute"`
	PerHour   int `json:"per_hour"`
}

type window struct {
	limit int
	size  time.Duration
	start time.Time
	count int
}

// FixedWindowLimiter counts sends since the start of the current window.
// When the count reaches the ceiling it blocks for the rest of the window
// and starts a new one. It is not a token bucket: up to twice the ceiling
// can pass around a window boundary. The state belongs to one instance, so
// two limiters do not coordinate.
type FixedWindowLimiter struct {
	mu      sync.Mutex
	windows []*window
	now     func() time.Time
	sleep   SleepFunc
	onWait  func(time.Duration)
}

// NewFixedWindowLimiter builds a limiter for l. now and sleep may be nil.
func NewFixedWindowLimiter(l Limits, now func() time.Time, sleep SleepFunc) *FixedWindowLimiter {
	if now == nil {
		now = time.Now
	}
	if sleep == nil {
		sleep = Sleep
	}
	f := &FixedWindowLimiter{now: now, sleep: sleep}
	start := now()
	if l.PerMinute > 0 {
		f.windows = append(f.windows, &window{limit: l.PerMinute, size: time.Minute, start: start})
	}
	if l.PerHour > 0 {
		f.windows = append(f.windows, &window{limit: l.PerHour, size: time.Hour, start: start})
	}
	return f
}

// OnWait registers a callback invoked with every enforced pause.
func (f *FixedWindowLimiter) OnWait(fn func(time.Duration)) {
	f.mu.Lock()
	f.onWait = fn
	f.mu.Unlock()
}

// Acquire blocks while any window is full, then counts one send.
func (f *FixedWindowLimiter) Acquire(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, w := range f.windows {
		elapsed := f.now().Sub(w.start)
		if elapsed >= w.size {
			w.start, w.count = f.now(), 0
			continue
		}
		if w.count < w.limit {
			continue
		}
		wait := w.size - elapsed
		if f.onWait != nil {
			f.onWait(wait)
		}
		if err := f.sleep(ctx, wait); err != nil {
			return err
		}
		w.start, w.count = f.now(), 0
	}
	for _, w := range f.windows {
		w.count++
	}
	return nil
}

// Unlimited never blocks.
type Unlimited struct{}

func (Unlimited) Acquire(ctx context.Context) error { return ctx.Err() }
