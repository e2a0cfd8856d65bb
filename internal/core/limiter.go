package core

// limiter.go bounds the number of import requests a server accepts at
// once. Runs against one store are serialized by the Importer; the limiter
// keeps callers from queueing behind it without bound.

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// ErrTooManyRuns is returned when no run slot frees up within the wait
// limit. Clients should retry later.
var ErrTooManyRuns = errors.New("too many concurrent imports, please try again later")

const (
	// DefaultMaxPendingRuns is the default number of accepted runs.
	DefaultMaxPendingRuns = 4

	// DefaultRunWait is how long a caller waits for a slot.
	DefaultRunWait = 30 * time.Second
)

// RunLimiter admits at most a fixed number of import runs, running or
// waiting for the store.
type RunLimiter struct {
	sem     *semaphore.Weighted
	size    int
	maxWait time.Duration

	active atomic.Int64
}

// NewRunLimiter returns a limiter with size slots. Callers wait up to
// maxWait for a slot. Non-positive values select the defaults.
func NewRunLimiter(size int, maxWait time.Duration) *RunLimiter {
	if size <= 0 {
		size = DefaultMaxPendingRuns
	}
	if maxWait <= 0 {
		maxWait = DefaultRunWait
	}
	return &RunLimiter{
		sem:     semaphore.NewWeighted(int64(size)),
		size:    size,
		maxWait: maxWait,
	}
}

// Acquire takes a slot, waiting at most the limiter's wait time. The
// caller must Release the slot.
func (l *RunLimiter) Acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	if err := l.sem.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrTooManyRuns
	}
	l.active.Add(1)
	return nil
}

// TryAcquire takes a slot only if one is free.
func (l *RunLimiter) TryAcquire() bool {
	if !l.sem.TryAcquire(1) {
		return false
	}
	l.active.Add(1)
	return true
}

// Release frees a slot taken by Acquire or TryAcquire.
func (l *RunLimiter) Release() {
	l.active.Add(-1)
	l.sem.Release(1)
}

// Drain blocks until every taken slot is released or ctx ends.
func (l *RunLimiter) Drain(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for l.active.Load() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// LimiterStatus is a snapshot of a RunLimiter.
type LimiterStatus struct {
	Active    int `json:"active"`
	Available int `json:"available"`
	Size      int `json:"size"`
}

// Status reports the current slot usage.
func (l *RunLimiter) Status() LimiterStatus {
	active := int(l.active.Load())
	return LimiterStatus{
		Active:    active,
		Available: l.size - active,
		Size:      l.size,
	}
}
