// Package worker provides bounded-concurrency primitives for upstream fan-out.
package worker

import (
	"context"
	"errors"
	"fmt"
)

const (
	// MinPermits is the smallest allowed limiter size.
	MinPermits = 1
	// MaxPermits is the largest allowed limiter size.
	MaxPermits = 100
)

var errNotHeld = errors.New("release without matching acquire")

// Limiter is a counting semaphore bounding the number of operations in
// flight. Permits are handed out on Acquire and returned on Release; at most
// the configured number of holders exist at any instant. Release order is
// not guaranteed to be FIFO.
type Limiter struct {
	sem chan struct{}
}

// NewLimiter creates a limiter with the given number of permits.
func NewLimiter(permits int) (*Limiter, error) {
	if permits < MinPermits || permits > MaxPermits {
		return nil, fmt.Errorf("permits must be between %d and %d, got %d", MinPermits, MaxPermits, permits)
	}
	return &Limiter{sem: make(chan struct{}, permits)}, nil
}

// Acquire blocks until a permit is available or the context is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	select {
	case l.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns a permit. Calling Release without a matching Acquire
// panics, mirroring sync primitives.
func (l *Limiter) Release() {
	select {
	case <-l.sem:
	default:
		panic(errNotHeld)
	}
}

// InFlight returns the number of permits currently held.
func (l *Limiter) InFlight() int {
	return len(l.sem)
}

// Size returns the configured permit count.
func (l *Limiter) Size() int {
	return cap(l.sem)
}
