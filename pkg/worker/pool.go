// Package worker runs blocking provider exchanges on a bounded pool.
package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Pool bounds the number of concurrently running tasks. Submitting never
// blocks; tasks beyond the bound wait for a free slot on their own
// goroutine.
type Pool struct {
	sem    *semaphore.Weighted
	size   int
	wg     sync.WaitGroup
	active atomic.Int64
	peak   atomic.Int64
}

// NewPool creates a Pool with size slots.
func NewPool(size int) (*Pool, error) {
	if size < 1 {
		return nil, fmt.Errorf("worker pool size must be at least 1, got %d", size)
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size)), size: size}, nil
}

// Go runs fn on a pool slot.
func (p *Pool) Go(fn func()) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		// Acquire with a background context cannot fail.
		_ = p.sem.Acquire(context.Background(), 1)
		defer p.sem.Release(1)

		n := p.active.Add(1)
		defer p.active.Add(-1)
		for {
			peak := p.peak.Load()
			if n <= peak || p.peak.CompareAndSwap(peak, n) {
				break
			}
		}
		fn()
	}()
}

// Wait blocks until every task handed to Go has finished.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Size returns the number of slots.
func (p *Pool) Size() int {
	return p.size
}

// Active returns the number of tasks currently holding a slot.
func (p *Pool) Active() int {
	return int(p.active.Load())
}

// Peak returns the highest number of simultaneously active tasks seen.
func (p *Pool) Peak() int {
	return int(p.peak.Load())
}
