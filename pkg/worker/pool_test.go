package worker

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewPoolRejectsZero(t *testing.T) {
	if _, err := NewPool(0); err == nil {
		t.Fatal("expected error for empty pool")
	}
}

func TestPoolBoundsConcurrency(t *testing.T) {
	const (
		size  = 3
		tasks = 20
	)
	p, err := NewPool(size)
	if err != nil {
		t.Fatal(err)
	}

	var (
		mu      sync.Mutex
		running int
		maxSeen int
		done    atomic.Int64
	)
	for i := 0; i < tasks; i++ {
		p.Go(func() {
			mu.Lock()
			running++
			if running > maxSeen {
				maxSeen = running
			}
			mu.Unlock()

			time.Sleep(5 * time.Millisecond)

			mu.Lock()
			running--
			mu.Unlock()
			done.Add(1)
		})
	}
	p.Wait()

	if done.Load() != tasks {
		t.Errorf("got %d completed tasks, want %d", done.Load(), tasks)
	}
	if maxSeen > size {
		t.Errorf("saw %d concurrent tasks, pool size is %d", maxSeen, size)
	}
	if p.Peak() > size {
		t.Errorf("peak %d exceeds pool size %d", p.Peak(), size)
	}
	if p.Active() != 0 {
		t.Errorf("got %d active after Wait, want 0", p.Active())
	}
}

func TestPoolGoDoesNotBlock(t *testing.T) {
	p, err := NewPool(1)
	if err != nil {
		t.Fatal(err)
	}
	release := make(chan struct{})
	for i := 0; i < 10; i++ {
		p.Go(func() { <-release })
	}
	// Reaching this point means Go returned while the single slot is held.
	close(release)
	p.Wait()
}
