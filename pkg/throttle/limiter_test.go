package throttle

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func TestReserveUnthrottled(t *testing.T) {
	l := New()
	for i := 0; i < 5; i++ {
		if d := l.Reserve("free", 0); d != 0 {
			t.Fatalf("reservation %d: got wait %v, want 0", i, d)
		}
	}
}

func TestReserveSpacing(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	l := New(WithClock(clock.Now))

	waits := []time.Duration{
		l.Reserve("ep", 2),
		l.Reserve("ep", 2),
		l.Reserve("ep", 2),
	}
	want := []time.Duration{0, 500 * time.Millisecond, time.Second}
	for i := range want {
		if waits[i] != want[i] {
			t.Errorf("reservation %d: got %v, want %v", i, waits[i], want[i])
		}
	}

	// Once the cursor is in the past, the next reservation is immediate.
	clock.Advance(5 * time.Second)
	if d := l.Reserve("ep", 2); d != 0 {
		t.Errorf("got %v after idle period, want 0", d)
	}
}

func TestReserveEndpointsIndependent(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	l := New(WithClock(clock.Now))

	l.Reserve("a", 1)
	if d := l.Reserve("b", 1); d != 0 {
		t.Errorf("endpoint b should not wait on a, got %v", d)
	}
	if d := l.Reserve("a", 1); d != time.Second {
		t.Errorf("got %v, want 1s", d)
	}
}

func TestConcurrentReservationsAreSpaced(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	l := New(WithClock(clock.Now))

	const (
		n    = 50
		rate = 4.0
	)
	var (
		mu     sync.Mutex
		starts []time.Time
		wg     sync.WaitGroup
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			now := clock.Now()
			d := l.Reserve("ep", rate)
			mu.Lock()
			starts = append(starts, now.Add(d))
			mu.Unlock()
		}()
	}
	wg.Wait()

	sort.Slice(starts, func(i, j int) bool { return starts[i].Before(starts[j]) })
	interval := time.Duration(float64(time.Second) / rate)
	for i := 1; i < len(starts); i++ {
		if gap := starts[i].Sub(starts[0]); gap < time.Duration(i)*interval {
			t.Fatalf("reservation %d granted %v after the first, want at least %v", i, gap, time.Duration(i)*interval)
		}
	}
}

func TestWaitSleeps(t *testing.T) {
	l := New()
	l.Reserve("ep", 20)

	begin := time.Now()
	d, err := l.Wait(context.Background(), "ep", 20)
	if err != nil {
		t.Fatal(err)
	}
	if d <= 0 {
		t.Fatalf("expected a positive wait, got %v", d)
	}
	if elapsed := time.Since(begin); elapsed < 40*time.Millisecond {
		t.Errorf("returned after %v, want at least ~50ms", elapsed)
	}
}

func TestWaitCancelled(t *testing.T) {
	l := New()
	l.Reserve("ep", 0.1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := l.Wait(ctx, "ep", 0.1); err != context.Canceled {
		t.Fatalf("got %v, want context.Canceled", err)
	}
}

func TestReset(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	l := New(WithClock(clock.Now))
	l.Reserve("ep", 1)
	l.Reset("ep")
	if d := l.Reserve("ep", 1); d != 0 {
		t.Errorf("got %v after reset, want 0", d)
	}
}
