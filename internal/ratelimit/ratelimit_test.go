package ratelimit

import (
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func TestLimiter_Allow(t *testing.T) {
	t.Parallel()
	l := New(Config{RPM: 60, Burst: 3, Now: newClock().Now})

	for i := range 3 {
		r := l.Allow("10.0.0.1")
		if !r.Allowed {
			t.Fatalf("request %d should be allowed", i)
		}
		if r.Limit != 60 || r.Remaining != int64(2-i) {
			t.Errorf("request %d: limit=%d remaining=%d", i, r.Limit, r.Remaining)
		}
	}

	r := l.Allow("10.0.0.1")
	if r.Allowed {
		t.Fatal("4th request should be denied")
	}
	if r.RetryAfter != time.Second {
		t.Errorf("retry after = %v, want 1s at 1 token/s", r.RetryAfter)
	}
}

func TestLimiter_ClientsIndependent(t *testing.T) {
	t.Parallel()
	l := New(Config{RPM: 60, Burst: 1, Now: newClock().Now})

	if !l.Allow("a").Allowed {
		t.Fatal("a should be allowed")
	}
	if l.Allow("a").Allowed {
		t.Fatal("a should be limited")
	}
	if !l.Allow("b").Allowed {
		t.Fatal("b has its own bucket")
	}
	if l.Len() != 2 {
		t.Errorf("len = %d, want 2", l.Len())
	}
}

func TestLimiter_Refill(t *testing.T) {
	t.Parallel()
	clock := newClock()
	l := New(Config{RPM: 120, Burst: 2, Now: clock.Now})

	l.Allow("a")
	l.Allow("a")
	if l.Allow("a").Allowed {
		t.Fatal("bucket should be empty")
	}

	// 2 tokens/s: half a second buys one request.
	clock.Advance(500 * time.Millisecond)
	if !l.Allow("a").Allowed {
		t.Fatal("refilled token should be available")
	}

	// Refill never exceeds the burst.
	clock.Advance(time.Hour)
	for range 2 {
		if !l.Allow("a").Allowed {
			t.Fatal("burst should be available after idle")
		}
	}
	if l.Allow("a").Allowed {
		t.Fatal("refill must cap at burst")
	}
}

func TestLimiter_BurstDefaultsToRPM(t *testing.T) {
	t.Parallel()
	l := New(Config{RPM: 5, Now: newClock().Now})
	for i := range 5 {
		if !l.Allow("a").Allowed {
			t.Fatalf("request %d should be allowed", i)
		}
	}
	if l.Allow("a").Allowed {
		t.Fatal("6th request should be denied")
	}
}

func TestLimiter_ClockGoingBackwards(t *testing.T) {
	t.Parallel()
	clock := newClock()
	l := New(Config{RPM: 60, Burst: 1, Now: clock.Now})

	l.Allow("a")
	clock.Advance(-time.Minute)
	if l.Allow("a").Allowed {
		t.Fatal("negative elapsed time must not refill")
	}
}

func TestLimiter_EvictStale(t *testing.T) {
	t.Parallel()
	clock := newClock()
	l := New(Config{RPM: 60, Now: clock.Now})

	l.Allow("old")
	clock.Advance(10 * time.Minute)
	l.Allow("new")

	if n := l.EvictStale(clock.Now().Add(-5 * time.Minute)); n != 1 {
		t.Errorf("evicted = %d, want 1", n)
	}
	if l.Len() != 1 {
		t.Errorf("len = %d, want 1", l.Len())
	}
}

func TestNew_PanicsWithoutRPM(t *testing.T) {
	t.Parallel()
	defer func() {
		if recover() == nil {
			t.Error("New should panic for RPM 0")
		}
	}()
	New(Config{})
}

func TestLimiter_ConcurrentAccess(t *testing.T) {
	t.Parallel()
	l := New(Config{RPM: 100})

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for range 20 {
		wg.Go(func() {
			for range 10 {
				if l.Allow("shared").Allowed {
					mu.Lock()
					allowed++
					mu.Unlock()
				}
			}
		})
	}
	wg.Wait()

	// 200 attempts against a 100-token bucket; refill during the test adds at most a few.
	if allowed < 100 || allowed > 110 {
		t.Errorf("allowed = %d, want about 100", allowed)
	}
}
