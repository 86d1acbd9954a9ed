package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

type fakeSweeper struct {
	calls atomic.Int32
}

func (f *fakeSweeper) Sweep(context.Context) int {
	f.calls.Add(1)
	return 1
}

func TestCacheSweeper_Run(t *testing.T) {
	t.Parallel()
	s := &fakeSweeper{}
	w := NewCacheSweeper(s, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for s.calls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop")
	}
	if s.calls.Load() < 2 {
		t.Errorf("sweeps = %d, want at least 2", s.calls.Load())
	}
}

func TestNewCacheSweeper_DefaultInterval(t *testing.T) {
	t.Parallel()
	w := NewCacheSweeper(&fakeSweeper{}, 0)
	if w.interval != DefaultSweepInterval {
		t.Errorf("interval = %v, want %v", w.interval, DefaultSweepInterval)
	}
	if w.Name() != "cache_sweeper" {
		t.Errorf("name = %q", w.Name())
	}
}
