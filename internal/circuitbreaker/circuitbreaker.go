// Package circuitbreaker guards a remote dependency with a sliding-window
// error rate detector. While the breaker is open, callers skip the dependency
// and take their degraded path instead of waiting on a dial or read timeout.
package circuitbreaker

import (
	"sync"
	"time"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed lets every call through.
	StateClosed State = iota
	// StateOpen rejects every call until OpenTimeout elapses.
	StateOpen
	// StateHalfOpen lets a single probe call through.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Config holds circuit breaker parameters.
type Config struct {
	ErrorThreshold float64       // weighted error rate to trip (e.g. 0.50)
	MinSamples     int           // calls in the window before the breaker may open
	WindowSeconds  int           // sliding window duration, at most 60
	OpenTimeout    time.Duration // time in OPEN before a probe is allowed

	// OnStateChange, if set, is called after every transition while the
	// breaker lock is held. It must not call back into the breaker.
	OnStateChange func(from, to State)

	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// DefaultConfig returns the settings used for the shared cache backend.
func DefaultConfig() Config {
	return Config{
		ErrorThreshold: 0.50,
		MinSamples:     5,
		WindowSeconds:  30,
		OpenTimeout:    10 * time.Second,
	}
}

type bucket struct {
	errors float64
	total  int
}

// slidingWindow is a ring of 1-second buckets.
type slidingWindow struct {
	buckets  [60]bucket
	size     int
	head     int
	headTime int64 // unix seconds of the head bucket
}

func newSlidingWindow(seconds int) slidingWindow {
	if seconds <= 0 || seconds > 60 {
		seconds = 60
	}
	return slidingWindow{size: seconds}
}

func (w *slidingWindow) advance(sec int64) {
	if w.headTime == 0 {
		w.headTime = sec
		return
	}
	gap := sec - w.headTime
	if gap <= 0 {
		return
	}
	for i := range min(int(gap), w.size) {
		w.buckets[(w.head+1+i)%w.size] = bucket{}
	}
	w.head = (w.head + int(gap)) % w.size
	w.headTime = sec
}

func (w *slidingWindow) record(weight float64, now time.Time) {
	w.advance(now.Unix())
	w.buckets[w.head].total++
	w.buckets[w.head].errors += weight
}

// rate returns the weighted error rate and sample count across the window.
func (w *slidingWindow) rate(now time.Time) (float64, int) {
	w.advance(now.Unix())
	var errs float64
	var total int
	for i := range w.size {
		errs += w.buckets[i].errors
		total += w.buckets[i].total
	}
	if total == 0 {
		return 0, 0
	}
	return errs / float64(total), total
}

func (w *slidingWindow) reset() {
	*w = slidingWindow{size: w.size}
}

// Breaker is a closed/open/half-open state machine. Safe for concurrent use.
type Breaker struct {
	mu       sync.Mutex
	cfg      Config
	state    State
	window   slidingWindow
	openedAt time.Time
	probing  bool
}

// NewBreaker creates a closed breaker.
func NewBreaker(cfg Config) *Breaker {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Breaker{
		cfg:    cfg,
		window: newSlidingWindow(cfg.WindowSeconds),
	}
}

// State returns the current state. An open breaker whose timeout has elapsed
// still reports open until the next Allow.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Allow reports whether a call may proceed. Every allowed call must be
// followed by RecordSuccess or RecordError.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if b.cfg.Now().Sub(b.openedAt) < b.cfg.OpenTimeout {
			return false
		}
		b.transition(StateHalfOpen)
		b.probing = true
		return true
	default:
		if b.probing {
			return false
		}
		b.probing = true
		return true
	}
}

// RecordSuccess records a successful call. A successful probe closes the breaker.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.window.record(0, b.cfg.Now())
	if b.state == StateHalfOpen {
		b.probing = false
		b.window.reset()
		b.transition(StateClosed)
	}
}

// RecordError records a failed call with the given weight (see Classify).
// A zero weight counts as a sample but never trips the breaker on its own.
func (b *Breaker) RecordError(weight float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.cfg.Now()
	b.window.record(weight, now)

	switch b.state {
	case StateClosed:
		rate, samples := b.window.rate(now)
		if samples >= b.cfg.MinSamples && rate >= b.cfg.ErrorThreshold {
			b.openedAt = now
			b.transition(StateOpen)
		}
	case StateHalfOpen:
		b.probing = false
		b.openedAt = now
		b.transition(StateOpen)
	}
}

// Record records err as a success when Classify weighs it zero and as an
// error otherwise.
func (b *Breaker) Record(err error) {
	if w := Classify(err); w > 0 {
		b.RecordError(w)
		return
	}
	b.RecordSuccess()
}

func (b *Breaker) transition(to State) {
	from := b.state
	b.state = to
	if b.cfg.OnStateChange != nil && from != to {
		b.cfg.OnStateChange(from, to)
	}
}
