package transport

import (
	"errors"
	"sync"
	"time"
)

// BreakerState is the state of one host's circuit.
type BreakerState int

const (
	// BreakerClosed lets requests through.
	BreakerClosed BreakerState = iota
	// BreakerOpen fails requests without sending them.
	BreakerOpen
	// BreakerHalfOpen lets a single probe through.
	BreakerHalfOpen
)

// String returns the string representation of a breaker state.
func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned for requests to a host whose circuit is open.
var ErrCircuitOpen = errors.New("transport: circuit open")

type circuit struct {
	state    BreakerState
	failures int
	changed  time.Time
	probing  bool
}

// Breaker tracks consecutive failures per host and fails fast once a host
// has failed threshold times in a row. After recovery it lets one probe
// through; its outcome closes or reopens the circuit. A nil *Breaker
// allows everything.
type Breaker struct {
	threshold int
	recovery  time.Duration
	now       func() time.Time

	mu       sync.Mutex
	circuits map[string]*circuit
}

// NewBreaker returns a breaker, or nil when threshold is not positive.
func NewBreaker(threshold int, recovery time.Duration) *Breaker {
	if threshold <= 0 {
		return nil
	}
	return &Breaker{
		threshold: threshold,
		recovery:  recovery,
		now:       time.Now,
		circuits:  make(map[string]*circuit),
	}
}

// Allow returns ErrCircuitOpen if a request to host must not be sent.
func (b *Breaker) Allow(host string) error {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	c := b.circuit(host)
	switch c.state {
	case BreakerOpen:
		if b.now().Sub(c.changed) < b.recovery {
			return ErrCircuitOpen
		}
		c.state, c.changed, c.probing = BreakerHalfOpen, b.now(), true
		return nil
	case BreakerHalfOpen:
		// A probe that never reported back is given up after recovery.
		if c.probing && b.now().Sub(c.changed) < b.recovery {
			return ErrCircuitOpen
		}
		c.changed, c.probing = b.now(), true
	}
	return nil
}

// Record reports the outcome of a request to host.
func (b *Breaker) Record(host string, failed bool) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	c := b.circuit(host)
	if !failed {
		c.state, c.failures, c.probing = BreakerClosed, 0, false
		return
	}

	c.failures++
	if c.state == BreakerHalfOpen || c.failures >= b.threshold {
		c.state, c.changed, c.probing = BreakerOpen, b.now(), false
	}
}

// State returns host's current state.
func (b *Breaker) State(host string) BreakerState {
	if b == nil {
		return BreakerClosed
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.circuits[host]
	if !ok {
		return BreakerClosed
	}
	if c.state == BreakerOpen && b.now().Sub(c.changed) >= b.recovery {
		return BreakerHalfOpen
	}
	return c.state
}

// circuit must be called with mu held.
func (b *Breaker) circuit(host string) *circuit {
	c, ok := b.circuits[host]
	if !ok {
		c = &circuit{changed: b.now()}
		b.circuits[host] = c
	}
	return c
}
