// Package transport provides the HTTP client used for every outgoing
// request: pooled connections, a per-host token bucket, a circuit breaker
// and a fixed User-Agent.
package transport

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// MinRateMultiplier is the lowest a host's rate is reduced to after
// repeated 429 responses (0.25 = 25% of the configured rate).
const MinRateMultiplier = 0.25

// Config defines rate limiting and connection pooling.
type Config struct {
	// RequestsPerSecond is the default per-host rate. 0 disables limiting.
	RequestsPerSecond float64
	// Burst is the token bucket size. Values below 1 mean 1.
	Burst int
	// HostRates overrides RequestsPerSecond for specific hosts.
	HostRates map[string]float64
	// SlowDownOn429 halves a host's rate after each 429 response, down to
	// MinRateMultiplier of the configured rate.
	SlowDownOn429 bool

	// FailureThreshold opens a host's circuit after that many consecutive
	// transport errors or 5xx responses. 0 disables the breaker.
	FailureThreshold int
	// RecoveryTimeout is how long an open circuit rejects requests.
	RecoveryTimeout time.Duration

	UserAgent string
	// Timeout bounds a whole request including reading the body.
	Timeout time.Duration

	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
}

// DefaultConfig returns conservative defaults for the YouTube Data API.
func DefaultConfig() Config {
	return Config{
		RequestsPerSecond:   5,
		Burst:               1,
		SlowDownOn429:       true,
		FailureThreshold:    5,
		RecoveryTimeout:     30 * time.Second,
		UserAgent:           "watchlater/1.0",
		Timeout:             30 * time.Second,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
}

// Limiter is an http.RoundTripper that waits for a per-host token before
// delegating to the next RoundTripper.
type Limiter struct {
	next    http.RoundTripper
	cfg     Config
	breaker *Breaker

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	base     map[string]float64
}

// NewLimiter wraps next. A nil next means http.DefaultTransport.
func NewLimiter(next http.RoundTripper, cfg Config) *Limiter {
	if next == nil {
		next = http.DefaultTransport
	}
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	return &Limiter{
		next:     next,
		cfg:      cfg,
		breaker:  NewBreaker(cfg.FailureThreshold, cfg.RecoveryTimeout),
		limiters: make(map[string]*rate.Limiter),
		base:     make(map[string]float64),
	}
}

// RoundTrip implements http.RoundTripper. Waiting for a token honours the
// request context.
func (l *Limiter) RoundTrip(req *http.Request) (*http.Response, error) {
	host := req.URL.Host
	if err := l.breaker.Allow(host); err != nil {
		return nil, err
	}

	if limiter := l.limiter(host); limiter != nil {
		if err := limiter.Wait(req.Context()); err != nil {
			return nil, err
		}
	}

	if l.cfg.UserAgent != "" && req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", l.cfg.UserAgent)
	}

	resp, err := l.next.RoundTrip(req)
	switch {
	case err != nil:
		// A canceled request says nothing about the host.
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			l.breaker.Record(host, true)
		}
	case resp.StatusCode >= http.StatusInternalServerError:
		l.breaker.Record(host, true)
	default:
		l.breaker.Record(host, false)
		if resp.StatusCode == http.StatusTooManyRequests && l.cfg.SlowDownOn429 {
			l.slowDown(host)
		}
	}
	return resp, err
}

// Breaker returns the circuit breaker, nil when disabled.
func (l *Limiter) Breaker() *Breaker { return l.breaker }

// Limit reports the current rate for host. rate.Inf means unlimited.
func (l *Limiter) Limit(host string) rate.Limit {
	if limiter := l.limiter(host); limiter != nil {
		return limiter.Limit()
	}
	return rate.Inf
}

// limiter returns the token bucket for host, creating it on first use.
// It returns nil for unlimited hosts.
func (l *Limiter) limiter(host string) *rate.Limiter {
	rps := l.cfg.RequestsPerSecond
	if v, ok := l.cfg.HostRates[host]; ok {
		rps = v
	}
	if rps <= 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if limiter, ok := l.limiters[host]; ok {
		return limiter
	}
	limiter := rate.NewLimiter(rate.Limit(rps), l.cfg.Burst)
	l.limiters[host] = limiter
	l.base[host] = rps
	return limiter
}

func (l *Limiter) slowDown(host string) {
	limiter := l.limiter(host)
	if limiter == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	floor := l.base[host] * MinRateMultiplier
	next := float64(limiter.Limit()) / 2
	if next < floor {
		next = floor
	}
	limiter.SetLimit(rate.Limit(next))
}

// NewClient returns an *http.Client with a pooled transport wrapped in a
// Limiter.
func NewClient(cfg Config) *http.Client {
	pooled := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.MaxIdleConnsPerHost > 0 {
		pooled.MaxIdleConnsPerHost = cfg.MaxIdleConnsPerHost
	}
	if cfg.IdleConnTimeout > 0 {
		pooled.IdleConnTimeout = cfg.IdleConnTimeout
	}

	return &http.Client{
		Timeout:   cfg.Timeout,
		Transport: NewLimiter(pooled, cfg),
	}
}
