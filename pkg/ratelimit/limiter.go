package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Prometheus metrics for rate limit gating.
var (
	rateLimitCallsInWindow = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "catalog_rate_limit_calls_in_window",
		Help: "Number of catalog API calls recorded in the current rate limit window",
	})

	rateLimitWaitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_rate_limit_waits_total",
		Help: "Total number of times a caller waited for the rate limit window to reset",
	})

	rateLimitWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "catalog_rate_limit_wait_seconds",
		Help:    "Time spent waiting for the rate limit window to reset",
		Buckets: []float64{1, 5, 10, 30, 60, 120},
	})
)

// Config holds the limiter quota.
type Config struct {
	// MaxCalls is the number of calls allowed per window.
	MaxCalls int

	// Window is the length of the fixed window.
	Window time.Duration

	// MinInterval is the minimum spacing between consecutive calls,
	// including the first call after a window reset. Zero disables spacing.
	MinInterval time.Duration
}

// DefaultConfig returns the catalog API quota.
func DefaultConfig() Config {
	return Config{
		MaxCalls:    DefaultMaxCalls,
		Window:      DefaultWindow,
		MinInterval: DefaultMinInterval,
	}
}

// Clock abstracts time for the limiter.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Limiter is a fixed-window call counter shared by concurrent callers.
type Limiter struct {
	mu     sync.Mutex
	state  RateLimitState
	config Config
	clock  Clock
	spacer *rate.Limiter
	logger zerolog.Logger
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces the wall clock, mostly for tests.
func WithClock(c Clock) Option {
	return func(l *Limiter) {
		l.clock = c
	}
}

// NewLimiter creates a limiter whose first window opens now.
func NewLimiter(cfg Config, logger zerolog.Logger, opts ...Option) *Limiter {
	if cfg.MaxCalls <= 0 {
		cfg.MaxCalls = DefaultMaxCalls
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}

	l := &Limiter{
		config: cfg,
		clock:  realClock{},
		logger: logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	if cfg.MinInterval > 0 {
		l.spacer = rate.NewLimiter(rate.Every(cfg.MinInterval), 1)
	}
	l.state.Reset(l.clock.Now())

	return l
}

// Acquire blocks until one more call fits in the budget, then records it.
// The check, the wait and the reset run under one lock, so two callers can
// neither both take the last slot nor both reset an expired window.
// The only error is the context's, when it is cancelled while waiting.
func (l *Limiter) Acquire(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	if l.state.Expired(now, l.config.Window) {
		l.state.Reset(now)
	}

	if l.state.Exhausted(l.config.MaxCalls) {
		if wait := l.state.Remaining(now, l.config.Window); wait > 0 {
			l.logger.Info().
				Int("calls_in_window", l.state.CallsInWindow).
				Dur("wait_duration", wait).
				Msg("Rate limit reached - waiting for window reset")

			rateLimitWaitsTotal.Inc()
			rateLimitWaitSeconds.Observe(wait.Seconds())

			if err := l.clock.Sleep(ctx, wait); err != nil {
				return err
			}
			l.state.Reset(l.clock.Now())
		}
	}

	if err := l.space(ctx); err != nil {
		return err
	}
	if now := l.clock.Now(); l.state.Expired(now, l.config.Window) {
		l.state.Reset(now)
	}

	l.state.CallsInWindow++
	rateLimitCallsInWindow.Set(float64(l.state.CallsInWindow))

	l.logger.Debug().
		Int("calls_in_window", l.state.CallsInWindow).
		Time("window_start", l.state.WindowStart).
		Msg("Rate limit slot acquired")

	return nil
}

// space holds the caller until MinInterval has passed since the previous
// call. Time comes from the limiter's clock, so a window wait counts toward
// the gap.
func (l *Limiter) space(ctx context.Context) error {
	if l.spacer == nil {
		return nil
	}
	now := l.clock.Now()
	r := l.spacer.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		if err := l.clock.Sleep(ctx, delay); err != nil {
			r.CancelAt(l.clock.Now())
			return err
		}
	}
	return nil
}

// State returns a snapshot of the current window.
func (l *Limiter) State() RateLimitState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Config returns the limiter quota.
func (l *Limiter) Config() Config {
	return l.config
}
