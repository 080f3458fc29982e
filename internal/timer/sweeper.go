// Package timer drives the periodic expiry sweep and the handwriting
// settle delay.
package timer

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/hammamikhairi/burnchat/internal/logger"
)

// DefaultSweepInterval is how often expired messages are looked for.
const DefaultSweepInterval = 100 * time.Millisecond

// Target receives sweep ticks.
type Target interface {
	Tick(now time.Time)
}

// Option configures the sweeper.
type Option func(*Sweeper)

// WithTickInterval sets how often the sweeper ticks.
func WithTickInterval(d time.Duration) Option {
	return func(s *Sweeper) {
		if d > 0 {
			s.tickInterval = d
		}
	}
}

// WithClock sets the clock that drives the ticker.
func WithClock(c clock.Clock) Option {
	return func(s *Sweeper) {
		s.clock = c
	}
}

// Sweeper ticks a Target at a fixed interval in the background.
type Sweeper struct {
	target       Target
	log          *logger.Logger
	clock        clock.Clock
	tickInterval time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSweeper creates a sweeper for target.
func NewSweeper(target Target, log *logger.Logger, opts ...Option) *Sweeper {
	s := &Sweeper{
		target:       target,
		log:          log,
		clock:        clock.New(),
		tickInterval: DefaultSweepInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins ticking. Non-blocking.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.log.Warn("sweeper already running")
		return
	}

	childCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.done = make(chan struct{})

	// Created here so a tick right after Start is not missed.
	ticker := s.clock.Ticker(s.tickInterval)
	go s.loop(childCtx, ticker, s.done)

	s.log.Info("sweeper started (tick=%s)", s.tickInterval)
}

// Stop halts the sweeper and waits for the loop to exit.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.running = false
	done := s.done
	s.mu.Unlock()

	<-done
	s.log.Info("sweeper stopped")
}

// Running reports whether the loop is active.
func (s *Sweeper) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Sweeper) loop(ctx context.Context, ticker *clock.Ticker, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.target.Tick(now)
		}
	}
}
