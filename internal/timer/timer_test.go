package timer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/hammamikhairi/burnchat/internal/logger"
)

// mockTarget records the times it is ticked with.
type mockTarget struct {
	mu    sync.Mutex
	ticks []time.Time
	ch    chan time.Time
}

func newMockTarget() *mockTarget {
	return &mockTarget{ch: make(chan time.Time, 16)}
}

func (m *mockTarget) Tick(now time.Time) {
	m.mu.Lock()
	m.ticks = append(m.ticks, now)
	m.mu.Unlock()
	m.ch <- now
}

func (m *mockTarget) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ticks)
}

func mustTick(t *testing.T, target *mockTarget) time.Time {
	t.Helper()
	select {
	case now := <-target.ch:
		return now
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for tick")
		return time.Time{}
	}
}

func TestSweeperTicksOnInterval(t *testing.T) {
	log := logger.New(logger.LevelOff, nil)
	mock := clock.NewMock()
	target := newMockTarget()

	s := NewSweeper(target, log, WithClock(mock), WithTickInterval(100*time.Millisecond))
	s.Start(context.Background())
	defer s.Stop()

	start := mock.Now()
	for i := 1; i <= 3; i++ {
		mock.Add(100 * time.Millisecond)
		got := mustTick(t, target)
		want := start.Add(time.Duration(i) * 100 * time.Millisecond)
		if !got.Equal(want) {
			t.Fatalf("tick %d: expected %v, got %v", i, want, got)
		}
	}
}

func TestSweeperStopHaltsTicks(t *testing.T) {
	log := logger.New(logger.LevelOff, nil)
	mock := clock.NewMock()
	target := newMockTarget()

	s := NewSweeper(target, log, WithClock(mock))
	s.Start(context.Background())

	mock.Add(DefaultSweepInterval)
	mustTick(t, target)

	s.Stop()
	if s.Running() {
		t.Fatal("expected sweeper stopped")
	}

	mock.Add(10 * DefaultSweepInterval)
	if n := target.count(); n != 1 {
		t.Fatalf("expected no ticks after Stop, got %d total", n)
	}

	// Stop twice is harmless.
	s.Stop()
}

func TestSweeperStartTwice(t *testing.T) {
	log := logger.New(logger.LevelOff, nil)
	mock := clock.NewMock()
	target := newMockTarget()

	s := NewSweeper(target, log, WithClock(mock))
	s.Start(context.Background())
	s.Start(context.Background())
	defer s.Stop()

	mock.Add(DefaultSweepInterval)
	mustTick(t, target)

	select {
	case <-target.ch:
		t.Fatal("second Start should not add a second loop")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSweeperStopsWithContext(t *testing.T) {
	log := logger.New(logger.LevelOff, nil)
	mock := clock.NewMock()
	target := newMockTarget()

	ctx, cancel := context.WithCancel(context.Background())
	s := NewSweeper(target, log, WithClock(mock))
	s.Start(ctx)
	cancel()
	s.Stop()

	mock.Add(5 * DefaultSweepInterval)
	if n := target.count(); n != 0 {
		t.Fatalf("expected no ticks after cancel, got %d", n)
	}
}

func waitFired(ch <-chan int, d time.Duration) (int, bool) {
	select {
	case v := <-ch:
		return v, true
	case <-time.After(d):
		return 0, false
	}
}

func TestDebouncerFiresAfterDelay(t *testing.T) {
	mock := clock.NewMock()
	d := NewDebouncer(mock, 800*time.Millisecond)
	fired := make(chan int, 4)

	d.Schedule(func() { fired <- 1 })
	if !d.Pending() {
		t.Fatal("expected pending after Schedule")
	}

	mock.Add(799 * time.Millisecond)
	if _, ok := waitFired(fired, 20*time.Millisecond); ok {
		t.Fatal("fired before the delay elapsed")
	}

	mock.Add(time.Millisecond)
	if _, ok := waitFired(fired, time.Second); !ok {
		t.Fatal("expected callback after delay")
	}
	if d.Pending() {
		t.Fatal("expected nothing pending after firing")
	}
}

func TestDebouncerRescheduleReplaces(t *testing.T) {
	mock := clock.NewMock()
	d := NewDebouncer(mock, 800*time.Millisecond)
	fired := make(chan int, 4)

	d.Schedule(func() { fired <- 1 })
	mock.Add(500 * time.Millisecond)
	d.Schedule(func() { fired <- 2 })

	mock.Add(500 * time.Millisecond)
	if v, ok := waitFired(fired, 20*time.Millisecond); ok {
		t.Fatalf("unexpected fire %d before rescheduled delay", v)
	}

	mock.Add(300 * time.Millisecond)
	v, ok := waitFired(fired, time.Second)
	if !ok || v != 2 {
		t.Fatalf("expected only the second callback, got %d (ok=%v)", v, ok)
	}
	if v, ok := waitFired(fired, 20*time.Millisecond); ok {
		t.Fatalf("unexpected extra fire %d", v)
	}
}

func TestDebouncerCancel(t *testing.T) {
	mock := clock.NewMock()
	d := NewDebouncer(mock, 0)
	if d.Delay() != DefaultSettleDelay {
		t.Fatalf("expected default delay, got %s", d.Delay())
	}
	fired := make(chan int, 1)

	if d.Cancel() {
		t.Fatal("Cancel with nothing pending should report false")
	}

	d.Schedule(func() { fired <- 1 })
	if !d.Cancel() {
		t.Fatal("Cancel should report the pending run")
	}

	mock.Add(2 * DefaultSettleDelay)
	if _, ok := waitFired(fired, 20*time.Millisecond); ok {
		t.Fatal("cancelled callback fired")
	}
}
