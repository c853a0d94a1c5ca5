package autosession

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"ride-analytics/internal/live"
	"ride-analytics/internal/metrics"
)

type fakeControl struct {
	active   atomic.Bool
	starts   atomic.Int32
	stops    atomic.Int32
	startErr error
	// release gates StartSession so tests can hold a call in flight
	release chan struct{}
}

func (f *fakeControl) IsActive() bool {
	return f.active.Load()
}

func (f *fakeControl) StartSession(ctx context.Context) error {
	f.starts.Add(1)
	if f.release != nil {
		<-f.release
	}
	if f.startErr != nil {
		return f.startErr
	}
	f.active.Store(true)
	return nil
}

func (f *fakeControl) StopSession(ctx context.Context) error {
	f.stops.Add(1)
	f.active.Store(false)
	return nil
}

type fakeSource struct {
	mu sync.Mutex
	m  *live.LiveMetrics
}

func (f *fakeSource) set(m *live.LiveMetrics) {
	f.mu.Lock()
	f.m = m
	f.mu.Unlock()
}

func (f *fakeSource) Latest() *live.LiveMetrics {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.m
}

func newTestMonitor(control *fakeControl, source *fakeSource) *Monitor {
	return NewMonitor(Config{Enabled: true, StartThreshold: 5, StopThreshold: 3}, control, source, zerolog.Nop())
}

func TestMonitorStartsOnce(t *testing.T) {
	control := &fakeControl{}
	source := &fakeSource{m: cadence(90)}
	m := newTestMonitor(control, source)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		m.Tick(ctx)
	}
	m.wait()

	if got := control.starts.Load(); got != 1 {
		t.Errorf("StartSession calls = %d, want 1", got)
	}
	if !control.IsActive() {
		t.Error("session should be active after auto-start")
	}
}

func TestMonitorStopsOnce(t *testing.T) {
	control := &fakeControl{}
	control.active.Store(true)
	source := &fakeSource{m: speed(0)}
	m := newTestMonitor(control, source)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		m.Tick(ctx)
	}
	m.wait()

	if got := control.stops.Load(); got != 1 {
		t.Errorf("StopSession calls = %d, want 1", got)
	}
}

func TestMonitorSingleFlight(t *testing.T) {
	control := &fakeControl{release: make(chan struct{})}
	source := &fakeSource{m: cadence(90)}
	m := newTestMonitor(control, source)
	ctx := context.Background()

	// Two full start runs while the first call is still blocked
	for i := 0; i < 10; i++ {
		m.Tick(ctx)
	}

	deadline := time.Now().Add(time.Second)
	for control.starts.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	close(control.release)
	m.wait()

	if got := control.starts.Load(); got != 1 {
		t.Errorf("StartSession calls = %d, want 1 while in flight", got)
	}
}

func TestMonitorSwallowsFailures(t *testing.T) {
	control := &fakeControl{startErr: errors.New("trainer busy")}
	source := &fakeSource{m: cadence(90)}
	m := newTestMonitor(control, source)

	before := testutil.ToFloat64(metrics.AutoSessionFailures.WithLabelValues("start"))
	for i := 0; i < 5; i++ {
		m.Tick(context.Background())
	}
	m.wait()

	if got := testutil.ToFloat64(metrics.AutoSessionFailures.WithLabelValues("start")); got != before+1 {
		t.Errorf("failures = %v, want %v", got, before+1)
	}
	if control.IsActive() {
		t.Error("failed start should leave the session inactive")
	}
}

func TestMonitorSetEnabled(t *testing.T) {
	control := &fakeControl{}
	source := &fakeSource{m: cadence(90)}
	m := newTestMonitor(control, source)
	ctx := context.Background()

	m.Tick(ctx)
	m.Tick(ctx)
	if c := m.Countdown(); c == nil || *c != 3 {
		t.Errorf("Countdown() = %v, want 3", c)
	}

	m.SetEnabled(false)
	if m.Countdown() != nil {
		t.Error("disable should clear the countdown")
	}
	for i := 0; i < 10; i++ {
		m.Tick(ctx)
	}
	m.wait()
	if control.starts.Load() != 0 {
		t.Error("disabled monitor should not start sessions")
	}
	if m.State().Enabled {
		t.Error("State().Enabled = true after disable")
	}
}

func TestMonitorTimer(t *testing.T) {
	control := &fakeControl{}
	source := &fakeSource{}
	m := NewMonitor(Config{Enabled: true, StartThreshold: 2, StopThreshold: 2, Interval: time.Millisecond}, control, source, zerolog.Nop())

	m.Start(context.Background())
	m.Start(context.Background())
	source.set(cadence(80))

	deadline := time.Now().Add(time.Second)
	for control.starts.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	m.Stop()
	m.Stop()
	// let a tick racing with Stop finish dispatching
	time.Sleep(20 * time.Millisecond)
	m.wait()

	if control.starts.Load() == 0 {
		t.Fatal("timer-driven monitor never started a session")
	}
	if m.Countdown() != nil {
		t.Error("Stop should clear the countdown")
	}
}
