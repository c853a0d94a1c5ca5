package zonecontrol

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"ride-analytics/internal/live"
	"ride-analytics/internal/store"
)

type fakeActuator struct {
	mu       sync.Mutex
	started  []Target
	stops    int
	pauses   int
	resumes  int
	status   Status
	reason   *StopReason
	startErr error
	stopErr  error
	pollErr  error
}

func (f *fakeActuator) StartZoneControl(ctx context.Context, target Target) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.started = append(f.started, target)
	f.status = Status{
		Active:     true,
		Mode:       target.Mode,
		TargetZone: target.Zone,
		LowerBound: target.LowerBound,
		UpperBound: target.UpperBound,
		Phase:      PhaseRamping,
	}
	return nil
}

func (f *fakeActuator) StopZoneControl(ctx context.Context) (*StopReason, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	// Stopping clears the actuator's ride state
	f.status = Status{Phase: PhaseIdle}
	return f.reason, f.stopErr
}

func (f *fakeActuator) PauseZoneControl(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pauses++
	f.status.Paused = true
	return nil
}

func (f *fakeActuator) ResumeZoneControl(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resumes++
	f.status.Paused = false
	return nil
}

func (f *fakeActuator) ZoneControlStatus(ctx context.Context) (Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status, f.pollErr
}

// advance simulates one second of the actuator holding the zone
func (f *fakeActuator) advance(commanded int, inZone bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status.ElapsedSecs++
	if inZone {
		f.status.TimeInZoneSecs++
		f.status.Phase = PhaseInZone
	}
	f.status.CommandedPower = &commanded
}

type fakeSink struct {
	saved []store.ZoneRide
	err   error
}

func (f *fakeSink) SaveZoneRide(ctx context.Context, z *store.ZoneRide) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, *z)
	return nil
}

type fakeMetrics struct {
	mu sync.Mutex
	m  *live.LiveMetrics
}

func (f *fakeMetrics) setPower(w float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.m = &live.LiveMetrics{CurrentPower: &w}
}

func (f *fakeMetrics) Latest() *live.LiveMetrics {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.m
}

var zoneThree = Target{Mode: ModePower, Zone: 3, LowerBound: 150, UpperBound: 180}

// newTestController never fires its own timer; tests drive pollNow directly
func newTestController(actuator Actuator, sink SummarySink, source MetricsSource) *Controller {
	c := NewController(actuator, sink, source, time.Hour, zerolog.Nop())
	c.sampleSecs = 1
	return c
}

func TestControllerStartStop(t *testing.T) {
	actuator := &fakeActuator{}
	c := newTestController(actuator, nil, nil)
	ctx := context.Background()

	if err := c.Start(ctx, zoneThree); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !c.Active() {
		t.Error("Active() = false after Start")
	}
	if c.Status() != nil {
		t.Error("Status() should be nil before the first poll")
	}

	c.pollNow(ctx)
	status := c.Status()
	if status == nil || !status.Active || status.LowerBound != 150 {
		t.Fatalf("Status() = %+v, want active ride at 150", status)
	}

	if _, err := c.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if c.Active() || c.Status() != nil {
		t.Error("Stop should clear status immediately")
	}
	if actuator.stops != 1 {
		t.Errorf("actuator stops = %d, want 1", actuator.stops)
	}

	// Second stop reports there is nothing to stop
	if _, err := c.Stop(ctx); !errors.Is(err, ErrNotActive) {
		t.Errorf("second Stop() error = %v, want ErrNotActive", err)
	}
}

func TestControllerStartRejectsInvalidTarget(t *testing.T) {
	actuator := &fakeActuator{}
	c := newTestController(actuator, nil, nil)

	bad := zoneThree
	bad.LowerBound = 200
	if err := c.Start(context.Background(), bad); !errors.Is(err, ErrInvalidBounds) {
		t.Errorf("Start() error = %v, want ErrInvalidBounds", err)
	}
	if len(actuator.started) != 0 {
		t.Error("invalid target must not reach the actuator")
	}
}

func TestControllerStartTwice(t *testing.T) {
	c := newTestController(&fakeActuator{}, nil, nil)
	ctx := context.Background()

	if err := c.Start(ctx, zoneThree); err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if err := c.Start(ctx, zoneThree); !errors.Is(err, ErrAlreadyActive) {
		t.Errorf("second Start() error = %v, want ErrAlreadyActive", err)
	}
}

func TestControllerStartFailure(t *testing.T) {
	c := newTestController(&fakeActuator{startErr: errors.New("trainer offline")}, nil, nil)

	if err := c.Start(context.Background(), zoneThree); err == nil {
		t.Fatal("Start() should surface actuator failure")
	}
	if c.Active() {
		t.Error("failed start must leave the controller idle")
	}
}

func TestControllerStopClearsOnActuatorError(t *testing.T) {
	actuator := &fakeActuator{stopErr: errors.New("link lost")}
	c := newTestController(actuator, nil, nil)
	ctx := context.Background()

	_ = c.Start(ctx, zoneThree)
	c.pollNow(ctx)

	if _, err := c.Stop(ctx); err == nil {
		t.Error("Stop() should surface actuator failure")
	}
	if c.Active() || c.Status() != nil {
		t.Error("status must be cleared even when the actuator fails")
	}
}

func TestControllerPauseResume(t *testing.T) {
	actuator := &fakeActuator{}
	c := newTestController(actuator, nil, nil)
	ctx := context.Background()

	if err := c.Pause(ctx); !errors.Is(err, ErrNotActive) {
		t.Errorf("Pause() idle error = %v, want ErrNotActive", err)
	}

	_ = c.Start(ctx, zoneThree)
	defer c.Close()

	if err := c.Pause(ctx); err != nil {
		t.Fatal(err)
	}
	c.pollNow(ctx)
	if s := c.Status(); s == nil || !s.Paused {
		t.Errorf("Status() = %+v, want paused", s)
	}

	if err := c.Resume(ctx); err != nil {
		t.Fatal(err)
	}
	c.pollNow(ctx)
	if s := c.Status(); s == nil || s.Paused {
		t.Errorf("Status() = %+v, want resumed", s)
	}
	if actuator.pauses != 1 || actuator.resumes != 1 {
		t.Errorf("pauses/resumes = %d/%d, want 1/1", actuator.pauses, actuator.resumes)
	}
}

func TestControllerPollErrorKeepsLastStatus(t *testing.T) {
	actuator := &fakeActuator{}
	c := newTestController(actuator, nil, nil)
	ctx := context.Background()

	_ = c.Start(ctx, zoneThree)
	defer c.Close()
	c.pollNow(ctx)

	actuator.mu.Lock()
	actuator.pollErr = errors.New("timeout")
	actuator.mu.Unlock()
	c.pollNow(ctx)

	if c.Status() == nil {
		t.Error("a failed poll should keep the previous status")
	}
}

func TestControllerFinish(t *testing.T) {
	actuator := &fakeActuator{}
	sink := &fakeSink{}
	source := &fakeMetrics{}
	c := newTestController(actuator, sink, source)
	fixed := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return fixed }
	ctx := context.Background()

	_ = c.Start(ctx, zoneThree)

	// Power ramps 100 -> 120 -> 160 -> 170; enters the zone on the third poll,
	// three seconds in
	for _, w := range []float64{100, 120, 160, 170} {
		source.setPower(w)
		actuator.advance(int(w)+5, w >= 150)
		c.pollNow(ctx)
	}
	source.setPower(175)
	actuator.advance(180, true)

	summary := c.Finish(ctx, "session-1")
	if summary == nil {
		t.Fatal("Finish() = nil, want summary")
	}

	// The final poll inside Finish captured the fifth second before stopping
	if summary.DurationSecs != 5 || summary.TimeInZoneSecs != 3 {
		t.Errorf("duration/in-zone = %d/%d, want 5/3", summary.DurationSecs, summary.TimeInZoneSecs)
	}
	if summary.TimeToZoneSecs == nil || *summary.TimeToZoneSecs != 3 {
		t.Errorf("TimeToZoneSecs = %v, want 3", summary.TimeToZoneSecs)
	}
	want := []int{105, 125, 165, 175, 180}
	if len(summary.CommandedPower) != len(want) {
		t.Fatalf("CommandedPower = %v, want %v", summary.CommandedPower, want)
	}
	for i := range want {
		if summary.CommandedPower[i] != want[i] {
			t.Errorf("CommandedPower[%d] = %d, want %d", i, summary.CommandedPower[i], want[i])
		}
	}
	if summary.Mode != "power" || summary.Zone != 3 || summary.LowerBound != 150 || summary.UpperBound != 180 {
		t.Errorf("summary target = %+v", summary)
	}
	if summary.StopReason != string(StopUserStopped) {
		t.Errorf("StopReason = %q, want UserStopped", summary.StopReason)
	}
	if !summary.CreatedAt.Equal(fixed) || summary.ID == "" || summary.SessionID != "session-1" {
		t.Errorf("summary identity = %+v", summary)
	}

	if len(sink.saved) != 1 || sink.saved[0].ID != summary.ID {
		t.Errorf("sink saved %d summaries, want 1", len(sink.saved))
	}
	if c.Active() || actuator.stops != 1 {
		t.Error("Finish should stop the ride")
	}
}

func TestControllerFinishUsesActuatorReason(t *testing.T) {
	reason := StopSafetyStop
	actuator := &fakeActuator{reason: &reason}
	c := newTestController(actuator, &fakeSink{}, nil)
	ctx := context.Background()

	_ = c.Start(ctx, zoneThree)
	summary := c.Finish(ctx, "session-2")
	if summary == nil || summary.StopReason != string(StopSafetyStop) {
		t.Errorf("summary = %+v, want SafetyStop", summary)
	}
	// No live source means time-to-zone is unknown
	if summary.TimeToZoneSecs != nil {
		t.Errorf("TimeToZoneSecs = %v, want nil", *summary.TimeToZoneSecs)
	}
}

func TestControllerFinishSwallowsSinkError(t *testing.T) {
	actuator := &fakeActuator{}
	c := newTestController(actuator, &fakeSink{err: errors.New("disk full")}, nil)
	ctx := context.Background()

	_ = c.Start(ctx, zoneThree)
	if summary := c.Finish(ctx, "session-3"); summary == nil {
		t.Error("Finish() should still return the summary")
	}
	if c.Active() {
		t.Error("ride should be stopped despite the sink error")
	}
}

func TestControllerFinishIdle(t *testing.T) {
	sink := &fakeSink{}
	c := newTestController(&fakeActuator{}, sink, nil)
	if summary := c.Finish(context.Background(), "session-4"); summary != nil {
		t.Errorf("Finish() = %+v, want nil when idle", summary)
	}
	if len(sink.saved) != 0 {
		t.Error("nothing should be saved when idle")
	}
}

func TestControllerTimerPolls(t *testing.T) {
	actuator := &fakeActuator{}
	c := NewController(actuator, nil, nil, time.Millisecond, zerolog.Nop())
	ctx := context.Background()

	_ = c.Start(ctx, zoneThree)
	deadline := time.Now().Add(time.Second)
	for c.Status() == nil && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if c.Status() == nil {
		t.Fatal("timer never polled")
	}

	_, _ = c.Stop(ctx)
	// A poll that was in flight during Stop must not resurrect status
	time.Sleep(10 * time.Millisecond)
	if c.Status() != nil {
		t.Error("status reappeared after Stop")
	}
	c.Close()
	c.Close()
}

func TestControllerTimeToZoneCountsFromStart(t *testing.T) {
	actuator := &fakeActuator{}
	source := &fakeMetrics{}
	c := newTestController(actuator, &fakeSink{}, source)
	ctx := context.Background()

	// Already in the zone when the ride starts
	source.setPower(165)
	_ = c.Start(ctx, zoneThree)
	actuator.advance(165, true)
	c.pollNow(ctx)

	summary := c.Finish(ctx, "session-5")
	if summary.TimeToZoneSecs == nil || *summary.TimeToZoneSecs != 0 {
		t.Errorf("TimeToZoneSecs = %v, want 0", summary.TimeToZoneSecs)
	}
}

func TestControllerKeepsFiguresWhenActuatorClearsThem(t *testing.T) {
	actuator := &fakeActuator{}
	sink := &fakeSink{}
	c := newTestController(actuator, sink, nil)
	ctx := context.Background()

	_ = c.Start(ctx, zoneThree)
	for i := 0; i < 4; i++ {
		actuator.advance(165, true)
		c.pollNow(ctx)
	}

	// The actuator drops the ride and reports nothing of it
	actuator.mu.Lock()
	actuator.status = Status{Phase: PhaseIdle}
	actuator.mu.Unlock()
	c.pollNow(ctx)

	summary := c.Finish(ctx, "session-6")
	if summary.DurationSecs != 4 || summary.TimeInZoneSecs != 4 {
		t.Errorf("duration/in-zone = %d/%d, want 4/4", summary.DurationSecs, summary.TimeInZoneSecs)
	}
}

func TestControllerEngineDurationCompleteSummary(t *testing.T) {
	source := &fakeMetrics{}
	source.setPower(160)
	engine, clock, _ := newTestEngine(EngineConfig{FTP: 250}, source)
	sink := &fakeSink{}
	c := newTestController(engine, sink, source)
	ctx := context.Background()

	target := zoneThree
	target.DurationSecs = intPtr(10)
	if err := c.Start(ctx, target); err != nil {
		t.Fatal(err)
	}

	// Polling carries on past the end of the ride
	for i := 0; i < 12; i++ {
		clock.advance(time.Second)
		c.pollNow(ctx)
	}
	if !c.Active() {
		t.Fatal("ride should stay open until the session stops it")
	}
	if st := c.Status(); st == nil || st.Active || st.ElapsedSecs != 10 {
		t.Errorf("status after the ride ended = %+v, want inactive at 10s", st)
	}

	summary := c.Finish(ctx, "session-7")
	if summary == nil {
		t.Fatal("Finish() = nil")
	}
	if summary.DurationSecs != 10 || summary.TimeInZoneSecs != 10 {
		t.Errorf("duration/in-zone = %d/%d, want 10/10", summary.DurationSecs, summary.TimeInZoneSecs)
	}
	if summary.StopReason != string(StopDurationComplete) {
		t.Errorf("StopReason = %q, want %s", summary.StopReason, StopDurationComplete)
	}
	if summary.TimeToZoneSecs == nil || *summary.TimeToZoneSecs != 0 {
		t.Errorf("TimeToZoneSecs = %v, want 0", summary.TimeToZoneSecs)
	}
	if len(sink.saved) != 1 || sink.saved[0].DurationSecs != 10 {
		t.Errorf("saved = %+v, want one ride of 10s", sink.saved)
	}
}
