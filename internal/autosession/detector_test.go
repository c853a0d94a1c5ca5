package autosession

import (
	"testing"

	"ride-analytics/internal/live"
)

func floatPtr(f float64) *float64 {
	return &f
}

func cadence(rpm float64) *live.LiveMetrics {
	return &live.LiveMetrics{CurrentCadence: floatPtr(rpm)}
}

func speed(kmh float64) *live.LiveMetrics {
	return &live.LiveMetrics{CurrentSpeed: floatPtr(kmh)}
}

func TestDetectorStart(t *testing.T) {
	d := NewDetector(5, 3)

	var starts int
	for i := 1; i <= 5; i++ {
		action := d.Tick(false, cadence(85))
		if action == ActionStart {
			starts++
			if i != 5 {
				t.Errorf("start triggered on tick %d, want tick 5", i)
			}
		}
		if i < 5 {
			countdown := d.Countdown()
			if countdown == nil || *countdown != 5-i {
				t.Errorf("tick %d countdown = %v, want %d", i, countdown, 5-i)
			}
		}
	}
	if starts != 1 {
		t.Errorf("starts = %d, want exactly 1", starts)
	}

	// Counter and countdown reset after triggering
	state := d.State()
	if state.StartCount != 0 || state.Countdown != nil {
		t.Errorf("state after start = %+v, want cleared", state)
	}
}

func TestDetectorStartResetsWithoutPartialCredit(t *testing.T) {
	tests := []struct {
		name string
		drop *live.LiveMetrics
	}{
		{"zero cadence", cadence(0)},
		{"negative cadence", cadence(-1)},
		{"cadence absent", &live.LiveMetrics{}},
		{"no metrics", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDetector(5, 3)
			for i := 0; i < 4; i++ {
				d.Tick(false, cadence(90))
			}
			if got := d.Tick(false, tt.drop); got != ActionNone {
				t.Errorf("drop tick = %v, want none", got)
			}
			if d.State().StartCount != 0 || d.Countdown() != nil {
				t.Errorf("state after drop = %+v, want cleared", d.State())
			}

			// A fresh run of 5 is needed again
			for i := 0; i < 4; i++ {
				if d.Tick(false, cadence(90)) == ActionStart {
					t.Fatalf("start after only %d ticks", i+1)
				}
			}
			if d.Tick(false, cadence(90)) != ActionStart {
				t.Error("5th tick after reset should start")
			}
		})
	}
}

func TestDetectorStop(t *testing.T) {
	tests := []struct {
		name    string
		metrics *live.LiveMetrics
	}{
		{"zero speed", speed(0)},
		{"speed absent", &live.LiveMetrics{}},
		{"stale speed", &live.LiveMetrics{CurrentSpeed: floatPtr(30), StaleSpeed: true}},
		{"no metrics", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDetector(5, 3)
			var stops int
			for i := 1; i <= 3; i++ {
				if d.Tick(true, tt.metrics) == ActionStop {
					stops++
					if i != 3 {
						t.Errorf("stop triggered on tick %d, want tick 3", i)
					}
				}
			}
			if stops != 1 {
				t.Errorf("stops = %d, want exactly 1", stops)
			}
		})
	}
}

func TestDetectorStopResetsOnMovement(t *testing.T) {
	d := NewDetector(5, 3)
	d.Tick(true, speed(0))
	d.Tick(true, speed(0))
	d.Tick(true, speed(25))

	if d.State().StopCount != 0 {
		t.Errorf("StopCount = %d, want 0 after valid reading", d.State().StopCount)
	}
	if d.Tick(true, speed(0)) == ActionStop || d.Tick(true, speed(0)) == ActionStop {
		t.Error("stop should need 3 fresh ticks")
	}
	if d.Tick(true, speed(0)) != ActionStop {
		t.Error("3rd consecutive stopped tick should stop")
	}
}

func TestDetectorResetsOnActiveFlip(t *testing.T) {
	d := NewDetector(5, 3)
	d.Tick(false, cadence(90))
	d.Tick(false, cadence(90))

	// Session started manually; start counter must not leak
	d.Tick(true, speed(0))
	state := d.State()
	if state.StartCount != 0 || state.Countdown != nil {
		t.Errorf("start state leaked across flip: %+v", state)
	}
	if state.StopCount != 1 {
		t.Errorf("StopCount = %d, want 1", state.StopCount)
	}

	// Session stopped manually; stop counter must not leak
	d.Tick(false, cadence(0))
	if d.State().StopCount != 0 {
		t.Errorf("StopCount = %d after flip, want 0", d.State().StopCount)
	}
}

func TestDetectorDisable(t *testing.T) {
	d := NewDetector(5, 3)
	for i := 0; i < 3; i++ {
		d.Tick(false, cadence(90))
	}

	d.SetEnabled(false)
	state := d.State()
	if state.Enabled || state.StartCount != 0 || state.Countdown != nil {
		t.Errorf("state after disable = %+v, want disabled and cleared", state)
	}

	for i := 0; i < 10; i++ {
		if d.Tick(false, cadence(90)) != ActionNone {
			t.Fatal("disabled detector should never act")
		}
	}

	d.SetEnabled(true)
	for i := 0; i < 4; i++ {
		d.Tick(false, cadence(90))
	}
	if d.Tick(false, cadence(90)) != ActionStart {
		t.Error("re-enabled detector should start after a full run")
	}
}

func TestDetectorDefaults(t *testing.T) {
	d := NewDetector(0, -1)
	if d.startThreshold != DefaultStartThreshold || d.stopThreshold != DefaultStopThreshold {
		t.Errorf("thresholds = %d/%d, want defaults", d.startThreshold, d.stopThreshold)
	}
}

func TestActionString(t *testing.T) {
	if ActionStart.String() != "start" || ActionStop.String() != "stop" || ActionNone.String() != "none" {
		t.Error("unexpected Action strings")
	}
}
