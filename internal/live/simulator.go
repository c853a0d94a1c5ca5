package live

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ride-analytics/internal/schedule"
)

// SimTickInterval is the simulated power sample rate; the other channels run at a quarter of it
const SimTickInterval = 250 * time.Millisecond

// Profile selects the simulated workout shape
type Profile string

const (
	ProfileSteady     Profile = "steady"
	ProfileIntervals  Profile = "intervals"
	ProfileRamp       Profile = "ramp"
	ProfileStochastic Profile = "stochastic"
)

// ParseProfile converts a name into a Profile
func ParseProfile(s string) (Profile, error) {
	switch p := Profile(s); p {
	case ProfileSteady, ProfileIntervals, ProfileRamp, ProfileStochastic:
		return p, nil
	}
	return "", fmt.Errorf("unknown profile %q", s)
}

type segment struct {
	secs       float64
	startWatts float64
	endWatts   float64
	noise      float64
}

func segmentsFor(p Profile) []segment {
	switch p {
	case ProfileIntervals:
		var segs []segment
		for i := 0; i < 4; i++ {
			segs = append(segs,
				segment{secs: 300, startWatts: 140, endWatts: 140, noise: 5},
				segment{secs: 180, startWatts: 280, endWatts: 280, noise: 8},
			)
		}
		return segs
	case ProfileRamp:
		return []segment{{secs: 900, startWatts: 100, endWatts: 350, noise: 5}}
	case ProfileStochastic:
		return []segment{
			{secs: 180, startWatts: 100, endWatts: 150, noise: 5},
			{secs: 300, startWatts: 180, endWatts: 200, noise: 10},
			{secs: 120, startWatts: 120, endWatts: 120, noise: 3},
			{secs: 240, startWatts: 220, endWatts: 240, noise: 15},
			{secs: 30, startWatts: 400, endWatts: 450, noise: 20},
			{secs: 120, startWatts: 100, endWatts: 130, noise: 5},
			{secs: 180, startWatts: 250, endWatts: 270, noise: 15},
			{secs: 30, startWatts: 420, endWatts: 480, noise: 25},
			{secs: 120, startWatts: 130, endWatts: 150, noise: 5},
			{secs: 360, startWatts: 200, endWatts: 220, noise: 10},
			{secs: 120, startWatts: 150, endWatts: 100, noise: 5},
		}
	default:
		return []segment{{secs: 600, startWatts: 200, endWatts: 200, noise: 3}}
	}
}

// powerAt interpolates the profile at elapsed seconds; the profile loops
func powerAt(segs []segment, elapsed float64, rng *rand.Rand) float64 {
	var total float64
	for _, s := range segs {
		total += s.secs
	}
	if total == 0 {
		return 0
	}
	t := math.Mod(elapsed, total)

	var acc float64
	for _, s := range segs {
		if t < acc+s.secs {
			frac := (t - acc) / s.secs
			base := s.startWatts + (s.endWatts-s.startWatts)*frac
			noise := (rng.Float64()*2 - 1) * s.noise
			return math.Max(base+noise, 0)
		}
		acc += s.secs
	}
	return segs[len(segs)-1].endWatts
}

// hrStep moves heart rate toward its steady state for the given power
func hrStep(hr, power, dtSecs float64) float64 {
	steady := 60 + 0.4*power
	tau := 45.0
	if steady > hr {
		tau = 30.0
	}
	return hr + (steady-hr)*(1-math.Exp(-dtSecs/tau))
}

func cadenceFor(power float64) float64 {
	return math.Min(math.Max(85+(power-150)*0.02, 70), 110)
}

// speedFor returns km/h
func speedFor(power float64) float64 {
	return 4 * math.Cbrt(math.Max(power, 0))
}

// Simulator produces synthetic sensor readings from a workout profile
type Simulator struct {
	emit   func(SensorReading)
	now    func() time.Time
	logger zerolog.Logger

	mu      sync.Mutex
	task    *schedule.Task
	profile Profile
	segs    []segment
	rng     *rand.Rand
	started time.Time
	ticks   uint64
	hr      float64
}

// NewSimulator creates a stopped simulator. emit receives every reading and
// must not block.
func NewSimulator(emit func(SensorReading), logger zerolog.Logger) *Simulator {
	return &Simulator{
		emit:    emit,
		now:     time.Now,
		logger:  logger.With().Str("component", "simulator").Logger(),
		profile: ProfileSteady,
	}
}

// Start begins emitting readings for profile, restarting if already running
func (s *Simulator) Start(ctx context.Context, profile Profile) {
	s.Stop()

	s.mu.Lock()
	s.profile = profile
	s.segs = segmentsFor(profile)
	s.rng = rand.New(rand.NewPCG(0xdeadbeef, 0xcafe1234))
	s.started = s.now()
	s.ticks = 0
	s.hr = 60
	s.task = schedule.NewTask(SimTickInterval, func(ctx context.Context) { s.Step() })
	task := s.task
	s.mu.Unlock()

	s.logger.Info().Str("profile", string(profile)).Msg("Simulator started")
	task.Start(ctx)
}

// Stop halts the simulator. Idempotent.
func (s *Simulator) Stop() {
	s.mu.Lock()
	task := s.task
	s.task = nil
	s.mu.Unlock()

	if task != nil {
		task.Stop()
	}
}

// Running reports whether readings are being emitted
func (s *Simulator) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.task != nil && s.task.Running()
}

// Profile returns the current or last profile
func (s *Simulator) Profile() Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile
}

// Step emits one power reading and, every fourth call, heart rate, cadence and speed
func (s *Simulator) Step() {
	s.mu.Lock()
	if s.segs == nil {
		s.mu.Unlock()
		return
	}
	now := s.now()
	power := powerAt(s.segs, now.Sub(s.started).Seconds(), s.rng)
	readings := []SensorReading{{Kind: KindPower, Value: math.Round(power), DeviceID: "sim:power", EpochMs: now.UnixMilli()}}
	if s.ticks%4 == 0 {
		s.hr = hrStep(s.hr, power, 1)
		readings = append(readings,
			SensorReading{Kind: KindHeartRate, Value: math.Max(math.Round(s.hr), 40), DeviceID: "sim:hr", EpochMs: now.UnixMilli()},
			SensorReading{Kind: KindCadence, Value: cadenceFor(power), DeviceID: "sim:cadence", EpochMs: now.UnixMilli()},
			SensorReading{Kind: KindSpeed, Value: speedFor(power), DeviceID: "sim:speed", EpochMs: now.UnixMilli()},
		)
	}
	s.ticks++
	s.mu.Unlock()

	for _, r := range readings {
		s.emit(r)
	}
}
