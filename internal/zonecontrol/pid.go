package zonecontrol

import "sort"

// pid is a clamped PID loop; output is a wattage adjustment
type pid struct {
	kp, ki, kd    float64
	integral      float64
	prevError     *float64
	integralLimit float64
	outputLimit   float64
}

func newPID(kp, ki, kd float64) *pid {
	return &pid{kp: kp, ki: ki, kd: kd, integralLimit: 200, outputLimit: 30}
}

func (p *pid) update(err, dtSecs float64) float64 {
	out := p.kp * err

	p.integral = clamp(p.integral+err*dtSecs, -p.integralLimit, p.integralLimit)
	out += p.ki * p.integral

	if p.prevError != nil && dtSecs > 0 {
		out += p.kd * (err - *p.prevError) / dtSecs
	}
	p.prevError = &err

	return clamp(out, -p.outputLimit, p.outputLimit)
}

func (p *pid) reset() {
	p.integral = 0
	p.prevError = nil
}

func (p *pid) setGains(kp, ki, kd float64) {
	p.kp, p.ki, p.kd = kp, ki, kd
}

// adaptiveGains tightens the loop as heart rate closes on the target
func adaptiveGains(errAbs float64) (kp, ki, kd float64) {
	switch {
	case errAbs > 15:
		return 3.0, 0.15, 0.8
	case errAbs > 5:
		return 2.0, 0.10, 0.5
	default:
		return 1.0, 0.05, 0.3
	}
}

// medianSmoother reports the median of the last size values
type medianSmoother struct {
	size   int
	values []float64
}

func (m *medianSmoother) push(v float64) {
	if len(m.values) >= m.size {
		m.values = m.values[1:]
	}
	m.values = append(m.values, v)
}

func (m *medianSmoother) median() (float64, bool) {
	if len(m.values) == 0 {
		return 0, false
	}
	sorted := append([]float64(nil), m.values...)
	sort.Float64s(sorted)
	return sorted[len(sorted)/2], true
}

func (m *medianSmoother) reset() {
	m.values = nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
