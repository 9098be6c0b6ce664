package sensor

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/banshee-data/sweepcast/internal/lidar/l1samples"
	"github.com/banshee-data/sweepcast/internal/timeutil"
)

// SyntheticSource generates a rotating scan of a flat wall in front of the
// sensor with one circular target orbiting inside the ROI. It stands in for
// the device during development.
type SyntheticSource struct {
	// Configuration
	SamplesPerRev int     // samples per revolution
	RevPerSec     float64 // rotation rate at full speed
	WallDistance  float64 // millimetres from the sensor to the wall
	MaxRange      float64 // millimetres, beyond which there is no return
	TargetRadius  float64 // millimetres
	TargetOrbit   float64 // millimetres, radius of the target's path
	TargetCentreY float64 // millimetres, centre of the target's path
	TargetPeriod  time.Duration
	Noise         float64 // millimetres, uniform range noise amplitude

	mu     sync.Mutex
	pace   *pacer
	clock  timeutil.Clock
	rng    *rand.Rand
	pwm    int
	closed bool
}

// NewSyntheticSource creates a generator paced by clock.
func NewSyntheticSource(clock timeutil.Clock, seed int64) *SyntheticSource {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	s := &SyntheticSource{
		SamplesPerRev: 720,
		RevPerSec:     10,
		WallDistance:  1800,
		MaxRange:      6000,
		TargetRadius:  120,
		TargetOrbit:   300,
		TargetCentreY: 600,
		TargetPeriod:  4 * time.Second,
		Noise:         3,
		clock:         clock,
		rng:           rand.New(rand.NewSource(seed)),
		pwm:           660,
	}
	return s
}

// Next returns the next sample of the scan.
func (s *SyntheticSource) Next(ctx context.Context) (l1samples.RawSample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return l1samples.RawSample{}, ErrExhausted
	}
	if s.pace == nil {
		s.pace = newPacer(s.clock, float64(s.SamplesPerRev)*s.RevPerSec)
	}
	n, err := s.pace.wait(ctx)
	if err != nil {
		return l1samples.RawSample{}, err
	}

	step := 360 / float64(s.SamplesPerRev)
	angle := float64(n%int64(s.SamplesPerRev))*step + s.rng.Float64()*step*0.1
	if s.pwm == 0 {
		return l1samples.RawSample{Angle: angle}, nil
	}

	elapsed := time.Duration(n) * s.pace.period
	d := s.rangeAt(angle, elapsed)
	if d > 0 {
		d += (s.rng.Float64()*2 - 1) * s.Noise
	}
	return l1samples.RawSample{Angle: angle, Distance: d}, nil
}

// rangeAt returns the distance to the nearest surface along angle, or 0 when
// nothing is within MaxRange.
func (s *SyntheticSource) rangeAt(angleDeg float64, elapsed time.Duration) float64 {
	sin, cos := math.Sincos(angleDeg * math.Pi / 180)
	best := math.Inf(1)

	if cos > 0 {
		best = s.WallDistance / cos
	}

	phase := 2 * math.Pi * elapsed.Seconds() / s.TargetPeriod.Seconds()
	cx := s.TargetOrbit * math.Sin(phase)
	cy := s.TargetCentreY + s.TargetOrbit*math.Cos(phase)/2
	proj := sin*cx + cos*cy
	disc := s.TargetRadius*s.TargetRadius - (cx*cx + cy*cy - proj*proj)
	if disc >= 0 {
		if hit := proj - math.Sqrt(disc); hit > 0 && hit < best {
			best = hit
		}
	}

	if best > s.MaxRange {
		return 0
	}
	return best
}

// SetMotorPWM records the duty cycle. A duty of zero stops returns.
func (s *SyntheticSource) SetMotorPWM(pwm int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pwm = pwm
	return nil
}

// MotorPWM returns the last duty cycle set.
func (s *SyntheticSource) MotorPWM() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pwm
}

// StopScan is a no-op for the synthetic scene.
func (s *SyntheticSource) StopScan() error {
	return nil
}

// Close ends the stream; later calls to Next return ErrExhausted.
func (s *SyntheticSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
