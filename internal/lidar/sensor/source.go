// Package sensor defines the boundary between the pipeline and whatever
// produces angle/distance samples: a physical scanner, a recorded fixture or
// a synthetic scene.
package sensor

import (
	"context"
	"errors"
	"time"

	"github.com/banshee-data/sweepcast/internal/lidar/l1samples"
	"github.com/banshee-data/sweepcast/internal/timeutil"
)

// ErrExhausted is returned by finite sources after their last sample.
var ErrExhausted = errors.New("sensor: source exhausted")

// Source yields one raw sample per call. Next blocks until a sample is
// available, ctx is done, or the device fails.
type Source interface {
	Next(ctx context.Context) (l1samples.RawSample, error)
}

// MotorController is implemented by sources whose rotation speed can be set.
type MotorController interface {
	SetMotorPWM(pwm int) error
}

// Scanner is implemented by sources that must be told to stop scanning
// before they are released.
type Scanner interface {
	StopScan() error
}

// pacer spaces calls to a fixed rate against a clock. Sleeps shorter than
// minSleep are deferred and taken together so the real clock is not asked
// for sub-millisecond sleeps.
type pacer struct {
	clock  timeutil.Clock
	period time.Duration
	start  time.Time
	n      int64
}

const minSleep = time.Millisecond

func newPacer(clock timeutil.Clock, rate float64) *pacer {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	var period time.Duration
	if rate > 0 {
		period = time.Duration(float64(time.Second) / rate)
	}
	return &pacer{clock: clock, period: period}
}

// wait blocks until the next sample is due and returns its index.
func (p *pacer) wait(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if p.start.IsZero() {
		p.start = p.clock.Now()
	}
	n := p.n
	p.n++
	if p.period == 0 {
		return n, nil
	}
	due := p.start.Add(time.Duration(n) * p.period)
	if d := due.Sub(p.clock.Now()); d >= minSleep {
		p.clock.Sleep(d)
	}
	return n, nil
}
