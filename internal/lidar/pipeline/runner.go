package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/banshee-data/sweepcast/internal/lidar/sensor"
	"github.com/banshee-data/sweepcast/internal/monitoring"
	"github.com/banshee-data/sweepcast/internal/timeutil"
)

// Runner drives a Pipeline from a sensor source on the calling goroutine.
type Runner struct {
	Pipeline *Pipeline
	Config   ConfigSource
	Source   sensor.Source
	Sender   io.Closer // closed last on shutdown, optional
	Clock    timeutil.Clock

	// MotorPWM is the duty cycle the device is currently running at. Run
	// sends MOTOR_PWM to the source whenever the snapshot differs from it.
	MotorPWM int
}

// Run pulls samples until ctx is done or the source fails. A source that is
// exhausted ends the run without error. Run does not release anything; call
// Shutdown afterwards.
func (r *Runner) Run(ctx context.Context) error {
	if r.Clock == nil {
		r.Clock = timeutil.RealClock{}
	}
	motor, _ := r.Source.(sensor.MotorController)

	for {
		if ctx.Err() != nil {
			return nil
		}

		sample, err := r.Source.Next(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			if errors.Is(err, sensor.ErrExhausted) {
				monitoring.Logf("[pipeline] source exhausted")
				return nil
			}
			return fmt.Errorf("read sample: %w", err)
		}

		// Next may block for a while; take the snapshot once it returns.
		cfg := r.Config.Snapshot()
		if motor != nil && cfg.MotorPWM != r.MotorPWM {
			if err := motor.SetMotorPWM(cfg.MotorPWM); err != nil {
				// Keep the old value so the next cycle retries.
				monitoring.Logf("[pipeline] set motor PWM %d: %v", cfg.MotorPWM, err)
			} else {
				monitoring.Logf("[pipeline] motor PWM %d -> %d", r.MotorPWM, cfg.MotorPWM)
				r.MotorPWM = cfg.MotorPWM
			}
		}
		r.Pipeline.ProcessWith(&cfg, sample, r.Clock.Now())
	}
}

// Shutdown flushes the pending batch, stops the sensor, zeroes its motor,
// releases the device and closes the sender, in that order. Every step is
// attempted even when an earlier one fails.
func (r *Runner) Shutdown() error {
	if r.Clock == nil {
		r.Clock = timeutil.RealClock{}
	}
	var errs []error

	r.Pipeline.Flush(r.Clock.Now())

	if s, ok := r.Source.(sensor.Scanner); ok {
		if err := s.StopScan(); err != nil {
			errs = append(errs, fmt.Errorf("stop scan: %w", err))
		}
	}
	if m, ok := r.Source.(sensor.MotorController); ok {
		if err := m.SetMotorPWM(0); err != nil {
			errs = append(errs, fmt.Errorf("stop motor: %w", err))
		} else {
			r.MotorPWM = 0
		}
	}
	if c, ok := r.Source.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close sensor: %w", err))
		}
	}
	if r.Sender != nil {
		if err := r.Sender.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close sender: %w", err))
		}
	}

	err := errors.Join(errs...)
	if err != nil {
		monitoring.Logf("[pipeline] shutdown: %v", err)
	}
	return err
}
