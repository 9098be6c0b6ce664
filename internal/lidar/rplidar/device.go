// Package rplidar drives Slamtec RPLIDAR 2-D scanners over a serial link and
// exposes them as a sensor.Source.
package rplidar

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/sweepcast/internal/lidar/l1samples"
	"github.com/banshee-data/sweepcast/internal/monitoring"
	"github.com/banshee-data/sweepcast/internal/timeutil"
)

const (
	// MaxMotorPWM is the largest accepted duty cycle.
	MaxMotorPWM = 1023
	// DefaultMotorPWM is the duty cycle used at boot.
	DefaultMotorPWM = 660

	pollTimeout    = 100 * time.Millisecond
	defaultTimeout = time.Second
	scanAttempts   = 5
)

// Options configures Open.
type Options struct {
	Port     PortOptions
	MotorPWM int // duty cycle applied during boot; DefaultMotorPWM when 0
	// ReadTimeout bounds how long Next waits without receiving a byte.
	ReadTimeout time.Duration
	// NormalScan uses SCAN instead of FORCE_SCAN. FORCE_SCAN starts
	// sampling even when the motor has not reached a stable speed.
	NormalScan bool

	Opener PortOpener
	Clock  timeutil.Clock
}

// Device is an open scanner. Next must only be called from one goroutine;
// SetMotorPWM, StopScan and Close may be called from any.
type Device struct {
	path        string
	opts        Options
	clock       timeutil.Clock
	readTimeout time.Duration

	mu       sync.Mutex // guards writes and port replacement
	port     Port
	scanning bool

	buf     [sampleLen]byte
	resyncs uint64
}

// Open connects to the scanner at path and runs the boot sequence: stop any
// running scan, reconnect, reset, spin the motor up, and start scanning.
// The settle delays give the firmware time to finish each step.
func Open(ctx context.Context, path string, opts Options) (*Device, error) {
	if opts.Opener == nil {
		opts.Opener = OpenSerial
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	if opts.MotorPWM == 0 {
		opts.MotorPWM = DefaultMotorPWM
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = defaultTimeout
	}

	d := &Device{path: path, opts: opts, clock: opts.Clock, readTimeout: opts.ReadTimeout}

	// A previous process may have left the device scanning.
	if err := d.connect(); err != nil {
		return nil, err
	}
	if err := d.StopScan(); err != nil {
		monitoring.Logf("[rplidar] warning: initial stop failed: %v", err)
	}
	d.clock.Sleep(time.Second)
	if err := d.disconnect(); err != nil {
		monitoring.Logf("[rplidar] warning: disconnect failed: %v", err)
	}
	d.clock.Sleep(time.Second)

	if err := d.connect(); err != nil {
		return nil, err
	}
	if err := d.Reset(); err != nil {
		d.disconnect()
		return nil, err
	}
	d.clock.Sleep(2 * time.Second)
	if err := d.port.ResetInputBuffer(); err != nil {
		monitoring.Logf("[rplidar] warning: failed to clear input after reset: %v", err)
	}

	if err := d.SetMotorPWM(opts.MotorPWM); err != nil {
		d.disconnect()
		return nil, err
	}
	d.clock.Sleep(2 * time.Second)

	var err error
	for attempt := 1; attempt <= scanAttempts; attempt++ {
		if err = d.StartScan(ctx); err == nil {
			monitoring.Logf("[rplidar] scanning on %s (attempt %d)", path, attempt)
			return d, nil
		}
		if ctx.Err() != nil {
			break
		}
		monitoring.Logf("[rplidar] start scan attempt %d/%d failed: %v", attempt, scanAttempts, err)
		d.clock.Sleep(time.Second)
	}
	d.Close()
	return nil, fmt.Errorf("failed to start scan on %s: %w", path, err)
}

func (d *Device) connect() error {
	port, err := d.opts.Opener(d.path, d.opts.Port)
	if err != nil {
		return err
	}
	if err := port.SetReadTimeout(pollTimeout); err != nil {
		port.Close()
		return fmt.Errorf("failed to set read timeout: %w", err)
	}
	d.mu.Lock()
	d.port = port
	d.mu.Unlock()
	return nil
}

func (d *Device) disconnect() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.port == nil {
		return nil
	}
	err := d.port.Close()
	d.port = nil
	return err
}

func (d *Device) write(req []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.port == nil {
		return errors.New("rplidar: port closed")
	}
	if _, err := d.port.Write(req); err != nil {
		return fmt.Errorf("rplidar: write failed: %w", err)
	}
	return nil
}

// readFull fills b, polling so that ctx is honoured. It fails with
// ErrTimeout when no byte arrives for the read timeout.
func (d *Device) readFull(ctx context.Context, b []byte) error {
	d.mu.Lock()
	port := d.port
	d.mu.Unlock()
	if port == nil {
		return errors.New("rplidar: port closed")
	}

	idle := time.Duration(0)
	for n := 0; n < len(b); {
		if err := ctx.Err(); err != nil {
			return err
		}
		m, err := port.Read(b[n:])
		if err != nil {
			return fmt.Errorf("rplidar: read failed: %w", err)
		}
		if m == 0 {
			idle += pollTimeout
			if idle >= d.readTimeout {
				return ErrTimeout
			}
			continue
		}
		idle = 0
		n += m
	}
	return nil
}

func (d *Device) readDescriptor(ctx context.Context) (descriptor, error) {
	var b [descriptorLen]byte
	if err := d.readFull(ctx, b[:]); err != nil {
		return descriptor{}, err
	}
	return parseDescriptor(b[:])
}

// Info queries the device identification.
func (d *Device) Info(ctx context.Context) (Info, error) {
	if err := d.write(request(cmdGetInfo)); err != nil {
		return Info{}, err
	}
	desc, err := d.readDescriptor(ctx)
	if err != nil {
		return Info{}, err
	}
	if err := desc.expect(infoLen, modeSingle, respInfo); err != nil {
		return Info{}, err
	}
	var b [infoLen]byte
	if err := d.readFull(ctx, b[:]); err != nil {
		return Info{}, err
	}
	return parseInfo(b[:]), nil
}

// Health queries the device self-test status.
func (d *Device) Health(ctx context.Context) (Health, error) {
	if err := d.write(request(cmdGetHealth)); err != nil {
		return Health{}, err
	}
	desc, err := d.readDescriptor(ctx)
	if err != nil {
		return Health{}, err
	}
	if err := desc.expect(healthLen, modeSingle, respHealth); err != nil {
		return Health{}, err
	}
	var b [healthLen]byte
	if err := d.readFull(ctx, b[:]); err != nil {
		return Health{}, err
	}
	return parseHealth(b[:]), nil
}

// SetMotorPWM sets the motor duty cycle. Zero also raises DTR, which stops
// the motor on boards that drive it from the control line.
func (d *Device) SetMotorPWM(pwm int) error {
	if pwm < 0 || pwm > MaxMotorPWM {
		return fmt.Errorf("motor PWM %d out of range [0, %d]", pwm, MaxMotorPWM)
	}
	d.mu.Lock()
	port := d.port
	d.mu.Unlock()
	if port != nil {
		if err := port.SetDTR(pwm == 0); err != nil {
			monitoring.Logf("[rplidar] warning: failed to set DTR: %v", err)
		}
	}
	return d.write(requestWithPayload(cmdSetMotorPWM, []byte{byte(pwm), byte(pwm >> 8)}))
}

// Reset restarts the device core.
func (d *Device) Reset() error {
	return d.write(request(cmdReset))
}

// StartScan begins continuous sampling and validates the response header.
func (d *Device) StartScan(ctx context.Context) error {
	d.mu.Lock()
	port := d.port
	d.mu.Unlock()
	if port != nil {
		if err := port.ResetInputBuffer(); err != nil {
			return fmt.Errorf("rplidar: failed to clear input: %w", err)
		}
	}

	cmd := byte(cmdForceScan)
	if d.opts.NormalScan {
		cmd = cmdScan
	}
	if err := d.write(request(cmd)); err != nil {
		return err
	}
	desc, err := d.readDescriptor(ctx)
	if err != nil {
		return err
	}
	if err := desc.expect(sampleLen, modeMultiple, respScan); err != nil {
		return err
	}

	d.mu.Lock()
	d.scanning = true
	d.mu.Unlock()
	return nil
}

// NextMeasurement reads one scan packet. Invalid packets are skipped one
// byte at a time until the stream is back in frame.
func (d *Device) NextMeasurement(ctx context.Context) (Measurement, error) {
	if err := d.readFull(ctx, d.buf[:]); err != nil {
		return Measurement{}, err
	}
	for {
		m, err := decodeSample(d.buf[:])
		if err == nil {
			return m, nil
		}
		d.resyncs++
		if d.resyncs%1000 == 1 {
			monitoring.Logf("[rplidar] resynchronising sample stream (%d bytes skipped so far)", d.resyncs)
		}
		copy(d.buf[:], d.buf[1:])
		if err := d.readFull(ctx, d.buf[sampleLen-1:]); err != nil {
			return Measurement{}, err
		}
	}
}

// Next implements sensor.Source.
func (d *Device) Next(ctx context.Context) (l1samples.RawSample, error) {
	m, err := d.NextMeasurement(ctx)
	if err != nil {
		return l1samples.RawSample{}, err
	}
	return l1samples.RawSample{Angle: m.Angle, Distance: m.Distance}, nil
}

// Scanning reports whether a scan has been started and not stopped.
func (d *Device) Scanning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.scanning
}

// Resyncs returns how many bytes have been discarded to regain framing.
func (d *Device) Resyncs() uint64 {
	return d.resyncs
}

// StopScan ends sampling. The device does not acknowledge STOP.
func (d *Device) StopScan() error {
	d.mu.Lock()
	d.scanning = false
	d.mu.Unlock()
	return d.write(request(cmdStop))
}

// Close releases the serial port. It does not stop the scan or the motor;
// callers do that first.
func (d *Device) Close() error {
	return d.disconnect()
}
