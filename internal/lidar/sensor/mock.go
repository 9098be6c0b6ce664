package sensor

import (
	"context"
	"sync"

	"github.com/banshee-data/sweepcast/internal/lidar/l1samples"
)

// MockDevice is a scripted Source that also records motor, stop and close
// calls. The ordered call log lets tests check shutdown sequencing.
type MockDevice struct {
	mu sync.Mutex

	Samples []l1samples.RawSample
	// NextError is returned once the samples are used up; ErrExhausted when
	// nil.
	NextError error
	// BlockWhenEmpty makes Next wait for ctx instead of returning NextError.
	BlockWhenEmpty bool

	PWMError   error
	StopError  error
	CloseError error

	pos   int
	pwm   []int
	calls []string
}

// Next returns the next scripted sample.
func (m *MockDevice) Next(ctx context.Context) (l1samples.RawSample, error) {
	m.mu.Lock()
	if m.pos < len(m.Samples) {
		s := m.Samples[m.pos]
		m.pos++
		m.mu.Unlock()
		return s, nil
	}
	block := m.BlockWhenEmpty
	err := m.NextError
	m.mu.Unlock()

	if block {
		<-ctx.Done()
		return l1samples.RawSample{}, ctx.Err()
	}
	if err == nil {
		err = ErrExhausted
	}
	return l1samples.RawSample{}, err
}

// SetMotorPWM records pwm.
func (m *MockDevice) SetMotorPWM(pwm int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pwm = append(m.pwm, pwm)
	m.calls = append(m.calls, "pwm")
	return m.PWMError
}

// StopScan records the call.
func (m *MockDevice) StopScan() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "stop")
	return m.StopError
}

// Close records the call.
func (m *MockDevice) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "close")
	return m.CloseError
}

// PWM returns every duty cycle set so far.
func (m *MockDevice) PWM() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.pwm...)
}

// Calls returns the ordered log of pwm, stop and close calls.
func (m *MockDevice) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}
