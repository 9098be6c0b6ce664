package rplidar

import (
	"bytes"
	"errors"
	"sync"
	"time"
)

// TestablePort implements Port with scripted device behaviour. Writes are
// captured; a write whose command byte has an entry in Responses queues that
// response for reading. Read returns (0, nil) when nothing is queued, which
// is how a real port reports a read timeout.
type TestablePort struct {
	mu sync.Mutex

	ReadBuffer  *bytes.Buffer
	WriteBuffer *bytes.Buffer
	Responses   map[byte][]byte

	ReadError  error
	WriteError error
	CloseError error

	Closed      bool
	DTR         []bool
	ReadTimeout time.Duration
	Resets      int
}

// NewTestablePort creates an empty port.
func NewTestablePort() *TestablePort {
	return &TestablePort{
		ReadBuffer:  bytes.NewBuffer(nil),
		WriteBuffer: bytes.NewBuffer(nil),
		Responses:   make(map[byte][]byte),
	}
}

// Read returns queued bytes.
func (t *TestablePort) Read(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.Closed {
		return 0, errors.New("serial port closed")
	}
	if t.ReadError != nil {
		err := t.ReadError
		t.ReadError = nil
		return 0, err
	}
	if t.ReadBuffer.Len() == 0 {
		return 0, nil
	}
	return t.ReadBuffer.Read(p)
}

// Write records p and queues any scripted response.
func (t *TestablePort) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.Closed {
		return 0, errors.New("serial port closed")
	}
	if t.WriteError != nil {
		err := t.WriteError
		t.WriteError = nil
		return 0, err
	}
	if len(p) >= 2 && p[0] == syncByte {
		if resp, ok := t.Responses[p[1]]; ok {
			t.ReadBuffer.Write(resp)
		}
	}
	return t.WriteBuffer.Write(p)
}

// Close marks the port as closed.
func (t *TestablePort) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Closed = true
	return t.CloseError
}

// SetReadTimeout records the timeout.
func (t *TestablePort) SetReadTimeout(d time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ReadTimeout = d
	return nil
}

// ResetInputBuffer discards queued input.
func (t *TestablePort) ResetInputBuffer() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ReadBuffer.Reset()
	t.Resets++
	return nil
}

// SetDTR records the line state.
func (t *TestablePort) SetDTR(dtr bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.DTR = append(t.DTR, dtr)
	return nil
}

// AddReadData queues data for reading.
func (t *TestablePort) AddReadData(data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ReadBuffer.Write(data)
}

// Written returns a copy of everything written so far.
func (t *TestablePort) Written() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]byte(nil), t.WriteBuffer.Bytes()...)
}
