package rplidar

import (
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

// Port is the subset of serial.Port the driver needs. A Read that hits the
// read timeout returns (0, nil), as go.bug.st/serial does.
type Port interface {
	io.ReadWriter
	io.Closer
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
	SetDTR(dtr bool) error
}

// PortOpener opens the port at path.
type PortOpener func(path string, opts PortOptions) (Port, error)

// OpenSerial opens a real serial port.
func OpenSerial(path string, opts PortOptions) (Port, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", path, err)
	}
	return port, nil
}
