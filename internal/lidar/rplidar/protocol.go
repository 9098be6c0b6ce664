package rplidar

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Command bytes.
const (
	syncByte  = 0xA5
	syncByte2 = 0x5A

	cmdStop        = 0x25
	cmdReset       = 0x40
	cmdScan        = 0x20
	cmdForceScan   = 0x21
	cmdGetInfo     = 0x50
	cmdGetHealth   = 0x52
	cmdSetMotorPWM = 0xF0
)

// Response descriptors.
const (
	descriptorLen = 7

	respInfo   = 0x04
	respHealth = 0x06
	respScan   = 0x81

	infoLen   = 20
	healthLen = 3
	sampleLen = 5

	modeSingle   = 0
	modeMultiple = 1
)

var (
	// ErrBadDescriptor is returned when a response header does not match
	// the command that was sent.
	ErrBadDescriptor = errors.New("rplidar: unexpected response descriptor")
	// ErrTimeout is returned when the device stops sending data.
	ErrTimeout = errors.New("rplidar: read timeout")

	errBadSample = errors.New("rplidar: invalid sample packet")
)

// request builds a command without payload.
func request(cmd byte) []byte {
	return []byte{syncByte, cmd}
}

// requestWithPayload builds a command carrying payload. The trailing
// checksum is the XOR of every preceding byte.
func requestWithPayload(cmd byte, payload []byte) []byte {
	req := make([]byte, 0, 4+len(payload))
	req = append(req, syncByte, cmd, byte(len(payload)))
	req = append(req, payload...)
	var checksum byte
	for _, b := range req {
		checksum ^= b
	}
	return append(req, checksum)
}

// descriptor is a decoded response header.
type descriptor struct {
	Length   uint32
	Mode     byte
	DataType byte
}

func parseDescriptor(b []byte) (descriptor, error) {
	if len(b) != descriptorLen || b[0] != syncByte || b[1] != syncByte2 {
		return descriptor{}, fmt.Errorf("%w: % x", ErrBadDescriptor, b)
	}
	v := binary.LittleEndian.Uint32(b[2:6])
	return descriptor{
		Length:   v & 0x3FFFFFFF,
		Mode:     byte(v >> 30),
		DataType: b[6],
	}, nil
}

func (d descriptor) expect(length uint32, mode, dataType byte) error {
	if d.Length != length || d.Mode != mode || d.DataType != dataType {
		return fmt.Errorf("%w: got len=%d mode=%d type=%#x, want len=%d mode=%d type=%#x",
			ErrBadDescriptor, d.Length, d.Mode, d.DataType, length, mode, dataType)
	}
	return nil
}

// Measurement is one decoded scan sample.
type Measurement struct {
	NewScan  bool    // first sample of a revolution as flagged by the device
	Quality  int     // 0..63
	Angle    float64 // degrees
	Distance float64 // millimetres, 0 when there is no return
}

// decodeSample decodes a 5-byte scan packet. The start flag and its inverse
// must differ and the check bit must be set.
func decodeSample(b []byte) (Measurement, error) {
	if len(b) != sampleLen {
		return Measurement{}, errBadSample
	}
	start := b[0]&0x01 != 0
	inverse := b[0]&0x02 != 0
	if start == inverse {
		return Measurement{}, errBadSample
	}
	if b[1]&0x01 != 1 {
		return Measurement{}, errBadSample
	}
	angleQ6 := uint16(b[1])>>1 | uint16(b[2])<<7
	distQ2 := uint16(b[3]) | uint16(b[4])<<8
	return Measurement{
		NewScan:  start,
		Quality:  int(b[0] >> 2),
		Angle:    float64(angleQ6) / 64,
		Distance: float64(distQ2) / 4,
	}, nil
}

// encodeSample is the inverse of decodeSample.
func encodeSample(m Measurement) []byte {
	b0 := byte(m.Quality<<2) | 0x02
	if m.NewScan {
		b0 = byte(m.Quality<<2) | 0x01
	}
	angleQ6 := uint16(m.Angle * 64)
	distQ2 := uint16(m.Distance * 4)
	return []byte{
		b0,
		byte(angleQ6<<1) | 0x01,
		byte(angleQ6 >> 7),
		byte(distQ2),
		byte(distQ2 >> 8),
	}
}

// Info is the device identification block.
type Info struct {
	Model    int    `json:"model"`
	Firmware string `json:"firmware"`
	Hardware int    `json:"hardware"`
	Serial   string `json:"serial"`
}

func parseInfo(b []byte) Info {
	return Info{
		Model:    int(b[0]),
		Firmware: fmt.Sprintf("%d.%02d", b[2], b[1]),
		Hardware: int(b[3]),
		Serial:   fmt.Sprintf("%X", b[4:20]),
	}
}

// HealthStatus is the device's self-assessment.
type HealthStatus int

const (
	HealthGood HealthStatus = iota
	HealthWarning
	HealthError
)

func (s HealthStatus) String() string {
	switch s {
	case HealthGood:
		return "Good"
	case HealthWarning:
		return "Warning"
	case HealthError:
		return "Error"
	}
	return fmt.Sprintf("HealthStatus(%d)", int(s))
}

// Health is the decoded GET_HEALTH response.
type Health struct {
	Status    HealthStatus `json:"status"`
	ErrorCode int          `json:"error_code"`
}

func parseHealth(b []byte) Health {
	return Health{
		Status:    HealthStatus(b[0]),
		ErrorCode: int(binary.LittleEndian.Uint16(b[1:3])),
	}
}
