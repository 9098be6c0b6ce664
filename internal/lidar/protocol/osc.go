package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
)

// OSC bundle framing.
const (
	bundleTag = "#bundle\x00"

	// TimetagImmediately asks the receiver to dispatch a bundle on arrival.
	TimetagImmediately uint64 = 1
)

// ErrShortOSC is returned when a payload ends before a field is complete.
var ErrShortOSC = errors.New("osc: truncated payload")

// Message is one OSC message. Arguments are int32 or float32.
type Message struct {
	Address string
	Args    []interface{}
}

// TypeTags returns the type-tag string for the message arguments,
// including the leading comma.
func (m Message) TypeTags() (string, error) {
	var sb strings.Builder
	sb.WriteByte(',')
	for i, a := range m.Args {
		switch a.(type) {
		case int32:
			sb.WriteByte('i')
		case float32:
			sb.WriteByte('f')
		default:
			return "", fmt.Errorf("osc: argument %d of %s has unsupported type %T", i, m.Address, a)
		}
	}
	return sb.String(), nil
}

// AppendMessage appends the binary form of m to dst.
func AppendMessage(dst []byte, m Message) ([]byte, error) {
	if !strings.HasPrefix(m.Address, "/") {
		return dst, fmt.Errorf("osc: address %q must start with '/'", m.Address)
	}
	tags, err := m.TypeTags()
	if err != nil {
		return dst, err
	}
	dst = appendString(dst, m.Address)
	dst = appendString(dst, tags)
	for _, a := range m.Args {
		switch v := a.(type) {
		case int32:
			dst = binary.BigEndian.AppendUint32(dst, uint32(v))
		case float32:
			if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
				return dst, fmt.Errorf("osc: non-finite argument for %s", m.Address)
			}
			dst = binary.BigEndian.AppendUint32(dst, math.Float32bits(v))
		}
	}
	return dst, nil
}

// AppendBundle appends a bundle holding msgs to dst. Each element is
// prefixed with its int32 byte length.
func AppendBundle(dst []byte, timetag uint64, msgs []Message) ([]byte, error) {
	dst = append(dst, bundleTag...)
	dst = binary.BigEndian.AppendUint64(dst, timetag)
	for _, m := range msgs {
		lenAt := len(dst)
		dst = append(dst, 0, 0, 0, 0)
		var err error
		dst, err = AppendMessage(dst, m)
		if err != nil {
			return nil, err
		}
		binary.BigEndian.PutUint32(dst[lenAt:], uint32(len(dst)-lenAt-4))
	}
	return dst, nil
}

// appendString writes s followed by one to four NUL bytes so that the total
// length is a multiple of four.
func appendString(dst []byte, s string) []byte {
	dst = append(dst, s...)
	pad := 4 - len(s)%4
	for i := 0; i < pad; i++ {
		dst = append(dst, 0)
	}
	return dst
}

// IsBundle reports whether b starts with the bundle marker.
func IsBundle(b []byte) bool {
	return bytes.HasPrefix(b, []byte(bundleTag))
}

// DecodeBundle parses a bundle produced by AppendBundle. Nested bundles are
// not supported.
func DecodeBundle(b []byte) (uint64, []Message, error) {
	if !IsBundle(b) {
		return 0, nil, errors.New("osc: missing #bundle marker")
	}
	if len(b) < 16 {
		return 0, nil, ErrShortOSC
	}
	timetag := binary.BigEndian.Uint64(b[8:16])
	rest := b[16:]

	var msgs []Message
	for len(rest) > 0 {
		if len(rest) < 4 {
			return 0, nil, ErrShortOSC
		}
		size := int(binary.BigEndian.Uint32(rest))
		rest = rest[4:]
		if size < 0 || size > len(rest) || size%4 != 0 {
			return 0, nil, fmt.Errorf("osc: bad element size %d", size)
		}
		m, err := DecodeMessage(rest[:size])
		if err != nil {
			return 0, nil, err
		}
		msgs = append(msgs, m)
		rest = rest[size:]
	}
	return timetag, msgs, nil
}

// DecodeMessage parses a single message with int32 and float32 arguments.
func DecodeMessage(b []byte) (Message, error) {
	addr, rest, err := readString(b)
	if err != nil {
		return Message{}, err
	}
	tags, rest, err := readString(rest)
	if err != nil {
		return Message{}, err
	}
	if !strings.HasPrefix(tags, ",") {
		return Message{}, fmt.Errorf("osc: type tags %q must start with ','", tags)
	}

	m := Message{Address: addr}
	for _, tag := range tags[1:] {
		if len(rest) < 4 {
			return Message{}, ErrShortOSC
		}
		word := binary.BigEndian.Uint32(rest)
		rest = rest[4:]
		switch tag {
		case 'i':
			m.Args = append(m.Args, int32(word))
		case 'f':
			m.Args = append(m.Args, math.Float32frombits(word))
		default:
			return Message{}, fmt.Errorf("osc: unsupported type tag %q", tag)
		}
	}
	if len(rest) != 0 {
		return Message{}, fmt.Errorf("osc: %d trailing bytes after %s", len(rest), addr)
	}
	return m, nil
}

func readString(b []byte) (string, []byte, error) {
	end := bytes.IndexByte(b, 0)
	if end < 0 {
		return "", nil, ErrShortOSC
	}
	padded := (end/4 + 1) * 4
	if padded > len(b) {
		return "", nil, ErrShortOSC
	}
	return string(b[:end]), b[padded:], nil
}

// OSCEncoder produces OSC bundles with an immediate timetag.
//
// A batch is sent as <prefix>/detect i, <prefix>/sweep_index i and then one
// <prefix>/point f f per point. A sweep marker is <prefix>/sweep i (always 1)
// followed by <prefix>/sweep_index i.
type OSCEncoder struct {
	prefix string
}

// NewOSCEncoder returns an encoder using the address prefix, "/lidar" when
// empty.
func NewOSCEncoder(prefix string) OSCEncoder {
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		prefix = "/lidar"
	}
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	return OSCEncoder{prefix: prefix}
}

func (e OSCEncoder) Name() string        { return FormatOSC }
func (e OSCEncoder) ContentType() string { return "application/osc" }

// Address returns the full address for a leaf name such as "point".
func (e OSCEncoder) Address(leaf string) string {
	return e.prefix + "/" + leaf
}

func (e OSCEncoder) EncodeBatch(b Batch) ([]byte, error) {
	if err := checkFinite(b.Points); err != nil {
		return nil, err
	}
	var detect int32
	if b.Detect {
		detect = 1
	}
	msgs := make([]Message, 0, len(b.Points)+2)
	msgs = append(msgs,
		Message{Address: e.Address("detect"), Args: []interface{}{detect}},
		Message{Address: e.Address("sweep_index"), Args: []interface{}{int32(b.Sweep)}},
	)
	pointAddr := e.Address("point")
	for _, p := range b.Points {
		msgs = append(msgs, Message{Address: pointAddr, Args: []interface{}{float32(p.X), float32(p.Y)}})
	}
	return AppendBundle(make([]byte, 0, 64+len(b.Points)*28), TimetagImmediately, msgs)
}

func (e OSCEncoder) EncodeSweep(m SweepMarker) ([]byte, error) {
	return AppendBundle(nil, TimetagImmediately, []Message{
		{Address: e.Address("sweep"), Args: []interface{}{int32(1)}},
		{Address: e.Address("sweep_index"), Args: []interface{}{int32(m.Sweep)}},
	})
}
