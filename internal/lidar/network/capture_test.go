package network

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func udpFrame(t *testing.T, srcPort, dstPort uint16, payload []byte) []byte {
	t.Helper()
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 1},
		DstMAC:       net.HardwareAddr{0x02, 0, 0, 0, 0, 2},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.IPv4(127, 0, 0, 1),
		DstIP:    net.IPv4(127, 0, 0, 1),
	}
	udp := &layers.UDP{SrcPort: layers.UDPPort(srcPort), DstPort: layers.UDPPort(dstPort)}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, eth, ip, udp, gopacket.Payload(payload)))
	return buf.Bytes()
}

func writeCapture(t *testing.T, frames [][]byte) *bytes.Buffer {
	t.Helper()
	var out bytes.Buffer
	w := pcapgo.NewWriter(&out)
	require.NoError(t, w.WriteFileHeader(65536, layers.LinkTypeEthernet))
	ts := time.Unix(1700000000, 0)
	for i, f := range frames {
		ci := gopacket.CaptureInfo{
			Timestamp:     ts.Add(time.Duration(i) * 16 * time.Millisecond),
			CaptureLength: len(f),
			Length:        len(f),
		}
		require.NoError(t, w.WritePacket(ci, f))
	}
	return &out
}

func TestReadCaptureFiltersByPort(t *testing.T) {
	capture := writeCapture(t, [][]byte{
		udpFrame(t, 50000, 5005, []byte("one")),
		udpFrame(t, 50000, 9999, []byte("other")),
		udpFrame(t, 50000, 5005, []byte("two")),
	})

	var got []CapturedDatagram
	n, err := ReadCapture(context.Background(), capture, 5005, func(d CapturedDatagram) error {
		got = append(got, d)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, got, 2)
	assert.Equal(t, "one", string(got[0].Payload))
	assert.Equal(t, "two", string(got[1].Payload))
	assert.Equal(t, uint16(5005), got[1].DstPort)
	assert.Equal(t, 32*time.Millisecond, got[1].Timestamp.Sub(got[0].Timestamp))
}

func TestReadCaptureAnyPort(t *testing.T) {
	capture := writeCapture(t, [][]byte{
		udpFrame(t, 1, 2, []byte("a")),
		udpFrame(t, 3, 4, []byte("b")),
	})
	n, err := ReadCapture(context.Background(), capture, 0, func(CapturedDatagram) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestReadCaptureErrors(t *testing.T) {
	_, err := ReadCapture(context.Background(), bytes.NewReader([]byte{1, 2}), 0, nil)
	assert.Error(t, err)

	_, err = ReadCapture(context.Background(), bytes.NewReader(make([]byte, 64)), 0, nil)
	assert.Error(t, err, "not a capture")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	capture := writeCapture(t, [][]byte{udpFrame(t, 1, 2, []byte("a"))})
	_, err = ReadCapture(ctx, capture, 0, func(CapturedDatagram) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
