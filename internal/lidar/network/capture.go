package network

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// CapturedDatagram is one UDP payload recovered from a capture file.
type CapturedDatagram struct {
	Timestamp time.Time
	SrcPort   uint16
	DstPort   uint16
	Payload   []byte
}

type captureSource interface {
	gopacket.PacketDataSource
	LinkType() layers.LinkType
}

var pcapngMagic = []byte{0x0a, 0x0d, 0x0d, 0x0a}

// ReadCapture decodes a pcap or pcapng stream and calls fn for each UDP
// datagram whose source or destination port equals port (any port when
// port is 0). It returns the number of datagrams delivered. Decoding uses
// gopacket's pure Go readers, so no libpcap is required.
func ReadCapture(ctx context.Context, r io.Reader, port int, fn func(CapturedDatagram) error) (int, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(4)
	if err != nil {
		return 0, fmt.Errorf("failed to read capture header: %w", err)
	}

	var src captureSource
	if bytes.Equal(magic, pcapngMagic) {
		src, err = pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
	} else {
		src, err = pcapgo.NewReader(br)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to open capture: %w", err)
	}

	packets := gopacket.NewPacketSource(src, src.LinkType())
	packets.NoCopy = false

	delivered := 0
	for {
		if err := ctx.Err(); err != nil {
			return delivered, err
		}
		packet, err := packets.NextPacket()
		if errors.Is(err, io.EOF) {
			return delivered, nil
		}
		if err != nil {
			return delivered, fmt.Errorf("failed to read packet: %w", err)
		}

		udp, ok := packet.Layer(layers.LayerTypeUDP).(*layers.UDP)
		if !ok || len(udp.Payload) == 0 {
			continue
		}
		if port != 0 && int(udp.SrcPort) != port && int(udp.DstPort) != port {
			continue
		}

		err = fn(CapturedDatagram{
			Timestamp: packet.Metadata().Timestamp,
			SrcPort:   uint16(udp.SrcPort),
			DstPort:   uint16(udp.DstPort),
			Payload:   udp.Payload,
		})
		if err != nil {
			return delivered, err
		}
		delivered++
	}
}
