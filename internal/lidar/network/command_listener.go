package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/banshee-data/sweepcast/internal/config"
	"github.com/banshee-data/sweepcast/internal/monitoring"
)

const maxCommandSize = 64 * 1024

// ConfigApplier accepts a raw JSON update. config.Store implements it.
type ConfigApplier interface {
	ApplyJSON(source string, data []byte) (config.Update, error)
}

// CommandListenerConfig configures a CommandListener.
type CommandListenerConfig struct {
	Address string
	RcvBuf  int
	Applier ConfigApplier
	Factory UDPSocketFactory
}

// CommandListener receives JSON parameter updates on a UDP port and hands
// each datagram to the config store. It runs independently of the sensor
// stream.
type CommandListener struct {
	address string
	rcvBuf  int
	applier ConfigApplier
	factory UDPSocketFactory

	accepted atomic.Uint64
	rejected atomic.Uint64
}

// NewCommandListener creates a listener; Start binds the socket.
func NewCommandListener(cfg CommandListenerConfig) *CommandListener {
	factory := cfg.Factory
	if factory == nil {
		factory = NewRealUDPSocketFactory()
	}
	return &CommandListener{
		address: cfg.Address,
		rcvBuf:  cfg.RcvBuf,
		applier: cfg.Applier,
		factory: factory,
	}
}

// Start listens until ctx is cancelled. Malformed or invalid updates are
// logged and dropped; the loop keeps listening.
func (l *CommandListener) Start(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", l.address)
	if err != nil {
		return fmt.Errorf("failed to resolve command address: %w", err)
	}
	conn, err := l.factory.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on command address: %w", err)
	}
	defer conn.Close()

	if l.rcvBuf > 0 {
		if err := conn.SetReadBuffer(l.rcvBuf); err != nil {
			monitoring.Logf("[config] warning: failed to set receive buffer to %d: %v", l.rcvBuf, err)
		}
	}
	monitoring.Logf("[config] listening for updates on %s", conn.LocalAddr())

	buffer := make([]byte, maxCommandSize)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		// Short deadline so cancellation is noticed promptly.
		conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))

		n, from, err := conn.ReadFromUDP(buffer)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			monitoring.Logf("[config] read error: %v", err)
			continue
		}

		l.handle(buffer[:n], from)
	}
}

func (l *CommandListener) handle(payload []byte, from *net.UDPAddr) {
	source := "udp"
	if from != nil {
		source = "udp:" + from.String()
	}
	u, err := l.applier.ApplyJSON(source, payload)
	if err != nil {
		l.rejected.Add(1)
		monitoring.Logf("[config] dropped update from %s: %v", source, err)
		return
	}
	l.accepted.Add(1)
	if len(u.Applied) == 0 {
		monitoring.Debugf("[config] update from %s named no known parameter", source)
	}
}

// Accepted returns the number of updates that were applied or ignored as
// unknown keys.
func (l *CommandListener) Accepted() uint64 {
	return l.accepted.Load()
}

// Rejected returns the number of updates dropped as malformed or invalid.
func (l *CommandListener) Rejected() uint64 {
	return l.rejected.Load()
}
