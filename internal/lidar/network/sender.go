package network

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/banshee-data/sweepcast/internal/monitoring"
)

const defaultQueueSize = 1000

// SenderConfig configures a Sender.
type SenderConfig struct {
	// Targets are host:port destinations that each receive every payload.
	Targets []string
	// QueueSize bounds the number of payloads waiting to be written.
	QueueSize int
	// LogInterval is the minimum spacing between failure log lines.
	LogInterval time.Duration
	// Factory creates the outbound socket; defaults to the real network.
	Factory UDPSocketFactory
}

// SenderStats is a point-in-time copy of the sender counters.
type SenderStats struct {
	Queued  uint64 `json:"queued"`
	Sent    uint64 `json:"sent"`    // datagrams written, counted per target
	Dropped uint64 `json:"dropped"` // payloads refused because the queue was full or closed
	Failed  uint64 `json:"failed"`  // datagram writes that returned an error
}

// Sender delivers payloads to a fixed set of UDP targets from a single
// socket. SendAsync never blocks the caller: payloads are queued on a
// bounded channel and written by a background goroutine. Delivery is best
// effort; failures are counted and logged, never returned.
type Sender struct {
	sock        UDPSocket
	targets     []*net.UDPAddr
	names       []string
	queue       chan []byte
	logInterval time.Duration

	queued  atomic.Uint64
	sent    atomic.Uint64
	dropped atomic.Uint64
	failed  atomic.Uint64

	mu      sync.RWMutex
	closed  bool
	started bool
	done    chan struct{}
}

// NewSender resolves the targets and opens the outbound socket.
func NewSender(cfg SenderConfig) (*Sender, error) {
	if len(cfg.Targets) == 0 {
		return nil, errors.New("no UDP targets configured")
	}
	targets := make([]*net.UDPAddr, 0, len(cfg.Targets))
	for _, t := range cfg.Targets {
		addr, err := net.ResolveUDPAddr("udp", t)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve target %q: %w", t, err)
		}
		targets = append(targets, addr)
	}

	factory := cfg.Factory
	if factory == nil {
		factory = NewRealUDPSocketFactory()
	}
	sock, err := factory.ListenUDP("udp", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open sender socket: %w", err)
	}

	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	logInterval := cfg.LogInterval
	if logInterval <= 0 {
		logInterval = 10 * time.Second
	}

	return &Sender{
		sock:        sock,
		targets:     targets,
		names:       append([]string(nil), cfg.Targets...),
		queue:       make(chan []byte, queueSize),
		logInterval: logInterval,
		done:        make(chan struct{}),
	}, nil
}

// Targets returns the configured destinations.
func (s *Sender) Targets() []string {
	return append([]string(nil), s.names...)
}

// Start launches the writer goroutine. It runs until Close.
func (s *Sender) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.closed {
		return
	}
	s.started = true
	go s.run()
	monitoring.Logf("[sender] sending to %v", s.names)
}

// SendAsync queues payload for delivery and reports whether it was
// accepted. The sender takes ownership of payload. A full queue drops the
// payload.
func (s *Sender) SendAsync(payload []byte) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		s.dropped.Add(1)
		return false
	}
	select {
	case s.queue <- payload:
		s.queued.Add(1)
		return true
	default:
		s.dropped.Add(1)
		return false
	}
}

func (s *Sender) run() {
	defer close(s.done)

	var (
		failures int
		dropped  uint64
		lastErr  error
	)
	ticker := time.NewTicker(s.logInterval)
	defer ticker.Stop()

	for {
		select {
		case payload, ok := <-s.queue:
			if !ok {
				if failures > 0 {
					monitoring.Logf("[sender] %d datagram writes failed (latest: %v)", failures, lastErr)
				}
				return
			}
			for _, addr := range s.targets {
				if _, err := s.sock.WriteToUDP(payload, addr); err != nil {
					s.failed.Add(1)
					failures++
					lastErr = err
					continue
				}
				s.sent.Add(1)
			}
		case <-ticker.C:
			if failures > 0 {
				monitoring.Logf("[sender] %d datagram writes failed (latest: %v)", failures, lastErr)
				failures = 0
				lastErr = nil
			}
			if d := s.dropped.Load(); d != dropped {
				monitoring.Logf("[sender] dropped %d payloads: queue full", d-dropped)
				dropped = d
			}
		}
	}
}

// Close stops accepting payloads, writes everything already queued, then
// closes the socket. It is safe to call more than once.
func (s *Sender) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	started := s.started
	close(s.queue)
	s.mu.Unlock()

	if started {
		<-s.done
	} else {
		s.run()
	}
	if err := s.sock.Close(); err != nil {
		return fmt.Errorf("failed to close sender socket: %w", err)
	}
	return nil
}

// Stats returns the current counters.
func (s *Sender) Stats() SenderStats {
	return SenderStats{
		Queued:  s.queued.Load(),
		Sent:    s.sent.Load(),
		Dropped: s.dropped.Load(),
		Failed:  s.failed.Load(),
	}
}
