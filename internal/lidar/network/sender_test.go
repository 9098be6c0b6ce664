package network

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/sweepcast/internal/monitoring"
)

func init() {
	monitoring.SetLogger(nil)
}

func TestNewSenderValidation(t *testing.T) {
	_, err := NewSender(SenderConfig{})
	assert.Error(t, err)

	_, err = NewSender(SenderConfig{Targets: []string{"not a host:port:x"}})
	assert.Error(t, err)

	factory := NewMockUDPSocketFactory(nil)
	factory.Error = errors.New("no sockets")
	_, err = NewSender(SenderConfig{Targets: []string{"127.0.0.1:5005"}, Factory: factory})
	assert.ErrorContains(t, err, "no sockets")
}

func TestSenderFanOutAndDrainOnClose(t *testing.T) {
	sock := NewMockUDPSocket(nil)
	s, err := NewSender(SenderConfig{
		Targets: []string{"127.0.0.1:5005", "127.0.0.1:6005"},
		Factory: NewMockUDPSocketFactory(sock),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"127.0.0.1:5005", "127.0.0.1:6005"}, s.Targets())

	s.Start()
	for i := 0; i < 5; i++ {
		require.True(t, s.SendAsync([]byte{byte(i)}))
	}
	require.NoError(t, s.Close())

	written := sock.Written()
	require.Len(t, written, 10)
	for i := 0; i < 5; i++ {
		assert.Equal(t, []byte{byte(i)}, written[2*i].Data)
		assert.Equal(t, 5005, written[2*i].Addr.Port)
		assert.Equal(t, 6005, written[2*i+1].Addr.Port)
	}
	assert.True(t, sock.IsClosed())

	stats := s.Stats()
	assert.Equal(t, uint64(5), stats.Queued)
	assert.Equal(t, uint64(10), stats.Sent)
	assert.Zero(t, stats.Dropped)
}

func TestSenderDropsWhenQueueFull(t *testing.T) {
	sock := NewMockUDPSocket(nil)
	s, err := NewSender(SenderConfig{
		Targets:   []string{"127.0.0.1:5005"},
		QueueSize: 2,
		Factory:   NewMockUDPSocketFactory(sock),
	})
	require.NoError(t, err)

	// Not started: nothing drains the queue.
	assert.True(t, s.SendAsync([]byte("a")))
	assert.True(t, s.SendAsync([]byte("b")))
	assert.False(t, s.SendAsync([]byte("c")))
	assert.Equal(t, uint64(1), s.Stats().Dropped)

	require.NoError(t, s.Close())
	assert.Len(t, sock.Written(), 2, "close drains queued payloads")

	assert.False(t, s.SendAsync([]byte("d")), "closed sender refuses payloads")
	assert.Equal(t, uint64(2), s.Stats().Dropped)
	assert.NoError(t, s.Close(), "second close is a no-op")
}

func TestSenderCountsWriteFailures(t *testing.T) {
	sock := NewMockUDPSocket(nil)
	sock.WriteError = errors.New("network unreachable")
	s, err := NewSender(SenderConfig{
		Targets: []string{"127.0.0.1:5005"},
		Factory: NewMockUDPSocketFactory(sock),
	})
	require.NoError(t, err)
	s.Start()
	s.SendAsync([]byte("x"))
	s.SendAsync([]byte("y"))
	require.NoError(t, s.Close())

	stats := s.Stats()
	assert.Equal(t, uint64(2), stats.Failed)
	assert.Zero(t, stats.Sent)
}

func TestSenderRealLoopback(t *testing.T) {
	recv, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer recv.Close()

	s, err := NewSender(SenderConfig{Targets: []string{recv.LocalAddr().String()}})
	require.NoError(t, err)
	s.Start()
	defer s.Close()

	require.True(t, s.SendAsync([]byte(`{"type":"lidar_points"}`)))

	require.NoError(t, recv.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 1024)
	n, _, err := recv.ReadFromUDP(buf)
	require.NoError(t, err)
	assert.Equal(t, `{"type":"lidar_points"}`, string(buf[:n]))
}
