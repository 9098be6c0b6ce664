package network

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/sweepcast/internal/config"
)

func runListener(t *testing.T, l *CommandListener, sock *MockUDPSocket, want int) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- l.Start(ctx) }()

	require.Eventually(t, func() bool {
		return sock.Consumed() >= want
	}, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not stop")
	}
}

func TestCommandListenerAppliesUpdates(t *testing.T) {
	from := &net.UDPAddr{IP: net.IPv4(10, 0, 1, 2), Port: 40000}
	sock := NewMockUDPSocket([]MockUDPPacket{
		{Data: []byte(`{"MIN_HITS": 3}`), Addr: from},
		{Data: []byte(`{"MIN_HITS": `), Addr: from},
		{Data: []byte(`{"FOO": 1}`), Addr: from},
		{Data: []byte(`{"GRID_STEP": 0}`), Addr: from},
	})
	factory := NewMockUDPSocketFactory(sock)
	store := config.NewStore(config.Default())

	l := NewCommandListener(CommandListenerConfig{
		Address: "127.0.0.1:5006",
		RcvBuf:  4096,
		Applier: store,
		Factory: factory,
	})
	runListener(t, l, sock, 4)

	assert.Equal(t, 3, store.Snapshot().MinHits)
	assert.Equal(t, 0.01, store.Snapshot().GridStep)
	assert.Equal(t, uint64(2), l.Accepted())
	assert.Equal(t, uint64(2), l.Rejected())

	require.Len(t, factory.ListenCalls, 1)
	assert.Equal(t, 5006, factory.ListenCalls[0].Addr.Port)
	assert.Equal(t, 4096, sock.ReadBufferSize())
	assert.True(t, sock.IsClosed())
}

type recordingApplier struct {
	sources []string
}

func (r *recordingApplier) ApplyJSON(source string, data []byte) (config.Update, error) {
	r.sources = append(r.sources, source)
	return config.Update{}, nil
}

func TestCommandListenerSurvivesReadErrors(t *testing.T) {
	sock := NewMockUDPSocket([]MockUDPPacket{
		{Data: []byte(`{}`), Addr: &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 1234}},
	})
	sock.ReadError = errors.New("connection refused")
	applier := &recordingApplier{}

	l := NewCommandListener(CommandListenerConfig{
		Address: ":5006",
		Applier: applier,
		Factory: NewMockUDPSocketFactory(sock),
	})
	runListener(t, l, sock, 1)

	assert.Equal(t, []string{"udp:127.0.0.1:1234"}, applier.sources)
}

func TestCommandListenerListenError(t *testing.T) {
	factory := NewMockUDPSocketFactory(nil)
	factory.Error = errors.New("address in use")
	l := NewCommandListener(CommandListenerConfig{Address: ":5006", Factory: factory, Applier: &recordingApplier{}})

	err := l.Start(context.Background())
	assert.ErrorContains(t, err, "address in use")
}
