package tcpworker

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startServer starts a server worker on a random loopback port.
func startServer(t *testing.T) (*Worker, *recorder) {
	t.Helper()
	rec := &recorder{}
	w := NewServer(testConfig("127.0.0.1:0"), rec.status, rec.message)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(func() { _ = w.Close() })
	return w, rec
}

func TestServer_Start(t *testing.T) {
	w, rec := startServer(t)

	assert.True(t, w.Running())
	assert.False(t, w.Connected())
	assert.Equal(t, Waiting, w.State())
	require.NotNil(t, w.Addr())
	assert.NotEqual(t, "127.0.0.1:0", w.Addr().String())

	assert.Eventually(t, func() bool {
		return rec.has("Waiting for client connection ...")
	}, waitFor, tick)
	assert.Equal(t, "Server started", rec.Statuses()[0])
}

func TestServer_StartWhileRunningIsNoop(t *testing.T) {
	w, rec := startServer(t)
	addr := w.Addr().String()

	require.NoError(t, w.Start(context.Background()))
	assert.Equal(t, addr, w.Addr().String())
	assert.Equal(t, 1, rec.count("Server started"))
}

func TestServer_BindFailure(t *testing.T) {
	occupied, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer occupied.Close()

	rec := &recorder{}
	w := NewServer(testConfig(occupied.Addr().String()), rec.status, rec.message)
	defer w.Close()

	err = w.Start(context.Background())
	assert.Error(t, err)
	assert.False(t, w.Running())
	assert.Equal(t, Stopped, w.State())
	assert.Equal(t, []string{"Server stopped"}, rec.Statuses())
}

func TestServer_ServesRawConnection(t *testing.T) {
	w, rec := startServer(t)

	conn, err := net.Dial("tcp", w.Addr().String())
	require.NoError(t, err)

	assert.Eventually(t, w.Connected, waitFor, tick)
	assert.Eventually(t, func() bool {
		return rec.hasPrefix("The client has connected 127.0.0.1:")
	}, waitFor, tick)

	_, err = conn.Write([]byte("raw bytes"))
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		return rec.received() == "raw bytes"
	}, waitFor, tick)

	require.NoError(t, w.SendMessage("back"))
	buf := make([]byte, 16)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(waitFor)))
	n, err := io.ReadAtLeast(conn, buf, len("back"))
	require.NoError(t, err)
	assert.Equal(t, "back", string(buf[:n]))

	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool {
		return rec.has("The client has disconnected")
	}, waitFor, tick)
	assert.Eventually(t, func() bool {
		return !w.Connected() && rec.count("Waiting for client connection ...") == 2
	}, waitFor, tick)
	assert.True(t, w.Running())
}

func TestServer_AcceptsNextClient(t *testing.T) {
	w, rec := startServer(t)

	first, err := net.Dial("tcp", w.Addr().String())
	require.NoError(t, err)
	assert.Eventually(t, w.Connected, waitFor, tick)
	require.NoError(t, first.Close())

	assert.Eventually(t, func() bool {
		return rec.count("Waiting for client connection ...") == 2
	}, waitFor, tick)

	second, err := net.Dial("tcp", w.Addr().String())
	require.NoError(t, err)
	defer second.Close()

	_, err = second.Write([]byte("second"))
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		return rec.received() == "second"
	}, waitFor, tick)
}

func TestServer_Stop(t *testing.T) {
	w, rec := startServer(t)

	conn, err := net.Dial("tcp", w.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	assert.Eventually(t, w.Connected, waitFor, tick)

	w.Stop()
	w.Stop()

	assert.False(t, w.Running())
	assert.False(t, w.Connected())
	assert.Equal(t, Stopped, w.State())
	assert.Nil(t, w.Addr())
	assert.Equal(t, 1, rec.count("Server stopped"))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(waitFor)))
	_, err = conn.Read(make([]byte, 1))
	assert.Error(t, err)

	w.Wait()
	assert.Equal(t, 1, rec.count("Server stopped"))
	assert.False(t, rec.has("Connection interrupted"))
}

func TestServer_ContextCancel(t *testing.T) {
	rec := &recorder{}
	w := NewServer(testConfig("127.0.0.1:0"), rec.status, rec.message)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))
	assert.Eventually(t, func() bool {
		return rec.has("Waiting for client connection ...")
	}, waitFor, tick)

	cancel()

	assert.Eventually(t, func() bool {
		return !w.Running()
	}, waitFor, tick)
	assert.Eventually(t, func() bool {
		return rec.has("Server stopped")
	}, waitFor, tick)
	assert.False(t, rec.hasPrefix("Server error"))
}

func TestServer_RestartAfterStop(t *testing.T) {
	w, _ := startServer(t)
	w.Stop()
	w.Wait()

	rec := &recorder{}
	w.OnStatus(rec.status)
	w.OnMessage(rec.message)

	require.NoError(t, w.Start(context.Background()))
	assert.True(t, w.Running())
	assert.Equal(t, "Server started", rec.Statuses()[0])
}

func TestServer_CustomNotifiers(t *testing.T) {
	started, stopped := 0, 0
	w := NewServer(testConfig("127.0.0.1:0"), nil, nil)
	defer w.Close()
	w.OnStarted(func() { started++ })
	w.OnStopped(func() { stopped++ })

	require.NoError(t, w.Start(context.Background()))
	w.Stop()
	w.Wait()

	assert.Equal(t, 1, started)
	assert.Equal(t, 1, stopped)
}
