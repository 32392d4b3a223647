package drm

import (
	"net"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestRequestRoundTrip(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	want := Request{Cmd: CmdRequestLease, Width: 1920, Height: 1080}
	done := make(chan Request, 1)
	go func() {
		got, err := ReadRequest(server)
		require.NoError(t, err)
		done <- got
	}()

	require.NoError(t, WriteRequest(client, want))
	assert.Equal(t, want, <-done)
}

func TestWriteGrantAndReadResponse(t *testing.T) {
	serverConn, clientConn := unixSocketPair(t)
	defer serverConn.Close()
	defer clientConn.Close()

	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	done := make(chan error, 1)
	go func() { done <- WriteGrant(serverConn, 42, "HDMI-A-1", int(w.Fd())) }()

	status, connectorID, connectorName, leaseFD, err := readResponse(clientConn)
	require.NoError(t, <-done)
	require.NoError(t, err)
	assert.Equal(t, uint8(0), status)
	assert.EqualValues(t, 42, connectorID)
	assert.Equal(t, "HDMI-A-1", connectorName)
	assert.GreaterOrEqual(t, leaseFD, 0)
	if leaseFD >= 0 {
		unix.Close(leaseFD)
	}
}

func TestWriteErrorThenReadResponse(t *testing.T) {
	serverConn, clientConn := unixSocketPair(t)
	defer serverConn.Close()
	defer clientConn.Close()

	require.NoError(t, WriteError(serverConn, "no connector available"))

	status, _, connectorName, leaseFD, err := readResponse(clientConn)
	require.NoError(t, err)
	assert.Equal(t, uint8(1), status)
	assert.Equal(t, "no connector available", connectorName)
	assert.Equal(t, -1, leaseFD)
}

// unixSocketPair returns a connected pair of *net.UnixConn backed by
// socketpair(2), the same kind of connection WriteMsgUnix/ReadMsgUnix (and
// therefore SCM_RIGHTS) require — net.Pipe does not support them.
func unixSocketPair(t *testing.T) (*net.UnixConn, *net.UnixConn) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)

	a, err := fdToUnixConn(fds[0])
	require.NoError(t, err)
	b, err := fdToUnixConn(fds[1])
	require.NoError(t, err)
	return a, b
}

func fdToUnixConn(fd int) (*net.UnixConn, error) {
	f := os.NewFile(uintptr(fd), "socketpair")
	c, err := net.FileConn(f)
	f.Close()
	if err != nil {
		return nil, err
	}
	return c.(*net.UnixConn), nil
}
