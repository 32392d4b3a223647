// Package drm implements the lease request/response wire protocol shared by
// cmd/kms-lease-client and cmd/kms-lease-server: a Unix socket exchange
// where the grantor hands the requester a DRM lease fd via SCM_RIGHTS, and
// an open connection back to the grantor doubles as a liveness signal.
package drm

import (
	"fmt"
	"net"
)

// Client connects to a lease grantor (cmd/kms-lease-server) and requests
// DRM leases.
type Client struct {
	socketPath string
}

// NewClient creates a client for the lease server at socketPath.
func NewClient(socketPath string) *Client {
	return &Client{socketPath: socketPath}
}

// LeaseResult contains the result of a successful lease request.
type LeaseResult struct {
	ConnectorID   uint32
	ConnectorName string
	LeaseFD       int // DRM lease file descriptor - caller must close when done

	// conn is the persistent connection to the lease server. Keeping it open
	// acts as a liveness signal — when the process dies (even SIGKILL), the
	// kernel closes the socket and the server automatically revokes the
	// lease. Call Close() when the lease is no longer needed.
	conn net.Conn
}

// Close releases the lease by closing the liveness connection to the lease server.
// The server detects the disconnect and automatically revokes the lease.
func (r *LeaseResult) Close() {
	if r.conn != nil {
		r.conn.Close()
		r.conn = nil
	}
}

// RequestLease requests a DRM lease from the server.
// Returns a LeaseResult with the lease FD on success.
// The caller owns the FD and must close it when done.
// The LeaseResult also holds an open connection to the server as a liveness
// signal — call LeaseResult.Close() to release the lease, or let the process
// exit (the kernel will close the connection automatically).
func (c *Client) RequestLease(width, height uint32) (*LeaseResult, error) {
	conn, err := net.Dial("unix", c.socketPath)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", c.socketPath, err)
	}
	unixConn := conn.(*net.UnixConn)

	req := Request{Cmd: CmdRequestLease, Width: width, Height: height}
	if err := WriteRequest(unixConn, req); err != nil {
		conn.Close()
		return nil, fmt.Errorf("write request: %w", err)
	}

	status, connectorID, connectorName, leaseFD, err := readResponse(unixConn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("read response: %w", err)
	}
	if status != 0 {
		conn.Close()
		return nil, fmt.Errorf("lease request failed: %s", connectorName)
	}
	if leaseFD < 0 {
		conn.Close()
		return nil, fmt.Errorf("no lease FD received via SCM_RIGHTS")
	}

	// Connection intentionally kept open — acts as liveness signal to the
	// server. When this process dies, the kernel closes the socket and
	// the server automatically revokes the lease.
	return &LeaseResult{
		ConnectorID:   connectorID,
		ConnectorName: connectorName,
		LeaseFD:       leaseFD,
		conn:          conn,
	}, nil
}

// ReleaseLease tells the server to revoke a previously granted lease.
func (c *Client) ReleaseLease(connectorID uint32) error {
	conn, err := net.Dial("unix", c.socketPath)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", c.socketPath, err)
	}
	defer conn.Close()

	req := Request{Cmd: CmdReleaseLease, Width: connectorID} // reuse Width field for the connector id
	if err := WriteRequest(conn, req); err != nil {
		return fmt.Errorf("write release request: %w", err)
	}
	return nil
}
