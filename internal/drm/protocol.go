package drm

import (
	"encoding/binary"
	"io"
	"net"

	"golang.org/x/sys/unix"
)

// CmdRequestLease and CmdReleaseLease are the two request opcodes the lease
// wire protocol supports.
const (
	CmdRequestLease = 1
	CmdReleaseLease = 2
)

const responseSize = 69 // 1 (status) + 4 (connector id) + 64 (connector name)

// Request is the fixed-size message a client writes before reading a
// response (plus an SCM_RIGHTS fd on success).
type Request struct {
	Cmd    uint8
	Width  uint32
	Height uint32
}

// ReadRequest reads one Request off r.
func ReadRequest(r io.Reader) (Request, error) {
	var req Request
	err := binary.Read(r, binary.LittleEndian, &req)
	return req, err
}

// WriteRequest writes req to w.
func WriteRequest(w io.Writer, req Request) error {
	return binary.Write(w, binary.LittleEndian, req)
}

// WriteGrant sends a successful lease response (status 0) carrying
// connectorID/connectorName, with leaseFD attached via SCM_RIGHTS.
func WriteGrant(conn *net.UnixConn, connectorID uint32, connectorName string, leaseFD int) error {
	buf := make([]byte, responseSize)
	binary.LittleEndian.PutUint32(buf[1:5], connectorID)
	copy(buf[5:], connectorName)
	_, _, err := conn.WriteMsgUnix(buf, unix.UnixRights(leaseFD), nil)
	return err
}

// WriteError sends a failure response (status 1) carrying msg in the
// connector-name field.
func WriteError(w io.Writer, msg string) error {
	buf := make([]byte, responseSize)
	buf[0] = 1
	copy(buf[5:], msg)
	_, err := w.Write(buf)
	return err
}

// readResponse reads a response off a UnixConn, returning the attached
// lease fd on success.
func readResponse(conn *net.UnixConn) (status uint8, connectorID uint32, connectorName string, leaseFD int, err error) {
	respBuf := make([]byte, responseSize)
	oob := make([]byte, unix.CmsgLen(4)) // space for one fd
	n, oobn, _, _, readErr := conn.ReadMsgUnix(respBuf, oob)
	if readErr != nil {
		return 0, 0, "", -1, readErr
	}
	if n < responseSize {
		return 0, 0, "", -1, io.ErrUnexpectedEOF
	}

	status = respBuf[0]
	connectorID = binary.LittleEndian.Uint32(respBuf[1:5])
	connectorName = trimNulls(respBuf[5:responseSize])

	if status != 0 || oobn == 0 {
		return status, connectorID, connectorName, -1, nil
	}

	scms, err := unix.ParseSocketControlMessage(oob[:oobn])
	if err != nil {
		return status, connectorID, connectorName, -1, err
	}
	for _, scm := range scms {
		fds, err := unix.ParseUnixRights(&scm)
		if err != nil || len(fds) == 0 {
			continue
		}
		leaseFD = fds[0]
		for _, extra := range fds[1:] {
			unix.Close(extra)
		}
		return status, connectorID, connectorName, leaseFD, nil
	}
	return status, connectorID, connectorName, -1, nil
}

func trimNulls(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
