package seat

import (
	"context"
	"fmt"
	"os"
	"sync"
	"syscall"

	"github.com/godbus/dbus/v5"
)

const (
	loginBusName      = "org.freedesktop.login1"
	loginManagerPath  = "/org/freedesktop/login1"
	managerIface      = "org.freedesktop.login1.Manager"
	sessionIface      = "org.freedesktop.login1.Session"
)

// LogindOpener acquires DRM device fds via systemd-logind's
// org.freedesktop.login1.Session TakeDevice method, grounded on
// api/cmd/logind-stub/main.go (which mocks the server side of this exact
// interface). This is the production path for a renderer running
// unprivileged under a seat-managed display server.
type LogindOpener struct {
	conn *dbus.Conn

	mu          sync.Mutex
	sessionPath dbus.ObjectPath
	controlled  bool
}

// NewLogindOpener connects to the system bus and resolves the caller's
// current login session.
func NewLogindOpener(ctx context.Context) (*LogindOpener, error) {
	conn, err := dbus.ConnectSystemBus(dbus.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("seat: connect system bus: %w", err)
	}

	manager := conn.Object(loginBusName, dbus.ObjectPath(loginManagerPath))
	var sessionPath dbus.ObjectPath
	if err := manager.CallWithContext(ctx, managerIface+".GetSessionByPID", 0, uint32(os.Getpid())).Store(&sessionPath); err != nil {
		conn.Close()
		return nil, fmt.Errorf("seat: GetSessionByPID: %w", err)
	}

	return &LogindOpener{conn: conn, sessionPath: sessionPath}, nil
}

func (o *LogindOpener) takeControl(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.controlled {
		return nil
	}
	session := o.conn.Object(loginBusName, o.sessionPath)
	if err := session.CallWithContext(ctx, sessionIface+".TakeControl", 0, false).Err; err != nil {
		return fmt.Errorf("seat: TakeControl: %w", err)
	}
	o.controlled = true
	return nil
}

// OpenRestricted stats path for its device number and calls TakeDevice,
// returning the fd logind hands back (dup'd by the compositor side in
// cmd/logind-stub, mirrored by real logind).
func (o *LogindOpener) OpenRestricted(ctx context.Context, path string) (int, error) {
	if err := o.takeControl(ctx); err != nil {
		return -1, err
	}

	var st syscall.Stat_t
	if err := syscall.Stat(path, &st); err != nil {
		return -1, fmt.Errorf("seat: stat %s: %w", path, err)
	}
	major := uint32(st.Rdev >> 8 & 0xfff)
	minor := uint32(st.Rdev & 0xff)

	session := o.conn.Object(loginBusName, o.sessionPath)
	var fd dbus.UnixFD
	var inactive bool
	call := session.CallWithContext(ctx, sessionIface+".TakeDevice", 0, major, minor)
	if err := call.Store(&fd, &inactive); err != nil {
		return -1, fmt.Errorf("seat: TakeDevice(%d:%d): %w", major, minor, err)
	}
	return int(fd), nil
}

// CloseRestricted releases the fd and, for the device's major:minor, tells
// logind via ReleaseDevice.
func (o *LogindOpener) CloseRestricted(fd int) error {
	var st syscall.Stat_t
	if err := syscall.Fstat(fd, &st); err == nil {
		session := o.conn.Object(loginBusName, o.sessionPath)
		session.Call(sessionIface+".ReleaseDevice", 0, uint32(st.Rdev>>8&0xfff), uint32(st.Rdev&0xff))
	}
	return syscall.Close(fd)
}

// Close releases the session control and closes the bus connection.
func (o *LogindOpener) Close() error {
	o.mu.Lock()
	controlled := o.controlled
	o.mu.Unlock()
	if controlled {
		session := o.conn.Object(loginBusName, o.sessionPath)
		session.Call(sessionIface+".ReleaseControl", 0)
	}
	return o.conn.Close()
}
