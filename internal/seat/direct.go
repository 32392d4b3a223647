package seat

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// DirectOpener opens DRM device nodes with unix.Open, for use when the
// caller already holds the privileges a seat manager would otherwise
// broker (e.g. running as root with DRM master, or under a login manager
// that grants direct device permissions via udev ACLs).
type DirectOpener struct{}

func (DirectOpener) OpenRestricted(ctx context.Context, path string) (int, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return -1, fmt.Errorf("seat: open %s: %w", path, err)
	}
	return fd, nil
}

func (DirectOpener) CloseRestricted(fd int) error {
	return os.NewFile(uintptr(fd), "").Close()
}
