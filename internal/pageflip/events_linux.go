//go:build linux

package pageflip

import (
	"encoding/binary"
	"time"

	"golang.org/x/sys/unix"

	"github.com/crznic/kmscore/internal/kms"
)

// pollReadable blocks until dev's fd is readable or timeout elapses,
// reporting false (no error) on a plain timeout.
func pollReadable(dev *kms.Device, timeout time.Duration) (bool, error) {
	pfd := []unix.PollFd{{Fd: int32(dev.FD), Events: unix.POLLIN}}
	n, err := unix.Poll(pfd, int(timeout/time.Millisecond))
	if err != nil {
		if err == unix.EINTR {
			return false, nil
		}
		return false, err
	}
	return n > 0, nil
}

// DRM event types (drm_event.type).
const (
	drmEventVblank         = 0x01
	drmEventFlipComplete   = 0x02
)

// drainEvents performs one non-blocking read of dev's fd and parses any
// complete drm_event_vblank records it contains (struct drm_event_vblank:
// { type, length uint32; user_data uint64; tv_sec, tv_usec, sequence,
// crtc_id uint32 } = 32 bytes), invoking onComplete for flip-complete
// events.
func drainEvents(dev *kms.Device, onComplete func(crtcID, seq, tvSec, tvUsec uint32)) error {
	buf := make([]byte, 4096)
	n, err := unix.Read(int(dev.FD), buf)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return nil
		}
		return err
	}
	off := 0
	for off+8 <= n {
		typ := binary.LittleEndian.Uint32(buf[off : off+4])
		length := binary.LittleEndian.Uint32(buf[off+4 : off+8])
		if length < 8 || off+int(length) > n {
			break
		}
		if typ == drmEventFlipComplete && length >= 32 {
			tvSec := binary.LittleEndian.Uint32(buf[off+16 : off+20])
			tvUsec := binary.LittleEndian.Uint32(buf[off+20 : off+24])
			seq := binary.LittleEndian.Uint32(buf[off+24 : off+28])
			crtcID := binary.LittleEndian.Uint32(buf[off+28 : off+32])
			onComplete(crtcID, seq, tvSec, tvUsec)
		}
		off += int(length)
	}
	return nil
}
